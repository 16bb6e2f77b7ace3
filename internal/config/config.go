// Package config loads the node configuration from a YAML file.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sweeney/suricata/internal/gpio"
	"github.com/sweeney/suricata/internal/sensor"
)

// Config represents the daemon configuration.
type Config struct {
	Node      NodeConfig      `yaml:"node"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	Sensor    SensorConfig    `yaml:"sensor"`
	LED       LEDConfig       `yaml:"led"`
	Queue     QueueConfig     `yaml:"queue"`
	HTTP      HTTPConfig      `yaml:"http"`
	Heartbeat HeartbeatConfig `yaml:"heartbeat"`
}

// NodeConfig identifies the node.
type NodeConfig struct {
	ID string `yaml:"id"` // also the MQTT client ID
}

// MQTTConfig contains broker connection settings.
type MQTTConfig struct {
	Broker         string        `yaml:"broker"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
	PublishTimeout time.Duration `yaml:"publish_timeout"`
	BufferSize     int           `yaml:"buffer_size"` // system/battery messages kept while offline
}

// SensorConfig contains the sensor link and sampling settings.
type SensorConfig struct {
	Port     string        `yaml:"port"` // serial device; empty runs the simulated source
	Baud     int           `yaml:"baud"`
	Poll     time.Duration `yaml:"poll"`
	Debounce time.Duration `yaml:"debounce"`
}

// LEDConfig contains the status light wiring.
type LEDConfig struct {
	Chip      string      `yaml:"chip"`
	RedPin    int         `yaml:"red_pin"`
	GreenPin  int         `yaml:"green_pin"`
	BluePin   int         `yaml:"blue_pin"`
	ActiveLow bool        `yaml:"active_low"` // common-anode or inverted driver
	PWM       []PWMConfig `yaml:"pwm,omitempty"`
}

// PWMConfig maps a pin to a sysfs PWM channel.
type PWMConfig struct {
	Pin     int    `yaml:"pin"`
	Chip    string `yaml:"chip"` // e.g. /sys/class/pwm/pwmchip0
	Channel int    `yaml:"channel"`
}

// QueueConfig sizes the telemetry queue.
type QueueConfig struct {
	Size          int           `yaml:"size"` // bytes, power of two
	FlushInterval time.Duration `yaml:"flush_interval"`
}

// HTTPConfig contains the status server address.
type HTTPConfig struct {
	Addr string `yaml:"addr"` // empty disables the server
}

// HeartbeatConfig controls periodic status events.
type HeartbeatConfig struct {
	Interval time.Duration `yaml:"interval"` // 0 disables
}

// Default returns a default configuration with sensible values.
func Default() *Config {
	return &Config{
		Node: NodeConfig{
			ID: "suricata",
		},
		MQTT: MQTTConfig{
			Broker:         "tcp://192.168.1.200:1883",
			ConnectTimeout: 10 * time.Second,
			PublishTimeout: 5 * time.Second,
			BufferSize:     32,
		},
		Sensor: SensorConfig{
			Port:     "",
			Baud:     sensor.DefaultBaudRate,
			Poll:     time.Second,
			Debounce: 5 * time.Second,
		},
		LED: LEDConfig{
			Chip:     "gpiochip0",
			RedPin:   gpio.DefaultPinRed,
			GreenPin: gpio.DefaultPinGreen,
			BluePin:  gpio.DefaultPinBlue,
		},
		Queue: QueueConfig{
			Size:          4096,
			FlushInterval: 2 * time.Second,
		},
		HTTP: HTTPConfig{
			Addr: ":80",
		},
		Heartbeat: HeartbeatConfig{
			Interval: 15 * time.Minute,
		},
	}
}

// Load loads configuration from a YAML file. If the file doesn't exist or
// fields are missing, it uses default values.
func Load(filename string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.ensureDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save saves the configuration to a YAML file.
func (c *Config) Save(filename string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks values that have no usable default.
func (c *Config) Validate() error {
	var errs []error
	for name, pin := range map[string]int{"red_pin": c.LED.RedPin, "green_pin": c.LED.GreenPin, "blue_pin": c.LED.BluePin} {
		if !gpio.ValidPin(pin) {
			errs = append(errs, fmt.Errorf("led.%s: %d out of range 0..%d", name, pin, gpio.MaxPin))
		}
	}
	if n := c.Queue.Size; n <= 0 || n&(n-1) != 0 {
		errs = append(errs, fmt.Errorf("queue.size: %d is not a power of two", n))
	}
	if c.Sensor.Poll <= 0 {
		errs = append(errs, fmt.Errorf("sensor.poll: %v must be positive", c.Sensor.Poll))
	}
	if c.Sensor.Debounce < 0 {
		errs = append(errs, fmt.Errorf("sensor.debounce: must not be negative"))
	}
	if c.Queue.FlushInterval <= 0 {
		errs = append(errs, fmt.Errorf("queue.flush_interval: %v must be positive", c.Queue.FlushInterval))
	}
	if c.Heartbeat.Interval < 0 {
		errs = append(errs, fmt.Errorf("heartbeat.interval: must not be negative"))
	}
	return errors.Join(errs...)
}

// PWMChannels returns the pin to PWM channel map for the gpio opener.
func (c *Config) PWMChannels() map[int]gpio.PWMChannel {
	m := make(map[int]gpio.PWMChannel, len(c.LED.PWM))
	for _, p := range c.LED.PWM {
		m[p.Pin] = gpio.PWMChannel{Chip: p.Chip, Channel: p.Channel}
	}
	return m
}

// ensureDefaults ensures that all required fields have default values if missing.
// Pins are not defaulted: 0 is a valid pin.
func (c *Config) ensureDefaults() {
	def := Default()

	if c.Node.ID == "" {
		c.Node.ID = def.Node.ID
	}

	if c.MQTT.Broker == "" {
		c.MQTT.Broker = def.MQTT.Broker
	}
	if c.MQTT.ConnectTimeout == 0 {
		c.MQTT.ConnectTimeout = def.MQTT.ConnectTimeout
	}
	if c.MQTT.PublishTimeout == 0 {
		c.MQTT.PublishTimeout = def.MQTT.PublishTimeout
	}
	if c.MQTT.BufferSize == 0 {
		c.MQTT.BufferSize = def.MQTT.BufferSize
	}

	if c.Sensor.Baud == 0 {
		c.Sensor.Baud = def.Sensor.Baud
	}
	if c.Sensor.Poll == 0 {
		c.Sensor.Poll = def.Sensor.Poll
	}
	if c.Sensor.Debounce == 0 {
		c.Sensor.Debounce = def.Sensor.Debounce
	}

	if c.LED.Chip == "" {
		c.LED.Chip = def.LED.Chip
	}

	if c.Queue.Size == 0 {
		c.Queue.Size = def.Queue.Size
	}
	if c.Queue.FlushInterval == 0 {
		c.Queue.FlushInterval = def.Queue.FlushInterval
	}
}
