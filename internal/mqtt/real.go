package mqtt

import (
	"fmt"
	"log"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
)

// Options configures a RealPublisher.
type Options struct {
	Broker         string
	ClientID       string
	ConnectTimeout time.Duration
	PublishTimeout time.Duration

	// BufferSize is the number of system and battery messages kept while
	// disconnected. Telemetry is never buffered here; it waits in the
	// node's own queue.
	BufferSize int
}

// DefaultOptions returns Options for broker with the usual timeouts.
func DefaultOptions(broker string) Options {
	return Options{
		Broker:         broker,
		ClientID:       "suricata",
		ConnectTimeout: 10 * time.Second,
		PublishTimeout: 5 * time.Second,
		BufferSize:     32,
	}
}

// RealPublisher publishes to an actual MQTT broker.
type RealPublisher struct {
	client  paho.Client
	timeout time.Duration

	mu        sync.Mutex
	buffer    *ringBuffer
	connected bool // has connected at least once
}

// NewRealPublisher creates a publisher connected to the given broker.
// The broker publishes a retained OFFLINE system event if the connection
// is lost uncleanly.
func NewRealPublisher(o Options) (*RealPublisher, error) {
	if o.BufferSize <= 0 {
		o.BufferSize = 1
	}
	p := &RealPublisher{
		timeout: o.PublishTimeout,
		buffer:  newRingBuffer(o.BufferSize),
	}

	will, err := FormatSystemPayload(WillEvent(time.Now()))
	if err != nil {
		return nil, fmt.Errorf("format will: %w", err)
	}

	opts := paho.NewClientOptions().
		AddBroker(o.Broker).
		SetClientID(o.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetBinaryWill(TopicSystem, will, 1, true).
		SetOnConnectHandler(p.onConnect).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			log.Printf("mqtt: connection lost: %v", err)
		})

	p.client = paho.NewClient(opts)
	token := p.client.Connect()
	if !token.WaitTimeout(o.ConnectTimeout) {
		return nil, fmt.Errorf("connection timeout")
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}

	return p, nil
}

// onConnect runs on paho's goroutine after every successful connect.
// After a reconnect it announces RECONNECTED and replays buffered messages.
func (p *RealPublisher) onConnect(c paho.Client) {
	p.mu.Lock()
	first := !p.connected
	p.connected = true
	msgs := p.buffer.drainAll()
	p.mu.Unlock()

	if first {
		return
	}
	log.Printf("mqtt: reconnected, replaying %d buffered messages", len(msgs))

	if payload, err := FormatSystemPayload(SystemEvent{Timestamp: time.Now(), Event: "RECONNECTED"}); err == nil {
		c.Publish(TopicSystem, 1, false, payload)
	}
	for _, m := range msgs {
		c.Publish(m.topic, m.qos, m.retained, m.payload)
	}
}

// IsConnected reports whether the client currently has a broker connection.
func (p *RealPublisher) IsConnected() bool {
	return p.client.IsConnectionOpen()
}

// PublishTelemetry sends one telemetry record. QoS 0; the caller keeps the
// record and retries if this fails.
func (p *RealPublisher) PublishTelemetry(payload []byte) error {
	return p.send(TopicTelemetry, 0, false, payload)
}

// PublishBattery sends the battery level, retained with QoS 1.
func (p *RealPublisher) PublishBattery(level BatteryLevel) error {
	payload, err := FormatBatteryPayload(level)
	if err != nil {
		return fmt.Errorf("format battery payload: %w", err)
	}
	return p.sendOrBuffer(TopicBattery, 1, true, payload)
}

// PublishSystem sends a system lifecycle event to the MQTT broker.
func (p *RealPublisher) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}

	// QoS 1 (at-least-once) for system events - we want to ensure delivery
	return p.sendOrBuffer(TopicSystem, 1, event.Retained, payload)
}

// sendOrBuffer publishes now if connected, otherwise keeps the message for
// replay on reconnect.
func (p *RealPublisher) sendOrBuffer(topic string, qos byte, retained bool, payload []byte) error {
	if !p.IsConnected() {
		p.mu.Lock()
		p.buffer.push(bufferedMsg{topic: topic, payload: payload, qos: qos, retained: retained})
		p.mu.Unlock()
		return nil
	}
	return p.send(topic, qos, retained, payload)
}

func (p *RealPublisher) send(topic string, qos byte, retained bool, payload []byte) error {
	token := p.client.Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(p.timeout) {
		return fmt.Errorf("publish %s timeout", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}

// Buffered returns the number of messages waiting for a reconnect.
func (p *RealPublisher) Buffered() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.buffer.len()
}

// Close disconnects from the broker.
func (p *RealPublisher) Close() error {
	p.client.Disconnect(1000) // 1 second timeout
	return nil
}
