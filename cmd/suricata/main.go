// Command suricata samples the node's sensors, streams telemetry to MQTT and
// shows battery and link state on the RGB status light.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sweeney/suricata/internal/config"
	"github.com/sweeney/suricata/internal/events"
	"github.com/sweeney/suricata/internal/gpio"
	"github.com/sweeney/suricata/internal/indicator"
	"github.com/sweeney/suricata/internal/irq"
	"github.com/sweeney/suricata/internal/led"
	"github.com/sweeney/suricata/internal/logic"
	"github.com/sweeney/suricata/internal/metrics"
	"github.com/sweeney/suricata/internal/mqtt"
	"github.com/sweeney/suricata/internal/rbuffer"
	"github.com/sweeney/suricata/internal/sensor"
	"github.com/sweeney/suricata/internal/status"
	"github.com/sweeney/suricata/internal/telemetry"
	"github.com/sweeney/suricata/internal/web"
)

func main() {
	cfg, printState, err := parseFlags(os.Args[1:])
	if errors.Is(err, flag.ErrHelp) {
		os.Exit(0)
	}
	if err != nil {
		log.Fatalf("fatal: %v", err)
	}

	if err := run(cfg, printState); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

// parseFlags loads the config file named by -config and applies the flags
// given on the command line over it. The result is validated after the
// overrides, so a bad flag fails the same way a bad file does.
func parseFlags(args []string) (*config.Config, bool, error) {
	def := config.Default()
	fs := flag.NewFlagSet("suricata", flag.ContinueOnError)

	configPath := fs.String("config", "/etc/suricata/config.yaml", "YAML config file (missing file uses defaults)")
	poll := fs.Duration("poll", def.Sensor.Poll, "Sensor sampling interval")
	debounce := fs.Duration("debounce", def.Sensor.Debounce, "Debounce duration")
	broker := fs.String("broker", def.MQTT.Broker, "MQTT broker address")
	heartbeat := fs.Duration("heartbeat", def.Heartbeat.Interval, "Heartbeat interval (0 to disable)")
	serialPort := fs.String("serial", def.Sensor.Port, "Sensor board serial port (empty for simulated readings)")
	activeLow := fs.Bool("active-low", def.LED.ActiveLow, "Status light is common-anode / inverted")
	httpAddr := fs.String("http", def.HTTP.Addr, "HTTP status address (empty to disable)")
	printState := fs.Bool("print-state", false, "Print one sensor reading and exit")

	if err := fs.Parse(args); err != nil {
		return nil, false, err
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return nil, false, err
	}

	// Flags given on the command line override the file.
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "poll":
			cfg.Sensor.Poll = *poll
		case "debounce":
			cfg.Sensor.Debounce = *debounce
		case "broker":
			cfg.MQTT.Broker = *broker
		case "heartbeat":
			cfg.Heartbeat.Interval = *heartbeat
		case "serial":
			cfg.Sensor.Port = *serialPort
		case "active-low":
			cfg.LED.ActiveLow = *activeLow
		case "http":
			cfg.HTTP.Addr = *httpAddr
		}
	})

	if err := cfg.Validate(); err != nil {
		return nil, false, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, *printState, nil
}

// simulatedSample is what the node reads without a sensor board attached:
// a normally lit, quiet room and a healthy battery.
var simulatedSample = sensor.Raw{Light: 20000, Sound: 400, Battery: 350, TemperatureC: 21, HumidityPct: 45}

func openSource(cfg *config.Config) (sensor.Source, error) {
	if cfg.Sensor.Port == "" {
		log.Printf("sensor: no serial port configured, using simulated readings")
		return sensor.NewFakeSource(simulatedSample), nil
	}
	return sensor.OpenSerial(cfg.Sensor.Port, cfg.Sensor.Baud)
}

func run(cfg *config.Config, printState bool) error {
	source, err := openSource(cfg)
	if err != nil {
		return fmt.Errorf("init sensor: %w", err)
	}
	defer source.Close()

	// Print state mode
	if printState {
		raw, err := waitForSample(source, 5*time.Second)
		if err != nil {
			return fmt.Errorf("read sensor: %w", err)
		}
		fmt.Println(formatReading(sensor.Convert(raw)))
		return nil
	}

	// The light and the telemetry queue share one mask: both are touched
	// from the tick goroutine and the foreground loop.
	mask := &irq.Mask{}
	timer := irq.NewTickerTimer()

	engine, err := led.New(led.Config{
		RedPin:    cfg.LED.RedPin,
		GreenPin:  cfg.LED.GreenPin,
		BluePin:   cfg.LED.BluePin,
		ActiveLow: cfg.LED.ActiveLow,
	}, gpio.NewRealOpener(cfg.LED.Chip, cfg.PWMChannels()), timer, mask, led.WithTickObserver(metrics.ObserveLEDTick))
	if err != nil {
		return fmt.Errorf("init led: %w", err)
	}
	defer engine.Close()

	queue, err := rbuffer.New(make([]byte, cfg.Queue.Size), mask)
	if err != nil {
		return fmt.Errorf("init queue: %w", err)
	}

	bus := events.New()
	ind := indicator.NewManager(engine, bus)
	ind.Start()
	defer ind.Stop()

	if err := ind.Startup(context.Background()); err != nil {
		log.Printf("startup sequence: %v", err)
	}

	// Initialize MQTT
	opts := mqtt.DefaultOptions(cfg.MQTT.Broker)
	opts.ClientID = cfg.Node.ID
	opts.ConnectTimeout = cfg.MQTT.ConnectTimeout
	opts.PublishTimeout = cfg.MQTT.PublishTimeout
	opts.BufferSize = cfg.MQTT.BufferSize
	publisher, err := mqtt.NewRealPublisher(opts)
	if err != nil {
		return fmt.Errorf("init mqtt: %w", err)
	}
	defer publisher.Close()

	// Initialize status tracker (before STARTUP so snapshot is available)
	tracker := status.NewTracker(time.Now(), status.Config{
		PollMs:      cfg.Sensor.Poll.Milliseconds(),
		DebounceMs:  cfg.Sensor.Debounce.Milliseconds(),
		HeartbeatMs: cfg.Heartbeat.Interval.Milliseconds(),
		Broker:      cfg.MQTT.Broker,
		HTTPPort:    cfg.HTTP.Addr,
		SerialPort:  cfg.Sensor.Port,
		QueueSize:   cfg.Queue.Size,
		ActiveLow:   cfg.LED.ActiveLow,
	})
	if net := readNetworkInfo(); net != nil {
		tracker.SetNetwork(net)
	}
	tracker.SetMQTTConnected(publisher.IsConnected())

	// Publish startup event with full status snapshot
	snap := tracker.Snapshot()
	startupEvent := mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      "STARTUP",
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, "STARTUP", ""),
	}
	if err := publisher.PublishSystem(startupEvent); err != nil {
		log.Printf("failed to publish startup event: %v", err)
	} else {
		log.Printf("published startup event")
	}

	stager := telemetry.NewStager(queue)
	flusher := telemetry.NewFlusher(queue, publisher)

	ctx, cancel := context.WithCancel(context.Background())
	flushDone := make(chan struct{})
	go func() {
		flusher.Run(ctx, cfg.Queue.FlushInterval)
		close(flushDone)
	}()
	defer func() {
		cancel()
		<-flushDone
	}()

	// Start HTTP status server
	if cfg.HTTP.Addr != "" {
		srv := web.New(cfg.HTTP.Addr, tracker)
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("http server error: %v", err)
			}
		}()
		defer srv.Shutdown(context.Background())
		log.Printf("http status server listening on %s", cfg.HTTP.Addr)
	}

	log.Printf("started: poll=%v debounce=%v broker=%s heartbeat=%v queue=%dB",
		cfg.Sensor.Poll, cfg.Sensor.Debounce, cfg.MQTT.Broker, cfg.Heartbeat.Interval, cfg.Queue.Size)

	ticker := time.NewTicker(cfg.Sensor.Poll)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	return runLoop(loopDeps{
		source:     source,
		publisher:  publisher,
		mqttStatus: publisher,
		tracker:    tracker,
		bus:        bus,
		stager:     stager,
		flusher:    flusher,
		queue:      queue,
		engine:     engine,
		indicator:  ind,
		debounce:   cfg.Sensor.Debounce,
		heartbeat:  cfg.Heartbeat.Interval,
		now:        time.Now,
	}, ticker.C, sigCh)
}

// loopDeps is everything runLoop reads from or writes to. tracker, engine,
// indicator, flusher and queue may be nil.
type loopDeps struct {
	source     sensor.Source
	publisher  mqtt.Publisher
	mqttStatus mqtt.ConnectionStatus
	tracker    *status.Tracker
	bus        *events.Bus
	stager     *telemetry.Stager
	flusher    *telemetry.Flusher
	queue      *rbuffer.Queue
	engine     *led.Engine
	indicator  *indicator.Manager
	debounce   time.Duration
	heartbeat  time.Duration
	now        func() time.Time
}

func runLoop(d loopDeps, tick <-chan time.Time, sig <-chan os.Signal) error {
	startTime := d.now()
	detector := logic.NewDetector(d.debounce, startTime)
	linkUp := true
	if d.mqttStatus != nil {
		linkUp = d.mqttStatus.IsConnected()
	}
	readFailing := false

	for {
		select {
		case s := <-sig:
			log.Printf("received %v, shutting down", s)
			signalName := "UNKNOWN"
			if s == syscall.SIGINT {
				signalName = "SIGINT"
			} else if s == syscall.SIGTERM {
				signalName = "SIGTERM"
			}
			event := mqtt.SystemEvent{
				Timestamp: d.now(),
				Event:     "SHUTDOWN",
				Reason:    signalName,
				Retained:  true,
			}
			if d.tracker != nil {
				d.refresh(detector, linkUp)
				snap := d.tracker.Snapshot()
				event.RawPayload = status.FormatStatusEvent(snap, "SHUTDOWN", signalName)
			}
			if err := d.publisher.PublishSystem(event); err != nil {
				log.Printf("failed to publish shutdown event: %v", err)
			} else {
				log.Printf("published shutdown event")
			}
			return nil

		case <-tick:
			t := d.now()

			// Link state first, so a lost link is shown even while the
			// sensor is failing.
			if d.mqttStatus != nil {
				if up := d.mqttStatus.IsConnected(); up != linkUp {
					linkUp = up
					log.Printf("mqtt: link %s", linkLabel(up))
					d.bus.Publish(events.LinkStateChanged{Connected: up, Timestamp: t})
				}
			}

			raw, err := d.source.Read()
			if err != nil {
				if errors.Is(err, sensor.ErrNoSample) {
					continue
				}
				if !readFailing {
					log.Printf("sensor read error: %v", err)
					readFailing = true
				}
				metrics.IncSensorReadErrors()
				if d.tracker != nil {
					d.tracker.IncSensorErrors()
				}
				continue
			}
			if readFailing {
				log.Printf("sensor reads recovered")
				readFailing = false
			}
			if raw.Time.IsZero() {
				raw.Time = t
			}

			reading := sensor.Convert(raw)
			metrics.SetReading(reading)
			if d.tracker != nil {
				d.tracker.SetReading(reading)
			}
			if err := d.stager.Stage(reading); err != nil {
				log.Printf("telemetry: %v", err)
			}

			if detector.BatteryLevelChanged(reading.BatteryPct) {
				level := mqtt.BatteryLevel{
					Timestamp: t,
					Percent:   reading.BatteryPct,
					State:     logic.BatteryStateOf(reading.BatteryPct),
				}
				if err := d.publisher.PublishBattery(level); err != nil {
					log.Printf("battery publish error: %v", err)
				}
			}

			evs := detector.Process(logic.Input{
				BatteryPct: reading.BatteryPct,
				Brightness: reading.Brightness,
				Time:       t,
			})
			for _, e := range evs {
				log.Printf("event: %s (battery=%s brightness=%s)", e.Type, e.Battery, e.Brightness)
				switch e.Type {
				case logic.EventBrightnessChanged:
					d.bus.Publish(events.BrightnessChanged{Brightness: e.Brightness, Prev: e.PrevBrightness, Timestamp: e.Timestamp})
				default:
					d.bus.Publish(events.BatteryStateChanged{State: e.Battery, Prev: e.PrevBattery, Percent: reading.BatteryPct, Timestamp: e.Timestamp})
				}
			}

			d.refresh(detector, linkUp)

			if !detector.IsBaselined() {
				// Still waiting for baseline
				continue
			}

			// Check for heartbeat
			if hbData := detector.CheckHeartbeat(t, d.heartbeat); hbData != nil {
				log.Printf("heartbeat: uptime=%v ok=%d low=%d critical=%d brightness=%d",
					hbData.Uptime, hbData.Counts.BatteryOK, hbData.Counts.BatteryLow, hbData.Counts.BatteryCritical, hbData.Counts.BrightnessChanged)

				hbEvent := mqtt.SystemEvent{
					Timestamp: hbData.Timestamp,
					Event:     "HEARTBEAT",
				}
				if d.tracker != nil {
					// Refresh network info for heartbeat
					if net := readNetworkInfo(); net != nil {
						d.tracker.SetNetwork(net)
					}
					snap := d.tracker.Snapshot()
					hbEvent.RawPayload = status.FormatStatusEvent(snap, "HEARTBEAT", "")
				}
				if err := d.publisher.PublishSystem(hbEvent); err != nil {
					log.Printf("heartbeat publish error: %v", err)
				}
			}
		}
	}
}

// refresh pushes the current node state to the tracker and metrics.
func (d loopDeps) refresh(detector *logic.Detector, linkUp bool) {
	metrics.SetMQTTConnected(linkUp)

	var ledStatus led.Status
	if d.engine != nil {
		ledStatus = d.engine.Status()
		metrics.SetLED(ledStatus)
	}
	q := status.QueueInfo{Staged: d.stager.Staged(), Dropped: d.stager.Dropped()}
	if d.queue != nil {
		q.Used = d.queue.UsedSpace()
		q.Free = d.queue.FreeSpace()
		q.Cap = d.queue.Cap()
		metrics.SetQueueUsed(q.Used)
	}
	if d.flusher != nil {
		q.Published = d.flusher.Published()
	}

	if d.tracker == nil {
		return
	}
	battery, brightness := detector.CurrentState()
	d.tracker.Update(battery, brightness, detector.IsBaselined(), detector.EventCountsSnapshot())
	d.tracker.SetMQTTConnected(linkUp)
	pattern := ""
	if d.indicator != nil {
		pattern = d.indicator.Last()
	}
	d.tracker.SetLED(ledStatus, pattern)
	d.tracker.SetQueue(q)
}

func linkLabel(up bool) string {
	if up {
		return "up"
	}
	return "down"
}

// waitForSample polls source until it has a sample or timeout passes.
func waitForSample(source sensor.Source, timeout time.Duration) (sensor.Raw, error) {
	deadline := time.Now().Add(timeout)
	for {
		raw, err := source.Read()
		if !errors.Is(err, sensor.ErrNoSample) || time.Now().After(deadline) {
			return raw, err
		}
		time.Sleep(50 * time.Millisecond)
	}
}

func formatReading(r sensor.Reading) string {
	return fmt.Sprintf("light: %d (%.0f lux, %s), sound: %d (%.1f dB), battery: %d (%d%%, %s), temperature: %.1fC, humidity: %.0f%%",
		r.Light, r.Lux, r.Brightness, r.Sound, r.SoundDB, r.Battery, r.BatteryPct, logic.BatteryStateOf(r.BatteryPct), r.TemperatureC, r.HumidityPct)
}

// pi-helper env var names (written to /run/pi-helper.env).
const (
	envNetworkType       = "NETWORK_TYPE"
	envNetworkIP         = "NETWORK_IP"
	envNetworkStatus     = "NETWORK_STATUS"
	envNetworkGateway    = "NETWORK_GATEWAY"
	envNetworkWifiStatus = "NETWORK_WIFI_STATUS"
	envNetworkWifiSSID   = "NETWORK_WIFI_SSID"
)

func readNetworkInfo() *status.NetworkInfo {
	s := os.Getenv(envNetworkStatus)
	if s == "" {
		return nil
	}
	return &status.NetworkInfo{
		Type:       os.Getenv(envNetworkType),
		IP:         os.Getenv(envNetworkIP),
		Status:     s,
		Gateway:    os.Getenv(envNetworkGateway),
		WifiStatus: os.Getenv(envNetworkWifiStatus),
		SSID:       os.Getenv(envNetworkWifiSSID),
	}
}
