// Package status provides a thread-safe status tracker for the sensor node.
// It is read by the HTTP handlers and the heartbeat publisher.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/suricata/internal/led"
	"github.com/sweeney/suricata/internal/logic"
	"github.com/sweeney/suricata/internal/sensor"
)

// NetworkInfo contains network state.
type NetworkInfo struct {
	Type       string
	IP         string
	Status     string
	Gateway    string
	WifiStatus string
	SSID       string
}

// Config contains daemon configuration for display.
type Config struct {
	PollMs      int64
	DebounceMs  int64
	HeartbeatMs int64
	Broker      string
	HTTPPort    string
	SerialPort  string // empty when running on the simulated source
	QueueSize   int
	ActiveLow   bool
}

// QueueInfo is the state of the telemetry queue and its two ends.
type QueueInfo struct {
	Used      int
	Free      int
	Cap       int
	Staged    uint64
	Dropped   uint64
	Published uint64
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type, safe to use after the lock is released.
type Snapshot struct {
	Reading       *sensor.Reading // nil until the first sample
	SensorErrors  uint64
	Battery       logic.BatteryState
	Brightness    sensor.Brightness
	Baselined     bool
	Counts        logic.EventCounts
	LED           led.Status
	Pattern       string
	Queue         QueueInfo
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Network       *NetworkInfo
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			Config:    cfg,
		},
	}
}

// Update sets the debounced states, baseline status, and event counts.
// Called from runLoop on every tick.
func (t *Tracker) Update(battery logic.BatteryState, brightness sensor.Brightness, baselined bool, counts logic.EventCounts) {
	t.mu.Lock()
	t.snap.Battery = battery
	t.snap.Brightness = brightness
	t.snap.Baselined = baselined
	t.snap.Counts = counts
	t.mu.Unlock()
}

// SetReading records the latest converted sample.
func (t *Tracker) SetReading(r sensor.Reading) {
	t.mu.Lock()
	t.snap.Reading = &r
	t.mu.Unlock()
}

// IncSensorErrors counts a failed sensor read.
func (t *Tracker) IncSensorErrors() {
	t.mu.Lock()
	t.snap.SensorErrors++
	t.mu.Unlock()
}

// SetLED records the lighting engine status and the last pattern shown.
func (t *Tracker) SetLED(s led.Status, pattern string) {
	t.mu.Lock()
	t.snap.LED = s
	t.snap.Pattern = pattern
	t.mu.Unlock()
}

// SetQueue records the telemetry queue state.
func (t *Tracker) SetQueue(q QueueInfo) {
	t.mu.Lock()
	t.snap.Queue = q
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// SetNetwork sets the network info.
func (t *Tracker) SetNetwork(info *NetworkInfo) {
	t.mu.Lock()
	t.snap.Network = info
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	if s.Reading != nil {
		r := *s.Reading
		s.Reading = &r
	}
	t.mu.RUnlock()
	s.Now = time.Now()
	return s
}
