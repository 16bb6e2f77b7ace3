package mqtt

import "sync"

// FakePublisher records published messages for test assertions.
// It is safe for concurrent use; read the recorded slices through the
// accessor methods while other goroutines may still publish.
type FakePublisher struct {
	mu sync.Mutex

	telemetry      [][]byte
	battery        []BatteryLevel
	batteryPayload [][]byte
	system         []SystemEvent
	systemPayload  [][]byte
	closed         bool
	connected      bool

	// PublishError, if set, will be returned by PublishTelemetry and PublishBattery.
	PublishError error

	// PublishSystemError, if set, will be returned by PublishSystem.
	PublishSystemError error
}

// NewFakePublisher creates a connected FakePublisher for testing.
func NewFakePublisher() *FakePublisher {
	return &FakePublisher{connected: true}
}

// PublishTelemetry records the payload.
func (f *FakePublisher) PublishTelemetry(payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.PublishError != nil {
		return f.PublishError
	}
	f.telemetry = append(f.telemetry, append([]byte(nil), payload...))
	return nil
}

// PublishBattery records the battery level.
func (f *FakePublisher) PublishBattery(level BatteryLevel) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.PublishError != nil {
		return f.PublishError
	}
	payload, err := FormatBatteryPayload(level)
	if err != nil {
		return err
	}
	f.battery = append(f.battery, level)
	f.batteryPayload = append(f.batteryPayload, payload)
	return nil
}

// PublishSystem records the system event.
func (f *FakePublisher) PublishSystem(event SystemEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.PublishSystemError != nil {
		return f.PublishSystemError
	}
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return err
	}
	f.system = append(f.system, event)
	f.systemPayload = append(f.systemPayload, payload)
	return nil
}

// Close marks the publisher as closed.
func (f *FakePublisher) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

// IsConnected reports whether the fake publisher is "connected".
func (f *FakePublisher) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

// SetConnected sets the value IsConnected returns.
func (f *FakePublisher) SetConnected(up bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = up
}

// SetPublishError sets the error returned by PublishTelemetry and PublishBattery.
func (f *FakePublisher) SetPublishError(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.PublishError = err
}

// Telemetry returns a copy of the recorded telemetry payloads.
func (f *FakePublisher) Telemetry() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]byte(nil), f.telemetry...)
}

// Battery returns a copy of the recorded battery levels.
func (f *FakePublisher) Battery() []BatteryLevel {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]BatteryLevel(nil), f.battery...)
}

// BatteryPayloads returns a copy of the recorded battery payloads.
func (f *FakePublisher) BatteryPayloads() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]byte(nil), f.batteryPayload...)
}

// SystemEvents returns a copy of the recorded system events.
func (f *FakePublisher) SystemEvents() []SystemEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]SystemEvent(nil), f.system...)
}

// SystemPayloads returns a copy of the recorded system payloads.
func (f *FakePublisher) SystemPayloads() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]byte(nil), f.systemPayload...)
}

// Closed reports whether Close was called.
func (f *FakePublisher) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// Reset clears recorded messages and errors. The publisher is left connected.
func (f *FakePublisher) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.telemetry = nil
	f.battery = nil
	f.batteryPayload = nil
	f.system = nil
	f.systemPayload = nil
	f.closed = false
	f.connected = true
	f.PublishError = nil
	f.PublishSystemError = nil
}
