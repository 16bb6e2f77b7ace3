package logic

import (
	"time"

	"github.com/sweeney/suricata/internal/sensor"
)

// Detector tracks state and detects debounced transitions.
type Detector struct {
	debounceDuration time.Duration
	battery          debounced[BatteryState]
	brightness       debounced[sensor.Brightness]
	baselined        bool
	startTime        time.Time
	eventCounts      EventCounts
	lastHeartbeat    time.Time

	lastLevel     uint8
	levelReported bool
}

// NewDetector creates a new transition detector with the given debounce duration.
// The startTime is used for calculating uptime in heartbeat events.
func NewDetector(debounceDuration time.Duration, startTime time.Time) *Detector {
	return &Detector{
		debounceDuration: debounceDuration,
		startTime:        startTime,
		lastHeartbeat:    startTime,
	}
}

// Process takes a new input sample and returns any events that should be emitted.
// Events are only returned after baseline is established and on state transitions.
func (d *Detector) Process(input Input) []Event {
	prevBattery := d.battery.Stable
	prevBrightness := d.brightness.Stable

	batteryChanged := step(&d.battery, BatteryStateOf(input.BatteryPct), input.Time, d.debounceDuration)
	brightnessChanged := step(&d.brightness, input.Brightness, input.Time, d.debounceDuration)

	if !d.baselined {
		if d.battery.Baselined && d.brightness.Baselined {
			d.baselined = true
		}
		return nil // No events until baseline established
	}

	var events []Event

	// Battery first, then brightness if both change on the same sample.
	if batteryChanged {
		events = append(events, Event{
			Timestamp:      input.Time,
			Type:           batteryEventType(d.battery.Stable),
			Battery:        d.battery.Stable,
			Brightness:     d.brightness.Stable,
			PrevBattery:    prevBattery,
			PrevBrightness: d.brightness.Stable,
		})
	}
	if brightnessChanged {
		events = append(events, Event{
			Timestamp:      input.Time,
			Type:           EventBrightnessChanged,
			Battery:        d.battery.Stable,
			Brightness:     d.brightness.Stable,
			PrevBattery:    d.battery.Stable,
			PrevBrightness: prevBrightness,
		})
	}

	for _, e := range events {
		switch e.Type {
		case EventBatteryOK:
			d.eventCounts.BatteryOK++
		case EventBatteryLow:
			d.eventCounts.BatteryLow++
		case EventBatteryCritical:
			d.eventCounts.BatteryCritical++
		case EventBrightnessChanged:
			d.eventCounts.BrightnessChanged++
		}
	}

	return events
}

// step applies one debounce step to v.
// Returns true if the stable value changed after the baseline was set.
func step[T comparable](v *debounced[T], next T, now time.Time, debounce time.Duration) bool {
	if !v.Baselined {
		if !v.HasPending || v.Pending != next {
			// Start observing, or restart after a change during baseline
			v.Pending = next
			v.HasPending = true
			v.PendingSince = now
			return false
		}
		if now.Sub(v.PendingSince) >= debounce {
			v.Stable = next
			v.Baselined = true
			v.HasPending = false
		}
		return false
	}

	if next == v.Stable {
		// No change from stable state, clear any pending
		v.HasPending = false
		return false
	}

	if !v.HasPending || v.Pending != next {
		v.Pending = next
		v.HasPending = true
		v.PendingSince = now
		return false
	}

	if now.Sub(v.PendingSince) >= debounce {
		v.Stable = next
		v.HasPending = false
		return true
	}
	return false
}

func batteryEventType(s BatteryState) EventType {
	switch s {
	case BatteryLow:
		return EventBatteryLow
	case BatteryCritical:
		return EventBatteryCritical
	default:
		return EventBatteryOK
	}
}

// IsBaselined returns whether the detector has established a baseline.
func (d *Detector) IsBaselined() bool {
	return d.baselined
}

// CurrentState returns the current stable states.
func (d *Detector) CurrentState() (BatteryState, sensor.Brightness) {
	return d.battery.Stable, d.brightness.Stable
}

// EventCountsSnapshot returns a copy of the event counters.
func (d *Detector) EventCountsSnapshot() EventCounts {
	return d.eventCounts
}

// BatteryLevelChanged reports whether pct differs from the last level it
// was called with. The first call always reports a change.
func (d *Detector) BatteryLevelChanged(pct uint8) bool {
	if d.levelReported && pct == d.lastLevel {
		return false
	}
	d.lastLevel = pct
	d.levelReported = true
	return true
}

// CheckHeartbeat returns heartbeat data if the interval has elapsed since the
// last heartbeat (or startup). Returns nil if not yet baselined, if the
// interval has not elapsed, or if interval is <= 0 (disabled).
func (d *Detector) CheckHeartbeat(now time.Time, interval time.Duration) *HeartbeatData {
	if interval <= 0 {
		return nil
	}

	if !d.baselined {
		return nil
	}

	if now.Sub(d.lastHeartbeat) < interval {
		return nil
	}

	d.lastHeartbeat = now
	return &HeartbeatData{
		Timestamp: now,
		Uptime:    now.Sub(d.startTime),
		Counts:    d.eventCounts,
	}
}
