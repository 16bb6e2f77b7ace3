// Package logic contains pure state tracking for the node's battery and
// ambient light. This package does no I/O (no GPIO, MQTT, OS, or time.Sleep).
// Time is always injectable via time.Time parameters.
package logic

import (
	"time"

	"github.com/sweeney/suricata/internal/sensor"
)

// BatteryState is a coarse battery level.
type BatteryState string

const (
	BatteryOK       BatteryState = "OK"
	BatteryLow      BatteryState = "LOW"
	BatteryCritical BatteryState = "CRITICAL"
)

// Battery thresholds in percent. At or above LowBatteryPct is OK; at or
// above CriticalBatteryPct is LOW; anything below is CRITICAL.
const (
	LowBatteryPct      = 20
	CriticalBatteryPct = 10
)

// BatteryStateOf classifies a battery percentage.
func BatteryStateOf(pct uint8) BatteryState {
	switch {
	case pct >= LowBatteryPct:
		return BatteryOK
	case pct >= CriticalBatteryPct:
		return BatteryLow
	default:
		return BatteryCritical
	}
}

// EventType represents a state transition event.
type EventType string

const (
	EventBatteryOK         EventType = "BATTERY_OK"
	EventBatteryLow        EventType = "BATTERY_LOW"
	EventBatteryCritical   EventType = "BATTERY_CRITICAL"
	EventBrightnessChanged EventType = "BRIGHTNESS_CHANGED"
)

// Event represents a debounced state transition.
type Event struct {
	Timestamp  time.Time
	Type       EventType
	Battery    BatteryState
	Brightness sensor.Brightness

	// Previous state of whichever value changed.
	PrevBattery    BatteryState
	PrevBrightness sensor.Brightness
}

// Input represents a single converted sample.
type Input struct {
	BatteryPct uint8
	Brightness sensor.Brightness
	Time       time.Time
}

// debounced tracks the stable and pending value of one input.
type debounced[T comparable] struct {
	// Current stable (debounced) value
	Stable T
	// Pending value during debounce
	Pending    T
	HasPending bool
	// Time when the pending value was first observed
	PendingSince time.Time
	// Whether we have established a baseline
	Baselined bool
}

// EventCounts tracks the number of each event type since startup.
type EventCounts struct {
	BatteryOK         int
	BatteryLow        int
	BatteryCritical   int
	BrightnessChanged int
}

// HeartbeatData contains information for a heartbeat event.
type HeartbeatData struct {
	Timestamp time.Time
	Uptime    time.Duration
	Counts    EventCounts
}
