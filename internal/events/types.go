package events

import (
	"time"

	"github.com/sweeney/suricata/internal/logic"
	"github.com/sweeney/suricata/internal/sensor"
)

// Event type constants for kelindar/event.
const (
	TypeBatteryStateChanged uint32 = iota + 1
	TypeBrightnessChanged
	TypeLinkStateChanged
)

// Event interface required by kelindar/event.
type Event interface {
	Type() uint32
}

// BatteryStateChanged is published on a debounced battery transition.
type BatteryStateChanged struct {
	State     logic.BatteryState
	Prev      logic.BatteryState
	Percent   uint8
	Timestamp time.Time
}

// Type returns the event type identifier for BatteryStateChanged.
func (e BatteryStateChanged) Type() uint32 { return TypeBatteryStateChanged }

// BrightnessChanged is published on a debounced ambient light transition.
type BrightnessChanged struct {
	Brightness sensor.Brightness
	Prev       sensor.Brightness
	Timestamp  time.Time
}

// Type returns the event type identifier for BrightnessChanged.
func (e BrightnessChanged) Type() uint32 { return TypeBrightnessChanged }

// LinkStateChanged is published when the outbound link goes up or down.
type LinkStateChanged struct {
	Connected bool
	Timestamp time.Time
}

// Type returns the event type identifier for LinkStateChanged.
func (e LinkStateChanged) Type() uint32 { return TypeLinkStateChanged }
