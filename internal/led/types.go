package led

import (
	"fmt"

	"github.com/chewxy/math32"
)

// Color is a drive level per channel, 0 (off) to 255 (full).
type Color struct {
	R, G, B uint8
}

// Common colors.
var (
	Off   = Color{}
	Red   = Color{R: 255}
	Green = Color{G: 255}
	Blue  = Color{B: 255}
	Amber = Color{R: 255, G: 120}
	White = Color{R: 255, G: 255, B: 255}
)

// Scale returns c with every channel multiplied by level, clamped to [0, 1]
// and rounded to the nearest step.
func (c Color) Scale(level float32) Color {
	level = math32.Max(0, math32.Min(1, level))
	return Color{
		R: uint8(math32.Round(float32(c.R) * level)),
		G: uint8(math32.Round(float32(c.G) * level)),
		B: uint8(math32.Round(float32(c.B) * level)),
	}
}

// String returns c as #rrggbb.
func (c Color) String() string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

// Mode is the active effect.
type Mode int

const (
	ModeIdle Mode = iota
	ModeBlink
	ModeFade
)

func (m Mode) String() string {
	switch m {
	case ModeIdle:
		return "IDLE"
	case ModeBlink:
		return "BLINK"
	case ModeFade:
		return "FADE"
	}
	return "UNKNOWN"
}

// FadeDirection selects whether a fade brightens or dims.
type FadeDirection int

const (
	FadeIn FadeDirection = iota + 1
	FadeOut
)

func (d FadeDirection) String() string {
	switch d {
	case FadeIn:
		return "IN"
	case FadeOut:
		return "OUT"
	}
	return ""
}

// Status is a point-in-time view of the engine.
type Status struct {
	Mode  Mode
	Color Color // last color driven; Off after TurnOff

	// Blink only.
	FrequencyHz uint16
	Repeat      uint8
	HalfCycles  int

	// Fade only.
	Direction FadeDirection
	Level     float32

	Ticks       uint64
	Offs        uint64 // off transitions since New
	DriveErrors uint64
}

// Status returns the current state. A nil engine reports the zero Status.
func (e *Engine) Status() Status {
	if !e.bound() {
		return Status{}
	}

	e.mask.Disable()
	defer e.mask.Enable()

	s := Status{
		Mode:        e.mode,
		Color:       e.current,
		Ticks:       e.ticks,
		Offs:        e.offs,
		DriveErrors: e.driveErrors,
	}
	switch e.mode {
	case ModeBlink:
		s.FrequencyHz = e.blink.frequencyHz
		s.Repeat = e.blink.repeat
		s.HalfCycles = e.blink.halfCycles
	case ModeFade:
		s.Direction = e.fade.direction
		s.Level = e.fade.level
	}
	return s
}
