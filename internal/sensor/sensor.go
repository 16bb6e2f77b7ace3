// Package sensor reads the node's ambient sensors and converts raw ADC
// values into engineering units.
package sensor

import (
	"errors"
	"time"

	"github.com/chewxy/math32"
)

var (
	// ErrNoSample is returned by Read before the first sample arrives.
	ErrNoSample = errors.New("sensor: no sample yet")

	// ErrClosed is returned by Read after Close.
	ErrClosed = errors.New("sensor: source closed")
)

const (
	// LightADCMax and SoundADCMax are full scale for the 16-bit light and
	// microphone channels.
	LightADCMax = 65535
	SoundADCMax = 65535

	// BatteryADCMax is full scale for the 10-bit battery divider channel.
	BatteryADCMax = 1023

	// ADCRefVolts is the ADC reference voltage.
	ADCRefVolts = 3.3

	// MicRefRMSVolts is the microphone output at 94 dB SPL.
	MicRefRMSVolts = 0.07943

	// BatteryRawEmpty and BatteryRawFull bound the battery reading.
	BatteryRawEmpty = 260
	BatteryRawFull  = 370

	// MaxLux caps the light conversion, which diverges as the reading
	// approaches zero.
	MaxLux = 120000

	luxScalar   = 21359957977
	luxExponent = -2.012
)

// Raw is one sample as reported by the sensor board.
type Raw struct {
	Time         time.Time
	Light        uint16
	Sound        uint16
	Battery      uint16
	TemperatureC float32
	HumidityPct  float32
}

// Brightness is a coarse light level.
type Brightness int

const (
	Dark Brightness = iota
	Dim
	Normal
	Bright

	brightnessStates = 4
)

func (b Brightness) String() string {
	switch b {
	case Dark:
		return "DARK"
	case Dim:
		return "DIM"
	case Normal:
		return "NORMAL"
	case Bright:
		return "BRIGHT"
	}
	return "UNKNOWN"
}

// Reading is a Raw sample plus its converted values.
type Reading struct {
	Raw
	Lux        float32
	Brightness Brightness
	SoundDB    float32
	BatteryPct uint8
}

// Source provides samples.
type Source interface {
	// Read returns the most recent sample.
	Read() (Raw, error)

	// Close releases the underlying device.
	Close() error
}

// Convert derives every engineering value from r.
func Convert(r Raw) Reading {
	return Reading{
		Raw:        r,
		Lux:        Lux(r.Light),
		Brightness: BrightnessOf(r.Light),
		SoundDB:    SoundDB(r.Sound),
		BatteryPct: BatteryPercent(r.Battery),
	}
}

// Lux converts a light reading with the LDR power-law calibration.
func Lux(raw uint16) float32 {
	if raw == 0 {
		return MaxLux
	}
	lux := luxScalar * math32.Pow(float32(raw), luxExponent)
	return math32.Min(lux, MaxLux)
}

// BrightnessOf maps a light reading onto the four brightness states. The
// LDR reading falls as light rises.
func BrightnessOf(raw uint16) Brightness {
	n := float32(brightnessStates)
	s := int(n - n*float32(raw)/LightADCMax)
	if s < int(Dark) {
		s = int(Dark)
	}
	if s > int(Bright) {
		s = int(Bright)
	}
	return Brightness(s)
}

// SoundVolts converts a microphone reading to volts.
func SoundVolts(raw uint16) float32 {
	return float32(raw) * ADCRefVolts / SoundADCMax
}

// SoundDB converts a microphone reading to dB SPL. A zero reading is
// reported as 0 dB.
func SoundDB(raw uint16) float32 {
	v := SoundVolts(raw)
	if v <= 0 {
		return 0
	}
	return 94 + 20*math32.Log10(v/MicRefRMSVolts)
}

// BatteryPercent maps the battery reading linearly from BatteryRawEmpty..
// BatteryRawFull onto 0..100, clamped.
func BatteryPercent(raw uint16) uint8 {
	r := int(raw)
	if r <= BatteryRawEmpty {
		return 0
	}
	if r >= BatteryRawFull {
		return 100
	}
	return uint8((r - BatteryRawEmpty) * 100 / (BatteryRawFull - BatteryRawEmpty))
}
