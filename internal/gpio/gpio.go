// Package gpio provides the output channels behind the RGB status indicator.
// The real implementation uses the Linux GPIO character device for digital
// output and sysfs PWM for duty-cycle output.
// The fake implementation allows testing without hardware.
package gpio

// Pin drives one output channel.
type Pin interface {
	// Analog drives the channel with a PWM duty cycle, 0..255.
	Analog(duty uint8) error

	// Digital reconfigures the channel as a plain output, stopping any PWM,
	// and drives it to the given level.
	Digital(high bool) error

	// Close releases the channel.
	Close() error
}

// Opener opens the channel wired to a pin number.
type Opener func(pin int) (Pin, error)

// MaxPin is the highest usable pin number (BCM numbering).
const MaxPin = 27

// Default RGB indicator pins (BCM numbering).
const (
	DefaultPinRed   = 17
	DefaultPinGreen = 27
	DefaultPinBlue  = 22
)

// ValidPin reports whether pin is in the supported range.
func ValidPin(pin int) bool {
	return pin >= 0 && pin <= MaxPin
}
