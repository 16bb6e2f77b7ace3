//go:build !linux

package gpio

import "errors"

// PWMChannel locates a sysfs PWM channel.
type PWMChannel struct {
	Chip    string
	Channel int
}

// RealPin is not available on non-Linux platforms.
type RealPin struct{}

// NewRealOpener returns an Opener that always fails on non-Linux platforms.
func NewRealOpener(chip string, pwm map[int]PWMChannel) Opener {
	return func(pin int) (Pin, error) {
		p, err := NewRealPin(chip, pin, pwm)
		if err != nil {
			return nil, err
		}
		return p, nil
	}
}

// NewRealPin returns an error on non-Linux platforms.
func NewRealPin(chip string, pin int, pwm map[int]PWMChannel) (*RealPin, error) {
	return nil, errors.New("gpio: not supported on this platform (requires Linux)")
}

// Analog is not implemented on non-Linux platforms.
func (p *RealPin) Analog(duty uint8) error {
	return errors.New("gpio: not supported")
}

// Digital is not implemented on non-Linux platforms.
func (p *RealPin) Digital(high bool) error {
	return errors.New("gpio: not supported")
}

// Close is not implemented on non-Linux platforms.
func (p *RealPin) Close() error {
	return nil
}
