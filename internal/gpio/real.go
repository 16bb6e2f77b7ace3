//go:build linux

package gpio

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/warthog618/go-gpiocdev"
)

// DefaultPWMPeriodNs is the PWM period used for analog output (1 kHz).
const DefaultPWMPeriodNs = 1_000_000

// PWMChannel locates a sysfs PWM channel, e.g. /sys/class/pwm/pwmchip0 and 1.
type PWMChannel struct {
	Chip    string
	Channel int
}

// RealPin drives a pin on actual hardware. Digital mode requests the pin as
// a GPIO output line; analog mode hands the pin to its PWM channel. A pin
// without a PWM channel is driven digitally in analog mode: any non-zero
// duty turns it fully on.
type RealPin struct {
	chip     string
	offset   int
	pwm      *PWMChannel
	periodNs int

	line       *gpiocdev.Line
	pwmReady   bool
	pwmEnabled bool
}

// NewRealOpener returns an Opener for lines on the named GPIO chip. pwm maps
// pin numbers to their PWM channels; pins not in the map have no PWM.
func NewRealOpener(chip string, pwm map[int]PWMChannel) Opener {
	return func(pin int) (Pin, error) {
		p, err := NewRealPin(chip, pin, pwm)
		if err != nil {
			return nil, err
		}
		return p, nil
	}
}

// NewRealPin creates a pin on the given chip and drives it low.
func NewRealPin(chip string, pin int, pwm map[int]PWMChannel) (*RealPin, error) {
	if !ValidPin(pin) {
		return nil, fmt.Errorf("pin %d out of range 0..%d", pin, MaxPin)
	}

	p := &RealPin{
		chip:     chip,
		offset:   pin,
		periodNs: DefaultPWMPeriodNs,
	}
	if ch, ok := pwm[pin]; ok {
		p.pwm = &ch
	}

	if err := p.Digital(false); err != nil {
		return nil, err
	}
	return p, nil
}

// Analog drives the pin with a duty cycle.
func (p *RealPin) Analog(duty uint8) error {
	if p.pwm == nil {
		return p.Digital(duty > 0)
	}

	// The PWM function owns the pin while it is enabled.
	if p.line != nil {
		if err := p.line.Close(); err != nil {
			return fmt.Errorf("release pin %d: %w", p.offset, err)
		}
		p.line = nil
	}

	if err := p.setupPWM(); err != nil {
		return err
	}

	dutyNs := p.periodNs * int(duty) / 255
	if err := p.writePWM("duty_cycle", dutyNs); err != nil {
		return err
	}
	if !p.pwmEnabled {
		if err := p.writePWM("enable", 1); err != nil {
			return err
		}
		p.pwmEnabled = true
	}
	return nil
}

// Digital stops PWM on the pin and drives it as a plain output.
func (p *RealPin) Digital(high bool) error {
	if p.pwmEnabled {
		if err := p.writePWM("enable", 0); err != nil {
			return err
		}
		p.pwmEnabled = false
	}

	value := 0
	if high {
		value = 1
	}

	if p.line == nil {
		line, err := gpiocdev.RequestLine(p.chip, p.offset, gpiocdev.AsOutput(value))
		if err != nil {
			return fmt.Errorf("request pin %d: %w", p.offset, err)
		}
		p.line = line
		return nil
	}

	if err := p.line.SetValue(value); err != nil {
		return fmt.Errorf("set pin %d: %w", p.offset, err)
	}
	return nil
}

// Close disables PWM, reconfigures the line as an input so the pin is left
// in its boot state, and releases it.
func (p *RealPin) Close() error {
	var errs []error

	if p.pwmEnabled {
		if err := p.writePWM("enable", 0); err != nil {
			errs = append(errs, err)
		}
		p.pwmEnabled = false
	}
	if p.line != nil {
		if err := p.line.Reconfigure(gpiocdev.AsInput); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure pin %d: %w", p.offset, err))
		}
		if err := p.line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close pin %d: %w", p.offset, err))
		}
		p.line = nil
	}

	return errors.Join(errs...)
}

func (p *RealPin) channelPath() string {
	return filepath.Join(p.pwm.Chip, "pwm"+strconv.Itoa(p.pwm.Channel))
}

// setupPWM exports the channel and sets its period once.
func (p *RealPin) setupPWM() error {
	if p.pwmReady {
		return nil
	}

	if _, err := os.Stat(p.channelPath()); os.IsNotExist(err) {
		export := filepath.Join(p.pwm.Chip, "export")
		if err := os.WriteFile(export, []byte(strconv.Itoa(p.pwm.Channel)), 0644); err != nil {
			return fmt.Errorf("export pwm channel %d: %w", p.pwm.Channel, err)
		}
	}

	if err := p.writePWM("period", p.periodNs); err != nil {
		return err
	}
	p.pwmReady = true
	return nil
}

func (p *RealPin) writePWM(attr string, value int) error {
	path := filepath.Join(p.channelPath(), attr)
	if err := os.WriteFile(path, []byte(strconv.Itoa(value)), 0644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
