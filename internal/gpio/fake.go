package gpio

import (
	"fmt"
	"sync"
)

// Write is one recorded write to a FakePin.
type Write struct {
	Analog bool  // true for Analog, false for Digital
	Duty   uint8 // Analog only
	High   bool  // Digital only
}

// FakePin is a test double that records every write.
type FakePin struct {
	mu sync.Mutex

	// Number is the pin number the fake was opened for.
	Number int

	writes []Write
	duty   uint8
	high   bool
	pwm    bool
	closed bool

	// AnalogError, if set, will be returned by Analog.
	AnalogError error

	// DigitalError, if set, will be returned by Digital.
	DigitalError error
}

// NewFakePin creates a FakePin for the given pin number.
func NewFakePin(number int) *FakePin {
	return &FakePin{Number: number}
}

// Analog records a PWM write.
func (f *FakePin) Analog(duty uint8) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.AnalogError != nil {
		return f.AnalogError
	}
	f.writes = append(f.writes, Write{Analog: true, Duty: duty})
	f.duty = duty
	f.pwm = true
	return nil
}

// Digital records a plain output write and leaves PWM mode.
func (f *FakePin) Digital(high bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.DigitalError != nil {
		return f.DigitalError
	}
	f.writes = append(f.writes, Write{High: high})
	f.high = high
	f.pwm = false
	return nil
}

// Close marks the pin as closed.
func (f *FakePin) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

// Writes returns a copy of all recorded writes.
func (f *FakePin) Writes() []Write {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Write(nil), f.writes...)
}

// Last returns the most recent write and whether there was one.
func (f *FakePin) Last() (Write, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.writes) == 0 {
		return Write{}, false
	}
	return f.writes[len(f.writes)-1], true
}

// Duty returns the last analog duty and whether the pin is in PWM mode.
func (f *FakePin) Duty() (uint8, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.duty, f.pwm
}

// High returns the last digital level.
func (f *FakePin) High() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.high
}

// Closed reports whether Close was called.
func (f *FakePin) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// Reset clears recorded writes.
func (f *FakePin) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes = nil
}

// FakeBank hands out FakePins by number.
type FakeBank struct {
	mu   sync.Mutex
	pins map[int]*FakePin

	// OpenError, if set, will be returned by Open.
	OpenError error
}

// NewFakeBank creates an empty FakeBank.
func NewFakeBank() *FakeBank {
	return &FakeBank{pins: make(map[int]*FakePin)}
}

// Open returns the FakePin for pin, creating it on first use.
func (b *FakeBank) Open(pin int) (Pin, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.OpenError != nil {
		return nil, b.OpenError
	}
	if !ValidPin(pin) {
		return nil, fmt.Errorf("pin %d out of range 0..%d", pin, MaxPin)
	}
	p, ok := b.pins[pin]
	if !ok {
		p = NewFakePin(pin)
		b.pins[pin] = p
	}
	return p, nil
}

// Pin returns the FakePin opened for pin, or nil.
func (b *FakeBank) Pin(pin int) *FakePin {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pins[pin]
}
