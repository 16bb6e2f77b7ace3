// Package led drives one RGB status light through steady, blink and fade
// effects. A timer handler advances the active effect at TickRateHz; the
// foreground configures effects. Both sides share state under an irq.Mask.
package led

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/chewxy/math32"

	"github.com/sweeney/suricata/internal/gpio"
	"github.com/sweeney/suricata/internal/irq"
)

var (
	ErrNullTarget       = errors.New("led: engine is nil or not initialised")
	ErrInvalidPin       = errors.New("led: invalid pin")
	ErrTimerInitFailed  = errors.New("led: timer init failed")
	ErrInvalidFrequency = errors.New("led: blink frequency must be positive")
	ErrInvalidDuration  = errors.New("led: fade duration out of range")
	ErrInvalidDirection = errors.New("led: invalid fade direction")
	ErrUnboundedEffect  = errors.New("led: cannot block on an endless blink")
)

const (
	// TickRateHz is how often the effect handler runs.
	TickRateHz = 100

	// TickInterval is the period of one tick.
	TickInterval = time.Second / TickRateHz

	// SettleMargin is added to the computed length of an effect by the
	// blocking variants.
	SettleMargin = 50 * time.Millisecond

	// MaxFadeDuration is the longest fade StartFade accepts.
	MaxFadeDuration = time.Hour
)

// Config selects the three channel pins and their polarity.
type Config struct {
	RedPin   int
	GreenPin int
	BluePin  int

	// ActiveLow inverts the drive: a channel is lit by pulling it low.
	ActiveLow bool
}

// DefaultConfig returns the standard board wiring.
func DefaultConfig() Config {
	return Config{
		RedPin:   gpio.DefaultPinRed,
		GreenPin: gpio.DefaultPinGreen,
		BluePin:  gpio.DefaultPinBlue,
	}
}

// Option configures an Engine.
type Option func(*Engine)

// WithSleep replaces the sleep used by the blocking variants.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(e *Engine) { e.sleep = sleep }
}

// WithTickObserver registers fn to be called at the end of every tick with
// the mode the engine is left in. fn runs inside the critical section and
// must not call back into the Engine.
func WithTickObserver(fn func(Mode)) Option {
	return func(e *Engine) { e.observer = fn }
}

type blinkState struct {
	frequencyHz  uint16
	repeat       uint8
	colors       [2]Color
	slot         int
	ticksPerHalf int
	elapsed      int
	halfCycles   int
}

type fadeState struct {
	direction FadeDirection
	target    Color
	total     int // ticks from start to full level
	n         int
	level     float32
}

// Engine owns the light's drive state.
type Engine struct {
	mask      *irq.Mask
	timer     irq.Timer
	pins      [3]gpio.Pin
	activeLow bool

	mode    Mode
	current Color
	blink   blinkState
	fade    fadeState

	ticks       uint64
	offs        uint64
	driveErrors uint64
	errLogged   bool

	sleep    func(ctx context.Context, d time.Duration) error
	observer func(Mode)
}

// New validates the pins, opens the channels, drives them off and attaches
// the tick handler to timer at TickInterval. If mask is nil the engine gets
// a private mask.
func New(cfg Config, open gpio.Opener, timer irq.Timer, mask *irq.Mask, opts ...Option) (*Engine, error) {
	if open == nil || timer == nil {
		return nil, ErrNullTarget
	}
	numbers := [3]int{cfg.RedPin, cfg.GreenPin, cfg.BluePin}
	for _, n := range numbers {
		if !gpio.ValidPin(n) {
			return nil, fmt.Errorf("%w: %d", ErrInvalidPin, n)
		}
	}
	if mask == nil {
		mask = &irq.Mask{}
	}

	e := &Engine{
		mask:      mask,
		timer:     timer,
		activeLow: cfg.ActiveLow,
		sleep:     sleepContext,
	}
	for _, opt := range opts {
		opt(e)
	}

	for i, n := range numbers {
		p, err := open(n)
		if err != nil {
			e.closePins()
			return nil, fmt.Errorf("open pin %d: %w", n, err)
		}
		e.pins[i] = p
	}

	e.mask.Disable()
	err := e.off()
	e.offs = 0
	e.mask.Enable()
	if err != nil {
		e.closePins()
		return nil, fmt.Errorf("drive off: %w", err)
	}

	if err := timer.AttachInterruptInterval(TickInterval, e.tick); err != nil {
		e.closePins()
		return nil, fmt.Errorf("%w: %v", ErrTimerInitFailed, err)
	}
	return e, nil
}

func (e *Engine) bound() bool {
	return e != nil && e.mask != nil
}

// TurnOn drives the light at c. The mode is left as it is, so an active
// effect overwrites c on its next step.
func (e *Engine) TurnOn(c Color) error {
	if !e.bound() {
		return ErrNullTarget
	}

	e.mask.Disable()
	defer e.mask.Enable()

	return e.drive(c)
}

// TurnOff stops any effect and drives every channel to its off level as a
// plain digital output, taking it out of PWM mode.
func (e *Engine) TurnOff() error {
	if !e.bound() {
		return ErrNullTarget
	}

	e.mask.Disable()
	defer e.mask.Enable()

	return e.off()
}

// StartBlink alternates between primary and secondary, each shown for half
// a period at frequencyHz. The light ends off after repeat full periods, or
// blinks until replaced when repeat is 0.
func (e *Engine) StartBlink(frequencyHz uint16, repeat uint8, primary, secondary Color) error {
	if !e.bound() {
		return ErrNullTarget
	}
	if frequencyHz == 0 {
		return ErrInvalidFrequency
	}

	e.mask.Disable()
	defer e.mask.Enable()

	e.blink = blinkState{
		frequencyHz:  frequencyHz,
		repeat:       repeat,
		colors:       [2]Color{primary, secondary},
		ticksPerHalf: ticksPerHalf(frequencyHz),
	}
	e.fade = fadeState{}
	e.mode = ModeBlink
	e.errLogged = false
	return e.drive(primary)
}

// StartBlinkBlocking starts a blink and waits for the time it should take
// to finish. It does not observe the effect; it only sleeps. If ctx ends
// first the blink keeps running and ctx.Err() is returned.
func (e *Engine) StartBlinkBlocking(ctx context.Context, frequencyHz uint16, repeat uint8, primary, secondary Color) error {
	if !e.bound() {
		return ErrNullTarget
	}
	if frequencyHz != 0 && repeat == 0 {
		return ErrUnboundedEffect
	}
	if err := e.StartBlink(frequencyHz, repeat, primary, secondary); err != nil {
		return err
	}
	return e.sleep(ctx, BlinkDuration(frequencyHz, repeat)+SettleMargin)
}

// StartFade ramps the light linearly between off and c over d, which must be
// in (0, MaxFadeDuration].
func (e *Engine) StartFade(d time.Duration, dir FadeDirection, c Color) error {
	if !e.bound() {
		return ErrNullTarget
	}
	if d <= 0 || d > MaxFadeDuration {
		return ErrInvalidDuration
	}
	if dir != FadeIn && dir != FadeOut {
		return ErrInvalidDirection
	}

	e.mask.Disable()
	defer e.mask.Enable()

	total := fadeTicks(d)
	e.fade = fadeState{
		direction: dir,
		target:    c,
		total:     total,
	}
	e.fade.level = e.fade.position()
	e.blink = blinkState{}
	e.mode = ModeFade
	e.errLogged = false
	return nil
}

// StartFadeBlocking starts a fade and sleeps until it should be complete.
// See StartBlinkBlocking.
func (e *Engine) StartFadeBlocking(ctx context.Context, d time.Duration, dir FadeDirection, c Color) error {
	if err := e.StartFade(d, dir, c); err != nil {
		return err
	}
	return e.sleep(ctx, FadeDuration(d)+SettleMargin)
}

// Close stops the timer, turns the light off and releases the pins.
func (e *Engine) Close() error {
	if !e.bound() {
		return ErrNullTarget
	}
	e.timer.Stop()

	e.mask.Disable()
	defer e.mask.Enable()

	return errors.Join(e.off(), e.closePins())
}

// tick is the timer handler.
func (e *Engine) tick() {
	e.mask.Disable()
	defer e.mask.Enable()

	e.ticks++
	switch e.mode {
	case ModeBlink:
		e.stepBlink()
	case ModeFade:
		e.stepFade()
	}
	if e.observer != nil {
		e.observer(e.mode)
	}
}

func (e *Engine) stepBlink() {
	b := &e.blink
	b.elapsed++
	if b.elapsed < b.ticksPerHalf {
		return
	}
	b.elapsed = 0
	b.slot ^= 1
	b.halfCycles++

	if b.repeat > 0 && b.halfCycles >= 2*int(b.repeat) {
		e.report(e.off())
		return
	}
	e.report(e.drive(b.colors[b.slot]))
}

func (e *Engine) stepFade() {
	f := &e.fade
	e.report(e.drive(f.target.Scale(f.level)))

	f.n++
	if f.n <= f.total {
		f.level = f.position()
		return
	}

	if f.direction == FadeOut {
		e.report(e.off())
		return
	}
	// Fade-in ends with the light at full target, which the last step drove.
	e.mode = ModeIdle
	e.fade = fadeState{}
}

// position is the level after n of total ticks, clamped to [0, 1].
func (f *fadeState) position() float32 {
	p := float32(f.n) / float32(f.total)
	if f.direction == FadeOut {
		p = 1 - p
	}
	return math32.Max(0, math32.Min(1, p))
}

// drive writes c to the channels. Callers hold the mask.
func (e *Engine) drive(c Color) error {
	var errs []error
	for i, v := range [3]uint8{c.R, c.G, c.B} {
		if e.pins[i] == nil {
			continue
		}
		if e.activeLow {
			v = 255 - v
		}
		if err := e.pins[i].Analog(v); err != nil {
			errs = append(errs, err)
		}
	}
	e.current = c
	return errors.Join(errs...)
}

// off ends any effect and drives the channels off. Callers hold the mask.
func (e *Engine) off() error {
	var errs []error
	for _, p := range e.pins {
		if p == nil {
			continue
		}
		if err := p.Digital(e.activeLow); err != nil {
			errs = append(errs, err)
		}
	}
	e.mode = ModeIdle
	e.current = Color{}
	e.blink = blinkState{}
	e.fade = fadeState{}
	e.offs++
	return errors.Join(errs...)
}

// report records a drive error from the tick handler. Only the first error
// of each effect is logged.
func (e *Engine) report(err error) {
	if err == nil {
		return
	}
	e.driveErrors++
	if !e.errLogged {
		log.Printf("led: drive error: %v", err)
		e.errLogged = true
	}
}

func (e *Engine) closePins() error {
	var errs []error
	for i, p := range e.pins {
		if p == nil {
			continue
		}
		if err := p.Close(); err != nil {
			errs = append(errs, err)
		}
		e.pins[i] = nil
	}
	return errors.Join(errs...)
}

// ticksPerHalf is ceil(TickRateHz / (2*frequencyHz)), never less than one.
func ticksPerHalf(frequencyHz uint16) int {
	twice := 2 * int(frequencyHz)
	return (TickRateHz + twice - 1) / twice
}

// fadeTicks is the number of ticks a fade of d takes to reach its end level.
func fadeTicks(d time.Duration) int {
	return int((d + TickInterval - 1) / TickInterval)
}

// BlinkDuration is how long a blink of repeat periods runs, in whole ticks.
func BlinkDuration(frequencyHz uint16, repeat uint8) time.Duration {
	if frequencyHz == 0 {
		return 0
	}
	return time.Duration(2*int(repeat)*ticksPerHalf(frequencyHz)) * TickInterval
}

// FadeDuration is how long a fade over d runs, including the completing tick.
// It is 0 for durations StartFade rejects.
func FadeDuration(d time.Duration) time.Duration {
	if d <= 0 || d > MaxFadeDuration {
		return 0
	}
	return time.Duration(fadeTicks(d)+1) * TickInterval
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
