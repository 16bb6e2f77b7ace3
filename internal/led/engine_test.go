package led

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/sweeney/suricata/internal/gpio"
	"github.com/sweeney/suricata/internal/irq"
)

type rig struct {
	engine *Engine
	timer  *irq.FakeTimer
	bank   *gpio.FakeBank
}

func newRig(t *testing.T, cfg Config, opts ...Option) *rig {
	t.Helper()
	bank := gpio.NewFakeBank()
	timer := irq.NewFakeTimer()
	e, err := New(cfg, bank.Open, timer, nil, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return &rig{engine: e, timer: timer, bank: bank}
}

func (r *rig) pins() [3]*gpio.FakePin {
	cfg := DefaultConfig()
	return [3]*gpio.FakePin{r.bank.Pin(cfg.RedPin), r.bank.Pin(cfg.GreenPin), r.bank.Pin(cfg.BluePin)}
}

// lastDuties returns the last analog duty on each channel.
func (r *rig) lastDuties(t *testing.T) [3]uint8 {
	t.Helper()
	var out [3]uint8
	for i, p := range r.pins() {
		d, pwm := p.Duty()
		if !pwm {
			t.Fatalf("pin %d not in PWM mode", p.Number)
		}
		out[i] = d
	}
	return out
}

func (r *rig) digitalWrites() int {
	n := 0
	for _, p := range r.pins() {
		for _, w := range p.Writes() {
			if !w.Analog {
				n++
			}
		}
	}
	return n
}

func (r *rig) resetWrites() {
	for _, p := range r.pins() {
		p.Reset()
	}
}

func TestNewDrivesOffAndAttaches(t *testing.T) {
	r := newRig(t, DefaultConfig())

	if r.timer.Handlers() != 1 {
		t.Fatalf("handlers: got %d, want 1", r.timer.Handlers())
	}
	if r.timer.Intervals[0] != 10*time.Millisecond {
		t.Errorf("interval: got %v, want 10ms", r.timer.Intervals[0])
	}
	for _, p := range r.pins() {
		last, ok := p.Last()
		if !ok || last.Analog || last.High {
			t.Errorf("pin %d: expected digital low, got %+v", p.Number, last)
		}
	}

	s := r.engine.Status()
	if s.Mode != ModeIdle || s.Offs != 0 {
		t.Errorf("status after New: %+v", s)
	}
}

func TestNewInvalidPin(t *testing.T) {
	for _, cfg := range []Config{
		{RedPin: -1, GreenPin: 2, BluePin: 3},
		{RedPin: 1, GreenPin: gpio.MaxPin + 1, BluePin: 3},
		{RedPin: 1, GreenPin: 2, BluePin: 99},
	} {
		_, err := New(cfg, gpio.NewFakeBank().Open, irq.NewFakeTimer(), nil)
		if !errors.Is(err, ErrInvalidPin) {
			t.Errorf("%+v: got %v, want ErrInvalidPin", cfg, err)
		}
	}
}

func TestNewTimerInitFailed(t *testing.T) {
	bank := gpio.NewFakeBank()
	timer := irq.NewFakeTimer()
	timer.AttachError = errors.New("no timer available")

	_, err := New(DefaultConfig(), bank.Open, timer, nil)
	if !errors.Is(err, ErrTimerInitFailed) {
		t.Fatalf("got %v, want ErrTimerInitFailed", err)
	}
	if !bank.Pin(gpio.DefaultPinRed).Closed() {
		t.Error("pins should be released when the timer cannot be attached")
	}
}

func TestNewNullTarget(t *testing.T) {
	if _, err := New(DefaultConfig(), nil, irq.NewFakeTimer(), nil); !errors.Is(err, ErrNullTarget) {
		t.Errorf("nil opener: got %v", err)
	}
	if _, err := New(DefaultConfig(), gpio.NewFakeBank().Open, nil, nil); !errors.Is(err, ErrNullTarget) {
		t.Errorf("nil timer: got %v", err)
	}
}

func TestNewOpenError(t *testing.T) {
	bank := gpio.NewFakeBank()
	bank.OpenError = errors.New("line busy")
	if _, err := New(DefaultConfig(), bank.Open, irq.NewFakeTimer(), nil); err == nil {
		t.Error("expected error when a pin cannot be opened")
	}
}

func TestNilEngine(t *testing.T) {
	var e *Engine
	ctx := context.Background()

	checks := map[string]error{
		"TurnOn":             e.TurnOn(Red),
		"TurnOff":            e.TurnOff(),
		"StartBlink":         e.StartBlink(1, 1, Red, Off),
		"StartBlinkBlocking": e.StartBlinkBlocking(ctx, 1, 1, Red, Off),
		"StartFade":          e.StartFade(time.Second, FadeIn, Red),
		"StartFadeBlocking":  e.StartFadeBlocking(ctx, time.Second, FadeIn, Red),
		"Close":              e.Close(),
	}
	for name, err := range checks {
		if !errors.Is(err, ErrNullTarget) {
			t.Errorf("%s: got %v, want ErrNullTarget", name, err)
		}
	}
	if s := e.Status(); s != (Status{}) {
		t.Errorf("Status: got %+v, want zero", s)
	}

	var unbound Engine
	if err := unbound.TurnOff(); !errors.Is(err, ErrNullTarget) {
		t.Errorf("unbound TurnOff: got %v", err)
	}
}

func TestTurnOnKeepsMode(t *testing.T) {
	r := newRig(t, DefaultConfig())

	if err := r.engine.TurnOn(Color{R: 10, G: 20, B: 30}); err != nil {
		t.Fatalf("TurnOn: %v", err)
	}
	if got := r.lastDuties(t); got != [3]uint8{10, 20, 30} {
		t.Errorf("duties: got %v", got)
	}
	if r.engine.Status().Mode != ModeIdle {
		t.Error("TurnOn should not change mode")
	}

	r.engine.StartBlink(1, 0, Red, Blue)
	r.engine.TurnOn(Green)
	if r.engine.Status().Mode != ModeBlink {
		t.Error("TurnOn should not end an active blink")
	}
}

func TestTurnOffIdempotent(t *testing.T) {
	r := newRig(t, DefaultConfig())
	r.engine.StartBlink(5, 0, Red, Blue)

	if err := r.engine.TurnOff(); err != nil {
		t.Fatalf("first TurnOff: %v", err)
	}
	first := r.engine.Status()
	var firstWrites [3]gpio.Write
	for i, p := range r.pins() {
		firstWrites[i], _ = p.Last()
	}

	if err := r.engine.TurnOff(); err != nil {
		t.Fatalf("second TurnOff: %v", err)
	}
	second := r.engine.Status()

	if first.Mode != ModeIdle || second.Mode != ModeIdle {
		t.Errorf("mode: got %v then %v, want IDLE", first.Mode, second.Mode)
	}
	if first.Color != second.Color {
		t.Errorf("color: got %v then %v", first.Color, second.Color)
	}
	for i, p := range r.pins() {
		last, _ := p.Last()
		if last != firstWrites[i] {
			t.Errorf("pin %d: got %+v, want %+v", p.Number, last, firstWrites[i])
		}
		if last.Analog {
			t.Errorf("pin %d: off should leave PWM mode", p.Number)
		}
	}
}

func TestBlinkSchedule(t *testing.T) {
	r := newRig(t, DefaultConfig())
	primary := Color{R: 200}
	secondary := Color{B: 100}

	if err := r.engine.StartBlink(2, 3, primary, secondary); err != nil {
		t.Fatalf("StartBlink: %v", err)
	}
	if got := r.lastDuties(t); got != [3]uint8{200, 0, 0} {
		t.Fatalf("start: got %v, want primary", got)
	}

	// Color changes every 25 ticks, starting with secondary.
	want := []Color{secondary, primary, secondary, primary, secondary}
	for i, c := range want {
		r.timer.Fire(24)
		if got := r.engine.Status().Color; got == c {
			t.Fatalf("half %d: switched early to %v", i, c)
		}
		r.timer.Fire(1)
		s := r.engine.Status()
		if s.Color != c {
			t.Fatalf("half %d: got %v, want %v", i, s.Color, c)
		}
		if s.Mode != ModeBlink {
			t.Fatalf("half %d: mode %v, want BLINK", i, s.Mode)
		}
		if s.HalfCycles != i+1 {
			t.Errorf("half %d: half cycles %d", i, s.HalfCycles)
		}
	}

	// 125 ticks so far; the effect ends on tick 150.
	r.timer.Fire(24)
	if r.engine.Status().Mode != ModeBlink {
		t.Fatal("ended before tick 150")
	}
	r.timer.Fire(1)
	s := r.engine.Status()
	if s.Mode != ModeIdle {
		t.Fatalf("tick 150: mode %v, want IDLE", s.Mode)
	}
	if s.Ticks != 150 {
		t.Errorf("ticks: got %d, want 150", s.Ticks)
	}
	if s.Offs != 1 {
		t.Errorf("offs: got %d, want 1", s.Offs)
	}

	r.resetWrites()
	r.timer.Fire(100)
	for _, p := range r.pins() {
		if len(p.Writes()) != 0 {
			t.Errorf("pin %d written while idle", p.Number)
		}
	}
}

func TestBlinkInfinite(t *testing.T) {
	r := newRig(t, DefaultConfig())
	r.engine.StartBlink(10, 0, Red, Off)

	r.timer.Fire(10000)
	if r.engine.Status().Mode != ModeBlink {
		t.Fatal("endless blink stopped on its own")
	}

	r.engine.TurnOff()
	if r.engine.Status().Mode != ModeIdle {
		t.Error("TurnOff should stop an endless blink")
	}
}

func TestBlinkZeroFrequency(t *testing.T) {
	r := newRig(t, DefaultConfig())

	if err := r.engine.StartBlink(0, 1, Red, Off); !errors.Is(err, ErrInvalidFrequency) {
		t.Fatalf("got %v, want ErrInvalidFrequency", err)
	}
	if r.engine.Status().Mode != ModeIdle {
		t.Error("rejected blink should not change mode")
	}
	r.timer.Fire(10)
}

func TestTicksPerHalf(t *testing.T) {
	tests := []struct {
		freq uint16
		want int
	}{
		{1, 50},
		{2, 25},
		{3, 17},
		{7, 8},
		{50, 1},
		{1000, 1},
	}
	for _, tt := range tests {
		if got := ticksPerHalf(tt.freq); got != tt.want {
			t.Errorf("ticksPerHalf(%d): got %d, want %d", tt.freq, got, tt.want)
		}
	}
}

func TestFadeInReachesFullLevel(t *testing.T) {
	r := newRig(t, DefaultConfig())
	target := Color{R: 255, G: 128, B: 0}

	if err := r.engine.StartFade(2*time.Second, FadeIn, target); err != nil {
		t.Fatalf("StartFade: %v", err)
	}
	if s := r.engine.Status(); s.Mode != ModeFade || s.Level != 0 || s.Direction != FadeIn {
		t.Fatalf("start: %+v", s)
	}

	r.timer.Fire(100)
	if lvl := r.engine.Status().Level; lvl < 0.49 || lvl > 0.51 {
		t.Errorf("halfway level: got %v, want 0.5", lvl)
	}

	r.timer.Fire(98)
	if lvl := r.engine.Status().Level; lvl >= 1 {
		t.Fatalf("level reached 1.0 early: %v", lvl)
	}

	r.timer.Fire(1) // tick 199
	r.timer.Fire(1) // tick 200
	s := r.engine.Status()
	if s.Level < 1 {
		t.Fatalf("tick 200: level %v, want >= 1.0", s.Level)
	}

	r.timer.Fire(1)
	s = r.engine.Status()
	if s.Mode != ModeIdle {
		t.Fatalf("tick 201: mode %v, want IDLE", s.Mode)
	}
	if s.Color != target {
		t.Errorf("final color: got %v, want %v", s.Color, target)
	}
	if got := r.lastDuties(t); got != [3]uint8{255, 128, 0} {
		t.Errorf("final duties: got %v", got)
	}
	if s.Offs != 0 {
		t.Errorf("fade-in should not turn off, offs=%d", s.Offs)
	}
}

func TestFadeLevelsMonotonic(t *testing.T) {
	r := newRig(t, DefaultConfig())
	r.engine.StartFade(500*time.Millisecond, FadeIn, Color{G: 200})

	prev := -1
	for i := 0; i < 51; i++ {
		r.timer.Fire(1)
		g := int(r.engine.Status().Color.G)
		if g < prev {
			t.Fatalf("tick %d: level dropped from %d to %d", i+1, prev, g)
		}
		prev = g
	}
	if prev != 200 {
		t.Errorf("final green: got %d, want 200", prev)
	}
}

func TestFadeOutTurnsOffOnce(t *testing.T) {
	r := newRig(t, DefaultConfig())
	r.engine.TurnOn(Red)
	r.resetWrites()

	if err := r.engine.StartFade(time.Second, FadeOut, Red); err != nil {
		t.Fatalf("StartFade: %v", err)
	}
	if lvl := r.engine.Status().Level; lvl != 1 {
		t.Errorf("start level: got %v, want 1", lvl)
	}

	r.timer.Fire(100)
	if s := r.engine.Status(); s.Mode != ModeFade || s.Level != 0 {
		t.Fatalf("tick 100: %+v", s)
	}
	if r.digitalWrites() != 0 {
		t.Fatal("turned off before completion")
	}

	r.timer.Fire(1)
	s := r.engine.Status()
	if s.Mode != ModeIdle {
		t.Fatalf("tick 101: mode %v, want IDLE", s.Mode)
	}
	if s.Offs != 1 {
		t.Errorf("offs: got %d, want 1", s.Offs)
	}

	r.timer.Fire(200)
	if s := r.engine.Status(); s.Offs != 1 {
		t.Errorf("offs after idle ticks: got %d, want 1", s.Offs)
	}
	if got := r.digitalWrites(); got != 3 {
		t.Errorf("digital writes: got %d, want one per channel", got)
	}
}

func TestFadeValidation(t *testing.T) {
	r := newRig(t, DefaultConfig())

	if err := r.engine.StartFade(0, FadeIn, Red); !errors.Is(err, ErrInvalidDuration) {
		t.Errorf("zero duration: got %v", err)
	}
	if err := r.engine.StartFade(-time.Second, FadeIn, Red); !errors.Is(err, ErrInvalidDuration) {
		t.Errorf("negative duration: got %v", err)
	}
	if err := r.engine.StartFade(MaxFadeDuration+time.Nanosecond, FadeIn, Red); !errors.Is(err, ErrInvalidDuration) {
		t.Errorf("over max duration: got %v", err)
	}
	if err := r.engine.StartFade(time.Duration(math.MaxInt64), FadeOut, Red); !errors.Is(err, ErrInvalidDuration) {
		t.Errorf("max int64 duration: got %v", err)
	}
	if s := r.engine.Status(); s.Mode != ModeIdle {
		t.Errorf("rejected fade changed mode to %v", s.Mode)
	}
	if err := r.engine.StartFade(time.Second, FadeDirection(0), Red); !errors.Is(err, ErrInvalidDirection) {
		t.Errorf("bad direction: got %v", err)
	}
	if r.engine.Status().Mode != ModeIdle {
		t.Error("rejected fade should not change mode")
	}
}

func TestNewEffectReplacesOld(t *testing.T) {
	r := newRig(t, DefaultConfig())

	r.engine.StartFade(time.Second, FadeOut, Red)
	r.timer.Fire(50)
	r.engine.StartBlink(1, 1, Green, Off)
	if r.engine.Status().Mode != ModeBlink {
		t.Fatal("blink should replace fade")
	}

	r.timer.Fire(100)
	s := r.engine.Status()
	if s.Mode != ModeIdle || s.Offs != 1 {
		t.Errorf("after blink: %+v", s)
	}
}

func TestActiveLowPolarity(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ActiveLow = true
	r := newRig(t, cfg)

	for _, p := range r.pins() {
		last, _ := p.Last()
		if !last.High {
			t.Errorf("pin %d: off level should be high", p.Number)
		}
	}

	r.engine.TurnOn(Color{R: 255, G: 0, B: 55})
	if got := r.lastDuties(t); got != [3]uint8{0, 255, 200} {
		t.Errorf("inverted duties: got %v", got)
	}
}

func TestDriveErrorsCountedNotFatal(t *testing.T) {
	r := newRig(t, DefaultConfig())
	r.pins()[0].AnalogError = errors.New("pwm fault")

	r.engine.StartFade(100*time.Millisecond, FadeIn, White)
	r.timer.Fire(11)

	s := r.engine.Status()
	if s.Mode != ModeIdle {
		t.Errorf("fade should complete despite drive errors, mode %v", s.Mode)
	}
	if s.DriveErrors != 11 {
		t.Errorf("drive errors: got %d, want 11", s.DriveErrors)
	}
}

func TestTickObserver(t *testing.T) {
	var modes []Mode
	r := newRig(t, DefaultConfig(), WithTickObserver(func(m Mode) { modes = append(modes, m) }))

	r.timer.Fire(1)
	r.engine.StartBlink(50, 1, Red, Off)
	r.timer.Fire(2)

	want := []Mode{ModeIdle, ModeBlink, ModeIdle}
	if len(modes) != len(want) {
		t.Fatalf("observed %v, want %v", modes, want)
	}
	for i := range want {
		if modes[i] != want[i] {
			t.Errorf("tick %d: got %v, want %v", i, modes[i], want[i])
		}
	}
}

func TestBlockingVariants(t *testing.T) {
	var mu sync.Mutex
	var slept []time.Duration
	sleep := func(ctx context.Context, d time.Duration) error {
		mu.Lock()
		slept = append(slept, d)
		mu.Unlock()
		return nil
	}
	r := newRig(t, DefaultConfig(), WithSleep(sleep))
	ctx := context.Background()

	if err := r.engine.StartBlinkBlocking(ctx, 2, 3, Red, Off); err != nil {
		t.Fatalf("StartBlinkBlocking: %v", err)
	}
	if err := r.engine.StartFadeBlocking(ctx, 2*time.Second, FadeIn, Red); err != nil {
		t.Fatalf("StartFadeBlocking: %v", err)
	}

	want := []time.Duration{
		1500*time.Millisecond + SettleMargin,
		2010*time.Millisecond + SettleMargin,
	}
	if len(slept) != 2 || slept[0] != want[0] || slept[1] != want[1] {
		t.Errorf("slept %v, want %v", slept, want)
	}
}

func TestBlockingRejectsEndlessBlink(t *testing.T) {
	r := newRig(t, DefaultConfig(), WithSleep(func(context.Context, time.Duration) error {
		t.Error("should not sleep")
		return nil
	}))

	if err := r.engine.StartBlinkBlocking(context.Background(), 1, 0, Red, Off); !errors.Is(err, ErrUnboundedEffect) {
		t.Errorf("got %v, want ErrUnboundedEffect", err)
	}
	if r.engine.Status().Mode != ModeIdle {
		t.Error("rejected blink should not start")
	}
	if err := r.engine.StartBlinkBlocking(context.Background(), 0, 1, Red, Off); !errors.Is(err, ErrInvalidFrequency) {
		t.Errorf("got %v, want ErrInvalidFrequency", err)
	}
}

func TestBlockingHonoursContext(t *testing.T) {
	r := newRig(t, DefaultConfig())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := r.engine.StartFadeBlocking(ctx, time.Hour, FadeIn, Red)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("got %v, want context.Canceled", err)
	}
	if r.engine.Status().Mode != ModeFade {
		t.Error("fade should keep running after the wait is abandoned")
	}
}

func TestClose(t *testing.T) {
	r := newRig(t, DefaultConfig())
	r.engine.StartBlink(1, 0, Red, Off)

	if err := r.engine.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !r.timer.Stopped {
		t.Error("timer should be stopped")
	}
	for _, p := range r.pins() {
		if !p.Closed() {
			t.Errorf("pin %d not closed", p.Number)
		}
	}
	if r.engine.Status().Mode != ModeIdle {
		t.Error("Close should leave the engine idle")
	}
}

func TestRealTimerDrivesEngine(t *testing.T) {
	timer := irq.NewTickerTimer()
	defer timer.Stop()

	e, err := New(DefaultConfig(), gpio.NewFakeBank().Open, timer, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer e.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := e.StartBlinkBlocking(ctx, 50, 2, Red, Blue); err != nil {
		t.Fatalf("StartBlinkBlocking: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for e.Status().Mode != ModeIdle {
		if time.Now().After(deadline) {
			t.Fatalf("blink did not finish: %+v", e.Status())
		}
		time.Sleep(5 * time.Millisecond)
	}
	if e.Status().Offs != 1 {
		t.Errorf("offs: got %d, want 1", e.Status().Offs)
	}
}

func TestColorScale(t *testing.T) {
	c := Color{R: 255, G: 100, B: 1}

	if got := c.Scale(0); got != Off {
		t.Errorf("Scale(0): got %v", got)
	}
	if got := c.Scale(1); got != c {
		t.Errorf("Scale(1): got %v", got)
	}
	if got := c.Scale(0.5); got != (Color{R: 128, G: 50, B: 1}) {
		t.Errorf("Scale(0.5): got %v", got)
	}
	if got := c.Scale(1.5); got != c {
		t.Errorf("Scale(1.5) should clamp, got %v", got)
	}
	if got := c.Scale(-1); got != Off {
		t.Errorf("Scale(-1) should clamp, got %v", got)
	}
}

func TestModeString(t *testing.T) {
	if ModeIdle.String() != "IDLE" || ModeBlink.String() != "BLINK" || ModeFade.String() != "FADE" {
		t.Error("unexpected mode names")
	}
	if FadeIn.String() != "IN" || FadeOut.String() != "OUT" {
		t.Error("unexpected direction names")
	}
}

func TestColorString(t *testing.T) {
	if got := Amber.String(); got != "#ff7800" {
		t.Errorf("Amber: got %s, want #ff7800", got)
	}
	if got := Off.String(); got != "#000000" {
		t.Errorf("Off: got %s, want #000000", got)
	}
}
