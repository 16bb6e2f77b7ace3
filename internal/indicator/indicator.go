// Package indicator shows node state on the status light.
package indicator

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/sweeney/suricata/internal/events"
	"github.com/sweeney/suricata/internal/led"
	"github.com/sweeney/suricata/internal/logic"
	"github.com/sweeney/suricata/internal/sensor"
)

// Lighting is the part of led.Engine the indicator drives.
type Lighting interface {
	StartBlink(frequencyHz uint16, repeat uint8, primary, secondary led.Color) error
	StartFade(d time.Duration, dir led.FadeDirection, c led.Color) error
	StartFadeBlocking(ctx context.Context, d time.Duration, dir led.FadeDirection, c led.Color) error
}

// Kind selects the effect a Pattern uses.
type Kind int

const (
	KindBlink Kind = iota
	KindFade
)

// Pattern is one light effect.
type Pattern struct {
	Name string
	Kind Kind

	// Blink
	FrequencyHz uint16
	Repeat      uint8 // 0 = until replaced
	Primary     led.Color
	Secondary   led.Color

	// Fade
	Duration  time.Duration
	Direction led.FadeDirection
}

var (
	PatternCritical  = Pattern{Name: "battery-critical", Kind: KindBlink, FrequencyHz: 2, Repeat: 0, Primary: led.Red, Secondary: led.Off}
	PatternLow       = Pattern{Name: "battery-low", Kind: KindBlink, FrequencyHz: 1, Repeat: 3, Primary: led.Amber, Secondary: led.Off}
	PatternRecovered = Pattern{Name: "battery-ok", Kind: KindFade, Duration: time.Second, Direction: led.FadeOut, Primary: led.Green}
	PatternLinkLost  = Pattern{Name: "link-lost", Kind: KindBlink, FrequencyHz: 1, Repeat: 2, Primary: led.Blue, Secondary: led.Off}
	PatternStartup   = Pattern{Name: "startup", Kind: KindFade, Duration: time.Second, Direction: led.FadeIn, Primary: led.Blue}
)

// DarkLevel scales pattern colors while the room is dark.
const DarkLevel = 0.25

// Manager subscribes to state change events and drives the light.
type Manager struct {
	light Lighting
	bus   *events.Bus

	mu         sync.Mutex
	battery    logic.BatteryState
	brightness sensor.Brightness
	last       string
	unsubs     []func()
}

// NewManager creates a Manager. Call Start to begin listening.
func NewManager(light Lighting, bus *events.Bus) *Manager {
	return &Manager{
		light:      light,
		bus:        bus,
		battery:    logic.BatteryOK,
		brightness: sensor.Normal,
	}
}

// Start subscribes to battery, brightness and link events.
func (m *Manager) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.unsubs = append(m.unsubs,
		m.bus.Subscribe(func(e events.BatteryStateChanged) { m.handleBattery(e) }),
		m.bus.Subscribe(func(e events.BrightnessChanged) { m.handleBrightness(e) }),
		m.bus.Subscribe(func(e events.LinkStateChanged) { m.handleLink(e) }),
	)
	log.Printf("indicator: started")
}

// Stop unsubscribes from all events.
func (m *Manager) Stop() {
	m.mu.Lock()
	unsubs := m.unsubs
	m.unsubs = nil
	m.mu.Unlock()

	for _, u := range unsubs {
		u()
	}
}

// Startup plays the startup sequence: a blocking fade-in, then a fade-out
// left running in the background.
func (m *Manager) Startup(ctx context.Context) error {
	m.mu.Lock()
	c := m.scaled(PatternStartup.Primary)
	m.last = PatternStartup.Name
	m.mu.Unlock()

	if err := m.light.StartFadeBlocking(ctx, PatternStartup.Duration, led.FadeIn, c); err != nil {
		return fmt.Errorf("startup fade-in: %w", err)
	}
	if err := m.light.StartFade(PatternStartup.Duration, led.FadeOut, c); err != nil {
		return fmt.Errorf("startup fade-out: %w", err)
	}
	return nil
}

// Last returns the name of the last pattern shown.
func (m *Manager) Last() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last
}

// Show plays p. Colors are dimmed while the room is dark.
func (m *Manager) Show(p Pattern) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.show(p)
}

func (m *Manager) show(p Pattern) error {
	var err error
	switch p.Kind {
	case KindBlink:
		err = m.light.StartBlink(p.FrequencyHz, p.Repeat, m.scaled(p.Primary), m.scaled(p.Secondary))
	case KindFade:
		err = m.light.StartFade(p.Duration, p.Direction, m.scaled(p.Primary))
	default:
		err = fmt.Errorf("unknown pattern kind %d", p.Kind)
	}
	if err != nil {
		return fmt.Errorf("show %s: %w", p.Name, err)
	}
	m.last = p.Name
	return nil
}

func (m *Manager) scaled(c led.Color) led.Color {
	if m.brightness == sensor.Dark {
		return c.Scale(DarkLevel)
	}
	return c
}

func (m *Manager) handleBattery(e events.BatteryStateChanged) {
	m.mu.Lock()
	defer m.mu.Unlock()

	prev := m.battery
	m.battery = e.State

	var err error
	switch e.State {
	case logic.BatteryCritical:
		err = m.show(PatternCritical)
	case logic.BatteryLow:
		err = m.show(PatternLow)
	case logic.BatteryOK:
		if prev != logic.BatteryOK {
			err = m.show(PatternRecovered)
		}
	}
	if err != nil {
		log.Printf("indicator: %v", err)
	}
}

func (m *Manager) handleBrightness(e events.BrightnessChanged) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.brightness = e.Brightness

	// Re-show the endless critical blink at the new intensity.
	if m.battery == logic.BatteryCritical {
		if err := m.show(PatternCritical); err != nil {
			log.Printf("indicator: %v", err)
		}
	}
}

func (m *Manager) handleLink(e events.LinkStateChanged) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if e.Connected {
		return
	}
	// The critical battery blink has priority.
	if m.battery == logic.BatteryCritical {
		return
	}
	if err := m.show(PatternLinkLost); err != nil {
		log.Printf("indicator: %v", err)
	}
}
