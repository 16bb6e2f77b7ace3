package indicator

import (
	"testing"

	"github.com/sweeney/suricata/internal/gpio"
	"github.com/sweeney/suricata/internal/irq"
	"github.com/sweeney/suricata/internal/led"
)

func newEngine(t *testing.T) (*led.Engine, *irq.FakeTimer) {
	t.Helper()
	timer := irq.NewFakeTimer()
	e, err := led.New(led.DefaultConfig(), gpio.NewFakeBank().Open, timer, nil)
	if err != nil {
		t.Fatalf("led.New: %v", err)
	}
	return e, timer
}
