// Package irq models the node's two execution contexts: foreground code and
// fixed-rate timer handlers. A Mask plays the role of the global interrupt
// mask; a Timer plays the role of the hardware timer that fires handlers.
package irq

import (
	"errors"
	"sync"
	"time"
)

// ErrInvalidInterval is returned when a handler is attached with a
// non-positive interval.
var ErrInvalidInterval = errors.New("irq: interval must be positive")

// ErrStopped is returned when attaching to a timer that has been stopped.
var ErrStopped = errors.New("irq: timer stopped")

// Mask serializes critical sections between foreground code and timer
// handlers. While a context holds the mask, handlers that need it are held
// off until Enable, the way a masked interrupt stays pending until it is
// unmasked.
//
// The zero value is ready to use. Mask is not reentrant: a critical section
// must not call another method that disables the same mask.
type Mask struct {
	mu sync.Mutex
}

// Disable enters the critical section.
func (m *Mask) Disable() {
	m.mu.Lock()
}

// Enable leaves the critical section.
func (m *Mask) Enable() {
	m.mu.Unlock()
}

// Timer invokes handlers at a fixed cadence.
type Timer interface {
	// AttachInterruptInterval registers handler to fire every interval.
	// Handlers take no arguments; everything they touch must be reachable
	// from the value they are bound to.
	AttachInterruptInterval(interval time.Duration, handler func()) error

	// Stop stops all handlers. Stop blocks until no handler is running.
	Stop()
}
