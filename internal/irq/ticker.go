package irq

import (
	"sync"
	"time"
)

// TickerTimer is the real timer source. Each attached handler runs on its
// own goroutine driven by a time.Ticker, so a handler never overlaps with
// itself.
type TickerTimer struct {
	mu      sync.Mutex
	stopped bool
	done    chan struct{}
	wg      sync.WaitGroup
}

// NewTickerTimer creates a timer with no handlers attached.
func NewTickerTimer() *TickerTimer {
	return &TickerTimer{done: make(chan struct{})}
}

// AttachInterruptInterval starts firing handler every interval.
func (t *TickerTimer) AttachInterruptInterval(interval time.Duration, handler func()) error {
	if interval <= 0 {
		return ErrInvalidInterval
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.stopped {
		return ErrStopped
	}

	t.wg.Add(1)
	go t.run(interval, handler)
	return nil
}

func (t *TickerTimer) run(interval time.Duration, handler func()) {
	defer t.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-t.done:
			return
		case <-ticker.C:
			handler()
		}
	}
}

// Stop stops every handler and waits for in-flight invocations to return.
// Calling Stop more than once is safe.
func (t *TickerTimer) Stop() {
	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		return
	}
	t.stopped = true
	close(t.done)
	t.mu.Unlock()

	t.wg.Wait()
}
