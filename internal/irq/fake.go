package irq

import "time"

// FakeTimer is a test double that fires handlers only when told to.
type FakeTimer struct {
	// Intervals records the interval of every successful attachment.
	Intervals []time.Duration

	// AttachError, if set, is returned by AttachInterruptInterval.
	AttachError error

	// Stopped tracks if Stop was called.
	Stopped bool

	handlers []func()
}

// NewFakeTimer creates a FakeTimer with no handlers attached.
func NewFakeTimer() *FakeTimer {
	return &FakeTimer{}
}

// AttachInterruptInterval records handler. It validates interval the same
// way the real timer does.
func (f *FakeTimer) AttachInterruptInterval(interval time.Duration, handler func()) error {
	if f.AttachError != nil {
		return f.AttachError
	}
	if interval <= 0 {
		return ErrInvalidInterval
	}
	if f.Stopped {
		return ErrStopped
	}
	f.Intervals = append(f.Intervals, interval)
	f.handlers = append(f.handlers, handler)
	return nil
}

// Fire runs every attached handler n times, in attachment order, on the
// calling goroutine.
func (f *FakeTimer) Fire(n int) {
	for i := 0; i < n; i++ {
		if f.Stopped {
			return
		}
		for _, h := range f.handlers {
			h()
		}
	}
}

// Handlers returns the number of attached handlers.
func (f *FakeTimer) Handlers() int {
	return len(f.handlers)
}

// Stop marks the timer stopped; later Fire calls do nothing.
func (f *FakeTimer) Stop() {
	f.Stopped = true
}
