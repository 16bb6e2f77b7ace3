package sensor

import "sync"

// FakeSource returns scripted samples for testing. Each Read returns the
// next queued sample; once the queue is empty the last one repeats.
type FakeSource struct {
	mu       sync.Mutex
	queue    []Raw
	last     Raw
	haveLast bool

	// ReadError, if set, will be returned by Read.
	ReadError error

	// Closed tracks if Close was called.
	Closed bool
}

// NewFakeSource creates a FakeSource with the given samples queued.
func NewFakeSource(samples ...Raw) *FakeSource {
	return &FakeSource{queue: samples}
}

// Read returns the next scripted sample.
func (f *FakeSource) Read() (Raw, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.ReadError != nil {
		return Raw{}, f.ReadError
	}
	if f.Closed {
		return Raw{}, ErrClosed
	}
	if len(f.queue) > 0 {
		f.last = f.queue[0]
		f.haveLast = true
		f.queue = f.queue[1:]
	}
	if !f.haveLast {
		return Raw{}, ErrNoSample
	}
	return f.last, nil
}

// Push queues more samples.
func (f *FakeSource) Push(samples ...Raw) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queue = append(f.queue, samples...)
}

// Close marks the source as closed.
func (f *FakeSource) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Closed = true
	return nil
}
