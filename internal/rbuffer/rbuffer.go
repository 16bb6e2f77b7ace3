// Package rbuffer provides a fixed-capacity circular byte queue that can be
// shared between foreground code and timer handlers.
//
// The capacity must be a power of two: indices wrap with a mask of
// capacity-1 rather than a modulo. A separate count tells "empty" apart from
// "full" when head and tail meet.
package rbuffer

import (
	"errors"

	"github.com/sweeney/suricata/internal/irq"
)

var (
	ErrNullTarget     = errors.New("rbuffer: queue or storage is nil")
	ErrInvalidSize    = errors.New("rbuffer: invalid size")
	ErrFull           = errors.New("rbuffer: queue full")
	ErrEmpty          = errors.New("rbuffer: queue empty")
	ErrNotEnoughSpace = errors.New("rbuffer: not enough space")
	ErrNotEnoughData  = errors.New("rbuffer: not enough data")
)

// Queue is a FIFO of bytes over caller-owned storage.
//
// Every mutating method runs its whole body with the mask disabled, so a
// timer handler may push or pop concurrently with foreground code.
type Queue struct {
	mask  *irq.Mask
	buf   []byte
	head  int // next write index
	tail  int // next read index
	count int
}

// New returns a queue bound to buf. See Init.
func New(buf []byte, mask *irq.Mask) (*Queue, error) {
	q := &Queue{}
	if err := q.Init(buf, mask); err != nil {
		return nil, err
	}
	return q, nil
}

// Init binds q to buf and resets it. The capacity is len(buf), which must
// be a positive power of two. The storage is used in place for the lifetime
// of the queue. If mask is nil the queue gets a private mask.
func (q *Queue) Init(buf []byte, mask *irq.Mask) error {
	if q == nil || buf == nil {
		return ErrNullTarget
	}
	size := len(buf)
	if size == 0 || size&(size-1) != 0 {
		return ErrInvalidSize
	}
	if mask == nil {
		mask = &irq.Mask{}
	}

	mask.Disable()
	defer mask.Enable()

	q.mask = mask
	q.buf = buf
	q.head = 0
	q.tail = 0
	q.count = 0
	return nil
}

func (q *Queue) bound() bool {
	return q != nil && q.buf != nil
}

// PushByte appends b.
func (q *Queue) PushByte(b byte) error {
	if !q.bound() {
		return ErrNullTarget
	}

	q.mask.Disable()
	defer q.mask.Enable()

	if q.count == len(q.buf) {
		return ErrFull
	}
	q.buf[q.head] = b
	q.head = (q.head + 1) & (len(q.buf) - 1)
	q.count++
	return nil
}

// PushBytes appends all of data or nothing.
func (q *Queue) PushBytes(data []byte) error {
	if !q.bound() {
		return ErrNullTarget
	}

	q.mask.Disable()
	defer q.mask.Enable()

	size := len(q.buf)
	switch {
	case q.count == size:
		return ErrFull
	case len(data) == 0:
		return ErrInvalidSize
	case len(data) > size-q.count:
		return ErrNotEnoughSpace
	}

	n := len(data)
	toEnd := size - q.head
	if toEnd < n {
		copy(q.buf[q.head:], data[:toEnd])
		copy(q.buf, data[toEnd:])
	} else {
		copy(q.buf[q.head:], data)
	}
	q.head = (q.head + n) & (size - 1)
	q.count += n
	return nil
}

// PopByte removes and returns the oldest byte.
func (q *Queue) PopByte() (byte, error) {
	if !q.bound() {
		return 0, ErrNullTarget
	}

	q.mask.Disable()
	defer q.mask.Enable()

	if q.count == 0 {
		return 0, ErrEmpty
	}
	b := q.buf[q.tail]
	q.tail = (q.tail + 1) & (len(q.buf) - 1)
	q.count--
	return b, nil
}

// PopBytes fills p with the len(p) oldest bytes and removes them. A request
// larger than the used space is rejected, never partially satisfied.
func (q *Queue) PopBytes(p []byte) error {
	if !q.bound() {
		return ErrNullTarget
	}

	q.mask.Disable()
	defer q.mask.Enable()

	size := len(q.buf)
	switch {
	case q.count == 0:
		return ErrEmpty
	case len(p) == 0:
		return ErrInvalidSize
	case len(p) > q.count:
		return ErrNotEnoughData
	}

	n := len(p)
	toEnd := size - q.tail
	if toEnd < n {
		copy(p, q.buf[q.tail:])
		copy(p[toEnd:], q.buf[:n-toEnd])
	} else {
		copy(p, q.buf[q.tail:q.tail+n])
	}
	q.tail = (q.tail + n) & (size - 1)
	q.count -= n
	return nil
}

// Clear empties the queue. Storage contents are left as they are.
func (q *Queue) Clear() error {
	if !q.bound() {
		return ErrNullTarget
	}

	q.mask.Disable()
	defer q.mask.Enable()

	q.head = 0
	q.tail = 0
	q.count = 0
	return nil
}

// IsEmpty reports whether the queue holds no bytes. It is false for a nil
// or unbound queue.
func (q *Queue) IsEmpty() bool {
	if !q.bound() {
		return false
	}

	q.mask.Disable()
	defer q.mask.Enable()

	return q.head == q.tail && q.count == 0
}

// IsFull reports whether the queue is at capacity. It is false for a nil or
// unbound queue.
func (q *Queue) IsFull() bool {
	if !q.bound() {
		return false
	}

	q.mask.Disable()
	defer q.mask.Enable()

	return q.head == q.tail && q.count == len(q.buf)
}

// FreeSpace returns capacity minus used space, or 0 for a nil or unbound
// queue.
func (q *Queue) FreeSpace() int {
	if !q.bound() {
		return 0
	}

	q.mask.Disable()
	defer q.mask.Enable()

	return len(q.buf) - q.count
}

// UsedSpace returns the number of queued bytes, or 0 for a nil or unbound
// queue.
func (q *Queue) UsedSpace() int {
	if !q.bound() {
		return 0
	}

	q.mask.Disable()
	defer q.mask.Enable()

	return q.count
}

// Cap returns the capacity, or 0 for a nil or unbound queue.
func (q *Queue) Cap() int {
	if !q.bound() {
		return 0
	}
	return len(q.buf)
}
