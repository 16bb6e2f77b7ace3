// Package telemetry stages sensor readings in the ring queue and flushes
// them to the broker from a separate goroutine.
package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sweeney/suricata/internal/metrics"
	"github.com/sweeney/suricata/internal/rbuffer"
	"github.com/sweeney/suricata/internal/sensor"
)

// Record is the JSON form of one reading. Each record is staged as a single
// newline-terminated line.
type Record struct {
	Timestamp    string  `json:"timestamp"`
	Light        uint16  `json:"light_raw"`
	Lux          float32 `json:"lux"`
	Brightness   string  `json:"brightness"`
	Sound        uint16  `json:"sound_raw"`
	SoundDB      float32 `json:"sound_db"`
	Battery      uint16  `json:"battery_raw"`
	BatteryPct   uint8   `json:"battery_pct"`
	TemperatureC float32 `json:"temperature_c"`
	HumidityPct  float32 `json:"humidity_pct"`
}

// FormatRecord returns the staged line for r, including the trailing newline.
func FormatRecord(r sensor.Reading) ([]byte, error) {
	b, err := json.Marshal(Record{
		Timestamp:    r.Time.UTC().Format(time.RFC3339),
		Light:        r.Light,
		Lux:          r.Lux,
		Brightness:   r.Brightness.String(),
		Sound:        r.Sound,
		SoundDB:      r.SoundDB,
		Battery:      r.Battery,
		BatteryPct:   r.BatteryPct,
		TemperatureC: r.TemperatureC,
		HumidityPct:  r.HumidityPct,
	})
	if err != nil {
		return nil, err
	}
	return append(b, '\n'), nil
}

// Stager is the producer side. It pushes whole records into the queue or
// drops them.
type Stager struct {
	q *rbuffer.Queue

	staged  atomic.Uint64
	dropped atomic.Uint64
}

// NewStager returns a Stager writing to q.
func NewStager(q *rbuffer.Queue) *Stager {
	return &Stager{q: q}
}

// Stage pushes r into the queue with a single PushBytes. If the queue can't
// take the whole record it is dropped and counted; only the first drop is
// logged. The returned error is nil for a drop.
func (s *Stager) Stage(r sensor.Reading) error {
	line, err := FormatRecord(r)
	if err != nil {
		return fmt.Errorf("format record: %w", err)
	}

	err = s.q.PushBytes(line)
	switch {
	case err == nil:
		s.staged.Add(1)
		return nil
	case errors.Is(err, rbuffer.ErrFull), errors.Is(err, rbuffer.ErrNotEnoughSpace):
		if s.dropped.Add(1) == 1 {
			log.Printf("telemetry: queue full, dropping records (%d bytes free, record is %d)", s.q.FreeSpace(), len(line))
		}
		metrics.IncTelemetryDropped()
		return nil
	default:
		return fmt.Errorf("stage record: %w", err)
	}
}

// Staged returns the number of records pushed into the queue.
func (s *Stager) Staged() uint64 { return s.staged.Load() }

// Dropped returns the number of records dropped.
func (s *Stager) Dropped() uint64 { return s.dropped.Load() }

// Publisher is the outbound link the Flusher writes to.
type Publisher interface {
	PublishTelemetry(payload []byte) error
	IsConnected() bool
}

// Flusher is the consumer side. It drains the queue and publishes one
// message per record.
type Flusher struct {
	q   *rbuffer.Queue
	pub Publisher

	mu      sync.Mutex
	pending [][]byte // popped but not yet published

	published atomic.Uint64
}

// NewFlusher returns a Flusher reading from q.
func NewFlusher(q *rbuffer.Queue, pub Publisher) *Flusher {
	return &Flusher{q: q, pub: pub}
}

// Flush publishes everything staged so far. It does nothing while the link
// is down. Records that fail to publish are kept and retried first on the
// next call; the queue is not drained until they go out, so a long outage
// fills the queue and the Stager starts dropping.
func (f *Flusher) Flush() (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	defer func() { metrics.SetQueueUsed(f.q.UsedSpace()) }()

	if !f.pub.IsConnected() {
		return 0, nil
	}

	if len(f.pending) == 0 {
		n := f.q.UsedSpace()
		if n == 0 {
			return 0, nil
		}
		buf := make([]byte, n)
		if err := f.q.PopBytes(buf); err != nil {
			return 0, fmt.Errorf("drain queue: %w", err)
		}
		f.pending = splitLines(buf)
	}

	sent := 0
	for len(f.pending) > 0 {
		if err := f.pub.PublishTelemetry(f.pending[0]); err != nil {
			f.record(sent)
			return sent, fmt.Errorf("publish telemetry: %w", err)
		}
		f.pending = f.pending[1:]
		sent++
	}
	f.pending = nil
	f.record(sent)
	return sent, nil
}

func (f *Flusher) record(n int) {
	if n == 0 {
		return
	}
	f.published.Add(uint64(n))
	metrics.AddTelemetryPublished(n)
}

// Published returns the number of records published.
func (f *Flusher) Published() uint64 { return f.published.Load() }

// Pending returns the number of records popped but not yet published.
func (f *Flusher) Pending() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.pending)
}

// Run calls Flush every interval until ctx is done, then flushes once more.
// A failing publish is logged once until a flush succeeds again.
func (f *Flusher) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	failing := false
	flush := func() {
		_, err := f.Flush()
		switch {
		case err != nil && !failing:
			log.Printf("telemetry: %v", err)
			failing = true
		case err == nil && failing:
			log.Printf("telemetry: publishing again")
			failing = false
		}
	}

	for {
		select {
		case <-ctx.Done():
			flush()
			return
		case <-ticker.C:
			flush()
		}
	}
}

// splitLines splits buf into newline-terminated records, without the
// newline. Empty lines are skipped.
func splitLines(buf []byte) [][]byte {
	var lines [][]byte
	for len(buf) > 0 {
		i := bytes.IndexByte(buf, '\n')
		if i < 0 {
			lines = append(lines, buf)
			break
		}
		if i > 0 {
			lines = append(lines, buf[:i])
		}
		buf = buf[i+1:]
	}
	return lines
}
