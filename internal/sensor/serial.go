package sensor

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.bug.st/serial"
)

// DefaultBaudRate is the sensor board's serial speed.
const DefaultBaudRate = 9600

// SerialSource reads samples streamed by the sensor board. The board sends
// one line per sample:
//
//	light,sound,battery,temperature_c,humidity_pct
//
// e.g. "30000,1200,330,21.5,40.2". A reader goroutine keeps the latest
// valid sample; Read never blocks on the port.
type SerialSource struct {
	port io.ReadCloser
	now  func() time.Time

	mu      sync.RWMutex
	latest  Raw
	have    bool
	closed  bool
	readErr error
	badLine int

	done chan struct{}
}

// OpenSerial opens the named serial port and starts reading.
func OpenSerial(name string, baudRate int) (*SerialSource, error) {
	if baudRate == 0 {
		baudRate = DefaultBaudRate
	}
	port, err := serial.Open(name, &serial.Mode{BaudRate: baudRate})
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %w", name, err)
	}
	return newSerialSource(port, time.Now), nil
}

func newSerialSource(port io.ReadCloser, now func() time.Time) *SerialSource {
	s := &SerialSource{
		port: port,
		now:  now,
		done: make(chan struct{}),
	}
	go s.readLines()
	return s
}

// Read returns the latest sample. If the port failed, the failure is
// returned once no more samples can arrive.
func (s *SerialSource) Read() (Raw, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	switch {
	case s.closed:
		return Raw{}, ErrClosed
	case s.readErr != nil:
		return s.latest, s.readErr
	case !s.have:
		return Raw{}, ErrNoSample
	}
	return s.latest, nil
}

// BadLines returns how many lines could not be parsed.
func (s *SerialSource) BadLines() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.badLine
}

// Close closes the port and waits for the reader to exit.
func (s *SerialSource) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	err := s.port.Close()
	<-s.done
	return err
}

func (s *SerialSource) readLines() {
	defer close(s.done)

	scanner := bufio.NewScanner(s.port)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		raw, err := parseLine(line)
		if err != nil {
			s.mu.Lock()
			s.badLine++
			first := s.badLine == 1
			s.mu.Unlock()
			if first {
				log.Printf("sensor: bad line %q: %v", line, err)
			}
			continue
		}
		raw.Time = s.now()

		s.mu.Lock()
		s.latest = raw
		s.have = true
		s.mu.Unlock()
	}

	err := scanner.Err()
	if err == nil {
		err = io.EOF
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		log.Printf("sensor: serial read stopped: %v", err)
		s.readErr = fmt.Errorf("sensor: serial read: %w", err)
	}
}

// parseLine parses one sample line.
func parseLine(line string) (Raw, error) {
	parts := strings.Split(line, ",")
	if len(parts) != 5 {
		return Raw{}, fmt.Errorf("expected 5 comma-separated values, got %d", len(parts))
	}

	var adc [3]uint16
	for i, name := range []string{"light", "sound", "battery"} {
		v, err := strconv.ParseUint(strings.TrimSpace(parts[i]), 10, 16)
		if err != nil {
			return Raw{}, fmt.Errorf("invalid %s: %w", name, err)
		}
		adc[i] = uint16(v)
	}
	if adc[2] > BatteryADCMax {
		return Raw{}, fmt.Errorf("battery out of range: %d (max %d)", adc[2], BatteryADCMax)
	}

	temp, err := strconv.ParseFloat(strings.TrimSpace(parts[3]), 32)
	if err != nil {
		return Raw{}, fmt.Errorf("invalid temperature: %w", err)
	}
	hum, err := strconv.ParseFloat(strings.TrimSpace(parts[4]), 32)
	if err != nil {
		return Raw{}, fmt.Errorf("invalid humidity: %w", err)
	}
	if hum < 0 || hum > 100 {
		return Raw{}, errors.New("humidity out of range 0..100")
	}

	return Raw{
		Light:        adc[0],
		Sound:        adc[1],
		Battery:      adc[2],
		TemperatureC: float32(temp),
		HumidityPct:  float32(hum),
	}, nil
}
