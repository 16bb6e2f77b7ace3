package sensor

import (
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLux(t *testing.T) {
	assert.Equal(t, float32(MaxLux), Lux(0))
	assert.Equal(t, float32(MaxLux), Lux(1))

	// 21359957977 * 10000^-2.012 ~= 190
	assert.InDelta(t, 190.0, Lux(10000), 5)

	// Brighter light reads lower.
	assert.Greater(t, Lux(5000), Lux(20000))
}

func TestBrightnessOf(t *testing.T) {
	tests := []struct {
		raw  uint16
		want Brightness
	}{
		{0, Bright},
		{10000, Bright},
		{20000, Normal},
		{40000, Dim},
		{60000, Dark},
		{LightADCMax, Dark},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, BrightnessOf(tt.raw), "raw=%d", tt.raw)
	}
}

func TestSoundDB(t *testing.T) {
	assert.Equal(t, float32(0), SoundDB(0))

	// A reading equal to the reference voltage is 94 dB.
	refCounts := MicRefRMSVolts / ADCRefVolts * SoundADCMax
	ref := uint16(refCounts)
	assert.InDelta(t, 94.0, SoundDB(ref), 0.1)

	// Ten times the voltage is 20 dB louder.
	assert.InDelta(t, 114.0, SoundDB(ref*10), 0.1)
}

func TestBatteryPercent(t *testing.T) {
	tests := []struct {
		raw  uint16
		want uint8
	}{
		{0, 0},
		{BatteryRawEmpty, 0},
		{271, 10},
		{315, 50},
		{BatteryRawFull, 100},
		{BatteryADCMax, 100},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, BatteryPercent(tt.raw), "raw=%d", tt.raw)
	}
}

func TestConvert(t *testing.T) {
	r := Raw{Light: 20000, Sound: 0, Battery: 315, TemperatureC: 21.5, HumidityPct: 40}
	got := Convert(r)

	assert.Equal(t, r, got.Raw)
	assert.Equal(t, Normal, got.Brightness)
	assert.Equal(t, uint8(50), got.BatteryPct)
	assert.Equal(t, float32(0), got.SoundDB)
	assert.Equal(t, Lux(20000), got.Lux)
}

func TestBrightnessString(t *testing.T) {
	assert.Equal(t, "DARK", Dark.String())
	assert.Equal(t, "BRIGHT", Bright.String())
	assert.Equal(t, "UNKNOWN", Brightness(9).String())
}

func TestParseLine(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		want    Raw
		wantErr bool
	}{
		{
			name: "valid",
			line: "30000,1200,330,21.5,40.2",
			want: Raw{Light: 30000, Sound: 1200, Battery: 330, TemperatureC: 21.5, HumidityPct: 40.2},
		},
		{
			name: "spaces around values",
			line: "1, 2, 3, -4.5, 0",
			want: Raw{Light: 1, Sound: 2, Battery: 3, TemperatureC: -4.5},
		},
		{name: "too few fields", line: "1,2,3,4", wantErr: true},
		{name: "too many fields", line: "1,2,3,4,5,6", wantErr: true},
		{name: "light not a number", line: "x,2,3,4,5", wantErr: true},
		{name: "light overflows", line: "70000,2,3,4,5", wantErr: true},
		{name: "battery out of range", line: "1,2,2000,4,5", wantErr: true},
		{name: "bad temperature", line: "1,2,3,warm,5", wantErr: true},
		{name: "humidity out of range", line: "1,2,3,4,101", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseLine(tt.line)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestSerialSourceKeepsLatest(t *testing.T) {
	pr, pw := io.Pipe()
	stamp := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	src := newSerialSource(pr, func() time.Time { return stamp })
	defer src.Close()

	_, err := src.Read()
	assert.ErrorIs(t, err, ErrNoSample)

	_, err = io.WriteString(pw, "100,200,300,20,50\n\ngarbage\n400,500,320,21,51\n")
	require.NoError(t, err)

	waitFor(t, func() bool {
		r, err := src.Read()
		return err == nil && r.Light == 400
	})

	r, err := src.Read()
	require.NoError(t, err)
	assert.Equal(t, Raw{Time: stamp, Light: 400, Sound: 500, Battery: 320, TemperatureC: 21, HumidityPct: 51}, r)
	assert.Equal(t, 1, src.BadLines())
}

func TestSerialSourceReadError(t *testing.T) {
	pr, pw := io.Pipe()
	src := newSerialSource(pr, time.Now)
	defer src.Close()

	io.WriteString(pw, "100,200,300,20,50\n")
	waitFor(t, func() bool {
		_, err := src.Read()
		return err == nil
	})

	pw.CloseWithError(errors.New("device unplugged"))
	waitFor(t, func() bool {
		_, err := src.Read()
		return err != nil
	})

	r, err := src.Read()
	assert.Error(t, err)
	assert.Equal(t, uint16(100), r.Light, "last sample is still returned")
}

func TestSerialSourceClose(t *testing.T) {
	pr, _ := io.Pipe()
	src := newSerialSource(pr, time.Now)

	require.NoError(t, src.Close())
	require.NoError(t, src.Close())

	_, err := src.Read()
	assert.ErrorIs(t, err, ErrClosed)
}

func TestFakeSource(t *testing.T) {
	f := NewFakeSource()
	_, err := f.Read()
	assert.ErrorIs(t, err, ErrNoSample)

	f.Push(Raw{Light: 1}, Raw{Light: 2})
	r, _ := f.Read()
	assert.Equal(t, uint16(1), r.Light)
	r, _ = f.Read()
	assert.Equal(t, uint16(2), r.Light)
	r, _ = f.Read()
	assert.Equal(t, uint16(2), r.Light, "last sample repeats")

	f.Push(Raw{Light: 3})
	r, _ = f.Read()
	assert.Equal(t, uint16(3), r.Light)

	f.ReadError = errors.New("adc fault")
	_, err = f.Read()
	assert.Error(t, err)
	f.ReadError = nil

	require.NoError(t, f.Close())
	_, err = f.Read()
	assert.ErrorIs(t, err, ErrClosed)
}

var _ Source = (*SerialSource)(nil)
var _ Source = (*FakeSource)(nil)
