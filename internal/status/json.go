package status

import (
	"encoding/json"
	"time"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string       `json:"event,omitempty"`
	Reason        string       `json:"reason,omitempty"`
	Battery       string       `json:"battery"`
	Brightness    string       `json:"brightness"`
	Ready         bool         `json:"ready"`
	UptimeSeconds int64        `json:"uptime_seconds"`
	StartTime     string       `json:"start_time"`
	Timestamp     string       `json:"timestamp"`
	Reading       *ReadingJSON `json:"reading,omitempty"`
	SensorErrors  uint64       `json:"sensor_errors"`
	LED           LEDJSON      `json:"led"`
	Queue         QueueJSON    `json:"queue"`
	MQTT          MQTTStatus   `json:"mqtt"`
	Counts        CountsJSON   `json:"event_counts"`
	Network       *NetworkJSON `json:"network,omitempty"`
	Config        ConfigJSON   `json:"config"`
}

// ReadingJSON is the JSON representation of the latest sample.
type ReadingJSON struct {
	Timestamp    string  `json:"timestamp"`
	Lux          float32 `json:"lux"`
	SoundDB      float32 `json:"sound_db"`
	BatteryPct   uint8   `json:"battery_pct"`
	TemperatureC float32 `json:"temperature_c"`
	HumidityPct  float32 `json:"humidity_pct"`
}

// LEDJSON reports the lighting engine.
type LEDJSON struct {
	Mode        string `json:"mode"`
	Pattern     string `json:"pattern,omitempty"`
	Color       string `json:"color"`
	Ticks       uint64 `json:"ticks"`
	DriveErrors uint64 `json:"drive_errors"`
}

// QueueJSON reports the telemetry queue.
type QueueJSON struct {
	Used      int    `json:"used"`
	Free      int    `json:"free"`
	Capacity  int    `json:"capacity"`
	Staged    uint64 `json:"staged"`
	Dropped   uint64 `json:"dropped"`
	Published uint64 `json:"published"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// CountsJSON is the JSON representation of event counts.
type CountsJSON struct {
	BatteryOK         int `json:"battery_ok"`
	BatteryLow        int `json:"battery_low"`
	BatteryCritical   int `json:"battery_critical"`
	BrightnessChanged int `json:"brightness_changed"`
}

// NetworkJSON is the JSON representation of network info.
type NetworkJSON struct {
	Type       string `json:"type"`
	IP         string `json:"ip"`
	Status     string `json:"status"`
	Gateway    string `json:"gateway"`
	WifiStatus string `json:"wifi_status"`
	SSID       string `json:"ssid"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	PollMs      int64  `json:"poll_ms"`
	DebounceMs  int64  `json:"debounce_ms"`
	HeartbeatMs int64  `json:"heartbeat_ms"`
	Broker      string `json:"broker"`
	HTTPPort    string `json:"http_port"`
	SerialPort  string `json:"serial_port,omitempty"`
	QueueSize   int    `json:"queue_size"`
	ActiveLow   bool   `json:"active_low"`
}

// StateOrUnknown returns the battery and brightness labels, or UNKNOWN for
// both until the detector has a baseline.
func (s Snapshot) StateOrUnknown() (battery, brightness string) {
	if !s.Baselined || s.Battery == "" {
		return "UNKNOWN", "UNKNOWN"
	}
	return string(s.Battery), s.Brightness.String()
}

func buildInner(snap Snapshot) StatusInner {
	battery, brightness := snap.StateOrUnknown()

	inner := StatusInner{
		Battery:       battery,
		Brightness:    brightness,
		Ready:         snap.Baselined,
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		SensorErrors:  snap.SensorErrors,
		LED: LEDJSON{
			Mode:        snap.LED.Mode.String(),
			Pattern:     snap.Pattern,
			Color:       snap.LED.Color.String(),
			Ticks:       snap.LED.Ticks,
			DriveErrors: snap.LED.DriveErrors,
		},
		Queue: QueueJSON{
			Used:      snap.Queue.Used,
			Free:      snap.Queue.Free,
			Capacity:  snap.Queue.Cap,
			Staged:    snap.Queue.Staged,
			Dropped:   snap.Queue.Dropped,
			Published: snap.Queue.Published,
		},
		MQTT: MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Counts: CountsJSON{
			BatteryOK:         snap.Counts.BatteryOK,
			BatteryLow:        snap.Counts.BatteryLow,
			BatteryCritical:   snap.Counts.BatteryCritical,
			BrightnessChanged: snap.Counts.BrightnessChanged,
		},
		Config: ConfigJSON{
			PollMs:      snap.Config.PollMs,
			DebounceMs:  snap.Config.DebounceMs,
			HeartbeatMs: snap.Config.HeartbeatMs,
			Broker:      snap.Config.Broker,
			HTTPPort:    snap.Config.HTTPPort,
			SerialPort:  snap.Config.SerialPort,
			QueueSize:   snap.Config.QueueSize,
			ActiveLow:   snap.Config.ActiveLow,
		},
	}

	if r := snap.Reading; r != nil {
		inner.Reading = &ReadingJSON{
			Timestamp:    r.Time.UTC().Format(time.RFC3339),
			Lux:          r.Lux,
			SoundDB:      r.SoundDB,
			BatteryPct:   r.BatteryPct,
			TemperatureC: r.TemperatureC,
			HumidityPct:  r.HumidityPct,
		}
	}
	if n := snap.Network; n != nil {
		inner.Network = &NetworkJSON{
			Type:       n.Type,
			IP:         n.IP,
			Status:     n.Status,
			Gateway:    n.Gateway,
			WifiStatus: n.WifiStatus,
			SSID:       n.SSID,
		}
	}
	return inner
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	data, _ := json.MarshalIndent(StatusJSON{Status: buildInner(snap)}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
