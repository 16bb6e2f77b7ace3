// Package mqtt provides MQTT publishing with abstraction for testing.
package mqtt

import (
	"encoding/json"
	"time"

	"github.com/sweeney/suricata/internal/logic"
)

// TopicTelemetry carries one JSON reading per message.
const TopicTelemetry = "sensors/suricata/telemetry"

// TopicBattery carries the battery level. Messages are retained so a new
// subscriber sees the current level straight away.
const TopicBattery = "sensors/suricata/battery"

// TopicSystem is the MQTT topic for system lifecycle events.
const TopicSystem = "sensors/suricata/system"

// Publisher publishes node data to MQTT.
type Publisher interface {
	// PublishTelemetry sends one pre-formatted telemetry record.
	// Returns error if publishing fails (should not crash the process).
	PublishTelemetry(payload []byte) error

	// PublishBattery sends the battery level, retained.
	PublishBattery(level BatteryLevel) error

	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// BatteryLevel is a battery report.
type BatteryLevel struct {
	Timestamp time.Time
	Percent   uint8
	State     logic.BatteryState
}

// SystemEvent represents a system lifecycle event (e.g., startup, shutdown, heartbeat).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN", "HEARTBEAT"
	Reason     string // e.g., "SIGTERM", "SIGINT" (shutdown only)
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool   // Whether the message should be retained by the broker
}

// BatteryPayload represents the MQTT message payload for a battery report.
type BatteryPayload struct {
	Battery BatteryPayloadInner `json:"battery"`
}

// BatteryPayloadInner contains the battery report details.
type BatteryPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Percent   uint8  `json:"percent"`
	State     string `json:"state"`
}

// FormatBatteryPayload creates the JSON payload for a battery report.
func FormatBatteryPayload(level BatteryLevel) ([]byte, error) {
	payload := BatteryPayload{
		Battery: BatteryPayloadInner{
			Timestamp: level.Timestamp.UTC().Format(time.RFC3339),
			Percent:   level.Percent,
			State:     string(level.State),
		},
	}
	return json.Marshal(payload)
}

// SystemPayload represents the MQTT message payload for system events.
// Used for simple events (LWT, RECONNECTED) that don't carry a full status snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
// If event.RawPayload is set, it is returned directly (used for full status snapshots).
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}

	payload := SystemPayload{
		System: SystemPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Event,
			Reason:    event.Reason,
		},
	}
	return json.Marshal(payload)
}

// WillEvent is the last-will message the broker publishes if the node
// drops off without a clean disconnect.
func WillEvent(now time.Time) SystemEvent {
	return SystemEvent{
		Timestamp: now,
		Event:     "OFFLINE",
		Reason:    "MQTT_DISCONNECT",
		Retained:  true,
	}
}
