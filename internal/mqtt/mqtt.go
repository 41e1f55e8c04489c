// Package mqtt provides MQTT publishing with abstraction for testing.
package mqtt

import (
	"encoding/json"
	"time"

	"github.com/sweeney/flow-monitor/internal/sim"
	"github.com/sweeney/flow-monitor/internal/status"
)

// TopicTelemetry is the MQTT topic for per-tick flow samples.
const TopicTelemetry = "water/flow/monitor/telemetry"

// TopicAlerts is the MQTT topic for leak detector events.
const TopicAlerts = "water/flow/monitor/alerts"

// TopicSystem is the MQTT topic for system lifecycle events.
const TopicSystem = "water/flow/monitor/system"

// Publisher publishes simulation output to MQTT.
type Publisher interface {
	// PublishSample sends a per-tick flow sample to the broker.
	// Returns error if publishing fails (should not crash the process).
	PublishSample(snap sim.Snapshot, at time.Time) error

	// PublishAlert sends a leak detector event to the broker.
	PublishAlert(event sim.Event) error

	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// SystemEvent represents a system lifecycle event (e.g., startup, shutdown).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN"
	Reason     string // e.g., "SIGTERM", "SIGINT" (shutdown only)
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool   // Whether the message should be retained by the broker
}

// TelemetryPayload is the MQTT message payload for a flow sample.
type TelemetryPayload struct {
	Telemetry TelemetryInner `json:"telemetry"`
}

// TelemetryInner contains the sample details.
type TelemetryInner struct {
	Timestamp         string  `json:"timestamp"`
	FlowLPerMin       float64 `json:"flow_l_per_min"`
	TotalVolumeLiters float64 `json:"total_volume_liters"`
	LeakFlagged       bool    `json:"leak_flagged"`
}

// FormatTelemetryPayload creates the JSON payload for a flow sample.
func FormatTelemetryPayload(snap sim.Snapshot, at time.Time) ([]byte, error) {
	payload := TelemetryPayload{
		Telemetry: TelemetryInner{
			Timestamp:         at.UTC().Format(time.RFC3339),
			FlowLPerMin:       snap.CurrentFlowLPerMin,
			TotalVolumeLiters: status.Round2(snap.TotalVolumeLiters),
			LeakFlagged:       snap.LeakFlagged,
		},
	}
	return json.Marshal(payload)
}

// AlertPayload is the MQTT message payload for a leak detector event.
type AlertPayload struct {
	Alert AlertInner `json:"alert"`
}

// AlertInner contains the alert details.
type AlertInner struct {
	Timestamp       string  `json:"timestamp"`
	Event           string  `json:"event"`
	FlowLPerMin     float64 `json:"flow_l_per_min"`
	ConsecutiveHigh int     `json:"consecutive_high"`
}

// FormatAlertPayload creates the JSON payload for a leak detector event.
func FormatAlertPayload(event sim.Event) ([]byte, error) {
	payload := AlertPayload{
		Alert: AlertInner{
			Timestamp:       event.Timestamp.UTC().Format(time.RFC3339),
			Event:           string(event.Type),
			FlowLPerMin:     event.FlowLPerMin,
			ConsecutiveHigh: event.ConsecutiveHigh,
		},
	}
	return json.Marshal(payload)
}

// SystemPayload is the MQTT message payload for simple system events
// that don't carry a full status snapshot.
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
