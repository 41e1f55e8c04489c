package status

import (
	"encoding/json"
	"math"
	"time"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event             string      `json:"event,omitempty"`
	Reason            string      `json:"reason,omitempty"`
	FlowLPerMin       float64     `json:"flow_l_per_min"`
	TotalVolumeLiters float64     `json:"total_volume_liters"`
	LeakFlagged       bool        `json:"leak_flagged"`
	ForcedLeak        bool        `json:"forced_leak"`
	ConsecutiveHigh   int         `json:"consecutive_high"`
	Ticks             uint64      `json:"ticks"`
	History           HistoryJSON `json:"history"`
	UptimeSeconds     int64       `json:"uptime_seconds"`
	StartTime         string      `json:"start_time"`
	Timestamp         string      `json:"timestamp"`
	MQTT              MQTTStatus  `json:"mqtt"`
	Config            ConfigJSON  `json:"config"`
}

// HistoryJSON carries the retained samples as parallel label/value
// sequences, oldest first, ready to feed a chart.
type HistoryJSON struct {
	Labels []string  `json:"labels"`
	Values []float64 `json:"values"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Enabled   bool   `json:"enabled"`
	Connected bool   `json:"connected"`
	Broker    string `json:"broker,omitempty"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	TickMs           int64   `json:"tick_ms"`
	ThresholdLPerMin float64 `json:"threshold_l_per_min"`
	ConsecutiveTicks int     `json:"consecutive_ticks"`
	MaxHistoryPoints int     `json:"max_history_points"`
	HTTPAddr         string  `json:"http_addr"`
}

// Round2 rounds a value to 2 decimal places for display.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func buildInner(snap Snapshot) StatusInner {
	labels := snap.Sim.HistoryLabels()
	if labels == nil {
		labels = []string{}
	}
	values := snap.Sim.HistoryValues()
	if values == nil {
		values = []float64{}
	}

	return StatusInner{
		FlowLPerMin:       snap.Sim.CurrentFlowLPerMin,
		TotalVolumeLiters: Round2(snap.Sim.TotalVolumeLiters),
		LeakFlagged:       snap.Sim.LeakFlagged,
		ForcedLeak:        snap.Sim.ForcedLeak,
		ConsecutiveHigh:   snap.Sim.ConsecutiveHigh,
		Ticks:             snap.Sim.Ticks,
		History:           HistoryJSON{Labels: labels, Values: values},
		UptimeSeconds:     int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:         snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:         snap.Now.UTC().Format(time.RFC3339),
		MQTT: MQTTStatus{
			Enabled:   snap.Config.Broker != "",
			Connected: snap.MQTTConnected,
			Broker:    snap.Config.Broker,
		},
		Config: ConfigJSON{
			TickMs:           snap.Config.TickMs,
			ThresholdLPerMin: snap.Config.ThresholdLPerMin,
			ConsecutiveTicks: snap.Config.ConsecutiveTicks,
			MaxHistoryPoints: snap.Config.MaxHistoryPoints,
			HTTPAddr:         snap.Config.HTTPAddr,
		},
	}
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
