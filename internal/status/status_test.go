package status

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/sweeney/flow-monitor/internal/sim"
)

func testTracker() *Tracker {
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	return NewTracker(start, Config{
		TickMs:           2000,
		ThresholdLPerMin: 8,
		ConsecutiveTicks: 3,
		MaxHistoryPoints: 30,
		Broker:           "tcp://broker:1883",
		HTTPAddr:         ":8080",
	})
}

func TestTrackerInitialSnapshot(t *testing.T) {
	tr := testTracker()
	snap := tr.Snapshot()

	if snap.Sim.LeakFlagged {
		t.Error("expected no leak flag initially")
	}
	if snap.MQTTConnected {
		t.Error("expected MQTT disconnected initially")
	}
	if snap.Config.TickMs != 2000 {
		t.Errorf("Config.TickMs: got %d, want 2000", snap.Config.TickMs)
	}
	if snap.Now.IsZero() {
		t.Error("Snapshot should stamp Now")
	}
}

func TestTrackerUpdate(t *testing.T) {
	tr := testTracker()
	tr.Update(sim.Snapshot{
		CurrentFlowLPerMin: 9,
		TotalVolumeLiters:  1.25,
		LeakFlagged:        true,
		ConsecutiveHigh:    3,
		Ticks:              7,
	})

	snap := tr.Snapshot()
	if snap.Sim.CurrentFlowLPerMin != 9 {
		t.Errorf("CurrentFlowLPerMin: got %v, want 9", snap.Sim.CurrentFlowLPerMin)
	}
	if !snap.Sim.LeakFlagged {
		t.Error("expected leak flag")
	}
	if snap.Sim.Ticks != 7 {
		t.Errorf("Ticks: got %d, want 7", snap.Sim.Ticks)
	}
}

func TestTrackerSetMQTTConnected(t *testing.T) {
	tr := testTracker()
	tr.SetMQTTConnected(true)
	if !tr.Snapshot().MQTTConnected {
		t.Error("expected connected")
	}
	tr.SetMQTTConnected(false)
	if tr.Snapshot().MQTTConnected {
		t.Error("expected disconnected")
	}
}

func TestCheckHeartbeatDisabled(t *testing.T) {
	tr := testTracker()
	later := time.Date(2026, 3, 1, 1, 0, 0, 0, time.UTC)
	if tr.CheckHeartbeat(later, 0) {
		t.Error("zero interval must disable heartbeats")
	}
	if tr.CheckHeartbeat(later, -time.Minute) {
		t.Error("negative interval must disable heartbeats")
	}
}

func TestCheckHeartbeatBeforeInterval(t *testing.T) {
	tr := testTracker()
	at := time.Date(2026, 3, 1, 0, 14, 0, 0, time.UTC)
	if tr.CheckHeartbeat(at, 15*time.Minute) {
		t.Error("heartbeat fired before the interval elapsed")
	}
}

func TestCheckHeartbeatAtInterval(t *testing.T) {
	tr := testTracker()
	at := time.Date(2026, 3, 1, 0, 15, 0, 0, time.UTC)
	if !tr.CheckHeartbeat(at, 15*time.Minute) {
		t.Error("heartbeat did not fire at the interval")
	}
}

func TestCheckHeartbeatAdvancesMark(t *testing.T) {
	tr := testTracker()
	interval := 15 * time.Minute

	first := time.Date(2026, 3, 1, 0, 20, 0, 0, time.UTC)
	if !tr.CheckHeartbeat(first, interval) {
		t.Fatal("expected first heartbeat to fire")
	}
	// The mark moved to the fire time, not start+interval.
	if tr.CheckHeartbeat(first.Add(10*time.Minute), interval) {
		t.Error("heartbeat fired again within the interval")
	}
	if !tr.CheckHeartbeat(first.Add(interval), interval) {
		t.Error("expected heartbeat a full interval after the last one")
	}
}

func TestUptime(t *testing.T) {
	snap := Snapshot{
		StartTime: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		Now:       time.Date(2026, 3, 1, 1, 30, 0, 0, time.UTC),
	}
	if got := snap.Uptime(); got != 90*time.Minute {
		t.Errorf("Uptime: got %v, want 90m", got)
	}
}

func TestRound2(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{0, 0},
		{1.234, 1.23},
		{1.235, 1.24},
		{10.999, 11},
		{0.005, 0.01},
	}
	for _, tt := range tests {
		if got := Round2(tt.in); got != tt.want {
			t.Errorf("Round2(%v): got %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestFormatJSON(t *testing.T) {
	tr := testTracker()
	tr.Update(sim.Snapshot{
		CurrentFlowLPerMin: 9,
		TotalVolumeLiters:  1.23456,
		History: []sim.Sample{
			{Label: "09:00:00", FlowLPerMin: 4},
			{Label: "09:00:02", FlowLPerMin: 9},
		},
		ConsecutiveHigh: 1,
		LeakFlagged:     false,
		ForcedLeak:      true,
		Ticks:           2,
	})
	tr.SetMQTTConnected(true)

	var sj StatusJSON
	if err := json.Unmarshal(FormatJSON(tr.Snapshot()), &sj); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	st := sj.Status
	if st.FlowLPerMin != 9 {
		t.Errorf("flow: got %v, want 9", st.FlowLPerMin)
	}
	if st.TotalVolumeLiters != 1.23 {
		t.Errorf("volume: got %v, want 1.23 (rounded)", st.TotalVolumeLiters)
	}
	if !st.ForcedLeak {
		t.Error("expected forced_leak true")
	}
	if st.LeakFlagged {
		t.Error("expected leak_flagged false")
	}
	if len(st.History.Labels) != 2 || len(st.History.Values) != 2 {
		t.Fatalf("history: got %d labels / %d values, want 2/2", len(st.History.Labels), len(st.History.Values))
	}
	if st.History.Labels[0] != "09:00:00" || st.History.Values[1] != 9 {
		t.Errorf("history content: %v %v", st.History.Labels, st.History.Values)
	}
	if !st.MQTT.Enabled || !st.MQTT.Connected {
		t.Error("expected MQTT enabled and connected")
	}
	if st.Config.ThresholdLPerMin != 8 {
		t.Errorf("config threshold: got %v, want 8", st.Config.ThresholdLPerMin)
	}
	if st.Event != "" || st.Reason != "" {
		t.Error("web JSON must not carry event/reason")
	}
}

func TestFormatJSONEmptyHistoryIsArrays(t *testing.T) {
	tr := testTracker()

	var raw map[string]map[string]any
	if err := json.Unmarshal(FormatJSON(tr.Snapshot()), &raw); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	hist, ok := raw["status"]["history"].(map[string]any)
	if !ok {
		t.Fatal("missing history object")
	}
	if _, ok := hist["labels"].([]any); !ok {
		t.Errorf("labels should be an array, got %T", hist["labels"])
	}
	if _, ok := hist["values"].([]any); !ok {
		t.Errorf("values should be an array, got %T", hist["values"])
	}
}

func TestFormatJSONMQTTDisabled(t *testing.T) {
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	tr := NewTracker(start, Config{TickMs: 2000, ThresholdLPerMin: 8, ConsecutiveTicks: 3, MaxHistoryPoints: 30, HTTPAddr: ":8080"})

	var sj StatusJSON
	if err := json.Unmarshal(FormatJSON(tr.Snapshot()), &sj); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if sj.Status.MQTT.Enabled {
		t.Error("expected MQTT disabled when broker is empty")
	}
}

func TestFormatStatusEvent(t *testing.T) {
	tr := testTracker()

	var sj StatusJSON
	if err := json.Unmarshal(FormatStatusEvent(tr.Snapshot(), "SHUTDOWN", "SIGTERM"), &sj); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if sj.Status.Event != "SHUTDOWN" {
		t.Errorf("event: got %q, want SHUTDOWN", sj.Status.Event)
	}
	if sj.Status.Reason != "SIGTERM" {
		t.Errorf("reason: got %q, want SIGTERM", sj.Status.Reason)
	}
}
