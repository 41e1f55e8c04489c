package main

import (
	"encoding/json"
	"fmt"
	"os"
	"syscall"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/sweeney/flow-monitor/internal/config"
	"github.com/sweeney/flow-monitor/internal/metrics"
	"github.com/sweeney/flow-monitor/internal/mqtt"
	"github.com/sweeney/flow-monitor/internal/sim"
	"github.com/sweeney/flow-monitor/internal/status"
	"github.com/sweeney/flow-monitor/internal/web"
)

func TestApplyFlagsZeroValuesLeaveConfig(t *testing.T) {
	cfg := config.Default()
	want := cfg

	applyFlags(&cfg, 0, 0, 0, 0, "", "", 0)

	if cfg != want {
		t.Errorf("zero-valued flags changed config: got %+v, want %+v", cfg, want)
	}
}

func TestApplyFlagsOverrides(t *testing.T) {
	cfg := config.Default()

	applyFlags(&cfg, 5*time.Second, 9.5, 4, 60, ":9090", "tcp://broker:1883", 30*time.Second)

	if cfg.TickInterval != 5*time.Second {
		t.Errorf("TickInterval: got %v, want 5s", cfg.TickInterval)
	}
	if cfg.LeakThresholdLPerMin != 9.5 {
		t.Errorf("LeakThresholdLPerMin: got %v, want 9.5", cfg.LeakThresholdLPerMin)
	}
	if cfg.LeakConsecutiveTicks != 4 {
		t.Errorf("LeakConsecutiveTicks: got %d, want 4", cfg.LeakConsecutiveTicks)
	}
	if cfg.MaxHistoryPoints != 60 {
		t.Errorf("MaxHistoryPoints: got %d, want 60", cfg.MaxHistoryPoints)
	}
	if cfg.HTTPAddr != ":9090" {
		t.Errorf("HTTPAddr: got %q, want :9090", cfg.HTTPAddr)
	}
	if cfg.Broker != "tcp://broker:1883" {
		t.Errorf("Broker: got %q, want tcp://broker:1883", cfg.Broker)
	}
	if cfg.HeartbeatInterval != 30*time.Second {
		t.Errorf("HeartbeatInterval: got %v, want 30s", cfg.HeartbeatInterval)
	}
}

func TestApplyFlagsOffDisables(t *testing.T) {
	cfg := config.Default()
	cfg.Broker = "tcp://broker:1883"

	applyFlags(&cfg, 0, 0, 0, 0, "off", "off", -1)

	if cfg.HTTPAddr != "" {
		t.Errorf("HTTPAddr: got %q, want empty after \"off\"", cfg.HTTPAddr)
	}
	if cfg.Broker != "" {
		t.Errorf("Broker: got %q, want empty after \"off\"", cfg.Broker)
	}
	if cfg.HeartbeatInterval != 0 {
		t.Errorf("HeartbeatInterval: got %v, want 0 after negative flag", cfg.HeartbeatInterval)
	}
}

func TestStatusConfig(t *testing.T) {
	cfg := config.Config{
		TickInterval:         2 * time.Second,
		LeakThresholdLPerMin: 8,
		LeakConsecutiveTicks: 3,
		MaxHistoryPoints:     30,
		HTTPAddr:             ":8080",
		Broker:               "tcp://localhost:1883",
	}

	sc := statusConfig(cfg)
	if sc.TickMs != 2000 {
		t.Errorf("TickMs: got %d, want 2000", sc.TickMs)
	}
	if sc.ThresholdLPerMin != 8 {
		t.Errorf("ThresholdLPerMin: got %v, want 8", sc.ThresholdLPerMin)
	}
	if sc.ConsecutiveTicks != 3 {
		t.Errorf("ConsecutiveTicks: got %d, want 3", sc.ConsecutiveTicks)
	}
	if sc.MaxHistoryPoints != 30 {
		t.Errorf("MaxHistoryPoints: got %d, want 30", sc.MaxHistoryPoints)
	}
	if sc.HTTPAddr != ":8080" {
		t.Errorf("HTTPAddr: got %q, want :8080", sc.HTTPAddr)
	}
	if sc.Broker != "tcp://localhost:1883" {
		t.Errorf("Broker: got %q, want tcp://localhost:1883", sc.Broker)
	}
}

func TestBrokerLabel(t *testing.T) {
	if got := brokerLabel(""); got != "disabled" {
		t.Errorf("empty broker: got %q, want disabled", got)
	}
	if got := brokerLabel("tcp://localhost:1883"); got != "tcp://localhost:1883" {
		t.Errorf("set broker: got %q", got)
	}
}

// --- makeOnTick tests ---

func newOnTickFixture(t *testing.T) (*status.Tracker, *metrics.Metrics) {
	t.Helper()
	tracker := status.NewTracker(time.Now(), statusConfig(config.Default()))
	reg := prometheus.NewRegistry()
	return tracker, metrics.New(reg, tracker)
}

func TestOnTickUpdatesTrackerAndPublishes(t *testing.T) {
	tracker, m := newOnTickFixture(t)
	pub := mqtt.NewFakePublisher()
	pub.Connected = true

	hook := makeOnTick(tracker, m, pub, pub, nil, 0)

	snap := sim.Snapshot{
		CurrentFlowLPerMin: 9,
		TotalVolumeLiters:  0.3,
		ConsecutiveHigh:    1,
		Ticks:              1,
	}
	hook(snap, nil)

	got := tracker.Snapshot()
	if got.Sim.CurrentFlowLPerMin != 9 {
		t.Errorf("tracker flow: got %v, want 9", got.Sim.CurrentFlowLPerMin)
	}
	if !got.MQTTConnected {
		t.Error("tracker should see broker connection")
	}
	if pub.SampleCount() != 1 {
		t.Errorf("samples published: got %d, want 1", pub.SampleCount())
	}
	if pub.AlertCount() != 0 {
		t.Errorf("alerts published: got %d, want 0", pub.AlertCount())
	}
	if got := testutil.ToFloat64(m.TicksTotal); got != 1 {
		t.Errorf("ticks_total: got %v, want 1", got)
	}
}

func TestOnTickPublishesLeakAlert(t *testing.T) {
	tracker, m := newOnTickFixture(t)
	pub := mqtt.NewFakePublisher()

	hook := makeOnTick(tracker, m, pub, pub, nil, 0)

	event := sim.Event{
		Timestamp:       time.Date(2026, 3, 1, 9, 0, 4, 0, time.UTC),
		Type:            sim.EventLeakDetected,
		FlowLPerMin:     12,
		ConsecutiveHigh: 3,
	}
	hook(sim.Snapshot{CurrentFlowLPerMin: 12, LeakFlagged: true, ConsecutiveHigh: 3}, []sim.Event{event})

	if pub.AlertCount() != 1 {
		t.Fatalf("alerts published: got %d, want 1", pub.AlertCount())
	}
	if pub.Alerts[0].Type != sim.EventLeakDetected {
		t.Errorf("alert type: got %s", pub.Alerts[0].Type)
	}
	if got := testutil.ToFloat64(m.LeakAlertsTotal); got != 1 {
		t.Errorf("leak_alerts_total: got %v, want 1", got)
	}
}

func TestOnTickAcknowledgeEventNotCountedAsAlert(t *testing.T) {
	tracker, m := newOnTickFixture(t)
	pub := mqtt.NewFakePublisher()

	hook := makeOnTick(tracker, m, pub, pub, nil, 0)
	hook(sim.Snapshot{}, []sim.Event{{Type: sim.EventLeakAcknowledged}})

	// Still published over MQTT, but only detections count toward the metric.
	if pub.AlertCount() != 1 {
		t.Errorf("alerts published: got %d, want 1", pub.AlertCount())
	}
	if got := testutil.ToFloat64(m.LeakAlertsTotal); got != 0 {
		t.Errorf("leak_alerts_total: got %v, want 0", got)
	}
}

func TestOnTickSurvivesPublishError(t *testing.T) {
	tracker, m := newOnTickFixture(t)
	pub := mqtt.NewFakePublisher()
	pub.PublishError = fmt.Errorf("broker unavailable")

	hook := makeOnTick(tracker, m, pub, pub, nil, 0)

	// Must not panic, and the tracker must still be refreshed.
	hook(sim.Snapshot{CurrentFlowLPerMin: 7, Ticks: 3}, []sim.Event{{Type: sim.EventLeakDetected}})

	if got := tracker.Snapshot().Sim.Ticks; got != 3 {
		t.Errorf("tracker ticks: got %d, want 3", got)
	}
	if pub.SampleCount() != 0 {
		t.Errorf("samples recorded despite error: got %d", pub.SampleCount())
	}
}

func TestOnTickWithoutPublisher(t *testing.T) {
	tracker, m := newOnTickFixture(t)

	hook := makeOnTick(tracker, m, nil, nil, nil, 0)
	hook(sim.Snapshot{CurrentFlowLPerMin: 4, Ticks: 1}, nil)

	if got := tracker.Snapshot().Sim.CurrentFlowLPerMin; got != 4 {
		t.Errorf("tracker flow: got %v, want 4", got)
	}
}

func TestOnTickPublishesHeartbeat(t *testing.T) {
	tracker := status.NewTracker(time.Now().Add(-time.Hour), statusConfig(config.Default()))
	reg := prometheus.NewRegistry()
	m := metrics.New(reg, tracker)
	pub := mqtt.NewFakePublisher()

	hook := makeOnTick(tracker, m, pub, pub, nil, 15*time.Minute)
	hook(sim.Snapshot{CurrentFlowLPerMin: 5, Ticks: 10}, nil)

	if len(pub.SystemEvents) != 1 {
		t.Fatalf("system events: got %d, want 1", len(pub.SystemEvents))
	}
	hb := pub.SystemEvents[0]
	if hb.Event != "HEARTBEAT" {
		t.Errorf("event: got %q, want HEARTBEAT", hb.Event)
	}
	if !hb.Retained {
		t.Error("heartbeat must be retained")
	}
	var payload status.StatusJSON
	if err := json.Unmarshal(hb.RawPayload, &payload); err != nil {
		t.Fatalf("heartbeat payload: %v", err)
	}
	if payload.Status.Event != "HEARTBEAT" {
		t.Errorf("payload event: got %q, want HEARTBEAT", payload.Status.Event)
	}

	// The mark advanced, so an immediate next tick stays quiet.
	hook(sim.Snapshot{CurrentFlowLPerMin: 5, Ticks: 11}, nil)
	if len(pub.SystemEvents) != 1 {
		t.Errorf("system events after second tick: got %d, want 1", len(pub.SystemEvents))
	}
}

func TestOnTickHeartbeatDisabled(t *testing.T) {
	tracker := status.NewTracker(time.Now().Add(-time.Hour), statusConfig(config.Default()))
	reg := prometheus.NewRegistry()
	m := metrics.New(reg, tracker)
	pub := mqtt.NewFakePublisher()

	hook := makeOnTick(tracker, m, pub, pub, nil, 0)
	hook(sim.Snapshot{CurrentFlowLPerMin: 5}, nil)

	if len(pub.SystemEvents) != 0 {
		t.Errorf("system events: got %d, want 0", len(pub.SystemEvents))
	}
}

func TestMakeOnEventPublishesAcknowledge(t *testing.T) {
	pub := mqtt.NewFakePublisher()

	onEvent := makeOnEvent(pub)
	onEvent(sim.Event{Type: sim.EventLeakAcknowledged, FlowLPerMin: 9})

	if pub.AlertCount() != 1 {
		t.Fatalf("alerts published: got %d, want 1", pub.AlertCount())
	}
	if pub.Alerts[0].Type != sim.EventLeakAcknowledged {
		t.Errorf("alert type: got %s", pub.Alerts[0].Type)
	}
}

func TestMakeOnEventWithoutPublisher(t *testing.T) {
	onEvent := makeOnEvent(nil)
	// Must not panic.
	onEvent(sim.Event{Type: sim.EventLeakAcknowledged})
}

func TestRunShutsDownOnSignal(t *testing.T) {
	cfg := config.Default()
	cfg.TickInterval = 5 * time.Millisecond
	cfg.HTTPAddr = ""
	cfg.Broker = ""

	sigCh := make(chan os.Signal, 1)
	errCh := make(chan error, 1)
	go func() {
		errCh <- run(cfg, sigCh)
	}()

	// Let a few ticks happen, then shut down.
	time.Sleep(25 * time.Millisecond)
	sigCh <- syscall.SIGTERM

	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("run returned error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("run did not return after SIGTERM")
	}
}

func TestOnTickBroadcastsToHub(t *testing.T) {
	tracker, m := newOnTickFixture(t)
	hub := web.NewHub()

	// No clients registered; Broadcast must still be a safe no-op.
	hook := makeOnTick(tracker, m, nil, nil, hub, 0)
	hook(sim.Snapshot{CurrentFlowLPerMin: 6}, nil)

	if hub.ClientCount() != 0 {
		t.Errorf("unexpected clients: %d", hub.ClientCount())
	}
}
