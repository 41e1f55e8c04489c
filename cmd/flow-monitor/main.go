// Command flow-monitor simulates water-flow telemetry, serves a live
// dashboard, and flags a leak when the flow stays above a threshold for
// consecutive sampling ticks.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/sweeney/flow-monitor/internal/config"
	"github.com/sweeney/flow-monitor/internal/metrics"
	"github.com/sweeney/flow-monitor/internal/mqtt"
	"github.com/sweeney/flow-monitor/internal/sim"
	"github.com/sweeney/flow-monitor/internal/status"
	"github.com/sweeney/flow-monitor/internal/web"
)

func main() {
	cfgPath := flag.String("config", "", "YAML config file (empty: $FLOWMON_CONFIG or defaults)")
	tick := flag.Duration("tick", 0, "Sampling interval (overrides config)")
	threshold := flag.Float64("threshold", 0, "Leak threshold in L/min (overrides config)")
	consecutive := flag.Int("consecutive", 0, "Consecutive high ticks to flag a leak (overrides config)")
	history := flag.Int("history", 0, "Max retained history points (overrides config)")
	httpAddr := flag.String("http", "", "Dashboard address (overrides config, \"off\" disables)")
	broker := flag.String("broker", "", "MQTT broker address (overrides config, \"off\" disables)")
	heartbeat := flag.Duration("heartbeat", 0, "Status heartbeat interval (overrides config, negative disables)")

	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	applyFlags(&cfg, *tick, *threshold, *consecutive, *history, *httpAddr, *broker, *heartbeat)
	if err := cfg.Validate(); err != nil {
		log.Fatalf("config: %v", err)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	if err := run(cfg, sigCh); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

// applyFlags overrides loaded config with explicitly set flag values.
func applyFlags(cfg *config.Config, tick time.Duration, threshold float64, consecutive, history int, httpAddr, broker string, heartbeat time.Duration) {
	if tick > 0 {
		cfg.TickInterval = tick
	}
	if threshold > 0 {
		cfg.LeakThresholdLPerMin = threshold
	}
	if consecutive > 0 {
		cfg.LeakConsecutiveTicks = consecutive
	}
	if history > 0 {
		cfg.MaxHistoryPoints = history
	}
	switch httpAddr {
	case "":
	case "off":
		cfg.HTTPAddr = ""
	default:
		cfg.HTTPAddr = httpAddr
	}
	switch broker {
	case "":
	case "off":
		cfg.Broker = ""
	default:
		cfg.Broker = broker
	}
	if heartbeat > 0 {
		cfg.HeartbeatInterval = heartbeat
	} else if heartbeat < 0 {
		cfg.HeartbeatInterval = 0
	}
}

// run wires the daemon and blocks until a signal arrives on sigCh.
func run(cfg config.Config, sigCh <-chan os.Signal) error {
	startTime := time.Now()

	simulator := sim.New(cfg.Sampling())
	tracker := status.NewTracker(startTime, statusConfig(cfg))
	tracker.Update(simulator.Snapshot())

	reg := prometheus.NewRegistry()
	m := metrics.New(reg, tracker)

	// MQTT is optional; the daemon is fully functional standalone.
	var publisher mqtt.Publisher
	var connStatus mqtt.ConnectionStatus
	if cfg.Broker != "" {
		real, err := mqtt.NewRealPublisher(cfg.Broker, cfg.AlertBufferCapacity)
		if err != nil {
			return fmt.Errorf("init mqtt: %w", err)
		}
		defer real.Close()
		publisher = real
		connStatus = real
		tracker.SetMQTTConnected(real.IsConnected())

		snap := tracker.Snapshot()
		startup := mqtt.SystemEvent{
			Timestamp:  snap.Now,
			Event:      "STARTUP",
			Retained:   true,
			RawPayload: status.FormatStatusEvent(snap, "STARTUP", ""),
		}
		if err := publisher.PublishSystem(startup); err != nil {
			log.Printf("failed to publish startup event: %v", err)
		} else {
			log.Printf("published startup event")
		}
	}

	hub := web.NewHub()

	runner := sim.NewRunner(simulator)
	runner.OnTick = makeOnTick(tracker, m, publisher, connStatus, hub, cfg.HeartbeatInterval)

	if cfg.HTTPAddr != "" {
		srv := web.New(cfg.HTTPAddr, web.Options{
			Tracker:  tracker,
			Sim:      simulator,
			Hub:      hub,
			Metrics:  m,
			Gatherer: reg,
			OnEvent:  makeOnEvent(publisher),
		})
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("http server error: %v", err)
			}
		}()
		defer srv.Shutdown(context.Background())
		log.Printf("dashboard listening on %s", cfg.HTTPAddr)
	}

	log.Printf("started: tick=%v threshold=%.1fL/min consecutive=%d history=%d broker=%s heartbeat=%v",
		cfg.TickInterval, cfg.LeakThresholdLPerMin, cfg.LeakConsecutiveTicks, cfg.MaxHistoryPoints, brokerLabel(cfg.Broker), cfg.HeartbeatInterval)

	runner.Start()
	defer runner.Stop()

	s := <-sigCh
	log.Printf("received %v, shutting down", s)
	runner.Stop()

	if publisher != nil {
		signalName := "UNKNOWN"
		if s == syscall.SIGINT {
			signalName = "SIGINT"
		} else if s == syscall.SIGTERM {
			signalName = "SIGTERM"
		}
		snap := tracker.Snapshot()
		shutdown := mqtt.SystemEvent{
			Timestamp:  snap.Now,
			Event:      "SHUTDOWN",
			Reason:     signalName,
			Retained:   true,
			RawPayload: status.FormatStatusEvent(snap, "SHUTDOWN", signalName),
		}
		if err := publisher.PublishSystem(shutdown); err != nil {
			log.Printf("failed to publish shutdown event: %v", err)
		} else {
			log.Printf("published shutdown event")
		}
	}

	return nil
}

// makeOnTick builds the per-tick hook: tracker refresh, metrics, MQTT
// publication, periodic heartbeat, and websocket fan-out. Runs
// synchronously in the tick loop, so the next tick is scheduled only
// after it returns.
func makeOnTick(tracker *status.Tracker, m *metrics.Metrics, publisher mqtt.Publisher, connStatus mqtt.ConnectionStatus, hub *web.Hub, heartbeat time.Duration) func(sim.Snapshot, []sim.Event) {
	return func(snap sim.Snapshot, events []sim.Event) {
		tracker.Update(snap)
		if m != nil {
			m.TicksTotal.Inc()
		}

		for _, event := range events {
			log.Printf("event: %s (flow=%.0fL/min consecutive=%d)", event.Type, event.FlowLPerMin, event.ConsecutiveHigh)
			if m != nil && event.Type == sim.EventLeakDetected {
				m.LeakAlertsTotal.Inc()
			}
			if publisher != nil {
				if err := publisher.PublishAlert(event); err != nil {
					log.Printf("alert publish error: %v", err)
					// Don't crash on publish failure
				}
			}
		}

		if publisher != nil {
			if err := publisher.PublishSample(snap, time.Now()); err != nil {
				log.Printf("sample publish error: %v", err)
			}
		}

		if publisher != nil && tracker.CheckHeartbeat(time.Now(), heartbeat) {
			full := tracker.Snapshot()
			hb := mqtt.SystemEvent{
				Timestamp:  full.Now,
				Event:      "HEARTBEAT",
				Retained:   true,
				RawPayload: status.FormatStatusEvent(full, "HEARTBEAT", ""),
			}
			if err := publisher.PublishSystem(hb); err != nil {
				log.Printf("heartbeat publish error: %v", err)
			} else {
				log.Printf("heartbeat: uptime=%v ticks=%d volume=%.1fL",
					full.Uptime().Round(time.Second), snap.Ticks, snap.TotalVolumeLiters)
			}
		}

		if connStatus != nil {
			tracker.SetMQTTConnected(connStatus.IsConnected())
		}

		if hub != nil {
			hub.Broadcast(web.FrameFromSnapshot(snap))
		}
	}
}

// makeOnEvent builds the hook for detector transitions raised by the
// control API outside the tick loop, currently alert acknowledgements.
func makeOnEvent(publisher mqtt.Publisher) func(sim.Event) {
	return func(event sim.Event) {
		log.Printf("event: %s", event.Type)
		if publisher == nil {
			return
		}
		if err := publisher.PublishAlert(event); err != nil {
			log.Printf("alert publish error: %v", err)
		}
	}
}

func statusConfig(cfg config.Config) status.Config {
	return status.Config{
		TickMs:           cfg.TickInterval.Milliseconds(),
		ThresholdLPerMin: cfg.LeakThresholdLPerMin,
		ConsecutiveTicks: cfg.LeakConsecutiveTicks,
		MaxHistoryPoints: cfg.MaxHistoryPoints,
		Broker:           cfg.Broker,
		HTTPAddr:         cfg.HTTPAddr,
	}
}

func brokerLabel(broker string) string {
	if broker == "" {
		return "disabled"
	}
	return broker
}
