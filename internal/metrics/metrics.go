// Package metrics exposes prometheus collectors for the flow-monitor daemon.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/sweeney/flow-monitor/internal/status"
)

const metricPrefix = "flow_monitor_"

// Metrics holds the daemon's prometheus collectors.
type Metrics struct {
	TicksTotal              prometheus.Counter
	LeakAlertsTotal         prometheus.Counter
	AlertsAcknowledgedTotal prometheus.Counter
	DayResetsTotal          prometheus.Counter
}

// New registers the daemon collectors on the given registerer. Gauges
// read live values from the tracker, so scrapes never block the tick loop.
func New(reg prometheus.Registerer, tracker *status.Tracker) *Metrics {
	m := &Metrics{
		TicksTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: metricPrefix + "ticks_total",
			Help: "Simulation ticks processed",
		}),
		LeakAlertsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: metricPrefix + "leak_alerts_total",
			Help: "Leak alerts raised by the detector",
		}),
		AlertsAcknowledgedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: metricPrefix + "alerts_acknowledged_total",
			Help: "Leak alerts acknowledged by the operator",
		}),
		DayResetsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: metricPrefix + "day_resets_total",
			Help: "Day reset actions",
		}),
	}

	reg.MustRegister(
		m.TicksTotal,
		m.LeakAlertsTotal,
		m.AlertsAcknowledgedTotal,
		m.DayResetsTotal,
	)

	reg.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: metricPrefix + "flow_l_per_min",
			Help: "Last generated flow rate",
		},
		func() float64 {
			return tracker.Snapshot().Sim.CurrentFlowLPerMin
		},
	))

	reg.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: metricPrefix + "total_volume_liters",
			Help: "Accumulated volume since the last day reset",
		},
		func() float64 {
			return tracker.Snapshot().Sim.TotalVolumeLiters
		},
	))

	reg.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: metricPrefix + "consecutive_high_ticks",
			Help: "Consecutive ticks above the leak threshold",
		},
		func() float64 {
			return float64(tracker.Snapshot().Sim.ConsecutiveHigh)
		},
	))

	reg.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: metricPrefix + "leak_flagged",
			Help: "1 while a leak alert is flagged, 0 otherwise",
		},
		func() float64 {
			if tracker.Snapshot().Sim.LeakFlagged {
				return 1
			}
			return 0
		},
	))

	return m
}
