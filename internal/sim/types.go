// Package sim contains the water-flow simulation and leak detection logic.
// This package has NO external dependencies (no MQTT, HTTP, OS, or time.Sleep).
// Time is always injectable via time.Time parameters.
package sim

import (
	"errors"
	"time"
)

// Default configuration values, matching the demo installation.
const (
	DefaultTickInterval         = 2 * time.Second
	DefaultLeakThresholdLPerMin = 8.0
	DefaultLeakConsecutiveTicks = 3
	DefaultMaxHistoryPoints     = 30
)

// Config holds the sampling constants for a simulation run.
// Immutable once the Simulator is constructed.
type Config struct {
	// TickInterval is the sampling period between generated readings.
	TickInterval time.Duration
	// LeakThresholdLPerMin is the flow rate above which a tick counts as "high".
	LeakThresholdLPerMin float64
	// LeakConsecutiveTicks is the number of consecutive high ticks required
	// to declare a leak.
	LeakConsecutiveTicks int
	// MaxHistoryPoints bounds the number of retained samples.
	MaxHistoryPoints int
}

// DefaultConfig returns the stock demo configuration.
func DefaultConfig() Config {
	return Config{
		TickInterval:         DefaultTickInterval,
		LeakThresholdLPerMin: DefaultLeakThresholdLPerMin,
		LeakConsecutiveTicks: DefaultLeakConsecutiveTicks,
		MaxHistoryPoints:     DefaultMaxHistoryPoints,
	}
}

// Validate checks the config invariants.
func (c Config) Validate() error {
	if c.TickInterval <= 0 {
		return errors.New("tick interval must be positive")
	}
	if c.LeakThresholdLPerMin <= 0 {
		return errors.New("leak threshold must be positive")
	}
	if c.LeakConsecutiveTicks < 1 {
		return errors.New("leak consecutive ticks must be at least 1")
	}
	if c.MaxHistoryPoints < 1 {
		return errors.New("max history points must be at least 1")
	}
	return nil
}

// Sample is a single generated flow reading.
type Sample struct {
	// Time the sample was generated.
	Time time.Time
	// Label is the human-readable clock string shown on the chart axis.
	Label string
	// FlowLPerMin is the generated flow rate in liters per minute.
	FlowLPerMin float64
}

// EventType represents a detector state transition.
type EventType string

const (
	// EventLeakDetected is emitted exactly once per Normal -> Flagged transition.
	EventLeakDetected EventType = "LEAK_DETECTED"
	// EventLeakAcknowledged is emitted when a flagged alert is acknowledged.
	EventLeakAcknowledged EventType = "LEAK_ACKNOWLEDGED"
)

// Event represents a leak detector transition to be published.
type Event struct {
	Timestamp       time.Time
	Type            EventType
	FlowLPerMin     float64
	ConsecutiveHigh int
}

// Snapshot is a point-in-time copy of the simulation state.
// It is a value type — safe to use after the simulator's lock is released.
type Snapshot struct {
	CurrentFlowLPerMin float64
	TotalVolumeLiters  float64
	History            []Sample
	ConsecutiveHigh    int
	LeakFlagged        bool
	ForcedLeak         bool
	Ticks              uint64
}

// HistoryLabels returns the sample timestamps as chart axis labels,
// oldest first.
func (s Snapshot) HistoryLabels() []string {
	labels := make([]string, len(s.History))
	for i, sample := range s.History {
		labels[i] = sample.Label
	}
	return labels
}

// HistoryValues returns the sample flow values, oldest first, parallel
// to HistoryLabels.
func (s Snapshot) HistoryValues() []float64 {
	values := make([]float64, len(s.History))
	for i, sample := range s.History {
		values[i] = sample.FlowLPerMin
	}
	return values
}
