package sim

import (
	"math/rand"
	"sync"
	"time"
)

// Flow generation ranges in whole liters per minute, inclusive on both
// ends. The forced range deliberately overlaps the normal range's
// ceiling, so a chance run of high normal readings can also trip the
// detector — the overlap simulates false positives.
const (
	normalFlowMin = 1
	normalFlowMax = 12
	forcedFlowMin = 11
	forcedFlowMax = 13
)

// clockLabelFormat is the axis label format for samples.
const clockLabelFormat = "15:04:05"

// Simulator generates synthetic flow readings and evaluates the
// consecutive-high-reading leak rule. All mutable state lives here; the
// simulator is explicitly constructed by its owner and carries no
// package-level state.
//
// Methods are safe for concurrent use: the run loop ticks while HTTP
// handlers invoke the user actions.
type Simulator struct {
	mu      sync.Mutex
	cfg     Config
	intn    func(n int) int
	history *history

	currentFlow     float64
	totalVolume     float64
	consecutiveHigh int
	leakFlagged     bool
	forcedLeak      bool
	ticks           uint64
}

// New creates a Simulator with all state zeroed, using the global
// math/rand source for flow generation.
func New(cfg Config) *Simulator {
	return NewWithRand(cfg, rand.Intn)
}

// NewWithRand creates a Simulator with an injectable integer source.
// intn must behave like rand.Intn: return a value in [0, n).
func NewWithRand(cfg Config, intn func(n int) int) *Simulator {
	return &Simulator{
		cfg:     cfg,
		intn:    intn,
		history: newHistory(cfg.MaxHistoryPoints),
	}
}

// Config returns the sampling constants the simulator was built with.
func (s *Simulator) Config() Config {
	return s.cfg
}

// Tick advances the simulation by one sampling period: generates a flow
// reading, appends it to the bounded history, accumulates volume, and
// evaluates the leak rule. Returns the detector events raised by this
// tick (at most one: the Normal -> Flagged transition).
func (s *Simulator) Tick(now time.Time) []Event {
	s.mu.Lock()
	defer s.mu.Unlock()

	flow := s.generate()
	s.currentFlow = flow
	s.ticks++

	s.history.push(Sample{
		Time:        now,
		Label:       now.Format(clockLabelFormat),
		FlowLPerMin: flow,
	})

	// L/min rate over one tick interval, converted to liters.
	s.totalVolume += flow * s.cfg.TickInterval.Minutes()

	var events []Event
	if flow > s.cfg.LeakThresholdLPerMin {
		// The counter freezes at the trip point instead of growing
		// without bound while the flag is already set. The visible
		// behavior is unchanged: the flag stays set until acknowledged.
		if s.consecutiveHigh < s.cfg.LeakConsecutiveTicks {
			s.consecutiveHigh++
		}
		if s.consecutiveHigh >= s.cfg.LeakConsecutiveTicks && !s.leakFlagged {
			s.leakFlagged = true
			events = append(events, Event{
				Timestamp:       now,
				Type:            EventLeakDetected,
				FlowLPerMin:     flow,
				ConsecutiveHigh: s.consecutiveHigh,
			})
		}
	} else {
		s.consecutiveHigh = 0
	}

	return events
}

// generate draws the next flow value. Caller holds the lock.
func (s *Simulator) generate() float64 {
	if s.forcedLeak {
		return float64(forcedFlowMin + s.intn(forcedFlowMax-forcedFlowMin+1))
	}
	return float64(normalFlowMin + s.intn(normalFlowMax-normalFlowMin+1))
}

// AcknowledgeAlert clears the leak flag and the consecutive-high count.
// History and accumulated volume are untouched. Calling it when no leak
// is flagged is a no-op on all other fields. Returns true if a flagged
// alert was cleared.
func (s *Simulator) AcknowledgeAlert() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	wasFlagged := s.leakFlagged
	s.leakFlagged = false
	s.consecutiveHigh = 0
	return wasFlagged
}

// ResetDay clears the history, accumulated volume, leak flag,
// consecutive-high count, and tick counter. The forced-leak toggle is
// untouched.
func (s *Simulator) ResetDay() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.history.reset()
	s.currentFlow = 0
	s.totalVolume = 0
	s.leakFlagged = false
	s.consecutiveHigh = 0
	s.ticks = 0
}

// ToggleForcedLeak flips the forced-leak mode and returns the new value.
// Takes effect on the next Tick; past samples are never rewritten.
func (s *Simulator) ToggleForcedLeak() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.forcedLeak = !s.forcedLeak
	return s.forcedLeak
}

// Snapshot returns a point-in-time copy of the simulation state.
func (s *Simulator) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	return Snapshot{
		CurrentFlowLPerMin: s.currentFlow,
		TotalVolumeLiters:  s.totalVolume,
		History:            s.history.samples(),
		ConsecutiveHigh:    s.consecutiveHigh,
		LeakFlagged:        s.leakFlagged,
		ForcedLeak:         s.forcedLeak,
		Ticks:              s.ticks,
	}
}
