// Package status provides a thread-safe status tracker for the flow-monitor
// daemon. It sits between the tick loop and the HTTP/MQTT consumers.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/flow-monitor/internal/sim"
)

// Config contains daemon configuration for display.
type Config struct {
	TickMs           int64
	ThresholdLPerMin float64
	ConsecutiveTicks int
	MaxHistoryPoints int
	Broker           string // empty = MQTT disabled
	HTTPAddr         string
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type — safe to use after the lock is released.
type Snapshot struct {
	Sim           sim.Snapshot
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu            sync.RWMutex
	snap          Snapshot
	lastHeartbeat time.Time
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			Config:    cfg,
		},
		lastHeartbeat: startTime,
	}
}

// Update stores the latest simulation snapshot. Called from the tick
// loop on every tick and from the action handlers after a mutation.
func (t *Tracker) Update(snap sim.Snapshot) {
	t.mu.Lock()
	t.snap.Sim = snap
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// CheckHeartbeat reports whether a heartbeat is due and, if so, advances
// the mark so the next one is due a full interval later. The first
// heartbeat is measured from the start time. An interval of zero or less
// disables heartbeats.
func (t *Tracker) CheckHeartbeat(now time.Time, interval time.Duration) bool {
	if interval <= 0 {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if now.Sub(t.lastHeartbeat) < interval {
		return false
	}
	t.lastHeartbeat = now
	return true
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	t.mu.RUnlock()
	s.Now = time.Now()
	return s
}
