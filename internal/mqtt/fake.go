package mqtt

import (
	"sync"
	"time"

	"github.com/sweeney/flow-monitor/internal/sim"
)

// FakePublisher records published messages for test assertions.
// Safe for concurrent use: the tick loop and tests touch it from
// different goroutines.
type FakePublisher struct {
	mu sync.Mutex

	// Samples contains all snapshots passed to PublishSample.
	Samples []sim.Snapshot

	// Alerts contains all detector events that were published.
	Alerts []sim.Event

	// AlertPayloads contains the JSON payloads for alerts.
	AlertPayloads [][]byte

	// SystemEvents contains all system events that were published.
	SystemEvents []SystemEvent

	// PublishError, if set, will be returned by all publish methods.
	PublishError error

	// Closed tracks if Close was called.
	Closed bool

	// Connected controls the return value of IsConnected.
	Connected bool
}

// NewFakePublisher creates a FakePublisher for testing.
func NewFakePublisher() *FakePublisher {
	return &FakePublisher{}
}

// PublishSample records the snapshot.
func (f *FakePublisher) PublishSample(snap sim.Snapshot, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.PublishError != nil {
		return f.PublishError
	}
	f.Samples = append(f.Samples, snap)
	return nil
}

// PublishAlert records the detector event.
func (f *FakePublisher) PublishAlert(event sim.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.PublishError != nil {
		return f.PublishError
	}

	f.Alerts = append(f.Alerts, event)

	payload, err := FormatAlertPayload(event)
	if err != nil {
		return err
	}
	f.AlertPayloads = append(f.AlertPayloads, payload)
	return nil
}

// PublishSystem records the system event.
func (f *FakePublisher) PublishSystem(event SystemEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.PublishError != nil {
		return f.PublishError
	}
	f.SystemEvents = append(f.SystemEvents, event)
	return nil
}

// IsConnected reports whether the fake publisher is "connected".
func (f *FakePublisher) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Connected
}

// Close marks the publisher as closed.
func (f *FakePublisher) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Closed = true
	return nil
}

// SampleCount returns the number of recorded samples.
func (f *FakePublisher) SampleCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Samples)
}

// AlertCount returns the number of recorded alerts.
func (f *FakePublisher) AlertCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Alerts)
}
