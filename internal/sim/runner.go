package sim

import (
	"sync"
	"time"
)

// Runner drives a Simulator on a repeating deferred timer. The next tick
// is armed only after the current tick's mutation and the OnTick hook
// complete, so ticks can never overlap regardless of how slow the hook is.
type Runner struct {
	sim      *Simulator
	interval time.Duration

	// OnTick, if set, is invoked synchronously after every tick with the
	// post-tick snapshot and any detector events. Set before Start.
	OnTick func(snap Snapshot, events []Event)

	// now is injectable for tests.
	now func() time.Time

	mu      sync.Mutex
	running bool
	stop    chan struct{}
	done    chan struct{}
}

// NewRunner creates a Runner for the given simulator, ticking at the
// simulator's configured interval.
func NewRunner(sim *Simulator) *Runner {
	return &Runner{
		sim:      sim,
		interval: sim.Config().TickInterval,
		now:      time.Now,
	}
}

// Start launches the tick loop. Starting an already-running Runner is a
// no-op, so the loop can never be doubled.
func (r *Runner) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.running {
		return
	}
	r.running = true
	r.stop = make(chan struct{})
	r.done = make(chan struct{})
	go r.loop(r.stop, r.done)
}

// Stop cancels the pending tick and waits for the loop to exit. A tick
// that fires during shutdown performs no state mutation. Safe to call
// when not running, and safe to call twice.
func (r *Runner) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	r.running = false
	stop, done := r.stop, r.done
	r.mu.Unlock()

	close(stop)
	<-done
}

// Running reports whether the tick loop is active.
func (r *Runner) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

func (r *Runner) loop(stop, done chan struct{}) {
	defer close(done)

	timer := time.NewTimer(r.interval)
	defer timer.Stop()

	for {
		select {
		case <-stop:
			return
		case <-timer.C:
			// The timer may have fired concurrently with Stop; check
			// cancellation again before touching any state.
			select {
			case <-stop:
				return
			default:
			}

			t := r.now()
			events := r.sim.Tick(t)
			if r.OnTick != nil {
				r.OnTick(r.sim.Snapshot(), events)
			}

			// Re-arm only after the tick's work is done.
			timer.Reset(r.interval)
		}
	}
}
