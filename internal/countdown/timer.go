// Package countdown implements the per-question countdown clock.
//
// A Timer emits one Event per second while armed and a final Event with
// Expired set when the count reaches zero. Events are delivered on a channel
// owned by the caller; Disarm waits for the ticking goroutine to exit, so no
// Event is delivered after Disarm returns.
package countdown

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Event is a tick or expiry for one arming cycle.
type Event struct {
	Arm       uint64
	Remaining int
	Expired   bool
}

// Timer is owned by a single goroutine; Arm and Disarm must not be called concurrently.
type Timer struct {
	clock   clockwork.Clock
	events  chan<- Event
	enabled bool

	mu        sync.Mutex
	arm       uint64
	remaining int
	stop      chan struct{}
	done      chan struct{}
}

// New returns a timer delivering to events. A disabled timer ignores Arm.
func New(clock clockwork.Clock, events chan<- Event, enabled bool) *Timer {
	return &Timer{
		clock:   clock,
		events:  events,
		enabled: enabled,
	}
}

// Arm resets the count to seconds and starts ticking, disarming any previous cycle first.
// It returns the arming id carried by every Event of this cycle, or 0 if nothing was armed.
func (t *Timer) Arm(seconds int) uint64 {
	if !t.enabled || seconds <= 0 {
		return 0
	}
	t.Disarm()

	stop := make(chan struct{})
	done := make(chan struct{})
	ticker := t.clock.NewTicker(time.Second)

	t.mu.Lock()
	t.arm++
	id := t.arm
	t.remaining = seconds
	t.stop, t.done = stop, done
	t.mu.Unlock()

	go t.run(id, seconds, ticker, stop, done)
	return id
}

// Disarm stops ticking without firing expiry. It is a no-op when nothing is armed.
func (t *Timer) Disarm() {
	t.mu.Lock()
	stop, done := t.stop, t.done
	t.stop, t.done = nil, nil
	t.mu.Unlock()

	if stop == nil {
		return
	}
	close(stop)
	<-done
}

// Armed reports whether a cycle is currently ticking.
func (t *Timer) Armed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stop != nil
}

// Remaining returns the seconds left in the current or last cycle.
func (t *Timer) Remaining() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.remaining
}

func (t *Timer) run(id uint64, remaining int, ticker clockwork.Ticker, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	defer ticker.Stop()

	for remaining > 0 {
		select {
		case <-stop:
			return
		case <-ticker.Chan():
		}

		remaining--
		t.mu.Lock()
		if t.arm == id {
			t.remaining = remaining
		}
		t.mu.Unlock()

		ev := Event{Arm: id, Remaining: remaining, Expired: remaining == 0}
		select {
		case t.events <- ev:
		case <-stop:
			return
		}
	}

	// expired: release the cycle unless Disarm already took it
	t.mu.Lock()
	if t.arm == id && t.done == done {
		t.stop, t.done = nil, nil
	}
	t.mu.Unlock()
}
