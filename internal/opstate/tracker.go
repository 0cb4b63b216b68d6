// Package opstate tracks whether a surface has an operation in flight and
// what its last failure was.
package opstate

import (
	"sync"

	"golang.org/x/sync/semaphore"
)

// State is a point-in-time view of a Tracker.
type State struct {
	Busy      bool
	LastError string
}

// HasError reports whether the last resolved operation failed.
func (s State) HasError() bool {
	return s.LastError != ""
}

// Tracker is a two-state machine (idle, busy) guarding one surface.
// Begin is the only transition into busy and succeeds for exactly one caller
// at a time; there is no queue.
type Tracker struct {
	gate *semaphore.Weighted

	mu      sync.Mutex
	busy    bool
	lastErr string
}

// New returns an idle Tracker.
func New() *Tracker {
	return &Tracker{gate: semaphore.NewWeighted(1)}
}

// Begin moves the tracker to busy and clears the previous error. It returns
// false, changing nothing, when an operation is already in flight.
func (t *Tracker) Begin() bool {
	if !t.gate.TryAcquire(1) {
		return false
	}
	t.mu.Lock()
	t.busy = true
	t.lastErr = ""
	t.mu.Unlock()
	return true
}

// ResolveSuccess returns the tracker to idle with no error.
func (t *Tracker) ResolveSuccess() {
	t.resolve("")
}

// ResolveError returns the tracker to idle and records msg as the last error.
func (t *Tracker) ResolveError(msg string) {
	t.resolve(msg)
}

func (t *Tracker) resolve(msg string) {
	t.mu.Lock()
	if !t.busy {
		t.mu.Unlock()
		return
	}
	t.busy = false
	t.lastErr = msg
	t.mu.Unlock()
	t.gate.Release(1)
}

// Busy reports whether an operation is in flight.
func (t *Tracker) Busy() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.busy
}

// LastError returns the message recorded by the last ResolveError, or "".
func (t *Tracker) LastError() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastErr
}

// State returns a consistent snapshot of busy and last error.
func (t *Tracker) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return State{Busy: t.busy, LastError: t.lastErr}
}
