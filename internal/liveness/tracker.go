// Package liveness holds the sink's shared idle-timeout clock: written by
// both the network loop and the WriterThread's touch callback, read only
// by the network loop, and mutex-serialized per spec.md §5.
package liveness

import (
	"sync"
	"time"
)

// Tracker is the sink's mutex-guarded lastEventTime/idleTimeout pair.
type Tracker struct {
	mu          sync.Mutex
	lastEvent   time.Time
	idleTimeout time.Duration
}

// NewTracker starts the clock at now with the given initial idle timeout.
func NewTracker(initialIdleTimeout time.Duration) *Tracker {
	return &Tracker{lastEvent: time.Now(), idleTimeout: initialIdleTimeout}
}

// Touch records that some event (a liveness request, a data frame, or a
// disk write completing) just happened.
func (t *Tracker) Touch() {
	t.mu.Lock()
	t.lastEvent = time.Now()
	t.mu.Unlock()
}

// SetIdleTimeout reconfigures the idle timeout, as every liveness request
// does per spec.md §4.6.
func (t *Tracker) SetIdleTimeout(d time.Duration) {
	t.mu.Lock()
	t.idleTimeout = d
	t.mu.Unlock()
}

// IsExpired reports whether more than the current idle timeout has
// elapsed since the last touch. A caller may observe a value up to one
// poll interval stale, which spec.md §5 accepts.
func (t *Tracker) IsExpired() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return time.Since(t.lastEvent) > t.idleTimeout
}
