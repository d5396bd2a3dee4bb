package lease

import (
	"sort"
	"time"
)

// Lease is the liveness record for one entity key: the set of claimants
// currently holding it, the remote-watch teardown handle (if a watch is
// active), and the pending abandonment timer (if the ledger is empty).
//
// All fields are guarded by the owning Manager's lock; accessors below
// take that lock. External code mutates a Lease only through Manager
// operations (Claim, Release, BindUnsubscribe, ...).
type Lease struct {
	m    *Manager
	key  string
	opts Options

	ledger      map[string]struct{}
	watching    bool   // watch slot taken (BeginWatch succeeded)
	unsubscribe func() // invoked at most once, on eviction

	cancelAbandon CancelFunc
	abandonGen    uint64 // invalidates timers that already left the scheduler
}

// Options is per-lease configuration, captured when the lease is first
// created for a key (first-writer-wins) and immutable afterwards.
type Options struct {
	// AbandonAfter overrides the manager-wide abandonment delay for this
	// lease. Zero means "use the manager default"; Forever disables
	// eviction entirely.
	AbandonAfter time.Duration
}

// Key returns the entity key this lease guards.
func (l *Lease) Key() string { return l.key }

// Holders returns a sorted copy of the claimant names in the ledger.
func (l *Lease) Holders() []string {
	l.m.mu.Lock()
	defer l.m.mu.Unlock()

	out := make([]string, 0, len(l.ledger))
	for c := range l.ledger {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// Holds reports whether claimant is currently in the ledger.
func (l *Lease) Holds(claimant string) bool {
	l.m.mu.Lock()
	defer l.m.mu.Unlock()
	_, ok := l.ledger[claimant]
	return ok
}

// Watched reports whether a remote watch slot is held for this lease.
func (l *Lease) Watched() bool {
	l.m.mu.Lock()
	defer l.m.mu.Unlock()
	return l.watching
}

// AbandonAfter returns the effective abandonment delay for this lease
// (the per-lease override if set, otherwise the manager default).
// Forever means the lease is never evicted by a timer.
func (l *Lease) AbandonAfter() time.Duration {
	l.m.mu.Lock()
	defer l.m.mu.Unlock()
	return l.abandonAfterLocked()
}

func (l *Lease) abandonAfterLocked() time.Duration {
	if l.opts.AbandonAfter != 0 {
		return l.opts.AbandonAfter
	}
	return l.m.abandonAfter
}
