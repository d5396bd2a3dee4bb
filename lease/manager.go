package lease

import (
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"
)

// DefaultAbandonAfter is the manager-wide abandonment delay applied when
// neither Config nor per-lease Options override it.
const DefaultAbandonAfter = 5 * time.Minute

// Forever disables timer-driven eviction for a lease (or, set on the
// Config, for the whole manager). Entities stay resident until Evict or
// Close.
const Forever time.Duration = -1

// Config configures a Manager. Zero values are safe; defaults are
// applied in NewManager():
//   - AbandonAfter == 0 => DefaultAbandonAfter
//   - nil Scheduler     => wall-clock time.AfterFunc
//   - nil Logger        => hclog.NewNullLogger()
//   - nil Metrics       => NoopMetrics
type Config struct {
	// AbandonAfter is the default grace period between the last release
	// of a key and its eviction. Forever disables eviction.
	AbandonAfter time.Duration

	// Scheduler provides deferred execution; override in tests for
	// deterministic timer control.
	Scheduler Scheduler

	Logger  hclog.Logger
	Metrics Metrics

	// OnEvict is called (outside the manager lock) after a lease has
	// been torn down, with the evicted entity key. The cache layer uses
	// it to drop the entity itself.
	OnEvict func(key string)
}

// Manager owns the lease table: it creates and destroys leases,
// implements claim/release bookkeeping, schedules and cancels
// abandonment timers, and performs eviction.
type Manager struct {
	mu     sync.Mutex
	leases map[string]*Lease
	closed bool

	abandonAfter time.Duration
	sched        Scheduler
	log          hclog.Logger
	met          Metrics
	onEvict      func(key string)
}

// NewManager constructs a Manager with the provided Config.
func NewManager(cfg Config) *Manager {
	if cfg.AbandonAfter == 0 {
		cfg.AbandonAfter = DefaultAbandonAfter
	}
	if cfg.Scheduler == nil {
		cfg.Scheduler = WallScheduler{}
	}
	if cfg.Logger == nil {
		cfg.Logger = hclog.NewNullLogger()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = NoopMetrics{}
	}
	return &Manager{
		leases:       make(map[string]*Lease),
		abandonAfter: cfg.AbandonAfter,
		sched:        cfg.Scheduler,
		log:          cfg.Logger.Named("lease"),
		met:          cfg.Metrics,
		onEvict:      cfg.OnEvict,
	}
}

// Claim registers claimant in the ledger for key, creating the lease if
// needed (opts apply only on creation; later differing opts are ignored).
// Any pending abandonment timer is cancelled, even if the claimant is
// already in the ledger (a re-entrant claim refreshes liveness).
func (m *Manager) Claim(claimant, key string, opts *Options) *Lease {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	l := m.ensureLocked(key, opts)
	m.cancelAbandonLocked(l)
	l.ledger[claimant] = struct{}{}
	m.mu.Unlock()

	m.met.Claim()
	m.log.Debug("claim", "key", key, "claimant", claimant)
	return l
}

// Ensure returns the lease for key, creating it (with opts) if absent.
// A freshly created lease has an empty ledger, so its abandonment timer
// starts immediately: an entity set without any claim does not live
// forever.
func (m *Manager) Ensure(key string, opts *Options) *Lease {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	l, existed := m.leases[key]
	if existed {
		return l
	}
	l = m.ensureLocked(key, opts)
	m.scheduleAbandonLocked(l)
	return l
}

// Release removes claimant from the ledger for key. Releasing an unknown
// lease or claimant is a benign no-op. When the ledger becomes empty a
// fresh abandonment timer is started, replacing any stale one.
func (m *Manager) Release(claimant, key string) {
	m.mu.Lock()
	l, ok := m.leases[key]
	if !ok || m.closed {
		m.mu.Unlock()
		return
	}
	if _, held := l.ledger[claimant]; !held {
		m.mu.Unlock()
		return
	}
	delete(l.ledger, claimant)
	if len(l.ledger) == 0 {
		m.scheduleAbandonLocked(l)
	}
	m.mu.Unlock()

	m.met.Release()
	m.log.Debug("release", "key", key, "claimant", claimant)
}

// ReleaseAll releases every claim held by claimant across all leases.
// Safe to call repeatedly (e.g. duplicate unmount signals).
func (m *Manager) ReleaseAll(claimant string) {
	var released int

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	for _, l := range m.leases {
		if _, held := l.ledger[claimant]; !held {
			continue
		}
		delete(l.ledger, claimant)
		released++
		if len(l.ledger) == 0 {
			m.scheduleAbandonLocked(l)
		}
	}
	m.mu.Unlock()

	for i := 0; i < released; i++ {
		m.met.Release()
	}
	if released > 0 {
		m.log.Debug("release all", "claimant", claimant, "leases", released)
	}
}

// Evict unconditionally tears down the lease for key: the stored
// unsubscribe handle is invoked (once), the lease is removed, and
// OnEvict is notified so the entity can be dropped from the cache.
func (m *Manager) Evict(key string) {
	m.mu.Lock()
	l, ok := m.leases[key]
	if !ok {
		m.mu.Unlock()
		return
	}
	stop := m.removeLocked(l)
	m.mu.Unlock()

	m.finishEviction(key, stop)
}

// Lookup returns the lease for key, if one exists.
func (m *Manager) Lookup(key string) (*Lease, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.leases[key]
	return l, ok
}

// Len returns the number of live leases.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.leases)
}

// BeginWatch atomically takes the watch slot for key. It returns true
// exactly once per lease lifetime: the caller that gets true must start
// the remote watch and hand the teardown handle to BindUnsubscribe.
// Starting a second watch for an already-watched key is thereby a no-op.
func (m *Manager) BeginWatch(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	l, ok := m.leases[key]
	if !ok || m.closed || l.watching {
		return false
	}
	l.watching = true
	m.met.WatchStarted()
	return true
}

// BindUnsubscribe stores the remote teardown handle on the lease for key.
// If the lease vanished while the watch was being set up (eviction or
// Close), stop is invoked immediately so the subscription does not leak.
func (m *Manager) BindUnsubscribe(key string, stop func()) {
	m.mu.Lock()
	l, ok := m.leases[key]
	if !ok || m.closed || !l.watching || l.unsubscribe != nil {
		m.mu.Unlock()
		if stop != nil {
			stop()
		}
		return
	}
	l.unsubscribe = stop
	m.mu.Unlock()
}

// Close tears down the manager: all pending timers are cancelled and all
// stored unsubscribe handles are invoked. OnEvict is not called; callers
// shutting the whole client down drop the cache wholesale.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	stops := make([]func(), 0, len(m.leases))
	for _, l := range m.leases {
		m.cancelAbandonLocked(l)
		if l.unsubscribe != nil {
			stops = append(stops, l.unsubscribe)
			l.unsubscribe = nil
		}
		l.watching = false
	}
	m.leases = make(map[string]*Lease)
	m.met.Leases(0)
	m.mu.Unlock()

	for _, stop := range stops {
		stop()
		m.met.WatchStopped()
	}
}

// -------------------- internals (mu held) --------------------

// ensureLocked returns the lease for key, creating it with opts if
// absent. Options attach only at creation (first-writer-wins).
func (m *Manager) ensureLocked(key string, opts *Options) *Lease {
	if l, ok := m.leases[key]; ok {
		return l
	}
	l := &Lease{
		m:      m,
		key:    key,
		ledger: make(map[string]struct{}),
	}
	if opts != nil {
		l.opts = *opts
	}
	m.leases[key] = l
	m.met.Leases(len(m.leases))
	return l
}

// scheduleAbandonLocked (re)starts the abandonment timer for l:
// cancel-then-start, never two concurrent timers for one lease.
func (m *Manager) scheduleAbandonLocked(l *Lease) {
	if l.cancelAbandon != nil {
		l.cancelAbandon()
		l.cancelAbandon = nil
	}
	l.abandonGen++

	d := l.abandonAfterLocked()
	if d < 0 { // Forever
		return
	}

	key, gen := l.key, l.abandonGen
	l.cancelAbandon = m.sched.AfterFunc(d, func() {
		m.abandonExpired(key, gen)
	})
	m.met.AbandonScheduled()
	m.log.Debug("abandonment scheduled", "key", key, "after", d)
}

// cancelAbandonLocked stops a pending timer, if any. The generation bump
// also disarms a timer that has fired but not yet acquired the lock.
func (m *Manager) cancelAbandonLocked(l *Lease) {
	l.abandonGen++
	if l.cancelAbandon == nil {
		return
	}
	l.cancelAbandon()
	l.cancelAbandon = nil
	m.met.AbandonCancelled()
	m.log.Debug("abandonment cancelled", "key", l.key)
}

// abandonExpired is the timer callback: evict key if the lease still
// exists, the timer generation matches, and the ledger is still empty
// (a claim may have landed between scheduling and firing).
func (m *Manager) abandonExpired(key string, gen uint64) {
	m.mu.Lock()
	l, ok := m.leases[key]
	if !ok || m.closed || l.abandonGen != gen || len(l.ledger) > 0 {
		m.mu.Unlock()
		return
	}
	stop := m.removeLocked(l)
	m.mu.Unlock()

	m.finishEviction(key, stop)
}

// removeLocked detaches l from the table and strips its handles,
// returning the unsubscribe handle (nil if no watch was bound).
func (m *Manager) removeLocked(l *Lease) (stop func()) {
	if l.cancelAbandon != nil {
		l.cancelAbandon()
		l.cancelAbandon = nil
	}
	l.abandonGen++
	stop = l.unsubscribe
	l.unsubscribe = nil
	l.watching = false
	delete(m.leases, l.key)
	m.met.Leases(len(m.leases))
	return stop
}

// finishEviction runs the teardown side effects outside the lock.
// OnEvict runs before the unsubscribe handle: the handle is external
// transport code and may re-enter the claim/watch path for this same
// key, so the stale cleanup must be finished before it gets a chance.
func (m *Manager) finishEviction(key string, stop func()) {
	if m.onEvict != nil {
		m.onEvict(key)
	}
	if stop != nil {
		stop()
		m.met.WatchStopped()
	}
	m.met.Evicted()
	m.log.Debug("evicted", "key", key)
}
