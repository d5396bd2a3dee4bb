package client

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"

	"github.com/IvanBrykalov/entitycache/cache"
	"github.com/IvanBrykalov/entitycache/internal/flight"
	"github.com/IvanBrykalov/entitycache/key"
	"github.com/IvanBrykalov/entitycache/lease"
)

// DefaultStateKey is the cache key of the client-state root entity
// mutated by Mutate/MergePatch.
const DefaultStateKey = "client/state"

// Options configures a Client. Zero values are safe; defaults are
// applied in New():
//   - nil Remote       => client-side entities only, no watches
//   - AbandonAfter 0   => lease.DefaultAbandonAfter
//   - nil Logger       => hclog.NewNullLogger()
//   - StateKey ""      => DefaultStateKey
type Options struct {
	// Remote is the subscription transport. May be nil for purely
	// client-side use; Watch then only claims, and Fetch fails.
	Remote RemoteSource

	// AbandonAfter is the process-wide grace period between the last
	// release of a key and its eviction. lease.Forever disables
	// eviction entirely. Overridable per lease via WatchOptions.Lease.
	AbandonAfter time.Duration

	// Scheduler overrides timer scheduling (tests).
	Scheduler lease.Scheduler

	Logger       hclog.Logger
	CacheMetrics cache.Metrics
	LeaseMetrics lease.Metrics

	// StateKey names the client-state root entity.
	StateKey string

	// InitialState seeds the client-state root. The map is deep-copied;
	// the caller's copy is never aliased.
	InitialState map[string]any
}

// Client is the façade over the entity cache and the lease manager.
// One Client is created per application instance and threaded through
// all calls; there is no package-level singleton.
type Client struct {
	cache  cache.Cache[any]
	leases *lease.Manager
	remote RemoteSource
	log    hclog.Logger

	mu      sync.Mutex
	watches map[string]*watchState
	closed  bool

	stateMu  sync.Mutex // serializes Mutate/MergePatch
	stateKey string

	fetches flight.Group[any]
}

// New constructs a Client with the provided Options.
func New(opt Options) (*Client, error) {
	if opt.Logger == nil {
		opt.Logger = hclog.NewNullLogger()
	}
	if opt.StateKey == "" {
		opt.StateKey = DefaultStateKey
	}

	c := &Client{
		cache:    cache.New[any](cache.Options{Metrics: opt.CacheMetrics}),
		remote:   opt.Remote,
		log:      opt.Logger.Named("entitycache"),
		watches:  make(map[string]*watchState),
		stateKey: opt.StateKey,
	}
	c.leases = lease.NewManager(lease.Config{
		AbandonAfter: opt.AbandonAfter,
		Scheduler:    opt.Scheduler,
		Logger:       opt.Logger,
		Metrics:      opt.LeaseMetrics,
		OnEvict:      c.evicted,
	})

	if opt.InitialState != nil {
		root, err := cloneState(opt.InitialState)
		if err != nil {
			return nil, err
		}
		// The state root is never timer-evicted.
		c.leases.Ensure(c.stateKey, &lease.Options{AbandonAfter: lease.Forever})
		c.cache.Set(c.stateKey, root)
	}
	return c, nil
}

// NewClaimantID returns a fresh unique claimant name, for callers that
// have no natural identifier of their own.
func NewClaimantID() string { return uuid.NewString() }

// Claim registers claimant's interest in k (creating the lease if
// needed) and returns the current cached value, if any. No remote watch
// is started; use Watch for that.
func (c *Client) Claim(claimant, k string) (any, bool) {
	if k == "" {
		return nil, false
	}
	c.leases.Claim(claimant, k, nil)
	return c.cache.Get(k)
}

// Release removes claimant's claim on k. Releasing an unknown claim is
// a benign no-op.
func (c *Client) Release(claimant, k string) {
	c.leases.Release(claimant, k)
}

// ReleaseAll releases every claim held by claimant. Idempotent: wire it
// to component-unmount signals without guarding against duplicates.
func (c *Client) ReleaseAll(claimant string) {
	c.leases.ReleaseAll(claimant)
}

// SetEntity stores a client-controlled entity under k with the same
// lease semantics as remote entities but no remote watch. An entity set
// without any claim is evicted after the abandonment delay.
func (c *Client) SetEntity(k string, v any) error {
	if k == "" {
		return ErrEmptyKey
	}
	// Lease first: the invariant is that a lease exists whenever the
	// cache holds (or is populating) the key.
	c.leases.Ensure(k, nil)
	c.cache.Set(k, v)
	return nil
}

// GetEntity returns the cached value for k, if any.
func (c *Client) GetEntity(k string) (any, bool) {
	return c.cache.Get(k)
}

// Fetch performs a one-shot remote read of p and stores the result under
// the path's key (through the watch's transform when one is bound).
// Concurrent fetches for the same key are coalesced.
func (c *Client) Fetch(ctx context.Context, p key.Path) (any, error) {
	if c.remote == nil {
		return nil, ErrNoRemote
	}
	if !p.Resolved() {
		return nil, ErrUnresolvedPath
	}
	k := p.String()

	return c.fetches.Do(ctx, k, func() (any, error) {
		payload, err := c.remote.Fetch(ctx, p)
		if err != nil {
			return nil, err
		}
		v := payload
		if ws, ok := c.watch(k); ok {
			v = ws.transform(payload, p)
		}
		c.leases.Ensure(k, nil)
		c.cache.Set(k, v)
		return v, nil
	})
}

// Mutate applies update to a deep copy of the client-state root and
// swaps the copy in as the new snapshot. Concurrent readers keep seeing
// the previous snapshot until the swap; a partially-applied mutation is
// never visible.
func (c *Client) Mutate(update func(root map[string]any)) error {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()

	root, err := c.stateCopy()
	if err != nil {
		return err
	}
	update(root)
	c.setStateLocked(root)
	return nil
}

// MergePatch deep-merges patch into the client-state root, overriding
// existing scalar values, under the same copy-on-write rules as Mutate.
func (c *Client) MergePatch(patch map[string]any) error {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()

	root, err := c.stateCopy()
	if err != nil {
		return err
	}
	if err := mergeState(root, patch); err != nil {
		return err
	}
	c.setStateLocked(root)
	return nil
}

// State returns the current client-state snapshot. The returned map is
// the live snapshot and must be treated as read-only; use Mutate or
// MergePatch to change it.
func (c *Client) State() map[string]any {
	v, ok := c.cache.Get(c.stateKey)
	if !ok {
		return nil
	}
	root, _ := v.(map[string]any)
	return root
}

// Subscribe registers fn for every cache mutation (set or delete).
// The returned cancel function is idempotent.
func (c *Client) Subscribe(fn func(cache.Event[any])) (cancel func()) {
	return c.cache.Subscribe(fn)
}

// EntityCount returns the number of resident entities.
func (c *Client) EntityCount() int { return c.cache.Len() }

// LeaseCount returns the number of live leases.
func (c *Client) LeaseCount() int { return c.leases.Len() }

// Snapshot returns all resident entities in insertion order.
func (c *Client) Snapshot() []cache.Entry[any] { return c.cache.Snapshot() }

// Close tears the client down: every pending abandonment timer is
// cancelled, every active remote watch is unsubscribed, and the cache
// is dropped. The client must not be used afterwards; a Watch on a
// closed client returns an idle Result carrying ErrClosed.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.watches = make(map[string]*watchState)
	c.mu.Unlock()

	c.leases.Close()
	return c.cache.Close()
}

// evicted is the lease manager's eviction hook: drop the entity and its
// watch bookkeeping. Runs outside the manager lock.
//
// A claim may land after the lease leaves the table but before this
// cleanup runs; the fresh lease owns the key then, and the stale
// eviction must leave it alone.
func (c *Client) evicted(k string) {
	if _, live := c.leases.Lookup(k); live {
		return
	}
	c.cache.Delete(k)

	c.mu.Lock()
	delete(c.watches, k)
	c.mu.Unlock()
}

// stateCopy returns a deep copy of the current client-state root (an
// empty map when none exists yet). Caller holds stateMu.
func (c *Client) stateCopy() (map[string]any, error) {
	return cloneState(c.State())
}

func (c *Client) setStateLocked(root map[string]any) {
	c.leases.Ensure(c.stateKey, &lease.Options{AbandonAfter: lease.Forever})
	c.cache.Set(c.stateKey, root)
}
