package client

import (
	"context"

	"github.com/IvanBrykalov/entitycache/cache"
	"github.com/IvanBrykalov/entitycache/key"
	"github.com/IvanBrykalov/entitycache/lease"
)

// Status describes the state of a watched entity as returned by Watch.
type Status int

const (
	// StatusIdle — the path has an unresolved segment; no watch was
	// started and no lease created.
	StatusIdle Status = iota
	// StatusPending — a watch is active but no remote event has arrived.
	StatusPending
	// StatusSuccess — the cached value reflects the latest change event.
	StatusSuccess
	// StatusRemoved — the remote resource was deleted; the cache holds a
	// tombstone.
	StatusRemoved
	// StatusError — the remote watch reported an error; the cached value
	// (possibly stale or absent) is left untouched.
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusPending:
		return "pending"
	case StatusSuccess:
		return "success"
	case StatusRemoved:
		return "removed"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// Result is the three-part shape every read-side operation returns.
// Remote errors are data, not exceptions: callers branch on Status.
type Result struct {
	Value  any
	Err    error
	Status Status
}

// Transform maps a raw remote payload to the value actually stored in
// the cache. It runs synchronously during event handling and may itself
// read or write other cache entries and create further claims/watches.
type Transform func(payload any, p key.Path) any

// WatchOptions carries the application callbacks for a watch. They are
// bound when the lease for the key is first created; later Watch calls
// for the same key keep the original callbacks (first-subscriber-wins)
// and the supplied ones are ignored.
type WatchOptions struct {
	Transform Transform
	OnRemoved func(payload any, p key.Path)
	OnError   func(err error, p key.Path)
	Lease     *lease.Options
}

// Events bundles the per-resource callbacks handed to a RemoteSource.
type Events struct {
	OnChange  func(payload any)
	OnRemoved func(payload any)
	OnError   func(err error)
}

// RemoteSource is the subscription transport the client consumes. It is
// assumed to deliver an ordered stream of change/removal/error events
// per watched resource.
type RemoteSource interface {
	// Watch starts event delivery for p and returns a teardown handle.
	// The handle is invoked at most once.
	Watch(p key.Path, ev Events) (stop func())

	// Fetch performs a one-shot read of p, with the same payload/error
	// shape as a single change event.
	Fetch(ctx context.Context, p key.Path) (any, error)
}

// watchState holds the callbacks and status for one watched key.
// The callback fields are set at creation and never reassigned, so they
// may be read without the client lock; status and err are guarded by
// Client.mu.
type watchState struct {
	path      key.Path
	transform Transform
	onRemoved func(payload any, p key.Path)
	onError   func(err error, p key.Path)

	status Status
	err    error
}

func identity(payload any, _ key.Path) any { return payload }

// Watch registers claimant's interest in the entity at p, starting a
// remote subscription if the key is not already watched, and returns
// the current value/error/status. Exactly one remote subscription
// exists per key regardless of how many claimants watch it.
func (c *Client) Watch(claimant string, p key.Path, opts WatchOptions) Result {
	if !p.Resolved() {
		return Result{Status: StatusIdle}
	}
	k := p.String()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		// No lease, no subscription. Err distinguishes this from a
		// genuinely idle (unresolved) path.
		return Result{Err: ErrClosed, Status: StatusIdle}
	}
	ws, ok := c.watches[k]
	if ok {
		if _, live := c.leases.Lookup(k); !live {
			// The previous lease was evicted out from under this entry
			// (teardown still in flight). This call creates a fresh
			// lease, so its callbacks win; don't resurrect the old ones.
			ok = false
		}
	}
	if !ok {
		ws = &watchState{
			path:      p,
			transform: opts.Transform,
			onRemoved: opts.OnRemoved,
			onError:   opts.OnError,
			status:    StatusPending,
		}
		if ws.transform == nil {
			ws.transform = identity
		}
		c.watches[k] = ws
	}
	c.mu.Unlock()

	c.leases.Claim(claimant, k, opts.Lease)

	if c.remote != nil && c.leases.BeginWatch(k) {
		stop := c.remote.Watch(p, Events{
			OnChange:  func(payload any) { c.handleChange(k, payload) },
			OnRemoved: func(payload any) { c.handleRemoved(k, payload) },
			OnError:   func(err error) { c.handleError(k, err) },
		})
		c.leases.BindUnsubscribe(k, stop)
	}

	return c.result(k)
}

// handleChange routes a remote change event: transform, store, mark
// success. The transform runs outside all locks so it may re-enter the
// claim/watch path for other keys.
func (c *Client) handleChange(k string, payload any) {
	ws, ok := c.watch(k)
	if !ok {
		return // evicted; event raced with teardown
	}
	v := ws.transform(payload, ws.path)
	if !c.owns(k, ws) {
		// Evicted (or rebound to a fresh lease) while the transform ran.
		// Storing now would leave an entity with no lease behind it.
		return
	}
	c.cache.Set(k, v)

	c.mu.Lock()
	if c.watches[k] == ws {
		ws.status, ws.err = StatusSuccess, nil
	}
	c.mu.Unlock()
}

// handleRemoved stores a tombstone for the key and marks it removed.
func (c *Client) handleRemoved(k string, payload any) {
	ws, ok := c.watch(k)
	if !ok {
		return
	}
	if ws.onRemoved != nil {
		ws.onRemoved(payload, ws.path)
	}
	if !c.owns(k, ws) {
		return
	}
	c.cache.Set(k, cache.Tombstone{})

	c.mu.Lock()
	if c.watches[k] == ws {
		ws.status, ws.err = StatusRemoved, nil
	}
	c.mu.Unlock()
}

// handleError marks the key errored. The cached value is not altered.
func (c *Client) handleError(k string, err error) {
	ws, ok := c.watch(k)
	if !ok {
		return
	}
	if ws.onError != nil {
		ws.onError(err, ws.path)
	}

	c.mu.Lock()
	if c.watches[k] == ws {
		ws.status, ws.err = StatusError, err
	}
	c.mu.Unlock()

	c.log.Debug("watch error", "key", k, "error", err)
}

func (c *Client) watch(k string) (*watchState, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ws, ok := c.watches[k]
	return ws, ok
}

// owns reports whether ws is still the registered watch state for k.
// Event handlers re-check this after running application callbacks,
// which may have evicted or rebound the key.
func (c *Client) owns(k string, ws *watchState) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.watches[k] == ws
}

// result assembles the Result for k from the cache and watch state.
func (c *Client) result(k string) Result {
	v, present := c.cache.Get(k)

	c.mu.Lock()
	ws := c.watches[k]
	c.mu.Unlock()

	r := Result{}
	switch {
	case ws != nil:
		r.Status, r.Err = ws.status, ws.err
	case present:
		r.Status = StatusSuccess
	default:
		r.Status = StatusIdle
	}
	if present {
		r.Value = v
	}
	return r
}
