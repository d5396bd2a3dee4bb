package client

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/IvanBrykalov/entitycache/cache"
	"github.com/IvanBrykalov/entitycache/key"
	"github.com/IvanBrykalov/entitycache/lease"
)

// Client-controlled entities share the lease lifecycle with remote ones
// but never touch the remote source.
func TestClient_SetEntityLeaseSemantics(t *testing.T) {
	t.Parallel()
	c, remote, sched := newTestClient(t, Options{AbandonAfter: time.Minute})

	require.NoError(t, c.SetEntity("local/1", "v"))
	v, ok := c.Claim("A", "local/1")
	require.True(t, ok)
	assert.Equal(t, "v", v)
	assert.Equal(t, 0, remote.startCount())

	// Claimed: survives any amount of time.
	sched.Advance(24 * time.Hour)
	_, ok = c.GetEntity("local/1")
	assert.True(t, ok)

	// Released: evicted after the abandonment delay.
	c.Release("A", "local/1")
	sched.Advance(time.Minute)
	_, ok = c.GetEntity("local/1")
	assert.False(t, ok)
	assert.Equal(t, 0, c.LeaseCount())
}

// An entity set without any claim is still garbage collected.
func TestClient_UnclaimedSetEntityExpires(t *testing.T) {
	t.Parallel()
	c, _, sched := newTestClient(t, Options{AbandonAfter: time.Second})

	require.NoError(t, c.SetEntity("orphan", 1))
	sched.Advance(time.Second)

	_, ok := c.GetEntity("orphan")
	assert.False(t, ok)
}

func TestClient_SetEntityEmptyKey(t *testing.T) {
	t.Parallel()
	c, _, _ := newTestClient(t, Options{})

	assert.ErrorIs(t, c.SetEntity("", 1), ErrEmptyKey)
}

// Mutate applies on a copy: a snapshot taken before the mutation never
// changes under the reader's feet.
func TestClient_MutateSnapshotIsolation(t *testing.T) {
	t.Parallel()
	c, _, _ := newTestClient(t, Options{
		InitialState: map[string]any{"counter": float64(1), "nested": map[string]any{"a": "x"}},
	})

	before := c.State()
	require.NoError(t, c.Mutate(func(root map[string]any) {
		root["counter"] = float64(2)
		root["nested"].(map[string]any)["a"] = "y"
	}))

	assert.Equal(t, float64(1), before["counter"], "old snapshot must be untouched")
	assert.Equal(t, "x", before["nested"].(map[string]any)["a"])

	after := c.State()
	assert.Equal(t, float64(2), after["counter"])
	assert.Equal(t, "y", after["nested"].(map[string]any)["a"])
}

// The initial state map is deep-copied, never aliased.
func TestClient_InitialStateNotAliased(t *testing.T) {
	t.Parallel()

	seed := map[string]any{"flag": true}
	c, _, _ := newTestClient(t, Options{InitialState: seed})

	seed["flag"] = false
	assert.Equal(t, true, c.State()["flag"])
}

func TestClient_MergePatch(t *testing.T) {
	t.Parallel()
	c, _, _ := newTestClient(t, Options{
		InitialState: map[string]any{
			"theme": "dark",
			"user":  map[string]any{"name": "ada", "lang": "en"},
		},
	})

	require.NoError(t, c.MergePatch(map[string]any{
		"theme": "light",
		"user":  map[string]any{"lang": "fr"},
	}))

	got := c.State()
	assert.Equal(t, "light", got["theme"])
	user := got["user"].(map[string]any)
	assert.Equal(t, "fr", user["lang"], "patched field overridden")
	assert.Equal(t, "ada", user["name"], "unpatched field kept")
}

// The state root lease is pinned: it never falls to the abandonment
// timer even though nothing claims it.
func TestClient_StateRootNeverEvicted(t *testing.T) {
	t.Parallel()
	c, _, sched := newTestClient(t, Options{
		AbandonAfter: time.Second,
		InitialState: map[string]any{"v": float64(1)},
	})

	sched.Advance(24 * time.Hour)
	assert.Equal(t, float64(1), c.State()["v"])
}

func TestClient_MutateCreatesRootLazily(t *testing.T) {
	t.Parallel()
	c, _, _ := newTestClient(t, Options{})

	assert.Nil(t, c.State())
	require.NoError(t, c.Mutate(func(root map[string]any) { root["k"] = "v" }))
	assert.Equal(t, "v", c.State()["k"])
}

// Concurrent one-shot fetches for the same key are coalesced into one
// remote read.
func TestClient_FetchCoalesced(t *testing.T) {
	c, remote, _ := newTestClient(t, Options{})

	var calls int64
	remote.fetchFn = func(p key.Path) (any, error) {
		atomic.AddInt64(&calls, 1)
		time.Sleep(5 * time.Millisecond) // simulate I/O
		return "v:" + p.String(), nil
	}

	p := key.New("users", "42")
	var g errgroup.Group
	for i := 0; i < 32; i++ {
		g.Go(func() error {
			v, err := c.Fetch(context.Background(), p)
			if err != nil {
				return err
			}
			if v != "v:users/42" {
				return errors.New("unexpected value " + v.(string))
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	assert.LessOrEqual(t, atomic.LoadInt64(&calls), int64(2), "fetches must coalesce")
	v, ok := c.GetEntity(p.String())
	require.True(t, ok)
	assert.Equal(t, "v:users/42", v)
	assert.Equal(t, 1, c.LeaseCount(), "fetch populates a lease for the slot")
}

// A fetch on a key with a bound watch goes through that watch's
// transform, keeping the cached shape consistent.
func TestClient_FetchUsesBoundTransform(t *testing.T) {
	t.Parallel()
	c, remote, _ := newTestClient(t, Options{})

	p := key.New("users", "7")
	c.Watch("A", p, WatchOptions{
		Transform: func(payload any, _ key.Path) any { return "t:" + payload.(string) },
	})
	remote.fetchFn = func(key.Path) (any, error) { return "raw", nil }

	v, err := c.Fetch(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, "t:raw", v)
}

func TestClient_FetchErrors(t *testing.T) {
	t.Parallel()

	c, remote, _ := newTestClient(t, Options{})
	_, err := c.Fetch(context.Background(), key.New("users", ""))
	assert.ErrorIs(t, err, ErrUnresolvedPath)

	boom := errors.New("unreachable")
	remote.fetchFn = func(key.Path) (any, error) { return nil, boom }
	_, err = c.Fetch(context.Background(), key.New("users", "1"))
	assert.ErrorIs(t, err, boom)
	_, ok := c.GetEntity("users/1")
	assert.False(t, ok, "failed fetch must not populate the cache")

	local, err := New(Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = local.Close() })
	_, err = local.Fetch(context.Background(), key.New("users", "1"))
	assert.ErrorIs(t, err, ErrNoRemote)
}

// Cache subscribers observe entity mutations from all paths (watch
// events, SetEntity, eviction deletes).
func TestClient_SubscribeSeesMutations(t *testing.T) {
	t.Parallel()
	c, remote, sched := newTestClient(t, Options{AbandonAfter: time.Second})

	var ops []cache.Op
	cancel := c.Subscribe(func(ev cache.Event[any]) { ops = append(ops, ev.Op) })
	defer cancel()

	p := key.New("k")
	c.Watch("A", p, WatchOptions{})
	remote.emitChange(t, "k", 1)
	c.ReleaseAll("A")
	sched.Advance(time.Second)

	assert.Equal(t, []cache.Op{cache.OpSet, cache.OpDelete}, ops)
}

func TestClient_ReleaseAllIdempotent(t *testing.T) {
	t.Parallel()
	c, _, sched := newTestClient(t, Options{AbandonAfter: time.Minute})

	c.Watch("pane", key.New("a"), WatchOptions{})
	c.Watch("pane", key.New("b"), WatchOptions{})
	require.Equal(t, 2, c.LeaseCount())

	c.ReleaseAll("pane")
	c.ReleaseAll("pane")
	c.ReleaseAll("pane")

	sched.Advance(time.Minute)
	assert.Equal(t, 0, c.LeaseCount())
	assert.Equal(t, 0, c.EntityCount())
}

func TestClient_SnapshotOrdered(t *testing.T) {
	t.Parallel()
	c, _, _ := newTestClient(t, Options{})

	require.NoError(t, c.SetEntity("first", 1))
	require.NoError(t, c.SetEntity("second", 2))
	require.NoError(t, c.SetEntity("first", 11))

	snap := c.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, "first", snap[0].Key)
	assert.Equal(t, 11, snap[0].Value)
	assert.Equal(t, "second", snap[1].Key)
}

// Close cancels timers, stops watches, and renders the client inert.
func TestClient_Close(t *testing.T) {
	t.Parallel()
	remote := newFakeRemote()
	sched := &fakeScheduler{}
	c, err := New(Options{Remote: remote, Scheduler: sched})
	require.NoError(t, err)

	p := key.New("k")
	c.Watch("A", p, WatchOptions{})
	remote.emitChange(t, "k", 1)

	require.NoError(t, c.Close())
	require.NoError(t, c.Close()) // idempotent

	assert.Equal(t, 1, remote.stopCount("k"))
	assert.Equal(t, 0, c.LeaseCount())

	res := c.Watch("A", p, WatchOptions{})
	assert.Equal(t, StatusIdle, res.Status)
	assert.ErrorIs(t, res.Err, ErrClosed, "a closed client is distinguishable from an unresolved path")
	assert.Equal(t, 1, remote.startCount(), "no subscription after Close")
	_, ok := c.GetEntity("k")
	assert.False(t, ok)
}

// Claims and releases against a watched key interleaved with remote
// events must be race-free (run with -race).
func TestClient_ConcurrentClaimReleaseRace(t *testing.T) {
	c, remote, _ := newTestClient(t, Options{AbandonAfter: lease.Forever})

	p := key.New("hot")
	c.Watch("seed", p, WatchOptions{})

	var g errgroup.Group
	for i := 0; i < 16; i++ {
		claimant := NewClaimantID()
		g.Go(func() error {
			for j := 0; j < 200; j++ {
				c.Watch(claimant, p, WatchOptions{})
				c.Claim(claimant, "hot")
				c.Release(claimant, "hot")
				c.ReleaseAll(claimant)
			}
			return nil
		})
	}
	g.Go(func() error {
		for j := 0; j < 500; j++ {
			remote.emitChange(t, "hot", j)
		}
		return nil
	})
	require.NoError(t, g.Wait())

	assert.Equal(t, 1, remote.startCount())
	_, ok := c.GetEntity("hot")
	assert.True(t, ok, "seed claimant still holds the key")
}
