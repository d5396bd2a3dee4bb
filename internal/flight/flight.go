package flight

import (
	"context"
	"sync"
)

// Group coalesces concurrent calls for the same entity key so the
// supplied fn runs at most once; other callers wait for the shared
// result.
//
// The first caller for a key becomes the leader and runs fn. Followers
// block on the call's done channel; publishing (val, err) happens-before
// close(done), so reads after <-done observe the final values. A
// follower whose ctx is cancelled returns ctx.Err() on its own; the
// leader keeps running.
type Group[V any] struct {
	mu sync.Mutex
	m  map[string]*call[V]
}

type call[V any] struct {
	done chan struct{} // closed when val/err are published
	val  V
	err  error
}

// Do runs fn once for key; concurrent calls with the same key share the
// result. To cancel the underlying work itself, thread ctx into fn.
func (g *Group[V]) Do(ctx context.Context, key string, fn func() (V, error)) (V, error) {
	g.mu.Lock()
	if g.m == nil {
		g.m = make(map[string]*call[V])
	}
	if c, ok := g.m[key]; ok {
		done := c.done
		g.mu.Unlock()

		select {
		case <-done:
			return c.val, c.err
		case <-ctx.Done():
			var zero V
			return zero, ctx.Err()
		}
	}

	c := &call[V]{done: make(chan struct{})}
	g.m[key] = c
	g.mu.Unlock()

	// Leader path: run fn outside the lock, then publish.
	c.val, c.err = fn()
	close(c.done)

	g.mu.Lock()
	delete(g.m, key)
	g.mu.Unlock()

	return c.val, c.err
}
