// Package cache provides the ordered, change-notifying entity store at
// the heart of entitycache.
//
// Design
//
//   - Storage: a map[string]*node for lookups plus an intrusive
//     insertion-ordered doubly linked list, so Snapshot returns entries
//     in a stable order without sorting. All operations are O(1)
//     expected (Snapshot is O(n)).
//
//   - No implicit eviction: the cache holds entries until Delete is
//     called. Lifetime decisions belong to the lease manager, which owns
//     claim tracking and abandonment timers.
//
//   - Notifications: Subscribe registers a callback invoked after every
//     Set/Delete. Callbacks run outside the internal lock, so a
//     subscriber may synchronously read or write other keys (a child
//     entity's update embedding itself into a parent's cached shape).
//
//   - Metrics: Options.Metrics receives Hit/Miss/Size signals.
//     NoopMetrics is the default; the metrics/prom package exports them
//     to Prometheus.
//
// Basic usage
//
//	c := cache.New[any](cache.Options{})
//	c.Set("users/42", profile)
//	if v, ok := c.Get("users/42"); ok {
//	    _ = v
//	}
//	cancel := c.Subscribe(func(ev cache.Event[any]) {
//	    // re-render, index, ...
//	})
//	defer cancel()
package cache
