// Package client is the façade of entitycache: a shared, deduplicated
// in-memory cache of server-derived entities with lease-based garbage
// collection and push-based remote subscriptions.
//
// Model
//
//   - Entities live in an ordered cache keyed by canonical path strings
//     (package key). The cache stores at most one value per key: when
//     several claimants watch the same key with different transforms,
//     the transform supplied by the call that created the lease wins
//     and everyone observes its output. This is a documented hazard,
//     not a detected error.
//
//   - Liveness is tracked per key by a Lease (package lease): a set of
//     claimant names. While the set is non-empty the entity is
//     retained. When the last claim is released an abandonment timer
//     starts (default 5 minutes); if it fires with the ledger still
//     empty, the entity, its lease, and its remote subscription are
//     torn down together. A claim arriving first cancels the timer.
//
//   - Watch guarantees exactly one remote subscription per key no
//     matter how many claimants observe it. Incoming change events pass
//     through the application-supplied transform and land in the cache
//     synchronously; removal events store a cache.Tombstone; error
//     events flow into the returned Result rather than being thrown.
//     Transforms may re-enter the client (claiming or watching other
//     keys); callbacks always run outside internal locks.
//
//   - Client-side entities use SetEntity/GetEntity with the same lease
//     semantics but no remote watch. The designated client-state root
//     is mutated through Mutate/MergePatch with copy-on-write
//     snapshots: readers never observe a partially-applied mutation.
//
// Statuses follow idle → pending → {success, removed, error}, with
// success ⇄ success on subsequent updates. A terminal key returns to
// pending only through a fresh lease after full eviction. Keys
// populated without a watch (SetEntity, Fetch) report success while
// cached and idle otherwise; pending, removed, and error arise only
// for watched keys. Watch on a closed client is idle too, but carries
// ErrClosed so callers can tell it apart from an unresolved path.
//
// Basic usage
//
//	ec, _ := client.New(client.Options{Remote: src})
//	defer ec.Close()
//
//	res := ec.Watch("profile-pane", key.New("users", "42"), client.WatchOptions{})
//	switch res.Status {
//	case client.StatusSuccess:
//	    render(res.Value)
//	case client.StatusError:
//	    warn(res.Err)
//	}
//
//	// on unmount:
//	ec.ReleaseAll("profile-pane")
package client
