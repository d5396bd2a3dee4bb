// Package lease tracks multi-owner liveness for cached entities.
//
// Each entity key gets at most one Lease: a set-valued ledger of
// claimant names, an optional remote-watch teardown handle, and an
// optional pending abandonment timer. The ledger is a set, not a
// counter: claiming twice from the same name is a no-op, so claim and
// release are order-insensitive in net effect.
//
// The Manager enforces the core invariant pair: a non-empty ledger
// never has a pending timer, and an empty ledger always has one (or the
// lease is already gone). A release that empties the ledger starts a
// fresh timer with cancel-then-start semantics; a claim cancels any
// outstanding timer before proceeding, even when the claimant is
// already in the ledger. When a timer fires, eviction re-checks under
// the lock that the ledger is still empty, since a claim may have
// arrived between scheduling and firing.
//
// Timers run through the Scheduler seam so tests can drive time
// deterministically.
package lease
