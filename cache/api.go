package cache

// Cache is an ordered, change-notifying entity store.
// All methods are safe for concurrent use by multiple goroutines.
//
// The cache never evicts on its own: entries are removed only through
// explicit Delete calls (in practice, driven by the lease manager).
type Cache[V any] interface {
	// Get returns the value for key and a presence flag.
	Get(key string) (V, bool)

	// Set inserts or updates key -> v and notifies subscribers.
	// Insertion order is preserved; updating a key keeps its position.
	Set(key string, v V)

	// Delete removes key if present, notifies subscribers, and reports
	// whether an entry existed.
	Delete(key string) bool

	// Len returns the number of resident entries.
	Len() int

	// Snapshot returns all entries in insertion order. The returned
	// slice is a copy and may be retained by the caller.
	Snapshot() []Entry[V]

	// Subscribe registers fn to be called after every Set/Delete.
	// The returned cancel function removes the subscription and is
	// safe to call more than once.
	Subscribe(fn func(Event[V])) (cancel func())

	// Close marks the cache as closed. Future operations are ignored.
	Close() error
}

// Entry is a key/value pair as returned by Snapshot.
type Entry[V any] struct {
	Key   string
	Value V
}

// Op tags the kind of change carried by an Event.
type Op int

const (
	// OpSet — an entry was inserted or updated.
	OpSet Op = iota
	// OpDelete — an entry was removed.
	OpDelete
)

// Event describes a single cache mutation delivered to subscribers.
// For OpDelete, Value is the zero value.
type Event[V any] struct {
	Op    Op
	Key   string
	Value V
}

// Tombstone is the marker value stored for a key whose remote resource
// was deleted. The entry stays resident (claimants may still hold it)
// until its lease is evicted.
type Tombstone struct{}

// IsTombstone reports whether v is the removed-resource marker.
func IsTombstone(v any) bool {
	_, ok := v.(Tombstone)
	return ok
}
