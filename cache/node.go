package cache

// node is an intrusive doubly linked list element owned by the store.
// The list records insertion order (head = oldest, tail = newest) so
// Snapshot can return a stable ordered view without sorting.
type node[V any] struct {
	key string
	val V

	prev *node[V]
	next *node[V]
}
