package cache

import (
	"sync"

	"github.com/google/uuid"
)

// store is the Cache implementation: a map for lookups plus an intrusive
// insertion-ordered doubly linked list for Snapshot.
// All state is guarded by mu; subscriber callbacks run outside the lock
// so they may re-enter the cache (a subscriber reacting to key A may set
// key B synchronously).
type store[V any] struct {
	mu     sync.Mutex
	m      map[string]*node[V]
	head   *node[V] // oldest
	tail   *node[V] // newest
	subs   map[string]func(Event[V])
	closed bool

	opt Options
}

// New constructs a Cache with the provided Options.
// A nil Metrics defaults to NoopMetrics.
func New[V any](opt Options) Cache[V] {
	if opt.Metrics == nil {
		opt.Metrics = NoopMetrics{}
	}
	return &store[V]{
		m:    make(map[string]*node[V]),
		subs: make(map[string]func(Event[V])),
		opt:  opt,
	}
}

// ---- Cache[V] implementation ----

func (s *store[V]) Get(key string) (V, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.m[key]
	if !ok || s.closed {
		s.opt.Metrics.Miss()
		var zero V
		return zero, false
	}
	s.opt.Metrics.Hit()
	return n.val, true
}

func (s *store[V]) Set(key string, v V) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	if n, ok := s.m[key]; ok {
		// In-place update: position in the order is kept.
		n.val = v
	} else {
		n := &node[V]{key: key, val: v}
		s.pushBack(n)
		s.m[key] = n
	}
	s.opt.Metrics.Size(len(s.m))
	fns := s.subscribersLocked()
	s.mu.Unlock()

	notify(fns, Event[V]{Op: OpSet, Key: key, Value: v})
}

func (s *store[V]) Delete(key string) bool {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false
	}
	n, ok := s.m[key]
	if !ok {
		s.mu.Unlock()
		return false
	}
	s.unlink(n)
	delete(s.m, key)
	s.opt.Metrics.Size(len(s.m))
	fns := s.subscribersLocked()
	s.mu.Unlock()

	notify(fns, Event[V]{Op: OpDelete, Key: key})
	return true
}

func (s *store[V]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.m)
}

func (s *store[V]) Snapshot() []Entry[V] {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Entry[V], 0, len(s.m))
	for n := s.head; n != nil; n = n.next {
		out = append(out, Entry[V]{Key: n.key, Value: n.val})
	}
	return out
}

func (s *store[V]) Subscribe(fn func(Event[V])) func() {
	token := uuid.NewString()

	s.mu.Lock()
	if !s.closed {
		s.subs[token] = fn
	}
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subs, token)
		s.mu.Unlock()
	}
}

func (s *store[V]) Close() error {
	s.mu.Lock()
	s.closed = true
	s.subs = make(map[string]func(Event[V]))
	s.mu.Unlock()
	return nil
}

// ---- internals ----

// subscribersLocked copies the current callbacks so they can be invoked
// after mu is released.
func (s *store[V]) subscribersLocked() []func(Event[V]) {
	if len(s.subs) == 0 {
		return nil
	}
	fns := make([]func(Event[V]), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	return fns
}

func notify[V any](fns []func(Event[V]), ev Event[V]) {
	for _, fn := range fns {
		fn(ev)
	}
}

// pushBack appends n at the newest end in O(1).
func (s *store[V]) pushBack(n *node[V]) {
	n.prev = s.tail
	n.next = nil
	if s.tail != nil {
		s.tail.next = n
	}
	s.tail = n
	if s.head == nil {
		s.head = n
	}
}

// unlink removes n from the list in O(1).
func (s *store[V]) unlink(n *node[V]) {
	if n.prev != nil {
		n.prev.next = n.next
	}
	if n.next != nil {
		n.next.prev = n.prev
	}
	if s.head == n {
		s.head = n.next
	}
	if s.tail == n {
		s.tail = n.prev
	}
	n.prev, n.next = nil, nil
}
