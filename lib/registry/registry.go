package registry

import (
	"fmt"
	"sync"
)

// entry is a registered value together with its reference count
type entry[V any] struct {
	value V
	refs  int
}

// Registry is a keyed pool of reference-counted entries.
//
// Acquire returns the existing value for a key (incrementing its reference
// count) or constructs a new one with the supplied factory. Release
// decrements the count and evicts the entry when it reaches zero, invoking
// the teardown hook.
//
// All bookkeeping (the key map and every reference count) is guarded by one
// mutex. The mutex is only held for bookkeeping: neither the factory result's
// own operation nor the teardown hook run while other keys are blocked from
// acquiring - but factory and teardown themselves are called under the lock,
// so they must not re-enter the registry.
type Registry[K comparable, V comparable] struct {
	mu      sync.Mutex
	entries map[K]*entry[V]
	onEvict func(key K, value V)
}

// New creates a new registry. The optional onEvict hook is called whenever
// an entry's reference count drops to zero, with the evicted key and value.
func New[K comparable, V comparable](onEvict func(key K, value V)) *Registry[K, V] {
	return &Registry[K, V]{
		entries: make(map[K]*entry[V]),
		onEvict: onEvict,
	}
}

// Acquire returns the value registered for key, creating it with factory if
// the key is absent. The entry's reference count is incremented; every
// Acquire must be paired with exactly one Release.
//
// Thread-safety: safe to call concurrently. An Acquire racing with the last
// Release of the same key either sees the existing instance (and keeps it
// alive) or a fresh one - never a half-torn-down entry.
func (r *Registry[K, V]) Acquire(key K, factory func() V) V {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.entries[key]; ok {
		e.refs++
		return e.value
	}

	e := &entry[V]{value: factory(), refs: 1}
	r.entries[key] = e
	return e.value
}

// Release decrements the reference count for key. When the count reaches
// zero the entry is evicted and the teardown hook runs.
//
// The value must be the instance obtained from the matching Acquire. A
// release of an unknown key or of a value that is not the registered
// instance (double release, mismatched acquire/release pairing) panics.
func (r *Registry[K, V]) Release(key K, value V) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[key]
	if !ok {
		panic(fmt.Sprintf("registry: release of key %v which is not held", key))
	}
	if e.value != value {
		panic(fmt.Sprintf("registry: release of key %v with a value that is not the registered instance", key))
	}

	e.refs--
	if e.refs < 0 {
		// unreachable while the map invariant holds, checked anyway
		panic(fmt.Sprintf("registry: negative reference count for key %v", key))
	}

	if e.refs == 0 {
		delete(r.entries, key)
		if r.onEvict != nil {
			r.onEvict(key, e.value)
		}
	}
}

// Refs returns the current reference count for key, or 0 if the key is not
// registered.
func (r *Registry[K, V]) Refs(key K) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.entries[key]; ok {
		return e.refs
	}
	return 0
}

// Len returns the number of registered keys.
func (r *Registry[K, V]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Clear evicts all entries regardless of their reference counts, invoking
// the teardown hook for each. Intended for owner shutdown, where all
// outstanding holders are known to be done.
func (r *Registry[K, V]) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for key, e := range r.entries {
		delete(r.entries, key)
		if r.onEvict != nil {
			r.onEvict(key, e.value)
		}
	}
}
