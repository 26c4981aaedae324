// Package lru implements the cache's bounded, insertion-ordered retention
// tier: the tier that holds strong references and so is what keeps the
// primary store's weak references resolvable.
package lru

import (
	"sync"

	"github.com/hashicorp/golang-lru/v2/simplelru"
)

// EvictFunc is invoked whenever a key leaves the tier, whether by capacity
// eviction or explicit Delete. The primary store uses this to clear a key's
// Retained.LRU flag.
type EvictFunc[K comparable] func(key K)

// LRU is a bounded, capacity-ordered key→value map: at most Capacity
// entries, evicting the insertion-order head on overflow. It deliberately
// never promotes on read - only Set moves a key to the tail - since
// promotion-on-read plays no part in this cache's retention semantics (only
// the primary store resolves reads).
//
// Built on hashicorp/golang-lru's simplelru.LRU, used only for its ordered
// map + eviction bookkeeping: Get is never called, so simplelru's own
// recently-used promotion on Get never triggers.
type LRU[K comparable, V any] struct {
	mu       sync.Mutex
	capacity int
	inner    *simplelru.LRU[K, *V]
	onEvict  EvictFunc[K]
}

// New builds an LRU tier of the given capacity. Capacity 0 is valid: every
// Set becomes a no-op (conceptually insert-then-immediately-evict), so
// onEvict still fires for the key that was "evicted" on arrival.
func New[K comparable, V any](capacity int, onEvict EvictFunc[K]) *LRU[K, V] {
	l := &LRU[K, V]{capacity: capacity, onEvict: onEvict}
	if capacity > 0 {
		inner, err := simplelru.NewLRU[K, *V](capacity, func(key K, _ *V) {
			if l.onEvict != nil {
				l.onEvict(key)
			}
		})
		if err != nil {
			// simplelru only errors for size <= 0, already excluded above.
			panic(err)
		}
		l.inner = inner
	}
	return l
}

// Set installs value at key, evicting the insertion-order head if the tier
// is at capacity. Re-setting an existing key moves it to the tail.
func (l *LRU[K, V]) Set(key K, value *V) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.capacity == 0 {
		if l.onEvict != nil {
			l.onEvict(key)
		}
		return
	}
	l.inner.Add(key, value)
}

// Delete removes key if present.
func (l *LRU[K, V]) Delete(key K) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.inner != nil {
		l.inner.Remove(key)
	}
}

// Clear empties the tier.
func (l *LRU[K, V]) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.inner != nil {
		l.inner.Purge()
	}
}

// Len reports the current number of resident entries.
func (l *LRU[K, V]) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.inner == nil {
		return 0
	}
	return l.inner.Len()
}

// Entries returns the resident keys in insertion order, oldest first.
func (l *LRU[K, V]) Entries() []K {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.inner == nil {
		return nil
	}
	return l.inner.Keys()
}
