// Package primary implements the cache's weak-referenced source of truth:
// a key→entity map where the entity is only reachable through a weak
// pointer, plus per-key EntryState bookkeeping (retention flags,
// last-accessed). A key survives in the map only as long as something else
// - typically the LRU tier - holds a strong reference to the same value.
package primary

import (
	"errors"
	"runtime"
	"sync"
	"time"
	"weak"
)

// ErrInvariantViolation is returned by Iterate when bookkeeping exists for a
// key whose weak slot was never installed - a programming invariant
// violation, distinct from ordinary garbage collection of an unrooted value.
var ErrInvariantViolation = errors.New("primary: invariant violation")

// Retention captures what's keeping a key's entity alive and how fresh the
// cache considers it (the TTL is advisory only; the core never enforces it).
type Retention struct {
	LRU bool
	TTL time.Duration
}

// EntryState is the per-key metadata tracked alongside the weak reference.
type EntryState struct {
	Retained     Retention
	LastAccessed time.Time
}

// Retainer is implemented by the LRU tier. Put hands it a strong pointer
// when Retained.LRU is true; that strong pointer is what keeps the store's
// weak reference resolvable until the LRU tier evicts it.
type Retainer[K comparable, V any] interface {
	Set(key K, value *V)
	Delete(key K)
	Clear()
}

type slot[V any] struct {
	ref       weak.Pointer[V]
	state     EntryState
	token     *byte
	installed bool
}

type cleanupArg[K comparable] struct {
	key   K
	token *byte
}

// Store is the weak-referenced primary store. The zero value is not usable;
// construct with New.
type Store[K comparable, V any] struct {
	mu    sync.Mutex
	slots map[K]*slot[V]
	lru   Retainer[K, V]
}

// New builds a Store. lru may be nil, in which case nothing keeps entries
// alive beyond whatever external references the host itself holds.
func New[K comparable, V any](lru Retainer[K, V]) *Store[K, V] {
	return &Store[K, V]{
		slots: make(map[K]*slot[V]),
		lru:   lru,
	}
}

// Get resolves the weak reference for key. ok is false both when the key
// was never present and when its referent has been reclaimed.
func (s *Store[K, V]) Get(key K) (entity V, ok bool) {
	s.mu.Lock()
	sl, present := s.slots[key]
	s.mu.Unlock()
	if !present {
		return entity, false
	}
	p := sl.ref.Value()
	if p == nil {
		return entity, false
	}
	return *p, true
}

// EntryState returns the bookkeeping for key, if the key is currently
// present (regardless of whether its weak reference still resolves).
func (s *Store[K, V]) EntryState(key K) (EntryState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sl, ok := s.slots[key]
	if !ok {
		return EntryState{}, false
	}
	return sl.state, true
}

// Put installs or replaces key's entity and state. When state.Retained.LRU
// is true, the strong reference is also handed to the LRU tier, which is
// what keeps the weak reference resolvable.
func (s *Store[K, V]) Put(key K, entity V, state EntryState) {
	ev := new(V)
	*ev = entity
	wp := weak.Make(ev)
	tok := new(byte)

	s.mu.Lock()
	s.slots[key] = &slot[V]{ref: wp, state: state, token: tok, installed: true}
	s.mu.Unlock()

	runtime.AddCleanup(ev, s.evaporate, cleanupArg[K]{key: key, token: tok})

	if state.Retained.LRU && s.lru != nil {
		s.lru.Set(key, ev)
	} else if s.lru != nil {
		s.lru.Delete(key)
	}
}

// evaporate prunes the bookkeeping entry for arg.key, but only if it still
// belongs to the Put call whose value was just collected - a later Put for
// the same key must not have its bookkeeping deleted by an older value's
// cleanup firing after the fact.
func (s *Store[K, V]) evaporate(arg cleanupArg[K]) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sl, ok := s.slots[arg.key]; ok && sl.token == arg.token {
		delete(s.slots, arg.key)
	}
}

// ClearLRURetention flips Retained.LRU to false for key's EntryState, if
// present, without touching the weak reference itself. Called by the LRU
// tier's eviction callback, after the tier has already dropped its own
// strong reference - from this point the entity survives only as long as
// something external still holds it.
func (s *Store[K, V]) ClearLRURetention(key K) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sl, ok := s.slots[key]; ok {
		sl.state.Retained.LRU = false
	}
}

// Delete removes key from the store and, if present, from the LRU tier.
func (s *Store[K, V]) Delete(key K) {
	s.mu.Lock()
	delete(s.slots, key)
	s.mu.Unlock()
	if s.lru != nil {
		s.lru.Delete(key)
	}
}

// Clear empties the store. It does not touch the LRU tier; callers
// orchestrating a full reset (the cache façade's Clear) clear both.
func (s *Store[K, V]) Clear() {
	s.mu.Lock()
	s.slots = make(map[K]*slot[V])
	s.mu.Unlock()
}

// Iterate yields (key, entity, state) for every key whose weak reference
// still resolves, skipping evaporated entries silently. It returns
// ErrInvariantViolation, aborting the iteration, if it finds bookkeeping for
// a key whose weak slot was never installed.
func (s *Store[K, V]) Iterate(yield func(key K, entity V, state EntryState) bool) error {
	s.mu.Lock()
	keys := make([]K, 0, len(s.slots))
	slots := make([]*slot[V], 0, len(s.slots))
	for k, sl := range s.slots {
		keys = append(keys, k)
		slots = append(slots, sl)
	}
	s.mu.Unlock()

	for i, sl := range slots {
		if !sl.installed {
			return ErrInvariantViolation
		}
		p := sl.ref.Value()
		if p == nil {
			continue
		}
		if !yield(keys[i], *p, sl.state) {
			return nil
		}
	}
	return nil
}
