package txncache

import (
	"context"
	"fmt"
	"sync"

	"github.com/unkn0wn-root/txncache/lru"
	"github.com/unkn0wn-root/txncache/mirror"
	"github.com/unkn0wn-root/txncache/primary"
	"github.com/unkn0wn-root/txncache/revlog"
	"github.com/unkn0wn-root/txncache/revseq"
)

// Cache is a transactional, revision-tracked, weak-referenced entity store.
// A Cache instance is parameterized over exactly one key type K and one
// entity type V; see KeyRegistry for documenting a heterogeneous logical
// namespace across several Cache instances.
type Cache[K comparable, V any] struct {
	mu sync.Mutex

	opts    Options[K, V]
	primary *primary.Store[K, V]
	lru     *lru.LRU[K, V]
	revlog  *revlog.Log[K, V]
}

// New builds a Cache with the given options, filling every unset optional
// field with its default.
func New[K comparable, V any](opts Options[K, V]) (*Cache[K, V], error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	opts = opts.withDefaults()

	c := &Cache[K, V]{opts: opts}
	c.lru = lru.New[K, V](opts.LRUCapacity, c.onLRUEvict)
	c.primary = primary.New[K, V](c.lru)
	c.revlog = revlog.New[K, V]()

	if opts.Sequencer != nil {
		c.opts.Sequencer = opts.Sequencer
	} else {
		c.opts.Sequencer = revseq.NewLocal(opts.SequenceSweep, opts.SequenceRetention)
	}
	return c, nil
}

func (c *Cache[K, V]) onLRUEvict(key K) {
	c.primary.ClearLRURetention(key)
	c.opts.Hooks.LRUEvicted(c.describe(key))
}

func (c *Cache[K, V]) describe(key K) string {
	if c.opts.Registry != nil {
		return c.opts.Registry.Describe(key)
	}
	return fmt.Sprint(key)
}

func (c *Cache[K, V]) sequenceKey(key K) string { return fmt.Sprint(key) }

// Get resolves key against the primary store's weak reference.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	return c.primary.Get(key)
}

// Save iterates the primary store and returns a deep-cloned snapshot of
// every currently reachable (key, value, state) triple, suitable for
// feeding to Load. Fails with a *CloneError wrapping
// ErrNotStructuredCloneable on the first value the configured Codec cannot
// round-trip.
func (c *Cache[K, V]) Save() ([]SavedEntry[K, V], error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var out []SavedEntry[K, V]
	var cloneErr error
	err := c.primary.Iterate(func(key K, entity V, state EntryState) bool {
		clone, cerr := structuredClone(c.opts.Codec, key, entity)
		if cerr != nil {
			cloneErr = cerr
			return false
		}
		out = append(out, SavedEntry[K, V]{Key: key, Value: clone, State: state})
		return true
	})
	if err != nil {
		return nil, err
	}
	if cloneErr != nil {
		if ce, ok := cloneErr.(*CloneError); ok {
			c.opts.Hooks.CloneFailed(fmt.Sprint(ce.Key), cloneErr)
		}
		return nil, cloneErr
	}
	return out, nil
}

// SavedEntry is one (key, value, state) triple produced by Save and
// consumed by Load.
type SavedEntry[K comparable, V any] struct {
	Key   K
	Value V
	State EntryState
}

// Load installs each entry in order: deep-clones its value, installs it in
// the primary store and the LRU tier (Retained.LRU is set to true whatever
// the saved EntryState says), and appends a fresh revision to the key's
// revision log. Load never clears existing
// state first; callers wanting a full replace must Clear beforehand.
func (c *Cache[K, V]) Load(entries []SavedEntry[K, V]) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	counter := uint64(0)
	for _, e := range entries {
		clone, err := structuredClone(c.opts.Codec, e.Key, e.Value)
		if err != nil {
			c.opts.Hooks.CloneFailed(c.describe(e.Key), err)
			return err
		}
		counter++
		state := e.State
		state.Retained.LRU = true
		c.primary.Put(e.Key, clone, state)
		c.revlog.Append(e.Key, EntityRevision[V]{Entity: clone, Revision: counter})
	}
	return nil
}

// Clear empties the primary store, the LRU tier, and the revision log.
func (c *Cache[K, V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.primary.Clear()
	c.lru.Clear()
	c.revlog.ClearAll()
}

// Entries iterates every reachable (key, value, state) in the primary
// store.
func (c *Cache[K, V]) Entries(yield func(K, V, EntryState) bool) error {
	return c.primary.Iterate(yield)
}

// Keys iterates every reachable key in the primary store.
func (c *Cache[K, V]) Keys(yield func(K) bool) error {
	return c.primary.Iterate(func(k K, _ V, _ EntryState) bool { return yield(k) })
}

// Values iterates every reachable value in the primary store.
func (c *Cache[K, V]) Values(yield func(V) bool) error {
	return c.primary.Iterate(func(_ K, v V, _ EntryState) bool { return yield(v) })
}

// EntryRevisions returns key's full revision history.
func (c *Cache[K, V]) EntryRevisions(key K) []EntityRevision[V] {
	return c.revlog.Iter(key)
}

// BeginTransaction opens a live transaction against a fresh snapshot of the
// primary store and revision logs.
func (c *Cache[K, V]) BeginTransaction() *LiveTransaction[K, V] {
	return newLiveTransaction(c)
}

// MirrorSnapshot exports every reachable entry's latest revision to the
// configured Mirror in one shot. If the Mirror implements
// mirror.BulkObserver, the whole snapshot goes out as a single write;
// otherwise it falls back to one Observe call per key. A no-op when no
// Mirror is configured.
func (c *Cache[K, V]) MirrorSnapshot(ctx context.Context) error {
	if c.opts.Mirror == nil {
		return nil
	}
	saved, err := c.Save()
	if err != nil {
		return err
	}

	bulk, isBulk := c.opts.Mirror.(mirror.BulkObserver)
	var items []mirror.BulkItem
	for _, e := range saved {
		last, ok := c.revlog.Last(e.Key)
		if !ok {
			continue
		}
		payload, err := c.opts.Codec.Encode(e.Value)
		if err != nil {
			c.opts.Hooks.CloneFailed(c.describe(e.Key), err)
			continue
		}
		if isBulk {
			items = append(items, mirror.BulkItem{Key: c.sequenceKey(e.Key), Revision: last.Revision, Payload: payload})
		} else {
			c.opts.Mirror.Observe(ctx, c.opts.Namespace, c.sequenceKey(e.Key), last.Revision, payload)
		}
	}
	if isBulk && len(items) > 0 {
		bulk.ObserveBulk(ctx, c.opts.Namespace, items)
	}
	return nil
}

// Close releases the configured Sequencer and Mirror, best-effort.
func (c *Cache[K, V]) Close(ctx context.Context) error {
	var firstErr error
	if c.opts.Sequencer != nil {
		if err := c.opts.Sequencer.Close(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if c.opts.Mirror != nil {
		if err := c.opts.Mirror.Close(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// commitTransaction atomically installs staged entries and revisions.
// Called only by LiveTransaction.Commit while holding c.mu.
func (c *Cache[K, V]) commitTransaction(entries map[K]stagedEntry[V], revisions map[K][]EntityRevision[V]) {
	for key, staged := range entries {
		c.primary.Put(key, staged.value, staged.state)
	}
	for key, revs := range revisions {
		c.revlog.AppendMany(key, revs)
		if len(revs) == 0 {
			continue
		}
		last := revs[len(revs)-1]
		c.opts.Hooks.RevisionAppended(c.describe(key), last.Revision)
		if c.opts.Mirror != nil {
			if payload, err := c.opts.Codec.Encode(last.Entity); err == nil {
				c.opts.Mirror.Observe(context.Background(), c.opts.Namespace, c.sequenceKey(key), last.Revision, payload)
			}
		}
	}
}

type stagedEntry[V any] struct {
	value V
	state EntryState
}
