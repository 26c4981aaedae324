package txncache

import (
	"context"
	"sort"
)

// LiveTransaction is a reader/writer opened against a snapshot of a Cache's
// primary store. Reads observe the snapshot taken at BeginTransaction;
// writes are buffered locally and only reconciled into the primary store by
// Commit. A LiveTransaction is not safe for concurrent use by multiple
// goroutines, and is never touched by anything but the goroutine that owns
// it - dropping it without calling Commit is the abort path; there is no
// explicit Abort.
type LiveTransaction[K comparable, V any] struct {
	cache *Cache[K, V]

	snapshot       map[K]V
	local          map[K]V
	entryState     map[K]EntryState
	entryRevisions map[K][]EntityRevision[V]
	localRevisions map[K][]EntityRevision[V]
}

func newLiveTransaction[K comparable, V any](c *Cache[K, V]) *LiveTransaction[K, V] {
	c.mu.Lock()
	defer c.mu.Unlock()

	t := &LiveTransaction[K, V]{
		cache:          c,
		snapshot:       make(map[K]V),
		local:          make(map[K]V),
		entryState:     make(map[K]EntryState),
		entryRevisions: make(map[K][]EntityRevision[V]),
		localRevisions: make(map[K][]EntityRevision[V]),
	}

	_ = c.primary.Iterate(func(key K, entity V, state EntryState) bool {
		t.snapshot[key] = entity
		t.entryState[key] = state
		if revs := c.revlog.Iter(key); len(revs) > 0 {
			t.entryRevisions[key] = revs
		}
		return true
	})
	return t
}

func (t *LiveTransaction[K, V]) touch(key K) {
	state, seen := t.entryState[key]
	if !seen {
		t.entryState[key] = entryStateNow(t.cache.opts.DefaultTTL)
		return
	}
	state.Retained.LRU = true
	if state.Retained.TTL == 0 {
		state.Retained.TTL = t.cache.opts.DefaultTTL
	}
	state.LastAccessed = timeNow()
	t.entryState[key] = state
}

// Get returns the entity for key from the local overlay if present, else
// from the snapshot, else (zero, false). A hit refreshes entryState.
func (t *LiveTransaction[K, V]) Get(key K) (V, bool) {
	if v, ok := t.local[key]; ok {
		t.touch(key)
		return v, true
	}
	if v, ok := t.snapshot[key]; ok {
		t.touch(key)
		return v, true
	}
	var zero V
	return zero, false
}

// Set writes value into both the local overlay and the snapshot view,
// refreshing entryState. It does not append a revision by itself.
func (t *LiveTransaction[K, V]) Set(key K, value V) {
	t.local[key] = value
	t.snapshot[key] = value
	t.touch(key)
}

// Delete removes key from both the local overlay and the snapshot view. It
// reports whether the key is now absent from both - it never reaches the
// primary store; a deleted key is simply not present in LocalEntries come
// commit time.
func (t *LiveTransaction[K, V]) Delete(key K) bool {
	delete(t.local, key)
	delete(t.snapshot, key)
	_, inLocal := t.local[key]
	_, inSnapshot := t.snapshot[key]
	return !inLocal && !inSnapshot
}

// Merge resolves incoming against the transaction's current value for key
// (zero value if key is unset) via the configured EntityMergeStrategy, sets
// the result, and records incoming's revision number (and context) against
// the merged entity in the key's local revision sequence. This local record
// is visible via LocalRevisions/EntryRevisions before Commit, but Commit
// supersedes it with the sequencer-issued revision actually installed into
// the primary revlog - incoming.Revision never reaches the permanent log.
func (t *LiveTransaction[K, V]) Merge(key K, incoming EntityRevision[V]) error {
	current, _ := t.Get(key)
	merged, ok := t.cache.opts.EntityMergeStrategy(key, incoming, current, t)
	if !ok {
		t.cache.opts.Hooks.MergeProducedUndefined(t.cache.describe(key))
		return ErrMergeProducedUndefined
	}
	t.Set(key, merged)
	t.localRevisions[key] = append(t.localRevisions[key], EntityRevision[V]{
		Entity:   merged,
		Revision: incoming.Revision,
		Context:  incoming.Context,
	})
	return nil
}

// Entries iterates the snapshot view with each key's attached entryState.
func (t *LiveTransaction[K, V]) Entries(yield func(K, V, EntryState) bool) {
	for k, v := range t.snapshot {
		if !yield(k, v, t.entryState[k]) {
			return
		}
	}
}

// LocalEntries iterates only the keys written locally within this
// transaction.
func (t *LiveTransaction[K, V]) LocalEntries(yield func(K, V) bool) {
	for k, v := range t.local {
		if !yield(k, v) {
			return
		}
	}
}

// EntryRevisions returns key's pre-existing revisions (as observed at
// BeginTransaction) followed by revisions recorded locally within this
// transaction.
func (t *LiveTransaction[K, V]) EntryRevisions(key K) []EntityRevision[V] {
	pre := t.entryRevisions[key]
	loc := t.localRevisions[key]
	out := make([]EntityRevision[V], 0, len(pre)+len(loc))
	out = append(out, pre...)
	out = append(out, loc...)
	return out
}

// LocalRevisions returns only the revisions recorded locally within this
// transaction for key.
func (t *LiveTransaction[K, V]) LocalRevisions(key K) []EntityRevision[V] {
	src := t.localRevisions[key]
	if len(src) == 0 {
		return nil
	}
	out := make([]EntityRevision[V], len(src))
	copy(out, src)
	return out
}

type orderedLocal[K comparable, V any] struct {
	key   K
	value V
	state EntryState
}

// Commit reconciles the transaction's local writes against the primary
// store's current state and installs the result. If ctx carries no
// deadline, Options.CommitTimeout is applied. A commit that loses the race
// against its deadline installs nothing and returns ErrCommitTimeout.
func (t *LiveTransaction[K, V]) Commit(ctx context.Context) error {
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.cache.opts.CommitTimeout)
		defer cancel()
	}

	done := make(chan error, 1)
	go func() { done <- t.doCommit(ctx) }()

	select {
	case <-ctx.Done():
		t.cache.opts.Hooks.CommitTimeout(len(t.local))
		return ErrCommitTimeout
	case err := <-done:
		return err
	}
}

func (t *LiveTransaction[K, V]) doCommit(ctx context.Context) error {
	ordered := make([]orderedLocal[K, V], 0, len(t.local))
	for k, v := range t.local {
		ordered = append(ordered, orderedLocal[K, V]{key: k, value: v, state: t.entryState[k]})
	}
	sort.Slice(ordered, func(i, j int) bool {
		ti, tj := ordered[i].state.LastAccessed, ordered[j].state.LastAccessed
		if ti.IsZero() || tj.IsZero() {
			return !ti.IsZero() // non-zero sorts before zero
		}
		return ti.After(tj) // descending: most recently touched first
	})

	staged := make(map[K]stagedEntry[V], len(ordered))
	committing := newCommittingTransaction[K, V]()

	for _, e := range ordered {
		select {
		case <-ctx.Done():
			return ErrCommitTimeout
		default:
		}

		latest, exists := t.cache.Get(e.key)

		seq, err := t.cache.opts.Sequencer.Next(ctx, t.cache.sequenceKey(e.key))
		if err != nil {
			t.cache.opts.Hooks.SequencerError(t.cache.describe(e.key), err)
			return &CommitError{Key: e.key, Cause: err}
		}

		toCommit := e.value
		if exists {
			merged, ok := t.cache.opts.EntityMergeStrategy(
				e.key,
				EntityRevision[V]{Entity: e.value, Revision: seq},
				latest,
				t,
			)
			if !ok {
				t.cache.opts.Hooks.MergeProducedUndefined(t.cache.describe(e.key))
				return &CommitError{Key: e.key, Cause: ErrMergeProducedUndefined}
			}
			toCommit = merged
		}

		cloned, err := structuredClone(t.cache.opts.Codec, e.key, toCommit)
		if err != nil {
			t.cache.opts.Hooks.CloneFailed(t.cache.describe(e.key), err)
			return &CommitError{Key: e.key, Cause: err}
		}

		// Supersede any pre-commit local revisions (e.g. from Merge calls
		// earlier in this transaction, which carry caller-supplied revision
		// numbers) with the single sequencer-issued revision for this
		// commit - the primary revlog only ever advances by Sequencer.Next,
		// so exactly one revision per locally-written key enters it here.
		t.localRevisions[e.key] = []EntityRevision[V]{{
			Entity:   cloned,
			Revision: seq,
		}}
		t.cache.opts.RevisionMergeStrategy(e.key, committing, t)

		staged[e.key] = stagedEntry[V]{value: cloned, state: e.state}
	}

	if t.cache.opts.CommitHook != nil {
		t.cache.opts.CommitHook(ctx, t, committing)
	}

	select {
	case <-ctx.Done():
		return ErrCommitTimeout
	default:
	}

	t.cache.mu.Lock()
	defer t.cache.mu.Unlock()
	t.cache.commitTransaction(staged, committing.MergedRevisions())
	return nil
}
