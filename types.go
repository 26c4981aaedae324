package txncache

import (
	"time"

	"github.com/unkn0wn-root/txncache/mirror"
	"github.com/unkn0wn-root/txncache/primary"
	"github.com/unkn0wn-root/txncache/revlog"
)

// Mirror is an optional, one-way, best-effort sink for committed revisions.
// See the mirror package for Store-backed implementations.
type Mirror = mirror.Mirror

// EntityRevision is one record in a key's revision history: the entity as
// it stood after the revision was assigned, the (per-key) revision number,
// and an optional caller-supplied context.
type EntityRevision[V any] = revlog.Revision[V]

// Retention captures what's keeping a key's entity alive and how fresh the
// cache considers it. TTL is advisory; the core never enforces it.
type Retention = primary.Retention

// EntryState is the per-key metadata tracked alongside a primary store
// entry: retention flags and the time it was last touched inside a live
// transaction.
type EntryState = primary.EntryState

func entryStateNow(ttl time.Duration) EntryState {
	return EntryState{
		Retained:     Retention{LRU: true, TTL: ttl},
		LastAccessed: timeNow(),
	}
}

// timeNow exists so tests can't accidentally depend on wall-clock behavior
// beyond what time.Now already provides; kept as a var for substitution in
// tests that need deterministic LastAccessed ordering.
var timeNow = time.Now
