// Package txncache implements a transactional, in-memory entity cache with
// per-key revision history. Reads and writes happen inside a LiveTransaction
// that observes a snapshot taken at Begin; Commit reconciles the
// transaction's local writes against whatever the primary store holds by
// then, using a pluggable entity-merge strategy (default: recursive
// deep-merge), and appends the result to that key's revision log.
//
// Components:
//   - primary.Store: weak-referenced key→entity map + per-key EntryState.
//   - lru.LRU: bounded, insertion-ordered strong-reference tier that keeps
//     the primary store's weak references resolvable.
//   - revlog.Log: per-key append-only revision history.
//   - revseq.Sequencer: per-key monotonic revision numbering. Local
//     (in-process) by default, optional Redis implementation for
//     cross-instance numbering.
//   - codec.Codec[V]: used to structurally clone entities for Save, Load,
//     and the per-key clone step of Commit.
//
// Typical flow:
//
//	txn := cache.BeginTransaction()
//	txn.Set(key, value)
//	err := txn.Commit(ctx)
package txncache
