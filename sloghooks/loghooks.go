// Package sloghooks implements txncache.Hooks on top of log/slog, sampling
// high-frequency events and redacting keys by default.
package sloghooks

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"sync/atomic"

	"github.com/unkn0wn-root/txncache"
)

type Options struct {
	// Sampling to avoid floods; 0/1 = log all.
	RevisionAppendedEvery uint64
	LRUEvictedEvery       uint64
	// Optional key redactor. Defaults to SHA-256 prefix.
	Redact func(string) string
}

type Hooks struct {
	l    *slog.Logger
	opts Options

	revisionCtr atomic.Uint64
	evictCtr    atomic.Uint64
}

var _ txncache.Hooks = (*Hooks)(nil)

func New(l *slog.Logger, opts Options) *Hooks {
	return &Hooks{l: l, opts: opts}
}

func (h *Hooks) redact(k string) string {
	if h.opts.Redact != nil {
		return h.opts.Redact(k)
	}
	sum := sha256.Sum256([]byte(k))
	return hex.EncodeToString(sum[:8])
}

func sample(n uint64, ctr *atomic.Uint64) bool {
	if n == 0 || n == 1 {
		return true
	}
	return ctr.Add(1)%n == 0
}

func (h *Hooks) RevisionAppended(key string, revision uint64) {
	if h.l == nil || !sample(h.opts.RevisionAppendedEvery, &h.revisionCtr) {
		return
	}
	h.l.Debug("txncache.revision_appended",
		"key", h.redact(key),
		"revision", revision)
}

func (h *Hooks) LRUEvicted(key string) {
	if h.l == nil || !sample(h.opts.LRUEvictedEvery, &h.evictCtr) {
		return
	}
	h.l.Debug("txncache.lru_evicted", "key", h.redact(key))
}

func (h *Hooks) MergeProducedUndefined(key string) {
	if h.l == nil {
		return
	}
	h.l.Warn("txncache.merge_produced_undefined", "key", h.redact(key))
}

func (h *Hooks) CommitTimeout(elapsedKeys int) {
	if h.l == nil {
		return
	}
	h.l.Warn("txncache.commit_timeout", "elapsed_keys", elapsedKeys)
}

func (h *Hooks) PrimaryStoreInvariantViolation(key string) {
	if h.l == nil {
		return
	}
	h.l.Error("txncache.primary_store_invariant_violation", "key", h.redact(key))
}

func (h *Hooks) CloneFailed(key string, err error) {
	if h.l == nil {
		return
	}
	h.l.Warn("txncache.clone_failed", "key", h.redact(key), "err", err)
}

func (h *Hooks) SequencerError(key string, err error) {
	if h.l == nil {
		return
	}
	h.l.Warn("txncache.sequencer_error", "key", h.redact(key), "err", err)
}
