// Package asynchook dispatches txncache.Hooks events through a bounded
// worker pool so a slow or blocking inner implementation (a logger writing
// to a remote sink, say) never stalls the commit path that fired the event.
// Events that arrive when the queue is full are dropped.
//
// usage:
//
// import (
//
//	"log/slog"
//
//	"github.com/unkn0wn-root/txncache"
//	"github.com/unkn0wn-root/txncache/hooks/async"
//	"github.com/unkn0wn-root/txncache/sloghooks"
//
// )
//
//	raw := sloghooks.New(slog.Default(), sloghooks.Options{
//	    RevisionAppendedEvery: 10, // sample logs: ~every 10th append
//	})
//
// hooks := asynchook.New(raw, 1, 1000) // 1 worker; queue 1000 events
// defer hooks.Close()
//
//	cache, _ := txncache.New[string, User](txncache.Options[string, User]{
//	    Hooks: hooks, // or `raw` if you don't want async
//	})
package asynchook

import (
	"sync"

	"github.com/unkn0wn-root/txncache"
)

// Hooks wraps an inner txncache.Hooks and dispatches each call onto a
// bounded worker pool.
type Hooks struct {
	inner txncache.Hooks
	q     chan func()
	wg    sync.WaitGroup
	once  sync.Once
}

var _ txncache.Hooks = (*Hooks)(nil)

// New builds a Hooks with the given worker count and queue depth.
func New(inner txncache.Hooks, workers, qlen int) *Hooks {
	if workers <= 0 {
		workers = 1
	}
	if qlen <= 0 {
		qlen = 1024
	}

	h := &Hooks{inner: inner, q: make(chan func(), qlen)}
	h.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer h.wg.Done()
			for f := range h.q {
				f()
			}
		}()
	}
	return h
}

// Close drains the queue and stops accepting new events.
func (h *Hooks) Close() {
	h.once.Do(func() {
		close(h.q)
		h.wg.Wait()
	})
}

func (h *Hooks) try(f func()) {
	select {
	case h.q <- f:
	default: // drop
	}
}

func (h *Hooks) RevisionAppended(key string, revision uint64) {
	h.try(func() { h.inner.RevisionAppended(key, revision) })
}
func (h *Hooks) LRUEvicted(key string) { h.try(func() { h.inner.LRUEvicted(key) }) }
func (h *Hooks) MergeProducedUndefined(key string) {
	h.try(func() { h.inner.MergeProducedUndefined(key) })
}
func (h *Hooks) CommitTimeout(elapsedKeys int) {
	h.try(func() { h.inner.CommitTimeout(elapsedKeys) })
}
func (h *Hooks) PrimaryStoreInvariantViolation(key string) {
	h.try(func() { h.inner.PrimaryStoreInvariantViolation(key) })
}
func (h *Hooks) CloneFailed(key string, err error) {
	h.try(func() { h.inner.CloneFailed(key, err) })
}
func (h *Hooks) SequencerError(key string, err error) {
	h.try(func() { h.inner.SequencerError(key, err) })
}
