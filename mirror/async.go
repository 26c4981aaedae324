package mirror

import (
	"context"
	"sync"
)

// Async wraps an inner Mirror and dispatches Observe calls onto a bounded
// worker pool, built the same way as hooks/async.Hooks, so a slow or
// unreachable mirror store never stalls Commit. Events that arrive when the
// queue is full are dropped.
type Async struct {
	inner Mirror
	q     chan func()
	wg    sync.WaitGroup
	once  sync.Once
}

var _ Mirror = (*Async)(nil)

// NewAsync builds an Async mirror with the given worker count and queue
// depth.
func NewAsync(inner Mirror, workers, qlen int) *Async {
	if workers <= 0 {
		workers = 1
	}
	if qlen <= 0 {
		qlen = 1024
	}

	a := &Async{inner: inner, q: make(chan func(), qlen)}
	a.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer a.wg.Done()
			for f := range a.q {
				f()
			}
		}()
	}
	return a
}

func (a *Async) Observe(ctx context.Context, namespace, key string, revision uint64, payload []byte) {
	a.try(func() { a.inner.Observe(ctx, namespace, key, revision, payload) })
}

// ObserveBulk dispatches onto the worker pool when the wrapped Mirror
// implements BulkObserver; otherwise it is a no-op, same as a missing
// capability would be for any other caller doing the type assertion.
func (a *Async) ObserveBulk(ctx context.Context, namespace string, items []BulkItem) {
	bulk, ok := a.inner.(BulkObserver)
	if !ok {
		return
	}
	a.try(func() { bulk.ObserveBulk(ctx, namespace, items) })
}

var _ BulkObserver = (*Async)(nil)

func (a *Async) try(f func()) {
	select {
	case a.q <- f:
	default: // drop
	}
}

// Close drains the queue, stops accepting new events, then closes the inner
// mirror.
func (a *Async) Close(ctx context.Context) error {
	a.once.Do(func() {
		close(a.q)
		a.wg.Wait()
	})
	return a.inner.Close(ctx)
}
