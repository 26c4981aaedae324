// Package mirror defines an optional, one-way export path for committed
// revisions: a thin sink a host can wire up to warm an external byte store
// (a cross-process edge cache, an audit log) with what a cache instance just
// decided, without turning that store into a second source of truth.
// Nothing in this package, or the cache itself, ever reads a mirror back.
//
// A Store is a minimal byte-store shape (Get/Set/Del/Close, TTL-aware,
// byte-for-byte transparent), and the bytes handed to Set are framed with
// internal/wire: its single-entry format for Observe and its bulk format for
// ObserveBulk, each carrying the revision number.
package mirror

import (
	"context"
	"time"

	"github.com/unkn0wn-root/txncache/internal/util"
	"github.com/unkn0wn-root/txncache/internal/wire"
)

// Store is a minimal byte store with TTLs. Implementations must be safe for
// concurrent use and byte-for-byte transparent: Get must return exactly the
// []byte previously passed to Set for the same key.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, cost int64, ttl time.Duration) (ok bool, err error)
	Del(ctx context.Context, key string) error
	Close(ctx context.Context) error
}

// Mirror observes a committed revision. Implementations must not block the
// caller's commit path for long; use Async to fan out onto a worker pool.
type Mirror interface {
	Observe(ctx context.Context, namespace, key string, revision uint64, payload []byte)
	Close(ctx context.Context) error
}

// BulkItem is one (key, revision, payload) triple in a bulk export.
type BulkItem struct {
	Key      string
	Revision uint64
	Payload  []byte
}

// BulkObserver is an optional capability a Mirror may implement to accept a
// whole snapshot as a single store write instead of one Observe call per
// key. Callers should type-assert for it and fall back to per-key Observe
// when a Mirror doesn't implement it.
type BulkObserver interface {
	ObserveBulk(ctx context.Context, namespace string, items []BulkItem)
}

// Sink is a Mirror backed by a Store. Namespace and key are joined into a
// single store key; the payload is wrapped in internal/wire framing before
// being handed to the store.
type Sink struct {
	store Store
	ttl   time.Duration
}

var _ Mirror = (*Sink)(nil)
var _ BulkObserver = (*Sink)(nil)

// New builds a Sink. ttl <= 0 means entries never expire (where the
// underlying Store honors that).
func New(store Store, ttl time.Duration) *Sink {
	return &Sink{store: store, ttl: ttl}
}

func (s *Sink) storeKey(namespace, key string) string {
	return namespace + ":" + key
}

// Observe frames (revision, payload) with internal/wire and writes it to the
// backing store. Errors are swallowed: a mirror miss never affects the
// cache's own consistency, and Sink has no Hooks of its own to report
// through - callers that want visibility should wrap Sink in one that logs.
func (s *Sink) Observe(ctx context.Context, namespace, key string, revision uint64, payload []byte) {
	framed := wire.EncodeSingle(revision, payload)
	_, _ = s.store.Set(ctx, s.storeKey(namespace, key), framed, int64(len(framed)), s.ttl)
}

// ObserveBulk frames every item with internal/wire's bulk format and writes
// them as one entry keyed by a hash of the namespace and every member key,
// so a full-snapshot mirror (see Cache.MirrorSnapshot) costs one store
// round-trip instead of one per key. Errors are swallowed for the same
// reason Observe swallows them.
func (s *Sink) ObserveBulk(ctx context.Context, namespace string, items []BulkItem) {
	if len(items) == 0 {
		return
	}
	keys := make([]string, len(items))
	wireItems := make([]wire.BulkItem, len(items))
	for i, it := range items {
		keys[i] = it.Key
		wireItems[i] = wire.BulkItem{Key: it.Key, Revision: it.Revision, Payload: it.Payload}
	}
	framed, err := wire.EncodeBulk(wireItems)
	if err != nil {
		// a key that fails wire's own length constraints: nothing sane to
		// retry here, same treatment as any other mirror-write failure.
		return
	}
	storeKey := util.BulkKey(namespace, keys)
	_, _ = s.store.Set(ctx, storeKey, framed, int64(len(framed)), s.ttl)
}

func (s *Sink) Close(ctx context.Context) error { return s.store.Close(ctx) }
