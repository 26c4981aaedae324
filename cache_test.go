package txncache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/unkn0wn-root/txncache/internal/wire"
	"github.com/unkn0wn-root/txncache/mirror"
)

type memStore struct {
	m map[string][]byte
}

var _ mirror.Store = (*memStore)(nil)

func newMemStore() *memStore { return &memStore{m: make(map[string][]byte)} }

func (s *memStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := s.m[key]
	return v, ok, nil
}
func (s *memStore) Set(_ context.Context, key string, value []byte, _ int64, _ time.Duration) (bool, error) {
	s.m[key] = value
	return true, nil
}
func (s *memStore) Del(_ context.Context, key string) error { delete(s.m, key); return nil }
func (s *memStore) Close(context.Context) error             { return nil }

func TestSaveLoadRoundTrip(t *testing.T) {
	c := newTestCache(t)
	txn := c.BeginTransaction()
	txn.Set("a", mergeProfile{Name: "alice"})
	txn.Set("b", mergeProfile{Name: "bob"})
	if err := txn.Commit(context.Background()); err != nil {
		t.Fatalf("commit: %v", err)
	}

	saved, err := c.Save()
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if len(saved) != 2 {
		t.Fatalf("expected 2 saved entries, got %d", len(saved))
	}

	fresh := newTestCache(t)
	if err := fresh.Load(saved); err != nil {
		t.Fatalf("Load: %v", err)
	}
	got, ok := fresh.Get("a")
	if !ok || got.Name != "alice" {
		t.Fatalf("expected loaded entry a=alice, got %+v ok=%v", got, ok)
	}
}

func TestClearEmptiesEverything(t *testing.T) {
	c := newTestCache(t)
	txn := c.BeginTransaction()
	txn.Set("a", mergeProfile{Name: "alice"})
	if err := txn.Commit(context.Background()); err != nil {
		t.Fatalf("commit: %v", err)
	}
	c.Clear()

	if _, ok := c.Get("a"); ok {
		t.Fatalf("expected empty cache after Clear")
	}
	if revs := c.EntryRevisions("a"); revs != nil {
		t.Fatalf("expected no revision history after Clear, got %v", revs)
	}
}

func TestKeysAndValuesIterateCommittedEntries(t *testing.T) {
	c := newTestCache(t)
	txn := c.BeginTransaction()
	txn.Set("a", mergeProfile{Name: "alice"})
	txn.Set("b", mergeProfile{Name: "bob"})
	if err := txn.Commit(context.Background()); err != nil {
		t.Fatalf("commit: %v", err)
	}

	keys := map[string]bool{}
	if err := c.Keys(func(k string) bool { keys[k] = true; return true }); err != nil {
		t.Fatalf("Keys: %v", err)
	}
	if !keys["a"] || !keys["b"] {
		t.Fatalf("expected both keys, got %v", keys)
	}

	names := map[string]bool{}
	if err := c.Values(func(v mergeProfile) bool { names[v.Name] = true; return true }); err != nil {
		t.Fatalf("Values: %v", err)
	}
	if !names["alice"] || !names["bob"] {
		t.Fatalf("expected both values, got %v", names)
	}
}

func TestMirrorObservesEachCommittedRevision(t *testing.T) {
	store := newMemStore()
	c, err := New[string, mergeProfile](Options[string, mergeProfile]{
		Namespace: "profiles",
		Mirror:    mirror.New(store, time.Minute),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	txn := c.BeginTransaction()
	txn.Set("a", mergeProfile{Name: "alice"})
	if err := txn.Commit(context.Background()); err != nil {
		t.Fatalf("commit: %v", err)
	}

	raw, ok := store.m["profiles:a"]
	if !ok {
		t.Fatalf("expected mirror store to have an entry for profiles:a")
	}
	gen, payload, err := wire.DecodeSingle(raw)
	if err != nil {
		t.Fatalf("DecodeSingle: %v", err)
	}
	if gen != 1 {
		t.Fatalf("expected mirrored revision 1, got %d", gen)
	}
	if len(payload) == 0 {
		t.Fatalf("expected non-empty mirrored payload")
	}
}

func TestMultipleTransactionsMergeIntoSameKey(t *testing.T) {
	c := newTestCache(t)

	txn1 := c.BeginTransaction()
	txn1.Set("a", mergeProfile{Name: "alice", Tags: map[string]string{"role": "admin"}})
	if err := txn1.Commit(context.Background()); err != nil {
		t.Fatalf("commit1: %v", err)
	}

	txn2 := c.BeginTransaction()
	if err := txn2.Merge("a", EntityRevision[mergeProfile]{Entity: mergeProfile{Tags: map[string]string{"team": "infra"}}}); err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if err := txn2.Commit(context.Background()); err != nil {
		t.Fatalf("commit2: %v", err)
	}

	got, ok := c.Get("a")
	if !ok {
		t.Fatalf("expected entry present")
	}
	if got.Name != "alice" {
		t.Fatalf("expected Name preserved across merges, got %q", got.Name)
	}
	if got.Tags["role"] != "admin" || got.Tags["team"] != "infra" {
		t.Fatalf("expected merged tags from both commits, got %v", got.Tags)
	}

	revs := c.EntryRevisions("a")
	if len(revs) != 2 {
		t.Fatalf("expected 2 revisions across the two commits, got %d", len(revs))
	}
}

func TestLRUEvictionRetainsMostRecentlyInstalledKey(t *testing.T) {
	c, err := New[string, mergeProfile](Options[string, mergeProfile]{LRUCapacity: 1})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	txn1 := c.BeginTransaction()
	txn1.Set("a", mergeProfile{Name: "alice"})
	if err := txn1.Commit(context.Background()); err != nil {
		t.Fatalf("commit1: %v", err)
	}

	txn2 := c.BeginTransaction()
	txn2.Set("b", mergeProfile{Name: "bob"})
	if err := txn2.Commit(context.Background()); err != nil {
		t.Fatalf("commit2: %v", err)
	}

	if _, ok := c.Get("b"); !ok {
		t.Fatalf("expected b (last installed) still resolvable")
	}
}

func TestKeyRegistryDescribesKeysForHooks(t *testing.T) {
	var lastKey string
	c, err := New[string, mergeProfile](Options[string, mergeProfile]{
		Registry: stubRegistry{},
		Hooks:    &recordingHooks{onRevision: func(key string, _ uint64) { lastKey = key }},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	txn := c.BeginTransaction()
	txn.Set("a", mergeProfile{Name: "alice"})
	if err := txn.Commit(context.Background()); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if lastKey != "described:a" {
		t.Fatalf("expected hook to receive registry-described key, got %q", lastKey)
	}
}

type stubRegistry struct{}

func (stubRegistry) Describe(key string) string { return "described:" + key }

type recordingHooks struct {
	NopHooks
	onRevision func(key string, revision uint64)
}

func (h *recordingHooks) RevisionAppended(key string, revision uint64) {
	if h.onRevision != nil {
		h.onRevision(key, revision)
	}
}

func TestCloseReleasesSequencerAndMirror(t *testing.T) {
	store := newMemStore()
	c, err := New[string, mergeProfile](Options[string, mergeProfile]{
		Mirror: mirror.New(store, time.Minute),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := c.Close(context.Background()); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestMirrorSnapshotWritesOneBulkEntry(t *testing.T) {
	store := newMemStore()
	c, err := New[string, mergeProfile](Options[string, mergeProfile]{
		Namespace: "profiles",
		Mirror:    mirror.New(store, time.Minute),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	txn := c.BeginTransaction()
	txn.Set("a", mergeProfile{Name: "alice"})
	txn.Set("b", mergeProfile{Name: "bob"})
	if err := txn.Commit(context.Background()); err != nil {
		t.Fatalf("commit: %v", err)
	}

	// per-key commit mirroring already wrote two single entries; clear those
	// so we can tell the bulk write apart from them.
	store.m = make(map[string][]byte)

	if err := c.MirrorSnapshot(context.Background()); err != nil {
		t.Fatalf("MirrorSnapshot: %v", err)
	}
	if len(store.m) != 1 {
		t.Fatalf("expected exactly one bulk entry in the mirror store, got %d", len(store.m))
	}
	for _, raw := range store.m {
		items, err := wire.DecodeBulk(raw)
		if err != nil {
			t.Fatalf("DecodeBulk: %v", err)
		}
		if len(items) != 2 {
			t.Fatalf("expected 2 items in the bulk entry, got %d", len(items))
		}
	}
}

func TestMirrorSnapshotNoopWithoutMirror(t *testing.T) {
	c := newTestCache(t)
	if err := c.MirrorSnapshot(context.Background()); err != nil {
		t.Fatalf("expected nil error with no Mirror configured, got %v", err)
	}
}

func TestLoadFailsOnUnclonableValue(t *testing.T) {
	c, err := New[string, string](Options[string, string]{
		Codec: failCodec{encodeErr: errors.New("boom")},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	err = c.Load([]SavedEntry[string, string]{{Key: "a", Value: "v"}})
	if err == nil {
		t.Fatalf("expected Load to fail with an unclonable codec")
	}
	var ce *CloneError
	if !errors.As(err, &ce) {
		t.Fatalf("expected *CloneError, got %v", err)
	}
}
