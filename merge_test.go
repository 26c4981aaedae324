package txncache

import (
	"reflect"
	"testing"
)

type mergeProfile struct {
	Name string
	Tags map[string]string
}

func newTestCache(t *testing.T) *Cache[string, mergeProfile] {
	t.Helper()
	c, err := New[string, mergeProfile](Options[string, mergeProfile]{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func TestDeepMergeStructFieldsCombine(t *testing.T) {
	c := newTestCache(t)
	txn := c.BeginTransaction()

	current := mergeProfile{Name: "alice", Tags: map[string]string{"a": "1"}}
	incoming := EntityRevision[mergeProfile]{Entity: mergeProfile{Tags: map[string]string{"b": "2"}}}

	merged, ok := DeepMerge[string, mergeProfile]("k", incoming, current, txn)
	if !ok {
		t.Fatalf("expected ok=true")
	}
	if merged.Name != "alice" {
		t.Fatalf("expected Name preserved from current (incoming left it zero), got %q", merged.Name)
	}
	if merged.Tags["a"] != "1" || merged.Tags["b"] != "2" {
		t.Fatalf("expected merged map to contain both keys, got %v", merged.Tags)
	}
}

func TestDeepMergeIsIdempotent(t *testing.T) {
	c := newTestCache(t)
	txn := c.BeginTransaction()

	v := mergeProfile{Name: "bob", Tags: map[string]string{"x": "1"}}
	merged, ok := DeepMerge[string, mergeProfile]("k", EntityRevision[mergeProfile]{Entity: v}, v, txn)
	if !ok {
		t.Fatalf("expected ok=true")
	}
	if !reflect.DeepEqual(merged, v) {
		t.Fatalf("expected deepMerge(x, x) == x, got %+v want %+v", merged, v)
	}
}

func TestDeepMergeReplacesSlicesWholesale(t *testing.T) {
	type withSlice struct {
		Items []int
	}
	target := reflect.ValueOf(withSlice{Items: []int{1, 2, 3}})
	source := reflect.ValueOf(withSlice{Items: []int{9}})

	merged := deepMergeValue(target, source)
	out := merged.Interface().(withSlice)
	if len(out.Items) != 1 || out.Items[0] != 9 {
		t.Fatalf("expected source slice to replace target wholesale, got %v", out.Items)
	}
}

func TestValuesEqualRecoversFromNonComparableInterface(t *testing.T) {
	var a, b any = []int{1, 2}, []int{1, 2}
	if valuesEqual(reflect.ValueOf(&a).Elem(), reflect.ValueOf(&b).Elem()) {
		t.Fatalf("expected valuesEqual to report false instead of panicking on non-comparable dynamic values")
	}
}

func TestRetainAllAppendsLocalRevisions(t *testing.T) {
	c := newTestCache(t)
	txn := c.BeginTransaction()

	if err := txn.Merge("k", EntityRevision[mergeProfile]{Entity: mergeProfile{Name: "x"}, Revision: 1}); err != nil {
		t.Fatalf("Merge: %v", err)
	}

	committing := newCommittingTransaction[string, mergeProfile]()
	RetainAll[string, mergeProfile]("k", committing, txn)

	got := committing.MergedRevisions()["k"]
	if len(got) != 1 || got[0].Revision != 1 {
		t.Fatalf("expected one staged revision with Revision=1, got %+v", got)
	}
}
