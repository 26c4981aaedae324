package txncache

import (
	"context"
	"fmt"
	"time"

	"github.com/unkn0wn-root/txncache/codec"
	"github.com/unkn0wn-root/txncache/revseq"
)

const (
	defaultLRUCapacity    = 10000
	defaultTTL            = 60 * time.Second
	defaultCommitTimeout  = 10 * time.Second
	defaultSequenceSweep  = time.Hour
	defaultSequenceRetain = 30 * 24 * time.Hour
)

// EntityMergeFunc resolves an incoming revision against the current primary
// value for key, returning the entity to install and whether the strategy
// produced a defined result. ok=false surfaces as ErrMergeProducedUndefined.
type EntityMergeFunc[K comparable, V any] func(key K, incoming EntityRevision[V], current V, txn *LiveTransaction[K, V]) (V, bool)

// RevisionMergeFunc decides which revisions a commit actually installs for
// key, by writing into committing via AppendRevisions/ClearRevisions.
type RevisionMergeFunc[K comparable, V any] func(key K, committing *CommittingTransaction[K, V], txn *LiveTransaction[K, V])

// Options configures a Cache[K, V]. Only Codec defaults to a concrete type
// that touches the network or disk never happens - every optional field
// defaults to an in-process, side-effect-free implementation.
type Options[K comparable, V any] struct {
	// Namespace scopes Mirror keys when several Cache instances share one
	// external mirror store. It is only passed through to the Mirror.
	Namespace string

	LRUCapacity   int           // default 10000
	DefaultTTL    time.Duration // default 60s; advisory
	CommitTimeout time.Duration // default 10s, used when ctx carries no deadline

	EntityMergeStrategy   EntityMergeFunc[K, V]
	RevisionMergeStrategy RevisionMergeFunc[K, V]
	CommitHook            func(ctx context.Context, txn *LiveTransaction[K, V], committing *CommittingTransaction[K, V])

	Sequencer revseq.Sequencer // nil => revseq.NewLocal(...)
	Codec     codec.Codec[V]   // nil => codec.JSONCodec[V]{}

	// SequenceRetention/SequenceSweep tune the default LocalSequencer's
	// cleanup loop; ignored if Sequencer is set explicitly.
	SequenceRetention time.Duration
	SequenceSweep     time.Duration

	Logger   Logger
	Hooks    Hooks
	Registry KeyRegistry[K]
	Mirror   Mirror
}

func (o Options[K, V]) withDefaults() Options[K, V] {
	o.LRUCapacity = coalesce(o.LRUCapacity, defaultLRUCapacity)
	o.DefaultTTL = coalesce(o.DefaultTTL, defaultTTL)
	o.CommitTimeout = coalesce(o.CommitTimeout, defaultCommitTimeout)
	o.SequenceRetention = coalesce(o.SequenceRetention, defaultSequenceRetain)
	o.SequenceSweep = coalesce(o.SequenceSweep, defaultSequenceSweep)

	if o.Logger == nil {
		o.Logger = NopLogger{}
	}
	if o.Hooks == nil {
		o.Hooks = NopHooks{}
	}
	if o.Codec == nil {
		o.Codec = codec.JSONCodec[V]{}
	}
	if o.EntityMergeStrategy == nil {
		o.EntityMergeStrategy = DeepMerge[K, V]
	}
	if o.RevisionMergeStrategy == nil {
		o.RevisionMergeStrategy = RetainAll[K, V]
	}
	return o
}

func (o Options[K, V]) validate() error {
	if o.LRUCapacity < 0 {
		return fmt.Errorf("txncache: LRUCapacity must be >= 0")
	}
	return nil
}
