// Package redis provides a Redis-backed revseq.Sequencer for hosts running
// several cache instances in front of the same dataset that want revision
// numbers for a given key to stay comparable across instances. It never
// feeds back into merge decisions - it only numbers the revisions a local
// instance has already decided to install.
//
// Same counting shape as LocalSequencer, backed by Redis INCR, with the same
// optional TTL to bound unbounded key growth.
package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/unkn0wn-root/txncache/revseq"
)

// Sequencer is a Redis-backed revseq.Sequencer.
type Sequencer struct {
	rdb redis.UniversalClient
	ns  string
	ttl time.Duration
}

var _ revseq.Sequencer = (*Sequencer)(nil)

// New builds a Sequencer without key expiry.
func New(client redis.UniversalClient, namespace string) *Sequencer {
	return &Sequencer{rdb: client, ns: namespace}
}

// NewWithTTL builds a Sequencer whose counter keys expire after ttl of
// inactivity. If ttl <= 0, keys do not expire.
func NewWithTTL(client redis.UniversalClient, namespace string, ttl time.Duration) *Sequencer {
	return &Sequencer{rdb: client, ns: namespace, ttl: ttl}
}

func (s *Sequencer) key(k string) string { return "revseq:" + s.ns + ":" + k }

// Next atomically increments and returns the counter for key, pipelining the
// TTL refresh with the increment when a TTL is configured so both round-trip
// in a single call.
func (s *Sequencer) Next(ctx context.Context, key string) (uint64, error) {
	k := s.key(key)
	if s.ttl <= 0 {
		v, err := s.rdb.Incr(ctx, k).Result()
		if err != nil {
			return 0, err
		}
		return uint64(v), nil
	}

	var incr *redis.IntCmd
	_, err := s.rdb.Pipelined(ctx, func(p redis.Pipeliner) error {
		incr = p.Incr(ctx, k)
		p.Expire(ctx, k, s.ttl)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return uint64(incr.Val()), nil
}

// Close closes the underlying Redis client.
func (s *Sequencer) Close(context.Context) error { return s.rdb.Close() }
