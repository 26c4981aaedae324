package revseq

import (
	"context"
	"sync"
	"time"
)

type localEntry struct {
	n         uint64
	updatedAt time.Time
}

// LocalSequencer keeps revision counters in-process (default). An optional
// cleanup loop prunes counters untouched for longer than retention.
type LocalSequencer struct {
	mu      sync.Mutex
	counts  map[string]localEntry
	ticker  *time.Ticker
	stopCh  chan struct{}
	wg      sync.WaitGroup
	closed  sync.Once
	retain  time.Duration
}

var _ Sequencer = (*LocalSequencer)(nil)

// NewLocal builds a LocalSequencer. If cleanupInterval or retention is <= 0,
// no background sweep runs and counters live as long as the process.
func NewLocal(cleanupInterval, retention time.Duration) *LocalSequencer {
	s := &LocalSequencer{
		counts: make(map[string]localEntry),
		retain: retention,
	}
	if cleanupInterval > 0 && retention > 0 {
		s.ticker = time.NewTicker(cleanupInterval)
		s.stopCh = make(chan struct{})
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			for {
				select {
				case <-s.ticker.C:
					s.cleanup(retention)
				case <-s.stopCh:
					return
				}
			}
		}()
	}
	return s
}

func (s *LocalSequencer) Next(_ context.Context, key string) (uint64, error) {
	now := time.Now()
	s.mu.Lock()
	e := s.counts[key]
	e.n++
	e.updatedAt = now
	s.counts[key] = e
	s.mu.Unlock()
	return e.n, nil
}

func (s *LocalSequencer) cleanup(retention time.Duration) {
	cutoff := time.Now().Add(-retention)
	s.mu.Lock()
	for k, e := range s.counts {
		if !e.updatedAt.IsZero() && e.updatedAt.Before(cutoff) {
			delete(s.counts, k)
		}
	}
	s.mu.Unlock()
}

func (s *LocalSequencer) Close(context.Context) error {
	s.closed.Do(func() {
		if s.stopCh != nil {
			close(s.stopCh)
			if s.ticker != nil {
				s.ticker.Stop()
			}
			s.wg.Wait()
		}
	})
	return nil
}
