// Package revseq abstracts where per-key revision numbers live: a source of
// the monotonically increasing revision numbers a commit assigns to a key.
// Use LocalSequencer (the default) for in-process numbering, or the redis
// subpackage for numbering shared across cache instances.
package revseq

import "context"

// Sequencer hands out per-key monotonic revision numbers.
type Sequencer interface {
	// Next returns the next revision number for key (1 on first call).
	Next(ctx context.Context, key string) (uint64, error)
	// Close releases resources (no-op ok).
	Close(ctx context.Context) error
}
