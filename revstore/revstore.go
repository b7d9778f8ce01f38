package revstore

import (
	"context"
	"time"
)

// Store issues monotonically increasing revisions per feed channel. Snapshot
// publishers stamp every frame with Next; listeners drop frames whose revision
// is not newer than the last one they applied, so transport reordering cannot
// regress a cache.
//
// Use Local (default) for a single publishing process, or Redis when several
// processes publish snapshots for the same channels.
type Store interface {
	// Current returns the last issued revision; missing => 0.
	Current(ctx context.Context, channel string) (uint64, error)
	// Next atomically increments and returns the new revision.
	Next(ctx context.Context, channel string) (uint64, error)
	// Cleanup prunes long-inactive channel metadata if applicable.
	Cleanup(retention time.Duration)
	// Close releases resources (no-op ok).
	Close(context.Context) error
}
