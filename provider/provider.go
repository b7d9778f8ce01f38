// Package provider defines the byte store the syncer uses to retain detached
// partition snapshots across unsubscribe/resubscribe cycles.
//
// Implementations MUST be byte-for-byte transparent: Get must return exactly
// the []byte previously passed to Set for a key. Internal transforms (e.g.
// compression) must be fully reversed before Get returns.
//
// The keyspace "snap:<ns>:" is owned by the syncer. Foreign writes under it
// may be treated as corruption by strict frame validation and deleted.
package provider

import (
	"context"
	"time"
)

// Provider is a minimal byte store with TTLs. Must be safe for concurrent use.
type Provider interface {
	// Get returns (value, true, nil) on hit; (nil, false, nil) on miss.
	// IO/remote errors return (nil, false, err).
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores value with the given TTL. Returns ok=false when the store
	// rejected the write under pressure; rejection is not an error here,
	// since a dropped retained snapshot only costs a cold start later.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) (ok bool, err error)

	// Del removes a key (best-effort).
	Del(ctx context.Context, key string) error

	// Close releases resources.
	Close(ctx context.Context) error
}
