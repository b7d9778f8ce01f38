package branchsync

import (
	"context"
	"time"

	c "github.com/unkn0wn-root/branchsync/codec"
	fd "github.com/unkn0wn-root/branchsync/feed"
	pr "github.com/unkn0wn-root/branchsync/provider"
)

// FetchFunc runs the full, already-joined query for one partition against the
// remote store. It is the external read collaborator; the syncer never
// interprets filters or joins itself.
type FetchFunc[V any] func(ctx context.Context, collection, branch string) ([]V, error)

// Syncer keeps per-partition item lists consistent with the remote store and
// broadcasts every accepted list to the partition's subscribers.
//
// Callbacks run synchronously on the goroutine that produced the update and
// under the partition's lock: they must be fast and must not call back into
// the Syncer.
type Syncer[V any] interface {
	// Subscribe registers cb for (collection, branch). The callback is
	// delivered the current (possibly empty or stale) entry immediately,
	// then again on every accepted update. The first subscriber of a
	// partition starts its feed listener and issues a fetch. The returned
	// unsubscribe func is idempotent; the last one stops the listener.
	Subscribe(collection, branch string, cb func(Entry[V])) (func(), error)

	// NotifyMutated forces an immediate fetch-and-broadcast cycle for a
	// partition, equivalent to a synthetic change notification. With zero
	// subscribers it is a no-op: nothing to refresh, nothing listening.
	// The write path calls it right after a confirmed create/update/delete
	// so the writer's own view never waits on notification latency.
	NotifyMutated(collection, branch string)

	// NotifyMutatedByEntity is NotifyMutated for call sites that only know
	// the entity id (e.g. delete by id). The owning branch is resolved
	// through the ownership index; an unknown id is a safe no-op.
	NotifyMutatedByEntity(collection, entityID string)

	// ForceRefresh resets a partition's retry/backoff state and issues a
	// fresh fetch. It is the only way out of StateError once the retry cap
	// was hit. No-op with zero subscribers.
	ForceRefresh(collection, branch string)

	// Snapshot returns the partition's current entry, if one exists.
	Snapshot(collection, branch string) (Entry[V], bool)

	// Status reports the partition's lifecycle state; ok=false if the
	// partition was never subscribed.
	Status(collection, branch string) (State, bool)

	// ResolveOwner returns the branch that last returned the entity id.
	ResolveOwner(entityID string) (branch string, ok bool)

	// Close tears down every listener and pending retry, then waits for
	// in-flight work bounded by ctx.
	Close(ctx context.Context) error
}

// Options tune the syncer. Namespace, Collections, Fetch, Feed and EntityID
// are required; the rest have sensible defaults.
type Options[V any] struct {
	// Required
	Namespace   string   // logical namespace for channels and retained snapshots, e.g. "pos:prod"
	Collections []string // collection names subscribers may use; anything else fails fast
	Fetch       FetchFunc[V]
	Feed        fd.Feed
	EntityID    func(V) string // id accessor feeding the ownership index

	// Codec decodes snapshot-feed payloads and (de)serializes retained
	// snapshots. Without one, snapshot-variant frames degrade to signals
	// and retention is disabled.
	Codec c.Codec[V]

	// Retention parks a partition's last item list on last unsubscribe and
	// restores it as a stale entry on the next first subscribe. Nil keeps
	// the entry in memory instead.
	Retention    pr.Provider
	RetentionTTL time.Duration // 0 => 1h

	Logger Logger // nil => NopLogger
	Hooks  Hooks  // nil => NopHooks

	// Retry schedule for listener establishment and fetch failures,
	// applied per partition.
	InitialBackoff time.Duration // 0 => 2s
	MaxBackoff     time.Duration // 0 => 1m
	MaxRetries     int           // 0 => 5; negative => unlimited
}

func New[V any](opts Options[V]) (Syncer[V], error) {
	return newSyncer[V](opts)
}
