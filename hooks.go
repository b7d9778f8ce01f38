package branchsync

import "time"

// Hooks are lightweight callbacks for high-signal events. Implementations
// MUST be cheap and non-blocking; the syncer calls them on hot paths. Wrap
// with hooks/async to decouple slow sinks.
type Hooks interface {
	// A feed listener was established / torn down for a partition.
	FeedStarted(collection, branch string)
	FeedStopped(collection, branch string)

	// A completed fetch was discarded because a newer one had been issued
	// (last-issued-wins fencing).
	FetchDiscarded(collection, branch string, gen, latest uint64)

	// A fetch or listener failure scheduled a retry.
	RetryScheduled(collection, branch string, attempt int, delay time.Duration)

	// The retry cap was hit; the partition stays in StateError until
	// ForceRefresh.
	RetriesExhausted(collection, branch string, attempts int, err error)

	// A detached partition's item list was parked in / restored from the
	// retention store.
	SnapshotRetained(collection, branch string, items int)
	SnapshotRestored(collection, branch string, items int)

	// A retained snapshot was corrupt or undecodable and got deleted.
	// reason ∈ {"corrupt", "item_decode"}
	SnapshotSelfHeal(collection, branch, reason string)

	// A snapshot-feed frame could not be applied directly and degraded to
	// a full fetch. reason ∈ {"no_codec", "item_decode"}
	DecodeFallback(collection, branch, reason string)
}

// NopHooks is the default no-op
type NopHooks struct{}

func (NopHooks) FeedStarted(string, string)                     {}
func (NopHooks) FeedStopped(string, string)                     {}
func (NopHooks) FetchDiscarded(string, string, uint64, uint64)  {}
func (NopHooks) RetryScheduled(string, string, int, time.Duration) {
}
func (NopHooks) RetriesExhausted(string, string, int, error) {}
func (NopHooks) SnapshotRetained(string, string, int)        {}
func (NopHooks) SnapshotRestored(string, string, int)        {}
func (NopHooks) SnapshotSelfHeal(string, string, string)     {}
func (NopHooks) DecodeFallback(string, string, string)       {}
