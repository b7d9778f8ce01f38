package branchsync

import "time"

// Entry is one partition's cached view. It always reflects the most recently
// completed-and-accepted fetch; callbacks never observe a partially written
// list.
//
// Items is shared between the cache and every callback; callers must treat it
// as read-only.
type Entry[V any] struct {
	// Items is the last accepted item list, in the order the query
	// returned it. Nil until a fetch (or a restored snapshot) lands.
	Items []V

	// LastFetchedAt is when the list was accepted. For an entry restored
	// from the retention store it is the original fetch time, which is why
	// Loading stays true until a fresh fetch confirms it.
	LastFetchedAt time.Time

	// Loading is true while no up-to-date fetch has completed for the
	// current activation: before the first result, and while serving a
	// restored (stale) snapshot.
	Loading bool

	// Err holds the most recent fetch or listener error. Subscribers keep
	// the last good Items alongside it; errors are data here, never
	// panics into callbacks.
	Err error
}
