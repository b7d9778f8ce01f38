// Package feed defines the change-notification contract the syncer listens on.
//
// Backends come in two capability variants, both exposed through the one
// Feed interface:
//
//   - Snapshot variant: the backend pushes a complete, already-filtered,
//     already-joined item list on every change. Delivered via OnSnapshot;
//     no follow-up query is needed.
//   - Signal variant: the backend only announces that some row in scope
//     changed. Delivered via OnSignal; the consumer must re-query.
//
// Feeds are best-effort invalidation streams, not durable delivery:
// implementations may drop events when subscribers are slow or disconnected.
// The consumer reconciles through its own full fetches.
package feed

import "context"

// Handler receives change notifications for one partition. Implementations
// must be cheap and non-blocking; feeds call them from their receive loops.
type Handler interface {
	// OnSnapshot delivers a complete item list pushed by the backend.
	// Payloads are individually encoded entities; decoding is the
	// consumer's concern.
	OnSnapshot(payloads [][]byte)

	// OnSignal announces that something in scope changed without saying
	// what. The consumer must issue a fresh full query.
	OnSignal()
}

// StopFunc tears down one listener. It must be safe to call once; after it
// returns, the handler is never invoked again. A late handler call after
// stop is a correctness bug in the feed, not a performance nuisance.
type StopFunc func()

// Feed is the change-subscription primitive, polymorphic over the two
// backend variants.
type Feed interface {
	// Listen starts delivering change notifications for one
	// (collection, branch) partition. ctx bounds establishment only;
	// delivery ends when the returned StopFunc is called.
	Listen(ctx context.Context, collection, branch string, h Handler) (StopFunc, error)
}
