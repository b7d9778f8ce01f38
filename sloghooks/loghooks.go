package sloghooks

import (
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/unkn0wn-root/branchsync"
)

type Options struct {
	// Sampling to avoid floods on busy partitions; 0/1 = log all.
	FetchDiscardEvery uint64
	RetryEvery        uint64
}

// Hooks logs syncer events through slog. Discard and retry events sample;
// everything else is rare enough to log unconditionally.
type Hooks struct {
	l    *slog.Logger
	opts Options

	discardCtr atomic.Uint64
	retryCtr   atomic.Uint64
}

var _ branchsync.Hooks = (*Hooks)(nil)

func New(l *slog.Logger, opts Options) *Hooks {
	return &Hooks{l: l, opts: opts}
}

func sample(n uint64, ctr *atomic.Uint64) bool {
	if n == 0 || n == 1 {
		return true
	}
	return ctr.Add(1)%n == 0
}

func (h *Hooks) FeedStarted(collection, branch string) {
	if h.l == nil {
		return
	}
	h.l.Debug("branchsync.feed_started", "collection", collection, "branch", branch)
}

func (h *Hooks) FeedStopped(collection, branch string) {
	if h.l == nil {
		return
	}
	h.l.Debug("branchsync.feed_stopped", "collection", collection, "branch", branch)
}

func (h *Hooks) FetchDiscarded(collection, branch string, gen, latest uint64) {
	if h.l == nil || !sample(h.opts.FetchDiscardEvery, &h.discardCtr) {
		return
	}
	h.l.Debug("branchsync.fetch_discarded",
		"collection", collection,
		"branch", branch,
		"gen", gen,
		"latest", latest)
}

func (h *Hooks) RetryScheduled(collection, branch string, attempt int, delay time.Duration) {
	if h.l == nil || !sample(h.opts.RetryEvery, &h.retryCtr) {
		return
	}
	h.l.Info("branchsync.retry_scheduled",
		"collection", collection,
		"branch", branch,
		"attempt", attempt,
		"delay", delay)
}

func (h *Hooks) RetriesExhausted(collection, branch string, attempts int, err error) {
	if h.l == nil {
		return
	}
	h.l.Error("branchsync.retries_exhausted",
		"collection", collection,
		"branch", branch,
		"attempts", attempts,
		"err", err)
}

func (h *Hooks) SnapshotRetained(collection, branch string, items int) {
	if h.l == nil {
		return
	}
	h.l.Debug("branchsync.snapshot_retained",
		"collection", collection,
		"branch", branch,
		"items", items)
}

func (h *Hooks) SnapshotRestored(collection, branch string, items int) {
	if h.l == nil {
		return
	}
	h.l.Debug("branchsync.snapshot_restored",
		"collection", collection,
		"branch", branch,
		"items", items)
}

func (h *Hooks) SnapshotSelfHeal(collection, branch, reason string) {
	if h.l == nil {
		return
	}
	h.l.Warn("branchsync.snapshot_self_heal",
		"collection", collection,
		"branch", branch,
		"reason", reason)
}

func (h *Hooks) DecodeFallback(collection, branch, reason string) {
	if h.l == nil {
		return
	}
	h.l.Warn("branchsync.decode_fallback",
		"collection", collection,
		"branch", branch,
		"reason", reason)
}
