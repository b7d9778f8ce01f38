// usage:
//
// import (
//
//	"log/slog"
//
//	"github.com/unkn0wn-root/branchsync"
//	"github.com/unkn0wn-root/branchsync/hooks/async"
//	"github.com/unkn0wn-root/branchsync/sloghooks"
//
// )
//
//	raw := sloghooks.New(slog.Default(), sloghooks.Options{
//	    FetchDiscardEvery: 10, // sample logs: ~every 10th discard
//	    RetryEvery:        1,  // log every scheduled retry
//	})
//
// hooks := asynchook.New(raw, 1, 1000) // 1 worker; queue 1000 events
// defer hooks.Close()
//
//	sy, _ := branchsync.New[Order](branchsync.Options[Order]{
//	    ...
//	    Hooks: hooks, // or `raw` if you don't want async
//	})
package asynchook

import (
	"sync"
	"time"

	"github.com/unkn0wn-root/branchsync"
)

// Hooks decouples slow hook sinks from the syncer's hot paths: events are
// queued to worker goroutines and dropped when the queue is full.
type Hooks struct {
	inner branchsync.Hooks
	q     chan func()
	wg    sync.WaitGroup
	once  sync.Once
}

var _ branchsync.Hooks = (*Hooks)(nil)

func New(inner branchsync.Hooks, workers, qlen int) *Hooks {
	if workers <= 0 {
		workers = 1
	}
	if qlen <= 0 {
		qlen = 1024
	}

	h := &Hooks{inner: inner, q: make(chan func(), qlen)}
	h.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer h.wg.Done()
			for f := range h.q {
				f()
			}
		}()
	}
	return h
}

func (h *Hooks) Close() {
	h.once.Do(func() {
		close(h.q)
		h.wg.Wait()
	})
}

func (h *Hooks) try(f func()) {
	select {
	case h.q <- f:
	default: // drop
	}
}

func (h *Hooks) FeedStarted(c, b string) { h.try(func() { h.inner.FeedStarted(c, b) }) }
func (h *Hooks) FeedStopped(c, b string) { h.try(func() { h.inner.FeedStopped(c, b) }) }
func (h *Hooks) FetchDiscarded(c, b string, gen, latest uint64) {
	h.try(func() { h.inner.FetchDiscarded(c, b, gen, latest) })
}
func (h *Hooks) RetryScheduled(c, b string, attempt int, delay time.Duration) {
	h.try(func() { h.inner.RetryScheduled(c, b, attempt, delay) })
}
func (h *Hooks) RetriesExhausted(c, b string, attempts int, err error) {
	h.try(func() { h.inner.RetriesExhausted(c, b, attempts, err) })
}
func (h *Hooks) SnapshotRetained(c, b string, n int) {
	h.try(func() { h.inner.SnapshotRetained(c, b, n) })
}
func (h *Hooks) SnapshotRestored(c, b string, n int) {
	h.try(func() { h.inner.SnapshotRestored(c, b, n) })
}
func (h *Hooks) SnapshotSelfHeal(c, b, reason string) {
	h.try(func() { h.inner.SnapshotSelfHeal(c, b, reason) })
}
func (h *Hooks) DecodeFallback(c, b, reason string) {
	h.try(func() { h.inner.DecodeFallback(c, b, reason) })
}
