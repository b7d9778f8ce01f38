package branchsync

import (
	"context"
	"sync"
	"testing"
	"time"

	c "github.com/unkn0wn-root/branchsync/codec"
	"github.com/unkn0wn-root/branchsync/internal/util"
	"github.com/unkn0wn-root/branchsync/internal/wire"
	pr "github.com/unkn0wn-root/branchsync/provider"
)

type memProvider struct {
	mu   sync.Mutex
	m    map[string][]byte
	sets int
	dels int
}

var _ pr.Provider = (*memProvider)(nil)

func newMemProvider() *memProvider {
	return &memProvider{m: make(map[string][]byte)}
}

func (p *memProvider) Get(_ context.Context, key string) ([]byte, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	b, ok := p.m[key]
	return b, ok, nil
}

func (p *memProvider) Set(_ context.Context, key string, value []byte, _ time.Duration) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.m[key] = append([]byte(nil), value...)
	p.sets++
	return true, nil
}

func (p *memProvider) Del(_ context.Context, key string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.m, key)
	p.dels++
	return nil
}

func (p *memProvider) Close(context.Context) error { return nil }

func (p *memProvider) has(key string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.m[key]
	return ok
}

func (p *memProvider) seed(key string, value []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.m[key] = value
}

type logLine struct {
	msg    string
	fields Fields
}

type recLogger struct {
	mu    sync.Mutex
	lines []logLine
}

var _ Logger = (*recLogger)(nil)

func (l *recLogger) record(msg string, f Fields) {
	l.mu.Lock()
	l.lines = append(l.lines, logLine{msg: msg, fields: f})
	l.mu.Unlock()
}

func (l *recLogger) Debug(msg string, f Fields) { l.record(msg, f) }
func (l *recLogger) Info(msg string, f Fields)  { l.record(msg, f) }
func (l *recLogger) Warn(msg string, f Fields)  { l.record(msg, f) }
func (l *recLogger) Error(msg string, f Fields) { l.record(msg, f) }

func (l *recLogger) find(msg string) (Fields, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, ln := range l.lines {
		if ln.msg == msg {
			return ln.fields, true
		}
	}
	return nil, false
}

func TestRetentionParkAndRestore(t *testing.T) {
	ff := newFakeFetch()
	feed := newFakeFeed()
	hooks := newRecHooks()
	store := newMemProvider()
	logs := &recLogger{}
	ff.set("orders", "branchA", order{ID: "o1", Branch: "branchA", Total: 11})
	sy := newTestSyncer(t, ff, feed, func(o *Options[order]) {
		o.Codec = c.JSON[order]{}
		o.Retention = store
		o.Hooks = hooks
		o.Logger = logs
	})
	snapKey := util.SnapshotKey("pos:test", "orders", "branchA")

	rec1 := &recorder{}
	unsub, err := sy.Subscribe("orders", "branchA", rec1.cb)
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	waitSettled(t, rec1)
	fetchedAt := rec1.last().LastFetchedAt

	// last unsubscribe parks the list
	unsub()
	waitFor(t, "snapshot parked", func() bool { return store.has(snapKey) })
	if n := hooks.count(func(h *recHooks) int { return h.retained }); n != 1 {
		t.Fatalf("SnapshotRetained = %d, want 1", n)
	}

	// reattach with the fetch held open so the restore is observable
	manual := make(chan *fetchCall, 16)
	ff.setManual(manual)

	rec2 := &recorder{}
	if _, err := sy.Subscribe("orders", "branchA", rec2.cb); err != nil {
		t.Fatalf("resubscribe: %v", err)
	}
	waitFor(t, "restored entry delivered", func() bool { return rec2.len() >= 2 })

	// delivery 0: empty loading entry; delivery 1: the restored stale list
	if got := rec2.at(0); got.Items != nil || !got.Loading {
		t.Fatalf("first delivery = %+v, want empty loading entry", got)
	}
	restored := rec2.at(1)
	if len(restored.Items) != 1 || restored.Items[0].ID != "o1" {
		t.Fatalf("restored items = %+v, want [o1]", restored.Items)
	}
	if !restored.Loading {
		t.Fatalf("restored entry must stay Loading until a fresh fetch lands")
	}
	if restored.LastFetchedAt.UnixNano() != fetchedAt.UnixNano() {
		t.Fatalf("restored LastFetchedAt = %v, want original %v", restored.LastFetchedAt, fetchedAt)
	}
	if n := hooks.count(func(h *recHooks) int { return h.restored }); n != 1 {
		t.Fatalf("SnapshotRestored = %d, want 1", n)
	}
	// the restore log reports the generation the frame was parked with
	fields, ok := logs.find("retained snapshot restored")
	if !ok {
		t.Fatalf("restore was not logged")
	}
	if g, _ := fields["gen"].(uint64); g != 1 {
		t.Fatalf("restore log gen = %v, want 1", fields["gen"])
	}

	// the authoritative fetch then replaces the stale list
	call := <-manual
	call.respond <- fetchResult{items: []order{{ID: "o1", Branch: "branchA", Total: 12}}}
	waitFor(t, "fresh fetch applied", func() bool {
		e := rec2.last()
		return !e.Loading && len(e.Items) == 1 && e.Items[0].Total == 12
	})
}

func TestRetentionSkipsErroredEntry(t *testing.T) {
	ff := newFakeFetch()
	feed := newFakeFeed()
	hooks := newRecHooks()
	store := newMemProvider()
	manual := make(chan *fetchCall, 16)
	ff.setManual(manual)
	sy := newTestSyncer(t, ff, feed, func(o *Options[order]) {
		o.Codec = c.JSON[order]{}
		o.Retention = store
		o.Hooks = hooks
		o.MaxRetries = -1
	})

	rec := &recorder{}
	unsub, err := sy.Subscribe("orders", "branchA", rec.cb)
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	// a good fetch lands, then a failing refresh taints the entry
	(<-manual).respond <- fetchResult{items: []order{{ID: "o1", Branch: "branchA", Total: 1}}}
	waitSettled(t, rec)

	go sy.NotifyMutated("orders", "branchA")
	(<-manual).respond <- fetchResult{err: context.DeadlineExceeded}
	waitFor(t, "entry carries the error", func() bool { return rec.last().Err != nil })

	// an errored view is not worth keeping
	unsub()
	time.Sleep(20 * time.Millisecond)
	if store.has(util.SnapshotKey("pos:test", "orders", "branchA")) {
		t.Fatalf("errored entry was parked")
	}
	if n := hooks.count(func(h *recHooks) int { return h.retained }); n != 0 {
		t.Fatalf("SnapshotRetained = %d, want 0", n)
	}
}

func TestRetentionSelfHeal(t *testing.T) {
	cases := []struct {
		name   string
		frame  []byte
		reason string
	}{
		{"corrupt_frame", []byte("definitely not a frame"), "corrupt"},
		{"undecodable_item", wire.EncodeRetained(3, time.Now().UnixNano(), [][]byte{[]byte("not json")}), "item_decode"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ff := newFakeFetch()
			feed := newFakeFeed()
			hooks := newRecHooks()
			store := newMemProvider()
			ff.set("orders", "branchA", order{ID: "o1", Branch: "branchA", Total: 1})
			sy := newTestSyncer(t, ff, feed, func(o *Options[order]) {
				o.Codec = c.JSON[order]{}
				o.Retention = store
				o.Hooks = hooks
			})
			snapKey := util.SnapshotKey("pos:test", "orders", "branchA")
			store.seed(snapKey, tc.frame)

			rec := &recorder{}
			if _, err := sy.Subscribe("orders", "branchA", rec.cb); err != nil {
				t.Fatalf("Subscribe: %v", err)
			}
			waitSettled(t, rec)

			if store.has(snapKey) {
				t.Fatalf("bad snapshot was not deleted")
			}
			if n := hooks.count(func(h *recHooks) int { return h.selfHeal[tc.reason] }); n != 1 {
				t.Fatalf("SnapshotSelfHeal[%s] = %d, want 1", tc.reason, n)
			}
			if n := hooks.count(func(h *recHooks) int { return h.restored }); n != 0 {
				t.Fatalf("bad snapshot must not restore, SnapshotRestored = %d", n)
			}
			// no intermediate delivery ever carried the bad payload
			for i := 0; i < rec.len(); i++ {
				if e := rec.at(i); e.Loading && len(e.Items) > 0 {
					t.Fatalf("stale items delivered from a bad snapshot: %+v", e.Items)
				}
			}
		})
	}
}
