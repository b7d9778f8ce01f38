package local

import (
	"context"
	"sync"
	"testing"

	"github.com/unkn0wn-root/branchsync/feed"
)

type recHandler struct {
	mu        sync.Mutex
	signals   int
	snapshots [][][]byte
}

var _ feed.Handler = (*recHandler)(nil)

func (h *recHandler) OnSignal() {
	h.mu.Lock()
	h.signals++
	h.mu.Unlock()
}

func (h *recHandler) OnSnapshot(payloads [][]byte) {
	h.mu.Lock()
	h.snapshots = append(h.snapshots, payloads)
	h.mu.Unlock()
}

func (h *recHandler) counts() (signals, snapshots int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.signals, len(h.snapshots)
}

func TestFanOutPerChannel(t *testing.T) {
	f := New()
	ctx := context.Background()

	a1, a2, b := &recHandler{}, &recHandler{}, &recHandler{}
	if _, err := f.Listen(ctx, "orders", "branchA", a1); err != nil {
		t.Fatalf("Listen: %v", err)
	}
	if _, err := f.Listen(ctx, "orders", "branchA", a2); err != nil {
		t.Fatalf("Listen: %v", err)
	}
	if _, err := f.Listen(ctx, "orders", "branchB", b); err != nil {
		t.Fatalf("Listen: %v", err)
	}

	f.Signal("orders", "branchA")
	f.Signal("orders", "branchA")

	if s, _ := a1.counts(); s != 2 {
		t.Fatalf("a1 signals = %d, want 2", s)
	}
	if s, _ := a2.counts(); s != 2 {
		t.Fatalf("a2 signals = %d, want 2", s)
	}
	if s, _ := b.counts(); s != 0 {
		t.Fatalf("other channel got %d signals", s)
	}

	// an unknown channel is a silent no-op
	f.Signal("orders", "branchZ")
}

func TestPublishSnapshotDeliversPayloads(t *testing.T) {
	f := New()
	h := &recHandler{}
	if _, err := f.Listen(context.Background(), "orders", "branchA", h); err != nil {
		t.Fatalf("Listen: %v", err)
	}

	want := [][]byte{[]byte("one"), []byte("two")}
	f.PublishSnapshot("orders", "branchA", want)

	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.snapshots) != 1 {
		t.Fatalf("snapshots = %d, want 1", len(h.snapshots))
	}
	got := h.snapshots[0]
	if len(got) != 2 || string(got[0]) != "one" || string(got[1]) != "two" {
		t.Fatalf("payloads = %q", got)
	}
}

func TestStopSilencesHandler(t *testing.T) {
	f := New()
	h, other := &recHandler{}, &recHandler{}
	stop, err := f.Listen(context.Background(), "orders", "branchA", h)
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	if _, err := f.Listen(context.Background(), "orders", "branchA", other); err != nil {
		t.Fatalf("Listen: %v", err)
	}

	f.Signal("orders", "branchA")
	stop()
	stop() // idempotent

	f.Signal("orders", "branchA")
	f.PublishSnapshot("orders", "branchA", [][]byte{[]byte("x")})

	if s, snaps := h.counts(); s != 1 || snaps != 0 {
		t.Fatalf("stopped handler got signals=%d snapshots=%d", s, snaps)
	}
	if s, snaps := other.counts(); s != 2 || snaps != 1 {
		t.Fatalf("surviving handler got signals=%d snapshots=%d, want 2/1", s, snaps)
	}
}

func TestConcurrentSignalAndStop(t *testing.T) {
	f := New()
	h := &recHandler{}
	stop, err := f.Listen(context.Background(), "orders", "branchA", h)
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			f.Signal("orders", "branchA")
		}
	}()
	stop()
	wg.Wait()

	// count after stop; any later delivery would race this read and fail -race
	before, _ := h.counts()
	f.Signal("orders", "branchA")
	if after, _ := h.counts(); after != before {
		t.Fatalf("handler invoked after stop returned")
	}
}
