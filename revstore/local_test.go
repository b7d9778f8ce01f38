package revstore

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestLocalNextMonotonicPerChannel(t *testing.T) {
	s := NewLocal(0, 0)
	ctx := context.Background()

	if rev, err := s.Current(ctx, "feed:pos:orders:a"); err != nil || rev != 0 {
		t.Fatalf("Current on fresh channel = %d, %v", rev, err)
	}
	for want := uint64(1); want <= 5; want++ {
		rev, err := s.Next(ctx, "feed:pos:orders:a")
		if err != nil || rev != want {
			t.Fatalf("Next = %d, %v; want %d", rev, err, want)
		}
	}
	// channels are independent
	if rev, _ := s.Next(ctx, "feed:pos:orders:b"); rev != 1 {
		t.Fatalf("second channel started at %d", rev)
	}
	if rev, _ := s.Current(ctx, "feed:pos:orders:a"); rev != 5 {
		t.Fatalf("Current = %d, want 5", rev)
	}
}

func TestLocalNextConcurrent(t *testing.T) {
	s := NewLocal(0, 0)
	ctx := context.Background()

	const goroutines, perG = 8, 50
	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perG; j++ {
				if _, err := s.Next(ctx, "ch"); err != nil {
					t.Errorf("Next: %v", err)
				}
			}
		}()
	}
	wg.Wait()

	if rev, _ := s.Current(ctx, "ch"); rev != goroutines*perG {
		t.Fatalf("Current = %d, want %d", rev, goroutines*perG)
	}
}

func TestLocalCleanupPrunesStaleChannels(t *testing.T) {
	s := NewLocal(0, 0)
	ctx := context.Background()

	if _, err := s.Next(ctx, "stale"); err != nil {
		t.Fatalf("Next: %v", err)
	}
	time.Sleep(15 * time.Millisecond)
	if _, err := s.Next(ctx, "active"); err != nil {
		t.Fatalf("Next: %v", err)
	}

	s.Cleanup(10 * time.Millisecond)

	if rev, _ := s.Current(ctx, "stale"); rev != 0 {
		t.Fatalf("stale channel survived cleanup, rev=%d", rev)
	}
	if rev, _ := s.Current(ctx, "active"); rev != 1 {
		t.Fatalf("active channel was pruned, rev=%d", rev)
	}

	// zero retention disables pruning entirely
	s.Cleanup(0)
	if rev, _ := s.Current(ctx, "active"); rev != 1 {
		t.Fatalf("Cleanup(0) pruned, rev=%d", rev)
	}
}

func TestLocalCloseStopsCleanupLoop(t *testing.T) {
	s := NewLocal(time.Millisecond, time.Millisecond)
	if _, err := s.Next(context.Background(), "ch"); err != nil {
		t.Fatalf("Next: %v", err)
	}
	if err := s.Close(context.Background()); err != nil {
		t.Fatalf("Close: %v", err)
	}
	// Close on a loop-less store is fine too
	if err := NewLocal(0, 0).Close(context.Background()); err != nil {
		t.Fatalf("Close: %v", err)
	}
}
