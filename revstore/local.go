package revstore

import (
	"context"
	"sync"
	"time"
)

type localRevEntry struct {
	Rev       uint64
	UpdatedAt time.Time
}

// Local keeps revisions in-process (default). Optional cleanup loop prunes
// channels that stopped publishing long ago.
type Local struct {
	mu     sync.RWMutex
	revs   map[string]localRevEntry
	ticker *time.Ticker
	stopCh chan struct{}
	wg     sync.WaitGroup

	retention time.Duration
}

var _ Store = (*Local)(nil)

func NewLocal(cleanupInterval, retention time.Duration) *Local {
	s := &Local{
		revs:      make(map[string]localRevEntry),
		retention: retention,
	}
	if cleanupInterval > 0 && retention > 0 {
		s.ticker = time.NewTicker(cleanupInterval)
		s.stopCh = make(chan struct{})
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			for {
				select {
				case <-s.ticker.C:
					s.Cleanup(retention)
				case <-s.stopCh:
					return
				}
			}
		}()
	}
	return s
}

func (s *Local) Current(_ context.Context, ch string) (uint64, error) {
	s.mu.RLock()
	e, ok := s.revs[ch]
	s.mu.RUnlock()
	if !ok {
		return 0, nil
	}
	return e.Rev, nil
}

func (s *Local) Next(_ context.Context, ch string) (uint64, error) {
	now := time.Now()
	s.mu.Lock()
	e := s.revs[ch]
	e.Rev++
	e.UpdatedAt = now
	s.revs[ch] = e
	s.mu.Unlock()
	return e.Rev, nil
}

func (s *Local) Cleanup(retention time.Duration) {
	if retention <= 0 {
		return
	}
	cutoff := time.Now().Add(-retention)

	s.mu.Lock()
	for ch, e := range s.revs {
		if !e.UpdatedAt.IsZero() && e.UpdatedAt.Before(cutoff) {
			delete(s.revs, ch)
		}
	}
	s.mu.Unlock()
}

func (s *Local) Close(_ context.Context) error {
	if s.stopCh != nil {
		close(s.stopCh)
		if s.ticker != nil {
			s.ticker.Stop()
		}
		s.wg.Wait()
	}
	return nil
}
