package branchsync

import (
	"context"
	"fmt"
	"sync"
	"time"

	c "github.com/unkn0wn-root/branchsync/codec"
	fd "github.com/unkn0wn-root/branchsync/feed"
	pr "github.com/unkn0wn-root/branchsync/provider"
)

const (
	defaultInitialBackoff = 2 * time.Second
	defaultMaxBackoff     = time.Minute
	defaultMaxRetries     = 5
	defaultRetentionTTL   = time.Hour
)

type syncer[V any] struct {
	ns          string
	collections map[string]struct{}
	fetch       FetchFunc[V]
	feed        fd.Feed
	entityID    func(V) string

	codec        c.Codec[V]
	retention    pr.Provider
	retentionTTL time.Duration

	log   Logger
	hooks Hooks

	initialBackoff time.Duration
	maxBackoff     time.Duration
	maxRetries     int // -1 => unlimited

	owners *ownerIndex

	// ctx bounds every fetch, listen and retention call; cancelled on Close
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	parts  map[Key]*partition[V]
	closed bool
}

func newSyncer[V any](opts Options[V]) (*syncer[V], error) {
	if opts.Namespace == "" {
		return nil, fmt.Errorf("branchsync: namespace is required")
	}
	if len(opts.Collections) == 0 {
		return nil, fmt.Errorf("branchsync: at least one collection is required")
	}
	if opts.Fetch == nil {
		return nil, fmt.Errorf("branchsync: fetch func is required")
	}
	if opts.Feed == nil {
		return nil, fmt.Errorf("branchsync: feed is required")
	}
	if opts.EntityID == nil {
		return nil, fmt.Errorf("branchsync: entity id accessor is required")
	}
	if opts.Retention != nil && opts.Codec == nil {
		return nil, fmt.Errorf("branchsync: retention requires a codec")
	}

	s := &syncer[V]{
		ns:          opts.Namespace,
		collections: make(map[string]struct{}, len(opts.Collections)),
		fetch:       opts.Fetch,
		feed:        opts.Feed,
		entityID:    opts.EntityID,
		codec:       opts.Codec,
		retention:   opts.Retention,
		owners:      newOwnerIndex(),
		parts:       make(map[Key]*partition[V]),
	}
	for _, name := range opts.Collections {
		if name == "" {
			return nil, fmt.Errorf("branchsync: empty collection name")
		}
		s.collections[name] = struct{}{}
	}

	// defaults
	s.log = coalesce[Logger](opts.Logger, NopLogger{})
	s.hooks = coalesce[Hooks](opts.Hooks, NopHooks{})
	s.retentionTTL = coalesce[time.Duration](opts.RetentionTTL, defaultRetentionTTL)
	s.initialBackoff = coalesce[time.Duration](opts.InitialBackoff, defaultInitialBackoff)
	s.maxBackoff = coalesce[time.Duration](opts.MaxBackoff, defaultMaxBackoff)
	switch {
	case opts.MaxRetries < 0:
		s.maxRetries = -1
	case opts.MaxRetries == 0:
		s.maxRetries = defaultMaxRetries
	default:
		s.maxRetries = opts.MaxRetries
	}

	s.ctx, s.cancel = context.WithCancel(context.Background())
	return s, nil
}

// part returns the partition for key, or nil if it was never subscribed.
// Triggers and accessors must not create partitions.
func (s *syncer[V]) part(key Key) *partition[V] {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.parts[key]
}

// track registers one unit of in-flight work with the close barrier. It
// refuses after Close so the wait group can never be bumped mid-wait.
func (s *syncer[V]) track() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.wg.Add(1)
	return true
}

func (s *syncer[V]) Snapshot(collection, branch string) (Entry[V], bool) {
	p := s.part(Key{Collection: collection, Branch: branch})
	if p == nil {
		return Entry[V]{}, false
	}
	p.mu.Lock()
	e := p.entry
	p.mu.Unlock()
	return e, true
}

func (s *syncer[V]) Status(collection, branch string) (State, bool) {
	p := s.part(Key{Collection: collection, Branch: branch})
	if p == nil {
		return StateInactive, false
	}
	p.mu.Lock()
	st := p.state
	p.mu.Unlock()
	return st, true
}

func (s *syncer[V]) ResolveOwner(entityID string) (string, bool) {
	return s.owners.resolve(entityID)
}

func (s *syncer[V]) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	parts := make([]*partition[V], 0, len(s.parts))
	for _, p := range s.parts {
		parts = append(parts, p)
	}
	s.mu.Unlock()

	var stops []fd.StopFunc
	for _, p := range parts {
		p.mu.Lock()
		p.epoch++ // fence any in-flight activation, fetch or retry
		if p.retryTimer != nil {
			p.retryTimer.Stop()
			p.retryTimer = nil
		}
		if p.stop != nil {
			stops = append(stops, p.stop)
			p.stop = nil
		}
		p.state = StateInactive
		p.mu.Unlock()
	}
	for _, stop := range stops {
		stop()
	}
	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	if s.retention != nil {
		return s.retention.Close(ctx)
	}
	return nil
}
