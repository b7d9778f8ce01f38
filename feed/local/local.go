// Package local implements an in-process feed for single-process hosts and
// tests. The write path and the syncer share one *Feed: mutations call
// Signal or PublishSnapshot, listeners get the corresponding handler call.
package local

import (
	"context"
	"sync"

	"github.com/unkn0wn-root/branchsync/feed"
)

type channelKey struct {
	collection string
	branch     string
}

type sub struct {
	mu     sync.Mutex // serializes deliveries and fences them against stop
	h      feed.Handler
	closed bool
}

func (s *sub) signal() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.h.OnSignal()
}

func (s *sub) snapshot(payloads [][]byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.h.OnSnapshot(payloads)
}

// Feed fans change notifications out to every listener of a channel.
// Deliveries are synchronous with respect to Signal/PublishSnapshot and
// serialized per listener; stop must not be called from inside a handler.
type Feed struct {
	mu   sync.Mutex
	subs map[channelKey]map[uint64]*sub
	next uint64
}

var _ feed.Feed = (*Feed)(nil)

func New() *Feed {
	return &Feed{subs: make(map[channelKey]map[uint64]*sub)}
}

func (f *Feed) Listen(_ context.Context, collection, branch string, h feed.Handler) (feed.StopFunc, error) {
	ck := channelKey{collection: collection, branch: branch}
	s := &sub{h: h}

	f.mu.Lock()
	id := f.next
	f.next++
	m := f.subs[ck]
	if m == nil {
		m = make(map[uint64]*sub)
		f.subs[ck] = m
	}
	m[id] = s
	f.mu.Unlock()

	var once sync.Once
	stop := func() {
		once.Do(func() {
			f.mu.Lock()
			delete(f.subs[ck], id)
			if len(f.subs[ck]) == 0 {
				delete(f.subs, ck)
			}
			f.mu.Unlock()

			// block until any in-flight delivery drains; after stop
			// returns the handler is never invoked again
			s.mu.Lock()
			s.closed = true
			s.mu.Unlock()
		})
	}
	return stop, nil
}

func (f *Feed) listeners(collection, branch string) []*sub {
	ck := channelKey{collection: collection, branch: branch}
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*sub, 0, len(f.subs[ck]))
	for _, s := range f.subs[ck] {
		out = append(out, s)
	}
	return out
}

// Signal notifies every listener of the channel that something changed
// (signal variant).
func (f *Feed) Signal(collection, branch string) {
	for _, s := range f.listeners(collection, branch) {
		s.signal()
	}
}

// PublishSnapshot pushes a complete encoded item list to every listener of
// the channel (snapshot variant).
func (f *Feed) PublishSnapshot(collection, branch string, payloads [][]byte) {
	for _, s := range f.listeners(collection, branch) {
		s.snapshot(payloads)
	}
}
