package branchsync

import (
	"time"
)

// connect establishes the feed listener if missing, then issues a fetch.
// It is the single reconnect path: first activation, timer retries and
// ForceRefresh all land here. Runs on a tracked goroutine.
func (s *syncer[V]) connect(p *partition[V], ep uint64) {
	p.mu.Lock()
	if p.epoch != ep || p.refs == 0 {
		p.mu.Unlock()
		return
	}
	p.state = StateConnecting
	needListen := p.stop == nil && p.connectEp != ep
	if needListen {
		p.connectEp = ep
	}
	p.mu.Unlock()

	if needListen {
		h := &feedHandler[V]{s: s, p: p, ep: ep}
		stop, err := s.feed.Listen(s.ctx, p.key.Collection, p.key.Branch, h)
		if err != nil {
			s.log.Warn("feed listen failed", Fields{"key": p.key.String(), "err": err})
			p.mu.Lock()
			if p.connectEp == ep {
				p.connectEp = 0
			}
			if p.epoch == ep && p.refs > 0 {
				p.entry.Err = err
				s.broadcastLocked(p)
				s.scheduleRetryLocked(p, ep, err)
			}
			p.mu.Unlock()
			return
		}

		installed := false
		p.mu.Lock()
		if p.connectEp == ep {
			p.connectEp = 0
		}
		if p.epoch == ep && p.refs > 0 && p.stop == nil {
			p.stop = stop
			installed = true
		}
		p.mu.Unlock()
		if !installed {
			// everyone unsubscribed while we were establishing
			stop()
			return
		}
		s.hooks.FeedStarted(p.key.Collection, p.key.Branch)
	}

	if g, ok := s.beginFetch(p, ep); ok {
		s.runFetch(p, ep, g)
	}
}

// beginFetch issues a new fetch generation for the partition. Returns
// ok=false when the partition was deactivated or reactivated since ep.
func (s *syncer[V]) beginFetch(p *partition[V], ep uint64) (uint64, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.epoch != ep || p.refs == 0 {
		return 0, false
	}
	p.gen++
	p.entry.Loading = true
	return p.gen, true
}

// runFetch executes the query and applies the result iff its generation is
// still the latest issued for the partition. A slow fetch that lost the race
// is discarded, never merged: the cache is always the product of the
// highest-generation completed fetch.
func (s *syncer[V]) runFetch(p *partition[V], ep uint64, g uint64) {
	items, err := s.fetch(s.ctx, p.key.Collection, p.key.Branch)

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.epoch != ep {
		return // partition torn down; result dropped
	}
	if g != p.gen {
		s.hooks.FetchDiscarded(p.key.Collection, p.key.Branch, g, p.gen)
		s.log.Debug("stale fetch discarded", Fields{"key": p.key.String(), "gen": g, "latest": p.gen})
		return
	}
	if err != nil {
		s.log.Warn("fetch failed", Fields{"key": p.key.String(), "err": err})
		p.entry.Loading = false
		p.entry.Err = err
		s.broadcastLocked(p)
		s.scheduleRetryLocked(p, ep, err)
		return
	}
	s.applyLocked(p, items, time.Now())
}

// refreshAsync runs a generation-fenced fetch off the caller's goroutine.
// Used by signal-variant notifications and decode fallbacks.
func (s *syncer[V]) refreshAsync(p *partition[V], ep uint64) {
	g, ok := s.beginFetch(p, ep)
	if !ok {
		return
	}
	if !s.track() {
		return
	}
	go func() {
		defer s.wg.Done()
		s.runFetch(p, ep, g)
	}()
}

// applyLocked accepts a complete item list: replaces the entry, records
// entity ownership and broadcasts. Caller holds p.mu.
func (s *syncer[V]) applyLocked(p *partition[V], items []V, at time.Time) {
	p.entry = Entry[V]{Items: items, LastFetchedAt: at}
	p.state = StateConnected
	p.retries = 0
	p.bo.Reset()

	ids := make([]string, 0, len(items))
	for _, it := range items {
		ids = append(ids, s.entityID(it))
	}
	s.owners.recordAll(p.key.Branch, ids)

	s.broadcastLocked(p)
}

// feedHandler adapts feed callbacks to the partition they serve. ep pins the
// activation that installed it; a handler surviving past teardown (a feed
// bug) is fenced out by the epoch checks downstream.
type feedHandler[V any] struct {
	s  *syncer[V]
	p  *partition[V]
	ep uint64
}

func (h *feedHandler[V]) OnSignal() {
	h.s.refreshAsync(h.p, h.ep)
}

func (h *feedHandler[V]) OnSnapshot(payloads [][]byte) {
	s := h.s
	p := h.p

	if s.codec == nil {
		// can't decode pushed items; still a change notification
		s.hooks.DecodeFallback(p.key.Collection, p.key.Branch, "no_codec")
		s.refreshAsync(p, h.ep)
		return
	}

	items := make([]V, 0, len(payloads))
	for _, b := range payloads {
		v, err := s.codec.Decode(b)
		if err != nil {
			s.hooks.DecodeFallback(p.key.Collection, p.key.Branch, "item_decode")
			s.log.Warn("snapshot payload decode failed; falling back to fetch",
				Fields{"key": p.key.String(), "err": err})
			s.refreshAsync(p, h.ep)
			return
		}
		items = append(items, v)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.epoch != h.ep || p.refs == 0 {
		return
	}
	// a pushed snapshot supersedes any in-flight fetch; bump the
	// generation so a slower query result gets discarded on completion
	p.gen++
	s.applyLocked(p, items, time.Now())
}
