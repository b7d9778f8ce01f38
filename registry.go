package branchsync

import (
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	fd "github.com/unkn0wn-root/branchsync/feed"
)

// partition is one (collection, branch) cache unit: its subscribers, its
// entry, its feed listener and its retry state. Nothing here is shared
// across partitions, so a failing branch cannot affect any other key.
type partition[V any] struct {
	key Key

	mu      sync.Mutex
	refs    int
	subs    map[uint64]func(Entry[V])
	order   []uint64 // subscription order; broadcast iterates it for determinism
	nextSub uint64

	// epoch fences async work against teardown: bumped on every 0->1
	// activation and on deactivation, so a listener, fetch or retry from a
	// previous activation can never touch the current one.
	epoch uint64

	// gen is the fetch generation. Every issued fetch captures it;
	// completions apply only at a matching value (last-issued-wins).
	gen uint64

	state State
	entry Entry[V]

	stop fd.StopFunc
	// connectEp is the epoch of the connect call that currently owns listener
	// establishment (0 = none). Concurrent connects for the same epoch skip
	// straight to the fetch, so a racing ForceRefresh or retry timer can never
	// install a second listener. A new activation has a new epoch and is not
	// blocked by an owner still parked in Listen from the previous one.
	connectEp uint64

	bo         *backoff.ExponentialBackOff
	retries    int
	retryTimer *time.Timer
}

func newPartition[V any](key Key, initial, max time.Duration) *partition[V] {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = initial
	bo.MaxInterval = max
	bo.Multiplier = 2
	bo.RandomizationFactor = 0
	bo.MaxElapsedTime = 0 // attempts are capped by count, not wall time
	bo.Reset()
	return &partition[V]{
		key:  key,
		subs: make(map[uint64]func(Entry[V])),
		bo:   bo,
	}
}

func (s *syncer[V]) Subscribe(collection, branch string, cb func(Entry[V])) (func(), error) {
	if cb == nil {
		return nil, fmt.Errorf("branchsync: nil callback")
	}
	if branch == "" {
		return nil, fmt.Errorf("branchsync: branch is required (use GlobalBranch for unscoped collections)")
	}
	if _, ok := s.collections[collection]; !ok {
		return nil, &UnknownCollectionError{Collection: collection}
	}
	key := Key{Collection: collection, Branch: branch}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrClosed
	}
	p := s.parts[key]
	if p == nil {
		p = newPartition[V](key, s.initialBackoff, s.maxBackoff)
		s.parts[key] = p
	}

	p.mu.Lock()
	id := p.nextSub
	p.nextSub++
	p.subs[id] = cb
	p.order = append(p.order, id)
	p.refs++

	first := p.refs == 1
	var ep uint64
	if first {
		p.epoch++
		ep = p.epoch
		p.state = StateConnecting
		p.retries = 0
		p.bo.Reset()
		p.entry.Err = nil
		p.entry.Loading = true
		s.wg.Add(1) // under s.mu, so Close cannot start waiting in between
	}
	// immediate delivery of the current (possibly empty/stale) entry
	cb(p.entry)
	p.mu.Unlock()
	s.mu.Unlock()

	if first {
		s.log.Debug("partition activated", Fields{"key": key.String()})
		go func() {
			defer s.wg.Done()
			s.restoreRetained(p, ep)
			s.connect(p, ep)
		}()
	}

	var once sync.Once
	unsub := func() {
		once.Do(func() { s.unsubscribe(p, id) })
	}
	return unsub, nil
}

func (s *syncer[V]) unsubscribe(p *partition[V], id uint64) {
	p.mu.Lock()
	if _, ok := p.subs[id]; !ok {
		p.mu.Unlock()
		return
	}
	delete(p.subs, id)
	for i, v := range p.order {
		if v == id {
			p.order = append(p.order[:i], p.order[i+1:]...)
			break
		}
	}
	p.refs--
	if p.refs > 0 {
		p.mu.Unlock()
		return
	}

	// last subscriber gone: tear the partition down. In-flight fetches are
	// not cancelled, but the epoch bump keeps their results from reaching
	// callbacks that already unsubscribed.
	p.epoch++
	if p.retryTimer != nil {
		p.retryTimer.Stop()
		p.retryTimer = nil
	}
	stop := p.stop
	p.stop = nil
	p.state = StateInactive

	var park Entry[V]
	gen := p.gen
	doPark := s.retention != nil && !p.entry.LastFetchedAt.IsZero() && p.entry.Err == nil
	if doPark {
		park = p.entry
		p.entry = Entry[V]{}
	}
	p.mu.Unlock()

	if stop != nil {
		stop()
		s.hooks.FeedStopped(p.key.Collection, p.key.Branch)
	}
	if doPark {
		if s.track() {
			go func() {
				defer s.wg.Done()
				s.retainSnapshot(p.key, gen, park)
			}()
		}
	}
	s.log.Debug("partition deactivated", Fields{"key": p.key.String()})
}

// broadcastLocked delivers the current entry to every subscriber in
// subscription order. Caller holds p.mu, so callbacks never observe a
// half-updated list and an unsubscribe that has returned cannot be invoked.
func (s *syncer[V]) broadcastLocked(p *partition[V]) {
	for _, id := range p.order {
		if cb, ok := p.subs[id]; ok {
			cb(p.entry)
		}
	}
}

// scheduleRetryLocked moves the partition to StateError and arms the next
// reconnect attempt, or parks it for ForceRefresh once the cap is hit.
// Caller holds p.mu.
func (s *syncer[V]) scheduleRetryLocked(p *partition[V], ep uint64, cause error) {
	p.state = StateError
	if s.maxRetries >= 0 && p.retries >= s.maxRetries {
		s.hooks.RetriesExhausted(p.key.Collection, p.key.Branch, p.retries, cause)
		s.log.Error("retries exhausted; partition parked until ForceRefresh",
			Fields{"key": p.key.String(), "attempts": p.retries, "err": cause})
		return
	}
	p.retries++
	attempt := p.retries
	d := p.bo.NextBackOff()
	if d == backoff.Stop {
		d = s.maxBackoff
	}
	if p.retryTimer != nil {
		p.retryTimer.Stop()
	}
	p.retryTimer = time.AfterFunc(d, func() {
		if !s.track() {
			return
		}
		defer s.wg.Done()
		s.connect(p, ep)
	})
	s.hooks.RetryScheduled(p.key.Collection, p.key.Branch, attempt, d)
	s.log.Debug("retry scheduled", Fields{"key": p.key.String(), "attempt": attempt, "delay": d})
}
