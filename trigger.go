package branchsync

// NotifyMutated runs the fetch-and-broadcast cycle inline: when it returns,
// subscribers of the partition have already observed the post-write list (or
// its error). Signal-variant notifications can lag by hundreds of
// milliseconds or drop during connectivity blips; the writer's own view must
// not depend on that round trip.
//
// With zero subscribers this is a no-op; it creates neither a listener nor
// an entry.
func (s *syncer[V]) NotifyMutated(collection, branch string) {
	if _, ok := s.collections[collection]; !ok {
		// the write path can't use a returned error; log loudly instead
		s.log.Error("notify for unknown collection", Fields{"collection": collection})
		return
	}
	p := s.part(Key{Collection: collection, Branch: branch})
	if p == nil {
		return
	}
	p.mu.Lock()
	ep := p.epoch
	active := p.refs > 0
	p.mu.Unlock()
	if !active {
		return
	}

	g, ok := s.beginFetch(p, ep)
	if !ok {
		return
	}
	if !s.track() {
		return
	}
	defer s.wg.Done()
	s.runFetch(p, ep, g)
}

// NotifyMutatedByEntity resolves the entity's owning branch through the
// ownership index and delegates to NotifyMutated. The index is a hint:
// entries are never removed, and a stale hint at worst refreshes a partition
// that would have been refreshed by its own notification anyway. An unknown
// id (cold cache, never fetched) is a safe no-op; the next natural
// notification or manual refresh reconciles eventually.
func (s *syncer[V]) NotifyMutatedByEntity(collection, entityID string) {
	branch, ok := s.owners.resolve(entityID)
	if !ok {
		s.log.Debug("no known owner for entity; skipping refresh",
			Fields{"collection": collection, "entity": entityID})
		return
	}
	s.NotifyMutated(collection, branch)
}

// ForceRefresh resets the partition's retry budget and backoff and issues a
// fresh connect+fetch. This is the only way out of StateError after the
// retry cap, and is harmless in any other state.
func (s *syncer[V]) ForceRefresh(collection, branch string) {
	p := s.part(Key{Collection: collection, Branch: branch})
	if p == nil {
		return
	}
	p.mu.Lock()
	if p.refs == 0 {
		p.mu.Unlock()
		return
	}
	ep := p.epoch
	p.retries = 0
	p.bo.Reset()
	if p.retryTimer != nil {
		p.retryTimer.Stop()
		p.retryTimer = nil
	}
	p.mu.Unlock()

	if !s.track() {
		return
	}
	go func() {
		defer s.wg.Done()
		s.connect(p, ep)
	}()
}
