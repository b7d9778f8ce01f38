package branchsync

import "sync"

// ownerIndex remembers which branch last returned each entity id. Entries are
// only ever added or overwritten, never removed: a stale entry is harmless
// because it is only a hint, re-validated by the fetch it points at.
// Cardinality is bounded by distinct entities ever observed, not by time.
type ownerIndex struct {
	mu   sync.RWMutex
	byID map[string]string // entityID -> branch
}

func newOwnerIndex() *ownerIndex {
	return &ownerIndex{byID: make(map[string]string)}
}

func (ix *ownerIndex) recordAll(branch string, ids []string) {
	if len(ids) == 0 {
		return
	}
	ix.mu.Lock()
	for _, id := range ids {
		if id == "" {
			continue
		}
		ix.byID[id] = branch
	}
	ix.mu.Unlock()
}

func (ix *ownerIndex) resolve(id string) (string, bool) {
	ix.mu.RLock()
	b, ok := ix.byID[id]
	ix.mu.RUnlock()
	return b, ok
}
