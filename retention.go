package branchsync

import (
	"time"

	"github.com/unkn0wn-root/branchsync/internal/util"
	"github.com/unkn0wn-root/branchsync/internal/wire"
)

// retainSnapshot parks a deactivated partition's last accepted item list in
// the retention store so the next first-subscribe can render immediately
// instead of starting cold. Best-effort: a dropped snapshot only costs a
// loading state later.
func (s *syncer[V]) retainSnapshot(key Key, gen uint64, e Entry[V]) {
	payloads := make([][]byte, 0, len(e.Items))
	for _, it := range e.Items {
		b, err := s.codec.Encode(it)
		if err != nil {
			s.log.Warn("retain encode failed; snapshot dropped",
				Fields{"key": key.String(), "err": err})
			return
		}
		payloads = append(payloads, b)
	}

	k := util.SnapshotKey(s.ns, key.Collection, key.Branch)
	frame := wire.EncodeRetained(gen, e.LastFetchedAt.UnixNano(), payloads)
	ok, err := s.retention.Set(s.ctx, k, frame, s.retentionTTL)
	if err != nil {
		s.log.Warn("retention set failed", Fields{"key": key.String(), "err": err})
		return
	}
	if !ok {
		s.log.Debug("retention rejected snapshot (pressure)", Fields{"key": key.String()})
		return
	}
	s.hooks.SnapshotRetained(key.Collection, key.Branch, len(payloads))
}

// restoreRetained seeds a freshly activated partition from the retention
// store, delivering the parked list as a stale entry (Loading stays true)
// while the authoritative fetch runs. Corrupt or undecodable frames
// self-heal: deleted and ignored.
func (s *syncer[V]) restoreRetained(p *partition[V], ep uint64) {
	if s.retention == nil || s.codec == nil {
		return
	}
	k := util.SnapshotKey(s.ns, p.key.Collection, p.key.Branch)
	raw, ok, err := s.retention.Get(s.ctx, k)
	if err != nil {
		s.log.Warn("retention get failed", Fields{"key": p.key.String(), "err": err})
		return
	}
	if !ok {
		return
	}

	gen, atNano, payloads, err := wire.DecodeRetained(raw)
	if err != nil {
		_ = s.retention.Del(s.ctx, k)
		s.hooks.SnapshotSelfHeal(p.key.Collection, p.key.Branch, "corrupt")
		return
	}
	items := make([]V, 0, len(payloads))
	for _, b := range payloads {
		v, derr := s.codec.Decode(b)
		if derr != nil {
			_ = s.retention.Del(s.ctx, k)
			s.hooks.SnapshotSelfHeal(p.key.Collection, p.key.Branch, "item_decode")
			return
		}
		items = append(items, v)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.epoch != ep || p.refs == 0 {
		return
	}
	if !p.entry.LastFetchedAt.IsZero() {
		return // a fresh fetch already landed; keep it
	}
	p.entry = Entry[V]{
		Items:         items,
		LastFetchedAt: time.Unix(0, atNano),
		Loading:       true, // stale until the current activation fetches
	}

	ids := make([]string, 0, len(items))
	for _, it := range items {
		ids = append(ids, s.entityID(it))
	}
	s.owners.recordAll(p.key.Branch, ids)

	s.hooks.SnapshotRestored(p.key.Collection, p.key.Branch, len(items))
	s.log.Debug("retained snapshot restored",
		Fields{"key": p.key.String(), "gen": gen, "items": len(items), "fetched_at": p.entry.LastFetchedAt})
	s.broadcastLocked(p)
}
