// Package branchsync keeps in-memory views of branch-scoped business
// collections consistent with a remote store, in real time, across two
// structurally different backend change-notification variants (full-snapshot
// push and change-signal push).
//
// Components:
//   - Feed: the change-subscription primitive (see the feed package);
//     snapshot and signal variants behind one Listen -> stop interface.
//   - FetchFunc: the full, already-joined query against the remote store.
//   - Codec[V]: (de)serializes entities for snapshot-feed payloads and
//     retained snapshots.
//   - Provider: optional byte store that retains a partition's last item
//     list across unsubscribe/resubscribe cycles (Ristretto, BigCache, Redis).
//
// Partitions are (collection, branch) pairs, cached and subscribed
// independently. Per partition the syncer refcounts subscribers, holds
// exactly one feed listener while the refcount is positive, and fences every
// fetch with a generation so a slow query can never overwrite a newer result
// (last-issued-wins).
//
// The write path calls NotifyMutated (or NotifyMutatedByEntity when only the
// entity id is known) right after a confirmed write, so its own view reflects
// the mutation without waiting on backend notification latency.
//
//	sy, _ := branchsync.New[Order](branchsync.Options[Order]{
//	    Namespace:   "pos:prod",
//	    Collections: []string{"orders", "inventory"},
//	    Fetch:       queryOrders,
//	    Feed:        fd,
//	    EntityID:    func(o Order) string { return o.ID },
//	})
//	unsub, _ := sy.Subscribe("orders", branchID, render)
//	defer unsub()
package branchsync
