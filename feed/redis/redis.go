// Package redis implements the feed contract over Redis pub/sub.
//
// Signal variant: every message on a partition's channel means "something
// changed"; the payload is ignored. Snapshot variant: messages carry a
// framed, revision-stamped full item list; out-of-order deliveries are
// dropped by revision fencing so a slow frame can never regress a newer one.
//
// Pub/sub is fire-and-forget: messages published while a listener is
// disconnected are lost. That is acceptable here: the consumer reconciles
// through full fetches and write-path triggers.
package redis

import (
	"context"
	"errors"
	"sync"

	goredis "github.com/redis/go-redis/v9"

	"github.com/unkn0wn-root/branchsync/feed"
	"github.com/unkn0wn-root/branchsync/internal/util"
	"github.com/unkn0wn-root/branchsync/internal/wire"
)

var ErrNilClient = errors.New("redis feed: nil client")

type variant int

const (
	variantSignal variant = iota
	variantSnapshot
)

type Config struct {
	Client    goredis.UniversalClient
	Namespace string // must match the publisher's namespace
}

// Feed listens on per-partition pub/sub channels.
type Feed struct {
	rdb goredis.UniversalClient
	ns  string
	v   variant

	// last applied revision per channel (snapshot variant only)
	revMu sync.Mutex
	revs  map[string]uint64
}

var _ feed.Feed = (*Feed)(nil)

// NewSignal builds a signal-variant feed: each message triggers a re-query.
func NewSignal(cfg Config) (*Feed, error) {
	return newFeed(cfg, variantSignal)
}

// NewSnapshot builds a snapshot-variant feed: each message carries the full
// item list, so no follow-up query is needed.
func NewSnapshot(cfg Config) (*Feed, error) {
	return newFeed(cfg, variantSnapshot)
}

func newFeed(cfg Config, v variant) (*Feed, error) {
	if cfg.Client == nil {
		return nil, ErrNilClient
	}
	return &Feed{rdb: cfg.Client, ns: cfg.Namespace, v: v, revs: make(map[string]uint64)}, nil
}

// admit reports whether rev supersedes the channel's last applied revision
// and records it if so.
func (f *Feed) admit(ch string, rev uint64) bool {
	f.revMu.Lock()
	defer f.revMu.Unlock()
	if rev <= f.revs[ch] {
		return false
	}
	f.revs[ch] = rev
	return true
}

func (f *Feed) Listen(ctx context.Context, collection, branch string, h feed.Handler) (feed.StopFunc, error) {
	ch := util.ChannelKey(f.ns, collection, branch)
	ps := f.rdb.Subscribe(ctx, ch)

	// confirm the SUBSCRIBE before reporting the listener as established
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, err
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for msg := range ps.Channel() {
			switch f.v {
			case variantSignal:
				h.OnSignal()
			case variantSnapshot:
				rev, payloads, err := wire.DecodeFeed([]byte(msg.Payload))
				if err != nil {
					// unreadable frame still means the partition
					// changed; degrade to a signal
					h.OnSignal()
					continue
				}
				if !f.admit(ch, rev) {
					continue
				}
				h.OnSnapshot(payloads)
			}
		}
	}()

	var once sync.Once
	stop := func() {
		once.Do(func() {
			_ = ps.Close()
			<-done // drain the receive loop; no handler calls after stop returns
		})
	}
	return stop, nil
}

// Publisher is the write side of the Redis feed. The mutation path calls
// Signal or Snapshot after a confirmed write; either one wakes every
// listening replica.
type Publisher struct {
	rdb  goredis.UniversalClient
	ns   string
	revs RevSource
}

// RevSource issues the monotonically increasing revisions stamped onto
// snapshot frames. See the revstore package for local and Redis-backed
// implementations.
type RevSource interface {
	Next(ctx context.Context, channel string) (uint64, error)
}

func NewPublisher(cfg Config, revs RevSource) (*Publisher, error) {
	if cfg.Client == nil {
		return nil, ErrNilClient
	}
	return &Publisher{rdb: cfg.Client, ns: cfg.Namespace, revs: revs}, nil
}

// Signal announces a change on the partition's channel (signal variant).
func (p *Publisher) Signal(ctx context.Context, collection, branch string) error {
	ch := util.ChannelKey(p.ns, collection, branch)
	return p.rdb.Publish(ctx, ch, "1").Err()
}

// Snapshot pushes a complete encoded item list (snapshot variant). Requires
// a RevSource; shared-channel publishers should use a shared one so frames
// from different processes order consistently.
func (p *Publisher) Snapshot(ctx context.Context, collection, branch string, payloads [][]byte) error {
	if p.revs == nil {
		return errors.New("redis feed: publisher has no revision source")
	}
	ch := util.ChannelKey(p.ns, collection, branch)
	rev, err := p.revs.Next(ctx, ch)
	if err != nil {
		return err
	}
	return p.rdb.Publish(ctx, ch, wire.EncodeFeed(rev, payloads)).Err()
}
