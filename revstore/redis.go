package revstore

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis shares channel revisions across publishing processes and survives
// restarts. An optional TTL bounds growth; if a revision key expires, the
// next publish restarts at 1 and listeners simply treat the channel as new
// after their own state resets.
type Redis struct {
	rdb redis.UniversalClient
	ttl time.Duration // optional TTL for revision keys; 0 disables expiry
}

var _ Store = (*Redis)(nil)

func NewRedis(client redis.UniversalClient) *Redis {
	return &Redis{rdb: client}
}

// NewRedisWithTTL is like NewRedis but expires revision keys after ttl.
// If ttl <= 0, keys do not expire.
func NewRedisWithTTL(client redis.UniversalClient, ttl time.Duration) *Redis {
	return &Redis{rdb: client, ttl: ttl}
}

func (s *Redis) key(ch string) string { return "rev:" + ch }

// Current returns the last issued revision. Missing keys are revision 0.
func (s *Redis) Current(ctx context.Context, ch string) (uint64, error) {
	res, err := s.rdb.Get(ctx, s.key(ch)).Result()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	u, err := strconv.ParseUint(res, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("redis rev parse: %w", err)
	}
	return u, nil
}

// Next atomically increments the revision and (optionally) refreshes TTL.
// When ttl > 0, INCR + EXPIRE are pipelined in one round trip.
func (s *Redis) Next(ctx context.Context, ch string) (uint64, error) {
	k := s.key(ch)

	if s.ttl <= 0 {
		v, err := s.rdb.Incr(ctx, k).Result()
		if err != nil {
			return 0, err
		}
		return uint64(v), nil
	}

	var incr *redis.IntCmd
	_, err := s.rdb.Pipelined(ctx, func(p redis.Pipeliner) error {
		incr = p.Incr(ctx, k)
		p.Expire(ctx, k, s.ttl)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return uint64(incr.Val()), nil
}

// Cleanup is not applicable; Redis expires keys itself when TTL is set.
func (s *Redis) Cleanup(time.Duration) {}

func (s *Redis) Close(context.Context) error { return s.rdb.Close() }
