package ratelimit

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore is a fixed-window CounterStore backed by Redis INCR with a
// window-length expiry. The atomic increment keeps the counter safe
// under concurrent submissions from many processes.
type RedisStore struct {
	rdb    *redis.Client
	prefix string
}

// NewRedisStore returns a CounterStore over rdb. Keys are namespaced
// under prefix (default "rl").
func NewRedisStore(rdb *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "rl"
	}
	return &RedisStore{rdb: rdb, prefix: prefix}
}

// Incr implements CounterStore.
func (s *RedisStore) Incr(ctx context.Context, key string, window time.Duration) (int64, error) {
	k := s.prefix + ":" + key

	count, err := s.rdb.Incr(ctx, k).Result()
	if err != nil {
		return 0, err
	}
	if count == 1 {
		s.rdb.Expire(ctx, k, window)
	}
	return count, nil
}
