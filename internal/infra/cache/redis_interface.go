package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// CacheClient is the subset of redis.Client commands the Redis backend uses.
// It exists so tests can substitute a double for a live server.
type CacheClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	Keys(ctx context.Context, pattern string) *redis.StringSliceCmd
	Ping(ctx context.Context) *redis.StatusCmd
}

var _ CacheClient = (*redis.Client)(nil)
