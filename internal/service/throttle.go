package service

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Throttle admits at most one event per key per window.
type Throttle interface {
	Allow(ctx context.Context, key string, window time.Duration) (bool, error)
}

// RedisThrottle claims the key with SET NX and lets it expire with the window.
type RedisThrottle struct {
	rdb    *redis.Client
	prefix string
}

func NewRedisThrottle(rdb *redis.Client, prefix string) *RedisThrottle {
	return &RedisThrottle{rdb: rdb, prefix: prefix}
}

func (t *RedisThrottle) Allow(ctx context.Context, key string, window time.Duration) (bool, error) {
	return t.rdb.SetNX(ctx, t.prefix+key, 1, window).Result()
}

// NoThrottle admits everything. Used when Redis is not configured.
type NoThrottle struct{}

func (NoThrottle) Allow(context.Context, string, time.Duration) (bool, error) {
	return true, nil
}
