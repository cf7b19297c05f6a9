package ratelimit

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Redis is a fixed-window limiter shared by every instance that talks to the
// same Redis. It fails open: when Redis is unreachable requests are allowed
// and a warning is logged.
type Redis struct {
	rdb    *redis.Client
	prefix string
	limit  int
	window time.Duration
	log    *zap.Logger
}

// NewRedis allows limit requests per key per window, namespaced by prefix.
func NewRedis(rdb *redis.Client, prefix string, limit int, window time.Duration, logger *zap.Logger) *Redis {
	return &Redis{rdb: rdb, prefix: prefix, limit: limit, window: window, log: logger}
}

func (l *Redis) key(k string) string { return "ratelimit:" + l.prefix + ":" + k }

// Allow increments the key's counter, starting its expiry on first use.
func (l *Redis) Allow(ctx context.Context, key string) bool {
	k := l.key(key)
	pipe := l.rdb.TxPipeline()
	incr := pipe.Incr(ctx, k)
	pipe.ExpireNX(ctx, k, l.window)
	if _, err := pipe.Exec(ctx); err != nil {
		l.log.Warn("rate limiter unavailable; allowing request",
			zap.String("limiter", l.prefix), zap.Error(err))
		return true
	}
	return incr.Val() <= int64(l.limit)
}

// Reset drops the key's counter.
func (l *Redis) Reset(ctx context.Context, key string) {
	if err := l.rdb.Del(ctx, l.key(key)).Err(); err != nil {
		l.log.Warn("rate limiter reset failed", zap.String("limiter", l.prefix), zap.Error(err))
	}
}
