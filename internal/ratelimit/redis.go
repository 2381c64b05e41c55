package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisWindow is the shared-store variant of the fixed-window limiter for
// multi-instance deployments: one INCR-counted bucket per key per window.
type RedisWindow struct {
	client *redis.Client
	limit  int
	span   time.Duration
}

func NewRedisWindow(client *redis.Client, limit int, span time.Duration) *RedisWindow {
	return &RedisWindow{client: client, limit: limit, span: span}
}

func (r *RedisWindow) Allow(ctx context.Context, key string) (bool, error) {
	bucket := fmt.Sprintf("ratelimit:%s:%d", key, time.Now().UnixMilli()/r.span.Milliseconds())
	pipe := r.client.TxPipeline()
	incr := pipe.Incr(ctx, bucket)
	pipe.Expire(ctx, bucket, r.span)
	if _, err := pipe.Exec(ctx); err != nil {
		return true, err
	}
	return incr.Val() <= int64(r.limit), nil
}
