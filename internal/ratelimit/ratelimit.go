// Package ratelimit provides redis-backed fixed-window rate limiting for
// socket actions and HTTP endpoints.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrRateLimited is returned when a window's limit is exceeded.
var ErrRateLimited = errors.New("rate limit exceeded")

// Limiter counts actions in fixed windows keyed by action name and caller
// identity. Redis failures fail open: availability beats throttling here.
type Limiter struct {
	redis  *redis.Client
	logger *slog.Logger
}

func NewLimiter(redisClient *redis.Client, logger *slog.Logger) *Limiter {
	return &Limiter{
		redis:  redisClient,
		logger: logger.With("component", "ratelimit"),
	}
}

// Allow records one occurrence of action by id and reports whether it stays
// within limit per window.
func (l *Limiter) Allow(ctx context.Context, action, id string, limit int, window time.Duration) error {
	if l == nil || l.redis == nil {
		return nil
	}

	key := fmt.Sprintf("ratelimit:%s:%s", action, id)
	count, err := l.redis.Incr(ctx, key).Result()
	if err != nil {
		l.logger.Warn("rate limit check failed, allowing", "action", action, "error", err)
		return nil
	}
	if count == 1 {
		l.redis.Expire(ctx, key, window)
	}
	if int(count) > limit {
		return ErrRateLimited
	}
	return nil
}
