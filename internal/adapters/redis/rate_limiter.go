// Package redis holds the Redis-backed adapters: the sliding-window
// rate limiter and the identity cache.
package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/o4o-platform/ai-gateway/internal/ports"
)

const (
	defaultRateLimit  = 20
	defaultRateWindow = time.Minute
)

var _ ports.RateLimiter = (*RateLimiter)(nil)

// RateLimiter enforces a per-owner sliding-window request limit backed by a
// Redis sorted set. Each request is a member scored by its nanosecond
// timestamp; members older than the window are trimmed on every call, so the
// count after trimming is the number of requests inside the window.
type RateLimiter struct {
	client redis.UniversalClient
	prefix string
	limit  int
	window time.Duration
}

// RateLimiterOptions configures the Redis rate limiter.
type RateLimiterOptions struct {
	Client redis.UniversalClient // Required
	Limit  int                   // Requests per window; defaults to 20
	Window time.Duration         // Window size; defaults to 1m
	Prefix string                // Key prefix; defaults to "ratelimit:"
}

// NewRateLimiter creates a new Redis-backed sliding-window rate limiter.
func NewRateLimiter(opts RateLimiterOptions) (*RateLimiter, error) {
	if opts.Client == nil {
		return nil, fmt.Errorf("redis client is required")
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = defaultRateLimit
	}
	window := opts.Window
	if window <= 0 {
		window = defaultRateWindow
	}
	prefix := opts.Prefix
	if prefix == "" {
		prefix = "ratelimit:"
	}

	return &RateLimiter{
		client: opts.Client,
		prefix: prefix,
		limit:  limit,
		window: window,
	}, nil
}

// Allow records the request attempt and reports whether it fits the window.
// Denied requests are not recorded, so a client hammering the limit does not
// push its own recovery point further out.
func (l *RateLimiter) Allow(ctx context.Context, ownerID string) (ports.RateLimitDecision, error) {
	if ownerID == "" {
		return ports.RateLimitDecision{}, fmt.Errorf("owner id is required")
	}

	key := l.prefix + ownerID
	now := time.Now()
	cutoff := now.Add(-l.window)

	pipe := l.client.TxPipeline()
	pipe.ZRemRangeByScore(ctx, key, "0", strconv.FormatInt(cutoff.UnixNano(), 10))
	countCmd := pipe.ZCard(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return ports.RateLimitDecision{}, fmt.Errorf("rate limit window trim: %w", err)
	}

	count := int(countCmd.Val())
	if count >= l.limit {
		retryAfter, err := l.retryAfter(ctx, key, now)
		if err != nil {
			return ports.RateLimitDecision{}, err
		}
		return ports.RateLimitDecision{Allowed: false, RetryAfter: retryAfter}, nil
	}

	record := l.client.TxPipeline()
	record.ZAdd(ctx, key, redis.Z{
		Score:  float64(now.UnixNano()),
		Member: strconv.FormatInt(now.UnixNano(), 10),
	})
	record.Expire(ctx, key, l.window)
	if _, err := record.Exec(ctx); err != nil {
		return ports.RateLimitDecision{}, fmt.Errorf("rate limit record: %w", err)
	}

	return ports.RateLimitDecision{
		Allowed:   true,
		Remaining: l.limit - count - 1,
	}, nil
}

// retryAfter derives the wait from the oldest request still in the window:
// once it ages out, one slot frees up.
func (l *RateLimiter) retryAfter(ctx context.Context, key string, now time.Time) (time.Duration, error) {
	oldest, err := l.client.ZRangeWithScores(ctx, key, 0, 0).Result()
	if err != nil {
		return 0, fmt.Errorf("rate limit oldest entry: %w", err)
	}
	if len(oldest) == 0 {
		return time.Second, nil
	}

	oldestAt := time.Unix(0, int64(oldest[0].Score))
	wait := oldestAt.Add(l.window).Sub(now)
	if wait < time.Second {
		wait = time.Second
	}
	return wait, nil
}
