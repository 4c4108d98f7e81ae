// Package ratelimit provides an in-process rate limiter used when Redis is
// not configured. Limits are per instance, so a multi-replica deployment
// should prefer the Redis limiter.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/o4o-platform/ai-gateway/internal/ports"
)

const (
	defaultLimit  = 20
	defaultWindow = time.Minute

	// idleEviction bounds memory: owners quiet for this long are dropped.
	idleEviction = 10 * time.Minute
)

var _ ports.RateLimiter = (*LocalRateLimiter)(nil)

type ownerLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// LocalRateLimiter enforces a per-owner token-bucket limit in process memory.
type LocalRateLimiter struct {
	mu     sync.Mutex
	owners map[string]*ownerLimiter
	rate   rate.Limit
	burst  int
}

// LocalRateLimiterOptions configures the in-process limiter.
type LocalRateLimiterOptions struct {
	Limit  int           // Requests per window; defaults to 20
	Window time.Duration // Window size; defaults to 1m
}

// NewLocalRateLimiter creates a new in-process per-owner rate limiter.
func NewLocalRateLimiter(opts LocalRateLimiterOptions) *LocalRateLimiter {
	limit := opts.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	window := opts.Window
	if window <= 0 {
		window = defaultWindow
	}

	return &LocalRateLimiter{
		owners: make(map[string]*ownerLimiter),
		rate:   rate.Limit(float64(limit) / window.Seconds()),
		burst:  limit,
	}
}

// Allow reports whether the owner may make another request right now.
func (l *LocalRateLimiter) Allow(_ context.Context, ownerID string) (ports.RateLimitDecision, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	l.evictIdle(now)

	entry, ok := l.owners[ownerID]
	if !ok {
		entry = &ownerLimiter{limiter: rate.NewLimiter(l.rate, l.burst)}
		l.owners[ownerID] = entry
	}
	entry.lastSeen = now

	reservation := entry.limiter.Reserve()
	delay := reservation.Delay()
	if delay > 0 {
		reservation.Cancel()
		retryAfter := delay
		if retryAfter < time.Second {
			retryAfter = time.Second
		}
		return ports.RateLimitDecision{Allowed: false, RetryAfter: retryAfter}, nil
	}

	return ports.RateLimitDecision{
		Allowed:   true,
		Remaining: int(entry.limiter.Tokens()),
	}, nil
}

func (l *LocalRateLimiter) evictIdle(now time.Time) {
	for owner, entry := range l.owners {
		if now.Sub(entry.lastSeen) > idleEviction {
			delete(l.owners, owner)
		}
	}
}
