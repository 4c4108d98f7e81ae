package ports

// Package ports defines interfaces (hexagonal ports) for auth and traffic
// shaping. Implementations live in internal/adapters; orchestration in
// internal/service.

import (
	"context"
	"time"

	domainauth "github.com/o4o-platform/ai-gateway/internal/domain/auth"
)

// TokenVerifier validates a bearer token and resolves the identity behind it.
type TokenVerifier interface {
	Verify(ctx context.Context, rawToken string) (domainauth.Identity, error)
}

// IdentityCache memoizes verified identities keyed by token hash so hot
// callers do not pay signature verification on every request.
type IdentityCache interface {
	Get(ctx context.Context, key string) (domainauth.Identity, bool, error)
	Set(ctx context.Context, key string, ident domainauth.Identity, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// RateLimitDecision reports the outcome of one rate limit check.
type RateLimitDecision struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

// RateLimiter enforces per-owner submission limits.
type RateLimiter interface {
	Allow(ctx context.Context, ownerID string) (RateLimitDecision, error)
}
