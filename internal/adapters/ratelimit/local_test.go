package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalRateLimiter_AllowsWithinBurst(t *testing.T) {
	limiter := NewLocalRateLimiter(LocalRateLimiterOptions{Limit: 3, Window: time.Minute})
	ctx := context.Background()

	for i := range 3 {
		decision, err := limiter.Allow(ctx, "user-1")
		require.NoError(t, err)
		assert.True(t, decision.Allowed, "request %d should be allowed", i+1)
	}

	decision, err := limiter.Allow(ctx, "user-1")
	require.NoError(t, err)
	assert.False(t, decision.Allowed)
	assert.GreaterOrEqual(t, decision.RetryAfter, time.Second)
}

func TestLocalRateLimiter_OwnersAreIndependent(t *testing.T) {
	limiter := NewLocalRateLimiter(LocalRateLimiterOptions{Limit: 1, Window: time.Minute})
	ctx := context.Background()

	first, err := limiter.Allow(ctx, "user-1")
	require.NoError(t, err)
	assert.True(t, first.Allowed)

	blocked, err := limiter.Allow(ctx, "user-1")
	require.NoError(t, err)
	assert.False(t, blocked.Allowed)

	other, err := limiter.Allow(ctx, "user-2")
	require.NoError(t, err)
	assert.True(t, other.Allowed, "a different owner has its own budget")
}
