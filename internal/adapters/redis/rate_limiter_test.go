package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	redisadapter "github.com/o4o-platform/ai-gateway/internal/adapters/redis"
	"github.com/o4o-platform/ai-gateway/internal/testutil"
)

func TestNewRateLimiterRequiresClient(t *testing.T) {
	_, err := redisadapter.NewRateLimiter(redisadapter.RateLimiterOptions{})
	require.Error(t, err)
}

func TestRateLimiterAllowsUpToLimit(t *testing.T) {
	client := testutil.SetupTestRedis(t)
	defer func() {
		require.NoError(t, client.Close())
	}()

	limiter, err := redisadapter.NewRateLimiter(redisadapter.RateLimiterOptions{
		Client: client,
		Limit:  3,
		Window: time.Minute,
	})
	require.NoError(t, err)

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		decision, allowErr := limiter.Allow(ctx, "user-1")
		require.NoError(t, allowErr)
		require.True(t, decision.Allowed)
		require.Equal(t, 2-i, decision.Remaining)
	}

	decision, err := limiter.Allow(ctx, "user-1")
	require.NoError(t, err)
	require.False(t, decision.Allowed)
	require.GreaterOrEqual(t, decision.RetryAfter, time.Second)

	// Limits are per owner.
	decision, err = limiter.Allow(ctx, "user-2")
	require.NoError(t, err)
	require.True(t, decision.Allowed)
}

func TestRateLimiterDeniedRequestsAreNotRecorded(t *testing.T) {
	client := testutil.SetupTestRedis(t)
	defer func() {
		require.NoError(t, client.Close())
	}()

	limiter, err := redisadapter.NewRateLimiter(redisadapter.RateLimiterOptions{
		Client: client,
		Limit:  1,
		Window: 2 * time.Second,
	})
	require.NoError(t, err)

	ctx := context.Background()
	decision, err := limiter.Allow(ctx, "user-1")
	require.NoError(t, err)
	require.True(t, decision.Allowed)

	for i := 0; i < 5; i++ {
		decision, err = limiter.Allow(ctx, "user-1")
		require.NoError(t, err)
		require.False(t, decision.Allowed)
	}

	// Once the single recorded request ages out, a slot frees up even
	// though denied attempts kept arriving.
	time.Sleep(2100 * time.Millisecond)

	decision, err = limiter.Allow(ctx, "user-1")
	require.NoError(t, err)
	require.True(t, decision.Allowed)
}

func TestRateLimiterRejectsEmptyOwner(t *testing.T) {
	client := testutil.SetupTestRedis(t)
	defer func() {
		require.NoError(t, client.Close())
	}()

	limiter, err := redisadapter.NewRateLimiter(redisadapter.RateLimiterOptions{Client: client})
	require.NoError(t, err)

	_, err = limiter.Allow(context.Background(), "")
	require.Error(t, err)
}
