package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	redisadapter "github.com/o4o-platform/ai-gateway/internal/adapters/redis"
	domainauth "github.com/o4o-platform/ai-gateway/internal/domain/auth"
	"github.com/o4o-platform/ai-gateway/internal/testutil"
)

func TestIdentityCacheRoundTrip(t *testing.T) {
	client := testutil.SetupTestRedis(t)
	defer func() {
		require.NoError(t, client.Close())
	}()

	cache := redisadapter.NewIdentityCache(client)
	ctx := context.Background()

	ident := domainauth.Identity{
		UserID:    "user-1",
		Email:     "user-1@example.com",
		Role:      domainauth.RoleAdmin,
		ExpiresAt: time.Now().Add(time.Hour),
	}

	require.NoError(t, cache.Set(ctx, "token-abc", ident, time.Minute))

	got, found, err := cache.Get(ctx, "token-abc")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, ident.UserID, got.UserID)
	require.Equal(t, ident.Email, got.Email)
	require.Equal(t, ident.Role, got.Role)
	require.True(t, got.IsAdmin())

	require.NoError(t, cache.Delete(ctx, "token-abc"))

	_, found, err = cache.Get(ctx, "token-abc")
	require.NoError(t, err)
	require.False(t, found)
}

func TestIdentityCacheMissingKey(t *testing.T) {
	client := testutil.SetupTestRedis(t)
	defer func() {
		require.NoError(t, client.Close())
	}()

	cache := redisadapter.NewIdentityCache(client)

	_, found, err := cache.Get(context.Background(), "never-set")
	require.NoError(t, err)
	require.False(t, found)

	// Empty keys are treated as a miss, not an error.
	_, found, err = cache.Get(context.Background(), "")
	require.NoError(t, err)
	require.False(t, found)
}

func TestIdentityCacheSetValidation(t *testing.T) {
	client := testutil.SetupTestRedis(t)
	defer func() {
		require.NoError(t, client.Close())
	}()

	cache := redisadapter.NewIdentityCache(client)
	ident := domainauth.Identity{UserID: "user-1", ExpiresAt: time.Now().Add(time.Hour)}

	require.Error(t, cache.Set(context.Background(), "", ident, time.Minute))
	require.Error(t, cache.Set(context.Background(), "token-abc", ident, 0))
}

func TestIdentityCacheDropsExpiredIdentity(t *testing.T) {
	client := testutil.SetupTestRedis(t)
	defer func() {
		require.NoError(t, client.Close())
	}()

	cache := redisadapter.NewIdentityCache(client)
	ctx := context.Background()

	// The TTL keeps the key alive, but the identity itself is already expired.
	ident := domainauth.Identity{
		UserID:    "user-1",
		ExpiresAt: time.Now().Add(-time.Minute),
	}
	require.NoError(t, cache.Set(ctx, "token-stale", ident, time.Minute))

	_, found, err := cache.Get(ctx, "token-stale")
	require.NoError(t, err)
	require.False(t, found)
}

func TestIdentityCacheCustomPrefix(t *testing.T) {
	client := testutil.SetupTestRedis(t)
	defer func() {
		require.NoError(t, client.Close())
	}()

	ctx := context.Background()
	ident := domainauth.Identity{UserID: "user-1", ExpiresAt: time.Now().Add(time.Hour)}

	cacheA := redisadapter.NewIdentityCacheWithPrefix(client, "a:")
	cacheB := redisadapter.NewIdentityCacheWithPrefix(client, "b:")

	require.NoError(t, cacheA.Set(ctx, "token", ident, time.Minute))

	_, found, err := cacheB.Get(ctx, "token")
	require.NoError(t, err)
	require.False(t, found)

	_, found, err = cacheA.Get(ctx, "token")
	require.NoError(t, err)
	require.True(t, found)
}
