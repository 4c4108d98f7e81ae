package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	domainauth "github.com/o4o-platform/ai-gateway/internal/domain/auth"
	"github.com/o4o-platform/ai-gateway/internal/ports"
)

var _ ports.IdentityCache = (*IdentityCache)(nil)

// IdentityCache is a Redis-backed cache for verified bearer identities.
// Entries carry a TTL so a revoked token is re-verified shortly after.
type IdentityCache struct {
	client redis.UniversalClient
	prefix string
}

// NewIdentityCache creates a new Redis-backed identity cache.
func NewIdentityCache(client redis.UniversalClient) *IdentityCache {
	return &IdentityCache{
		client: client,
		prefix: "identity:",
	}
}

// NewIdentityCacheWithPrefix creates an identity cache with a custom key prefix.
func NewIdentityCacheWithPrefix(client redis.UniversalClient, prefix string) *IdentityCache {
	return &IdentityCache{
		client: client,
		prefix: prefix,
	}
}

func (c *IdentityCache) Get(ctx context.Context, key string) (domainauth.Identity, bool, error) {
	if key == "" {
		return domainauth.Identity{}, false, nil
	}

	data, err := c.client.Get(ctx, c.prefix+key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domainauth.Identity{}, false, nil
		}
		return domainauth.Identity{}, false, fmt.Errorf("redis get: %w", err)
	}

	var ident domainauth.Identity
	if unmarshalErr := json.Unmarshal([]byte(data), &ident); unmarshalErr != nil {
		return domainauth.Identity{}, false, fmt.Errorf("unmarshal identity: %w", unmarshalErr)
	}

	// The Redis TTL normally evicts these first; clock skew can leave a stale entry.
	if time.Now().After(ident.ExpiresAt) {
		if deleteErr := c.Delete(ctx, key); deleteErr != nil {
			return domainauth.Identity{}, false, fmt.Errorf("cleanup expired identity: %w", deleteErr)
		}
		return domainauth.Identity{}, false, nil
	}

	return ident, true, nil
}

func (c *IdentityCache) Set(ctx context.Context, key string, ident domainauth.Identity, ttl time.Duration) error {
	if key == "" {
		return errors.New("cache key cannot be empty")
	}
	if ttl <= 0 {
		return errors.New("ttl must be positive")
	}

	data, err := json.Marshal(ident)
	if err != nil {
		return fmt.Errorf("marshal identity: %w", err)
	}

	return c.client.Set(ctx, c.prefix+key, data, ttl).Err()
}

func (c *IdentityCache) Delete(ctx context.Context, key string) error {
	if key == "" {
		return nil // Nothing to delete
	}
	return c.client.Del(ctx, c.prefix+key).Err()
}
