package auth

// Package auth contains simple hand-written test doubles for auth ports.
// These are lightweight and suitable for unit tests without codegen.

import (
	"context"
	"sync"
	"time"

	domainauth "github.com/o4o-platform/ai-gateway/internal/domain/auth"
	apperrors "github.com/o4o-platform/ai-gateway/internal/errors"
	"github.com/o4o-platform/ai-gateway/internal/ports"
)

// Ensure compile-time conformance to ports.
var (
	_ ports.TokenVerifier = (*MockTokenVerifier)(nil)
	_ ports.IdentityCache = (*MemoryIdentityCache)(nil)
	_ ports.RateLimiter   = (*MockRateLimiter)(nil)
)

// MockTokenVerifier simulates a token verifier with a static token table.
type MockTokenVerifier struct {
	VerifyFunc func(ctx context.Context, rawToken string) (domainauth.Identity, error)

	// Tokens maps raw tokens to identities for the default behaviour.
	Tokens map[string]domainauth.Identity

	mu    sync.Mutex
	calls int
}

// NewMockTokenVerifier creates a MockTokenVerifier with one known user token.
func NewMockTokenVerifier() *MockTokenVerifier {
	return &MockTokenVerifier{
		Tokens: map[string]domainauth.Identity{
			"user-token": {
				UserID:    "mock-user-1",
				Email:     "mock.user@example.com",
				Role:      domainauth.RoleUser,
				ExpiresAt: time.Now().Add(time.Hour),
			},
			"admin-token": {
				UserID:    "mock-admin-1",
				Email:     "mock.admin@example.com",
				Role:      domainauth.RoleAdmin,
				ExpiresAt: time.Now().Add(time.Hour),
			},
		},
	}
}

func (m *MockTokenVerifier) Verify(ctx context.Context, rawToken string) (domainauth.Identity, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()

	if m.VerifyFunc != nil {
		return m.VerifyFunc(ctx, rawToken)
	}

	ident, ok := m.Tokens[rawToken]
	if !ok {
		return domainauth.Identity{}, apperrors.Auth("unknown token")
	}
	return ident, nil
}

// Calls reports how many times Verify was invoked.
func (m *MockTokenVerifier) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

type cachedIdentity struct {
	ident     domainauth.Identity
	expiresAt time.Time
}

// MemoryIdentityCache is an in-memory identity cache for unit tests.
type MemoryIdentityCache struct {
	mu      sync.Mutex
	entries map[string]cachedIdentity
}

// NewMemoryIdentityCache creates a new in-memory identity cache.
func NewMemoryIdentityCache() *MemoryIdentityCache {
	return &MemoryIdentityCache{
		entries: make(map[string]cachedIdentity),
	}
}

func (m *MemoryIdentityCache) Get(_ context.Context, key string) (domainauth.Identity, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.entries[key]
	if !ok || time.Now().After(entry.expiresAt) {
		delete(m.entries, key)
		return domainauth.Identity{}, false, nil
	}
	return entry.ident, true, nil
}

func (m *MemoryIdentityCache) Set(_ context.Context, key string, ident domainauth.Identity, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries[key] = cachedIdentity{ident: ident, expiresAt: time.Now().Add(ttl)}
	return nil
}

func (m *MemoryIdentityCache) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.entries, key)
	return nil
}

// Len reports the number of live entries.
func (m *MemoryIdentityCache) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// MockRateLimiter allows or denies with a fixed decision per owner.
type MockRateLimiter struct {
	AllowFunc func(ctx context.Context, ownerID string) (ports.RateLimitDecision, error)

	// Denied owners receive a deny decision; everyone else is allowed.
	Denied     map[string]bool
	RetryAfter time.Duration
}

func (m *MockRateLimiter) Allow(ctx context.Context, ownerID string) (ports.RateLimitDecision, error) {
	if m.AllowFunc != nil {
		return m.AllowFunc(ctx, ownerID)
	}
	if m.Denied[ownerID] {
		return ports.RateLimitDecision{Allowed: false, RetryAfter: m.RetryAfter}, nil
	}
	return ports.RateLimitDecision{Allowed: true, Remaining: 1}, nil
}
