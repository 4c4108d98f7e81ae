package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log/slog"
	"strings"
	"time"

	domainauth "github.com/o4o-platform/ai-gateway/internal/domain/auth"
	apperrors "github.com/o4o-platform/ai-gateway/internal/errors"
	"github.com/o4o-platform/ai-gateway/internal/ports"
)

// maxCacheTTL caps how long a verified identity is reused before the token is
// re-verified, regardless of its remaining lifetime.
const maxCacheTTL = 5 * time.Minute

// AuthServiceOptions groups dependencies for AuthService.
type AuthServiceOptions struct {
	Verifier ports.TokenVerifier // Required: bearer token verification
	Cache    ports.IdentityCache // Optional: verified-identity cache
	Logger   *slog.Logger        // Optional: structured logger
}

// AuthService resolves bearer tokens into identities, memoizing successful
// verifications so repeated calls with the same token skip signature checks.
type AuthService struct {
	verifier ports.TokenVerifier
	cache    ports.IdentityCache
	logger   *slog.Logger
}

// NewAuthService constructs a new AuthService.
func NewAuthService(opts AuthServiceOptions) (*AuthService, error) {
	if opts.Verifier == nil {
		return nil, errors.New("TokenVerifier is required")
	}

	var logger *slog.Logger
	if opts.Logger != nil {
		logger = opts.Logger.With("component", "auth_service")
	}

	return &AuthService{
		verifier: opts.Verifier,
		cache:    opts.Cache,
		logger:   logger,
	}, nil
}

// Authenticate verifies a bearer token and returns the identity behind it.
func (s *AuthService) Authenticate(ctx context.Context, rawToken string) (domainauth.Identity, error) {
	token := strings.TrimSpace(rawToken)
	if token == "" {
		return domainauth.Identity{}, apperrors.Auth("bearer token is required")
	}

	key := cacheKey(token)
	if s.cache != nil {
		if ident, ok, err := s.cache.Get(ctx, key); err == nil && ok {
			if time.Now().Before(ident.ExpiresAt) {
				return ident, nil
			}
			// Expired while cached; drop the stale entry and re-verify.
			_ = s.cache.Delete(ctx, key)
		} else if err != nil && s.logger != nil {
			s.logger.DebugContext(ctx, "identity cache read failed", "error", err)
		}
	}

	ident, err := s.verifier.Verify(ctx, token)
	if err != nil {
		if apperrors.IsAuth(err) {
			return domainauth.Identity{}, err
		}
		return domainauth.Identity{}, apperrors.Wrap(err, apperrors.ErrCodeAuth, "verify token")
	}

	if time.Now().After(ident.ExpiresAt) {
		return domainauth.Identity{}, apperrors.Auth("token expired")
	}

	if s.cache != nil {
		ttl := min(time.Until(ident.ExpiresAt), maxCacheTTL)
		if ttl > 0 {
			if err := s.cache.Set(ctx, key, ident, ttl); err != nil && s.logger != nil {
				s.logger.DebugContext(ctx, "identity cache write failed", "error", err)
			}
		}
	}

	return ident, nil
}

// cacheKey hashes the token so raw credentials never land in the cache.
func cacheKey(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
