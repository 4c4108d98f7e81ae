package devauth

// Package devauth provides a config-driven token verifier for local
// development. Tokens are plain shared strings, not JWTs.

import (
	"context"
	"crypto/subtle"
	"errors"
	"time"

	domainauth "github.com/o4o-platform/ai-gateway/internal/domain/auth"
	apperrors "github.com/o4o-platform/ai-gateway/internal/errors"
	"github.com/o4o-platform/ai-gateway/internal/ports"
)

var _ ports.TokenVerifier = (*Verifier)(nil)

// Config controls the dev token verifier. UserToken is required; AdminToken
// may be empty to disable the admin identity.
type Config struct {
	UserToken  string
	AdminToken string
	TokenTTL   time.Duration // default 8h when zero
}

// Verifier implements ports.TokenVerifier for local development with two
// fixed tokens. Never enable it outside a dev environment.
type Verifier struct {
	userToken  string
	adminToken string
	ttl        time.Duration
}

// NewVerifier constructs a dev token verifier from Config.
func NewVerifier(cfg Config) (*Verifier, error) {
	if cfg.UserToken == "" {
		return nil, errors.New("dev auth: UserToken is required")
	}
	ttl := cfg.TokenTTL
	if ttl == 0 {
		ttl = 8 * time.Hour
	}
	return &Verifier{
		userToken:  cfg.UserToken,
		adminToken: cfg.AdminToken,
		ttl:        ttl,
	}, nil
}

// Verify matches the raw token against the configured values. The expiry is
// rolling so a long dev session never forces a restart.
func (v *Verifier) Verify(_ context.Context, rawToken string) (domainauth.Identity, error) {
	expiresAt := time.Now().Add(v.ttl)

	if tokenEqual(rawToken, v.userToken) {
		return domainauth.Identity{
			UserID:    "dev-user",
			Email:     "dev-user@localhost",
			Role:      domainauth.RoleUser,
			ExpiresAt: expiresAt,
		}, nil
	}

	if v.adminToken != "" && tokenEqual(rawToken, v.adminToken) {
		return domainauth.Identity{
			UserID:    "dev-admin",
			Email:     "dev-admin@localhost",
			Role:      domainauth.RoleAdmin,
			ExpiresAt: expiresAt,
		}, nil
	}

	return domainauth.Identity{}, apperrors.Auth("unknown token")
}

func tokenEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
