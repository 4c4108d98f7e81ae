package config

import (
	"fmt"
	"strings"
	"time"
)

// AuthMode represents the authentication mode for the application.
type AuthMode string

const (
	// AuthModeOIDC verifies bearer JWTs against an OIDC issuer.
	AuthModeOIDC AuthMode = "oidc"
	// AuthModeDev uses fixed shared tokens (for development only).
	AuthModeDev AuthMode = "dev"
)

// UnmarshalText implements encoding.TextUnmarshaler for AuthMode.
func (a *AuthMode) UnmarshalText(text []byte) error {
	v := strings.ToLower(string(text))
	switch v {
	case "oidc", "dev":
		*a = AuthMode(v)
		return nil
	default:
		return fmt.Errorf("invalid AuthMode: %q (valid options: oidc, dev)", v)
	}
}

// OIDCConfig contains OIDC bearer-token verification configuration.
type OIDCConfig struct {
	// IssuerURL is the issuer base URL, used for discovery and the iss check.
	IssuerURL string `env:"ISSUER_URL"`

	// Audience is the expected aud claim (this gateway's client id).
	Audience string `env:"AUDIENCE"`

	// AdminGroup is the group claim that grants the admin role.
	AdminGroup string `env:"ADMIN_GROUP" envDefault:"ai-gateway-admins"`
}

// DevAuthConfig controls the fixed-token verifier used when AUTH_MODE=dev.
type DevAuthConfig struct {
	UserToken  string        `env:"USER_TOKEN"  envDefault:"dev-user-token"`
	AdminToken string        `env:"ADMIN_TOKEN" envDefault:"dev-admin-token"`
	TokenTTL   time.Duration `env:"TOKEN_TTL"   envDefault:"8h"`
}

// AuthConfig groups all authentication-related configuration.
type AuthConfig struct {
	// Mode determines which token verifier to use.
	Mode AuthMode `env:"AUTH_MODE" envDefault:"oidc"`

	// OIDC configuration (used when Mode=oidc).
	OIDC OIDCConfig `envPrefix:"OIDC_"`

	// Dev configuration (used when Mode=dev).
	Dev DevAuthConfig `envPrefix:"DEV_AUTH_"`

	// IdentityCacheTTL is how long verified identities are cached before the
	// token must be re-verified. Zero disables caching.
	IdentityCacheTTL time.Duration `env:"AUTH_IDENTITY_CACHE_TTL" envDefault:"5m"`
}

// Sanitize applies guardrails to auth configuration values.
func (a *AuthConfig) Sanitize() {
	if a.IdentityCacheTTL < 0 {
		a.IdentityCacheTTL = 0
	}
	if a.Dev.TokenTTL <= 0 {
		a.Dev.TokenTTL = 8 * time.Hour
	}
}
