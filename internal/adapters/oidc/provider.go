package oidc

// Package oidc verifies bearer JWTs against an OIDC issuer's signing keys.

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	gooidc "github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"

	"github.com/o4o-platform/ai-gateway/internal/adapters/authroles"
	domainauth "github.com/o4o-platform/ai-gateway/internal/domain/auth"
	apperrors "github.com/o4o-platform/ai-gateway/internal/errors"
	"github.com/o4o-platform/ai-gateway/internal/ports"
)

var _ ports.TokenVerifier = (*Verifier)(nil)

// Verifier validates bearer tokens issued by an OIDC provider and maps their
// claims into a gateway identity. Discovery runs once at construction; the
// JWKS key set refreshes itself behind the go-oidc verifier.
type Verifier struct {
	verifier *gooidc.IDTokenVerifier
	roles    authroles.StaticRoleMapper
}

// VerifierConfig holds configuration for the OIDC token verifier.
type VerifierConfig struct {
	IssuerURL  string // Required: issuer base URL, used for discovery
	Audience   string // Required: expected aud claim (the gateway's client id)
	AdminGroup string // Optional: group claim granting the admin role
	HTTPClient *http.Client
}

// tokenClaims is the superset of claim shapes accepted from the issuer.
type tokenClaims struct {
	Sub    string   `json:"sub"`
	Email  string   `json:"email"`
	Groups []string `json:"groups"`
	Roles  []string `json:"roles"`
}

// NewVerifier creates a new OIDC bearer token verifier.
func NewVerifier(ctx context.Context, config VerifierConfig) (*Verifier, error) {
	if config.IssuerURL == "" {
		return nil, errors.New("issuer URL is required")
	}
	if config.Audience == "" {
		return nil, errors.New("audience is required")
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, httpClient)
	provider, err := gooidc.NewProvider(ctx, config.IssuerURL)
	if err != nil {
		return nil, fmt.Errorf("oidc discovery: %w", err)
	}

	return &Verifier{
		verifier: provider.Verifier(&gooidc.Config{ClientID: config.Audience}),
		roles:    authroles.StaticRoleMapper{AdminGroup: config.AdminGroup},
	}, nil
}

// Verify validates the raw bearer token and returns the identity behind it.
// Signature, issuer, audience, and expiry checks all happen inside go-oidc;
// any of them failing surfaces as an auth error.
func (v *Verifier) Verify(ctx context.Context, rawToken string) (domainauth.Identity, error) {
	token, err := v.verifier.Verify(ctx, rawToken)
	if err != nil {
		return domainauth.Identity{}, apperrors.Wrap(err, apperrors.ErrCodeAuth, "invalid bearer token")
	}

	var claims tokenClaims
	if err := token.Claims(&claims); err != nil {
		return domainauth.Identity{}, apperrors.Wrap(err, apperrors.ErrCodeAuth, "parse token claims")
	}
	if claims.Sub == "" {
		return domainauth.Identity{}, apperrors.Auth("token missing sub claim")
	}

	groups := claims.Groups
	if len(groups) == 0 {
		groups = claims.Roles
	}

	return domainauth.Identity{
		UserID:    claims.Sub,
		Email:     claims.Email,
		Role:      v.roles.Map(groups),
		ExpiresAt: token.Expiry,
	}, nil
}
