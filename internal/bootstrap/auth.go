package bootstrap

import (
	"context"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/o4o-platform/ai-gateway/config"
	"github.com/o4o-platform/ai-gateway/internal/adapters/devauth"
	"github.com/o4o-platform/ai-gateway/internal/adapters/oidc"
	redisadapter "github.com/o4o-platform/ai-gateway/internal/adapters/redis"
	"github.com/o4o-platform/ai-gateway/internal/ports"
	"github.com/o4o-platform/ai-gateway/internal/service"
)

// AuthConfig contains configuration for auth service construction.
type AuthConfig struct {
	Auth        config.AuthConfig
	RedisClient redis.UniversalClient
	IsDev       bool
	Logger      *slog.Logger
}

// BuildAuthService creates an auth service based on the configured auth mode.
// Returns nil if auth configuration is invalid or incomplete; the router then
// runs without authentication, which is only acceptable for local tooling.
func BuildAuthService(ctx context.Context, cfg AuthConfig) *service.AuthService {
	verifier := buildTokenVerifier(ctx, cfg)
	if verifier == nil {
		return nil
	}

	// A Redis-backed identity cache lets repeated requests skip signature
	// verification; without Redis the service verifies every request.
	var cache ports.IdentityCache
	if cfg.RedisClient != nil && cfg.Auth.IdentityCacheTTL > 0 {
		cache = redisadapter.NewIdentityCache(cfg.RedisClient)
	}

	svc, err := service.NewAuthService(service.AuthServiceOptions{
		Verifier: verifier,
		Cache:    cache,
		Logger:   cfg.Logger,
	})
	if err != nil {
		if cfg.Logger != nil {
			cfg.Logger.Warn("failed to create auth service, auth disabled", "error", err)
		}
		return nil
	}
	return svc
}

//nolint:ireturn // verifier selection happens at runtime based on auth mode.
func buildTokenVerifier(ctx context.Context, cfg AuthConfig) ports.TokenVerifier {
	switch cfg.Auth.Mode {
	case config.AuthModeDev:
		return buildDevVerifier(cfg)
	case config.AuthModeOIDC:
		return buildOIDCVerifier(ctx, cfg)
	default:
		return nil
	}
}

//nolint:ireturn // see buildTokenVerifier.
func buildDevVerifier(cfg AuthConfig) ports.TokenVerifier {
	if !cfg.IsDev {
		if cfg.Logger != nil {
			cfg.Logger.Error("dev auth mode requires DEV=true; auth disabled")
		}
		return nil
	}

	verifier, err := devauth.NewVerifier(devauth.Config{
		UserToken:  cfg.Auth.Dev.UserToken,
		AdminToken: cfg.Auth.Dev.AdminToken,
		TokenTTL:   cfg.Auth.Dev.TokenTTL,
	})
	if err != nil {
		if cfg.Logger != nil {
			cfg.Logger.Warn("failed to create dev token verifier, auth disabled", "error", err)
		}
		return nil
	}
	return verifier
}

//nolint:ireturn // see buildTokenVerifier.
func buildOIDCVerifier(ctx context.Context, cfg AuthConfig) ports.TokenVerifier {
	oidcCfg := cfg.Auth.OIDC
	if oidcCfg.IssuerURL == "" || oidcCfg.Audience == "" {
		if cfg.Logger != nil {
			cfg.Logger.Warn("AuthModeOIDC selected but required config missing; auth disabled",
				"issuer_url_empty", oidcCfg.IssuerURL == "",
				"audience_empty", oidcCfg.Audience == "",
			)
		}
		return nil
	}

	verifier, err := oidc.NewVerifier(ctx, oidc.VerifierConfig{
		IssuerURL:  oidcCfg.IssuerURL,
		Audience:   oidcCfg.Audience,
		AdminGroup: oidcCfg.AdminGroup,
	})
	if err != nil {
		if cfg.Logger != nil {
			cfg.Logger.Warn("failed to create OIDC verifier, auth disabled", "error", err)
		}
		return nil
	}
	return verifier
}
