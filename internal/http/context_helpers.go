package httpx

import (
	"context"

	domainauth "github.com/o4o-platform/ai-gateway/internal/domain/auth"
)

// identityKey is an unexported context key type to avoid collisions across packages.
// Centralized in this file so all handlers/middleware use the same key.
type identityKey struct{}

// SetIdentityInContext returns a child context that carries the given identity.
func SetIdentityInContext(ctx context.Context, ident domainauth.Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, ident)
}

// IdentityFromContext returns the authenticated identity from context and a
// boolean indicating presence. Handlers behind RequireAuth can rely on presence.
func IdentityFromContext(ctx context.Context) (domainauth.Identity, bool) {
	if ident, ok := ctx.Value(identityKey{}).(domainauth.Identity); ok {
		return ident, true
	}
	return domainauth.Identity{}, false
}
