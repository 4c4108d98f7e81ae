package devauth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainauth "github.com/o4o-platform/ai-gateway/internal/domain/auth"
	apperrors "github.com/o4o-platform/ai-gateway/internal/errors"
)

func TestVerifier_UserToken(t *testing.T) {
	v, err := NewVerifier(Config{UserToken: "local-user", AdminToken: "local-admin"})
	require.NoError(t, err)

	ident, err := v.Verify(context.Background(), "local-user")
	require.NoError(t, err)
	assert.Equal(t, "dev-user", ident.UserID)
	assert.Equal(t, domainauth.RoleUser, ident.Role)
	assert.True(t, ident.ExpiresAt.After(time.Now()))
}

func TestVerifier_AdminToken(t *testing.T) {
	v, err := NewVerifier(Config{UserToken: "local-user", AdminToken: "local-admin"})
	require.NoError(t, err)

	ident, err := v.Verify(context.Background(), "local-admin")
	require.NoError(t, err)
	assert.Equal(t, "dev-admin", ident.UserID)
	assert.True(t, ident.IsAdmin())
}

func TestVerifier_UnknownToken(t *testing.T) {
	v, err := NewVerifier(Config{UserToken: "local-user"})
	require.NoError(t, err)

	_, err = v.Verify(context.Background(), "wrong")
	require.Error(t, err)
	assert.True(t, apperrors.IsAuth(err))
}

func TestVerifier_AdminDisabledWhenUnset(t *testing.T) {
	v, err := NewVerifier(Config{UserToken: "local-user"})
	require.NoError(t, err)

	_, err = v.Verify(context.Background(), "")
	require.Error(t, err)
	assert.True(t, apperrors.IsAuth(err))
}

func TestNewVerifier_RequiresUserToken(t *testing.T) {
	_, err := NewVerifier(Config{})
	require.Error(t, err)
}
