package oidc

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewVerifier_RequiresIssuer(t *testing.T) {
	_, err := NewVerifier(context.Background(), VerifierConfig{Audience: "ai-gateway"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "issuer URL")
}

func TestNewVerifier_RequiresAudience(t *testing.T) {
	_, err := NewVerifier(context.Background(), VerifierConfig{IssuerURL: "https://issuer.example.com"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "audience")
}
