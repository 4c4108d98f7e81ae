package provider

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/o4o-platform/ai-gateway/internal/domain/model"
	apperrors "github.com/o4o-platform/ai-gateway/internal/errors"
)

type stubClient struct {
	provider model.Provider
	result   *model.GenerationResult
	err      error
	delay    time.Duration
	calls    int
}

func (s *stubClient) Provider() model.Provider { return s.provider }

func (s *stubClient) Generate(ctx context.Context, _ model.GenerationSpec) (*model.GenerationResult, error) {
	s.calls++
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

func validSpec() model.GenerationSpec {
	return model.GenerationSpec{
		Provider:   model.ProviderOpenAI,
		Model:      "gpt-4o",
		UserPrompt: "hi",
	}
}

func TestNewRegistry_RequiresClients(t *testing.T) {
	_, err := NewRegistry(RegistryOptions{Whitelist: model.DefaultWhitelist()})
	require.Error(t, err)
}

func TestNewRegistry_RejectsDuplicateProviders(t *testing.T) {
	_, err := NewRegistry(RegistryOptions{
		Clients: []Client{
			&stubClient{provider: model.ProviderOpenAI},
			&stubClient{provider: model.ProviderOpenAI},
		},
		Whitelist: model.DefaultWhitelist(),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate client")
}

func TestRegistry_Generate_Dispatches(t *testing.T) {
	stub := &stubClient{
		provider: model.ProviderOpenAI,
		result:   &model.GenerationResult{Text: "hello", Usage: model.Usage{TotalTokens: 5}},
	}
	registry := MustNewRegistry(RegistryOptions{
		Clients:   []Client{stub},
		Whitelist: model.DefaultWhitelist(),
	})

	result, err := registry.Generate(context.Background(), validSpec())
	require.NoError(t, err)
	assert.Equal(t, "hello", result.Text)
	assert.Equal(t, 1, stub.calls)
}

func TestRegistry_Generate_RejectsNonWhitelistedModel(t *testing.T) {
	stub := &stubClient{provider: model.ProviderOpenAI}
	registry := MustNewRegistry(RegistryOptions{
		Clients:   []Client{stub},
		Whitelist: model.DefaultWhitelist(),
	})

	spec := validSpec()
	spec.Model = "gpt-99-ultra"
	_, err := registry.Generate(context.Background(), spec)
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
	assert.Zero(t, stub.calls, "client must not be called for rejected specs")
}

func TestRegistry_Generate_RejectsUnconfiguredProvider(t *testing.T) {
	registry := MustNewRegistry(RegistryOptions{
		Clients:   []Client{&stubClient{provider: model.ProviderClaude}},
		Whitelist: model.DefaultWhitelist(),
	})

	_, err := registry.Generate(context.Background(), validSpec())
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
	assert.Contains(t, err.Error(), "no client configured")
}

func TestRegistry_Generate_TimesOutSlowClients(t *testing.T) {
	stub := &stubClient{
		provider: model.ProviderOpenAI,
		delay:    500 * time.Millisecond,
		result:   &model.GenerationResult{Text: "too late"},
	}
	registry := MustNewRegistry(RegistryOptions{
		Clients:     []Client{stub},
		Whitelist:   model.DefaultWhitelist(),
		CallTimeout: 50 * time.Millisecond,
	})

	_, err := registry.Generate(context.Background(), validSpec())
	require.Error(t, err)
	assert.True(t, apperrors.IsTimeout(err))
}

func TestRegistry_Generate_PassesThroughClientErrors(t *testing.T) {
	stub := &stubClient{
		provider: model.ProviderOpenAI,
		err:      apperrors.RateLimited("openai rate limit exceeded", 10*time.Second),
	}
	registry := MustNewRegistry(RegistryOptions{
		Clients:   []Client{stub},
		Whitelist: model.DefaultWhitelist(),
	})

	_, err := registry.Generate(context.Background(), validSpec())
	require.Error(t, err)
	assert.True(t, apperrors.IsRateLimit(err))
	assert.Equal(t, 10*time.Second, apperrors.GetRetryAfter(err))
}

func TestRegistry_Whitelist(t *testing.T) {
	registry := MustNewRegistry(RegistryOptions{
		Clients:   []Client{&stubClient{provider: model.ProviderOpenAI}},
		Whitelist: model.DefaultWhitelist(),
	})

	wl := registry.Whitelist()
	assert.True(t, wl.AllowsModel(model.ProviderOpenAI, "gpt-4o"))
}
