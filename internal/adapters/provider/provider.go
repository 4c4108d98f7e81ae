// Package provider contains the upstream LLM clients and the registry that
// dispatches generation calls to them.
package provider

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/o4o-platform/ai-gateway/internal/domain/model"
	apperrors "github.com/o4o-platform/ai-gateway/internal/errors"
)

// DefaultCallTimeout bounds every provider call. Exceeding it surfaces as a
// retryable TIMEOUT_ERROR.
const DefaultCallTimeout = 15 * time.Second

// Client generates content for one provider. Implementations return
// *apperrors.AppError values carrying the wire-stable error taxonomy.
type Client interface {
	Provider() model.Provider
	Generate(ctx context.Context, spec model.GenerationSpec) (*model.GenerationResult, error)
}

// RegistryOptions groups dependencies for constructing a Registry.
type RegistryOptions struct {
	Clients     []Client
	Whitelist   model.Whitelist
	CallTimeout time.Duration
	Logger      *slog.Logger
}

// Registry selects the client for a spec's provider via a lookup table built
// at startup. It re-validates the spec against the whitelist as a second line
// of defense behind the API boundary, and enforces the per-call timeout.
type Registry struct {
	clients     map[model.Provider]Client
	whitelist   model.Whitelist
	callTimeout time.Duration
	logger      *slog.Logger
}

// NewRegistry builds the provider lookup table.
func NewRegistry(opts RegistryOptions) (*Registry, error) {
	if len(opts.Clients) == 0 {
		return nil, fmt.Errorf("at least one provider client is required")
	}

	timeout := opts.CallTimeout
	if timeout <= 0 {
		timeout = DefaultCallTimeout
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	clients := make(map[model.Provider]Client, len(opts.Clients))
	for _, c := range opts.Clients {
		if _, dup := clients[c.Provider()]; dup {
			return nil, fmt.Errorf("duplicate client for provider %s", c.Provider())
		}
		clients[c.Provider()] = c
	}

	return &Registry{
		clients:     clients,
		whitelist:   opts.Whitelist,
		callTimeout: timeout,
		logger:      logger,
	}, nil
}

// MustNewRegistry builds the registry or panics. For use in wiring code where
// a construction error is a programming bug.
func MustNewRegistry(opts RegistryOptions) *Registry {
	r, err := NewRegistry(opts)
	if err != nil {
		panic(err)
	}
	return r
}

// Whitelist exposes the allowed provider/model set for the models endpoint.
func (r *Registry) Whitelist() model.Whitelist {
	return r.whitelist
}

// Generate validates the spec, dispatches to the matching client, and bounds
// the call with the registry timeout.
func (r *Registry) Generate(ctx context.Context, spec model.GenerationSpec) (*model.GenerationResult, error) {
	if err := r.whitelist.ValidateSpec(spec); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeValidation, err.Error())
	}

	client, ok := r.clients[spec.Provider]
	if !ok {
		return nil, apperrors.Validationf("no client configured for provider %s", spec.Provider)
	}

	callCtx, cancel := context.WithTimeout(ctx, r.callTimeout)
	defer cancel()

	started := time.Now()
	result, err := client.Generate(callCtx, spec)
	if err != nil {
		if callCtx.Err() != nil && ctx.Err() == nil {
			return nil, apperrors.Wrapf(
				callCtx.Err(),
				apperrors.ErrCodeTimeout,
				"%s call exceeded %s", spec.Provider, r.callTimeout,
			)
		}
		return nil, err
	}

	r.logger.DebugContext(ctx, "provider call completed",
		"provider", spec.Provider,
		"model", spec.Model,
		"duration_ms", time.Since(started).Milliseconds(),
		"total_tokens", result.Usage.TotalTokens,
	)
	return result, nil
}
