package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/o4o-platform/ai-gateway/config"
	"github.com/o4o-platform/ai-gateway/internal/adapters/jobrunner"
	"github.com/o4o-platform/ai-gateway/internal/adapters/provider"
	"github.com/o4o-platform/ai-gateway/internal/adapters/reaper"
	"github.com/o4o-platform/ai-gateway/internal/domain/model"
	"github.com/o4o-platform/ai-gateway/internal/observability/statsd"
)

// BuildProviderRegistry constructs the provider dispatch registry from
// configuration. Only providers with credentials are registered. Returns
// nil when no provider is configured.
func BuildProviderRegistry(cfg config.ProvidersConfig, logger *slog.Logger) (*provider.Registry, error) {
	clients := make([]provider.Client, 0, 3)

	if cfg.OpenAI.IsConfigured() {
		clients = append(clients, provider.NewOpenAIClient(provider.OpenAIOptions{
			APIKey:  cfg.OpenAI.APIKey,
			BaseURL: cfg.OpenAI.BaseURL,
			Timeout: cfg.CallTimeout,
		}))
	}
	if cfg.Gemini.IsConfigured() {
		clients = append(clients, provider.NewGeminiClient(provider.GeminiOptions{
			APIKey:  cfg.Gemini.APIKey,
			BaseURL: cfg.Gemini.BaseURL,
			Timeout: cfg.CallTimeout,
		}))
	}
	if cfg.Claude.IsConfigured() {
		clients = append(clients, provider.NewClaudeClient(provider.ClaudeOptions{
			APIKey:  cfg.Claude.APIKey,
			BaseURL: cfg.Claude.BaseURL,
			Timeout: cfg.CallTimeout,
		}))
	}

	if len(clients) == 0 {
		return nil, nil
	}

	registry, err := provider.NewRegistry(provider.RegistryOptions{
		Clients:     clients,
		Whitelist:   model.DefaultWhitelist(),
		CallTimeout: cfg.CallTimeout,
		Logger:      logger,
	})
	if err != nil {
		return nil, fmt.Errorf("create provider registry: %w", err)
	}
	return registry, nil
}

// WorkerConfig contains configuration for the generation worker.
type WorkerConfig struct {
	Services ServiceContainer
	Worker   config.WorkerConfig
	Logger   *slog.Logger
	Metrics  statsd.Sink
}

// RunWorker starts the generation worker service.
func RunWorker(ctx context.Context, cfg WorkerConfig) error {
	if cfg.Services.Generator == nil {
		return errors.New("no upstream providers configured; worker cannot start")
	}

	runner, err := jobrunner.NewRunner(jobrunner.RunnerOptions{
		Jobs:             cfg.Services.Jobs,
		Generator:        cfg.Services.Generator,
		DLQ:              cfg.Services.DLQ,
		Logger:           cfg.Logger,
		Metrics:          cfg.Metrics,
		Lease:            cfg.Worker.JobLease,
		Concurrency:      cfg.Worker.Concurrency,
		PollInterval:     cfg.Worker.PollInterval,
		RetryBackoffBase: cfg.Worker.RetryBackoffBase,
	})
	if err != nil {
		return fmt.Errorf("create worker runner: %w", err)
	}

	return runner.Run(ctx)
}

// ReaperConfig contains configuration for reaper.
type ReaperConfig struct {
	DB      *sql.DB
	Logger  *slog.Logger
	Config  config.ReaperConfig
	Metrics statsd.Sink
}

// RunReaper starts the reaper service.
func RunReaper(ctx context.Context, cfg ReaperConfig) error {
	runner, err := reaper.NewRunner(reaper.RunnerOptions{
		DB:      cfg.DB,
		Config:  cfg.Config,
		Logger:  cfg.Logger,
		Metrics: cfg.Metrics,
	})
	if err != nil {
		return fmt.Errorf("create reaper runner: %w", err)
	}

	return runner.Run(ctx)
}
