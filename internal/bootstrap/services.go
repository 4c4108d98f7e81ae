package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/o4o-platform/ai-gateway/config"
	"github.com/o4o-platform/ai-gateway/internal/adapters/provider"
	"github.com/o4o-platform/ai-gateway/internal/adapters/ratelimit"
	redisadapter "github.com/o4o-platform/ai-gateway/internal/adapters/redis"
	"github.com/o4o-platform/ai-gateway/internal/data"
	"github.com/o4o-platform/ai-gateway/internal/domain/model"
	"github.com/o4o-platform/ai-gateway/internal/observability/notify/pagerduty"
	"github.com/o4o-platform/ai-gateway/internal/observability/notify/slack"
	"github.com/o4o-platform/ai-gateway/internal/observability/statsd"
	"github.com/o4o-platform/ai-gateway/internal/ports"
	"github.com/o4o-platform/ai-gateway/internal/service"
	"github.com/o4o-platform/ai-gateway/internal/service/failurenotifier"
)

// ServiceContainer holds all application services.
type ServiceContainer struct {
	Jobs          *service.JobService
	DLQ           *service.DLQService
	Usage         *service.UsageService
	Auth          *service.AuthService
	Limiter       ports.RateLimiter
	Generator     *provider.Registry
	Observability ObservabilityContainer
}

// ObservabilityContainer groups shared observability dependencies.
type ObservabilityContainer struct {
	MetricsSink     *statsd.Client
	MetricsConfig   config.ObservabilityMetricsConfig
	FailureNotifier *failurenotifier.Service
	NotifierConfig  config.ObservabilityNotificationsConfig
}

// ServiceDeps groups dependencies for service initialization.
type ServiceDeps struct {
	Config      *config.AppConfig
	DB          *sql.DB
	RedisClient redis.UniversalClient
	Logger      *slog.Logger
}

// serviceRepositories groups data adapters backing service ports. The job
// repo also serves the usage and reaper query surfaces.
type serviceRepositories struct {
	DB      *sql.DB
	Redis   redis.UniversalClient
	JobRepo *data.JobRepo
	DLQRepo *data.DLQRepo
}

// buildObservability configures metrics and notification adapters.
func buildObservability(logger *slog.Logger, cfg config.ObservabilityConfig) ObservabilityContainer {
	obsLogger := logger
	if obsLogger == nil {
		obsLogger = slog.Default()
	}

	var metricsSink *statsd.Client
	if cfg.Metrics.IsEnabled() {
		client, err := statsd.NewClient(statsd.Config{
			Enabled: true,
			Address: cfg.Metrics.StatsdAddress,
			Prefix:  "ai_gateway",
			Logger:  obsLogger,
		})
		if err != nil {
			obsLogger.Error("failed to initialise statsd client", "error", err)
		} else {
			metricsSink = client
		}
	}

	failureNotifier := buildFailureNotifier(obsLogger, cfg.Notifications)

	return ObservabilityContainer{
		MetricsSink:     metricsSink,
		MetricsConfig:   cfg.Metrics,
		FailureNotifier: failureNotifier,
		NotifierConfig:  cfg.Notifications,
	}
}

// buildRepositories builds repositories backing service ports; no business rules here.
func buildRepositories(db *sql.DB, redis redis.UniversalClient, logger *slog.Logger) *serviceRepositories {
	return &serviceRepositories{
		DB:      db,
		Redis:   redis,
		JobRepo: data.NewJobRepo(db, data.RepoConfig{Logger: logger}),
		DLQRepo: data.NewDLQRepo(db, data.RepoConfig{Logger: logger}),
	}
}

func newJobService(repos *serviceRepositories, cfg *config.AppConfig, logger *slog.Logger) *service.JobService {
	lease := cfg.Worker.JobLease
	if lease <= 0 {
		lease = 30 * time.Second
	}
	svc, err := service.NewJobService(service.JobServiceOptions{
		Repo:         repos.JobRepo,
		Whitelist:    model.DefaultWhitelist(),
		DefaultLease: lease,
		Logger:       logger,
	})
	if err != nil {
		// Misconfiguration this deep is a programming error, not an input error.
		panic(fmt.Sprintf("create job service: %v", err))
	}
	return svc
}

func newDLQService(
	repos *serviceRepositories,
	jobs *service.JobService,
	observability ObservabilityContainer,
	logger *slog.Logger,
) *service.DLQService {
	svc, err := service.NewDLQService(service.DLQServiceOptions{
		Repo:            repos.DLQRepo,
		Jobs:            jobs,
		Logger:          logger,
		FailureNotifier: observability.FailureNotifier,
	})
	if err != nil {
		panic(fmt.Sprintf("create dlq service: %v", err))
	}
	return svc
}

func newUsageService(repos *serviceRepositories, logger *slog.Logger) *service.UsageService {
	svc, err := service.NewUsageService(service.UsageServiceOptions{
		Repo:   repos.JobRepo,
		Logger: logger,
	})
	if err != nil {
		panic(fmt.Sprintf("create usage service: %v", err))
	}
	return svc
}

// buildRateLimiter picks the Redis sliding-window limiter when Redis is
// available and falls back to an in-process token bucket otherwise. Returns
// nil when rate limiting is disabled.
//
//nolint:ireturn // limiter backend selection happens at runtime.
func buildRateLimiter(cfg *config.AppConfig, redisClient redis.UniversalClient, logger *slog.Logger) ports.RateLimiter {
	if !cfg.RateLimit.Enabled {
		return nil
	}

	if redisClient != nil {
		limiter, err := redisadapter.NewRateLimiter(redisadapter.RateLimiterOptions{
			Client: redisClient,
			Limit:  cfg.RateLimit.Limit,
			Window: cfg.RateLimit.Window,
			Prefix: cfg.RateLimit.KeyPrefix,
		})
		if err == nil {
			return limiter
		}
		if logger != nil {
			logger.Warn("failed to create redis rate limiter, falling back to local", "error", err)
		}
	}

	if logger != nil {
		logger.Info("using in-process rate limiter; limits are per instance")
	}
	return ratelimit.NewLocalRateLimiter(ratelimit.LocalRateLimiterOptions{
		Limit:  cfg.RateLimit.Limit,
		Window: cfg.RateLimit.Window,
	})
}

// NewServices wires repositories, adapters, and business services.
func NewServices(ctx context.Context, deps *ServiceDeps) ServiceContainer {
	if deps == nil {
		return ServiceContainer{}
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	appCfg := deps.Config
	if appCfg == nil {
		appCfg = &config.AppConfig{}
	}

	observability := buildObservability(logger, appCfg.Observability)
	repos := buildRepositories(deps.DB, deps.RedisClient, logger)

	jobService := newJobService(repos, appCfg, logger)
	dlqService := newDLQService(repos, jobService, observability, logger)
	usageService := newUsageService(repos, logger)

	authService := BuildAuthService(ctx, AuthConfig{
		Auth:        appCfg.Auth,
		RedisClient: deps.RedisClient,
		IsDev:       appCfg.IsDev,
		Logger:      logger,
	})

	generator, err := BuildProviderRegistry(appCfg.Providers, logger)
	if err != nil {
		logger.Error("failed to build provider registry", "error", err)
	}

	return ServiceContainer{
		Jobs:          jobService,
		DLQ:           dlqService,
		Usage:         usageService,
		Auth:          authService,
		Limiter:       buildRateLimiter(appCfg, deps.RedisClient, logger),
		Generator:     generator,
		Observability: observability,
	}
}

func buildFailureNotifier(logger *slog.Logger, cfg config.ObservabilityNotificationsConfig) *failurenotifier.Service {
	baseLogger := logger
	if baseLogger == nil {
		baseLogger = slog.Default()
	}

	if !cfg.Enabled {
		return failurenotifier.NewService(failurenotifier.Options{
			Logger: baseLogger.With("component", "failure_notifier"),
		})
	}

	sinks := make([]failurenotifier.SinkRegistration, 0, 2)

	if cfg.Slack.Enabled {
		client, err := slack.NewClient(slack.Config{
			WebhookURL:    cfg.Slack.WebhookURL,
			Channel:       cfg.Slack.Channel,
			Username:      cfg.Slack.Username,
			Timeout:       cfg.Timeout,
			RetryLimit:    cfg.RetryLimit,
			JobURLPrefix:  cfg.Slack.SiteURLPrefix,
		})
		if err != nil {
			baseLogger.Error("failed to initialise slack notifier", "error", err)
		} else {
			sinks = append(sinks, failurenotifier.SinkRegistration{
				Name: "slack",
				Sink: client,
			})
		}
	}

	if cfg.PagerDuty.Enabled {
		client, err := pagerduty.NewClient(pagerduty.Config{
			RoutingKey: cfg.PagerDuty.RoutingKey,
			Source:     cfg.PagerDuty.Source,
			Component:  cfg.PagerDuty.Component,
			Timeout:    cfg.Timeout,
			RetryLimit: cfg.RetryLimit,
		})
		if err != nil {
			baseLogger.Error("failed to initialise pagerduty notifier", "error", err)
		} else {
			sinks = append(sinks, failurenotifier.SinkRegistration{
				Name: "pagerduty",
				Sink: client,
			})
		}
	}

	return failurenotifier.NewService(failurenotifier.Options{
		Logger: baseLogger.With("component", "failure_notifier"),
		Sinks:  sinks,
	})
}

// ServiceOrchestrationConfig contains configuration for service orchestration.
type ServiceOrchestrationConfig struct {
	Config      *config.AppConfig
	Services    ServiceContainer
	DB          *sql.DB
	RedisClient redis.UniversalClient
	Logger      *slog.Logger
}

// shutdownWaitTimeout is the maximum time to wait for services to stop gracefully.
const shutdownWaitTimeout = 15 * time.Second

// RunServicesWithShutdown starts all enabled services and manages their lifecycle.
// This function blocks until a shutdown signal is received or a service fails.
func RunServicesWithShutdown(cfg *ServiceOrchestrationConfig) error {
	if cfg == nil {
		return errors.New("service orchestration config is required")
	}
	if cfg.Config == nil {
		return errors.New("service orchestration config missing AppConfig")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	enabledServices, err := cfg.Config.GetEnabledServices()
	if err != nil {
		return fmt.Errorf("determine enabled services: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	group, groupCtx := errgroup.WithContext(ctx)

	var httpServer = startHTTPServerIfEnabled(cfg, enabledServices, logger)

	if enabledServices[config.ServiceModeWorker] {
		logger.Info("background service started", "service", "worker")
		group.Go(func() error {
			if runErr := RunWorker(groupCtx, WorkerConfig{
				Services: cfg.Services,
				Worker:   cfg.Config.Worker,
				Logger:   logger,
				Metrics:  cfg.Services.Observability.MetricsSink,
			}); runErr != nil {
				return fmt.Errorf("worker failed: %w", runErr)
			}
			return nil
		})
	}

	if enabledServices[config.ServiceModeReaper] {
		logger.Info("background service started", "service", "reaper")
		group.Go(func() error {
			if runErr := RunReaper(groupCtx, ReaperConfig{
				DB:      cfg.DB,
				Logger:  logger,
				Config:  cfg.Config.Reaper,
				Metrics: cfg.Services.Observability.MetricsSink,
			}); runErr != nil {
				return fmt.Errorf("reaper failed: %w", runErr)
			}
			return nil
		})
	}

	// Block until a shutdown signal arrives or a background service fails.
	<-groupCtx.Done()
	stop()
	logger.Info("shutting down services...")

	if httpServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownWaitTimeout)
		if shutdownErr := ShutdownHTTPServer(ShutdownConfig{
			Context:    shutdownCtx,
			Server:     httpServer,
			JobService: cfg.Services.Jobs,
			Logger:     logger,
		}); shutdownErr != nil {
			logger.Error("http server shutdown failed", "error", shutdownErr)
		}
		cancel()
	}

	return waitForBackground(group, logger)
}

// waitForBackground waits for the errgroup to drain, bounded by the shutdown
// timeout so a stuck worker cannot hold the process open.
func waitForBackground(group *errgroup.Group, logger *slog.Logger) error {
	waitCh := make(chan error, 1)
	go func() {
		waitCh <- group.Wait()
	}()

	select {
	case err := <-waitCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("service error", "error", err)
			return err
		}
		return nil
	case <-time.After(shutdownWaitTimeout):
		logger.Warn("timeout waiting for background services to stop")
		return nil
	}
}
