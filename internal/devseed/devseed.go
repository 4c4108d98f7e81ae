// Package devseed populates a development database with sample generation
// jobs so the API, the usage report, and the dead letter tooling have data
// to show before any real traffic arrives.
package devseed

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/o4o-platform/ai-gateway/internal/data"
	"github.com/o4o-platform/ai-gateway/internal/domain/model"
	"github.com/o4o-platform/ai-gateway/internal/service"
)

const (
	seedOwner    = "dev-user"
	seedOwnerAlt = "dev-user-2"

	seedLease = 30 * time.Second
)

// Services bundles the dependencies needed for development seeding.
type Services struct {
	DB   *sql.DB
	jobs *service.JobService
	repo *data.JobRepo
	dlq  *data.DLQRepo
}

// NewServices constructs the services required for seeding using the provided DB.
func NewServices(db *sql.DB) (Services, error) {
	jobRepo := data.NewJobRepo(db, data.RepoConfig{})
	jobService, err := service.NewJobService(service.JobServiceOptions{
		Repo:         jobRepo,
		Whitelist:    model.DefaultWhitelist(),
		DefaultLease: seedLease,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build job service: %w", err)
	}

	return Services{
		DB:   db,
		jobs: jobService,
		repo: jobRepo,
		dlq:  data.NewDLQRepo(db, data.RepoConfig{}),
	}, nil
}

// Run executes the development seeding workflow against the provided DB.
// Seeding is skipped when seed jobs already exist so re-runs stay cheap.
func Run(ctx context.Context, svcs Services, logger *slog.Logger) error {
	owner := seedOwner
	existing, err := svcs.repo.List(ctx, &model.JobListOptions{OwnerID: &owner, Limit: 1})
	if err != nil {
		return fmt.Errorf("check for existing seed jobs: %w", err)
	}
	if len(existing) > 0 {
		if logger != nil {
			logger.InfoContext(ctx, "seed jobs already present; skipping", "owner_id", seedOwner)
		}
		return nil
	}

	failures := 0

	// Terminal jobs are driven through the normal reserve path one at a
	// time, before any queued-only seeds exist, so each reservation picks
	// up the job just enqueued.
	for _, spec := range terminalSeedSpecs() {
		if err := seedTerminalJob(ctx, svcs, spec, logger); err != nil {
			if logger != nil {
				logger.ErrorContext(ctx, "failed to seed terminal job",
					"provider", spec.request.Provider,
					"model", spec.request.Model,
					"error", err,
				)
			}
			failures++
		}
	}

	for _, req := range queuedSeedRequests() {
		job, err := svcs.jobs.Enqueue(ctx, seedOwner, req)
		if err != nil {
			if logger != nil {
				logger.ErrorContext(ctx, "failed to seed queued job",
					"provider", req.Provider,
					"model", req.Model,
					"error", err,
				)
			}
			failures++
			continue
		}
		if logger != nil {
			logger.InfoContext(ctx, "seeded queued job", "id", job.ID, "model", job.Model)
		}
	}

	if failures > 0 {
		return fmt.Errorf("%d seed errors; check logs", failures)
	}
	return nil
}

type terminalSeedSpec struct {
	owner      string
	request    *model.EnqueueJobRequest
	result     *model.GenerationResult
	failure    *model.JobError
	deadLetter bool
}

func terminalSeedSpecs() []terminalSeedSpec {
	return []terminalSeedSpec{
		{
			owner: seedOwner,
			request: &model.EnqueueJobRequest{
				Provider:   model.ProviderOpenAI,
				Model:      "gpt-4o",
				UserPrompt: "Summarize the tradeoffs of queue-based load leveling.",
			},
			result: &model.GenerationResult{
				Text: "Queue-based load leveling absorbs bursts at the cost of latency.",
				Usage: model.Usage{
					PromptTokens:     42,
					CompletionTokens: 128,
					TotalTokens:      170,
				},
			},
		},
		{
			owner: seedOwner,
			request: &model.EnqueueJobRequest{
				Provider:     model.ProviderClaude,
				Model:        "claude-3-5-sonnet",
				SystemPrompt: "You are a concise technical writer.",
				UserPrompt:   "Explain lease-based job dispatch in two sentences.",
			},
			result: &model.GenerationResult{
				Text: "A worker reserves a job with a lease and must heartbeat before it expires. Expired leases return the job to the queue for another worker.",
				Usage: model.Usage{
					PromptTokens:     31,
					CompletionTokens: 54,
					TotalTokens:      85,
				},
			},
		},
		{
			owner: seedOwnerAlt,
			request: &model.EnqueueJobRequest{
				Provider:   model.ProviderGemini,
				Model:      "gemini-1.5-flash",
				UserPrompt: "List three uses for a dead letter queue.",
			},
			result: &model.GenerationResult{
				Text: "Triage of poisoned messages, manual replay, and failure-rate analysis.",
				Usage: model.Usage{
					PromptTokens:     18,
					CompletionTokens: 22,
					TotalTokens:      40,
				},
			},
		},
		{
			owner: seedOwnerAlt,
			request: &model.EnqueueJobRequest{
				Provider:   model.ProviderOpenAI,
				Model:      "gpt-4o-mini",
				UserPrompt: "Write a haiku about exponential backoff.",
			},
			failure: &model.JobError{
				Type:      "PROVIDER_ERROR",
				Message:   "upstream returned 503 after 3 attempts",
				Retryable: true,
			},
			deadLetter: true,
		},
	}
}

func queuedSeedRequests() []*model.EnqueueJobRequest {
	return []*model.EnqueueJobRequest{
		{
			Provider:   model.ProviderOpenAI,
			Model:      "gpt-4o",
			UserPrompt: "Draft release notes for the job pipeline service.",
		},
		{
			Provider:   model.ProviderClaude,
			Model:      "claude-3-haiku",
			UserPrompt: "Suggest names for a background worker binary.",
		},
	}
}

func seedTerminalJob(ctx context.Context, svcs Services, spec terminalSeedSpec, logger *slog.Logger) error {
	job, err := svcs.jobs.Enqueue(ctx, spec.owner, spec.request)
	if err != nil {
		return fmt.Errorf("enqueue: %w", err)
	}

	reserved, err := svcs.jobs.ReserveNext(ctx, seedLease)
	if err != nil {
		return fmt.Errorf("reserve: %w", err)
	}
	if reserved.ID != job.ID {
		return fmt.Errorf("reserved job %s instead of seeded job %s", reserved.ID, job.ID)
	}

	switch {
	case spec.result != nil:
		if _, err := svcs.jobs.Complete(ctx, job.ID, spec.result); err != nil {
			return fmt.Errorf("complete: %w", err)
		}
		if logger != nil {
			logger.InfoContext(ctx, "seeded completed job", "id", job.ID, "model", job.Model)
		}
	case spec.failure != nil:
		if _, err := svcs.jobs.Fail(ctx, job.ID, *spec.failure); err != nil {
			return fmt.Errorf("fail: %w", err)
		}
		if spec.deadLetter {
			if err := seedDLQEntry(ctx, svcs.dlq, job, spec.failure); err != nil {
				return fmt.Errorf("dead letter: %w", err)
			}
		}
		if logger != nil {
			logger.InfoContext(ctx, "seeded failed job", "id", job.ID, "model", job.Model)
		}
	default:
		return fmt.Errorf("seed spec for %s has neither result nor failure", spec.request.Model)
	}

	return nil
}

func seedDLQEntry(ctx context.Context, dlq *data.DLQRepo, job *model.Job, jobErr *model.JobError) error {
	_, err := dlq.Insert(ctx, data.InsertDLQParams{
		JobID:     job.ID,
		OwnerID:   job.OwnerID,
		Provider:  job.Provider,
		Model:     job.Model,
		Reason:    jobErr.Type,
		Message:   jobErr.Message,
		Retryable: jobErr.Retryable,
		Attempts:  job.MaxAttempts,
	})
	return err
}
