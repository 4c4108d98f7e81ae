package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/o4o-platform/ai-gateway/internal/data"
	"github.com/o4o-platform/ai-gateway/internal/domain/model"
	apperrors "github.com/o4o-platform/ai-gateway/internal/errors"
	"github.com/o4o-platform/ai-gateway/internal/observability/notify"
	"github.com/o4o-platform/ai-gateway/internal/service/failurenotifier"
)

// DLQRepository is the persistence surface DLQService depends on.
type DLQRepository interface {
	Insert(ctx context.Context, params data.InsertDLQParams) (*model.DLQEntry, error)
	GetByID(ctx context.Context, id string) (*model.DLQEntry, error)
	List(ctx context.Context, limit, offset int) ([]*model.DLQEntry, error)
	Stats(ctx context.Context) (*model.DLQStats, error)
	MarkConsumed(ctx context.Context, id string) (bool, error)
}

// DLQServiceOptions groups dependencies for DLQService.
type DLQServiceOptions struct {
	Repo            DLQRepository            // Required: dead letter repository
	Jobs            *JobService              // Required: job service for resubmission
	Logger          *slog.Logger             // Optional: structured logger
	FailureNotifier *failurenotifier.Service // Optional: alert fan-out on dead letter
}

// DLQService manages the dead letter queue: recording exhausted jobs, the
// triage views, and manual resubmission.
type DLQService struct {
	repo            DLQRepository
	jobs            *JobService
	logger          *slog.Logger
	failureNotifier *failurenotifier.Service
}

// NewDLQService constructs a new DLQService.
func NewDLQService(opts DLQServiceOptions) (*DLQService, error) {
	if opts.Repo == nil {
		return nil, errors.New("DLQRepository is required")
	}
	if opts.Jobs == nil {
		return nil, errors.New("JobService is required")
	}

	var logger *slog.Logger
	if opts.Logger != nil {
		logger = opts.Logger.With("component", "dlq_service")
	}

	return &DLQService{
		repo:            opts.Repo,
		jobs:            opts.Jobs,
		logger:          logger,
		failureNotifier: opts.FailureNotifier,
	}, nil
}

// MustNewDLQService constructs a new DLQService and panics on error.
func MustNewDLQService(opts DLQServiceOptions) *DLQService {
	svc, err := NewDLQService(opts)
	if err != nil {
		//nolint:forbidigo // Must constructor fails fast when dependencies are invalid during startup
		panic(fmt.Sprintf("failed to create DLQService: %v", err))
	}
	return svc
}

// Record captures a terminally failed job in the DLQ and fans out alerts.
// A duplicate live entry for the same job surfaces as a conflict from the
// repository and is swallowed here; the job is already dead-lettered.
func (s *DLQService) Record(ctx context.Context, job *model.Job, jobErr model.JobError) (*model.DLQEntry, error) {
	if job == nil {
		return nil, errors.New("job is required")
	}

	entry, err := s.repo.Insert(ctx, data.InsertDLQParams{
		JobID:     job.ID,
		OwnerID:   job.OwnerID,
		Provider:  job.Provider,
		Model:     job.Model,
		Reason:    jobErr.Type,
		Message:   jobErr.Message,
		Retryable: jobErr.Retryable,
		Attempts:  job.Attempt,
	})
	if err != nil {
		if apperrors.IsConflict(err) {
			if s.logger != nil {
				s.logger.DebugContext(ctx, "job already dead-lettered", "job_id", job.ID)
			}
			return nil, nil
		}
		return nil, fmt.Errorf("record dead letter for job %s: %w", job.ID, err)
	}

	if s.logger != nil {
		s.logger.WarnContext(ctx, "job dead-lettered",
			"job_id", job.ID,
			"owner_id", job.OwnerID,
			"provider", job.Provider,
			"reason", jobErr.Type,
			"attempts", job.Attempt,
		)
	}

	if s.failureNotifier != nil && s.failureNotifier.Enabled() {
		s.failureNotifier.NotifyDeadLetter(ctx, notify.DeadLetterPayload{
			JobID:      job.ID,
			OwnerID:    job.OwnerID,
			Provider:   string(job.Provider),
			Model:      job.Model,
			Reason:     jobErr.Type,
			Error:      jobErr.Message,
			Retryable:  jobErr.Retryable,
			Attempts:   job.Attempt,
			OccurredAt: time.Now(),
		})
	}

	return entry, nil
}

// List returns unconsumed entries, newest first.
func (s *DLQService) List(ctx context.Context, limit, offset int) ([]*model.DLQEntry, error) {
	entries, err := s.repo.List(ctx, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list dlq entries: %w", err)
	}
	return entries, nil
}

// Stats summarizes the unconsumed backlog.
func (s *DLQService) Stats(ctx context.Context) (*model.DLQStats, error) {
	stats, err := s.repo.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("get dlq stats: %w", err)
	}
	return stats, nil
}

// Retry resubmits a dead-lettered job as a fresh record with a reset attempt
// counter. The entry is consumed first so concurrent retries of the same
// entry cannot produce two jobs.
func (s *DLQService) Retry(ctx context.Context, entryID string) (*model.Job, error) {
	if entryID == "" {
		return nil, apperrors.Validation("dlq entry id is required")
	}

	entry, err := s.repo.GetByID(ctx, entryID)
	if err != nil {
		if errors.Is(err, data.ErrDLQEntryNotFound) {
			return nil, apperrors.NotFoundf("dlq entry %s not found", entryID)
		}
		return nil, fmt.Errorf("get dlq entry %s: %w", entryID, err)
	}
	if entry.ConsumedAt != nil {
		return nil, apperrors.Conflict(fmt.Sprintf("dlq entry %s already consumed", entryID))
	}
	if !entry.Retryable {
		return nil, apperrors.Validation(fmt.Sprintf("dlq entry %s is not retryable (%s)", entryID, entry.Reason))
	}

	original, err := s.jobs.repo.GetByID(ctx, entry.JobID)
	if err != nil {
		if errors.Is(err, data.ErrJobNotFound) {
			return nil, apperrors.NotFoundf("original job %s no longer exists", entry.JobID)
		}
		return nil, fmt.Errorf("load original job %s: %w", entry.JobID, err)
	}

	consumed, err := s.repo.MarkConsumed(ctx, entryID)
	if err != nil {
		return nil, fmt.Errorf("consume dlq entry %s: %w", entryID, err)
	}
	if !consumed {
		return nil, apperrors.Conflict(fmt.Sprintf("dlq entry %s already consumed", entryID))
	}

	related := original.ID
	job, err := s.jobs.repo.Create(ctx, &data.CreateJobParams{
		RequestID:    uuid.NewString(),
		OwnerID:      original.OwnerID,
		Spec:         original.GenerationSpec,
		RelatedJobID: &related,
		Attempt:      1,
		MaxAttempts:  s.jobs.maxAttempts,
	})
	if err != nil {
		return nil, fmt.Errorf("resubmit job %s from dlq: %w", original.ID, err)
	}

	if s.logger != nil {
		s.logger.InfoContext(ctx, "dlq entry resubmitted",
			"entry_id", entryID,
			"original_job_id", original.ID,
			"new_job_id", job.ID,
			"dlq_retries", entry.DLQRetries+1,
		)
	}

	return job, nil
}
