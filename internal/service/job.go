package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/o4o-platform/ai-gateway/internal/data"
	domainjob "github.com/o4o-platform/ai-gateway/internal/domain/job"
	"github.com/o4o-platform/ai-gateway/internal/domain/model"
	apperrors "github.com/o4o-platform/ai-gateway/internal/errors"
)

// JobRepository is the persistence surface JobService depends on.
type JobRepository interface {
	Create(ctx context.Context, params *data.CreateJobParams) (*model.Job, error)
	GetByID(ctx context.Context, id string) (*model.Job, error)
	List(ctx context.Context, opts *model.JobListOptions) ([]*model.Job, error)
	ReserveNext(ctx context.Context, leaseSeconds int) (*model.Job, error)
	Heartbeat(ctx context.Context, jobID string, leaseSeconds int) (bool, error)
	SetProgress(ctx context.Context, jobID string, progress int) (bool, error)
	Complete(ctx context.Context, id string, result json.RawMessage) (bool, error)
	Fail(ctx context.Context, id string, jobErr model.JobError) (bool, error)
	CancelQueued(ctx context.Context, id string) (bool, error)
	RequestCancel(ctx context.Context, id string) (bool, error)
	Stats(ctx context.Context, since *time.Time) (*model.JobStats, error)
	WaitForNotification(ctx context.Context) error
}

// JobServiceOptions groups dependencies for JobService.
type JobServiceOptions struct {
	Repo            JobRepository             // Required: job repository
	Whitelist       model.Whitelist           // Required: allowed provider/model set
	DefaultLease    time.Duration             // Required: default lease duration for jobs
	Logger          *slog.Logger              // Optional: structured logger
	LeasePolicy     *domainjob.LeasePolicy    // Optional: override default lease policy
	Notifier        domainjob.Notifier        // Optional: custom job availability notifier
	NotifierOptions domainjob.NotifierOptions // Optional: configure default notifier behaviour
	Events          *domainjob.EventBus       // Optional: per-job progress event bus
	MaxAttempts     int                       // Optional: retry budget for new jobs
}

// JobService provides business logic for the generation job lifecycle.
//
// This service manages:
// - Submission, cancellation, and manual retry of generation jobs
// - Job reservation and lease management for workers
// - Pub/sub notification of queue availability
// - Per-job progress events consumed by the streaming endpoint
// - Graceful shutdown of background listeners.
type JobService struct {
	repo        JobRepository
	whitelist   model.Whitelist
	leasePolicy *domainjob.LeasePolicy
	notifier    domainjob.Notifier
	events      *domainjob.EventBus
	logger      *slog.Logger
	maxAttempts int
}

// NewJobService constructs a new JobService.
func NewJobService(opts JobServiceOptions) (*JobService, error) {
	if opts.Repo == nil {
		return nil, errors.New("JobRepository is required")
	}
	if len(opts.Whitelist.Models) == 0 {
		return nil, errors.New("whitelist is required")
	}

	var leasePolicy *domainjob.LeasePolicy
	switch {
	case opts.LeasePolicy != nil:
		leasePolicy = opts.LeasePolicy
	case opts.DefaultLease > 0:
		var err error
		leasePolicy, err = domainjob.NewLeasePolicy(opts.DefaultLease)
		if err != nil {
			return nil, fmt.Errorf("create lease policy: %w", err)
		}
	default:
		return nil, errors.New("DefaultLease must be positive")
	}

	notifier := opts.Notifier
	if notifier == nil {
		options := opts.NotifierOptions
		if options.Waiter == nil {
			options.Waiter = opts.Repo
		}
		var err error
		notifier, err = domainjob.NewNotifier(options)
		if err != nil {
			return nil, fmt.Errorf("create job notifier: %w", err)
		}
	}

	events := opts.Events
	if events == nil {
		events = domainjob.NewEventBus()
	}

	maxAttempts := opts.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = model.DefaultMaxAttempts
	}

	var logger *slog.Logger
	if opts.Logger != nil {
		logger = opts.Logger.With("component", "job_service")
		logger.Debug("JobService initialized",
			"default_lease", leasePolicy.Default(),
			"max_attempts", maxAttempts,
		)
	}

	return &JobService{
		repo:        opts.Repo,
		whitelist:   opts.Whitelist,
		leasePolicy: leasePolicy,
		notifier:    notifier,
		events:      events,
		logger:      logger,
		maxAttempts: maxAttempts,
	}, nil
}

// MustNewJobService constructs a new JobService and panics on error.
// Use this when you're certain the options are valid (e.g., in main.go).
func MustNewJobService(opts JobServiceOptions) *JobService {
	svc, err := NewJobService(opts)
	if err != nil {
		//nolint:forbidigo // Must constructor fails fast when dependencies are invalid during startup
		panic(fmt.Sprintf("failed to create JobService: %v", err))
	}
	return svc
}

// Whitelist exposes the allowed provider/model set for the models endpoint.
func (s *JobService) Whitelist() model.Whitelist {
	return s.whitelist
}

// Enqueue validates the submission and records a new queued job.
func (s *JobService) Enqueue(
	ctx context.Context,
	ownerID string,
	req *model.EnqueueJobRequest,
) (*model.Job, error) {
	if ownerID == "" {
		return nil, apperrors.Validation("owner is required")
	}
	if req == nil {
		return nil, apperrors.Validation("request body is required")
	}

	spec := req.Spec()
	if err := s.whitelist.ValidateSpec(spec); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeValidation, err.Error())
	}

	requestID := req.RequestID
	if requestID == "" {
		requestID = uuid.NewString()
	}

	job, err := s.repo.Create(ctx, &data.CreateJobParams{
		RequestID:   requestID,
		OwnerID:     ownerID,
		Spec:        spec,
		Attempt:     1,
		MaxAttempts: s.maxAttempts,
	})
	if err != nil {
		return nil, fmt.Errorf("enqueue job: %w", err)
	}

	if s.logger != nil {
		s.logger.InfoContext(ctx, "job enqueued",
			"id", job.ID,
			"owner_id", job.OwnerID,
			"provider", job.Provider,
			"model", job.Model,
		)
	}

	return job, nil
}

// GetOwned loads a job and enforces ownership. Jobs belonging to other owners
// surface as not found so IDs cannot be probed.
func (s *JobService) GetOwned(ctx context.Context, ownerID string, admin bool, id string) (*model.Job, error) {
	if id == "" {
		return nil, apperrors.Validation("job id is required")
	}

	job, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, data.ErrJobNotFound) {
			return nil, apperrors.NotFoundf("job %s not found", id)
		}
		return nil, fmt.Errorf("get job %s: %w", id, err)
	}

	if !admin && job.OwnerID != ownerID {
		return nil, apperrors.NotFoundf("job %s not found", id)
	}

	return job, nil
}

// Cancel stops a job the caller owns. Queued jobs fail immediately; active
// jobs get a cooperative cancel flag and keep running until the worker
// observes it. Terminal jobs cannot be cancelled.
func (s *JobService) Cancel(ctx context.Context, ownerID string, admin bool, id string) (*model.Job, error) {
	job, err := s.GetOwned(ctx, ownerID, admin, id)
	if err != nil {
		return nil, err
	}

	switch job.Status {
	case model.JobStatusQueued:
		canceled, err := s.repo.CancelQueued(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("cancel queued job %s: %w", id, err)
		}
		if canceled {
			s.events.Publish(domainjob.Event{
				JobID: id,
				Type:  domainjob.EventFailed,
				Error: &model.JobError{
					Type:    string(apperrors.ErrCodeCanceled),
					Message: "cancelled by owner",
				},
			})
			break
		}
		// Lost the race against dispatch; fall through to the active path.
		fallthrough
	case model.JobStatusActive:
		if _, err := s.repo.RequestCancel(ctx, id); err != nil {
			return nil, fmt.Errorf("request cancel for job %s: %w", id, err)
		}
	case model.JobStatusCompleted, model.JobStatusFailed:
		return nil, apperrors.Validation(fmt.Sprintf("job %s already %s and cannot be cancelled", id, job.Status))
	}

	updated, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("reload job %s: %w", id, err)
	}

	if s.logger != nil {
		s.logger.InfoContext(ctx, "job cancel requested", "id", id, "status", updated.Status)
	}

	return updated, nil
}

// Retry resubmits a job as a brand-new record linked to the original. Any
// status qualifies: retrying a completed job is a re-run on demand. The
// retry starts with a fresh attempt counter and request id; the original
// record is left untouched.
func (s *JobService) Retry(ctx context.Context, ownerID string, admin bool, id string) (*model.Job, error) {
	job, err := s.GetOwned(ctx, ownerID, admin, id)
	if err != nil {
		return nil, err
	}

	related := job.ID
	successor, err := s.repo.Create(ctx, &data.CreateJobParams{
		RequestID:    uuid.NewString(),
		OwnerID:      job.OwnerID,
		Spec:         job.GenerationSpec,
		RelatedJobID: &related,
		Attempt:      1,
		MaxAttempts:  s.maxAttempts,
	})
	if err != nil {
		return nil, fmt.Errorf("retry job %s: %w", id, err)
	}

	if s.logger != nil {
		s.logger.InfoContext(ctx, "job retried",
			"id", successor.ID,
			"related_job_id", id,
			"owner_id", successor.OwnerID,
		)
	}

	return successor, nil
}

// RetryAsSuccessor schedules an automatic retry for a failed attempt. The new
// record inherits the spec, carries an incremented attempt counter, and is
// deferred by the given backoff. Callers enforce the retry budget.
func (s *JobService) RetryAsSuccessor(
	ctx context.Context,
	failed *model.Job,
	backoff time.Duration,
) (*model.Job, error) {
	if failed == nil {
		return nil, errors.New("failed job is required")
	}

	related := failed.ID
	scheduledAt := time.Time{}
	if backoff > 0 {
		scheduledAt = time.Now().Add(backoff)
	}

	successor, err := s.repo.Create(ctx, &data.CreateJobParams{
		RequestID:    failed.RequestID,
		OwnerID:      failed.OwnerID,
		Spec:         failed.GenerationSpec,
		RelatedJobID: &related,
		Attempt:      failed.Attempt + 1,
		MaxAttempts:  failed.MaxAttempts,
		ScheduledAt:  scheduledAt,
	})
	if err != nil {
		return nil, fmt.Errorf("create retry for job %s: %w", failed.ID, err)
	}

	if s.logger != nil {
		s.logger.InfoContext(ctx, "automatic retry scheduled",
			"id", successor.ID,
			"related_job_id", failed.ID,
			"attempt", successor.Attempt,
			"backoff", backoff,
		)
	}

	return successor, nil
}

// List returns jobs matching the filter. Non-admin callers are always scoped
// to their own jobs regardless of the requested filter.
func (s *JobService) List(
	ctx context.Context,
	ownerID string,
	admin bool,
	opts *model.JobListOptions,
) ([]*model.Job, error) {
	if opts == nil {
		opts = &model.JobListOptions{}
	}
	if !admin {
		opts.OwnerID = &ownerID
	}

	jobs, err := s.repo.List(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	return jobs, nil
}

// Stats returns queue depth counts, optionally restricted to jobs created
// after the given time.
func (s *JobService) Stats(ctx context.Context, since *time.Time) (*model.JobStats, error) {
	stats, err := s.repo.Stats(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("get job stats: %w", err)
	}
	return stats, nil
}

// ReserveNext reserves the next dispatchable job for processing.
func (s *JobService) ReserveNext(ctx context.Context, lease time.Duration) (*model.Job, error) {
	decision := s.leasePolicy.Resolve(lease)
	if decision.Clamped() && s.logger != nil {
		s.logger.DebugContext(ctx, "clamped sub-second lease duration to 1 second",
			"requested_duration", decision.Requested)
	}

	job, err := s.repo.ReserveNext(ctx, decision.Seconds)
	if err != nil {
		if errors.Is(err, model.ErrNoJobsAvailable) {
			return nil, err
		}
		return nil, fmt.Errorf("reserve next job: %w", err)
	}

	if s.logger != nil {
		s.logger.DebugContext(ctx, "job reserved",
			"id", job.ID,
			"provider", job.Provider,
			"lease_seconds", decision.Seconds,
		)
	}

	s.events.Publish(domainjob.Event{JobID: job.ID, Type: domainjob.EventProgress, Progress: job.Progress})

	return job, nil
}

// Heartbeat extends the lease on a job to indicate it's still being processed.
func (s *JobService) Heartbeat(ctx context.Context, id string, extend time.Duration) (bool, error) {
	decision := s.leasePolicy.Resolve(extend)
	if decision.Clamped() && s.logger != nil {
		s.logger.DebugContext(ctx, "clamped sub-second heartbeat duration to 1 second",
			"requested_duration", decision.Requested,
			"job_id", id)
	}

	updated, err := s.repo.Heartbeat(ctx, id, decision.Seconds)
	if err != nil {
		return false, fmt.Errorf("heartbeat job %s: %w", id, err)
	}

	return updated, nil
}

// SetProgress advances the progress marker on an active job and publishes a
// progress event for streaming subscribers. Progress never moves backwards.
func (s *JobService) SetProgress(ctx context.Context, id string, progress int) (bool, error) {
	updated, err := s.repo.SetProgress(ctx, id, progress)
	if err != nil {
		return false, fmt.Errorf("set progress for job %s: %w", id, err)
	}

	if updated {
		s.events.Publish(domainjob.Event{JobID: id, Type: domainjob.EventProgress, Progress: progress})
	}

	return updated, nil
}

// Complete finalizes an active job with its result. Returns false when the
// terminal transition was lost, typically to a concurrent cancellation; the
// caller must discard the result in that case.
func (s *JobService) Complete(ctx context.Context, id string, result *model.GenerationResult) (bool, error) {
	payload, err := json.Marshal(result)
	if err != nil {
		return false, fmt.Errorf("encode result for job %s: %w", id, err)
	}

	completed, err := s.repo.Complete(ctx, id, payload)
	if err != nil {
		return false, fmt.Errorf("complete job %s: %w", id, err)
	}

	if completed {
		if s.logger != nil {
			s.logger.InfoContext(ctx, "job completed", "id", id, "total_tokens", result.Usage.TotalTokens)
		}
		s.events.Publish(domainjob.Event{
			JobID:    id,
			Type:     domainjob.EventCompleted,
			Progress: 100,
			Result:   result,
		})
	}

	return completed, nil
}

// Fail finalizes an active job with a typed error and publishes the terminal
// event.
func (s *JobService) Fail(ctx context.Context, id string, jobErr model.JobError) (bool, error) {
	failed, err := s.repo.Fail(ctx, id, jobErr)
	if err != nil {
		return false, fmt.Errorf("fail job %s: %w", id, err)
	}

	if failed {
		if s.logger != nil {
			s.logger.InfoContext(ctx, "job failed",
				"id", id,
				"error_type", jobErr.Type,
				"retryable", jobErr.Retryable,
			)
		}
		s.events.Publish(domainjob.Event{
			JobID:    id,
			Type:     domainjob.EventFailed,
			Progress: 100,
			Error:    &jobErr,
		})
	}

	return failed, nil
}

// Subscribe creates a subscription for queue availability notifications.
// Returns an unsubscribe function and a channel that receives wakeups.
func (s *JobService) Subscribe() (func(), <-chan struct{}) {
	if s.notifier == nil {
		ch := make(chan struct{})
		close(ch)
		return func() {}, ch
	}
	return s.notifier.Subscribe()
}

// SubscribeEvents registers a streaming subscriber for one job's lifecycle
// events.
func (s *JobService) SubscribeEvents(jobID string) (<-chan domainjob.Event, func()) {
	return s.events.Subscribe(jobID)
}

// StopAllListeners stops the queue listener and tears down event
// subscriptions. This should be called during graceful shutdown.
func (s *JobService) StopAllListeners() {
	if s.logger != nil {
		s.logger.Info("stopping all job listeners")
	}

	if s.notifier != nil {
		s.notifier.StopAll()
	}
	if s.events != nil {
		s.events.Close()
	}
}
