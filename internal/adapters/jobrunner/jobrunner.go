// Package jobrunner pulls queued generation jobs, dispatches them to the
// upstream provider, and finalizes their lifecycle.
package jobrunner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/o4o-platform/ai-gateway/internal/domain/model"
	apperrors "github.com/o4o-platform/ai-gateway/internal/errors"
	"github.com/o4o-platform/ai-gateway/internal/observability/metrics"
	"github.com/o4o-platform/ai-gateway/internal/observability/statsd"
	"github.com/o4o-platform/ai-gateway/internal/service"
)

// Progress milestones reported while a job moves through the worker.
const (
	progressDispatched = 25
	progressReturned   = 90
)

const (
	defaultLease            = 30 * time.Second
	defaultPollInterval     = 5 * time.Second
	defaultRetryBackoffBase = 2 * time.Second
)

// Generator produces a completion for a validated generation spec.
// Satisfied by provider.Registry.
type Generator interface {
	Generate(ctx context.Context, spec model.GenerationSpec) (*model.GenerationResult, error)
}

// RunnerOptions configures the job runner adapter.
type RunnerOptions struct {
	Jobs      *service.JobService // Required: job lifecycle service
	Generator Generator           // Required: provider dispatch
	DLQ       *service.DLQService // Optional: dead-letter recording
	Logger    *slog.Logger
	Metrics   statsd.Sink

	// Job processing settings
	Lease       time.Duration // per-job lease duration; defaults to 30s
	Concurrency int           // number of worker goroutines; defaults to 1

	// PollInterval bounds how long a worker sleeps without a queue
	// notification. Deferred retries become due without a NOTIFY, so the
	// poll is what picks them up.
	PollInterval time.Duration

	// RetryBackoffBase is the first automatic-retry delay; it doubles per
	// attempt. Defaults to 2s.
	RetryBackoffBase time.Duration
}

// Runner pulls jobs and executes them against the provider registry.
type Runner struct {
	jobs             *service.JobService
	generator        Generator
	dlq              *service.DLQService
	logger           *slog.Logger
	metrics          statsd.Sink
	lease            time.Duration
	workers          int
	pollInterval     time.Duration
	retryBackoffBase time.Duration
}

// NewRunner constructs a job runner.
func NewRunner(opts RunnerOptions) (*Runner, error) {
	if opts.Jobs == nil {
		return nil, errors.New("JobService is required")
	}
	if opts.Generator == nil {
		return nil, errors.New("Generator is required")
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	lease := opts.Lease
	if lease <= 0 {
		lease = defaultLease
	}
	workers := opts.Concurrency
	if workers <= 0 {
		workers = 1
	}
	poll := opts.PollInterval
	if poll <= 0 {
		poll = defaultPollInterval
	}
	backoffBase := opts.RetryBackoffBase
	if backoffBase <= 0 {
		backoffBase = defaultRetryBackoffBase
	}

	return &Runner{
		jobs:             opts.Jobs,
		generator:        opts.Generator,
		dlq:              opts.DLQ,
		logger:           logger,
		metrics:          opts.Metrics,
		lease:            lease,
		workers:          workers,
		pollInterval:     poll,
		retryBackoffBase: backoffBase,
	}, nil
}

// Run starts worker goroutines and processes jobs until the context is cancelled.
func (r *Runner) Run(ctx context.Context) error {
	r.logger.InfoContext(ctx, "starting job runner", "workers", r.workers, "lease", r.lease)

	// Derive a cancellable context that we can signal on first fatal error
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	unsub, ch := r.jobs.Subscribe()
	defer unsub()

	var wg sync.WaitGroup
	errCh := make(chan error, 1)

	for range r.workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := r.workerLoop(ctx, ch); err != nil {
				// first error wins, cancels all workers
				select {
				case errCh <- err:
					cancel()
				default:
				}
			}
		}()
	}

	wg.Wait()

	select {
	case err := <-errCh:
		return err
	default:
		return ctx.Err()
	}
}

func (r *Runner) workerLoop(ctx context.Context, notify <-chan struct{}) error {
	for ctx.Err() == nil {
		job, err := r.jobs.ReserveNext(ctx, r.lease)
		switch {
		case err == nil:
			if job != nil {
				r.processJob(ctx, job)
			}
		case errors.Is(err, model.ErrNoJobsAvailable):
			if !r.waitForWork(ctx, notify) {
				return nil
			}
		default:
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("reserve next: %w", err)
		}
	}
	return ctx.Err()
}

// waitForWork blocks until a queue notification arrives, the poll interval
// elapses, or the context ends. Returns false only on shutdown.
func (r *Runner) waitForWork(ctx context.Context, notify <-chan struct{}) bool {
	timer := time.NewTimer(r.pollInterval)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-notify:
		return true
	case <-timer.C:
		return true
	}
}

func (r *Runner) processJob(ctx context.Context, job *model.Job) {
	start := time.Now()

	if job.CancelRequested {
		r.finalizeCanceled(ctx, job, start)
		return
	}

	jobCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	hbDone := r.startHeartbeat(jobCtx, cancel, job.ID)
	defer func() {
		cancel()
		<-hbDone
	}()

	if _, err := r.jobs.SetProgress(jobCtx, job.ID, progressDispatched); err != nil {
		r.logger.WarnContext(ctx, "set progress failed", "job_id", job.ID, "error", err)
	}

	result, err := r.generator.Generate(jobCtx, job.GenerationSpec)
	if err != nil {
		r.handleFailure(ctx, job, err, start)
		return
	}

	if _, perr := r.jobs.SetProgress(jobCtx, job.ID, progressReturned); perr != nil {
		r.logger.WarnContext(ctx, "set progress failed", "job_id", job.ID, "error", perr)
	}

	completed, cerr := r.jobs.Complete(ctx, job.ID, result)
	if cerr != nil {
		r.logger.ErrorContext(ctx, "complete job error", "job_id", job.ID, "error", cerr)
		r.emit(job, metrics.TransitionCompleted, metrics.ResultError, start, 0, cerr)
		return
	}
	if !completed {
		// Lost the terminal CAS, almost always to a cancel request that
		// raced the provider call. The result is discarded.
		r.finalizeCanceled(ctx, job, start)
		return
	}

	r.emit(job, metrics.TransitionCompleted, metrics.ResultSuccess, start, result.Usage.TotalTokens, nil)
}

// startHeartbeat extends the lease at a third of its duration until the job
// context ends. A heartbeat that no longer matches an active job means the
// lease was lost; the job context is cancelled to abandon the provider call.
func (r *Runner) startHeartbeat(ctx context.Context, cancel context.CancelFunc, jobID string) <-chan struct{} {
	done := make(chan struct{})

	interval := r.lease / 3
	if interval < time.Second {
		interval = time.Second
	}

	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				alive, err := r.jobs.Heartbeat(ctx, jobID, r.lease)
				if err != nil {
					if ctx.Err() == nil {
						r.logger.WarnContext(ctx, "heartbeat failed", "job_id", jobID, "error", err)
					}
					continue
				}
				if !alive {
					r.logger.WarnContext(ctx, "lease lost, abandoning job", "job_id", jobID)
					cancel()
					return
				}
			}
		}
	}()

	return done
}

func (r *Runner) handleFailure(ctx context.Context, job *model.Job, genErr error, start time.Time) {
	jobErr := model.JobError{
		Type:      string(apperrors.GetCode(genErr)),
		Message:   genErr.Error(),
		Retryable: apperrors.IsRetryable(genErr),
	}

	failed, err := r.jobs.Fail(ctx, job.ID, jobErr)
	if err != nil {
		r.logger.ErrorContext(ctx, "fail job error", "job_id", job.ID, "error", err, "original_error", genErr)
		r.emit(job, metrics.TransitionFailed, metrics.ResultError, start, 0, err)
		return
	}
	if !failed {
		// Another transition won the race; nothing left to finalize.
		r.emit(job, metrics.TransitionFailed, metrics.ResultNoop, start, 0, genErr)
		return
	}

	r.emit(job, metrics.TransitionFailed, metrics.ResultSuccess, start, 0, genErr)

	if jobErr.Retryable && job.Attempt < job.MaxAttempts {
		backoff := r.backoffFor(job.Attempt, genErr)
		if _, rerr := r.jobs.RetryAsSuccessor(ctx, job, backoff); rerr != nil {
			r.logger.ErrorContext(ctx, "schedule retry error", "job_id", job.ID, "error", rerr)
			r.emit(job, metrics.TransitionRetried, metrics.ResultError, start, 0, rerr)
			return
		}
		r.emit(job, metrics.TransitionRetried, metrics.ResultSuccess, start, 0, nil)
		return
	}

	r.deadLetter(ctx, job, jobErr, start)
}

func (r *Runner) deadLetter(ctx context.Context, job *model.Job, jobErr model.JobError, start time.Time) {
	if r.dlq == nil {
		return
	}

	failed := *job
	failed.Status = model.JobStatusFailed

	if _, err := r.dlq.Record(ctx, &failed, jobErr); err != nil {
		r.logger.ErrorContext(ctx, "record dead letter error", "job_id", job.ID, "error", err)
		r.emit(job, metrics.TransitionDLQ, metrics.ResultError, start, 0, err)
		return
	}
	r.emit(job, metrics.TransitionDLQ, metrics.ResultSuccess, start, 0, nil)
}

// finalizeCanceled records the terminal cancellation for a job whose cancel
// flag was observed by the worker.
func (r *Runner) finalizeCanceled(ctx context.Context, job *model.Job, start time.Time) {
	jobErr := model.JobError{
		Type:    string(apperrors.ErrCodeCanceled),
		Message: "cancelled by owner",
	}
	if _, err := r.jobs.Fail(ctx, job.ID, jobErr); err != nil {
		r.logger.ErrorContext(ctx, "finalize cancelled job error", "job_id", job.ID, "error", err)
	}
	r.emit(job, metrics.TransitionCanceled, metrics.ResultSuccess, start, 0, nil)
}

// backoffFor doubles the base delay per prior attempt. A provider-supplied
// Retry-After takes precedence when it is longer.
func (r *Runner) backoffFor(attempt int, err error) time.Duration {
	backoff := r.retryBackoffBase
	for i := 1; i < attempt; i++ {
		backoff *= 2
	}
	if retryAfter := apperrors.GetRetryAfter(err); retryAfter > backoff {
		backoff = retryAfter
	}
	return backoff
}

func (r *Runner) emit(job *model.Job, transition, result string, start time.Time, tokens int, err error) {
	metrics.EmitJobLifecycle(r.metrics, metrics.JobMetric{
		Provider:   string(job.Provider),
		Model:      job.Model,
		Transition: transition,
		Result:     result,
		Attempt:    job.Attempt,
		Duration:   time.Since(start),
		Tokens:     tokens,
		Err:        err,
	})
}
