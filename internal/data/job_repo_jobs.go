package data

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"

	"github.com/o4o-platform/ai-gateway/internal/data/pgxutil"
	"github.com/o4o-platform/ai-gateway/internal/domain/model"
)

// jobAddedChannel is the NOTIFY channel fired inside every insert transaction
// so idle workers wake immediately instead of waiting for the poll interval.
const jobAddedChannel = "ai_job_added"

// CreateJobParams groups the repository-level inputs for inserting a job.
// Validation of the spec against the whitelist happens in the service layer;
// the repository only checks structural requirements.
type CreateJobParams struct {
	RequestID    string
	OwnerID      string
	Spec         model.GenerationSpec
	RelatedJobID *string
	Attempt      int
	MaxAttempts  int
	// ScheduledAt defers dispatch, used for retry backoff. Zero means now.
	ScheduledAt time.Time
}

func (p *CreateJobParams) validate() error {
	if strings.TrimSpace(p.OwnerID) == "" {
		return errors.New("owner id is required")
	}
	if strings.TrimSpace(p.RequestID) == "" {
		return errors.New("request id is required")
	}
	if !p.Spec.Provider.Valid() {
		return fmt.Errorf("invalid provider: %s", p.Spec.Provider)
	}
	if p.Spec.Model == "" {
		return errors.New("model is required")
	}
	return nil
}

// Create inserts a new queued job and notifies listening workers in the same
// transaction, so a wakeup never precedes the visible row.
func (r *JobRepo) Create(ctx context.Context, params *CreateJobParams) (*model.Job, error) {
	if params == nil {
		return nil, errors.New("create job params are required")
	}
	if err := params.validate(); err != nil {
		return nil, err
	}

	var job *model.Job
	if txErr := pgxutil.WithPgxTx(ctx, r.DB, pgxutil.TxConfig{
		Fn: func(tx pgx.Tx) error {
			var insertErr error
			job, insertErr = r.insertJobInTx(ctx, tx, params)
			return insertErr
		},
	}); txErr != nil {
		return nil, txErr
	}

	return job, nil
}

// insertJobInTx inserts a job within a pgx.Tx and returns the created job.
func (r *JobRepo) insertJobInTx(ctx context.Context, tx pgx.Tx, params *CreateJobParams) (*model.Job, error) {
	query, args := r.buildInsertQuery(params)

	rows, err := tx.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("insert job: %w", err)
	}
	job, collectErr := collectJobFromRows(rows)
	if collectErr != nil {
		return nil, fmt.Errorf("collect job: %w", collectErr)
	}

	if _, execErr := tx.Exec(ctx, `SELECT pg_notify($1::text, $2::text)`, jobAddedChannel, job.ID); execErr != nil {
		return nil, fmt.Errorf("send job notification: %w", execErr)
	}

	return job, nil
}

// buildInsertQuery builds an INSERT statement for a job based on the provided parameters.
func (r *JobRepo) buildInsertQuery(p *CreateJobParams) (string, []any) {
	query := `
      INSERT INTO jobs(id, request_id, owner_id, provider, model, system_prompt, user_prompt,
                       temperature, max_tokens, top_p, top_k,
                       status, related_job_id, attempt, max_attempts, scheduled_at, created_at)
      VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,'queued',$12,$13,$14,$15,$16)
      RETURNING ` + jobColumns

	currentTime := r.timeProvider.Now().UTC()
	scheduledAt := p.ScheduledAt.UTC()
	if p.ScheduledAt.IsZero() {
		scheduledAt = currentTime
	}

	attempt := p.Attempt
	if attempt <= 0 {
		attempt = 1
	}
	maxAttempts := p.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = model.DefaultMaxAttempts
	}

	args := []any{
		uuid.NewString(),
		p.RequestID,
		p.OwnerID,
		p.Spec.Provider,
		p.Spec.Model,
		p.Spec.SystemPrompt,
		p.Spec.UserPrompt,
		p.Spec.Temperature,
		p.Spec.MaxTokens,
		p.Spec.TopP,
		p.Spec.TopK,
		p.RelatedJobID,
		attempt,
		maxAttempts,
		scheduledAt,
		currentTime,
	}
	return query, args
}

// collectJobFromRows collects a single job from pgx rows using pgx v5 helpers.
// It closes the rows.
func collectJobFromRows(rows pgx.Rows) (*model.Job, error) {
	job, err := pgx.CollectOneRow(rows, pgx.RowToAddrOfStructByName[model.Job])
	if err != nil {
		return nil, err
	}
	return job, nil
}

// Advisory lock namespace for requeueExpired.
const (
	advisoryLockRequeueMajor int64 = 1001
	advisoryLockRequeueMinor int64 = 1
)

// requeueExpired returns jobs with expired leases to the queue and resets
// their attempt progress. Returns the number of jobs requeued.
func (r *JobRepo) requeueExpired(ctx context.Context) (int64, error) {
	var rowsAffected int64
	err := pgxutil.WithSQLTx(ctx, r.DB, pgxutil.SQLTxConfig{
		Fn: func(tx *sql.Tx) error {
			var locked bool
			if err := tx.QueryRowContext(ctx, "SELECT pg_try_advisory_xact_lock($1::integer, $2::integer)", advisoryLockRequeueMajor, advisoryLockRequeueMinor).Scan(&locked); err != nil {
				return fmt.Errorf("acquire advisory lock: %w", err)
			}
			if !locked {
				rowsAffected = 0
				return nil
			}

			currentTime := r.timeProvider.Now()
			res, err := tx.ExecContext(ctx, `
          UPDATE jobs
          SET status = 'queued', progress = 0, lease_expires_at = NULL
          WHERE status = 'active'
            AND lease_expires_at IS NOT NULL
            AND lease_expires_at < $1
        `, currentTime.UTC())
			if err != nil {
				return fmt.Errorf("requeue expired: %w", err)
			}
			ra, err := res.RowsAffected()
			if err != nil {
				return fmt.Errorf("rows affected: %w", err)
			}
			rowsAffected = ra
			return nil
		},
	})
	if err != nil {
		return 0, err
	}
	return rowsAffected, nil
}

// SQL used by ReserveNext to atomically reserve the next job. Ordering by
// scheduled_at then created_at preserves per-owner enqueue order best-effort.
const reserveNextUpdateSQL = `
  WITH cte AS (
    SELECT id FROM jobs
    WHERE status = 'queued' AND scheduled_at <= $1
    ORDER BY scheduled_at ASC, created_at ASC
    LIMIT 1
    FOR UPDATE SKIP LOCKED
  )
  UPDATE jobs j
  SET
    status = 'active',
    progress = 10,
    started_at = COALESCE(j.started_at, $2),
    lease_expires_at = $3
  FROM cte
  WHERE j.id = cte.id
  RETURNING ` + jobColumns + ``

// ReserveNext reserves the next available queued job for processing, granting
// the caller an exclusive lease for leaseSeconds.
func (r *JobRepo) ReserveNext(ctx context.Context, leaseSeconds int) (*model.Job, error) {
	if leaseSeconds <= 0 {
		return nil, errors.New("leaseSeconds must be positive")
	}

	if _, err := r.requeueExpired(ctx); err != nil {
		return nil, fmt.Errorf("requeue expired jobs: %w", err)
	}

	var job *model.Job
	err := pgxutil.WithPgxTx(ctx, r.DB, pgxutil.TxConfig{
		Opts: &sql.TxOptions{
			Isolation: sql.LevelReadCommitted,
			ReadOnly:  false,
		},
		Fn: func(tx pgx.Tx) error {
			currentTime := r.timeProvider.Now()
			leaseExpiresAt := currentTime.Add(time.Duration(leaseSeconds) * time.Second)

			rows, qerr := tx.Query(
				ctx,
				reserveNextUpdateSQL,
				currentTime.UTC(),
				currentTime.UTC(),
				leaseExpiresAt.UTC(),
			)
			if qerr != nil {
				return fmt.Errorf("reserve job: %w", qerr)
			}

			j, cerr := collectJobFromRows(rows)
			if errors.Is(cerr, pgx.ErrNoRows) {
				return model.ErrNoJobsAvailable
			}
			if cerr != nil {
				return fmt.Errorf("reserve job: %w", cerr)
			}
			job = j
			return nil
		},
	})
	if err != nil {
		if errors.Is(err, model.ErrNoJobsAvailable) {
			return nil, model.ErrNoJobsAvailable
		}
		return nil, err
	}
	return job, nil
}

// Heartbeat refreshes the lease on an active job.
func (r *JobRepo) Heartbeat(ctx context.Context, jobID string, leaseSeconds int) (bool, error) {
	if leaseSeconds <= 0 {
		return false, errors.New("leaseSeconds must be positive")
	}

	currentTime := r.timeProvider.Now().UTC()
	leaseExpiration := currentTime.Add(time.Duration(leaseSeconds) * time.Second)

	query := `
		UPDATE jobs
		SET lease_expires_at = $2
		WHERE id = $1 AND status = 'active'
	`

	res, err := r.DB.ExecContext(ctx, query, jobID, leaseExpiration)
	if err != nil {
		return false, fmt.Errorf("heartbeat job: %w", err)
	}

	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("heartbeat rows affected: %w", err)
	}

	return rowsAffected > 0, nil
}

// SetProgress advances progress on an active job. GREATEST keeps the value
// monotone even if updates race or arrive out of order.
func (r *JobRepo) SetProgress(ctx context.Context, jobID string, progress int) (bool, error) {
	if progress < 0 || progress > 100 {
		return false, fmt.Errorf("progress out of range: %d", progress)
	}

	res, err := r.DB.ExecContext(ctx, `
		UPDATE jobs
		SET progress = GREATEST(progress, $2)
		WHERE id = $1 AND status = 'active'
	`, jobID, progress)
	if err != nil {
		return false, fmt.Errorf("set progress: %w", err)
	}

	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("set progress rows affected: %w", err)
	}
	return rowsAffected > 0, nil
}

// Complete marks an active job as completed with its result payload.
// The compare-and-swap on status plus the cancel_requested guard means a
// cancel that raced the provider call wins: the worker gets false back and
// must discard the result.
func (r *JobRepo) Complete(ctx context.Context, id string, result json.RawMessage) (bool, error) {
	currentTime := r.timeProvider.Now().UTC()

	query := `
		UPDATE jobs
		SET status = 'completed',
		    progress = 100,
		    result = $2,
		    completed_at = $3,
		    lease_expires_at = NULL
		WHERE id = $1 AND status = 'active' AND cancel_requested = FALSE
	`

	res, err := r.DB.ExecContext(ctx, query, id, []byte(result), currentTime)
	if err != nil {
		return false, fmt.Errorf("complete job: %w", err)
	}

	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("complete rows affected: %w", err)
	}
	return rowsAffected > 0, nil
}

// Fail marks an active job as terminally failed with the typed error.
// Automatic retries are new records created by the worker, never in-place
// requeues, so failure here is always terminal for this record.
func (r *JobRepo) Fail(ctx context.Context, id string, jobErr model.JobError) (bool, error) {
	currentTime := r.timeProvider.Now().UTC()

	query := `
		UPDATE jobs
		SET status = 'failed',
		    error_type = $2,
		    error_message = $3,
		    error_retryable = $4,
		    completed_at = $5,
		    lease_expires_at = NULL
		WHERE id = $1 AND status = 'active'
	`

	res, err := r.DB.ExecContext(ctx, query, id, jobErr.Type, jobErr.Message, jobErr.Retryable, currentTime)
	if err != nil {
		return false, fmt.Errorf("fail job: %w", err)
	}

	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("fail rows affected: %w", err)
	}
	return rowsAffected > 0, nil
}

// CancelQueued cancels a job that has not been dispatched yet.
func (r *JobRepo) CancelQueued(ctx context.Context, id string) (bool, error) {
	currentTime := r.timeProvider.Now().UTC()

	res, err := r.DB.ExecContext(ctx, `
		UPDATE jobs
		SET status = 'failed',
		    error_type = 'CANCELED',
		    error_message = 'cancelled by owner',
		    error_retryable = FALSE,
		    completed_at = $2,
		    lease_expires_at = NULL
		WHERE id = $1 AND status = 'queued'
	`, id, currentTime)
	if err != nil {
		return false, fmt.Errorf("cancel queued job: %w", err)
	}

	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("cancel rows affected: %w", err)
	}
	return rowsAffected > 0, nil
}

// RequestCancel flags an active job for cooperative cancellation. The
// in-flight provider call is not aborted; the worker discards its outcome.
func (r *JobRepo) RequestCancel(ctx context.Context, id string) (bool, error) {
	res, err := r.DB.ExecContext(ctx, `
		UPDATE jobs
		SET cancel_requested = TRUE
		WHERE id = $1 AND status = 'active'
	`, id)
	if err != nil {
		return false, fmt.Errorf("request cancel: %w", err)
	}

	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("request cancel rows affected: %w", err)
	}
	return rowsAffected > 0, nil
}

// Stats returns job counts by state, optionally bounded to jobs created since
// the given time.
func (r *JobRepo) Stats(ctx context.Context, since *time.Time) (*model.JobStats, error) {
	var s model.JobStats
	err := r.DB.QueryRowContext(ctx, `
  SELECT
    count(*) FILTER (WHERE status = 'queued')    AS queued,
    count(*) FILTER (WHERE status = 'active')    AS active,
    count(*) FILTER (WHERE status = 'completed') AS completed,
    count(*) FILTER (WHERE status = 'failed')    AS failed
  FROM jobs
  WHERE $1::timestamptz IS NULL OR created_at >= $1
  `, since).Scan(
		&s.Queued,
		&s.Active,
		&s.Completed,
		&s.Failed,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get job stats: %w", err)
	}
	return &s, nil
}

// WaitForNotification waits for a PostgreSQL notification indicating new jobs
// are available.
func (r *JobRepo) WaitForNotification(ctx context.Context) error {
	conn, err := r.DB.Conn(ctx)
	if err != nil {
		return fmt.Errorf("get conn from pool: %w", err)
	}
	defer func() {
		if cerr := conn.Close(); cerr != nil {
			_ = cerr
		}
	}()

	quoted := pgx.Identifier{jobAddedChannel}.Sanitize()

	if _, execErr := conn.ExecContext(ctx, "LISTEN "+quoted); execErr != nil {
		return fmt.Errorf("listen %s: %w", jobAddedChannel, execErr)
	}
	defer func() {
		if _, execErr := conn.ExecContext(context.Background(), "UNLISTEN "+quoted); execErr != nil {
			_ = execErr
		}
	}()

	return conn.Raw(func(dc any) error {
		sc, ok := dc.(*stdlib.Conn)
		if !ok {
			return errors.New("unexpected driver connection type; expected *stdlib.Conn")
		}
		_, notifyErr := sc.Conn().WaitForNotification(ctx)
		return notifyErr
	})
}

// GetByID retrieves a job by its ID.
func (r *JobRepo) GetByID(ctx context.Context, id string) (*model.Job, error) {
	var job *model.Job
	err := pgxutil.WithPgxConn(ctx, r.DB, func(pgxConn *pgx.Conn) error {
		rows, err := pgxConn.Query(ctx, `
			SELECT `+jobColumns+`
			FROM jobs
			WHERE id = $1
		`, id)
		if err != nil {
			return err
		}
		job, err = collectJobFromRows(rows)
		return err
	})

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return job, nil
}
