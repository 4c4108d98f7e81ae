package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/o4o-platform/ai-gateway/internal/data/pgxutil"
	"github.com/o4o-platform/ai-gateway/internal/domain/model"
)

// ErrDLQEntryNotFound is returned when a DLQ entry is not found.
var ErrDLQEntryNotFound = errors.New("dlq entry not found")

// DLQRepo provides database operations for dead-letter entries.
type DLQRepo struct {
	DB           *sql.DB
	timeProvider TimeProvider
	logger       *slog.Logger
}

// NewDLQRepo creates a new DLQRepo instance.
func NewDLQRepo(db *sql.DB, cfg RepoConfig) *DLQRepo {
	tp := cfg.TimeProvider
	if tp == nil {
		tp = &RealTimeProvider{}
	}

	return &DLQRepo{
		DB:           db,
		timeProvider: tp,
		logger:       cfg.Logger,
	}
}

const dlqColumns = `
  id,
  job_id,
  owner_id,
  provider,
  model,
  reason,
  message,
  retryable,
  attempts,
  dlq_retries,
  created_at,
  consumed_at
`

// InsertDLQParams groups the inputs for dead-lettering a failed job.
type InsertDLQParams struct {
	JobID     string
	OwnerID   string
	Provider  model.Provider
	Model     string
	Reason    string
	Message   string
	Retryable bool
	Attempts  int
}

// Insert records a terminally failed job in the DLQ. A partial unique index
// keeps at most one live entry per job; a second insert for the same job is
// reported as a conflict by the database.
func (r *DLQRepo) Insert(ctx context.Context, params InsertDLQParams) (*model.DLQEntry, error) {
	if strings.TrimSpace(params.JobID) == "" {
		return nil, errors.New("job id is required")
	}
	if strings.TrimSpace(params.Reason) == "" {
		return nil, errors.New("reason is required")
	}

	var entry *model.DLQEntry
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, qerr := conn.Query(ctx, `
			INSERT INTO dlq_entries(id, job_id, owner_id, provider, model, reason, message, retryable, attempts, created_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
			RETURNING `+dlqColumns+`
		`,
			uuid.NewString(),
			params.JobID,
			params.OwnerID,
			params.Provider,
			params.Model,
			params.Reason,
			params.Message,
			params.Retryable,
			params.Attempts,
			r.timeProvider.Now().UTC(),
		)
		if qerr != nil {
			return fmt.Errorf("insert dlq entry: %w", qerr)
		}
		var cerr error
		entry, cerr = pgx.CollectOneRow(rows, pgx.RowToAddrOfStructByName[model.DLQEntry])
		return cerr
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// GetByID retrieves a DLQ entry by its ID.
func (r *DLQRepo) GetByID(ctx context.Context, id string) (*model.DLQEntry, error) {
	var entry *model.DLQEntry
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, qerr := conn.Query(ctx, `
			SELECT `+dlqColumns+`
			FROM dlq_entries
			WHERE id = $1
		`, id)
		if qerr != nil {
			return qerr
		}
		var cerr error
		entry, cerr = pgx.CollectOneRow(rows, pgx.RowToAddrOfStructByName[model.DLQEntry])
		return cerr
	})

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrDLQEntryNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get dlq entry: %w", err)
	}
	return entry, nil
}

// List returns live (unconsumed) DLQ entries, newest first.
func (r *DLQRepo) List(ctx context.Context, limit, offset int) ([]*model.DLQEntry, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	offset = max(offset, 0)

	var result []*model.DLQEntry
	if err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, qerr := conn.Query(ctx, `
			SELECT `+dlqColumns+`
			FROM dlq_entries
			WHERE consumed_at IS NULL
			ORDER BY created_at DESC, id DESC
			LIMIT $1 OFFSET $2
		`, limit, offset)
		if qerr != nil {
			return fmt.Errorf("query dlq entries: %w", qerr)
		}
		defer rows.Close()

		vals, cerr := pgx.CollectRows(rows, pgx.RowToAddrOfStructByName[model.DLQEntry])
		if cerr != nil {
			return fmt.Errorf("collect dlq entries: %w", cerr)
		}
		result = vals
		return nil
	}); err != nil {
		return nil, err
	}
	return result, nil
}

// Stats summarizes live DLQ entries by reason and provider.
func (r *DLQRepo) Stats(ctx context.Context) (*model.DLQStats, error) {
	stats := &model.DLQStats{
		CountByReason:   map[string]int{},
		CountByProvider: map[string]int{},
	}

	currentTime := r.timeProvider.Now().UTC()
	rows, err := r.DB.QueryContext(ctx, `
		SELECT reason, provider, count(*), extract(epoch FROM $1 - min(created_at))
		FROM dlq_entries
		WHERE consumed_at IS NULL
		GROUP BY reason, provider
	`, currentTime)
	if err != nil {
		return nil, fmt.Errorf("query dlq stats: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	for rows.Next() {
		var reason, provider string
		var count int
		var groupOldest float64
		if scanErr := rows.Scan(&reason, &provider, &count, &groupOldest); scanErr != nil {
			return nil, fmt.Errorf("scan dlq stats: %w", scanErr)
		}
		stats.Total += count
		stats.CountByReason[reason] += count
		stats.CountByProvider[provider] += count
		if stats.OldestAge == nil || groupOldest > *stats.OldestAge {
			age := groupOldest
			stats.OldestAge = &age
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate dlq stats: %w", err)
	}

	return stats, nil
}

// MarkConsumed consumes a live entry after a successful resubmission and bumps
// its manual-retry counter. Returns false when the entry is missing or was
// already consumed by a racing retry.
func (r *DLQRepo) MarkConsumed(ctx context.Context, id string) (bool, error) {
	currentTime := r.timeProvider.Now().UTC()

	res, err := r.DB.ExecContext(ctx, `
		UPDATE dlq_entries
		SET consumed_at = $2,
		    dlq_retries = dlq_retries + 1
		WHERE id = $1 AND consumed_at IS NULL
	`, id, currentTime)
	if err != nil {
		return false, fmt.Errorf("mark dlq entry consumed: %w", err)
	}

	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mark consumed rows affected: %w", err)
	}
	return rowsAffected > 0, nil
}
