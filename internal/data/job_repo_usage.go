package data

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/o4o-platform/ai-gateway/internal/data/pgxutil"
	"github.com/o4o-platform/ai-gateway/internal/domain/model"
)

// UsageTotals holds the window-wide aggregate computed by UsageTotals.
// Latency figures cover completed jobs only; in-flight jobs are counted
// separately and excluded from completed-only aggregates.
type UsageTotals struct {
	TotalJobs        int
	Completed        int
	Failed           int
	InFlight         int
	Retried          int
	AvgLatencyMS     float64
	P95LatencyMS     float64
	PromptTokens     int64
	CompletionTokens int64
	TotalTokens      int64
}

// usageWindowClause appends the shared window filters for usage queries.
func usageWindowClause(b *jobFilterQueryBuilder, w model.UsageWindow) {
	b.addFilter("created_at", ">=", w.Start.UTC())
	b.addFilter("created_at", "<", w.End.UTC())
	if w.OwnerID != nil && *w.OwnerID != "" {
		b.addFilter("owner_id", "=", *w.OwnerID)
	}
	if w.Provider != nil {
		b.addFilter("provider", "=", string(*w.Provider))
	}
	if w.Model != nil && *w.Model != "" {
		b.addFilter("model", "=", *w.Model)
	}
}

// UsageTotals scans job history for the window and derives the headline
// aggregate. Token sums come from the stored result payloads.
func (r *JobRepo) UsageTotals(ctx context.Context, w model.UsageWindow) (*UsageTotals, error) {
	b := &jobFilterQueryBuilder{
		query: `
	SELECT
	  count(*)                                                        AS total_jobs,
	  count(*) FILTER (WHERE status = 'completed')                    AS completed,
	  count(*) FILTER (WHERE status = 'failed')                       AS failed,
	  count(*) FILTER (WHERE status IN ('queued', 'active'))          AS in_flight,
	  count(*) FILTER (WHERE related_job_id IS NOT NULL)              AS retried,
	  COALESCE(avg(extract(epoch FROM completed_at - started_at) * 1000)
	    FILTER (WHERE status = 'completed' AND started_at IS NOT NULL), 0) AS avg_latency_ms,
	  COALESCE(percentile_cont(0.95) WITHIN GROUP
	    (ORDER BY extract(epoch FROM completed_at - started_at) * 1000)
	    FILTER (WHERE status = 'completed' AND started_at IS NOT NULL), 0) AS p95_latency_ms,
	  COALESCE(sum((result->'usage'->>'promptTokens')::bigint)
	    FILTER (WHERE status = 'completed'), 0)                       AS prompt_tokens,
	  COALESCE(sum((result->'usage'->>'completionTokens')::bigint)
	    FILTER (WHERE status = 'completed'), 0)                       AS completion_tokens,
	  COALESCE(sum((result->'usage'->>'totalTokens')::bigint)
	    FILTER (WHERE status = 'completed'), 0)                       AS total_tokens
	FROM jobs
	WHERE 1=1`,
		args:   []any{},
		argIdx: 1,
	}
	usageWindowClause(b, w)

	var t UsageTotals
	if err := r.DB.QueryRowContext(ctx, b.query, b.args...).Scan(
		&t.TotalJobs,
		&t.Completed,
		&t.Failed,
		&t.InFlight,
		&t.Retried,
		&t.AvgLatencyMS,
		&t.P95LatencyMS,
		&t.PromptTokens,
		&t.CompletionTokens,
		&t.TotalTokens,
	); err != nil {
		return nil, fmt.Errorf("usage totals: %w", err)
	}
	return &t, nil
}

// UsageByModel groups completed-job usage by provider and model. Cost is
// filled in by the service layer from the pricing table.
func (r *JobRepo) UsageByModel(ctx context.Context, w model.UsageWindow) ([]model.UsageBucket, error) {
	b := &jobFilterQueryBuilder{
		query: `
	SELECT
	  provider,
	  model,
	  count(*) AS jobs,
	  COALESCE(sum((result->'usage'->>'promptTokens')::bigint), 0)     AS prompt_tokens,
	  COALESCE(sum((result->'usage'->>'completionTokens')::bigint), 0) AS completion_tokens,
	  COALESCE(sum((result->'usage'->>'totalTokens')::bigint), 0)      AS total_tokens
	FROM jobs
	WHERE status = 'completed'`,
		args:   []any{},
		argIdx: 1,
	}
	usageWindowClause(b, w)
	b.query += `
	GROUP BY provider, model
	ORDER BY total_tokens DESC, provider, model`

	var buckets []model.UsageBucket
	if err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, qerr := conn.Query(ctx, b.query, b.args...)
		if qerr != nil {
			return fmt.Errorf("query usage by model: %w", qerr)
		}
		defer rows.Close()

		for rows.Next() {
			var bucket model.UsageBucket
			if scanErr := rows.Scan(
				&bucket.Provider,
				&bucket.Model,
				&bucket.Jobs,
				&bucket.PromptTokens,
				&bucket.CompletionTokens,
				&bucket.TotalTokens,
			); scanErr != nil {
				return fmt.Errorf("scan usage bucket: %w", scanErr)
			}
			buckets = append(buckets, bucket)
		}
		return rows.Err()
	}); err != nil {
		return nil, err
	}
	return buckets, nil
}

// TopUsersByUsage returns the heaviest consumers in the window by total tokens.
func (r *JobRepo) TopUsersByUsage(ctx context.Context, w model.UsageWindow, limit int) ([]model.UserUsage, error) {
	if limit <= 0 {
		limit = 10
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	b := &jobFilterQueryBuilder{
		query: `
	SELECT
	  owner_id,
	  count(*) AS jobs,
	  COALESCE(sum((result->'usage'->>'totalTokens')::bigint), 0) AS total_tokens
	FROM jobs
	WHERE status = 'completed'`,
		args:   []any{},
		argIdx: 1,
	}
	usageWindowClause(b, w)
	b.query += fmt.Sprintf(`
	GROUP BY owner_id
	ORDER BY total_tokens DESC, owner_id
	LIMIT $%d`, b.argIdx)
	b.args = append(b.args, limit)

	var users []model.UserUsage
	if err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, qerr := conn.Query(ctx, b.query, b.args...)
		if qerr != nil {
			return fmt.Errorf("query top users: %w", qerr)
		}
		defer rows.Close()

		for rows.Next() {
			var u model.UserUsage
			if scanErr := rows.Scan(&u.OwnerID, &u.Jobs, &u.TotalTokens); scanErr != nil {
				return fmt.Errorf("scan top user: %w", scanErr)
			}
			users = append(users, u)
		}
		return rows.Err()
	}); err != nil {
		return nil, err
	}
	return users, nil
}
