package data

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/o4o-platform/ai-gateway/internal/data/pgxutil"
	"github.com/o4o-platform/ai-gateway/internal/domain/model"
)

const (
	defaultListLimit = 50
	maxListLimit     = 1000
)

// jobFilterQueryBuilder accumulates WHERE clauses with positional args.
type jobFilterQueryBuilder struct {
	query  string
	args   []any
	argIdx int
}

func (b *jobFilterQueryBuilder) addFilter(column, op string, value any) {
	b.query += fmt.Sprintf(" AND %s %s $%d", column, op, b.argIdx)
	b.args = append(b.args, value)
	b.argIdx++
}

// buildJobListQuery constructs the SQL query and args for the job list with filtering.
func buildJobListQuery(opts *model.JobListOptions) (string, []any) {
	builder := &jobFilterQueryBuilder{
		query: `
		SELECT ` + jobColumns + `
		FROM jobs
		WHERE 1=1`,
		args:   []any{},
		argIdx: 1,
	}

	addJobListFilters(builder, opts)
	builder.query += `
		ORDER BY created_at DESC, id DESC`

	return builder.query, builder.args
}

// addJobListFilters adds filter conditions to the query builder.
func addJobListFilters(builder *jobFilterQueryBuilder, opts *model.JobListOptions) {
	if opts == nil {
		return
	}

	if opts.OwnerID != nil && *opts.OwnerID != "" {
		builder.addFilter("owner_id", "=", *opts.OwnerID)
	}
	if opts.Status != nil {
		builder.addFilter("status", "=", string(*opts.Status))
	}
	if opts.Provider != nil {
		builder.addFilter("provider", "=", string(*opts.Provider))
	}
	if opts.Model != nil && *opts.Model != "" {
		builder.addFilter("model", "=", *opts.Model)
	}
	if opts.Since != nil {
		builder.addFilter("created_at", ">=", opts.Since.UTC())
	}
}

// List returns jobs matching the filters, newest first.
func (r *JobRepo) List(ctx context.Context, opts *model.JobListOptions) ([]*model.Job, error) {
	if opts == nil {
		opts = &model.JobListOptions{}
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	offset := max(opts.Offset, 0)

	query, args := buildJobListQuery(opts)
	argIdx := len(args) + 1
	query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", argIdx, argIdx+1)
	args = append(args, limit, offset)

	var result []*model.Job
	if err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("query jobs: %w", err)
		}
		defer rows.Close()

		vals, err := pgx.CollectRows(rows, pgx.RowToAddrOfStructByName[model.Job])
		if err != nil {
			return fmt.Errorf("collect jobs: %w", err)
		}
		result = vals
		return nil
	}); err != nil {
		return nil, err
	}

	return result, nil
}
