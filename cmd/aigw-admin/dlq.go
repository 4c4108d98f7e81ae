package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/o4o-platform/ai-gateway/internal/data"
	"github.com/o4o-platform/ai-gateway/internal/domain/model"
	"github.com/o4o-platform/ai-gateway/internal/service"
)

// adminServices bundles the service layer the CLI commands operate on.
type adminServices struct {
	Jobs  *service.JobService
	DLQ   *service.DLQService
	Usage *service.UsageService
}

func newAdminServices(db *sql.DB, logger *slog.Logger) (adminServices, error) {
	jobRepo := data.NewJobRepo(db, data.RepoConfig{Logger: logger})
	dlqRepo := data.NewDLQRepo(db, data.RepoConfig{Logger: logger})

	jobs, err := service.NewJobService(service.JobServiceOptions{
		Repo:         jobRepo,
		Whitelist:    model.DefaultWhitelist(),
		DefaultLease: 30 * time.Second,
		Logger:       logger,
	})
	if err != nil {
		return adminServices{}, fmt.Errorf("create job service: %w", err)
	}

	dlq, err := service.NewDLQService(service.DLQServiceOptions{
		Repo:   dlqRepo,
		Jobs:   jobs,
		Logger: logger,
	})
	if err != nil {
		return adminServices{}, fmt.Errorf("create dlq service: %w", err)
	}

	usage, err := service.NewUsageService(service.UsageServiceOptions{
		Repo:   jobRepo,
		Logger: logger,
	})
	if err != nil {
		return adminServices{}, fmt.Errorf("create usage service: %w", err)
	}

	return adminServices{Jobs: jobs, DLQ: dlq, Usage: usage}, nil
}

type dlqListOptions struct {
	Limit  int
	Offset int
}

type dlqRetryOptions struct {
	EntryID string
}

func runDLQList(cmdCtx *commandContext, args []string) error {
	opts, err := parseDLQListFlags(args)
	if err != nil {
		return err
	}

	return withDatabase(cmdCtx, 2*time.Minute, func(ctx context.Context, db *sql.DB) error {
		svcs, svcErr := newAdminServices(db, cmdCtx.Logger)
		if svcErr != nil {
			return svcErr
		}

		entries, listErr := svcs.DLQ.List(ctx, opts.Limit, opts.Offset)
		if listErr != nil {
			return fmt.Errorf("list dead letter entries: %w", listErr)
		}

		return printDLQEntries(entries)
	})
}

func runDLQStats(cmdCtx *commandContext, _ []string) error {
	return withDatabase(cmdCtx, 2*time.Minute, func(ctx context.Context, db *sql.DB) error {
		svcs, svcErr := newAdminServices(db, cmdCtx.Logger)
		if svcErr != nil {
			return svcErr
		}

		stats, statsErr := svcs.DLQ.Stats(ctx)
		if statsErr != nil {
			return fmt.Errorf("dead letter stats: %w", statsErr)
		}

		return printDLQStats(stats)
	})
}

func runDLQRetry(cmdCtx *commandContext, args []string) error {
	opts, err := parseDLQRetryFlags(args)
	if err != nil {
		return err
	}

	return withDatabase(cmdCtx, 2*time.Minute, func(ctx context.Context, db *sql.DB) error {
		svcs, svcErr := newAdminServices(db, cmdCtx.Logger)
		if svcErr != nil {
			return svcErr
		}

		job, retryErr := svcs.DLQ.Retry(ctx, opts.EntryID)
		if retryErr != nil {
			return fmt.Errorf("retry dead letter entry %s: %w", opts.EntryID, retryErr)
		}

		cmdCtx.Logger.Info("dead letter entry resubmitted",
			"entry_id", opts.EntryID,
			"job_id", job.ID,
			"provider", job.Provider,
			"model", job.Model)
		if writeErr := writef(os.Stdout, "Resubmitted as job %s\n", job.ID); writeErr != nil {
			return fmt.Errorf("print retry result: %w", writeErr)
		}
		return nil
	})
}

func printDLQEntries(entries []*model.DLQEntry) error {
	if len(entries) == 0 {
		if err := writeln(os.Stdout, "(no dead letter entries)"); err != nil {
			return fmt.Errorf("print empty dlq notice: %w", err)
		}
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	if err := writeln(w, "ID\tJob\tProvider\tModel\tReason\tAttempts\tRetries\tAge\tConsumed"); err != nil {
		return fmt.Errorf("write dlq header: %w", err)
	}
	now := time.Now()
	for _, entry := range entries {
		consumed := "-"
		if entry.ConsumedAt != nil {
			consumed = entry.ConsumedAt.UTC().Format(time.RFC3339)
		}
		if err := writef(w, "%s\t%s\t%s\t%s\t%s\t%d\t%d\t%s\t%s\n",
			entry.ID,
			entry.JobID,
			entry.Provider,
			entry.Model,
			entry.Reason,
			entry.Attempts,
			entry.DLQRetries,
			now.Sub(entry.CreatedAt).Truncate(time.Second),
			consumed,
		); err != nil {
			return fmt.Errorf("write dlq row %q: %w", entry.ID, err)
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("flush dlq table: %w", err)
	}

	if err := writef(os.Stdout, "\nTotal entries: %d\n", len(entries)); err != nil {
		return fmt.Errorf("print dlq total: %w", err)
	}
	return nil
}

func printDLQStats(stats *model.DLQStats) error {
	if stats == nil || stats.Total == 0 {
		if err := writeln(os.Stdout, "(dead letter queue is empty)"); err != nil {
			return fmt.Errorf("print empty dlq stats: %w", err)
		}
		return nil
	}

	if err := writef(os.Stdout, "\nDead Letter Queue\n"); err != nil {
		return fmt.Errorf("print dlq stats title: %w", err)
	}
	if err := writef(os.Stdout, "Unconsumed entries: %d\n", stats.Total); err != nil {
		return fmt.Errorf("print dlq stats total: %w", err)
	}
	if stats.OldestAge != nil {
		age := time.Duration(*stats.OldestAge * float64(time.Second)).Truncate(time.Second)
		if err := writef(os.Stdout, "Oldest entry age:   %s\n", age); err != nil {
			return fmt.Errorf("print dlq oldest age: %w", err)
		}
	}

	if err := printCountSection("By Reason", stats.CountByReason); err != nil {
		return err
	}
	return printCountSection("By Provider", stats.CountByProvider)
}

func printCountSection(title string, counts map[string]int) error {
	if len(counts) == 0 {
		return nil
	}
	if err := writef(os.Stdout, "\n%s\n", title); err != nil {
		return fmt.Errorf("write count section title: %w", err)
	}

	keys := make([]string, 0, len(counts))
	for key := range counts {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	for _, key := range keys {
		if err := writef(w, "  %s\t%d\n", key, counts[key]); err != nil {
			return fmt.Errorf("write count row %q: %w", key, err)
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("flush count section: %w", err)
	}
	return nil
}

func parseDLQListFlags(args []string) (dlqListOptions, error) {
	fs := flag.NewFlagSet("dlq-list", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var opts dlqListOptions
	fs.IntVar(&opts.Limit, "limit", 50, "Maximum entries to display")
	fs.IntVar(&opts.Offset, "offset", 0, "Offset into the entry list")

	if err := fs.Parse(args); err != nil {
		return dlqListOptions{}, err
	}

	if opts.Limit <= 0 {
		return dlqListOptions{}, errors.New("--limit must be greater than zero")
	}
	if opts.Offset < 0 {
		return dlqListOptions{}, errors.New("--offset must not be negative")
	}

	return opts, nil
}

func parseDLQRetryFlags(args []string) (dlqRetryOptions, error) {
	fs := flag.NewFlagSet("dlq-retry", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var opts dlqRetryOptions
	fs.StringVar(&opts.EntryID, "entry-id", "", "Dead letter entry ID to resubmit (required)")

	if err := fs.Parse(args); err != nil {
		return dlqRetryOptions{}, err
	}

	opts.EntryID = strings.TrimSpace(opts.EntryID)
	if opts.EntryID == "" {
		return dlqRetryOptions{}, errors.New("--entry-id is required")
	}

	return opts, nil
}
