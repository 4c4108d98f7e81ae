package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/o4o-platform/ai-gateway/internal/domain/model"
)

type usageReportOptions struct {
	Since    time.Duration
	Start    string
	End      string
	OwnerID  string
	Provider string
	Model    string
	CSV      bool
}

func runUsageReport(cmdCtx *commandContext, args []string) error {
	opts, err := parseUsageReportFlags(args)
	if err != nil {
		return err
	}

	window, err := buildUsageWindow(opts)
	if err != nil {
		return err
	}

	return withDatabase(cmdCtx, 2*time.Minute, func(ctx context.Context, db *sql.DB) error {
		svcs, svcErr := newAdminServices(db, cmdCtx.Logger)
		if svcErr != nil {
			return svcErr
		}

		if opts.CSV {
			if csvErr := svcs.Usage.WriteCSV(ctx, os.Stdout, window); csvErr != nil {
				return fmt.Errorf("write usage csv: %w", csvErr)
			}
			return nil
		}

		report, reportErr := svcs.Usage.Report(ctx, window)
		if reportErr != nil {
			return fmt.Errorf("usage report: %w", reportErr)
		}

		return printUsageReport(report)
	})
}

func buildUsageWindow(opts usageReportOptions) (model.UsageWindow, error) {
	window := model.UsageWindow{}

	switch {
	case opts.Start != "" || opts.End != "":
		if opts.Start == "" || opts.End == "" {
			return model.UsageWindow{}, errors.New("--start and --end must be provided together")
		}
		start, err := time.Parse(time.RFC3339, opts.Start)
		if err != nil {
			return model.UsageWindow{}, fmt.Errorf("parse --start: %w", err)
		}
		end, err := time.Parse(time.RFC3339, opts.End)
		if err != nil {
			return model.UsageWindow{}, fmt.Errorf("parse --end: %w", err)
		}
		if !end.After(start) {
			return model.UsageWindow{}, errors.New("--end must be after --start")
		}
		window.Start = start
		window.End = end
	default:
		now := time.Now().UTC()
		window.Start = now.Add(-opts.Since)
		window.End = now
	}

	if opts.OwnerID != "" {
		owner := opts.OwnerID
		window.OwnerID = &owner
	}
	if opts.Provider != "" {
		provider := model.Provider(opts.Provider)
		if !provider.Valid() {
			return model.UsageWindow{}, fmt.Errorf("unknown provider %q", opts.Provider)
		}
		window.Provider = &provider
	}
	if opts.Model != "" {
		m := opts.Model
		window.Model = &m
	}

	return window, nil
}

func printUsageReport(report *model.UsageReport) error {
	if report == nil {
		return errors.New("usage report is nil")
	}

	if err := writef(os.Stdout, "\nUsage Report (%s to %s)\n\n",
		report.Start.UTC().Format(time.RFC3339),
		report.End.UTC().Format(time.RFC3339),
	); err != nil {
		return fmt.Errorf("print usage header: %w", err)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	if err := writeln(w, "Metric\tValue"); err != nil {
		return fmt.Errorf("write usage summary header: %w", err)
	}
	rows := []struct {
		label string
		value string
	}{
		{"Total Jobs", fmt.Sprintf("%d", report.TotalJobs)},
		{"Completed", fmt.Sprintf("%d", report.Completed)},
		{"Failed", fmt.Sprintf("%d", report.Failed)},
		{"In Flight", fmt.Sprintf("%d", report.InFlight)},
		{"Retried", fmt.Sprintf("%d", report.Retried)},
		{"Success Rate", fmt.Sprintf("%.1f%%", report.SuccessRate*100)},
		{"Avg Latency", fmt.Sprintf("%.0fms", report.AvgLatencyMS)},
		{"P95 Latency", fmt.Sprintf("%.0fms", report.P95LatencyMS)},
		{"Total Tokens", fmt.Sprintf("%d", report.TotalTokens)},
		{"Estimated Cost", fmt.Sprintf("$%.4f", report.EstimatedCostUSD)},
	}
	for _, row := range rows {
		if err := writef(w, "%s\t%s\n", row.label, row.value); err != nil {
			return fmt.Errorf("write usage row %q: %w", row.label, err)
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("flush usage summary: %w", err)
	}

	if err := printUsageBuckets(report.Buckets); err != nil {
		return err
	}
	return printTopUsers(report.TopUsers)
}

func printUsageBuckets(buckets []model.UsageBucket) error {
	if len(buckets) == 0 {
		return nil
	}
	if err := writef(os.Stdout, "\nBy Model\n"); err != nil {
		return fmt.Errorf("write bucket section title: %w", err)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	if err := writeln(w, "Provider\tModel\tJobs\tPrompt\tCompletion\tTotal\tCost"); err != nil {
		return fmt.Errorf("write bucket header: %w", err)
	}
	for _, bucket := range buckets {
		if err := writef(w, "%s\t%s\t%d\t%d\t%d\t%d\t$%.4f\n",
			bucket.Provider,
			bucket.Model,
			bucket.Jobs,
			bucket.PromptTokens,
			bucket.CompletionTokens,
			bucket.TotalTokens,
			bucket.EstimatedCostUSD,
		); err != nil {
			return fmt.Errorf("write bucket row %q: %w", bucket.Model, err)
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("flush bucket section: %w", err)
	}
	return nil
}

func printTopUsers(users []model.UserUsage) error {
	if len(users) == 0 {
		return nil
	}
	if err := writef(os.Stdout, "\nTop Users\n"); err != nil {
		return fmt.Errorf("write top users title: %w", err)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	if err := writeln(w, "Owner\tJobs\tTokens\tCost"); err != nil {
		return fmt.Errorf("write top users header: %w", err)
	}
	for _, user := range users {
		if err := writef(w, "%s\t%d\t%d\t$%.4f\n",
			user.OwnerID,
			user.Jobs,
			user.TotalTokens,
			user.EstimatedCostUSD,
		); err != nil {
			return fmt.Errorf("write top user row %q: %w", user.OwnerID, err)
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("flush top users: %w", err)
	}
	return nil
}

func parseUsageReportFlags(args []string) (usageReportOptions, error) {
	fs := flag.NewFlagSet("usage-report", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	opts := usageReportOptions{
		Since: 24 * time.Hour,
	}
	fs.DurationVar(&opts.Since, "since", 24*time.Hour, "Window size ending now (ignored when --start/--end set)")
	fs.StringVar(&opts.Start, "start", "", "Window start (RFC3339, requires --end)")
	fs.StringVar(&opts.End, "end", "", "Window end (RFC3339, requires --start)")
	fs.StringVar(&opts.OwnerID, "owner", "", "Filter by owner ID")
	fs.StringVar(&opts.Provider, "provider", "", "Filter by provider (openai, gemini, claude)")
	fs.StringVar(&opts.Model, "model", "", "Filter by model name")
	fs.BoolVar(&opts.CSV, "csv", false, "Emit per-model buckets as CSV instead of a table")

	if err := fs.Parse(args); err != nil {
		return usageReportOptions{}, err
	}

	if opts.Since <= 0 {
		return usageReportOptions{}, errors.New("--since must be greater than zero")
	}
	opts.OwnerID = strings.TrimSpace(opts.OwnerID)
	opts.Provider = strings.TrimSpace(strings.ToLower(opts.Provider))
	opts.Model = strings.TrimSpace(opts.Model)

	return opts, nil
}
