package service

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"time"

	"github.com/o4o-platform/ai-gateway/internal/data"
	"github.com/o4o-platform/ai-gateway/internal/domain/model"
)

// defaultTopUsers bounds the top-consumers section of the usage report.
const defaultTopUsers = 10

// ModelPrice holds per-1K-token USD rates for one model.
type ModelPrice struct {
	PromptPer1K     float64
	CompletionPer1K float64
}

// PricingTable maps provider/model pairs to their token rates. Missing models
// fall back to the provider default, then to zero cost.
type PricingTable map[model.Provider]map[string]ModelPrice

// DefaultPricingTable returns the built-in rate card. Rates are estimates for
// reporting only and are not billed.
func DefaultPricingTable() PricingTable {
	return PricingTable{
		model.ProviderOpenAI: {
			"gpt-4":         {PromptPer1K: 0.03, CompletionPer1K: 0.06},
			"gpt-4-turbo":   {PromptPer1K: 0.01, CompletionPer1K: 0.03},
			"gpt-4o":        {PromptPer1K: 0.005, CompletionPer1K: 0.015},
			"gpt-4o-mini":   {PromptPer1K: 0.00015, CompletionPer1K: 0.0006},
			"gpt-3.5-turbo": {PromptPer1K: 0.0005, CompletionPer1K: 0.0015},
		},
		model.ProviderGemini: {
			"gemini-1.5-pro":   {PromptPer1K: 0.00125, CompletionPer1K: 0.005},
			"gemini-1.5-flash": {PromptPer1K: 0.000075, CompletionPer1K: 0.0003},
			"gemini-2.0-flash": {PromptPer1K: 0.0001, CompletionPer1K: 0.0004},
		},
		model.ProviderClaude: {
			"claude-3-opus":     {PromptPer1K: 0.015, CompletionPer1K: 0.075},
			"claude-3-5-sonnet": {PromptPer1K: 0.003, CompletionPer1K: 0.015},
			"claude-3-haiku":    {PromptPer1K: 0.00025, CompletionPer1K: 0.00125},
		},
	}
}

// Estimate returns the USD cost for the given token counts.
func (t PricingTable) Estimate(p model.Provider, mdl string, promptTokens, completionTokens int64) float64 {
	price, ok := t[p][mdl]
	if !ok {
		return 0
	}
	return float64(promptTokens)/1000*price.PromptPer1K +
		float64(completionTokens)/1000*price.CompletionPer1K
}

// UsageRepository is the aggregation surface UsageService depends on.
type UsageRepository interface {
	UsageTotals(ctx context.Context, w model.UsageWindow) (*data.UsageTotals, error)
	UsageByModel(ctx context.Context, w model.UsageWindow) ([]model.UsageBucket, error)
	TopUsersByUsage(ctx context.Context, w model.UsageWindow, limit int) ([]model.UserUsage, error)
}

// UsageServiceOptions groups dependencies for UsageService.
type UsageServiceOptions struct {
	Repo    UsageRepository // Required: usage aggregation queries
	Pricing PricingTable    // Optional: defaults to the built-in rate card
	Logger  *slog.Logger    // Optional: structured logger
}

// UsageService assembles on-demand usage reports with cost estimation.
// Reports are derived from job records at query time and never persisted.
type UsageService struct {
	repo    UsageRepository
	pricing PricingTable
	logger  *slog.Logger
}

// NewUsageService constructs a new UsageService.
func NewUsageService(opts UsageServiceOptions) (*UsageService, error) {
	if opts.Repo == nil {
		return nil, errors.New("UsageRepository is required")
	}

	pricing := opts.Pricing
	if pricing == nil {
		pricing = DefaultPricingTable()
	}

	var logger *slog.Logger
	if opts.Logger != nil {
		logger = opts.Logger.With("component", "usage_service")
	}

	return &UsageService{
		repo:    opts.Repo,
		pricing: pricing,
		logger:  logger,
	}, nil
}

// MustNewUsageService constructs a new UsageService and panics on error.
func MustNewUsageService(opts UsageServiceOptions) *UsageService {
	svc, err := NewUsageService(opts)
	if err != nil {
		//nolint:forbidigo // Must constructor fails fast when dependencies are invalid during startup
		panic(fmt.Sprintf("failed to create UsageService: %v", err))
	}
	return svc
}

// Report computes the usage aggregate for the window. A zero Start defaults
// to 24 hours before End; a zero End defaults to now.
func (s *UsageService) Report(ctx context.Context, window model.UsageWindow) (*model.UsageReport, error) {
	window = normalizeWindow(window)

	totals, err := s.repo.UsageTotals(ctx, window)
	if err != nil {
		return nil, fmt.Errorf("usage totals: %w", err)
	}

	buckets, err := s.repo.UsageByModel(ctx, window)
	if err != nil {
		return nil, fmt.Errorf("usage by model: %w", err)
	}

	var totalCost float64
	for i := range buckets {
		b := &buckets[i]
		b.EstimatedCostUSD = s.pricing.Estimate(b.Provider, b.Model, b.PromptTokens, b.CompletionTokens)
		totalCost += b.EstimatedCostUSD
	}

	topUsers, err := s.repo.TopUsersByUsage(ctx, window, defaultTopUsers)
	if err != nil {
		return nil, fmt.Errorf("top users by usage: %w", err)
	}

	report := &model.UsageReport{
		Start:            window.Start,
		End:              window.End,
		TotalJobs:        totals.TotalJobs,
		Completed:        totals.Completed,
		Failed:           totals.Failed,
		InFlight:         totals.InFlight,
		Retried:          totals.Retried,
		AvgLatencyMS:     totals.AvgLatencyMS,
		P95LatencyMS:     totals.P95LatencyMS,
		TotalTokens:      totals.TotalTokens,
		EstimatedCostUSD: totalCost,
		Buckets:          buckets,
		TopUsers:         topUsers,
	}

	finished := totals.Completed + totals.Failed
	if finished > 0 {
		report.SuccessRate = float64(totals.Completed) / float64(finished)
	}

	return report, nil
}

// WriteCSV streams the per-model usage breakdown for the window as CSV.
func (s *UsageService) WriteCSV(ctx context.Context, w io.Writer, window model.UsageWindow) error {
	report, err := s.Report(ctx, window)
	if err != nil {
		return err
	}

	cw := csv.NewWriter(w)
	header := []string{"provider", "model", "jobs", "prompt_tokens", "completion_tokens", "total_tokens", "estimated_cost_usd"}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}

	for _, b := range report.Buckets {
		row := []string{
			string(b.Provider),
			b.Model,
			strconv.Itoa(b.Jobs),
			strconv.FormatInt(b.PromptTokens, 10),
			strconv.FormatInt(b.CompletionTokens, 10),
			strconv.FormatInt(b.TotalTokens, 10),
			strconv.FormatFloat(b.EstimatedCostUSD, 'f', 6, 64),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}

func normalizeWindow(w model.UsageWindow) model.UsageWindow {
	if w.End.IsZero() {
		w.End = time.Now()
	}
	if w.Start.IsZero() {
		w.Start = w.End.Add(-24 * time.Hour)
	}
	return w
}
