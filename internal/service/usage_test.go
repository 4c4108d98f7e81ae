package service

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/o4o-platform/ai-gateway/internal/data"
	"github.com/o4o-platform/ai-gateway/internal/domain/model"
	"github.com/o4o-platform/ai-gateway/internal/mocks"
)

func newTestUsageService(t *testing.T, repo UsageRepository) *UsageService {
	t.Helper()
	svc, err := NewUsageService(UsageServiceOptions{Repo: repo})
	require.NoError(t, err)
	return svc
}

func fixedWindow() model.UsageWindow {
	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	return model.UsageWindow{Start: start, End: start.Add(24 * time.Hour)}
}

func TestPricingTable_Estimate(t *testing.T) {
	pricing := DefaultPricingTable()

	// gpt-4o at $0.005/1K prompt and $0.015/1K completion.
	cost := pricing.Estimate(model.ProviderOpenAI, "gpt-4o", 1000, 1000)
	assert.InDelta(t, 0.02, cost, 1e-9)

	cost = pricing.Estimate(model.ProviderClaude, "claude-3-opus", 2000, 500)
	assert.InDelta(t, 0.0675, cost, 1e-9)

	assert.Zero(t, pricing.Estimate(model.ProviderOpenAI, "unknown-model", 1000, 1000))
}

func TestUsageService_Report(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockUsageRepository(ctrl)
	svc := newTestUsageService(t, repo)

	window := fixedWindow()

	repo.EXPECT().UsageTotals(gomock.Any(), window).Return(&data.UsageTotals{
		TotalJobs:    10,
		Completed:    6,
		Failed:       2,
		InFlight:     2,
		Retried:      1,
		AvgLatencyMS: 1200,
		P95LatencyMS: 4500,
		TotalTokens:  5000,
	}, nil)
	repo.EXPECT().UsageByModel(gomock.Any(), window).Return([]model.UsageBucket{
		{Provider: model.ProviderOpenAI, Model: "gpt-4o", Jobs: 6, PromptTokens: 2000, CompletionTokens: 1000, TotalTokens: 3000},
		{Provider: model.ProviderClaude, Model: "claude-3-haiku", Jobs: 4, PromptTokens: 1500, CompletionTokens: 500, TotalTokens: 2000},
	}, nil)
	repo.EXPECT().TopUsersByUsage(gomock.Any(), window, defaultTopUsers).Return([]model.UserUsage{
		{OwnerID: "user-1", Jobs: 7, TotalTokens: 4000},
	}, nil)

	report, err := svc.Report(context.Background(), window)
	require.NoError(t, err)

	assert.Equal(t, 10, report.TotalJobs)
	assert.InDelta(t, 0.75, report.SuccessRate, 1e-9)
	assert.Equal(t, int64(5000), report.TotalTokens)
	require.Len(t, report.Buckets, 2)

	// 2000 prompt + 1000 completion on gpt-4o.
	assert.InDelta(t, 0.025, report.Buckets[0].EstimatedCostUSD, 1e-9)
	// 1500 prompt + 500 completion on claude-3-haiku.
	assert.InDelta(t, 0.001, report.Buckets[1].EstimatedCostUSD, 1e-9)
	assert.InDelta(t, 0.026, report.EstimatedCostUSD, 1e-9)

	require.Len(t, report.TopUsers, 1)
	assert.Equal(t, "user-1", report.TopUsers[0].OwnerID)
}

func TestUsageService_Report_EmptyWindow(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockUsageRepository(ctrl)
	svc := newTestUsageService(t, repo)

	window := fixedWindow()

	repo.EXPECT().UsageTotals(gomock.Any(), window).Return(&data.UsageTotals{}, nil)
	repo.EXPECT().UsageByModel(gomock.Any(), window).Return(nil, nil)
	repo.EXPECT().TopUsersByUsage(gomock.Any(), window, defaultTopUsers).Return(nil, nil)

	report, err := svc.Report(context.Background(), window)
	require.NoError(t, err)
	assert.Zero(t, report.SuccessRate)
	assert.Zero(t, report.EstimatedCostUSD)
	assert.Empty(t, report.Buckets)
}

func TestUsageService_Report_NormalizesWindow(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockUsageRepository(ctrl)
	svc := newTestUsageService(t, repo)

	repo.EXPECT().
		UsageTotals(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, w model.UsageWindow) (*data.UsageTotals, error) {
			assert.False(t, w.Start.IsZero())
			assert.False(t, w.End.IsZero())
			assert.Equal(t, 24*time.Hour, w.End.Sub(w.Start))
			return &data.UsageTotals{}, nil
		})
	repo.EXPECT().UsageByModel(gomock.Any(), gomock.Any()).Return(nil, nil)
	repo.EXPECT().TopUsersByUsage(gomock.Any(), gomock.Any(), defaultTopUsers).Return(nil, nil)

	_, err := svc.Report(context.Background(), model.UsageWindow{})
	require.NoError(t, err)
}

func TestUsageService_WriteCSV(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockUsageRepository(ctrl)
	svc := newTestUsageService(t, repo)

	window := fixedWindow()

	repo.EXPECT().UsageTotals(gomock.Any(), window).Return(&data.UsageTotals{TotalJobs: 6}, nil)
	repo.EXPECT().UsageByModel(gomock.Any(), window).Return([]model.UsageBucket{
		{Provider: model.ProviderOpenAI, Model: "gpt-4o", Jobs: 6, PromptTokens: 2000, CompletionTokens: 1000, TotalTokens: 3000},
	}, nil)
	repo.EXPECT().TopUsersByUsage(gomock.Any(), window, defaultTopUsers).Return(nil, nil)

	var buf bytes.Buffer
	require.NoError(t, svc.WriteCSV(context.Background(), &buf, window))

	want := "provider,model,jobs,prompt_tokens,completion_tokens,total_tokens,estimated_cost_usd\n" +
		"openai,gpt-4o,6,2000,1000,3000,0.025000\n"
	assert.Equal(t, want, buf.String())
}
