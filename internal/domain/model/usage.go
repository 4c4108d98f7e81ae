package model

import "time"

// UsageBucket aggregates completed-job usage for one provider/model pair
// within a reporting window.
type UsageBucket struct {
	Provider         Provider `json:"provider"`
	Model            string   `json:"model"`
	Jobs             int      `json:"jobs"`
	PromptTokens     int64    `json:"promptTokens"`
	CompletionTokens int64    `json:"completionTokens"`
	TotalTokens      int64    `json:"totalTokens"`
	EstimatedCostUSD float64  `json:"estimatedCostUsd"`
}

// UserUsage aggregates usage for one owner, used for the top-consumers view.
type UserUsage struct {
	OwnerID          string  `json:"ownerId"`
	Jobs             int     `json:"jobs"`
	TotalTokens      int64   `json:"totalTokens"`
	EstimatedCostUSD float64 `json:"estimatedCostUsd"`
}

// UsageReport is the derived, non-persistent aggregate over a time window.
// It is computed on demand and never written back to job records.
type UsageReport struct {
	Start            time.Time     `json:"start"`
	End              time.Time     `json:"end"`
	TotalJobs        int           `json:"totalJobs"`
	Completed        int           `json:"completed"`
	Failed           int           `json:"failed"`
	InFlight         int           `json:"inFlight"`
	Retried          int           `json:"retried"`
	SuccessRate      float64       `json:"successRate"`
	AvgLatencyMS     float64       `json:"avgLatencyMs"`
	P95LatencyMS     float64       `json:"p95LatencyMs"`
	TotalTokens      int64         `json:"totalTokens"`
	EstimatedCostUSD float64       `json:"estimatedCostUsd"`
	Buckets          []UsageBucket `json:"byModel"`
	TopUsers         []UserUsage   `json:"topUsers,omitempty"`
}
