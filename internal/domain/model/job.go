// Package model defines the core data types used throughout the AI generation gateway.
package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Provider identifies an upstream LLM provider.
//
//nolint:recvcheck // UnmarshalText needs pointer receiver, Valid needs value receiver
type Provider string

// JobStatus represents the current status of a generation job.
type JobStatus string

const (
	// ProviderOpenAI routes generation to the OpenAI chat completions API.
	ProviderOpenAI Provider = "openai"
	// ProviderGemini routes generation to the Google Gemini API.
	ProviderGemini Provider = "gemini"
	// ProviderClaude routes generation to the Anthropic messages API.
	ProviderClaude Provider = "claude"

	// JobStatusQueued indicates a job is waiting to be dispatched.
	JobStatusQueued JobStatus = "queued"
	// JobStatusActive indicates a worker holds the lease and is executing the job.
	JobStatusActive JobStatus = "active"
	// JobStatusCompleted indicates the job finished with a result.
	JobStatusCompleted JobStatus = "completed"
	// JobStatusFailed indicates the job finished with an error.
	JobStatusFailed JobStatus = "failed"
)

// DefaultMaxAttempts bounds automatic re-enqueues for retryable failures.
const DefaultMaxAttempts = 3

// ErrNoJobsAvailable is returned when no jobs are available for reservation.
var ErrNoJobsAvailable = errors.New("no jobs available")

// UnmarshalText implements encoding.TextUnmarshaler for Provider to allow env parsing.
func (p *Provider) UnmarshalText(text []byte) error {
	v := Provider(strings.ToLower(strings.TrimSpace(string(text))))
	if v.Valid() {
		*p = v
		return nil
	}
	return fmt.Errorf("invalid provider: %q", string(text))
}

// Valid returns true if the Provider is a known provider.
func (p Provider) Valid() bool {
	return p == ProviderOpenAI || p == ProviderGemini || p == ProviderClaude
}

// Valid returns true if the JobStatus is valid.
func (s JobStatus) Valid() bool {
	return s == JobStatusQueued || s == JobStatusActive || s == JobStatusCompleted ||
		s == JobStatusFailed
}

// Terminal returns true once a job can no longer change state.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// GenerationSpec is the immutable input of a job. It never changes after
// enqueue; retries copy it verbatim into a new record.
type GenerationSpec struct {
	Provider     Provider `json:"provider"               db:"provider"`
	Model        string   `json:"model"                  db:"model"`
	SystemPrompt string   `json:"systemPrompt"           db:"system_prompt"`
	UserPrompt   string   `json:"userPrompt"             db:"user_prompt"`
	Temperature  *float64 `json:"temperature,omitempty"  db:"temperature"`
	MaxTokens    *int     `json:"maxTokens,omitempty"    db:"max_tokens"`
	TopP         *float64 `json:"topP,omitempty"         db:"top_p"`
	TopK         *int     `json:"topK,omitempty"         db:"top_k"`
}

// Usage reports token consumption for one provider call.
type Usage struct {
	PromptTokens     int `json:"promptTokens"`
	CompletionTokens int `json:"completionTokens"`
	TotalTokens      int `json:"totalTokens"`
}

// GenerationResult is the stored payload of a completed job: the extracted
// text, token usage, and the provider's raw response for audit.
type GenerationResult struct {
	Text  string          `json:"text"`
	Usage Usage           `json:"usage"`
	Raw   json.RawMessage `json:"raw,omitempty"`
}

// JobError is the typed failure recorded on a failed job.
type JobError struct {
	Type      string `json:"type"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
}

// Job represents one generation request tracked through the
// queued/active/terminal lifecycle.
type Job struct {
	ID        string `json:"id"        db:"id"`
	RequestID string `json:"requestId" db:"request_id"`
	OwnerID   string `json:"ownerId"   db:"owner_id"`

	GenerationSpec

	Status          JobStatus       `json:"status"                   db:"status"`
	Progress        int             `json:"progress"                 db:"progress"`
	Result          json.RawMessage `json:"result,omitempty"         db:"result"`
	ErrorType       *string         `json:"-"                        db:"error_type"`
	ErrorMessage    *string         `json:"-"                        db:"error_message"`
	ErrorRetryable  *bool           `json:"-"                        db:"error_retryable"`
	RelatedJobID    *string         `json:"relatedJobId,omitempty"   db:"related_job_id"`
	Attempt         int             `json:"attempt"                  db:"attempt"`
	MaxAttempts     int             `json:"maxAttempts"              db:"max_attempts"`
	CancelRequested bool            `json:"-"                        db:"cancel_requested"`
	LeaseExpiresAt  *time.Time      `json:"-"                        db:"lease_expires_at"`
	ScheduledAt     time.Time       `json:"scheduledAt"              db:"scheduled_at"`
	CreatedAt       time.Time       `json:"createdAt"                db:"created_at"`
	StartedAt       *time.Time      `json:"startedAt,omitempty"      db:"started_at"`
	CompletedAt     *time.Time      `json:"completedAt,omitempty"    db:"completed_at"`
}

// Error assembles the typed failure view, or nil when the job has not failed.
func (j *Job) Error() *JobError {
	if j.ErrorType == nil {
		return nil
	}
	e := &JobError{Type: *j.ErrorType}
	if j.ErrorMessage != nil {
		e.Message = *j.ErrorMessage
	}
	if j.ErrorRetryable != nil {
		e.Retryable = *j.ErrorRetryable
	}
	return e
}

// MarshalJSON adds the assembled error object to the default encoding so
// callers see {type, message, retryable} instead of three nullable columns.
func (j Job) MarshalJSON() ([]byte, error) {
	type alias Job
	return json.Marshal(struct {
		alias

		Error *JobError `json:"error,omitempty"`
	}{alias: alias(j), Error: j.Error()})
}

// DecodedResult unmarshals the stored result payload.
// Returns nil when the job has no result yet.
func (j *Job) DecodedResult() (*GenerationResult, error) {
	if len(j.Result) == 0 {
		return nil, nil
	}
	var out GenerationResult
	if err := json.Unmarshal(j.Result, &out); err != nil {
		return nil, fmt.Errorf("decode job result: %w", err)
	}
	return &out, nil
}

// EnqueueJobRequest is the submission body accepted at the API boundary.
type EnqueueJobRequest struct {
	Provider     Provider `json:"provider"`
	Model        string   `json:"model"`
	SystemPrompt string   `json:"systemPrompt,omitempty"`
	UserPrompt   string   `json:"userPrompt"`
	Temperature  *float64 `json:"temperature,omitempty"`
	MaxTokens    *int     `json:"maxTokens,omitempty"`
	TopP         *float64 `json:"topP,omitempty"`
	TopK         *int     `json:"topK,omitempty"`
	RequestID    string   `json:"requestId,omitempty"`
}

// Spec copies the request into the immutable job spec.
func (r *EnqueueJobRequest) Spec() GenerationSpec {
	return GenerationSpec{
		Provider:     r.Provider,
		Model:        r.Model,
		SystemPrompt: r.SystemPrompt,
		UserPrompt:   r.UserPrompt,
		Temperature:  r.Temperature,
		MaxTokens:    r.MaxTokens,
		TopP:         r.TopP,
		TopK:         r.TopK,
	}
}

// JobStats counts jobs by state.
type JobStats struct {
	Queued    int `json:"queued"`
	Active    int `json:"active"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
}
