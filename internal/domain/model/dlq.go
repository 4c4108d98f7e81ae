package model

import "time"

// DLQEntry wraps a terminally failed job with triage metadata. Entries are
// created when a job exhausts its retry budget (or fails non-retryably) and
// are marked consumed when resubmitted successfully.
type DLQEntry struct {
	ID         string     `json:"id"                   db:"id"`
	JobID      string     `json:"jobId"                db:"job_id"`
	OwnerID    string     `json:"ownerId"              db:"owner_id"`
	Provider   Provider   `json:"provider"             db:"provider"`
	Model      string     `json:"model"                db:"model"`
	Reason     string     `json:"reason"               db:"reason"`
	Message    string     `json:"message"              db:"message"`
	Retryable  bool       `json:"retryable"            db:"retryable"`
	Attempts   int        `json:"attempts"             db:"attempts"`
	DLQRetries int        `json:"dlqRetries"           db:"dlq_retries"`
	CreatedAt  time.Time  `json:"createdAt"            db:"created_at"`
	ConsumedAt *time.Time `json:"consumedAt,omitempty" db:"consumed_at"`
}

// DLQStats summarizes unconsumed DLQ entries for the triage view.
type DLQStats struct {
	Total           int            `json:"total"`
	CountByReason   map[string]int `json:"countByReason"`
	CountByProvider map[string]int `json:"countByProvider"`
	OldestAge       *float64       `json:"oldestAgeSeconds,omitempty"`
}
