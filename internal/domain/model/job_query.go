package model

import "time"

// JobListOptions groups parameters for listing jobs with optional filters.
type JobListOptions struct {
	OwnerID  *string    // Optional filter by owner
	Status   *JobStatus // Optional filter by status (queued, active, completed, failed)
	Provider *Provider  // Optional filter by provider
	Model    *string    // Optional filter by model
	Since    *time.Time // Optional lower bound on created_at
	Limit    int        // Pagination limit
	Offset   int        // Pagination offset
}

// UsageWindow selects the time window and filters for usage aggregation.
type UsageWindow struct {
	Start    time.Time
	End      time.Time
	OwnerID  *string
	Provider *Provider
	Model    *string
}
