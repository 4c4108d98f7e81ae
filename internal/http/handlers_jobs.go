// Package httpx provides the HTTP API surface of the AI generation gateway.
package httpx

import (
	"net/http"
	"time"

	"github.com/o4o-platform/ai-gateway/internal/domain/model"
	apperrors "github.com/o4o-platform/ai-gateway/internal/errors"
	"github.com/o4o-platform/ai-gateway/internal/service"
)

// JobHandlers provides HTTP handlers for job submission and lifecycle queries.
type JobHandlers struct {
	Svc *service.JobService
}

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 200

	defaultMetricsHours = 24
	maxMetricsHours     = 24 * 90
)

// enqueueResponse is the accepted-submission body.
type enqueueResponse struct {
	Success   bool   `json:"success"`
	JobID     string `json:"jobId"`
	RequestID string `json:"requestId"`
	Status    string `json:"status"`
}

// Enqueue handles job submission. The job is durably queued and picked up by
// a worker; callers follow progress via the job view or the event stream.
func (h *JobHandlers) Enqueue(w http.ResponseWriter, r *http.Request) {
	ident, ok := IdentityFromContext(r.Context())
	if !ok {
		WriteAppError(w, apperrors.Auth("authentication required"))
		return
	}

	var req model.EnqueueJobRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	job, err := h.Svc.Enqueue(r.Context(), ident.UserID, &req)
	if err != nil {
		WriteAppError(w, err)
		return
	}

	WriteJSON(w, http.StatusAccepted, enqueueResponse{
		Success:   true,
		JobID:     job.ID,
		RequestID: job.RequestID,
		Status:    string(job.Status),
	})
}

// Get returns one job the caller owns (admins see any job).
func (h *JobHandlers) Get(w http.ResponseWriter, r *http.Request) {
	ident, ok := IdentityFromContext(r.Context())
	if !ok {
		WriteAppError(w, apperrors.Auth("authentication required"))
		return
	}

	job, err := h.Svc.GetOwned(r.Context(), ident.UserID, ident.IsAdmin(), r.PathValue("id"))
	if err != nil {
		WriteAppError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, job)
}

// Cancel stops a job. Queued jobs are failed immediately; active jobs get a
// cooperative cancel flag and report cancelled=true once the flag is set.
func (h *JobHandlers) Cancel(w http.ResponseWriter, r *http.Request) {
	ident, ok := IdentityFromContext(r.Context())
	if !ok {
		WriteAppError(w, apperrors.Auth("authentication required"))
		return
	}

	job, err := h.Svc.Cancel(r.Context(), ident.UserID, ident.IsAdmin(), r.PathValue("id"))
	if err != nil {
		WriteAppError(w, err)
		return
	}

	cancelled := job.Status == model.JobStatusFailed || job.CancelRequested
	WriteJSON(w, http.StatusOK, map[string]any{
		"cancelled": cancelled,
		"status":    job.Status,
	})
}

// retryResponse is the manual-retry body.
type retryResponse struct {
	JobID        string `json:"jobId"`
	RequestID    string `json:"requestId"`
	RelatedJobID string `json:"relatedJobId"`
	Status       string `json:"status"`
	Rerun        bool   `json:"rerun"`
}

// Retry resubmits a job as a fresh record linked to the original. Works in
// any status; retrying a completed job re-runs the same spec.
func (h *JobHandlers) Retry(w http.ResponseWriter, r *http.Request) {
	ident, ok := IdentityFromContext(r.Context())
	if !ok {
		WriteAppError(w, apperrors.Auth("authentication required"))
		return
	}

	job, err := h.Svc.Retry(r.Context(), ident.UserID, ident.IsAdmin(), r.PathValue("id"))
	if err != nil {
		WriteAppError(w, err)
		return
	}

	related := ""
	if job.RelatedJobID != nil {
		related = *job.RelatedJobID
	}
	WriteJSON(w, http.StatusAccepted, retryResponse{
		JobID:        job.ID,
		RequestID:    job.RequestID,
		RelatedJobID: related,
		Status:       string(job.Status),
		Rerun:        true,
	})
}

// History returns the caller's most recent jobs, newest first. Admins can
// inspect another owner with ?owner=.
func (h *JobHandlers) History(w http.ResponseWriter, r *http.Request) {
	ident, ok := IdentityFromContext(r.Context())
	if !ok {
		WriteAppError(w, apperrors.Auth("authentication required"))
		return
	}

	limit, offset := ParseLimitOffset(r, defaultHistoryLimit, maxHistoryLimit)
	opts := &model.JobListOptions{Limit: limit, Offset: offset}

	if v := r.URL.Query().Get("status"); v != "" {
		status := model.JobStatus(v)
		if !status.Valid() {
			WriteAppError(w, apperrors.Validationf("invalid status filter: %q", v))
			return
		}
		opts.Status = &status
	}
	if v := r.URL.Query().Get("owner"); v != "" && ident.IsAdmin() {
		opts.OwnerID = &v
	}

	jobs, err := h.Svc.List(r.Context(), ident.UserID, ident.IsAdmin(), opts)
	if err != nil {
		WriteAppError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{
		"jobs":   jobs,
		"limit":  limit,
		"offset": offset,
	})
}

// Metrics returns queue depth counts for jobs created in the last N hours.
func (h *JobHandlers) Metrics(w http.ResponseWriter, r *http.Request) {
	hours := parseIntQuery(r, "hours", defaultMetricsHours)
	if hours < 1 || hours > maxMetricsHours {
		WriteAppError(w, apperrors.Validationf("hours must be between 1 and %d", maxMetricsHours))
		return
	}

	since := time.Now().Add(-time.Duration(hours) * time.Hour)
	stats, err := h.Svc.Stats(r.Context(), &since)
	if err != nil {
		WriteAppError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{
		"windowHours": hours,
		"counts":      stats,
	})
}
