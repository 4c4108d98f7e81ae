package httpx

import (
	"net/http"

	"github.com/o4o-platform/ai-gateway/internal/service"
)

// DLQHandlers provides admin triage endpoints over the dead letter queue.
type DLQHandlers struct {
	Svc *service.DLQService
}

const (
	defaultDLQLimit = 100
	maxDLQLimit     = 500
)

// List returns unconsumed entries, newest first.
func (h *DLQHandlers) List(w http.ResponseWriter, r *http.Request) {
	limit, offset := ParseLimitOffset(r, defaultDLQLimit, maxDLQLimit)

	entries, err := h.Svc.List(r.Context(), limit, offset)
	if err != nil {
		WriteAppError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{
		"entries": entries,
		"limit":   limit,
		"offset":  offset,
	})
}

// Stats summarizes the unconsumed backlog by reason and provider.
func (h *DLQHandlers) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Svc.Stats(r.Context())
	if err != nil {
		WriteAppError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, stats)
}

// Retry resubmits a dead-lettered job as a fresh queued record and marks the
// entry consumed. Entries flagged non-retryable are refused.
func (h *DLQHandlers) Retry(w http.ResponseWriter, r *http.Request) {
	job, err := h.Svc.Retry(r.Context(), r.PathValue("id"))
	if err != nil {
		WriteAppError(w, err)
		return
	}

	WriteJSON(w, http.StatusAccepted, map[string]any{
		"success":    true,
		"jobId":      job.ID,
		"requestId":  job.RequestID,
		"dlqEntryId": r.PathValue("id"),
		"status":     job.Status,
	})
}
