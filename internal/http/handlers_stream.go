package httpx

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	domainjob "github.com/o4o-platform/ai-gateway/internal/domain/job"
	"github.com/o4o-platform/ai-gateway/internal/domain/model"
	apperrors "github.com/o4o-platform/ai-gateway/internal/errors"
	"github.com/o4o-platform/ai-gateway/internal/service"
)

// streamHeartbeatInterval spaces the SSE comment frames that keep
// intermediaries from closing an otherwise quiet connection.
const streamHeartbeatInterval = 30 * time.Second

// StreamHandlers serves per-job lifecycle events over SSE.
type StreamHandlers struct {
	Svc               *service.JobService
	HeartbeatInterval time.Duration
}

// Stream attaches the caller to a job's event stream. The connection opens
// with a connected frame, relays progress and terminal frames, and closes
// after the terminal frame or client disconnect. Ownership is checked once
// at attach.
func (h *StreamHandlers) Stream(w http.ResponseWriter, r *http.Request) {
	ident, ok := IdentityFromContext(r.Context())
	if !ok {
		WriteAppError(w, apperrors.Auth("authentication required"))
		return
	}

	jobID := r.PathValue("id")
	job, err := h.Svc.GetOwned(r.Context(), ident.UserID, ident.IsAdmin(), jobID)
	if err != nil {
		WriteAppError(w, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		WriteAppError(w, apperrors.Internal("streaming unsupported by connection"))
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	writeFrame(w, "connected", map[string]string{"jobId": jobID})
	flusher.Flush()

	// Subscribe before the terminal re-check so an event landing between the
	// two cannot be missed.
	events, cancel := h.Svc.SubscribeEvents(jobID)
	defer cancel()

	job, err = h.Svc.GetOwned(r.Context(), ident.UserID, ident.IsAdmin(), jobID)
	if err == nil && job.Status.Terminal() {
		h.writeTerminalFromRecord(w, job)
		flusher.Flush()
		return
	}

	interval := h.HeartbeatInterval
	if interval <= 0 {
		interval = streamHeartbeatInterval
	}
	heartbeat := time.NewTicker(interval)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			fmt.Fprint(w, ": heartbeat\n\n")
			flusher.Flush()
		case ev, open := <-events:
			if !open {
				return
			}
			writeEvent(w, ev)
			flusher.Flush()
			if ev.Type.Terminal() {
				return
			}
		}
	}
}

// writeEvent renders one bus event as an SSE frame.
func writeEvent(w http.ResponseWriter, ev domainjob.Event) {
	switch ev.Type {
	case domainjob.EventProgress:
		writeFrame(w, string(ev.Type), map[string]any{
			"jobId":    ev.JobID,
			"progress": ev.Progress,
		})
	case domainjob.EventCompleted:
		writeFrame(w, string(ev.Type), map[string]any{
			"jobId":  ev.JobID,
			"status": model.JobStatusCompleted,
			"result": ev.Result,
		})
	case domainjob.EventFailed:
		writeFrame(w, string(ev.Type), map[string]any{
			"jobId":  ev.JobID,
			"status": model.JobStatusFailed,
			"error":  ev.Error,
		})
	}
}

// writeTerminalFromRecord emits the terminal frame for a job that finished
// before the stream attached.
func (h *StreamHandlers) writeTerminalFromRecord(w http.ResponseWriter, job *model.Job) {
	if job.Status == model.JobStatusCompleted {
		result, err := job.DecodedResult()
		if err != nil {
			result = nil
		}
		writeFrame(w, string(domainjob.EventCompleted), map[string]any{
			"jobId":  job.ID,
			"status": job.Status,
			"result": result,
		})
		return
	}
	writeFrame(w, string(domainjob.EventFailed), map[string]any{
		"jobId":  job.ID,
		"status": job.Status,
		"error":  job.Error(),
	})
}

// writeFrame writes one SSE frame. Encoding failures drop the frame; the
// stream itself stays usable.
func writeFrame(w http.ResponseWriter, event string, data any) {
	payload, err := json.Marshal(data)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, payload)
}
