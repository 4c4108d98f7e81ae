package httpx

import (
	"fmt"
	"net/http"
	"time"

	"github.com/o4o-platform/ai-gateway/internal/domain/model"
	apperrors "github.com/o4o-platform/ai-gateway/internal/errors"
	"github.com/o4o-platform/ai-gateway/internal/service"
)

// UsageHandlers serves admin usage and cost reports derived from job records.
type UsageHandlers struct {
	Svc *service.UsageService
}

const (
	dateOnlyFormat = "2006-01-02"

	minReportDays = 1
	maxReportDays = 365
)

// Report computes the usage aggregate for an explicit window with optional
// owner/provider/model filters. format=csv streams a per-model breakdown as
// a text/csv attachment.
func (h *UsageHandlers) Report(w http.ResponseWriter, r *http.Request) {
	window, err := windowFromQuery(r)
	if err != nil {
		WriteAppError(w, err)
		return
	}

	if r.URL.Query().Get("format") == "csv" {
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", `attachment; filename="usage-report.csv"`)
		if err := h.Svc.WriteCSV(r.Context(), w, window); err != nil {
			// Headers are out; nothing usable can follow a partial CSV.
			return
		}
		return
	}

	report, err := h.Svc.Report(r.Context(), window)
	if err != nil {
		WriteAppError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, report)
}

// CurrentMonth reports usage from the first of the current month until now.
func (h *UsageHandlers) CurrentMonth(w http.ResponseWriter, r *http.Request) {
	now := time.Now().UTC()
	start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)

	report, err := h.Svc.Report(r.Context(), model.UsageWindow{Start: start, End: now})
	if err != nil {
		WriteAppError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, report)
}

// LastNDays reports usage over the trailing N days (1..365, default 7).
func (h *UsageHandlers) LastNDays(w http.ResponseWriter, r *http.Request) {
	days := parseIntQuery(r, "days", 7)
	if days < minReportDays || days > maxReportDays {
		WriteAppError(w, apperrors.Validationf("days must be between %d and %d", minReportDays, maxReportDays))
		return
	}

	end := time.Now().UTC()
	start := end.AddDate(0, 0, -days)

	report, err := h.Svc.Report(r.Context(), model.UsageWindow{Start: start, End: end})
	if err != nil {
		WriteAppError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, report)
}

// windowFromQuery assembles a usage window from report query parameters.
func windowFromQuery(r *http.Request) (model.UsageWindow, error) {
	var window model.UsageWindow
	q := r.URL.Query()

	if v := q.Get("startDate"); v != "" {
		start, err := parseDateParam("startDate", v)
		if err != nil {
			return window, err
		}
		window.Start = start
	}
	if v := q.Get("endDate"); v != "" {
		end, err := parseDateParam("endDate", v)
		if err != nil {
			return window, err
		}
		// Date-only end bounds are inclusive of that day.
		if len(v) == len(dateOnlyFormat) {
			end = end.AddDate(0, 0, 1)
		}
		window.End = end
	}
	if !window.Start.IsZero() && !window.End.IsZero() && window.End.Before(window.Start) {
		return window, apperrors.Validation("endDate must not be before startDate")
	}

	if v := q.Get("userId"); v != "" {
		window.OwnerID = &v
	}
	if v := q.Get("provider"); v != "" {
		var p model.Provider
		if err := p.UnmarshalText([]byte(v)); err != nil {
			return window, apperrors.Validationf("invalid provider filter: %q", v)
		}
		window.Provider = &p
	}
	if v := q.Get("model"); v != "" {
		window.Model = &v
	}

	return window, nil
}

// parseDateParam accepts either a date (2006-01-02) or a full RFC 3339 stamp.
func parseDateParam(name, value string) (time.Time, error) {
	if t, err := time.Parse(dateOnlyFormat, value); err == nil {
		return t.UTC(), nil
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t.UTC(), nil
	}
	return time.Time{}, apperrors.Validation(fmt.Sprintf("%s must be YYYY-MM-DD or RFC 3339", name))
}
