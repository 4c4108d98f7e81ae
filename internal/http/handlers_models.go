package httpx

import (
	"net/http"

	"github.com/o4o-platform/ai-gateway/internal/domain/model"
	"github.com/o4o-platform/ai-gateway/internal/service"
)

// ModelHandlers exposes the provider/model whitelist so clients can discover
// what the gateway will accept before submitting.
type ModelHandlers struct {
	Svc *service.JobService
}

// List returns the allowed models per provider plus the sampling parameter bounds.
func (h *ModelHandlers) List(w http.ResponseWriter, r *http.Request) {
	whitelist := h.Svc.Whitelist()

	models := make(map[model.Provider][]string, len(whitelist.Models))
	for _, p := range whitelist.Providers() {
		models[p] = whitelist.ModelsFor(p)
	}

	WriteJSON(w, http.StatusOK, map[string]any{
		"models": models,
		"bounds": whitelist.Bounds,
	})
}
