package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/syncveil/apiserver/internal/services"
	"github.com/syncveil/apiserver/types"
)

// MonitorHandler serves the breach monitor's recorded events.
type MonitorHandler struct {
	monitor *services.MonitorService
}

// NewMonitorHandler constructs a handler with the provided service.
func NewMonitorHandler(monitorService *services.MonitorService) *MonitorHandler {
	return &MonitorHandler{monitor: monitorService}
}

// MonitorRouter registers breach monitor routes on the given router. Every
// route requires authentication.
func MonitorRouter(r chi.Router, monitorService *services.MonitorService, authMiddleware func(http.Handler) http.Handler) {
	handler := NewMonitorHandler(monitorService)

	r.Use(authMiddleware)
	r.Get("/breaches", handler.Breaches)
}

// Breaches returns the most recent breach events recorded for the caller.
func (h *MonitorHandler) Breaches(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeErrorKind(w, http.StatusUnauthorized, "not_authenticated", "unauthorized")
		return
	}

	events, err := h.monitor.Breaches(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list breach events")
		return
	}
	if events == nil {
		events = []types.BreachEvent{}
	}

	writeJSON(w, http.StatusOK, events)
}
