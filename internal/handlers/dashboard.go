package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/syncveil/apiserver/internal/services"
)

// SessionCounter reports live session counts. The jwt session backend has no
// session rows, in which case the dashboard shows zero.
type SessionCounter interface {
	CountByUser(ctx context.Context, userID int, now time.Time) (int, error)
}

// DashboardHandler aggregates per-user counts for the dashboard overview.
type DashboardHandler struct {
	vault    *services.VaultService
	monitor  *services.MonitorService
	sessions SessionCounter
}

// NewDashboardHandler constructs a handler. sessions may be nil.
func NewDashboardHandler(vaultService *services.VaultService, monitorService *services.MonitorService, sessions SessionCounter) *DashboardHandler {
	return &DashboardHandler{
		vault:    vaultService,
		monitor:  monitorService,
		sessions: sessions,
	}
}

// DashboardRouter registers the dashboard route on the given router.
func DashboardRouter(r chi.Router, vaultService *services.VaultService, monitorService *services.MonitorService, sessions SessionCounter, authMiddleware func(http.Handler) http.Handler) {
	handler := NewDashboardHandler(vaultService, monitorService, sessions)

	r.Use(authMiddleware)
	r.Get("/", handler.Overview)
}

// DashboardResponse is the overview payload.
type DashboardResponse struct {
	VaultFiles     int `json:"vault_files"`
	ActiveSessions int `json:"active_sessions"`
	BreachEvents   int `json:"breach_events"`
}

// Overview returns the caller's vault, session, and breach counts.
func (h *DashboardHandler) Overview(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeErrorKind(w, http.StatusUnauthorized, "not_authenticated", "unauthorized")
		return
	}

	files, err := h.vault.Count(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load dashboard")
		return
	}

	breaches, err := h.monitor.Count(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load dashboard")
		return
	}

	sessions := 0
	if h.sessions != nil {
		sessions, err = h.sessions.CountByUser(r.Context(), userID, time.Now())
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to load dashboard")
			return
		}
	}

	writeJSON(w, http.StatusOK, DashboardResponse{
		VaultFiles:     files,
		ActiveSessions: sessions,
		BreachEvents:   breaches,
	})
}
