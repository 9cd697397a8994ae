package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/syncveil/apiserver/internal/auth"
	"github.com/syncveil/apiserver/internal/store"
)

type contextKey string

const contextUserKey contextKey = "user_id"

// ErrorResponse is the error payload for every non-2xx response. Kind is a
// stable machine-readable string; Error is a human-readable message.
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

// StatusResponse is a minimal acknowledgement body.
type StatusResponse struct {
	Status string `json:"status"`
}

func userIDFromContext(ctx context.Context) (int, error) {
	id, ok := ctx.Value(contextUserKey).(int)
	if !ok || id < 1 {
		return 0, errors.New("missing subject")
	}
	return id, nil
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}

func writeErrorKind(w http.ResponseWriter, status int, kind, message string) {
	writeJSON(w, status, ErrorResponse{Error: message, Kind: kind})
}

// writeAuthError maps service error kinds to an HTTP status and a stable
// kind string. Anything unrecognized becomes a generic 500 so storage
// failures never masquerade as credential problems.
func writeAuthError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, auth.ErrInvalidInput):
		writeErrorKind(w, http.StatusBadRequest, "invalid_input", err.Error())
	case errors.Is(err, auth.ErrDuplicateEmail):
		writeErrorKind(w, http.StatusConflict, "duplicate_email", "email already registered")
	case errors.Is(err, auth.ErrInvalidCredentials):
		writeErrorKind(w, http.StatusUnauthorized, "invalid_credentials", "invalid email or password")
	case errors.Is(err, auth.ErrEmailNotVerified):
		writeErrorKind(w, http.StatusForbidden, "email_not_verified", "email address not verified")
	case errors.Is(err, auth.ErrTokenNotFound):
		writeErrorKind(w, http.StatusNotFound, "token_not_found", "unknown verification token")
	case errors.Is(err, auth.ErrTokenExpired):
		writeErrorKind(w, http.StatusGone, "token_expired", "verification token expired")
	case errors.Is(err, auth.ErrTokenAlreadyConsumed):
		writeErrorKind(w, http.StatusConflict, "token_consumed", "verification token already used")
	case errors.Is(err, auth.ErrNotAuthenticated):
		writeErrorKind(w, http.StatusUnauthorized, "not_authenticated", "unauthorized")
	case errors.Is(err, store.ErrNotFound):
		writeErrorKind(w, http.StatusNotFound, "not_found", "not found")
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// Healthz reports process liveness.
func Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, StatusResponse{Status: "ok"})
}

func bearerToken(r *http.Request) (string, error) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return "", errors.New("missing authorization")
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", errors.New("invalid authorization")
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", errors.New("invalid authorization")
	}
	return token, nil
}
