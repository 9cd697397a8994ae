package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/syncveil/apiserver/internal/services"
	"github.com/syncveil/apiserver/types"
)

// AuthHandler provides the credential lifecycle endpoints.
type AuthHandler struct {
	auth *services.AuthService
}

// NewAuthHandler constructs an AuthHandler with the provided service.
func NewAuthHandler(authService *services.AuthService) *AuthHandler {
	return &AuthHandler{auth: authService}
}

// AuthRouter registers auth routes on the given router.
func AuthRouter(r chi.Router, authService *services.AuthService) {
	handler := NewAuthHandler(authService)

	r.Post("/signup", handler.Signup)
	r.Post("/login", handler.Login)
	r.Get("/verify", handler.Verify)
	r.Post("/resend", handler.Resend)
	r.Post("/logout", handler.Logout)
	r.Get("/me", handler.Me)
}

// RequireAuth resolves the bearer credential to a user id and injects it
// into the request context. Routers for protected surfaces mount it with
// chi's Use.
func RequireAuth(authService *services.AuthService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			credential, err := bearerToken(r)
			if err != nil {
				writeErrorKind(w, http.StatusUnauthorized, "not_authenticated", "unauthorized")
				return
			}

			userID, err := authService.VerifyCredential(r.Context(), credential)
			if err != nil {
				writeAuthError(w, err)
				return
			}

			ctx := context.WithValue(r.Context(), contextUserKey, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Signup registers a new account. The account starts unverified and no
// session is issued; the response carries the pending user.
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req SignupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorKind(w, http.StatusBadRequest, "invalid_input", "invalid request body")
		return
	}

	user, err := h.auth.Signup(r.Context(), req.Email, req.Password, strings.TrimSpace(req.Name))
	if err != nil {
		writeAuthError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, user)
}

// Login verifies credentials and returns a session credential.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorKind(w, http.StatusBadRequest, "invalid_input", "invalid request body")
		return
	}

	user, credential, err := h.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeAuthError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, LoginResponse{Token: credential, User: user})
}

// Verify consumes an emailed verification token and activates the account.
func (h *AuthHandler) Verify(w http.ResponseWriter, r *http.Request) {
	token := strings.TrimSpace(r.URL.Query().Get("token"))
	if token == "" {
		writeErrorKind(w, http.StatusBadRequest, "invalid_input", "missing token")
		return
	}

	user, err := h.auth.VerifyEmail(r.Context(), token)
	if err != nil {
		writeAuthError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, user)
}

// Resend issues a fresh verification token. The response is the same
// whether or not the address has an account.
func (h *AuthHandler) Resend(w http.ResponseWriter, r *http.Request) {
	var req ResendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorKind(w, http.StatusBadRequest, "invalid_input", "invalid request body")
		return
	}

	if err := h.auth.ResendVerification(r.Context(), req.Email); err != nil {
		writeAuthError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, StatusResponse{Status: "ok"})
}

// Logout revokes the presented credential. It responds 204 regardless of
// whether the credential was live, unknown, or absent.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	credential, err := bearerToken(r)
	if err != nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	if err := h.auth.Logout(r.Context(), credential); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to log out")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Me returns the account behind the presented credential.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	credential, err := bearerToken(r)
	if err != nil {
		writeErrorKind(w, http.StatusUnauthorized, "not_authenticated", "unauthorized")
		return
	}

	user, err := h.auth.WhoAmI(r.Context(), credential)
	if err != nil {
		writeAuthError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, user)
}

type SignupRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type ResendRequest struct {
	Email string `json:"email"`
}

type LoginResponse struct {
	Token string     `json:"token"`
	User  types.User `json:"user"`
}
