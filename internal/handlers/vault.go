package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/syncveil/apiserver/internal/services"
	"github.com/syncveil/apiserver/internal/store"
	"github.com/syncveil/apiserver/types"
)

const (
	maxMultipartMemory = 32 << 20
	formFieldFile      = "file"
)

// VaultHandler provides HTTP handlers for encrypted vault files.
type VaultHandler struct {
	vault *services.VaultService
}

// NewVaultHandler constructs a handler with the provided service.
func NewVaultHandler(vaultService *services.VaultService) *VaultHandler {
	return &VaultHandler{vault: vaultService}
}

// VaultRouter registers vault routes on the given router. Every route
// requires authentication.
func VaultRouter(r chi.Router, vaultService *services.VaultService, authMiddleware func(http.Handler) http.Handler) {
	handler := NewVaultHandler(vaultService)

	r.Use(authMiddleware)
	r.Post("/upload", handler.Upload)
	r.Get("/files", handler.List)
	r.Get("/files/{id}/download", handler.Download)
	r.Delete("/files/{id}", handler.Delete)
}

// Upload stores a multipart file for the caller and records its metadata.
func (h *VaultHandler) Upload(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeErrorKind(w, http.StatusUnauthorized, "not_authenticated", "unauthorized")
		return
	}

	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		writeErrorKind(w, http.StatusBadRequest, "invalid_input", "invalid multipart body")
		return
	}

	file, header, err := r.FormFile(formFieldFile)
	if err != nil {
		writeErrorKind(w, http.StatusBadRequest, "invalid_input", "missing file field")
		return
	}
	defer file.Close()

	if header.Filename == "" {
		writeErrorKind(w, http.StatusBadRequest, "invalid_input", "missing filename")
		return
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	stored, err := h.vault.Upload(r.Context(), userID, header.Filename, contentType, file, header.Size)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to store file")
		return
	}

	writeJSON(w, http.StatusCreated, stored)
}

// List returns the caller's vault file metadata.
func (h *VaultHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeErrorKind(w, http.StatusUnauthorized, "not_authenticated", "unauthorized")
		return
	}

	files, err := h.vault.List(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list files")
		return
	}
	if files == nil {
		files = []types.VaultFile{}
	}

	writeJSON(w, http.StatusOK, files)
}

// Download streams a vault file back to its owner.
func (h *VaultHandler) Download(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeErrorKind(w, http.StatusUnauthorized, "not_authenticated", "unauthorized")
		return
	}

	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil || id < 1 {
		writeErrorKind(w, http.StatusBadRequest, "invalid_input", "invalid file id")
		return
	}

	file, body, err := h.vault.Open(r.Context(), userID, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeErrorKind(w, http.StatusNotFound, "not_found", "file not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to open file")
		return
	}
	defer body.Close()

	w.Header().Set("Content-Type", file.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", file.Name))
	if file.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(file.Size, 10))
	}
	w.WriteHeader(http.StatusOK)
	_, _ = io.Copy(w, body)
}

// Delete removes a vault file and its stored object.
func (h *VaultHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeErrorKind(w, http.StatusUnauthorized, "not_authenticated", "unauthorized")
		return
	}

	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil || id < 1 {
		writeErrorKind(w, http.StatusBadRequest, "invalid_input", "invalid file id")
		return
	}

	if err := h.vault.Delete(r.Context(), userID, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeErrorKind(w, http.StatusNotFound, "not_found", "file not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to delete file")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
