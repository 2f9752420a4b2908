package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/GoCodeAlone/registry/store"
	"github.com/GoCodeAlone/registry/version"
	"github.com/google/uuid"
)

// maxUploadBytes bounds the in-memory portion of a multipart upload; the
// remainder spills to temporary files.
const maxUploadBytes = 32 << 20

// VersionHandler handles artifact version endpoints.
type VersionHandler struct {
	svc *version.Service
}

// NewVersionHandler creates a new VersionHandler.
func NewVersionHandler(svc *version.Service) *VersionHandler {
	return &VersionHandler{svc: svc}
}

// Save handles POST /api/v1/versions/save. The request is a multipart form
// with fields name, file and optional description and metadata (JSON text).
func (h *VersionHandler) Save(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		WriteError(w, http.StatusBadRequest, "artifact file is required")
		return
	}
	defer file.Close()

	rec, err := h.svc.Create(r.Context(), version.CreateRequest{
		Name:        r.FormValue("name"),
		Description: r.FormValue("description"),
		Metadata:    r.FormValue("metadata"),
		Filename:    header.Filename,
		Content:     file,
	})
	if err != nil {
		switch {
		case errors.Is(err, version.ErrEmptyName):
			WriteError(w, http.StatusBadRequest, "version name is required")
		case errors.Is(err, version.ErrInvalidMetadata):
			WriteError(w, http.StatusBadRequest, "invalid metadata JSON format")
		case errors.Is(err, store.ErrDuplicate):
			WriteError(w, http.StatusConflict, "version name already exists")
		default:
			WriteError(w, http.StatusInternalServerError, "failed to save version")
		}
		return
	}

	WriteJSON(w, http.StatusCreated, rec)
}

// Get handles GET /api/v1/versions/{id}.
func (h *VersionHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		WriteError(w, http.StatusBadRequest, "invalid version id")
		return
	}

	rec, err := h.svc.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			WriteError(w, http.StatusNotFound, "version not found")
			return
		}
		WriteError(w, http.StatusInternalServerError, "internal error")
		return
	}
	WriteJSON(w, http.StatusOK, rec)
}

// List handles GET /api/v1/versions.
func (h *VersionHandler) List(w http.ResponseWriter, r *http.Request) {
	versions, err := h.svc.List(r.Context())
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if versions == nil {
		versions = []*store.VersionRecord{}
	}
	WriteJSON(w, http.StatusOK, versions)
}

// Restore handles POST /api/v1/versions/restore/{id}.
func (h *VersionHandler) Restore(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		WriteError(w, http.StatusBadRequest, "invalid version id")
		return
	}

	activePath, err := h.svc.Restore(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			WriteError(w, http.StatusNotFound, "version not found")
			return
		}
		WriteError(w, http.StatusInternalServerError, "failed to restore version")
		return
	}

	WriteJSON(w, http.StatusOK, map[string]string{
		"message":     fmt.Sprintf("version %s restored successfully", id),
		"active_path": activePath,
	})
}
