package handler

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/dukerupert/familyos/internal/media"
	"github.com/dukerupert/familyos/internal/store"
)

type MediaHandler struct {
	media       *media.Store
	familyStore *store.FamilyStore
	logger      *slog.Logger
}

func NewMediaHandler(ms *media.Store, fs *store.FamilyStore, logger *slog.Logger) *MediaHandler {
	return &MediaHandler{media: ms, familyStore: fs, logger: logger}
}

// Upload handles PUT /api/families/{family_id}/media/{name}. The request
// body is the raw object.
func (h *MediaHandler) Upload(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireMember(h.familyStore, h.logger, w, r)
	if !ok {
		return
	}
	if !h.media.Configured() {
		writeError(w, http.StatusServiceUnavailable, "media storage is not configured")
		return
	}

	data, err := io.ReadAll(io.LimitReader(r.Body, media.MaxUploadSize+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read body")
		return
	}
	if len(data) > media.MaxUploadSize {
		writeError(w, http.StatusRequestEntityTooLarge, "file too large")
		return
	}
	if len(data) == 0 {
		writeError(w, http.StatusBadRequest, "empty upload")
		return
	}

	name := r.PathValue("name")
	url, err := h.media.Put(r.Context(), caller.FamilyID, name, bytes.NewReader(data), int64(len(data)), r.Header.Get("Content-Type"))
	if errors.Is(err, media.ErrInvalidName) {
		writeError(w, http.StatusBadRequest, "invalid object name")
		return
	}
	if err != nil {
		h.logger.Error("upload media", "family_id", caller.FamilyID, "name", name, "error", err)
		writeError(w, http.StatusBadGateway, "failed to store media")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{"url": url})
}

// Download handles GET /api/families/{family_id}/media/{name} for buckets
// that are not publicly readable.
func (h *MediaHandler) Download(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireMember(h.familyStore, h.logger, w, r)
	if !ok {
		return
	}

	name := r.PathValue("name")
	obj, err := h.media.Get(r.Context(), caller.FamilyID, name)
	switch {
	case errors.Is(err, media.ErrNotConfigured):
		writeError(w, http.StatusServiceUnavailable, "media storage is not configured")
		return
	case errors.Is(err, media.ErrInvalidName), errors.Is(err, media.ErrNotFound):
		writeError(w, http.StatusNotFound, "media not found")
		return
	case err != nil:
		h.logger.Error("download media", "family_id", caller.FamilyID, "name", name, "error", err)
		writeError(w, http.StatusBadGateway, "failed to load media")
		return
	}
	defer obj.Body.Close()

	if obj.ContentType != "" {
		w.Header().Set("Content-Type", obj.ContentType)
	}
	if obj.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(obj.Size, 10))
	}
	w.Header().Set("Cache-Control", "private, max-age=86400")
	if _, err := io.Copy(w, obj.Body); err != nil {
		h.logger.Debug("stream media", "name", name, "error", err)
	}
}
