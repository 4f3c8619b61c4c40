package handler

import (
	"net/http"

	"github.com/afterword/backend/internal/model"
	"github.com/afterword/backend/internal/service"
)

// MediaHandler serves videos released to the caller.
type MediaHandler struct {
	media service.MediaService
}

// NewMediaHandler creates a MediaHandler.
func NewMediaHandler(media service.MediaService) *MediaHandler {
	return &MediaHandler{media: media}
}

type videoListResponse struct {
	Videos []*model.Video `json:"videos"`
}

// List handles GET /api/legacy/videos.
func (h *MediaHandler) List(w http.ResponseWriter, r *http.Request) {
	id, ok := callerID(w, r)
	if !ok {
		return
	}
	videos, err := h.media.ListReleased(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err, "list_failed")
		return
	}
	if videos == nil {
		videos = []*model.Video{}
	}
	writeJSON(w, http.StatusOK, videoListResponse{Videos: videos})
}

// URL handles GET /api/legacy/videos/{id}/url.
func (h *MediaHandler) URL(w http.ResponseWriter, r *http.Request) {
	id, ok := callerID(w, r)
	if !ok {
		return
	}
	u, err := h.media.SignedURL(r.Context(), id, r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, err, "url_failed")
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, u)
}
