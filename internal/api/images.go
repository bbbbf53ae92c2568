package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/glintapp/glint/internal/apperr"
	"github.com/glintapp/glint/internal/itemservice"
)

// ImageHandler serves stored image blobs to the note renderer.
type ImageHandler struct {
	engine *itemservice.Engine
}

// NewImageHandler creates an image handler over the engine's blob store.
func NewImageHandler(engine *itemservice.Engine) *ImageHandler {
	return &ImageHandler{engine: engine}
}

// Serve handles GET /images/{key}. Content type is sniffed from the bytes;
// blobs are immutable per key so aggressive caching is safe.
func (h *ImageHandler) Serve(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	if key == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("image key is required"))
		return
	}
	data, err := h.engine.Service().Store().Blobs().Get(key)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorBody("not found"))
			return
		}
		writeServiceError(w, "serve image", err)
		return
	}
	w.Header().Set("Content-Type", http.DetectContentType(data))
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	_, _ = w.Write(data)
}
