package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/glintapp/glint/internal/apperr"
	"github.com/glintapp/glint/internal/itemservice"
	"github.com/glintapp/glint/internal/storagepath"
)

// maxRequestBytes bounds request bodies: the note limit plus headroom for
// base64-encoded images.
const maxRequestBytes = 512 << 20

// Handler holds API route handlers.
type Handler struct {
	engine   *itemservice.Engine
	resolver *storagepath.Resolver
}

// NewHandler creates a new Handler.
func NewHandler(engine *itemservice.Engine, resolver *storagepath.Resolver) *Handler {
	return &Handler{engine: engine, resolver: resolver}
}

func itemID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// writeServiceError maps service errors onto HTTP statuses.
func writeServiceError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
	case errors.Is(err, apperr.ErrValidation):
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
	case errors.Is(err, apperr.ErrInvalidPath):
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
	case errors.Is(err, apperr.ErrStorageUnavailable):
		writeJSON(w, http.StatusServiceUnavailable, errorBody("storage unavailable"))
	default:
		slog.Error(op+" failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
	}
}

// Search handles GET /api/search. An absent or empty query lists the most
// recently updated items.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	results, err := h.engine.Service().Search(q, limit)
	if err != nil {
		writeServiceError(w, "search", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"results": results,
	})
}

// CreateItem handles POST /api/items.
func (h *Handler) CreateItem(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBytes)
	var req struct {
		Title  string         `json:"title"`
		Note   string         `json:"note"`
		Images []imagePayload `json:"images"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	item, err := h.engine.Service().Create(req.Title, req.Note, toNoteImages(req.Images))
	if err != nil {
		writeServiceError(w, "create item", err)
		return
	}
	writeJSON(w, http.StatusCreated, toItemResponse(item, false))
}

// GetItem handles GET /api/items/{id}.
func (h *Handler) GetItem(w http.ResponseWriter, r *http.Request) {
	id, ok := itemID(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid item id"))
		return
	}
	item, err := h.engine.Service().Get(id)
	if err != nil {
		writeServiceError(w, "get item", err)
		return
	}
	writeJSON(w, http.StatusOK, toItemResponse(item, true))
}

// SaveItem handles PUT /api/items/{id}.
func (h *Handler) SaveItem(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBytes)
	id, ok := itemID(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid item id"))
		return
	}
	var req struct {
		Note   string         `json:"note"`
		Images []imagePayload `json:"images"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	item, err := h.engine.Service().Save(id, req.Note, toNoteImages(req.Images))
	if err != nil {
		writeServiceError(w, "save item", err)
		return
	}
	writeJSON(w, http.StatusOK, toItemResponse(item, false))
}

// RenameItem handles PUT /api/items/{id}/title.
func (h *Handler) RenameItem(w http.ResponseWriter, r *http.Request) {
	id, ok := itemID(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid item id"))
		return
	}
	var req struct {
		Title string `json:"title"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	item, err := h.engine.Service().Rename(id, req.Title)
	if err != nil {
		writeServiceError(w, "rename item", err)
		return
	}
	writeJSON(w, http.StatusOK, toItemResponse(item, false))
}

// DeleteItem handles DELETE /api/items/{id}.
func (h *Handler) DeleteItem(w http.ResponseWriter, r *http.Request) {
	id, ok := itemID(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid item id"))
		return
	}
	if err := h.engine.Service().Delete(id); err != nil {
		writeServiceError(w, "delete item", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ItemPath handles GET /api/items/{id}/path.
func (h *Handler) ItemPath(w http.ResponseWriter, r *http.Request) {
	id, ok := itemID(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid item id"))
		return
	}
	path, err := h.engine.Service().Path(id)
	if err != nil {
		writeServiceError(w, "item path", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"path": path})
}

// Export handles GET /api/export.
func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	items, err := h.engine.Service().ExportAll()
	if err != nil {
		writeServiceError(w, "export", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

// ListTrash handles GET /api/trash.
func (h *Handler) ListTrash(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	deleted, err := h.engine.Service().ListDeleted(limit)
	if err != nil {
		writeServiceError(w, "list trash", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": deleted})
}

// TrashPreview handles GET /api/trash/{key}.
func (h *Handler) TrashPreview(w http.ResponseWriter, r *http.Request) {
	preview, err := h.engine.Service().DeletedPreview(chi.URLParam(r, "key"))
	if err != nil {
		writeServiceError(w, "trash preview", err)
		return
	}
	writeJSON(w, http.StatusOK, preview)
}

// RestoreItem handles POST /api/trash/{key}/restore.
func (h *Handler) RestoreItem(w http.ResponseWriter, r *http.Request) {
	item, err := h.engine.Service().Restore(chi.URLParam(r, "key"))
	if err != nil {
		writeServiceError(w, "restore item", err)
		return
	}
	writeJSON(w, http.StatusCreated, toItemResponse(item, false))
}

// PurgeTrash handles DELETE /api/trash/{key}.
func (h *Handler) PurgeTrash(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.Service().PurgeDeleted(chi.URLParam(r, "key")); err != nil {
		writeServiceError(w, "purge trash", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetStoragePath handles GET /api/storage-path.
func (h *Handler) GetStoragePath(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"path": h.engine.Root()})
}

// SetStoragePath handles PUT /api/storage-path: the new location is
// validated, persisted as the preference, and the engine re-rooted with
// existing items migrated over.
func (h *Handler) SetStoragePath(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Path string `json:"path"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	abs, err := h.resolver.SaveStoragePath(req.Path)
	if err != nil {
		writeServiceError(w, "save storage path", err)
		return
	}
	if err := h.engine.SetStorageRoot(r.Context(), abs); err != nil {
		writeServiceError(w, "switch storage root", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"path": abs})
}

// GetHotkey handles GET /api/settings/hotkey.
func (h *Handler) GetHotkey(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"hotkey": h.resolver.Load().Hotkey})
}

// SetHotkey handles PUT /api/settings/hotkey.
func (h *Handler) SetHotkey(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Hotkey string `json:"hotkey"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if err := h.resolver.SaveHotkey(req.Hotkey); err != nil {
		writeServiceError(w, "save hotkey", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"hotkey": req.Hotkey})
}

// Rebuild handles POST /api/maintenance/rebuild.
func (h *Handler) Rebuild(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.Service().Rebuild(); err != nil {
		writeServiceError(w, "rebuild index", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SweepBlobs handles POST /api/maintenance/sweep-blobs.
func (h *Handler) SweepBlobs(w http.ResponseWriter, r *http.Request) {
	removed, err := h.engine.Service().SweepBlobs()
	if err != nil {
		writeServiceError(w, "sweep blobs", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"removed": removed})
}
