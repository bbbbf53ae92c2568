package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/glintapp/glint/internal/itemservice"
	"github.com/glintapp/glint/internal/storagepath"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(engine *itemservice.Engine, resolver *storagepath.Resolver, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(engine, resolver)
	ih := NewImageHandler(engine)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Search.
	r.Get("/search", h.Search)

	// Items CRUD.
	r.Post("/items", h.CreateItem)
	r.Get("/items/{id}", h.GetItem)
	r.Put("/items/{id}", h.SaveItem)
	r.Put("/items/{id}/title", h.RenameItem)
	r.Get("/items/{id}/path", h.ItemPath)
	r.Delete("/items/{id}", h.DeleteItem)

	// Export snapshot.
	r.Get("/export", h.Export)

	// Trash.
	r.Get("/trash", h.ListTrash)
	r.Get("/trash/{key}", h.TrashPreview)
	r.Post("/trash/{key}/restore", h.RestoreItem)
	r.Delete("/trash/{key}", h.PurgeTrash)

	// Storage location and settings.
	r.Get("/storage-path", h.GetStoragePath)
	r.Put("/storage-path", h.SetStoragePath)
	r.Get("/settings/hotkey", h.GetHotkey)
	r.Put("/settings/hotkey", h.SetHotkey)

	// Maintenance.
	r.Post("/maintenance/rebuild", h.Rebuild)
	r.Post("/maintenance/sweep-blobs", h.SweepBlobs)

	// Image blobs.
	r.Get("/images/{key}", ih.Serve)

	// SSE endpoint (protected by same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
