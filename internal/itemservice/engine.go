package itemservice

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/glintapp/glint/internal/consistency"
)

// Engine wraps a Service and allows the storage root to be swapped at
// runtime. Callers hold the engine; the service behind it changes when the
// user picks a new storage location.
type Engine struct {
	mu     sync.RWMutex
	svc    *Service
	logger *slog.Logger

	watchMu     sync.Mutex
	watchCancel context.CancelFunc
	watchCb     consistency.EventCallback
}

// NewEngine wraps an already opened service.
func NewEngine(svc *Service, logger *slog.Logger) *Engine {
	return &Engine{svc: svc, logger: logger}
}

// Service returns the current service. The reference stays valid after a
// root swap but serves the old root; short-lived use only.
func (e *Engine) Service() *Service {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.svc
}

// Root returns the active storage root.
func (e *Engine) Root() string {
	return e.Service().Root()
}

// Close stops the watcher and releases the active service.
func (e *Engine) Close() error {
	e.StopWatcher()
	return e.Service().Close()
}

// StartWatcher runs the filesystem watcher for the active root until ctx is
// cancelled. The callback survives root swaps.
func (e *Engine) StartWatcher(ctx context.Context, cb consistency.EventCallback) {
	e.watchMu.Lock()
	e.watchCb = cb
	e.watchMu.Unlock()
	e.startWatcherLocked(ctx)
}

func (e *Engine) startWatcherLocked(ctx context.Context) {
	svc := e.Service()

	e.watchMu.Lock()
	if e.watchCancel != nil {
		e.watchCancel()
	}
	watchCtx, cancel := context.WithCancel(ctx)
	e.watchCancel = cancel
	cb := e.watchCb
	e.watchMu.Unlock()

	go func() {
		if err := svc.Manager().Watch(watchCtx, cb); err != nil {
			e.logger.Error("watcher exited", slog.String("error", err.Error()))
		}
	}()
}

// StopWatcher cancels the running watcher, if any.
func (e *Engine) StopWatcher() {
	e.watchMu.Lock()
	defer e.watchMu.Unlock()
	if e.watchCancel != nil {
		e.watchCancel()
		e.watchCancel = nil
	}
}

// SetStorageRoot moves the engine to a new storage root. Items present at
// the old root but missing at the new one are copied over, blobs included,
// then the services are swapped and the watcher restarted on the new root.
// On any failure the old root stays active.
func (e *Engine) SetStorageRoot(ctx context.Context, newRoot string) error {
	old := e.Service()
	if old.Root() == newRoot {
		return nil
	}

	fresh, err := Open(newRoot, e.logger)
	if err != nil {
		return fmt.Errorf("open new root: %w", err)
	}

	if err := migrateItems(old, fresh); err != nil {
		_ = fresh.Close()
		return fmt.Errorf("migrate items: %w", err)
	}
	if err := fresh.Reconcile(); err != nil {
		e.logger.Warn("reconcile after migration failed", slog.String("error", err.Error()))
	}

	e.mu.Lock()
	e.svc = fresh
	e.mu.Unlock()

	e.watchMu.Lock()
	hadWatcher := e.watchCancel != nil
	e.watchMu.Unlock()
	if hadWatcher {
		e.startWatcherLocked(ctx)
	}

	if err := old.Close(); err != nil {
		e.logger.Warn("close old root", slog.String("error", err.Error()))
	}
	e.logger.Info("storage root switched", slog.String("root", newRoot))
	return nil
}

// migrateItems copies every item the destination does not already have.
// Existing items at the destination win; migration never overwrites.
func migrateItems(src, dst *Service) error {
	contents, err := src.store.ScanContent()
	if err != nil {
		return err
	}
	for _, c := range contents {
		if _, err := dst.store.ReadContent(c.ID); err == nil {
			continue
		}
		item, err := src.store.Read(c.ID)
		if err != nil {
			continue
		}
		if _, err := dst.store.Write(item); err != nil {
			return err
		}
	}
	// Keep id allocation ahead of whatever arrived.
	maxID, err := dst.store.MaxID()
	if err == nil {
		dst.idMu.Lock()
		if maxID > dst.nextID {
			dst.nextID = maxID
		}
		dst.idMu.Unlock()
	}
	return nil
}

