package consistency

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/glintapp/glint/internal/storage"
)

// EventCallback is called after a watcher-driven index change.
// kind is one of "created", "updated", "deleted".
type EventCallback func(kind string, id int64)

// Watch starts an fsnotify watcher on the storage root and keeps the index
// in step with external edits (another process, a file sync client) until
// ctx is cancelled. It calls cb (if non-nil) after each index mutation.
//
// Only the root itself is watched: item files live flat under the root, and
// the images, trash and index subdirectories are none of the watcher's
// business.
func (m *Manager) Watch(ctx context.Context, cb EventCallback) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := w.Add(m.store.Root()); err != nil {
		return err
	}
	m.logger.Info("watcher: started", slog.String("root", m.store.Root()))

	// reconcileTimer debounces the catch-all pass after renames and bursts.
	var reconcileTimer *time.Timer
	var reconcileCh <-chan time.Time

	scheduleReconcile := func() {
		if reconcileTimer == nil {
			reconcileTimer = time.NewTimer(200 * time.Millisecond)
			reconcileCh = reconcileTimer.C
		} else {
			reconcileTimer.Reset(200 * time.Millisecond)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if reconcileTimer != nil {
				reconcileTimer.Stop()
			}
			m.logger.Info("watcher: stopped")
			return nil

		case <-reconcileCh:
			if err := m.Reconcile(); err != nil {
				m.logger.Warn("watcher: reconcile failed", slog.String("error", err.Error()))
			}

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			id, isItem := storage.ParseItemFileName(filepath.Base(ev.Name))
			if !isItem {
				continue
			}

			switch {
			case ev.Op&(fsnotify.Create|fsnotify.Write) != 0:
				if err := m.indexFromDisk(id); err != nil {
					m.logger.Warn("watcher: index failed", slog.Int64("id", id), slog.String("error", err.Error()))
					continue
				}
				kind := "updated"
				if ev.Op&fsnotify.Create != 0 {
					kind = "created"
				}
				m.logger.Debug("watcher: indexed", slog.Int64("id", id), slog.String("op", kind))
				if cb != nil {
					cb(kind, id)
				}

			case ev.Op&fsnotify.Remove != 0:
				if err := m.idx.Delete(id); err != nil {
					m.logger.Warn("watcher: delete failed", slog.Int64("id", id), slog.String("error", err.Error()))
					continue
				}
				m.logger.Debug("watcher: deleted", slog.Int64("id", id))
				if cb != nil {
					cb("deleted", id)
				}

			case ev.Op&fsnotify.Rename != 0:
				// fsnotify fires Rename on the old path only; a Create for
				// the new name follows if it stays under the root. Drop the
				// old entry now and sweep up stragglers shortly after.
				if err := m.idx.Delete(id); err == nil {
					m.logger.Debug("watcher: rename old deleted", slog.Int64("id", id))
					if cb != nil {
						cb("deleted", id)
					}
				}
				scheduleReconcile()
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			m.logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

func (m *Manager) indexFromDisk(id int64) error {
	meta, err := m.store.Meta(id)
	if err != nil {
		return err
	}
	content, err := m.store.ReadContent(id)
	if err != nil {
		return err
	}
	return m.IndexItem(content, meta.Checksum)
}
