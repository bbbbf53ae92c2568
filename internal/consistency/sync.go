// Package consistency keeps the search index in agreement with the item
// files on disk. The files are authoritative; the index follows, and when
// the index turns out to be damaged it is discarded and rebuilt here.
package consistency

import (
	"fmt"
	"log/slog"

	"github.com/glintapp/glint/internal/apperr"
	"github.com/glintapp/glint/internal/index"
	"github.com/glintapp/glint/internal/notetext"
	"github.com/glintapp/glint/internal/storage"
)

// Manager reconciles the document store with the item index.
type Manager struct {
	store  *storage.Store
	idx    index.ItemIndex
	logger *slog.Logger
}

// NewManager wires a manager over the given store and index.
func NewManager(store *storage.Store, idx index.ItemIndex, logger *slog.Logger) *Manager {
	return &Manager{store: store, idx: idx, logger: logger}
}

// IndexItem upserts one item into the index. The body is the flattened note
// preview so snippets never contain image references or payload text.
func (m *Manager) IndexItem(content storage.ItemContent, checksum string) error {
	return m.idx.Upsert(index.Document{
		ID:        content.ID,
		Title:     content.Title,
		Body:      notetext.Preview(content.Note),
		Checksum:  checksum,
		UpdatedAt: content.UpdatedAt,
	})
}

// Reconcile brings the index up to date with the files on disk:
//   - new or changed items are re-indexed
//   - index rows whose file is gone are deleted
//
// A corrupt index is recovered in place and the pass restarted as a full
// rebuild.
func (m *Manager) Reconcile() error {
	metas, err := m.store.List()
	if err != nil {
		return err
	}

	checksums, err := m.idx.AllChecksums()
	if err != nil {
		if apperr.IsCorruption(err) {
			return m.Recover(err)
		}
		return err
	}

	disk := make(map[int64]struct{}, len(metas))
	for _, meta := range metas {
		disk[meta.ID] = struct{}{}

		if checksums[meta.ID] == meta.Checksum {
			continue
		}
		content, err := m.store.ReadContent(meta.ID)
		if err != nil {
			m.logger.Warn("reconcile: read failed", slog.Int64("id", meta.ID), slog.String("error", err.Error()))
			continue
		}
		if err := m.IndexItem(content, meta.Checksum); err != nil {
			if apperr.IsCorruption(err) {
				return m.Recover(err)
			}
			m.logger.Warn("reconcile: index failed", slog.Int64("id", meta.ID), slog.String("error", err.Error()))
		} else {
			m.logger.Debug("reconcile: indexed", slog.Int64("id", meta.ID))
		}
	}

	for id := range checksums {
		if _, ok := disk[id]; ok {
			continue
		}
		if err := m.idx.Delete(id); err != nil {
			m.logger.Warn("reconcile: delete failed", slog.Int64("id", id), slog.String("error", err.Error()))
		} else {
			m.logger.Debug("reconcile: removed stale", slog.Int64("id", id))
		}
	}
	return nil
}

// Rebuild discards the index and re-indexes every item from disk. The
// operation is idempotent: running it twice leaves the same rows.
func (m *Manager) Rebuild() error {
	if err := m.idx.Reset(); err != nil {
		return fmt.Errorf("consistency: reset index: %w", err)
	}
	metas, err := m.store.List()
	if err != nil {
		return err
	}
	for _, meta := range metas {
		content, err := m.store.ReadContent(meta.ID)
		if err != nil {
			m.logger.Warn("rebuild: read failed", slog.Int64("id", meta.ID), slog.String("error", err.Error()))
			continue
		}
		if err := m.IndexItem(content, meta.Checksum); err != nil {
			m.logger.Warn("rebuild: index failed", slog.Int64("id", meta.ID), slog.String("error", err.Error()))
		}
	}
	m.logger.Info("rebuild: done", slog.Int("items", len(metas)))
	return nil
}

// Recover handles a corrupt index: log the damage, move the database aside,
// rebuild from scratch. Mutations to the store never depend on this
// succeeding.
func (m *Manager) Recover(cause error) error {
	m.logger.Error("index corruption detected, rebuilding", slog.String("error", cause.Error()))
	return m.Rebuild()
}
