package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/glintapp/glint/internal/apperr"
	"github.com/glintapp/glint/internal/models"
)

const archivedItemFile = "item.json"

// Delete removes the item and its blobs from the live store by archiving
// them into the trash directory. Deleting a missing id is a no-op; the
// returned archive key is empty in that case.
func (s *Store) Delete(id int64) (string, error) {
	f, err := s.readItemFile(id)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return "", nil
		}
		return "", err
	}

	key := fmt.Sprintf("del-%d-%d", time.Now().Unix(), id)
	dir := filepath.Join(s.root, trashDirName, key)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("storage: create trash dir: %w", err)
	}

	for _, e := range f.Images {
		src := filepath.Join(s.blobs.dir, e.File)
		if err := os.Rename(src, filepath.Join(dir, e.File)); err != nil && !errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("storage: archive blob %s: %w", e.Key, err)
		}
	}
	if err := os.Rename(s.ItemPath(id), filepath.Join(dir, archivedItemFile)); err != nil {
		return "", fmt.Errorf("storage: archive item %d: %w", id, err)
	}
	return key, nil
}

// ListDeleted returns archived items, most recently deleted first.
func (s *Store) ListDeleted(limit int) ([]models.DeletedItem, error) {
	entries, err := os.ReadDir(filepath.Join(s.root, trashDirName))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("storage: list trash: %w", err)
	}

	var out []models.DeletedItem
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		id, deletedAt, ok := parseArchiveKey(e.Name())
		if !ok {
			continue
		}
		f, err := s.readArchivedItem(e.Name())
		if err != nil {
			continue
		}
		out = append(out, models.DeletedItem{
			ArchiveKey: e.Name(),
			ID:         id,
			Title:      f.Title,
			DeletedAt:  deletedAt,
			ImageCount: len(f.Images),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].DeletedAt.Equal(out[j].DeletedAt) {
			return out[i].DeletedAt.After(out[j].DeletedAt)
		}
		return out[i].ID > out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// DeletedPreview returns the archived item's text for display before a
// restore decision.
func (s *Store) DeletedPreview(archiveKey string) (models.DeletedItemPreview, error) {
	id, deletedAt, ok := parseArchiveKey(archiveKey)
	if !ok {
		return models.DeletedItemPreview{}, fmt.Errorf("storage: archive %q: %w", archiveKey, apperr.ErrNotFound)
	}
	f, err := s.readArchivedItem(archiveKey)
	if err != nil {
		return models.DeletedItemPreview{}, err
	}
	return models.DeletedItemPreview{
		ArchiveKey: archiveKey,
		ID:         id,
		Title:      f.Title,
		Note:       f.Note,
		DeletedAt:  deletedAt,
		ImageCount: len(f.Images),
	}, nil
}

// LoadArchived reads a full archived item, image bytes included, assigned to
// newID. The archive itself is left untouched; callers re-create the item
// through the normal write path and then purge the archive entry.
func (s *Store) LoadArchived(archiveKey string, newID int64) (models.Item, error) {
	if _, _, ok := parseArchiveKey(archiveKey); !ok {
		return models.Item{}, fmt.Errorf("storage: archive %q: %w", archiveKey, apperr.ErrNotFound)
	}
	f, err := s.readArchivedItem(archiveKey)
	if err != nil {
		return models.Item{}, err
	}

	dir := filepath.Join(s.root, trashDirName, archiveKey)
	now := time.Now()
	item := models.Item{
		ID:        newID,
		Title:     f.Title,
		Note:      f.Note,
		CreatedAt: f.CreatedAt,
		UpdatedAt: now,
	}
	for _, e := range f.Images {
		data, err := os.ReadFile(filepath.Join(dir, e.File))
		if err != nil {
			continue
		}
		item.Images = append(item.Images, models.NoteImage{Key: e.Key, Bytes: data})
	}
	return item, nil
}

// PurgeDeleted permanently removes an archive entry. Idempotent.
func (s *Store) PurgeDeleted(archiveKey string) error {
	if _, _, ok := parseArchiveKey(archiveKey); !ok {
		return nil
	}
	dir := filepath.Join(s.root, trashDirName, archiveKey)
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("storage: purge archive %s: %w", archiveKey, err)
	}
	return nil
}

func (s *Store) readArchivedItem(archiveKey string) (*itemFile, error) {
	data, err := os.ReadFile(filepath.Join(s.root, trashDirName, archiveKey, archivedItemFile))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("storage: archive %s: %w", archiveKey, apperr.ErrNotFound)
		}
		return nil, fmt.Errorf("storage: read archive %s: %w", archiveKey, err)
	}
	var f itemFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("storage: decode archive %s: %w", archiveKey, err)
	}
	return &f, nil
}

// parseArchiveKey validates a del-<unix>-<id> key. Rejecting anything else
// also blocks path traversal through user-supplied archive keys.
func parseArchiveKey(key string) (id int64, deletedAt time.Time, ok bool) {
	parts := strings.Split(key, "-")
	if len(parts) != 3 || parts[0] != "del" {
		return 0, time.Time{}, false
	}
	ts, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return 0, time.Time{}, false
	}
	id, err = strconv.ParseInt(parts[2], 10, 64)
	if err != nil || id <= 0 {
		return 0, time.Time{}, false
	}
	return id, time.Unix(ts, 0), true
}
