package storage

import (
	"crypto/sha256"
	"encoding/hex"
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

const (
	imagesDirName = "images"
	trashDirName  = "trash"
	indexDirName  = "index"

	itemFilePrefix = "item-"
	itemFileSuffix = ".json"
)

// Store owns the authoritative item records: one item-<id>.json file per
// item under the storage root, with image blobs delegated to the BlobStore.
type Store struct {
	root  string
	blobs *BlobStore
}

// NewStore creates (if needed) and opens a store rooted at the given
// directory. A root that cannot be created or probed for writability is
// reported as StorageUnavailable.
func NewStore(root string) (*Store, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("storage: resolve root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("storage: create root %s: %w", abs, apperr.ErrStorageUnavailable)
	}
	if err := probeWritable(abs); err != nil {
		return nil, fmt.Errorf("storage: root %s not writable: %w", abs, apperr.ErrStorageUnavailable)
	}
	if err := os.MkdirAll(filepath.Join(abs, indexDirName), 0o755); err != nil {
		return nil, fmt.Errorf("storage: create index dir: %w", apperr.ErrStorageUnavailable)
	}
	return &Store{root: abs, blobs: NewBlobStore(filepath.Join(abs, imagesDirName))}, nil
}

// probeWritable verifies the directory accepts file creation.
func probeWritable(dir string) error {
	f, err := os.CreateTemp(dir, ".glint-probe-*")
	if err != nil {
		return err
	}
	name := f.Name()
	_ = f.Close()
	return os.Remove(name)
}

// Root returns the absolute storage root directory.
func (s *Store) Root() string { return s.root }

// Blobs returns the image blob store under this root.
func (s *Store) Blobs() *BlobStore { return s.blobs }

// IndexDir returns the directory the full-text index lives in.
func (s *Store) IndexDir() string { return filepath.Join(s.root, indexDirName) }

// ItemPath returns the on-disk location for an item id without touching it.
func (s *Store) ItemPath(id int64) string {
	return filepath.Join(s.root, itemFileName(id))
}

func itemFileName(id int64) string {
	return fmt.Sprintf("%s%d%s", itemFilePrefix, id, itemFileSuffix)
}

// ParseItemFileName maps an item file name back to its id. The second
// return is false for anything that is not a well-formed item file.
func ParseItemFileName(name string) (int64, bool) {
	return parseItemFileName(name)
}

func parseItemFileName(name string) (int64, bool) {
	if !strings.HasPrefix(name, itemFilePrefix) || !strings.HasSuffix(name, itemFileSuffix) {
		return 0, false
	}
	raw := strings.TrimSuffix(strings.TrimPrefix(name, itemFilePrefix), itemFileSuffix)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// ItemMeta is the lightweight scan record used for id allocation and
// index reconciliation.
type ItemMeta struct {
	ID        int64
	Checksum  string
	UpdatedAt time.Time
}

// ItemContent is an item without its image bytes, enough for indexing and
// the substring/fuzzy search scans.
type ItemContent struct {
	ID        int64
	Title     string
	Note      string
	UpdatedAt time.Time
}

// itemFile is the JSON representation persisted per item. Image bytes live
// in the blob store; the file records key-to-blob-file pairs.
type itemFile struct {
	ID        int64        `json:"id"`
	Title     string       `json:"title"`
	Note      string       `json:"note"`
	Images    []imageEntry `json:"images"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

type imageEntry struct {
	Key  string `json:"image_key"`
	File string `json:"file_name"`
}

// List scans the root and returns metadata for every item file, ordered by
// id ascending.
func (s *Store) List() ([]ItemMeta, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("storage: list: %w", err)
	}
	var out []ItemMeta
	for _, e := range entries {
		id, ok := parseItemFileName(e.Name())
		if !ok || e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.root, e.Name()))
		if err != nil {
			continue
		}
		out = append(out, ItemMeta{ID: id, Checksum: checksum(data), UpdatedAt: info.ModTime()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Meta returns the scan record for a single item.
func (s *Store) Meta(id int64) (ItemMeta, error) {
	data, err := os.ReadFile(s.ItemPath(id))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return ItemMeta{}, fmt.Errorf("storage: item %d: %w", id, apperr.ErrNotFound)
		}
		return ItemMeta{}, fmt.Errorf("storage: stat item %d: %w", id, err)
	}
	info, err := os.Stat(s.ItemPath(id))
	if err != nil {
		return ItemMeta{}, fmt.Errorf("storage: stat item %d: %w", id, err)
	}
	return ItemMeta{ID: id, Checksum: checksum(data), UpdatedAt: info.ModTime()}, nil
}

// MaxID returns the highest item id present on disk, zero when empty.
func (s *Store) MaxID() (int64, error) {
	metas, err := s.List()
	if err != nil {
		return 0, err
	}
	var max int64
	for _, m := range metas {
		if m.ID > max {
			max = m.ID
		}
	}
	return max, nil
}

// Write persists the item atomically and stores its image blobs. It returns
// the checksum of the serialized item file, which callers feed to the index
// so reconciliation can detect staleness.
func (s *Store) Write(item models.Item) (string, error) {
	entries := make([]imageEntry, 0, len(item.Images))
	for _, img := range item.Images {
		if img.Bytes != nil {
			if err := s.blobs.Write(img.Key, img.Bytes); err != nil {
				return "", err
			}
		}
		entries = append(entries, imageEntry{Key: img.Key, File: s.blobs.FileName(img.Key)})
	}

	payload, err := json.MarshalIndent(itemFile{
		ID:        item.ID,
		Title:     item.Title,
		Note:      item.Note,
		Images:    entries,
		CreatedAt: item.CreatedAt,
		UpdatedAt: item.UpdatedAt,
	}, "", "  ")
	if err != nil {
		return "", fmt.Errorf("storage: encode item %d: %w", item.ID, err)
	}
	if err := writeFileAtomic(s.root, itemFileName(item.ID), payload); err != nil {
		return "", err
	}
	return checksum(payload), nil
}

// Read loads an item and hydrates its image bytes from the blob store.
// Image entries whose blob file has gone missing are dropped, not fatal.
func (s *Store) Read(id int64) (models.Item, error) {
	f, err := s.readItemFile(id)
	if err != nil {
		return models.Item{}, err
	}
	item := models.Item{
		ID:        f.ID,
		Title:     f.Title,
		Note:      f.Note,
		CreatedAt: f.CreatedAt,
		UpdatedAt: f.UpdatedAt,
	}
	for _, e := range f.Images {
		data, err := s.blobs.Get(e.Key)
		if err != nil {
			continue
		}
		item.Images = append(item.Images, models.NoteImage{Key: e.Key, Bytes: data})
	}
	return item, nil
}

// ReadContent loads an item's text fields without touching the blob store.
func (s *Store) ReadContent(id int64) (ItemContent, error) {
	f, err := s.readItemFile(id)
	if err != nil {
		return ItemContent{}, err
	}
	return ItemContent{ID: f.ID, Title: f.Title, Note: f.Note, UpdatedAt: f.UpdatedAt}, nil
}

// ScanContent returns the text content of every item, ordered by id
// ascending. Unreadable files are skipped so one damaged record cannot take
// down search or a rebuild.
func (s *Store) ScanContent() ([]ItemContent, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("storage: scan: %w", err)
	}
	var out []ItemContent
	for _, e := range entries {
		id, ok := parseItemFileName(e.Name())
		if !ok || e.IsDir() {
			continue
		}
		c, err := s.ReadContent(id)
		if err != nil {
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// ReferencedBlobKeys collects every image key referenced by a live item
// file. The blob sweep treats anything outside this set as garbage.
func (s *Store) ReferencedBlobKeys() (map[string]struct{}, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("storage: scan for blob keys: %w", err)
	}
	out := make(map[string]struct{})
	for _, e := range entries {
		id, ok := parseItemFileName(e.Name())
		if !ok || e.IsDir() {
			continue
		}
		f, err := s.readItemFile(id)
		if err != nil {
			continue
		}
		for _, img := range f.Images {
			out[img.Key] = struct{}{}
		}
	}
	return out, nil
}

func (s *Store) readItemFile(id int64) (*itemFile, error) {
	data, err := os.ReadFile(s.ItemPath(id))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("storage: item %d: %w", id, apperr.ErrNotFound)
		}
		return nil, fmt.Errorf("storage: read item %d: %w", id, err)
	}
	var f itemFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("storage: decode item %d: %w", id, err)
	}
	return &f, nil
}

// writeFileAtomic writes content as name under dir: tmp file, fsync, rename.
// A crash mid-write leaves the previous version intact.
func writeFileAtomic(dir, name string, content []byte) error {
	tmp, err := os.CreateTemp(dir, ".glint-tmp-*")
	if err != nil {
		return fmt.Errorf("storage: create temp: %w", err)
	}
	tmpName := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(content); err != nil {
		return fmt.Errorf("storage: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("storage: fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("storage: close temp: %w", err)
	}
	if err := os.Rename(tmpName, filepath.Join(dir, name)); err != nil {
		return fmt.Errorf("storage: rename: %w", err)
	}
	success = true
	return nil
}

func checksum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}
