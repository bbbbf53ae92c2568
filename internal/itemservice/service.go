// Package itemservice coordinates the document store, blob store, index and
// search pipeline behind one API. All mutations go through here, which is
// where per-item serialization and input validation live.
package itemservice

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/glintapp/glint/internal/apperr"
	"github.com/glintapp/glint/internal/consistency"
	"github.com/glintapp/glint/internal/index"
	"github.com/glintapp/glint/internal/models"
	"github.com/glintapp/glint/internal/notetext"
	"github.com/glintapp/glint/internal/search"
	"github.com/glintapp/glint/internal/storage"
)

// Input limits. Oversized input is rejected with ErrValidation before
// anything touches disk.
const (
	MaxTitleBytes    = 10 * 1024
	MaxNoteBytes     = 10 * 1024 * 1024
	MaxImagesPerItem = 24
	MaxImageBytes    = 12 * 1024 * 1024
)

const indexFileName = "items.db"

// Service owns one storage root and everything derived from it.
type Service struct {
	store    *storage.Store
	idx      index.ItemIndex
	pipeline *search.Pipeline
	manager  *consistency.Manager
	logger   *slog.Logger

	idMu   sync.Mutex
	nextID int64

	locksMu sync.Mutex
	locks   map[int64]*itemLock

	rebuildMu  sync.Mutex
	rebuilding bool
}

// Open builds a service over root: the store is created if needed, the
// index opened under it, and an initial reconciliation pass run so external
// edits made while the process was down are picked up.
func Open(root string, logger *slog.Logger) (*Service, error) {
	store, err := storage.NewStore(root)
	if err != nil {
		return nil, err
	}
	db, err := index.Open(filepath.Join(store.IndexDir(), indexFileName))
	if err != nil {
		return nil, fmt.Errorf("open index: %w", err)
	}
	svc := newService(store, db, logger)
	if err := svc.manager.Reconcile(); err != nil {
		logger.Warn("startup reconcile failed", slog.String("error", err.Error()))
	}
	return svc, nil
}

func newService(store *storage.Store, idx index.ItemIndex, logger *slog.Logger) *Service {
	maxID, err := store.MaxID()
	if err != nil {
		maxID = 0
	}
	s := &Service{
		store:   store,
		idx:     idx,
		manager: consistency.NewManager(store, idx, logger),
		logger:  logger,
		nextID:  maxID,
		locks:   make(map[int64]*itemLock),
	}
	s.pipeline = search.NewPipeline(idx, store, logger, s.scheduleRebuild)
	return s
}

// Close releases the index handle. Store access is plain file IO and needs
// no teardown.
func (s *Service) Close() error {
	return s.idx.Close()
}

// Root returns the storage root this service is bound to.
func (s *Service) Root() string { return s.store.Root() }

// Store exposes the underlying document store, mainly for serving blobs.
func (s *Service) Store() *storage.Store { return s.store }

// Search runs the tiered query pipeline.
func (s *Service) Search(query string, limit int) ([]models.SearchResult, error) {
	return s.pipeline.Search(query, limit)
}

// Create validates and persists a new item under a freshly allocated id.
func (s *Service) Create(title, note string, images []models.NoteImage) (models.Item, error) {
	title = strings.TrimSpace(notetext.SanitizeTitle(title))
	note = notetext.SanitizeNote(note)
	if err := validateItemInput(title, note, images); err != nil {
		return models.Item{}, err
	}

	id := s.allocID()
	unlock := s.lockItem(id)
	defer unlock()

	now := time.Now()
	item := models.Item{
		ID:        id,
		Title:     title,
		Note:      note,
		Images:    referencedImages(note, images),
		CreatedAt: now,
		UpdatedAt: now,
	}
	cs, err := s.store.Write(item)
	if err != nil {
		return models.Item{}, err
	}
	s.indexAfterWrite(item, cs)
	return item, nil
}

// Get returns an item with its image bytes.
func (s *Service) Get(id int64) (models.Item, error) {
	return s.store.Read(id)
}

// Save replaces an item's note body. Images already stored stay attached as
// long as the note still references them; newly provided images are added
// under the same rule.
func (s *Service) Save(id int64, note string, images []models.NoteImage) (models.Item, error) {
	note = notetext.SanitizeNote(note)

	unlock := s.lockItem(id)
	defer unlock()

	existing, err := s.store.Read(id)
	if err != nil {
		return models.Item{}, err
	}
	merged := mergeImages(existing.Images, images)
	if err := validateItemInput(existing.Title, note, merged); err != nil {
		return models.Item{}, err
	}

	item := existing
	item.Note = note
	item.Images = referencedImages(note, merged)
	item.UpdatedAt = time.Now()

	cs, err := s.store.Write(item)
	if err != nil {
		return models.Item{}, err
	}
	s.indexAfterWrite(item, cs)
	return item, nil
}

// Rename changes an item's title. Renaming to the current title is a no-op.
func (s *Service) Rename(id int64, title string) (models.Item, error) {
	title = strings.TrimSpace(notetext.SanitizeTitle(title))
	if err := validateTitle(title); err != nil {
		return models.Item{}, err
	}

	unlock := s.lockItem(id)
	defer unlock()

	item, err := s.store.Read(id)
	if err != nil {
		return models.Item{}, err
	}
	if item.Title == title {
		return item, nil
	}
	item.Title = title
	item.UpdatedAt = time.Now()

	cs, err := s.store.Write(item)
	if err != nil {
		return models.Item{}, err
	}
	s.indexAfterWrite(item, cs)
	return item, nil
}

// Delete archives an item into the trash and drops it from the index.
// Deleting a missing item is a no-op.
func (s *Service) Delete(id int64) error {
	unlock := s.lockItem(id)
	defer unlock()

	if _, err := s.store.Delete(id); err != nil {
		return err
	}
	if err := s.idx.Delete(id); err != nil {
		s.noteIndexError("delete", err)
	}
	return nil
}

// Path returns the on-disk location of an item's file.
func (s *Service) Path(id int64) (string, error) {
	if _, err := s.store.ReadContent(id); err != nil {
		return "", err
	}
	return s.store.ItemPath(id), nil
}

// ExportAll snapshots every item's text for backup purposes.
func (s *Service) ExportAll() ([]models.ExportItem, error) {
	contents, err := s.store.ScanContent()
	if err != nil {
		return nil, err
	}
	out := make([]models.ExportItem, 0, len(contents))
	for _, c := range contents {
		item, err := s.store.Read(c.ID)
		if err != nil {
			continue
		}
		out = append(out, models.ExportItem{
			ID:         item.ID,
			Title:      item.Title,
			Note:       item.Note,
			ImageCount: len(item.Images),
		})
	}
	return out, nil
}

// ListDeleted lists archived items, newest first.
func (s *Service) ListDeleted(limit int) ([]models.DeletedItem, error) {
	return s.store.ListDeleted(limit)
}

// DeletedPreview returns the full text of one archived item.
func (s *Service) DeletedPreview(archiveKey string) (models.DeletedItemPreview, error) {
	return s.store.DeletedPreview(archiveKey)
}

// Restore brings an archived item back under a fresh id and purges the
// archive entry.
func (s *Service) Restore(archiveKey string) (models.Item, error) {
	id := s.allocID()
	unlock := s.lockItem(id)
	defer unlock()

	item, err := s.store.LoadArchived(archiveKey, id)
	if err != nil {
		return models.Item{}, err
	}
	cs, err := s.store.Write(item)
	if err != nil {
		return models.Item{}, err
	}
	s.indexAfterWrite(item, cs)

	if err := s.store.PurgeDeleted(archiveKey); err != nil {
		s.logger.Warn("restore: purge failed", slog.String("archive", archiveKey), slog.String("error", err.Error()))
	}
	return item, nil
}

// PurgeDeleted permanently removes one archive entry.
func (s *Service) PurgeDeleted(archiveKey string) error {
	return s.store.PurgeDeleted(archiveKey)
}

// SweepBlobs removes image blobs no live item references.
func (s *Service) SweepBlobs() (int, error) {
	referenced, err := s.store.ReferencedBlobKeys()
	if err != nil {
		return 0, err
	}
	return s.store.Blobs().Sweep(referenced)
}

// Rebuild discards and rebuilds the index synchronously.
func (s *Service) Rebuild() error {
	return s.manager.Rebuild()
}

// Reconcile runs one index reconciliation pass.
func (s *Service) Reconcile() error {
	return s.manager.Reconcile()
}

// Manager exposes the consistency manager so the watcher can be started on
// it.
func (s *Service) Manager() *consistency.Manager {
	return s.manager
}

// indexAfterWrite pushes a fresh write into the index. Index failures never
// fail the mutation; the store is authoritative and the index catches up.
func (s *Service) indexAfterWrite(item models.Item, checksum string) {
	err := s.manager.IndexItem(storage.ItemContent{
		ID:        item.ID,
		Title:     item.Title,
		Note:      item.Note,
		UpdatedAt: item.UpdatedAt,
	}, checksum)
	if err != nil {
		s.noteIndexError("upsert", err)
	}
}

func (s *Service) noteIndexError(op string, err error) {
	if apperr.IsCorruption(err) {
		s.scheduleRebuild(err)
		return
	}
	s.logger.Warn("index update failed, reconcile will catch up",
		slog.String("op", op), slog.String("error", err.Error()))
}

// scheduleRebuild kicks off a background index rebuild, collapsing
// concurrent triggers into one run.
func (s *Service) scheduleRebuild(cause error) {
	s.rebuildMu.Lock()
	if s.rebuilding {
		s.rebuildMu.Unlock()
		return
	}
	s.rebuilding = true
	s.rebuildMu.Unlock()

	go func() {
		defer func() {
			s.rebuildMu.Lock()
			s.rebuilding = false
			s.rebuildMu.Unlock()
		}()
		if err := s.manager.Recover(cause); err != nil {
			s.logger.Error("background rebuild failed", slog.String("error", err.Error()))
		}
	}()
}

func (s *Service) allocID() int64 {
	s.idMu.Lock()
	defer s.idMu.Unlock()
	s.nextID++
	return s.nextID
}

// itemLock is one keyed mutex plus the number of goroutines holding or
// waiting on it, so the map entry can be dropped once the last one is done.
type itemLock struct {
	mu   sync.Mutex
	refs int
}

// lockItem serializes mutations per item id.
func (s *Service) lockItem(id int64) func() {
	s.locksMu.Lock()
	l, ok := s.locks[id]
	if !ok {
		l = &itemLock{}
		s.locks[id] = l
	}
	l.refs++
	s.locksMu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		s.locksMu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(s.locks, id)
		}
		s.locksMu.Unlock()
	}
}

func validateTitle(title string) error {
	if title == "" {
		return fmt.Errorf("title is empty: %w", apperr.ErrValidation)
	}
	if len(title) > MaxTitleBytes {
		return fmt.Errorf("title exceeds %d bytes: %w", MaxTitleBytes, apperr.ErrValidation)
	}
	return nil
}

func validateItemInput(title, note string, images []models.NoteImage) error {
	if err := validateTitle(title); err != nil {
		return err
	}
	if len(note) > MaxNoteBytes {
		return fmt.Errorf("note exceeds %d bytes: %w", MaxNoteBytes, apperr.ErrValidation)
	}
	if len(images) > MaxImagesPerItem {
		return fmt.Errorf("more than %d images: %w", MaxImagesPerItem, apperr.ErrValidation)
	}
	for _, img := range images {
		if img.Key == "" {
			return fmt.Errorf("image with empty key: %w", apperr.ErrValidation)
		}
		if len(img.Bytes) > MaxImageBytes {
			return fmt.Errorf("image %s exceeds %d bytes: %w", img.Key, MaxImageBytes, apperr.ErrValidation)
		}
	}
	return nil
}

// mergeImages overlays provided images on the existing set, keyed by image
// key. Provided bytes win so a re-upload replaces the stored blob.
func mergeImages(existing, provided []models.NoteImage) []models.NoteImage {
	byKey := make(map[string]int, len(existing))
	out := make([]models.NoteImage, len(existing))
	copy(out, existing)
	for i, img := range out {
		byKey[img.Key] = i
	}
	for _, img := range provided {
		if at, ok := byKey[img.Key]; ok {
			out[at] = img
			continue
		}
		byKey[img.Key] = len(out)
		out = append(out, img)
	}
	return out
}

// referencedImages keeps only images the note body still references, so
// stored blobs always mirror the visible content.
func referencedImages(note string, images []models.NoteImage) []models.NoteImage {
	wanted := make(map[string]struct{})
	for _, key := range notetext.ImageKeys(note) {
		wanted[key] = struct{}{}
	}
	var out []models.NoteImage
	for _, img := range images {
		if _, ok := wanted[img.Key]; ok {
			out = append(out, img)
		}
	}
	return out
}
