package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/glintapp/glint/internal/apperr"
)

// BlobStore persists binary image payloads under the storage root's images
// subdirectory. Blobs are keyed by opaque, append-mostly content keys; there
// is no cross-item shared mutable state.
type BlobStore struct {
	dir string
}

// NewBlobStore returns a blob store over dir. The directory is created
// lazily on first write.
func NewBlobStore(dir string) *BlobStore {
	return &BlobStore{dir: dir}
}

// Dir returns the blob directory path.
func (b *BlobStore) Dir() string { return b.dir }

// NewKey derives a fresh blob key: a timestamp plus a random suffix, e.g.
// img-1700000000-ab12cd34.
func (b *BlobStore) NewKey() string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("img-%d-%s", time.Now().Unix(), suffix)
}

// Put stores data under a newly derived key and returns it, retrying key
// derivation on the off chance of a collision with an existing blob.
func (b *BlobStore) Put(data []byte) (string, error) {
	for range 8 {
		key := b.NewKey()
		if _, err := os.Stat(b.path(key)); err == nil {
			continue
		}
		if err := b.Write(key, data); err != nil {
			return "", err
		}
		return key, nil
	}
	return "", fmt.Errorf("storage: could not derive unique blob key")
}

// Write stores data under key, replacing any existing blob.
func (b *BlobStore) Write(key string, data []byte) error {
	if err := os.MkdirAll(b.dir, 0o755); err != nil {
		return fmt.Errorf("storage: create blob dir: %w", err)
	}
	return writeFileAtomic(b.dir, b.FileName(key), data)
}

// Get returns the blob bytes for key, or NotFound.
func (b *BlobStore) Get(key string) ([]byte, error) {
	data, err := os.ReadFile(b.path(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("storage: blob %s: %w", key, apperr.ErrNotFound)
		}
		return nil, fmt.Errorf("storage: read blob %s: %w", key, err)
	}
	return data, nil
}

// Delete removes the blob for key. Deleting a missing blob is not an error.
func (b *BlobStore) Delete(key string) error {
	if err := os.Remove(b.path(key)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("storage: delete blob %s: %w", key, err)
	}
	return nil
}

// Sweep removes every blob file whose key is not in referenced and returns
// the number removed. This is the store-wide garbage collection pass; it is
// a maintenance operation, never on the hot path.
func (b *BlobStore) Sweep(referenced map[string]struct{}) (int, error) {
	expected := make(map[string]struct{}, len(referenced))
	for key := range referenced {
		expected[b.FileName(key)] = struct{}{}
	}

	entries, err := os.ReadDir(b.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return 0, fmt.Errorf("storage: sweep blobs: %w", err)
	}

	removed := 0
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if _, ok := expected[e.Name()]; ok {
			continue
		}
		if err := os.Remove(filepath.Join(b.dir, e.Name())); err != nil {
			return removed, fmt.Errorf("storage: sweep remove %s: %w", e.Name(), err)
		}
		removed++
	}
	return removed, nil
}

func (b *BlobStore) path(key string) string {
	return filepath.Join(b.dir, b.FileName(key))
}

// FileName maps a blob key to a safe file name: alphanumerics, '-', '_' and
// '.' pass through, every other byte is hex-escaped.
func (b *BlobStore) FileName(key string) string {
	var sb strings.Builder
	sb.Grow(len(key) + 4)
	for i := 0; i < len(key); i++ {
		c := key[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9',
			c == '-', c == '_', c == '.':
			sb.WriteByte(c)
		default:
			fmt.Fprintf(&sb, "_%02x", c)
		}
	}
	if sb.Len() == 0 {
		return "image.bin"
	}
	return sb.String() + ".bin"
}
