package storage

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/glintapp/glint/internal/apperr"
)

func tempBlobs(t *testing.T) *BlobStore {
	t.Helper()
	return NewBlobStore(filepath.Join(t.TempDir(), "images"))
}

func TestBlobPutAndGet(t *testing.T) {
	b := tempBlobs(t)
	key, err := b.Put([]byte("payload"))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if !strings.HasPrefix(key, "img-") {
		t.Errorf("key = %q, want img- prefix", key)
	}
	got, err := b.Get(key)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got) != "payload" {
		t.Errorf("content = %q", got)
	}
}

func TestBlobGetNotFound(t *testing.T) {
	b := tempBlobs(t)
	_, err := b.Get("img-0-missing")
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestBlobDeleteIdempotent(t *testing.T) {
	b := tempBlobs(t)
	key, _ := b.Put([]byte("x"))
	if err := b.Delete(key); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := b.Delete(key); err != nil {
		t.Errorf("second Delete: %v", err)
	}
	if _, err := b.Get(key); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err after delete = %v, want ErrNotFound", err)
	}
}

func TestBlobKeysUnique(t *testing.T) {
	b := tempBlobs(t)
	seen := make(map[string]struct{})
	for range 20 {
		key, err := b.Put([]byte("d"))
		if err != nil {
			t.Fatalf("Put: %v", err)
		}
		if _, dup := seen[key]; dup {
			t.Fatalf("duplicate key %q", key)
		}
		seen[key] = struct{}{}
	}
}

func TestBlobSweep(t *testing.T) {
	b := tempBlobs(t)
	keep, _ := b.Put([]byte("keep"))
	drop1, _ := b.Put([]byte("drop"))
	drop2, _ := b.Put([]byte("drop"))

	removed, err := b.Sweep(map[string]struct{}{keep: {}})
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if removed != 2 {
		t.Errorf("removed = %d, want 2", removed)
	}
	if _, err := b.Get(keep); err != nil {
		t.Errorf("referenced blob removed: %v", err)
	}
	for _, key := range []string{drop1, drop2} {
		if _, err := b.Get(key); !errors.Is(err, apperr.ErrNotFound) {
			t.Errorf("unreferenced blob %s survived sweep", key)
		}
	}
}

func TestBlobSweepEmptyDir(t *testing.T) {
	b := tempBlobs(t)
	removed, err := b.Sweep(nil)
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if removed != 0 {
		t.Errorf("removed = %d, want 0", removed)
	}
}

func TestBlobFileNameEscaping(t *testing.T) {
	b := tempBlobs(t)
	cases := []struct {
		key  string
		want string
	}{
		{"img-1-ab", "img-1-ab.bin"},
		{"a/b", "a_2fb.bin"},
		{"..", "...bin"},
		{"", "image.bin"},
	}
	for _, c := range cases {
		if got := b.FileName(c.key); got != c.want {
			t.Errorf("FileName(%q) = %q, want %q", c.key, got, c.want)
		}
	}
}
