package index

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/glintapp/glint/internal/apperr"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "glint.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestSchemaCreation(t *testing.T) {
	db := testDB(t)
	var count int
	if err := db.conn.QueryRow(`SELECT count(*) FROM items`).Scan(&count); err != nil {
		t.Fatalf("items table missing: %v", err)
	}
}

func TestUpsertAndChecksum(t *testing.T) {
	db := testDB(t)
	doc := Document{ID: 1, Title: "Hello", Body: "hello world", Checksum: "abc123", UpdatedAt: time.Now()}
	if err := db.Upsert(doc); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	cs, err := db.Checksum(1)
	if err != nil {
		t.Fatalf("Checksum: %v", err)
	}
	if cs != "abc123" {
		t.Errorf("checksum = %q, want %q", cs, "abc123")
	}
}

func TestChecksumNotFound(t *testing.T) {
	db := testDB(t)
	cs, err := db.Checksum(99)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cs != "" {
		t.Errorf("expected empty checksum, got %q", cs)
	}
}

func TestChecksumSurfacesQueryErrors(t *testing.T) {
	db := testDB(t)
	db.Close()

	if _, err := db.Checksum(1); err == nil {
		t.Error("expected error from closed database, got nil")
	}
}

func TestUpsertUpdatesExisting(t *testing.T) {
	db := testDB(t)
	now := time.Now()
	_ = db.Upsert(Document{ID: 1, Title: "Old", Body: "old body", Checksum: "1", UpdatedAt: now})
	_ = db.Upsert(Document{ID: 1, Title: "New", Body: "new body", Checksum: "2", UpdatedAt: now})

	cs, _ := db.Checksum(1)
	if cs != "2" {
		t.Errorf("checksum = %q, want %q", cs, "2")
	}
	all, _ := db.AllChecksums()
	if len(all) != 1 {
		t.Errorf("expected single row after upsert, got %d", len(all))
	}
}

func TestDelete(t *testing.T) {
	db := testDB(t)
	_ = db.Upsert(Document{ID: 1, Title: "t", Checksum: "x", UpdatedAt: time.Now()})

	if err := db.Delete(1); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	cs, _ := db.Checksum(1)
	if cs != "" {
		t.Errorf("deleted item still has checksum %q", cs)
	}
	if err := db.Delete(1); err != nil {
		t.Errorf("second delete: %v", err)
	}
}

func TestAllChecksums(t *testing.T) {
	db := testDB(t)
	_ = db.Upsert(Document{ID: 1, Checksum: "a", UpdatedAt: time.Now()})
	_ = db.Upsert(Document{ID: 2, Checksum: "b", UpdatedAt: time.Now()})

	all, err := db.AllChecksums()
	if err != nil {
		t.Fatalf("AllChecksums: %v", err)
	}
	want := map[int64]string{1: "a", 2: "b"}
	if !reflect.DeepEqual(all, want) {
		t.Errorf("all = %v, want %v", all, want)
	}
}

func TestListRecentOrder(t *testing.T) {
	db := testDB(t)
	base := time.Now().Add(-time.Hour)
	_ = db.Upsert(Document{ID: 1, Title: "oldest", UpdatedAt: base})
	_ = db.Upsert(Document{ID: 2, Title: "newest", UpdatedAt: base.Add(2 * time.Minute)})
	_ = db.Upsert(Document{ID: 3, Title: "middle", UpdatedAt: base.Add(time.Minute)})

	rows, err := db.ListRecent(2)
	if err != nil {
		t.Fatalf("ListRecent: %v", err)
	}
	if len(rows) != 2 || rows[0].ID != 2 || rows[1].ID != 3 {
		t.Errorf("rows = %+v, want ids [2 3]", rows)
	}
}

func TestResetBacksUpAndReopens(t *testing.T) {
	db := testDB(t)
	_ = db.Upsert(Document{ID: 1, Title: "t", Checksum: "x", UpdatedAt: time.Now()})

	if err := db.Reset(); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	cs, err := db.Checksum(1)
	if err != nil {
		t.Fatalf("Checksum after reset: %v", err)
	}
	if cs != "" {
		t.Error("index should be empty after reset")
	}
	backups, _ := filepath.Glob(db.Path() + ".corrupt.*")
	if len(backups) != 1 {
		t.Errorf("backups = %v, want exactly one", backups)
	}
}

func TestResetIdempotentOnMissingFile(t *testing.T) {
	db := testDB(t)
	if err := db.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := os.Remove(db.Path()); err != nil {
		t.Fatalf("remove db: %v", err)
	}
	if err := db.Reset(); err != nil {
		t.Fatalf("Reset with missing file: %v", err)
	}
}

func TestClassifyCorruption(t *testing.T) {
	err := classify("query", errMsg("database disk image is malformed"))
	if !apperr.IsCorruption(err) {
		t.Errorf("expected corruption classification, got %v", err)
	}
	err = classify("query", errMsg("constraint failed"))
	if apperr.IsCorruption(err) {
		t.Errorf("plain sqlite error misclassified as corruption: %v", err)
	}
	if classify("query", nil) != nil {
		t.Error("nil error should stay nil")
	}
}

type errMsg string

func (e errMsg) Error() string { return string(e) }

func TestQueryTerms(t *testing.T) {
	cases := []struct {
		in   string
		want []string
	}{
		{"milk eggs", []string{"milk", "eggs"}},
		{`"quoted" (parens)`, []string{"quoted", "parens"}},
		{"self-hosted under_score", []string{"self-hosted", "under_score"}},
		{"   ", nil},
		{"!!!", nil},
	}
	for _, c := range cases {
		got := QueryTerms(c.in)
		if !reflect.DeepEqual(got, c.want) {
			t.Errorf("QueryTerms(%q) = %v, want %v", c.in, got, c.want)
		}
	}
}

func TestQueryTermsCaps(t *testing.T) {
	long := ""
	for range 100 {
		long += "a"
	}
	terms := QueryTerms(long)
	if len(terms) != 1 || len([]rune(terms[0])) != maxTermRunes {
		t.Errorf("long term not truncated: %v", terms)
	}

	many := ""
	for range 30 {
		many += "word "
	}
	if got := QueryTerms(many); len(got) != maxQueryTerms {
		t.Errorf("term count = %d, want %d", len(got), maxQueryTerms)
	}
}
