// Package index maintains the SQLite-backed search index over items, with
// optional FTS5 full-text search. The index is a disposable cache: every row
// can be rebuilt from the item files, and corruption is handled by renaming
// the database aside and starting fresh.
package index

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/glintapp/glint/internal/apperr"
)

const coreSchemaSQL = `
CREATE TABLE IF NOT EXISTS items (
	id         INTEGER PRIMARY KEY,
	title      TEXT NOT NULL DEFAULT '',
	body       TEXT NOT NULL DEFAULT '',
	checksum   TEXT NOT NULL DEFAULT '',
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	indexed_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_items_updated ON items(updated_at DESC);
`

// DB wraps a sql.DB with item-index operations.
type DB struct {
	conn *sql.DB
	path string
}

// Open opens (or creates) the SQLite database at path and applies the schema.
func Open(path string) (*DB, error) {
	conn, err := openConn(path)
	if err != nil {
		return nil, err
	}
	return &DB{conn: conn, path: path}, nil
}

func openConn(path string) (*sql.DB, error) {
	conn, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("index: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, classify("ping", err)
	}
	if _, err := conn.Exec(coreSchemaSQL); err != nil {
		conn.Close()
		return nil, classify("apply core schema", err)
	}
	if err := initFTS(conn); err != nil {
		conn.Close()
		return nil, classify("apply fts schema", err)
	}
	return conn, nil
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Path returns the database file location.
func (db *DB) Path() string { return db.path }

// Reset discards the index after corruption: the database file (and its WAL
// sidecars) is renamed aside with a .corrupt.<unix> suffix and a fresh empty
// database opened in its place. The caller is expected to rebuild afterwards.
func (db *DB) Reset() error {
	_ = db.conn.Close()

	backup := fmt.Sprintf("%s.corrupt.%d", db.path, time.Now().Unix())
	if err := os.Rename(db.path, backup); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("index: back up corrupt db: %w", err)
	}
	for _, sidecar := range []string{db.path + "-wal", db.path + "-shm"} {
		_ = os.Remove(sidecar)
	}

	conn, err := openConn(db.path)
	if err != nil {
		return fmt.Errorf("index: reopen after reset: %w", err)
	}
	db.conn = conn
	return nil
}

// corruptionMarkers are the sqlite error fragments that mean the database
// file itself is damaged rather than the query being wrong.
var corruptionMarkers = []string{
	"database disk image is malformed",
	"file is not a database",
	"no such table",
	"malformed database schema",
}

// classify wraps sqlite errors, promoting damaged-database failures to
// CorruptionError so callers can trigger a reset instead of failing the
// operation outright.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	for _, marker := range corruptionMarkers {
		if strings.Contains(msg, marker) {
			return &apperr.CorruptionError{Op: "index: " + op, Err: err}
		}
	}
	return fmt.Errorf("index: %s: %w", op, err)
}
