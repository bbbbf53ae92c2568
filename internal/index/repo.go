package index

import (
	"database/sql"
	"errors"
	"time"
)

// Document is the indexable projection of an item: its title plus the
// flattened note body, with the store checksum used for staleness checks.
type Document struct {
	ID        int64
	Title     string
	Body      string
	Checksum  string
	UpdatedAt time.Time
}

// RecentRow is one entry of the recency listing used for empty queries.
type RecentRow struct {
	ID        int64
	Title     string
	UpdatedAt time.Time
}

// Upsert inserts or replaces a document and its FTS entry in one transaction.
func (db *DB) Upsert(doc Document) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return classify("begin tx", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	_, err = tx.Exec(`
		INSERT INTO items (id, title, body, checksum, updated_at, indexed_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title      = excluded.title,
			body       = excluded.body,
			checksum   = excluded.checksum,
			updated_at = excluded.updated_at,
			indexed_at = excluded.indexed_at
	`, doc.ID, doc.Title, doc.Body, doc.Checksum, doc.UpdatedAt, time.Now())
	if err != nil {
		return classify("upsert item", err)
	}

	if err := ftsUpsert(tx, doc.ID, doc.Title, doc.Body); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return classify("commit upsert", err)
	}
	return nil
}

// Delete removes a document and its FTS entry. Deleting an unindexed id is
// not an error.
func (db *DB) Delete(id int64) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return classify("begin tx", err)
	}
	defer tx.Rollback() //nolint:errcheck

	ftsDelete(tx, id)
	if _, err := tx.Exec(`DELETE FROM items WHERE id = ?`, id); err != nil {
		return classify("delete item", err)
	}
	if err := tx.Commit(); err != nil {
		return classify("commit delete", err)
	}
	return nil
}

// Checksum returns the stored checksum for an id, or empty when unindexed.
func (db *DB) Checksum(id int64) (string, error) {
	var cs string
	err := db.conn.QueryRow(`SELECT checksum FROM items WHERE id = ?`, id).Scan(&cs)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", classify("checksum", err)
	}
	return cs, nil
}

// AllChecksums returns the checksum of every indexed item, keyed by id.
func (db *DB) AllChecksums() (map[int64]string, error) {
	rows, err := db.conn.Query(`SELECT id, checksum FROM items`)
	if err != nil {
		return nil, classify("all checksums", err)
	}
	defer rows.Close()

	out := make(map[int64]string)
	for rows.Next() {
		var id int64
		var cs string
		if err := rows.Scan(&id, &cs); err != nil {
			return nil, classify("scan checksum row", err)
		}
		out[id] = cs
	}
	if err := rows.Err(); err != nil {
		return nil, classify("iterate checksums", err)
	}
	return out, nil
}

// ListRecent returns indexed items ordered by update time descending.
func (db *DB) ListRecent(limit int) ([]RecentRow, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.conn.Query(`
		SELECT id, title, updated_at
		FROM items
		ORDER BY updated_at DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, classify("list recent", err)
	}
	defer rows.Close()

	var out []RecentRow
	for rows.Next() {
		var r RecentRow
		if err := rows.Scan(&r.ID, &r.Title, &r.UpdatedAt); err != nil {
			return nil, classify("scan recent row", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("iterate recent", err)
	}
	return out, nil
}
