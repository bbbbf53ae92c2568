//go:build !sqlite_fts5

package index

import (
	"database/sql"
)

func initFTS(_ *sql.DB) error {
	// FTS5 not compiled in; search falls back to LIKE over the items table.
	return nil
}

func ftsUpsert(_ *sql.Tx, _ int64, _, _ string) error {
	// Title and body already live in the items table.
	return nil
}

func ftsDelete(_ *sql.Tx, _ int64) {}

// Search performs a LIKE-based scan over title and body. Hits carry no
// snippet; the caller cuts one from the stored content.
func (db *DB) Search(query string, limit int) ([]Hit, error) {
	if limit <= 0 {
		limit = 20
	}
	terms := QueryTerms(query)
	if len(terms) == 0 {
		return nil, nil
	}

	where := ""
	args := make([]any, 0, len(terms)*2+1)
	for i, t := range terms {
		if i > 0 {
			where += " AND "
		}
		where += "(title LIKE ? OR body LIKE ?)"
		like := "%" + t + "%"
		args = append(args, like, like)
	}
	args = append(args, limit)

	rows, err := db.conn.Query(`
		SELECT id, title
		FROM items
		WHERE `+where+`
		ORDER BY updated_at DESC, id
		LIMIT ?
	`, args...)
	if err != nil {
		return nil, classify("search", err)
	}
	defer rows.Close()

	var out []Hit
	for rows.Next() {
		var h Hit
		if err := rows.Scan(&h.ID, &h.Title); err != nil {
			return nil, classify("scan hit", err)
		}
		out = append(out, h)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("iterate hits", err)
	}
	return out, nil
}
