//go:build sqlite_fts5

package index

import (
	"database/sql"
	"strings"
)

func initFTS(conn *sql.DB) error {
	_, err := conn.Exec(`
		CREATE VIRTUAL TABLE IF NOT EXISTS items_fts USING fts5(
			id UNINDEXED,
			title,
			body,
			tokenize = 'unicode61 remove_diacritics 2'
		);
	`)
	return err
}

func ftsUpsert(tx *sql.Tx, id int64, title, body string) error {
	_, _ = tx.Exec(`DELETE FROM items_fts WHERE id = ?`, id)
	if _, err := tx.Exec(`INSERT INTO items_fts (id, title, body) VALUES (?, ?, ?)`, id, title, body); err != nil {
		return classify("upsert fts", err)
	}
	return nil
}

func ftsDelete(tx *sql.Tx, id int64) {
	_, _ = tx.Exec(`DELETE FROM items_fts WHERE id = ?`, id)
}

// Search runs an FTS5 prefix query. Matched spans in the returned snippets
// are wrapped in ** markers.
func (db *DB) Search(query string, limit int) ([]Hit, error) {
	if limit <= 0 {
		limit = 20
	}
	match := buildMatchQuery(query)
	if match == "" {
		return nil, nil
	}
	rows, err := db.conn.Query(`
		SELECT id,
		       title,
		       snippet(items_fts, 2, '**', '**', '...', 24)
		FROM items_fts
		WHERE items_fts MATCH ?
		ORDER BY rank, id
		LIMIT ?
	`, match, limit)
	if err != nil {
		return nil, classify("search", err)
	}
	defer rows.Close()

	var out []Hit
	for rows.Next() {
		var h Hit
		if err := rows.Scan(&h.ID, &h.Title, &h.Snippet); err != nil {
			return nil, classify("scan hit", err)
		}
		out = append(out, h)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("iterate hits", err)
	}
	return out, nil
}

// buildMatchQuery converts free text into a safe FTS5 expression: terms are
// stripped to word characters, suffixed with * for prefix matching, and
// combined with AND.
func buildMatchQuery(query string) string {
	terms := QueryTerms(query)
	if len(terms) == 0 {
		return ""
	}
	quoted := make([]string, len(terms))
	for i, t := range terms {
		quoted[i] = `"` + t + `"*`
	}
	return strings.Join(quoted, " AND ")
}
