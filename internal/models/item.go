// Package models defines the domain types for Glint.
package models

import "time"

// NoteImage is a binary image attached to an item, referenced from the note
// body by its key.
type NoteImage struct {
	Key   string `json:"image_key"`
	Bytes []byte `json:"-"`
}

// Item is the unit of storage: a user-authored title plus a freeform note
// body and its embedded images.
type Item struct {
	ID        int64       `json:"id"`
	Title     string      `json:"title"`
	Note      string      `json:"note"`
	Images    []NoteImage `json:"images"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// Snippet source fields.
const (
	SnippetSourceTitle = "title"
	SnippetSourceNote  = "note"
)

// SearchResult is one ranked hit produced per query. Snippet, when present,
// wraps matched spans in ** markers; SnippetSource names the field the
// snippet was cut from.
type SearchResult struct {
	ID            int64  `json:"id"`
	Title         string `json:"title"`
	Subtitle      string `json:"subtitle"`
	Snippet       string `json:"snippet,omitempty"`
	SnippetSource string `json:"snippet_source,omitempty"`
}

// ExportItem is a row in the full-store export snapshot.
type ExportItem struct {
	ID         int64  `json:"id"`
	Title      string `json:"title"`
	Note       string `json:"note"`
	ImageCount int    `json:"image_count"`
}

// DeletedItem summarises an archived item in the trash.
type DeletedItem struct {
	ArchiveKey string    `json:"archive_key"`
	ID         int64     `json:"id"`
	Title      string    `json:"title"`
	DeletedAt  time.Time `json:"deleted_at"`
	ImageCount int       `json:"image_count"`
}

// DeletedItemPreview carries the note body of an archived item so the UI can
// show it before a restore.
type DeletedItemPreview struct {
	ArchiveKey string    `json:"archive_key"`
	ID         int64     `json:"id"`
	Title      string    `json:"title"`
	Note       string    `json:"note"`
	DeletedAt  time.Time `json:"deleted_at"`
	ImageCount int       `json:"image_count"`
}
