package index

import (
	"strings"
	"unicode"
)

// Hit is one index search result. Snippet is empty when the build lacks
// FTS5 snippet support.
type Hit struct {
	ID      int64
	Title   string
	Snippet string
}

// ItemIndex is the indexing surface the rest of the application depends on.
// The concrete *DB satisfies it; tests substitute fakes.
type ItemIndex interface {
	Upsert(doc Document) error
	Delete(id int64) error
	Checksum(id int64) (string, error)
	AllChecksums() (map[int64]string, error)
	ListRecent(limit int) ([]RecentRow, error)
	Search(query string, limit int) ([]Hit, error)
	Reset() error
	Close() error
}

var _ ItemIndex = (*DB)(nil)

const (
	maxQueryTerms = 12
	maxTermRunes  = 64
)

// QueryTerms splits free query text into searchable terms: runs of letters,
// digits, '_' and '-'. Anything else is a separator, which keeps punctuation
// out of the FTS expression.
func QueryTerms(query string) []string {
	isTermRune := func(r rune) bool {
		return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '-'
	}
	fields := strings.FieldsFunc(query, func(r rune) bool { return !isTermRune(r) })

	var out []string
	for _, f := range fields {
		runes := []rune(f)
		if len(runes) > maxTermRunes {
			runes = runes[:maxTermRunes]
		}
		out = append(out, string(runes))
		if len(out) == maxQueryTerms {
			break
		}
	}
	return out
}
