// Package search implements the tiered query pipeline: the token index
// first, then a substring scan, then a fuzzy scan. Lower tiers only run
// when the tier above found nothing, so exact matches stay fast and typos
// still land.
package search

import (
	"log/slog"
	"sort"

	"github.com/glintapp/glint/internal/apperr"
	"github.com/glintapp/glint/internal/index"
	"github.com/glintapp/glint/internal/models"
	"github.com/glintapp/glint/internal/notetext"
	"github.com/glintapp/glint/internal/storage"
)

const (
	// DefaultLimit is used when the caller does not ask for a count.
	DefaultLimit = 8
	// MaxLimit caps the result count regardless of what the caller asks.
	MaxLimit = 64

	maxQueryRunes = 1024
)

// Index is the slice of the item index the pipeline depends on.
type Index interface {
	Search(query string, limit int) ([]index.Hit, error)
	ListRecent(limit int) ([]index.RecentRow, error)
}

// Source provides item text straight from the document store. Tiers two and
// three read from here, never from the index, so they keep working when the
// index is damaged.
type Source interface {
	ScanContent() ([]storage.ItemContent, error)
	ReadContent(id int64) (storage.ItemContent, error)
}

// Pipeline runs queries through the tiers. Index failures are reported
// through onIndexFailure (typically scheduling a rebuild) and never fail
// the query; the scan tiers answer instead.
type Pipeline struct {
	idx            Index
	src            Source
	logger         *slog.Logger
	onIndexFailure func(error)
}

// NewPipeline wires the tiers together. onIndexFailure may be nil.
func NewPipeline(idx Index, src Source, logger *slog.Logger, onIndexFailure func(error)) *Pipeline {
	return &Pipeline{idx: idx, src: src, logger: logger, onIndexFailure: onIndexFailure}
}

// Search answers a query. An empty or unsearchable query lists the most
// recently updated items instead of matching.
func (p *Pipeline) Search(query string, limit int) ([]models.SearchResult, error) {
	limit = normalizeLimit(limit)
	query = truncateRunes(query, maxQueryRunes)

	terms := index.QueryTerms(query)
	if len(terms) == 0 {
		return p.recent(limit)
	}

	// Tier one: the token index.
	hits, err := p.idx.Search(query, limit)
	if err != nil {
		p.indexFailed("search", err)
	} else if len(hits) > 0 {
		return p.resultsFromHits(hits, terms, limit), nil
	}

	contents, err := p.src.ScanContent()
	if err != nil {
		return nil, err
	}

	// Tier two: substring scan over titles and previews.
	if matches := substringScan(contents, terms); len(matches) > 0 {
		out := make([]models.SearchResult, 0, min(len(matches), limit))
		for _, m := range matches {
			if len(out) == limit {
				break
			}
			snippet, source := BuildSnippet(m.content.Title, m.preview, terms)
			out = append(out, models.SearchResult{
				ID:            m.content.ID,
				Title:         m.content.Title,
				Subtitle:      subtitleOf(m.preview),
				Snippet:       snippet,
				SnippetSource: source,
			})
		}
		return out, nil
	}

	// Tier three: fuzzy scan for typos.
	matches := fuzzyScan(contents, terms)
	out := make([]models.SearchResult, 0, min(len(matches), limit))
	for _, m := range matches {
		if len(out) == limit {
			break
		}
		out = append(out, models.SearchResult{
			ID:       m.content.ID,
			Title:    m.content.Title,
			Subtitle: subtitleOf(m.preview),
		})
	}
	return out, nil
}

func (p *Pipeline) resultsFromHits(hits []index.Hit, terms []string, limit int) []models.SearchResult {
	out := make([]models.SearchResult, 0, min(len(hits), limit))
	seen := make(map[int64]struct{}, len(hits))
	for _, h := range hits {
		if len(out) == limit {
			break
		}
		if _, dup := seen[h.ID]; dup {
			continue
		}
		seen[h.ID] = struct{}{}

		content, err := p.src.ReadContent(h.ID)
		if err != nil {
			// Stale index row; reconciliation will catch it.
			p.logger.Debug("search: dropping stale hit", slog.Int64("id", h.ID))
			continue
		}
		preview := notetext.Preview(content.Note)

		snippet := h.Snippet
		source := models.SnippetSourceNote
		if snippet == "" {
			snippet, source = BuildSnippet(content.Title, preview, terms)
		}
		out = append(out, models.SearchResult{
			ID:            content.ID,
			Title:         content.Title,
			Subtitle:      subtitleOf(preview),
			Snippet:       snippet,
			SnippetSource: source,
		})
	}
	return out
}

// recent lists the most recently updated items. The index serves this when
// healthy; otherwise the store scan does, sorted the same way.
func (p *Pipeline) recent(limit int) ([]models.SearchResult, error) {
	rows, err := p.idx.ListRecent(limit)
	if err == nil {
		out := make([]models.SearchResult, 0, len(rows))
		for _, r := range rows {
			content, err := p.src.ReadContent(r.ID)
			if err != nil {
				continue
			}
			out = append(out, models.SearchResult{
				ID:       r.ID,
				Title:    r.Title,
				Subtitle: subtitleOf(notetext.Preview(content.Note)),
			})
		}
		return out, nil
	}
	p.indexFailed("list recent", err)

	contents, err := p.src.ScanContent()
	if err != nil {
		return nil, err
	}
	sort.Slice(contents, func(i, j int) bool {
		if !contents[i].UpdatedAt.Equal(contents[j].UpdatedAt) {
			return contents[i].UpdatedAt.After(contents[j].UpdatedAt)
		}
		return contents[i].ID > contents[j].ID
	})
	if len(contents) > limit {
		contents = contents[:limit]
	}
	out := make([]models.SearchResult, 0, len(contents))
	for _, c := range contents {
		out = append(out, models.SearchResult{
			ID:       c.ID,
			Title:    c.Title,
			Subtitle: subtitleOf(notetext.Preview(c.Note)),
		})
	}
	return out, nil
}

// indexFailed logs an index error and falls through to the scan tiers.
// Only corruption is reported upward; a transient error must not cost a
// healthy database its contents.
func (p *Pipeline) indexFailed(op string, err error) {
	p.logger.Warn("search: index unavailable, falling back to scan",
		slog.String("op", op), slog.String("error", err.Error()))
	if p.onIndexFailure != nil && apperr.IsCorruption(err) {
		p.onIndexFailure(err)
	}
}

func normalizeLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultLimit
	case limit > MaxLimit:
		return MaxLimit
	}
	return limit
}

func truncateRunes(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
