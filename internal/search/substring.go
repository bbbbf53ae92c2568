package search

import (
	"sort"
	"strings"

	"github.com/glintapp/glint/internal/notetext"
	"github.com/glintapp/glint/internal/storage"
)

// substringMatch is one tier-two hit with enough position information to
// rank by where the query first appears.
type substringMatch struct {
	content  storage.ItemContent
	preview  string
	position int
}

// substringScan is the second search tier: a case-insensitive substring scan
// over every item's title and note preview. It catches matches the token
// index cannot express, like partial words and punctuation-adjacent text.
// Every term has to appear somewhere in the item for it to match.
func substringScan(contents []storage.ItemContent, terms []string) []substringMatch {
	lowered := make([]string, len(terms))
	for i, t := range terms {
		lowered[i] = strings.ToLower(t)
	}

	var out []substringMatch
	for _, c := range contents {
		preview := notetext.Preview(c.Note)
		title := strings.ToLower(c.Title)
		body := strings.ToLower(preview)

		pos := -1
		all := true
		for _, term := range lowered {
			at := strings.Index(title, term)
			if at < 0 {
				if bodyAt := strings.Index(body, term); bodyAt >= 0 {
					// Note offsets rank after any title offset.
					at = len(title) + bodyAt
				}
			}
			if at < 0 {
				all = false
				break
			}
			if pos < 0 || at < pos {
				pos = at
			}
		}
		if !all {
			continue
		}
		out = append(out, substringMatch{content: c, preview: preview, position: pos})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].position != out[j].position {
			return out[i].position < out[j].position
		}
		return out[i].content.ID < out[j].content.ID
	})
	return out
}
