package search

import (
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"

	"github.com/glintapp/glint/internal/notetext"
	"github.com/glintapp/glint/internal/storage"
)

// minFuzzyTermRunes keeps short terms out of the fuzzy tier; at three runes
// or fewer an edit distance of one matches half the dictionary.
const minFuzzyTermRunes = 4

// fuzzyMatch is one tier-three hit.
type fuzzyMatch struct {
	content  storage.ItemContent
	preview  string
	distance int
	inTitle  bool
}

// fuzzyScan is the last search tier: per-word edit distance over titles and
// note previews, so a typo like "Projext" still finds "Project". Title
// matches rank before note matches, closer matches before farther ones.
func fuzzyScan(contents []storage.ItemContent, terms []string) []fuzzyMatch {
	var eligible []string
	for _, t := range terms {
		if len([]rune(t)) >= minFuzzyTermRunes {
			eligible = append(eligible, strings.ToLower(t))
		}
	}
	if len(eligible) == 0 {
		return nil
	}

	var out []fuzzyMatch
	for _, c := range contents {
		preview := notetext.Preview(c.Note)

		total := 0
		inTitle := true
		all := true
		for _, term := range eligible {
			dist, ok := bestWordDistance(c.Title, term)
			if !ok {
				inTitle = false
				dist, ok = bestWordDistance(preview, term)
			}
			if !ok {
				all = false
				break
			}
			total += dist
		}
		if !all {
			continue
		}
		out = append(out, fuzzyMatch{content: c, preview: preview, distance: total, inTitle: inTitle})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].inTitle != out[j].inTitle {
			return out[i].inTitle
		}
		if out[i].distance != out[j].distance {
			return out[i].distance < out[j].distance
		}
		return out[i].content.ID < out[j].content.ID
	})
	return out
}

// bestWordDistance returns the smallest edit distance between term and any
// word of text, when that distance is within the acceptance threshold.
func bestWordDistance(text, term string) (int, bool) {
	best := -1
	for _, word := range strings.Fields(strings.ToLower(text)) {
		word = strings.Trim(word, ",.;:()[]{}<>\"'!?")
		if word == "" {
			continue
		}
		dist := levenshtein.ComputeDistance(word, term)
		if dist > fuzzyThreshold(term) {
			continue
		}
		if best < 0 || dist < best {
			best = dist
		}
		if best == 0 {
			break
		}
	}
	return best, best >= 0
}

// fuzzyThreshold allows one edit for short terms and two for longer ones.
func fuzzyThreshold(term string) int {
	if len([]rune(term)) <= 5 {
		return 1
	}
	return 2
}
