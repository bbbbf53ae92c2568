package search

import (
	"strings"
	"unicode"

	"github.com/glintapp/glint/internal/models"
)

const (
	noteWindowRunes  = 24
	titleWindowRunes = 32
	subtitleRunes    = 64
	ellipsis         = "..."
)

// BuildSnippet cuts a highlighted excerpt around the first matched term.
// The note body is preferred as the snippet source; the title is used when
// the note has no match. Matched spans are wrapped in ** markers. An empty
// snippet means neither field matched.
func BuildSnippet(title, body string, terms []string) (snippet, source string) {
	if s := cutSnippet(body, terms, noteWindowRunes); s != "" {
		return s, models.SnippetSourceNote
	}
	if s := cutSnippet(title, terms, titleWindowRunes); s != "" {
		return s, models.SnippetSourceTitle
	}
	return "", ""
}

// cutSnippet finds the first occurrence of any term in text and returns a
// window of the surrounding runes with every term occurrence highlighted.
func cutSnippet(text string, terms []string, window int) string {
	runes := []rune(text)
	lower := lowerRunes(runes)

	first := -1
	firstLen := 0
	for _, term := range terms {
		at := indexRunes(lower, lowerRunes([]rune(term)))
		if at >= 0 && (first < 0 || at < first) {
			first = at
			firstLen = len([]rune(term))
		}
	}
	if first < 0 {
		return ""
	}

	start := first - window
	if start < 0 {
		start = 0
	}
	end := first + firstLen + window
	if end > len(runes) {
		end = len(runes)
	}
	// Extend to word boundaries so the cut does not land mid-word.
	for start > 0 && !unicode.IsSpace(runes[start-1]) {
		start--
	}
	for end < len(runes) && !unicode.IsSpace(runes[end]) {
		end++
	}

	excerpt := highlight(string(runes[start:end]), terms)
	if start > 0 {
		excerpt = ellipsis + excerpt
	}
	if end < len(runes) {
		excerpt += ellipsis
	}
	return excerpt
}

// highlight wraps every case-insensitive occurrence of each term in **.
func highlight(text string, terms []string) string {
	runes := []rune(text)
	lower := lowerRunes(runes)

	type span struct{ start, end int }
	var spans []span
	for _, term := range terms {
		needle := lowerRunes([]rune(term))
		if len(needle) == 0 {
			continue
		}
		from := 0
		for {
			at := indexRunes(lower[from:], needle)
			if at < 0 {
				break
			}
			at += from
			spans = append(spans, span{at, at + len(needle)})
			from = at + len(needle)
		}
	}
	if len(spans) == 0 {
		return text
	}

	// Merge overlaps so nested markers never appear.
	for i := 0; i < len(spans); i++ {
		for j := i + 1; j < len(spans); j++ {
			if spans[j].start < spans[i].start {
				spans[i], spans[j] = spans[j], spans[i]
			}
		}
	}
	merged := spans[:1]
	for _, s := range spans[1:] {
		last := &merged[len(merged)-1]
		if s.start <= last.end {
			if s.end > last.end {
				last.end = s.end
			}
			continue
		}
		merged = append(merged, s)
	}

	var sb strings.Builder
	cursor := 0
	for _, s := range merged {
		sb.WriteString(string(runes[cursor:s.start]))
		sb.WriteString("**")
		sb.WriteString(string(runes[s.start:s.end]))
		sb.WriteString("**")
		cursor = s.end
	}
	sb.WriteString(string(runes[cursor:]))
	return sb.String()
}

// subtitleOf shortens a note preview into the one-line subtitle shown under
// the result title.
func subtitleOf(preview string) string {
	runes := []rune(preview)
	if len(runes) <= subtitleRunes {
		return preview
	}
	return string(runes[:subtitleRunes]) + ellipsis
}

func lowerRunes(runes []rune) []rune {
	out := make([]rune, len(runes))
	for i, r := range runes {
		out[i] = unicode.ToLower(r)
	}
	return out
}

// indexRunes is strings.Index over rune slices, keeping offsets in runes so
// multi-byte text windows stay aligned.
func indexRunes(haystack, needle []rune) int {
	if len(needle) == 0 || len(needle) > len(haystack) {
		return -1
	}
	for i := 0; i+len(needle) <= len(haystack); i++ {
		match := true
		for j := range needle {
			if haystack[i+j] != needle[j] {
				match = false
				break
			}
		}
		if match {
			return i
		}
	}
	return -1
}
