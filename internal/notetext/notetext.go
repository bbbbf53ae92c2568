// Package notetext handles the note body text format: inline image
// references, the optional trailing structured-block payload, preview
// sanitisation, and input cleanup for titles and notes.
package notetext

import (
	"fmt"
	"strings"
)

// RefScheme prefixes inline image references embedded in note text, e.g.
// ![image](glint://image/img-1700000000-ab12cd34?w=360).
const RefScheme = "glint://image/"

// PayloadPrefix marks the trailing structured-block payload line. Everything
// after the prefix is an opaque base64 blob owned by the editor; the plain
// text before it stays valid on its own.
const PayloadPrefix = "__GLBLK1__"

// Note is the tagged in-memory form of a note body: the plain-text
// projection plus the optional, non-authoritative structured payload.
type Note struct {
	Plain   string
	Payload string
}

// Split separates the plain text from a trailing structured payload line.
func Split(note string) Note {
	lines := strings.Split(note, "\n")
	var plain []string
	var payload string
	for _, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), PayloadPrefix) {
			payload = strings.TrimPrefix(strings.TrimSpace(line), PayloadPrefix)
			continue
		}
		plain = append(plain, line)
	}
	return Note{Plain: strings.Join(plain, "\n"), Payload: payload}
}

// ImageRef renders an inline reference for key. A width of zero omits the
// display-width hint.
func ImageRef(key string, width int) string {
	if width > 0 {
		return fmt.Sprintf("![image](%s%s?w=%d)", RefScheme, key, width)
	}
	return fmt.Sprintf("![image](%s%s)", RefScheme, key)
}

// ImageKeys returns the keys of every inline image reference in note, in
// order of appearance, without duplicates.
func ImageKeys(note string) []string {
	var keys []string
	seen := make(map[string]struct{})
	rest := note
	for {
		idx := strings.Index(rest, RefScheme)
		if idx < 0 {
			break
		}
		rest = rest[idx+len(RefScheme):]
		end := strings.IndexAny(rest, "?)")
		if end < 0 {
			end = len(rest)
		}
		key := rest[:end]
		rest = rest[end:]
		if key == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		keys = append(keys, key)
	}
	return keys
}

// Preview flattens a note body for search and snippet display: the payload
// line and inline image references are removed, whitespace collapsed, and
// leftover image-URL fragments dropped.
func Preview(note string) string {
	text := Split(note).Plain
	text = stripImageRefs(text)
	text = collapseWhitespace(text)
	return stripResidueTokens(text)
}

// stripImageRefs removes Markdown image links whose target uses RefScheme.
// Other image links are left alone.
func stripImageRefs(text string) string {
	var out strings.Builder
	out.Grow(len(text))
	cursor := 0
	for {
		start := strings.Index(text[cursor:], "![")
		if start < 0 {
			break
		}
		start += cursor
		out.WriteString(text[cursor:start])

		altEnd := strings.Index(text[start+2:], "](")
		if altEnd < 0 {
			out.WriteString(text[start:])
			return out.String()
		}
		urlStart := start + 2 + altEnd + 2
		urlEnd := strings.IndexByte(text[urlStart:], ')')
		if urlEnd < 0 {
			out.WriteString(text[start:])
			return out.String()
		}
		urlEnd += urlStart

		if strings.HasPrefix(text[urlStart:urlEnd], RefScheme) {
			cursor = urlEnd + 1
			continue
		}
		out.WriteString(text[start : urlEnd+1])
		cursor = urlEnd + 1
	}
	out.WriteString(text[cursor:])
	return out.String()
}

func collapseWhitespace(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

// stripResidueTokens drops tokens that look like fragments of a broken image
// reference (partial edits leave these behind in real notes).
func stripResidueTokens(text string) string {
	fields := strings.Fields(text)
	kept := fields[:0]
	for _, tok := range fields {
		if !looksLikeImageResidue(tok) {
			kept = append(kept, tok)
		}
	}
	return strings.Join(kept, " ")
}

func looksLikeImageResidue(token string) bool {
	if strings.Contains(token, RefScheme) {
		return true
	}
	trimmed := strings.Trim(token, ",.;:()[]{}<>\"'")
	if !strings.Contains(trimmed, "?w=") {
		return false
	}
	base, _, _ := strings.Cut(trimmed, "?w=")
	if strings.HasPrefix(base, "img-") || strings.HasPrefix(base, "pasted-") {
		return true
	}
	hexCount := 0
	total := 0
	for _, r := range base {
		total++
		if isHexDigit(r) {
			hexCount++
		}
	}
	return hexCount >= 6 && total <= 24
}

func isHexDigit(r rune) bool {
	switch {
	case r >= '0' && r <= '9':
		return true
	case r >= 'a' && r <= 'f':
		return true
	case r >= 'A' && r <= 'F':
		return true
	}
	return false
}

// SanitizeTitle strips control characters, the Unicode replacement
// character, and byte-order marks from user-supplied titles.
func SanitizeTitle(title string) string { return sanitize(title) }

// SanitizeNote applies the same cleanup to note bodies.
func SanitizeNote(note string) string { return sanitize(note) }

func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '\n', '\t', '\r':
			return r
		case '\uFFFD', '\uFEFF':
			return -1
		}
		if r < ' ' {
			return -1
		}
		return r
	}, s)
}
