package search

import (
	"strings"
	"testing"
)

func TestBuildSnippetFromNote(t *testing.T) {
	snippet, source := BuildSnippet("Groceries", "remember to buy milk and eggs tomorrow", []string{"milk"})
	if source != "note" {
		t.Errorf("source = %q, want note", source)
	}
	if !strings.Contains(snippet, "**milk**") {
		t.Errorf("snippet = %q, want **milk** marked", snippet)
	}
}

func TestBuildSnippetFallsBackToTitle(t *testing.T) {
	snippet, source := BuildSnippet("Milk run", "nothing matching in the body", []string{"milk"})
	if source != "title" {
		t.Errorf("source = %q, want title", source)
	}
	if !strings.Contains(snippet, "**Milk**") {
		t.Errorf("snippet = %q", snippet)
	}
}

func TestBuildSnippetNoMatch(t *testing.T) {
	snippet, source := BuildSnippet("a", "b", []string{"zzz"})
	if snippet != "" || source != "" {
		t.Errorf("got (%q, %q), want empty", snippet, source)
	}
}

func TestSnippetEllipses(t *testing.T) {
	body := strings.Repeat("pad ", 30) + "needle" + strings.Repeat(" pad", 30)
	snippet, _ := BuildSnippet("", body, []string{"needle"})
	if !strings.HasPrefix(snippet, "...") || !strings.HasSuffix(snippet, "...") {
		t.Errorf("snippet = %q, want ellipses on both sides", snippet)
	}
	if !strings.Contains(snippet, "**needle**") {
		t.Errorf("snippet = %q", snippet)
	}
}

func TestSnippetNoEllipsisAtEdges(t *testing.T) {
	snippet, _ := BuildSnippet("", "needle at the start", []string{"needle"})
	if strings.HasPrefix(snippet, "...") {
		t.Errorf("snippet = %q, no leading ellipsis expected", snippet)
	}
}

func TestHighlightAllOccurrences(t *testing.T) {
	got := highlight("milk, more milk, MILK", []string{"milk"})
	if strings.Count(got, "**") != 6 {
		t.Errorf("got %q, want three highlighted spans", got)
	}
}

func TestHighlightOverlappingTermsMerged(t *testing.T) {
	got := highlight("overlap", []string{"overlap", "lap"})
	if got != "**overlap**" {
		t.Errorf("got %q, want single merged span", got)
	}
}

func TestSnippetUnicodeSafe(t *testing.T) {
	body := "préfix сорок две zürich años the needle sits here"
	snippet, _ := BuildSnippet("", body, []string{"needle"})
	if !strings.Contains(snippet, "**needle**") {
		t.Errorf("snippet = %q", snippet)
	}
	for _, r := range snippet {
		if r == '\uFFFD' {
			t.Fatalf("snippet contains replacement char: %q", snippet)
		}
	}
}

func TestSubtitleTruncation(t *testing.T) {
	long := strings.Repeat("x", 200)
	got := subtitleOf(long)
	if len([]rune(got)) != subtitleRunes+3 {
		t.Errorf("len = %d", len([]rune(got)))
	}
	if subtitleOf("short") != "short" {
		t.Error("short subtitles should pass through")
	}
}
