package notetext

import (
	"strings"
	"testing"
)

func TestSplitPayload(t *testing.T) {
	note := "shopping list\nmilk\n" + PayloadPrefix + "eyJibG9ja3MiOltdfQ=="
	n := Split(note)
	if n.Plain != "shopping list\nmilk" {
		t.Errorf("plain = %q", n.Plain)
	}
	if n.Payload != "eyJibG9ja3MiOltdfQ==" {
		t.Errorf("payload = %q", n.Payload)
	}
}

func TestSplitNoPayload(t *testing.T) {
	n := Split("just text")
	if n.Plain != "just text" || n.Payload != "" {
		t.Errorf("got %+v", n)
	}
}

func TestImageRefRoundTrip(t *testing.T) {
	ref := ImageRef("img-1700000000-ab12cd34", 360)
	keys := ImageKeys("before " + ref + " after")
	if len(keys) != 1 || keys[0] != "img-1700000000-ab12cd34" {
		t.Errorf("keys = %v", keys)
	}
}

func TestImageRefNoWidth(t *testing.T) {
	ref := ImageRef("img-1-aa", 0)
	if strings.Contains(ref, "?w=") {
		t.Errorf("ref = %q, want no width hint", ref)
	}
	keys := ImageKeys(ref)
	if len(keys) != 1 || keys[0] != "img-1-aa" {
		t.Errorf("keys = %v", keys)
	}
}

func TestImageKeysDedup(t *testing.T) {
	note := ImageRef("img-1-aa", 100) + "\n" + ImageRef("img-1-aa", 200) + "\n" + ImageRef("img-2-bb", 0)
	keys := ImageKeys(note)
	if len(keys) != 2 || keys[0] != "img-1-aa" || keys[1] != "img-2-bb" {
		t.Errorf("keys = %v", keys)
	}
}

func TestPreviewStripsRefsAndPayload(t *testing.T) {
	note := "Buy milk " + ImageRef("img-1-aa", 360) + " and eggs\n" + PayloadPrefix + "abc"
	got := Preview(note)
	if got != "Buy milk and eggs" {
		t.Errorf("preview = %q", got)
	}
}

func TestPreviewKeepsForeignImageLinks(t *testing.T) {
	note := "logo ![alt](https://example.com/logo.png) here"
	got := Preview(note)
	if !strings.Contains(got, "example.com/logo.png") {
		t.Errorf("preview = %q, external link should survive", got)
	}
}

func TestPreviewDropsResidue(t *testing.T) {
	cases := []struct {
		note string
		want string
	}{
		{"text img-1700000000-ab12cd34?w=360 more", "text more"},
		{"text pasted-123?w=100 more", "text more"},
		{"deadbeef01?w=88 alone", "alone"},
		{"what?w= is this", "what?w= is this"},
	}
	for _, c := range cases {
		if got := Preview(c.note); got != c.want {
			t.Errorf("Preview(%q) = %q, want %q", c.note, got, c.want)
		}
	}
}

func TestPreviewCollapsesWhitespace(t *testing.T) {
	got := Preview("a\n\n\n  b\t\tc")
	if got != "a b c" {
		t.Errorf("preview = %q", got)
	}
}

func TestSanitizeTitle(t *testing.T) {
	got := SanitizeTitle("He\x00llo\uFEFF wor\uFFFDld\n")
	if got != "Hello world\n" {
		t.Errorf("got %q", got)
	}
}

func TestSanitizeKeepsTabsAndNewlines(t *testing.T) {
	in := "line1\n\tline2\r"
	if got := SanitizeNote(in); got != in {
		t.Errorf("got %q, want unchanged", got)
	}
}
