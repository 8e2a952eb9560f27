package epub_test

import (
	"strings"
	"testing"

	"scan2epub/internal/epub"
)

func TestReconstruct(t *testing.T) {
	t.Run("empty text yields placeholder", func(t *testing.T) {
		if got := epub.Reconstruct("   "); got != epub.EmptyChapterHTML {
			t.Errorf("expected empty-chapter placeholder, got %q", got)
		}
	})

	t.Run("short line without period becomes heading", func(t *testing.T) {
		got := epub.Reconstruct("Chapter One")
		if !strings.Contains(got, "<h2>Chapter One</h2>") {
			t.Errorf("expected heading, got %q", got)
		}
	})

	t.Run("sentence with period becomes paragraph", func(t *testing.T) {
		got := epub.Reconstruct("This is body text.")
		if !strings.Contains(got, "<p>This is body text.</p>") {
			t.Errorf("expected paragraph, got %q", got)
		}
	})

	t.Run("long line without period still a paragraph", func(t *testing.T) {
		long := strings.Repeat("word ", 30) + "end"
		got := epub.Reconstruct(long)
		if strings.Contains(got, "<h2>") {
			t.Errorf("long text should not become a heading: %q", got)
		}
	})

	t.Run("special characters are escaped", func(t *testing.T) {
		got := epub.Reconstruct("Tom & Jerry say 1 < 2.")
		if !strings.Contains(got, "Tom &amp; Jerry say 1 &lt; 2.") {
			t.Errorf("escaping failed: %q", got)
		}
	})

	t.Run("paragraph order preserved", func(t *testing.T) {
		got := epub.Reconstruct("First one here.\n\nSecond one here.")
		first := strings.Index(got, "First one here.")
		second := strings.Index(got, "Second one here.")
		if first < 0 || second < 0 || first > second {
			t.Errorf("paragraph order broken: %q", got)
		}
	})
}

func TestExtractText(t *testing.T) {
	t.Run("paragraphs separated by blank lines", func(t *testing.T) {
		html := `<html><body><p>First.</p><p>Second.</p></body></html>`
		got := epub.ExtractText(html)
		if got != "First.\n\nSecond." {
			t.Errorf("got %q", got)
		}
	})

	t.Run("scripts and styles dropped", func(t *testing.T) {
		html := `<html><head><style>p{color:red}</style></head><body><script>var x=1</script><p>Kept.</p></body></html>`
		got := epub.ExtractText(html)
		if strings.Contains(got, "color") || strings.Contains(got, "var x") {
			t.Errorf("script or style text leaked: %q", got)
		}
		if !strings.Contains(got, "Kept.") {
			t.Errorf("body text missing: %q", got)
		}
	})

	t.Run("headings become paragraphs", func(t *testing.T) {
		html := `<html><body><h1>Title</h1><p>Body.</p></body></html>`
		got := epub.ExtractText(html)
		if got != "Title\n\nBody." {
			t.Errorf("got %q", got)
		}
	})

	t.Run("blank runs collapse", func(t *testing.T) {
		html := `<html><body><div></div><div></div><p>Only.</p></body></html>`
		if got := epub.ExtractText(html); got != "Only." {
			t.Errorf("got %q", got)
		}
	})
}

func TestReconstructExtractStability(t *testing.T) {
	flat := "A Heading\n\nA full sentence goes here.\n\nAnother paragraph of text follows."
	doc := epub.Reconstruct(flat)
	if got := epub.ExtractText(doc); got != flat {
		t.Errorf("round trip changed text:\ngot  %q\nwant %q", got, flat)
	}
}
