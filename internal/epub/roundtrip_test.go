package epub_test

import (
	"path/filepath"
	"strings"
	"testing"

	"scan2epub/internal/epub"
	"scan2epub/internal/models"
)

func TestWriteReadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "book.epub")

	meta := models.Metadata{
		Title:      "Szerencsés Dániel",
		Author:     "Ismeretlen",
		Language:   "hu",
		Identifier: "urn:uuid:test-book-1",
	}
	chapters := []models.Chapter{
		{FileName: "chap1.xhtml", Title: "Első fejezet", HTML: epub.Reconstruct("Első fejezet\n\nEz az első bekezdés szövege.")},
		{FileName: "chap2.xhtml", Title: "Második fejezet", HTML: epub.Reconstruct("Ez a második fejezet szövege.")},
	}

	if err := epub.Write(out, meta, chapters); err != nil {
		t.Fatalf("write: %v", err)
	}

	doc, err := epub.Read(out)
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	t.Run("metadata carried", func(t *testing.T) {
		if doc.Metadata.Title != meta.Title {
			t.Errorf("title = %q, want %q", doc.Metadata.Title, meta.Title)
		}
		if doc.Metadata.Author != meta.Author {
			t.Errorf("author = %q, want %q", doc.Metadata.Author, meta.Author)
		}
		if doc.Metadata.Language != meta.Language {
			t.Errorf("language = %q, want %q", doc.Metadata.Language, meta.Language)
		}
		if doc.Metadata.Identifier != meta.Identifier {
			t.Errorf("identifier = %q, want %q", doc.Metadata.Identifier, meta.Identifier)
		}
	})

	t.Run("chapters in spine order", func(t *testing.T) {
		var content []models.ContentItem
		for _, item := range doc.Items {
			if item.IsNavigation() {
				continue
			}
			content = append(content, item)
		}
		if len(content) != 2 {
			t.Fatalf("expected 2 content items, got %d", len(content))
		}
		if content[0].FileName != "chap1.xhtml" || content[1].FileName != "chap2.xhtml" {
			t.Errorf("chapter order wrong: %q, %q", content[0].FileName, content[1].FileName)
		}
		if !strings.Contains(content[0].PlainText, "Ez az első bekezdés szövege.") {
			t.Errorf("chapter text missing: %q", content[0].PlainText)
		}
	})

	t.Run("navigation flagged", func(t *testing.T) {
		foundNav := false
		for _, item := range doc.Items {
			if item.FileName == "nav.xhtml" {
				foundNav = true
				if !item.IsNavigation() {
					t.Errorf("nav.xhtml not flagged as navigation")
				}
			}
		}
		if !foundNav {
			t.Errorf("nav document not present in items")
		}
	})
}

func TestWriteDefaults(t *testing.T) {
	dir := t.TempDir()

	t.Run("placeholder when no chapters", func(t *testing.T) {
		out := filepath.Join(dir, "empty.epub")
		if err := epub.Write(out, models.Metadata{Title: "Empty"}, nil); err != nil {
			t.Fatalf("write: %v", err)
		}
		doc, err := epub.Read(out)
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		var content []models.ContentItem
		for _, item := range doc.Items {
			if !item.IsNavigation() {
				content = append(content, item)
			}
		}
		if len(content) != 1 {
			t.Fatalf("expected the placeholder chapter, got %d items", len(content))
		}
		if !strings.Contains(content[0].PlainText, "no readable content") {
			t.Errorf("placeholder text missing: %q", content[0].PlainText)
		}
	})

	t.Run("generated identifier", func(t *testing.T) {
		out := filepath.Join(dir, "noid.epub")
		err := epub.Write(out, models.Metadata{Title: "NoID"}, []models.Chapter{
			{FileName: "chap1.xhtml", Title: "One", HTML: epub.Reconstruct("Some text.")},
		})
		if err != nil {
			t.Fatalf("write: %v", err)
		}
		doc, err := epub.Read(out)
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		if !strings.HasPrefix(doc.Metadata.Identifier, "urn:uuid:") {
			t.Errorf("identifier = %q, want generated urn:uuid", doc.Metadata.Identifier)
		}
	})
}
