package services_test

import (
	"strings"
	"testing"

	"scan2epub/internal/services"
)

func TestChunkText(t *testing.T) {
	t.Run("empty input", func(t *testing.T) {
		if got := services.ChunkText("", 100); got != nil {
			t.Errorf("expected nil for empty input, got %v", got)
		}
		if got := services.ChunkText("   \n\n  ", 100); got != nil {
			t.Errorf("expected nil for whitespace input, got %v", got)
		}
	})

	t.Run("non-positive limit", func(t *testing.T) {
		if got := services.ChunkText("hello", 0); got != nil {
			t.Errorf("expected nil for maxChars 0, got %v", got)
		}
	})

	t.Run("single small paragraph", func(t *testing.T) {
		chunks := services.ChunkText("Hello world.", 100)
		if len(chunks) != 1 {
			t.Fatalf("expected 1 chunk, got %d", len(chunks))
		}
		if chunks[0] != "Hello world." {
			t.Errorf("unexpected chunk: %q", chunks[0])
		}
	})

	t.Run("paragraphs grouped up to the limit", func(t *testing.T) {
		text := "aaaa\n\nbbbb\n\ncccc"
		chunks := services.ChunkText(text, 10)
		if len(chunks) != 2 {
			t.Fatalf("expected 2 chunks, got %d: %v", len(chunks), chunks)
		}
		if chunks[0] != "aaaa\n\nbbbb" {
			t.Errorf("first chunk = %q", chunks[0])
		}
		if chunks[1] != "cccc" {
			t.Errorf("second chunk = %q", chunks[1])
		}
	})

	t.Run("every chunk within the limit", func(t *testing.T) {
		text := strings.Repeat("One sentence here. ", 50) + "\n\n" + strings.Repeat("Another block. ", 30)
		chunks := services.ChunkText(text, 120)
		if len(chunks) == 0 {
			t.Fatal("expected chunks")
		}
		for i, c := range chunks {
			if len(c) > 120 {
				t.Errorf("chunk %d has %d chars, exceeds limit", i, len(c))
			}
		}
	})

	t.Run("oversized paragraph splits at sentences", func(t *testing.T) {
		text := "First sentence is here. Second sentence follows it. Third one ends things."
		chunks := services.ChunkText(text, 30)
		if len(chunks) != 3 {
			t.Fatalf("expected 3 chunks, got %d: %v", len(chunks), chunks)
		}
		if chunks[0] != "First sentence is here." {
			t.Errorf("first chunk = %q", chunks[0])
		}
		if chunks[2] != "Third one ends things." {
			t.Errorf("last chunk = %q", chunks[2])
		}
	})

	t.Run("sentence longer than limit force-splits", func(t *testing.T) {
		long := strings.Repeat("x", 25)
		chunks := services.ChunkText(long, 10)
		if len(chunks) != 3 {
			t.Fatalf("expected 3 chunks, got %d: %v", len(chunks), chunks)
		}
		if chunks[0] != strings.Repeat("x", 10) || chunks[1] != strings.Repeat("x", 10) {
			t.Errorf("force-split chunks wrong: %v", chunks)
		}
		if chunks[2] != strings.Repeat("x", 5) {
			t.Errorf("tail chunk = %q", chunks[2])
		}
	})

	t.Run("order and content preserved", func(t *testing.T) {
		text := "Alpha paragraph.\n\nBeta paragraph.\n\nGamma paragraph."
		chunks := services.ChunkText(text, 20)
		joined := strings.Join(chunks, "\n\n")
		if joined != text {
			t.Errorf("rejoined chunks differ from input:\ngot  %q\nwant %q", joined, text)
		}
	})
}
