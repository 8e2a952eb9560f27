package services_test

import (
	"strings"
	"testing"

	"scan2epub/internal/services"
)

func TestSplitParagraphs(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		if got := services.SplitParagraphs(""); got != nil {
			t.Errorf("expected nil, got %v", got)
		}
	})

	t.Run("blank-line separation", func(t *testing.T) {
		got := services.SplitParagraphs("first para\n\nsecond para\n\n\n\nthird")
		want := []string{"first para", "second para", "third"}
		if len(got) != len(want) {
			t.Fatalf("expected %d paragraphs, got %d: %v", len(want), len(got), got)
		}
		for i := range want {
			if got[i] != want[i] {
				t.Errorf("paragraph %d = %q, want %q", i, got[i], want[i])
			}
		}
	})

	t.Run("paragraphs are trimmed", func(t *testing.T) {
		got := services.SplitParagraphs("  padded  \n\n  more  ")
		if len(got) != 2 || got[0] != "padded" || got[1] != "more" {
			t.Errorf("unexpected paragraphs: %v", got)
		}
	})

	t.Run("single newlines stay inside one paragraph", func(t *testing.T) {
		got := services.SplitParagraphs("one\ntwo\nthree")
		if len(got) != 1 {
			t.Fatalf("expected 1 paragraph, got %d: %v", len(got), got)
		}
		if got[0] != "one\ntwo\nthree" {
			t.Errorf("paragraph = %q", got[0])
		}
	})

	t.Run("whitespace only", func(t *testing.T) {
		if got := services.SplitParagraphs("  \n \n  "); len(got) != 0 {
			t.Errorf("expected no paragraphs, got %v", got)
		}
	})
}

func TestBatchParagraphs(t *testing.T) {
	t.Run("empty input", func(t *testing.T) {
		if got := services.BatchParagraphs(nil, 10, 100); got != nil {
			t.Errorf("expected nil, got %v", got)
		}
	})

	t.Run("count limit", func(t *testing.T) {
		paras := []string{"a", "b", "c", "d", "e"}
		batches := services.BatchParagraphs(paras, 2, 1000)
		if len(batches) != 3 {
			t.Fatalf("expected 3 batches, got %d", len(batches))
		}
		if len(batches[0]) != 2 || len(batches[1]) != 2 || len(batches[2]) != 1 {
			t.Errorf("unexpected batch sizes: %v", batches)
		}
	})

	t.Run("char limit", func(t *testing.T) {
		paras := []string{strings.Repeat("x", 60), strings.Repeat("y", 60), strings.Repeat("z", 60)}
		batches := services.BatchParagraphs(paras, 90, 100)
		if len(batches) != 3 {
			t.Fatalf("expected 3 batches, got %d", len(batches))
		}
	})

	t.Run("oversized paragraph travels alone", func(t *testing.T) {
		paras := []string{"small", strings.Repeat("x", 500), "tiny"}
		batches := services.BatchParagraphs(paras, 90, 100)
		if len(batches) != 3 {
			t.Fatalf("expected 3 batches, got %d", len(batches))
		}
		if len(batches[1]) != 1 || len(batches[1][0]) != 500 {
			t.Errorf("oversized paragraph not isolated: %v batch sizes", len(batches[1]))
		}
	})

	t.Run("order preserved", func(t *testing.T) {
		paras := []string{"a", "b", "c", "d"}
		batches := services.BatchParagraphs(paras, 3, 1000)
		var flat []string
		for _, b := range batches {
			flat = append(flat, b...)
		}
		if len(flat) != len(paras) {
			t.Fatalf("paragraph count changed: %d vs %d", len(flat), len(paras))
		}
		for i := range paras {
			if flat[i] != paras[i] {
				t.Errorf("paragraph %d reordered: %q", i, flat[i])
			}
		}
	})
}
