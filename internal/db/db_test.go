package db_test

import (
	"path/filepath"
	"testing"
	"time"

	"scan2epub/internal/db"
	"scan2epub/internal/models"
)

func openTestLedger(t *testing.T) *db.Ledger {
	t.Helper()
	l, err := db.Open(filepath.Join(t.TempDir(), "runs.db"))
	if err != nil {
		t.Fatalf("open ledger: %v", err)
	}
	t.Cleanup(func() { l.Close() })
	return l
}

func TestLedger(t *testing.T) {
	t.Run("record and read back", func(t *testing.T) {
		l := openTestLedger(t)
		started := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
		run := models.RunRecord{
			ID:              "run-1",
			Command:         "convert",
			Input:           "book.pdf",
			Output:          "book.epub",
			Status:          models.RunSucceeded,
			DegradedChunks:  2,
			DegradedBatches: 1,
			StartedAt:       started,
			FinishedAt:      started.Add(5 * time.Minute),
		}
		if err := l.Record(run); err != nil {
			t.Fatalf("record: %v", err)
		}

		runs, err := l.Recent(10)
		if err != nil {
			t.Fatalf("recent: %v", err)
		}
		if len(runs) != 1 {
			t.Fatalf("runs = %d, want 1", len(runs))
		}
		got := runs[0]
		if got.ID != "run-1" || got.Command != "convert" || got.Output != "book.epub" {
			t.Errorf("got %+v", got)
		}
		if got.Status != models.RunSucceeded {
			t.Errorf("status = %q", got.Status)
		}
		if got.DegradedChunks != 2 || got.DegradedBatches != 1 {
			t.Errorf("degraded chunks=%d batches=%d", got.DegradedChunks, got.DegradedBatches)
		}
		if !got.StartedAt.Equal(started) {
			t.Errorf("started = %v, want %v", got.StartedAt, started)
		}
	})

	t.Run("newest first", func(t *testing.T) {
		l := openTestLedger(t)
		base := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
		for i, id := range []string{"old", "mid", "new"} {
			err := l.Record(models.RunRecord{
				ID:         id,
				Command:    "ocr",
				Input:      "in.pdf",
				Status:     models.RunFailed,
				Error:      "boom",
				StartedAt:  base.Add(time.Duration(i) * time.Hour),
				FinishedAt: base.Add(time.Duration(i)*time.Hour + time.Minute),
			})
			if err != nil {
				t.Fatalf("record %s: %v", id, err)
			}
		}

		runs, err := l.Recent(2)
		if err != nil {
			t.Fatalf("recent: %v", err)
		}
		if len(runs) != 2 {
			t.Fatalf("runs = %d, want 2", len(runs))
		}
		if runs[0].ID != "new" || runs[1].ID != "mid" {
			t.Errorf("order = %s, %s", runs[0].ID, runs[1].ID)
		}
	})

	t.Run("invalid status rejected", func(t *testing.T) {
		l := openTestLedger(t)
		err := l.Record(models.RunRecord{
			ID:         "bad",
			Command:    "ocr",
			Input:      "in.pdf",
			Status:     models.RunStatus("exploded"),
			StartedAt:  time.Now(),
			FinishedAt: time.Now(),
		})
		if err == nil {
			t.Error("expected constraint violation")
		}
	})

	t.Run("empty ledger", func(t *testing.T) {
		l := openTestLedger(t)
		runs, err := l.Recent(0)
		if err != nil {
			t.Fatalf("recent: %v", err)
		}
		if len(runs) != 0 {
			t.Errorf("runs = %v", runs)
		}
	})
}
