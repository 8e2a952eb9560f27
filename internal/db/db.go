package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"scan2epub/internal/models"
)

// Ledger records one row per pipeline invocation so past runs, their outputs
// and their degraded-unit counts can be inspected after the fact.
type Ledger struct {
	conn *sql.DB
}

// Open connects to the SQLite ledger and runs schema migrations.
func Open(path string) (*Ledger, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create ledger dir: %w", err)
		}
	}
	conn, err := sql.Open("sqlite", fmt.Sprintf("file:%s?_foreign_keys=1", path))
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	conn.SetMaxOpenConns(1)
	conn.SetConnMaxLifetime(0)

	if err := migrate(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate schema: %w", err)
	}
	return &Ledger{conn: conn}, nil
}

func (l *Ledger) Close() error {
	return l.conn.Close()
}

func migrate(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			command TEXT NOT NULL,
			input TEXT NOT NULL,
			output TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL CHECK(status IN ('succeeded','failed')),
			error TEXT NOT NULL DEFAULT '',
			degraded_chunks INTEGER NOT NULL DEFAULT 0,
			degraded_batches INTEGER NOT NULL DEFAULT 0,
			started_at DATETIME NOT NULL,
			finished_at DATETIME NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at DESC);`,
	}

	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("execute %q: %w", stmt, err)
		}
	}
	return nil
}

// Record inserts one finished run.
func (l *Ledger) Record(run models.RunRecord) error {
	const insert = `
	INSERT INTO runs (id, command, input, output, status, error, degraded_chunks, degraded_batches, started_at, finished_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?);`
	_, err := l.conn.Exec(insert,
		run.ID, run.Command, run.Input, run.Output, string(run.Status), run.Error,
		run.DegradedChunks, run.DegradedBatches,
		run.StartedAt.UTC(), run.FinishedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("record run: %w", err)
	}
	return nil
}

// Recent returns the most recent runs, newest first.
func (l *Ledger) Recent(limit int) ([]models.RunRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	const query = `
	SELECT id, command, input, output, status, error, degraded_chunks, degraded_batches, started_at, finished_at
	FROM runs ORDER BY started_at DESC LIMIT ?;`
	rows, err := l.conn.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []models.RunRecord
	for rows.Next() {
		var (
			run    models.RunRecord
			status string
			start  time.Time
			finish time.Time
		)
		if err := rows.Scan(&run.ID, &run.Command, &run.Input, &run.Output, &status, &run.Error,
			&run.DegradedChunks, &run.DegradedBatches, &start, &finish); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		run.Status = models.RunStatus(status)
		run.StartedAt = start
		run.FinishedAt = finish
		runs = append(runs, run)
	}
	return runs, rows.Err()
}
