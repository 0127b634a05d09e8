// Package history records finished formatting flows so the dashboard can
// show real numbers instead of placeholders.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"time"

	fileutil "smartdoc/internal/file"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS jobs (
	job_id      TEXT PRIMARY KEY,
	file_name   TEXT NOT NULL,
	goal        TEXT NOT NULL,
	status      TEXT NOT NULL,
	created_at  TIMESTAMP NOT NULL,
	finished_at TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_jobs_created_at ON jobs(created_at DESC);
`

// Record is one finished (or failed) formatting flow.
type Record struct {
	JobID      string
	FileName   string
	Goal       string
	Status     string
	CreatedAt  time.Time
	FinishedAt time.Time
}

// Stats summarizes the history for the dashboard.
type Stats struct {
	Formatted   int
	Failed      int
	SuccessRate float64
}

// Store is a SQLite-backed job history.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the history database at path and applies
// the schema. ":memory:" is supported for tests.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := fileutil.EnsureDir(filepath.Dir(path)); err != nil {
			return nil, fmt.Errorf("ensure history dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 10000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply %s: %w", pragma, err)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close() //nolint:wrapcheck
}

// Save upserts the record for its job id.
func (s *Store) Save(ctx context.Context, r Record) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO jobs (job_id, file_name, goal, status, created_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(job_id) DO UPDATE SET
			file_name = excluded.file_name,
			goal = excluded.goal,
			status = excluded.status,
			finished_at = excluded.finished_at`,
		r.JobID, r.FileName, r.Goal, r.Status, r.CreatedAt.UTC(), r.FinishedAt.UTC())
	if err != nil {
		return fmt.Errorf("save job record: %w", err)
	}
	return nil
}

// Stats returns the dashboard totals.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(CASE WHEN status = 'completed' THEN 1 END),
			COUNT(CASE WHEN status = 'error' THEN 1 END)
		FROM jobs`)
	var stats Stats
	if err := row.Scan(&stats.Formatted, &stats.Failed); err != nil {
		return Stats{}, fmt.Errorf("query stats: %w", err)
	}
	if total := stats.Formatted + stats.Failed; total > 0 {
		stats.SuccessRate = float64(stats.Formatted) / float64(total) * 100
	}
	return stats, nil
}

// Recent returns up to limit records, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT job_id, file_name, goal, status, created_at, finished_at
		FROM jobs ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent jobs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []Record
	for rows.Next() {
		var r Record
		if err := rows.Scan(&r.JobID, &r.FileName, &r.Goal, &r.Status, &r.CreatedAt, &r.FinishedAt); err != nil {
			return nil, fmt.Errorf("scan job record: %w", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate job records: %w", err)
	}
	return records, nil
}
