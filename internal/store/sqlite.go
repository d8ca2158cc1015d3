package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/curious-bigcat/snowflake-cove-agents-cortex-ai/internal/model"
)

// ErrNotFound is returned when a run id is unknown
var ErrNotFound = errors.New("run not found")

// RunSummary is one row of the run history
type RunSummary struct {
	RunID        string
	Query        string
	StartedAt    time.Time
	Backend      string
	Total        int
	Consistent   int
	Inconsistent int
	Unverified   int
	Corrected    bool
}

// SQLiteStore keeps finished reports in a local SQLite database
type SQLiteStore struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path and migrates it.
// ":memory:" gives a private in-memory database.
func Open(path string) (*SQLiteStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
			return nil, fmt.Errorf("create store dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// A second connection to ":memory:" would see an empty database
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			run_id TEXT PRIMARY KEY,
			query TEXT NOT NULL,
			started_at DATETIME NOT NULL,
			backend TEXT NOT NULL,
			total INTEGER NOT NULL,
			consistent INTEGER NOT NULL,
			inconsistent INTEGER NOT NULL,
			unverified INTEGER NOT NULL,
			corrected INTEGER NOT NULL,
			report TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at)`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w\n%s", err, m)
		}
	}

	return nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// SaveRun stores a report, replacing any earlier copy with the same run id
func (s *SQLiteStore) SaveRun(ctx context.Context, report *model.Report) error {
	if report.RunID == "" {
		return errors.New("report has no run id")
	}

	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}

	sum := report.Summary
	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO runs
			(run_id, query, started_at, backend, total, consistent, inconsistent, unverified, corrected, report)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		report.RunID, report.Query, report.StartedAt.UTC(), report.Backend,
		sum.Total, sum.Consistent, sum.Inconsistent, sum.Unverified, sum.Corrected, string(data))
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// GetRun loads a stored report
func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*model.Report, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT report FROM runs WHERE run_id = ?`, runID).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, runID)
	}
	if err != nil {
		return nil, err
	}

	var report model.Report
	if err := json.Unmarshal([]byte(data), &report); err != nil {
		return nil, fmt.Errorf("decode report: %w", err)
	}
	return &report, nil
}

// ListRuns returns the most recent runs first. limit <= 0 returns all.
func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = -1
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, query, started_at, backend, total, consistent, inconsistent, unverified, corrected
		FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var runs []RunSummary
	for rows.Next() {
		var r RunSummary
		if err := rows.Scan(&r.RunID, &r.Query, &r.StartedAt, &r.Backend,
			&r.Total, &r.Consistent, &r.Inconsistent, &r.Unverified, &r.Corrected); err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}
