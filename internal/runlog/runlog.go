// Package runlog persists a record of every conversion run to a local
// SQLite database, so beamline operators can audit what was converted,
// when, and with what outcome.
package runlog

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Run statuses.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Run is one recorded conversion attempt.
type Run struct {
	RunID      string `json:"run_id"`
	InputPath  string `json:"input_path"`
	OutputPath string `json:"output_path"`
	DataName   string `json:"data_name"`
	DOI        string `json:"doi,omitempty"`
	Scans      int    `json:"scans"`
	Frames     int    `json:"frames"`
	Status     string `json:"status"`
	Detail     string `json:"detail,omitempty"`
	StartedAt  int64  `json:"started_at"`  // unix nanoseconds
	FinishedAt int64  `json:"finished_at"` // unix nanoseconds
}

// Store provides persistence for conversion runs.
type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) the run log database at path and
// applies any pending schema migrations.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open run log %s: %w", path, err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA temp_store=MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}

	if err := migrateUp(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func migrateUp(db *sql.DB) error {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("load embedded migrations: %w", err)
	}
	driver, err := sqlite.WithInstance(db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("create sqlite driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", source, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}
	// Note: m is not closed here because that would close the underlying
	// DB connection.

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

// RecordRun persists one run. An empty RunID gets a generated UUID and
// zero timestamps default to now.
func (s *Store) RecordRun(run *Run) error {
	if run.RunID == "" {
		run.RunID = uuid.New().String()
	}
	if run.StartedAt == 0 {
		run.StartedAt = time.Now().UnixNano()
	}
	if run.FinishedAt == 0 {
		run.FinishedAt = time.Now().UnixNano()
	}

	return retryOnBusy(func() error {
		_, err := s.db.Exec(`
			INSERT INTO conversion_runs (
				run_id, input_path, output_path, data_name, doi,
				scans, frames, status, detail, started_at, finished_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			run.RunID, run.InputPath, run.OutputPath, run.DataName, nullStr(run.DOI),
			run.Scans, run.Frames, run.Status, nullStr(run.Detail),
			run.StartedAt, run.FinishedAt,
		)
		return err
	})
}

// Get returns a single run by ID.
func (s *Store) Get(runID string) (*Run, error) {
	row := s.db.QueryRow(`
		SELECT run_id, input_path, output_path, data_name, doi,
		       scans, frames, status, detail, started_at, finished_at
		FROM conversion_runs
		WHERE run_id = ?`, runID)

	run, err := scanRun(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("run %s not found", runID)
		}
		return nil, fmt.Errorf("scan run: %w", err)
	}
	return run, nil
}

// RecentRuns returns the most recent runs, newest first.
func (s *Store) RecentRuns(limit int) ([]*Run, error) {
	rows, err := s.db.Query(`
		SELECT run_id, input_path, output_path, data_name, doi,
		       scans, frames, status, detail, started_at, finished_at
		FROM conversion_runs
		ORDER BY started_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run row: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// rowScanner covers both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*Run, error) {
	var run Run
	var doi, detail sql.NullString
	err := row.Scan(
		&run.RunID, &run.InputPath, &run.OutputPath, &run.DataName, &doi,
		&run.Scans, &run.Frames, &run.Status, &detail,
		&run.StartedAt, &run.FinishedAt,
	)
	if err != nil {
		return nil, err
	}
	run.DOI = doi.String
	run.Detail = detail.String
	return &run, nil
}

// nullStr returns nil for empty strings, pointer to string otherwise.
func nullStr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
