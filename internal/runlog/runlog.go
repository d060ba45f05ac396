// Package runlog records finished runs in a local SQLite database.
//
// The run log is an operator-facing history, not coordination state: writes
// are best-effort and a failure to record never fails the job that produced
// it. Callers log and continue.
package runlog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"clipflow/internal/config"
)

// Outcomes recorded per run.
const (
	OutcomeComplete = "complete"
	OutcomeError    = "error"
)

// Entry is one finished run.
type Entry struct {
	ID        int64
	URL       string
	Title     string
	EditorURL string
	Outcome   string
	ErrorType string
	Duration  time.Duration
	CreatedAt time.Time
}

// Store manages run-log persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the run-log database.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	dbPath := cfg.RunLogPath()
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.applySchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) applySchema(ctx context.Context) error {
	const schema = `
CREATE TABLE IF NOT EXISTS runs (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    url TEXT NOT NULL,
    title TEXT,
    editor_url TEXT,
    outcome TEXT NOT NULL,
    error_type TEXT,
    duration_seconds REAL NOT NULL DEFAULT 0,
    created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at);`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("apply run-log schema: %w", err)
	}
	return nil
}

// Record inserts one finished run.
func (s *Store) Record(ctx context.Context, entry Entry) error {
	if entry.URL == "" {
		return errors.New("runlog: url required")
	}
	switch entry.Outcome {
	case OutcomeComplete, OutcomeError:
	default:
		return fmt.Errorf("runlog: invalid outcome %q", entry.Outcome)
	}

	createdAt := entry.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO runs (url, title, editor_url, outcome, error_type, duration_seconds, created_at)
         VALUES (?, ?, ?, ?, ?, ?, ?)`,
		entry.URL,
		nullableString(entry.Title),
		nullableString(entry.EditorURL),
		entry.Outcome,
		nullableString(entry.ErrorType),
		entry.Duration.Seconds(),
		createdAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// Tail returns the most recent entries, newest first.
func (s *Store) Tail(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, url, title, editor_url, outcome, error_type, duration_seconds, created_at
         FROM runs ORDER BY id DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			entry      Entry
			title      sql.NullString
			editorURL  sql.NullString
			errorType  sql.NullString
			durationS  float64
			createdRaw string
		)
		if err := rows.Scan(&entry.ID, &entry.URL, &title, &editorURL, &entry.Outcome, &errorType, &durationS, &createdRaw); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		entry.Title = title.String
		entry.EditorURL = editorURL.String
		entry.ErrorType = errorType.String
		entry.Duration = time.Duration(durationS * float64(time.Second))
		if created, err := time.Parse(time.RFC3339Nano, createdRaw); err == nil {
			entry.CreatedAt = created
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}
