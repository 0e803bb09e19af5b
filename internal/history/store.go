// Package history keeps a SQLite ledger of render jobs.
package history

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/olivier-w/beatframe/internal/render"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is bumped when schema.sql changes. Older ledgers must be
// deleted to adopt a new schema.
const schemaVersion = 1

// ErrSchemaMismatch indicates a ledger written by a different schema version.
var ErrSchemaMismatch = errors.New("schema version mismatch")

// timeLayout is fixed width so timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// StatusRunning marks a job that has started but not reported an outcome.
const StatusRunning = "running"

// Entry is one row of the ledger.
type Entry struct {
	ID           string
	ProjectID    string
	Source       string
	Format       string
	Width        int
	Height       int
	FrameRate    int
	Status       string
	Frames       int
	Bytes        int64
	ErrorMessage string
	StartedAt    time.Time
	FinishedAt   *time.Time
}

// Elapsed is the wall time of a finished job, or zero while it runs.
func (e Entry) Elapsed() time.Duration {
	if e.FinishedAt == nil {
		return 0
	}
	return e.FinishedAt.Sub(e.StartedAt)
}

// Store persists job history. It satisfies render.Recorder.
type Store struct {
	db   *sql.DB
	path string
}

var _ render.Recorder = (*Store)(nil)

// Open creates or connects to the ledger at <dir>/history.db.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("ensure state dir: %w", err)
	}
	dbPath := filepath.Join(dir, "history.db")
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
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Path returns the database file location.
func (s *Store) Path() string { return s.path }

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) initSchema(ctx context.Context) error {
	var tableExists int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableExists)
	if err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}
	if tableExists == 0 {
		return s.createSchema(ctx)
	}

	var version int
	if err := s.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version != schemaVersion {
		return fmt.Errorf("%w: ledger has version %d, expected %d (delete %s)",
			ErrSchemaMismatch, version, schemaVersion, s.path)
	}
	return nil
}

func (s *Store) createSchema(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema: %w", err)
	}
	return nil
}

// Begin records a job as running.
func (s *Store) Begin(ctx context.Context, rec render.JobRecord) error {
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO jobs (
            id, project_id, source, format, width, height, frame_rate, status, started_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID,
		nullableString(rec.ProjectID),
		nullableString(rec.Source),
		string(rec.Format),
		rec.Width,
		rec.Height,
		rec.FrameRate,
		StatusRunning,
		rec.StartedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

// Finish stores a job's terminal state.
func (s *Store) Finish(ctx context.Context, id string, out render.Outcome) error {
	var msg string
	if out.Err != nil && out.State == render.Failed {
		msg = out.Err.Error()
	}
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE jobs
         SET status = ?, frames = ?, bytes = ?, error_message = ?, finished_at = ?
         WHERE id = ?`,
		out.State.String(),
		out.Frames,
		out.Bytes,
		nullableString(msg),
		out.FinishedAt.UTC().Format(timeLayout),
		id,
	)
	if err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("update job: no job with id %s", id)
	}
	return nil
}

// List returns the most recent jobs first. limit <= 0 returns every job.
func (s *Store) List(ctx context.Context, limit int) ([]Entry, error) {
	query := `SELECT id, project_id, source, format, width, height, frame_rate,
        status, frames, bytes, error_message, started_at, finished_at
        FROM jobs ORDER BY started_at DESC, id`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate jobs: %w", err)
	}
	return entries, nil
}

// Prune drops all but the newest keep jobs and returns how many were removed.
func (s *Store) Prune(ctx context.Context, keep int) (int64, error) {
	if keep < 0 {
		keep = 0
	}
	res, err := s.db.ExecContext(
		ctx,
		`DELETE FROM jobs WHERE id NOT IN (
            SELECT id FROM jobs ORDER BY started_at DESC, id LIMIT ?
        )`,
		keep,
	)
	if err != nil {
		return 0, fmt.Errorf("prune jobs: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("prune jobs: %w", err)
	}
	return n, nil
}

func scanEntry(rows *sql.Rows) (Entry, error) {
	var (
		e          Entry
		projectID  sql.NullString
		source     sql.NullString
		errMsg     sql.NullString
		startedAt  string
		finishedAt sql.NullString
	)
	if err := rows.Scan(
		&e.ID, &projectID, &source, &e.Format, &e.Width, &e.Height, &e.FrameRate,
		&e.Status, &e.Frames, &e.Bytes, &errMsg, &startedAt, &finishedAt,
	); err != nil {
		return Entry{}, fmt.Errorf("scan job: %w", err)
	}
	e.ProjectID = projectID.String
	e.Source = source.String
	e.ErrorMessage = errMsg.String

	t, err := time.Parse(timeLayout, startedAt)
	if err != nil {
		return Entry{}, fmt.Errorf("parse started_at: %w", err)
	}
	e.StartedAt = t
	if finishedAt.Valid {
		ft, err := time.Parse(timeLayout, finishedAt.String)
		if err != nil {
			return Entry{}, fmt.Errorf("parse finished_at: %w", err)
		}
		e.FinishedAt = &ft
	}
	return e, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}
