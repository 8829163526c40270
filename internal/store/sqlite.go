package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	perrors "github.com/p-blackswan/project-assistant/internal/errors"
	"github.com/p-blackswan/project-assistant/internal/project"
)

// SQLiteStore keeps project states as JSON documents in a SQLite database and
// records every phase change in project_events.
type SQLiteStore struct {
	db     *sql.DB
	logger zerolog.Logger
	mu     sync.RWMutex
}

// Event is a recorded phase change.
type Event struct {
	ID        string
	Slug      string
	FromPhase project.Phase
	ToPhase   project.Phase
	CreatedAt time.Time
}

// NewSQLiteStore opens (or creates) the database at dbPath and runs migrations.
func NewSQLiteStore(dbPath string, logger zerolog.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger.With().Str("component", "store.sqlite").Logger(),
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migration failed: %w", err)
	}

	s.logger.Debug().Str("path", dbPath).Msg("store initialized")
	return s, nil
}

// Load reads the state for slug.
func (s *SQLiteStore) Load(ctx context.Context, slug string) (*project.State, error) {
	if err := checkSlug(slug); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var doc string
	err := s.db.QueryRowContext(ctx, `SELECT state_json FROM project_states WHERE slug = ?`, slug).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: project %s", perrors.ErrNotFound, slug)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load state: %w", err)
	}
	return decodeState(slug, []byte(doc))
}

// Save upserts st in a single transaction and appends a project event when
// the phase changed.
func (s *SQLiteStore) Save(ctx context.Context, st *project.State) error {
	if err := checkSlug(st.Slug); err != nil {
		return err
	}
	data, err := encodeState(st)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var prev sql.NullString
	err = tx.QueryRowContext(ctx, `SELECT phase FROM project_states WHERE slug = ?`, st.Slug).Scan(&prev)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("failed to read previous phase: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
	INSERT INTO project_states (slug, name, phase, state_json, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?)
	ON CONFLICT(slug) DO UPDATE SET
		name = excluded.name,
		phase = excluded.phase,
		state_json = excluded.state_json,
		updated_at = excluded.updated_at
	`, st.Slug, st.Name, string(st.Phase), string(data),
		st.CreatedAt.UnixMilli(), st.UpdatedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to save state: %w", err)
	}

	if prev.Valid && prev.String != string(st.Phase) {
		_, err = tx.ExecContext(ctx, `
		INSERT INTO project_events (id, slug, from_phase, to_phase, created_at)
		VALUES (?, ?, ?, ?, ?)
		`, uuid.New().String(), st.Slug, prev.String, string(st.Phase), st.UpdatedAt.UnixMilli())
		if err != nil {
			return fmt.Errorf("failed to record phase change: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit state: %w", err)
	}
	s.logger.Debug().Str("slug", st.Slug).Str("phase", string(st.Phase)).Msg("state saved")
	return nil
}

// List returns every stored project, most recently updated first.
func (s *SQLiteStore) List(ctx context.Context) ([]Summary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT slug, name, phase, updated_at FROM project_states ORDER BY updated_at DESC, slug ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	defer rows.Close()

	var out []Summary
	for rows.Next() {
		var sum Summary
		var phase string
		var updated int64
		if err := rows.Scan(&sum.Slug, &sum.Name, &phase, &updated); err != nil {
			return nil, fmt.Errorf("failed to scan project: %w", err)
		}
		sum.Phase = project.Phase(phase)
		sum.UpdatedAt = time.UnixMilli(updated).UTC()
		out = append(out, sum)
	}
	return out, rows.Err()
}

// Events returns the recorded phase changes of slug in order.
func (s *SQLiteStore) Events(ctx context.Context, slug string) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
	SELECT id, slug, from_phase, to_phase, created_at
	FROM project_events WHERE slug = ? ORDER BY created_at ASC, rowid ASC
	`, slug)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var e Event
		var from, to string
		var created int64
		if err := rows.Scan(&e.ID, &e.Slug, &from, &to, &created); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		e.FromPhase = project.Phase(from)
		e.ToPhase = project.Phase(to)
		e.CreatedAt = time.UnixMilli(created).UTC()
		out = append(out, e)
	}
	return out, rows.Err()
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
