// Package store persists project state. Two backends share the StateStore
// contract: one JSON document per project on disk, or rows in SQLite.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	perrors "github.com/p-blackswan/project-assistant/internal/errors"
	"github.com/p-blackswan/project-assistant/internal/project"
)

// Backend names accepted by Open.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

// StateStore loads and saves whole project states.
type StateStore interface {
	// Load returns the state for slug. It fails with ErrNotFound when the
	// project does not exist and ErrStoreCorrupt when it cannot be decoded.
	Load(ctx context.Context, slug string) (*project.State, error)
	// Save durably replaces the stored state. A failed save leaves the
	// previous state intact.
	Save(ctx context.Context, st *project.State) error
	// List returns a summary of every stored project, most recently
	// updated first.
	List(ctx context.Context) ([]Summary, error)
	Close() error
}

// Summary is the listing view of a stored project.
type Summary struct {
	Slug      string
	Name      string
	Phase     project.Phase
	UpdatedAt time.Time
}

// Open returns the backend named by backend rooted at dataDir.
func Open(backend, dataDir string, logger zerolog.Logger) (StateStore, error) {
	switch backend {
	case "", BackendFile:
		return NewFileStore(dataDir, logger)
	case BackendSQLite:
		return NewSQLiteStore(filepath.Join(dataDir, "projects.db"), logger)
	}
	return nil, perrors.Invalid(perrors.ErrInvalidInput, "unknown store backend %q", backend)
}

func encodeState(st *project.State) ([]byte, error) {
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode state %s: %w", st.Slug, err)
	}
	return data, nil
}

// decodeState parses and sanity-checks a stored document.
func decodeState(slug string, data []byte) (*project.State, error) {
	var st project.State
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", perrors.ErrStoreCorrupt, slug, err)
	}
	if st.SchemaVersion > project.SchemaVersion {
		return nil, fmt.Errorf("%w: %s: schema version %d is newer than supported %d",
			perrors.ErrStoreCorrupt, slug, st.SchemaVersion, project.SchemaVersion)
	}
	switch st.Phase {
	case project.PhaseDiscovery, project.PhasePlanning, project.PhaseExecution, project.PhaseCompleted:
	default:
		return nil, fmt.Errorf("%w: %s: unknown phase %q", perrors.ErrStoreCorrupt, slug, st.Phase)
	}
	if st.Slug == "" {
		st.Slug = slug
	}
	if st.SchemaVersion == 0 {
		st.SchemaVersion = project.SchemaVersion
	}
	return &st, nil
}

func checkSlug(slug string) error {
	if slug == "" || slug != project.GenerateSlug(slug) {
		return perrors.Invalid(perrors.ErrInvalidInput, "invalid project key %q", slug)
	}
	return nil
}
