package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/rs/zerolog"

	perrors "github.com/p-blackswan/project-assistant/internal/errors"
	"github.com/p-blackswan/project-assistant/internal/project"
)

const stateFileName = "state.json"

// FileStore keeps each project in <dir>/<slug>/state.json.
type FileStore struct {
	dir    string
	logger zerolog.Logger
	mu     sync.Mutex
}

// NewFileStore creates dir if needed and returns a store rooted there.
func NewFileStore(dir string, logger zerolog.Logger) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return &FileStore{
		dir:    dir,
		logger: logger.With().Str("component", "store.file").Logger(),
	}, nil
}

// Dir returns the root directory.
func (s *FileStore) Dir() string { return s.dir }

func (s *FileStore) statePath(slug string) string {
	return filepath.Join(s.dir, slug, stateFileName)
}

// Load reads the state for slug.
func (s *FileStore) Load(ctx context.Context, slug string) (*project.State, error) {
	if err := checkSlug(slug); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.statePath(slug))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: project %s", perrors.ErrNotFound, slug)
	}
	if err != nil {
		return nil, fmt.Errorf("read state %s: %w", slug, err)
	}
	return decodeState(slug, data)
}

// Save writes st atomically: a temp file in the same directory is synced and
// renamed over the previous state.
func (s *FileStore) Save(ctx context.Context, st *project.State) error {
	if err := checkSlug(st.Slug); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := encodeState(st)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Join(s.dir, st.Slug)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create project dir: %w", err)
	}
	if err := writeFileAtomically(s.statePath(st.Slug), data); err != nil {
		return fmt.Errorf("save state %s: %w", st.Slug, err)
	}
	s.logger.Debug().Str("slug", st.Slug).Str("phase", string(st.Phase)).Msg("state saved")
	return nil
}

// List scans the data directory for project states. Unreadable entries are
// logged and skipped.
func (s *FileStore) List(ctx context.Context) ([]Summary, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("list data dir: %w", err)
	}
	var out []Summary
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		st, err := s.Load(ctx, e.Name())
		if err != nil {
			if !errors.Is(err, perrors.ErrNotFound) {
				s.logger.Warn().Err(err).Str("slug", e.Name()).Msg("skipping unreadable project")
			}
			continue
		}
		out = append(out, Summary{Slug: st.Slug, Name: st.Name, Phase: st.Phase, UpdatedAt: st.UpdatedAt})
	}
	sortSummaries(out)
	return out, nil
}

// Close is a no-op for the file backend.
func (s *FileStore) Close() error { return nil }

func writeFileAtomically(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	cleanup := func() { os.Remove(tmpPath) }

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		cleanup()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		cleanup()
		return err
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		cleanup()
		return err
	}
	return nil
}

func sortSummaries(out []Summary) {
	slices.SortFunc(out, func(a, b Summary) int {
		if c := b.UpdatedAt.Compare(a.UpdatedAt); c != 0 {
			return c
		}
		if a.Slug < b.Slug {
			return -1
		}
		if a.Slug > b.Slug {
			return 1
		}
		return 0
	})
}
