package store

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

// Human-readable documents written next to each project's state.
const (
	DiscoveryNotesFile = "discovery_notes.md"
	ProposalFile       = "proposal.md"
	ActionsFile        = "actions.md"

	welcomeMarker = ".welcome_shown"
)

// Artifacts writes markdown documents under <dir>/<slug>/.
type Artifacts struct {
	dir string
}

// NewArtifacts returns a writer rooted at dir.
func NewArtifacts(dir string) *Artifacts {
	return &Artifacts{dir: dir}
}

// Path returns where name is written for slug.
func (a *Artifacts) Path(slug, name string) string {
	return filepath.Join(a.dir, slug, name)
}

// Write replaces document name of slug.
func (a *Artifacts) Write(slug, name, content string) error {
	if err := checkSlug(slug); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Join(a.dir, slug), 0o755); err != nil {
		return fmt.Errorf("create project dir: %w", err)
	}
	if err := writeFileAtomically(a.Path(slug, name), []byte(content)); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}

// WelcomeShown reports whether the first-run introduction was displayed.
func (a *Artifacts) WelcomeShown() bool {
	_, err := os.Stat(filepath.Join(a.dir, welcomeMarker))
	return err == nil
}

// MarkWelcomeShown records that the introduction was displayed.
func (a *Artifacts) MarkWelcomeShown(now time.Time) error {
	if err := os.MkdirAll(a.dir, 0o755); err != nil {
		return err
	}
	path := filepath.Join(a.dir, welcomeMarker)
	if _, err := os.Stat(path); err == nil || !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return os.WriteFile(path, []byte(now.UTC().Format(time.RFC3339)+"\n"), 0o644)
}
