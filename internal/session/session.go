// Package session runs the interactive loop for one project: read a line,
// run a turn, render the result and refresh the project's documents.
package session

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	perrors "github.com/p-blackswan/project-assistant/internal/errors"
	"github.com/p-blackswan/project-assistant/internal/lifecycle"
	"github.com/p-blackswan/project-assistant/internal/project"
	"github.com/p-blackswan/project-assistant/internal/render"
	"github.com/p-blackswan/project-assistant/internal/store"
	"github.com/p-blackswan/project-assistant/internal/turnid"
)

// Loader loads a stored project.
type Loader interface {
	Load(ctx context.Context, slug string) (*project.State, error)
}

// Session ties a state machine to an input stream and a renderer.
type Session struct {
	machine   *lifecycle.Machine
	store     Loader
	artifacts *store.Artifacts
	out       *render.Renderer
	prompt    io.Writer
	in        *bufio.Scanner
	logger    zerolog.Logger
}

// New creates a session reading commands from in and writing to out.
func New(machine *lifecycle.Machine, st Loader, artifacts *store.Artifacts, in io.Reader, out io.Writer, logger zerolog.Logger) *Session {
	sc := bufio.NewScanner(in)
	sc.Buffer(make([]byte, 0, 64*1024), 4*project.MaxInputLength)
	return &Session{
		machine:   machine,
		store:     st,
		artifacts: artifacts,
		out:       render.New(out),
		prompt:    out,
		in:        sc,
		logger:    logger.With().Str("component", "session.loop").Str("session_id", uuid.NewString()).Logger(),
	}
}

// Run opens or creates the project called name and processes input until the
// user quits, input ends or a fatal error occurs. Gateway failures are
// reported and the loop continues; store errors end the session.
func (s *Session) Run(ctx context.Context, name string) error {
	if !s.artifacts.WelcomeShown() {
		s.out.Welcome()
		if err := s.artifacts.MarkWelcomeShown(nowUTC()); err != nil {
			s.logger.Warn().Err(err).Msg("failed to write welcome marker")
		}
	}

	st, err := s.open(ctx, name)
	if err != nil {
		return err
	}
	s.logger = s.logger.With().Str("slug", st.Slug).Logger()
	s.logger.Info().Str("phase", string(st.Phase)).Msg("session started")

	res, err := s.enter(ctx, st)
	if err != nil || res.Halt {
		return err
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		line, ok := s.readLine(st.Phase)
		if !ok {
			s.logger.Info().Msg("input closed")
			return nil
		}

		tctx, id := turnid.New(ctx)
		res, err := s.machine.Turn(tctx, st, line)
		if err != nil {
			s.logger.Warn().Err(err).Str("turn_id", id).Msg("turn failed")
			if errors.Is(err, perrors.ErrGatewayFailure) {
				s.out.Failure(err)
				continue
			}
			return err
		}
		s.show(st, res)
		if res.Halt {
			return nil
		}

		if s.machine.NeedsEntry(st) {
			res, err := s.enter(tctx, st)
			if err != nil || res.Halt {
				return err
			}
		}
	}
}

// open loads the project or creates it on first use.
func (s *Session) open(ctx context.Context, name string) (*project.State, error) {
	name, err := project.ValidateName(name)
	if err != nil {
		return nil, err
	}
	st, err := s.store.Load(ctx, project.GenerateSlug(name))
	switch {
	case err == nil:
		return st, nil
	case errors.Is(err, perrors.ErrNotFound):
		return s.machine.Create(ctx, name)
	}
	return nil, fmt.Errorf("open project %q: %w", name, err)
}

// enter runs pending phase-entry work. On a gateway failure the user can
// retry or quit; the state is unchanged either way.
func (s *Session) enter(ctx context.Context, st *project.State) (*lifecycle.Result, error) {
	for {
		res, err := s.machine.Enter(ctx, st)
		if err == nil {
			s.show(st, res)
			return res, nil
		}
		if !errors.Is(err, perrors.ErrGatewayFailure) {
			return nil, err
		}
		s.out.Failure(err)
		fmt.Fprintln(s.prompt, "Press Enter to try again, or type 'quit' to stop.")
		line, ok := s.readLine(st.Phase)
		if !ok || isQuit(line) {
			return &lifecycle.Result{Kind: lifecycle.KindHalt, Phase: st.Phase, Halt: true}, nil
		}
	}
}

func isQuit(line string) bool {
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "quit", "exit":
		return true
	}
	return false
}

func (s *Session) readLine(phase project.Phase) (string, bool) {
	fmt.Fprint(s.prompt, s.out.Prompt(phase))
	if !s.in.Scan() {
		if err := s.in.Err(); err != nil {
			s.logger.Warn().Err(err).Msg("read input")
		}
		return "", false
	}
	return s.in.Text(), true
}

// show renders res and refreshes the documents affected by it.
func (s *Session) show(st *project.State, res *lifecycle.Result) {
	s.out.Result(st, res)
	if !res.Committed {
		return
	}
	for name, content := range documents(st, res) {
		if err := s.artifacts.Write(st.Slug, name, content); err != nil {
			s.logger.Warn().Err(err).Str("file", name).Msg("failed to write document")
		}
	}
}

// documents returns the markdown files to rewrite after a committed result.
func documents(st *project.State, res *lifecycle.Result) map[string]string {
	docs := make(map[string]string)
	if res.View == lifecycle.ViewSynthesis && st.Discovery.Synthesis != nil {
		docs[store.DiscoveryNotesFile] = render.DiscoveryNotes(st)
	}
	if st.Phase == project.PhasePlanning && res.View == lifecycle.ViewProposal && st.Planning.ProposalVersion > 0 {
		docs[store.ProposalFile] = render.ProposalDoc(st)
	}
	if (st.Phase == project.PhaseExecution || st.Phase == project.PhaseCompleted) && len(st.Execution.Actions) > 0 {
		docs[store.ActionsFile] = render.ActionsDoc(st)
	}
	return docs
}

func nowUTC() time.Time { return time.Now().UTC() }
