// Package lifecycle drives a project through discovery, planning and
// execution. Every turn works on a clone of the state and replaces the
// caller's state only after the clone has been committed to the store.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/p-blackswan/project-assistant/internal/command"
	perrors "github.com/p-blackswan/project-assistant/internal/errors"
	"github.com/p-blackswan/project-assistant/internal/gateway"
	"github.com/p-blackswan/project-assistant/internal/project"
)

// Saver commits a project state.
type Saver interface {
	Save(ctx context.Context, st *project.State) error
}

// Recorder receives turn and transition events. *metrics.Metrics satisfies it.
type Recorder interface {
	RecordTurn(phase, outcome string)
	RecordTransition(from, to string)
	SetActionCounts(counts map[string]int)
}

// Kind classifies a turn result for the presentation layer.
type Kind int

const (
	KindPrompt     Kind = iota // a discovery question awaits an answer
	KindInfo                   // informational output, state may have changed
	KindRejected               // input was rejected, state unchanged
	KindTransition             // the phase changed
	KindHalt                   // the session should end
)

func (k Kind) String() string {
	switch k {
	case KindPrompt:
		return "prompt"
	case KindInfo:
		return "info"
	case KindRejected:
		return "rejected"
	case KindTransition:
		return "transition"
	case KindHalt:
		return "halt"
	}
	return "unknown"
}

// View names what the presentation layer should show alongside the message.
type View int

const (
	ViewNone View = iota
	ViewHelp
	ViewStatus
	ViewProposal
	ViewCheckIn
	ViewAdjustment
	ViewSynthesis
)

// Result is the render instruction produced by a turn.
type Result struct {
	Kind       Kind
	Phase      project.Phase
	Message    string
	Question   *project.Question
	View       View
	Err        error  // validation error for rejected turns
	Suggestion string // closest known command for unrecognized input
	Committed  bool
	Halt       bool
}

// Machine is the phase state machine.
type Machine struct {
	store    Saver
	gw       gateway.Gateway
	logger   zerolog.Logger
	recorder Recorder
	now      func() time.Time
	newID    func() string
}

// Option configures a Machine.
type Option func(*Machine)

// WithRecorder reports turns and transitions to r.
func WithRecorder(r Recorder) Option {
	return func(m *Machine) { m.recorder = r }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(m *Machine) { m.now = now }
}

// WithIDGenerator overrides how check-in ids are generated.
func WithIDGenerator(fn func() string) Option {
	return func(m *Machine) { m.newID = fn }
}

// New creates a Machine committing through store and consulting gw.
func New(store Saver, gw gateway.Gateway, logger zerolog.Logger, opts ...Option) *Machine {
	m := &Machine{
		store:  store,
		gw:     gw,
		logger: logger.With().Str("component", "lifecycle.machine").Logger(),
		now:    func() time.Time { return time.Now().UTC() },
		newID:  uuid.NewString,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Create validates name and commits a fresh project in discovery.
func (m *Machine) Create(ctx context.Context, name string) (*project.State, error) {
	name, err := project.ValidateName(name)
	if err != nil {
		return nil, err
	}
	st := project.New(name, project.GenerateSlug(name), m.now())
	if err := m.store.Save(ctx, st); err != nil {
		return nil, fmt.Errorf("create project %s: %w", st.Slug, err)
	}
	m.logger.Info().Str("slug", st.Slug).Msg("project created")
	return st, nil
}

// NeedsEntry reports whether the current phase's entry work has not run yet.
func (m *Machine) NeedsEntry(st *project.State) bool {
	switch st.Phase {
	case project.PhaseDiscovery:
		return st.Discovery.Pending == nil && len(st.Discovery.QuestionsAsked) == 0
	case project.PhasePlanning:
		return st.Planning.ProposalVersion == 0 || st.Planning.ProposalText == ""
	case project.PhaseExecution:
		return len(st.Execution.Actions) == 0 && !st.Execution.ProjectCompleted
	}
	return false
}

// Enter runs the current phase's entry work when it is still pending and
// describes where the project stands. Entry work is all-or-nothing: a gateway
// failure leaves st untouched and Enter can simply be called again.
func (m *Machine) Enter(ctx context.Context, st *project.State) (*Result, error) {
	if !m.NeedsEntry(st) {
		return m.resume(st), nil
	}

	var (
		res *Result
		err error
	)
	switch st.Phase {
	case project.PhaseDiscovery:
		res, err = m.enterDiscovery(ctx, st)
	case project.PhasePlanning:
		res, err = m.enterPlanning(ctx, st)
	case project.PhaseExecution:
		res, err = m.enterExecution(ctx, st)
	default:
		return nil, fmt.Errorf("enter: %w: unknown phase %q", perrors.ErrStoreCorrupt, st.Phase)
	}
	if err != nil {
		m.logger.Warn().Err(err).Str("slug", st.Slug).Str("phase", string(st.Phase)).Msg("phase entry failed")
		return nil, err
	}
	m.record(st, res)
	return res, nil
}

// Turn interprets one line of user input against the current phase.
//
// Validation failures come back as a KindRejected result with a nil error.
// A returned error means the turn was aborted without committing: gateway
// failures are recoverable by retrying, store errors are not.
func (m *Machine) Turn(ctx context.Context, st *project.State, input string) (*Result, error) {
	text, err := project.SanitizeInput(input)
	if err != nil {
		return m.finish(st, m.reject(st, err, ""), nil)
	}

	if m.NeedsEntry(st) {
		if _, err := m.Enter(ctx, st); err != nil {
			return nil, err
		}
	}

	var res *Result
	switch st.Phase {
	case project.PhaseDiscovery:
		res, err = m.discoveryTurn(ctx, st, text)
	case project.PhasePlanning:
		res, err = m.planningTurn(ctx, st, text)
	case project.PhaseExecution:
		res, err = m.executionTurn(ctx, st, text)
	case project.PhaseCompleted:
		res, err = m.completedTurn(st, text)
	default:
		err = fmt.Errorf("turn: %w: unknown phase %q", perrors.ErrStoreCorrupt, st.Phase)
	}
	return m.finish(st, res, err)
}

func (m *Machine) finish(st *project.State, res *Result, err error) (*Result, error) {
	if err != nil {
		outcome := "error"
		if errors.Is(err, perrors.ErrGatewayFailure) {
			outcome = "gateway_failure"
		}
		if m.recorder != nil {
			m.recorder.RecordTurn(string(st.Phase), outcome)
		}
		m.logger.Warn().Err(err).Str("slug", st.Slug).Str("phase", string(st.Phase)).Msg("turn aborted")
		return nil, err
	}
	m.record(st, res)
	return res, nil
}

func (m *Machine) record(st *project.State, res *Result) {
	m.logger.Debug().
		Str("slug", st.Slug).
		Str("phase", string(st.Phase)).
		Stringer("kind", res.Kind).
		Bool("committed", res.Committed).
		Msg("turn")
	if m.recorder == nil {
		return
	}
	m.recorder.RecordTurn(string(res.Phase), res.Kind.String())
	if len(st.Execution.Actions) > 0 {
		counts := make(map[string]int)
		for status, n := range project.NewTracker(&st.Execution, m.now).Counts() {
			counts[string(status)] = n
		}
		m.recorder.SetActionCounts(counts)
	}
}

// commit saves next and, on success, replaces *st with it.
func (m *Machine) commit(ctx context.Context, st, next *project.State) error {
	next.UpdatedAt = m.now()
	if err := m.store.Save(ctx, next); err != nil {
		m.logger.Error().Err(err).Str("slug", next.Slug).Msg("commit failed")
		return fmt.Errorf("commit %s: %w", next.Slug, err)
	}
	if next.Phase != st.Phase {
		m.logger.Info().
			Str("slug", next.Slug).
			Str("from", string(st.Phase)).
			Str("to", string(next.Phase)).
			Msg("phase transition")
		if m.recorder != nil {
			m.recorder.RecordTransition(string(st.Phase), string(next.Phase))
		}
	}
	*st = *next
	return nil
}

// advance moves next to its successor phase after checking the transition.
func advance(next *project.State, to project.Phase) error {
	if err := project.ValidateTransition(next.Phase, to); err != nil {
		return err
	}
	next.Phase = to
	return nil
}

func (m *Machine) reject(st *project.State, err error, suggestion string) *Result {
	return &Result{Kind: KindRejected, Phase: st.Phase, Message: userMessage(err), Err: err, Suggestion: suggestion}
}

// userMessage strips the error kind prefix from validation errors.
func userMessage(err error) string {
	var ve *perrors.ValidationError
	if errors.As(err, &ve) && ve.Msg != "" {
		return ve.Msg
	}
	return err.Error()
}

func (m *Machine) unknownCommand(st *project.State, input string, table []string) *Result {
	suggestion := command.Suggest(input, table)
	msg := fmt.Sprintf("Unknown command %q.", input)
	if suggestion != "" {
		msg += fmt.Sprintf(" Did you mean %q?", suggestion)
	}
	msg += " Type 'help' for the list of commands."
	err := perrors.Invalid(perrors.ErrUnknownCommand, "%s", msg)
	return &Result{Kind: KindRejected, Phase: st.Phase, Message: msg, Err: err, Suggestion: suggestion}
}

func (m *Machine) quit(ctx context.Context, st *project.State) (*Result, error) {
	next := st.Clone()
	if err := m.commit(ctx, st, next); err != nil {
		return nil, err
	}
	return &Result{
		Kind:      KindHalt,
		Phase:     st.Phase,
		Message:   "Progress saved. Resume anytime.",
		Committed: true,
		Halt:      true,
	}, nil
}

// resume describes the current position without changing anything.
func (m *Machine) resume(st *project.State) *Result {
	res := &Result{Kind: KindInfo, Phase: st.Phase}
	switch st.Phase {
	case project.PhaseDiscovery:
		if q := st.Discovery.Pending; q != nil {
			res.Kind = KindPrompt
			res.Question = q
		} else {
			res.Message = "No more questions queued. Share anything else about the project, or type 'enough'."
		}
	case project.PhasePlanning:
		res.View = ViewProposal
		res.Message = fmt.Sprintf("Proposal version %d is waiting for your review.", st.Planning.ProposalVersion)
	case project.PhaseExecution:
		res.View = ViewStatus
	case project.PhaseCompleted:
		res.View = ViewStatus
		res.Message = "This project is complete."
	}
	return res
}

func (m *Machine) completedTurn(st *project.State, text string) (*Result, error) {
	cmd := command.ParseExecution(text)
	switch cmd.Type {
	case command.CmdStatus:
		return &Result{Kind: KindInfo, Phase: st.Phase, View: ViewStatus}, nil
	case command.CmdHelp:
		return &Result{Kind: KindInfo, Phase: st.Phase, View: ViewHelp}, nil
	case command.CmdExit:
		return &Result{Kind: KindHalt, Phase: st.Phase, Halt: true}, nil
	}
	err := perrors.Invalid(perrors.ErrIllegalTransition, "this project is complete; only 'status', 'help' and 'exit' are available")
	return m.reject(st, err, ""), nil
}
