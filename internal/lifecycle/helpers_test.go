package lifecycle

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	perrors "github.com/p-blackswan/project-assistant/internal/errors"
	"github.com/p-blackswan/project-assistant/internal/gateway"
	"github.com/p-blackswan/project-assistant/internal/project"
)

var fixedNow = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

// memSaver keeps the last committed state in memory.
type memSaver struct {
	saves int
	last  *project.State
	err   error
}

func (s *memSaver) Save(_ context.Context, st *project.State) error {
	if s.err != nil {
		return s.err
	}
	s.saves++
	s.last = st.Clone()
	return nil
}

// fakeGateway replays scripted responses and counts calls per operation.
type fakeGateway struct {
	questions []gateway.QuestionResult
	synthesis *project.Synthesis
	insights  []string
	proposals []string
	drafts    []gateway.ActionDraft
	report    *gateway.CheckInReport
	plan      *gateway.AdjustPlan
	err       error // returned by every call when set

	calls        map[string]int
	questionReqs []gateway.QuestionRequest
	proposalReqs []gateway.ProposalRequest
	adjustReqs   []gateway.AdjustRequest
}

func (g *fakeGateway) called(op string) error {
	if g.calls == nil {
		g.calls = make(map[string]int)
	}
	g.calls[op]++
	if g.err != nil {
		return fmt.Errorf("%w: %s: %w", perrors.ErrGatewayFailure, op, g.err)
	}
	return nil
}

func (g *fakeGateway) NextQuestion(_ context.Context, req gateway.QuestionRequest) (*gateway.QuestionResult, error) {
	if err := g.called("next_question"); err != nil {
		return nil, err
	}
	g.questionReqs = append(g.questionReqs, req)
	if len(g.questions) == 0 {
		return nil, fmt.Errorf("%w: no scripted question", perrors.ErrGatewayFailure)
	}
	q := g.questions[0]
	g.questions = g.questions[1:]
	return &q, nil
}

func (g *fakeGateway) SynthesizeUnderstanding(_ context.Context, _ string, _ []project.QA) (*project.Synthesis, error) {
	if err := g.called("synthesize"); err != nil {
		return nil, err
	}
	return g.synthesis, nil
}

func (g *fakeGateway) Research(_ context.Context, _ string, _ project.Synthesis) ([]string, error) {
	if err := g.called("research"); err != nil {
		return nil, err
	}
	return g.insights, nil
}

func (g *fakeGateway) Proposal(_ context.Context, req gateway.ProposalRequest) (string, error) {
	if err := g.called("proposal"); err != nil {
		return "", err
	}
	g.proposalReqs = append(g.proposalReqs, req)
	if len(g.proposals) == 0 {
		return fmt.Sprintf("# Proposal %d", len(g.proposalReqs)), nil
	}
	p := g.proposals[0]
	g.proposals = g.proposals[1:]
	return p, nil
}

func (g *fakeGateway) DecomposeIntoActions(_ context.Context, _, _ string) ([]gateway.ActionDraft, error) {
	if err := g.called("decompose"); err != nil {
		return nil, err
	}
	return g.drafts, nil
}

func (g *fakeGateway) CheckIn(_ context.Context, _ gateway.CheckInRequest) (*gateway.CheckInReport, error) {
	if err := g.called("checkin"); err != nil {
		return nil, err
	}
	return g.report, nil
}

func (g *fakeGateway) Adjust(_ context.Context, req gateway.AdjustRequest) (*gateway.AdjustPlan, error) {
	if err := g.called("adjust"); err != nil {
		return nil, err
	}
	g.adjustReqs = append(g.adjustReqs, req)
	return g.plan, nil
}

func q(key string, score int, alternates ...string) gateway.QuestionResult {
	res := gateway.QuestionResult{
		Question: project.Question{Key: key, Text: "Tell me about " + key + "?"},
		Score:    score,
	}
	for _, alt := range alternates {
		res.Alternates = append(res.Alternates, project.Question{Key: alt, Text: "What about " + alt + "?"})
	}
	return res
}

func completeSynthesis() *project.Synthesis {
	return &project.Synthesis{
		Summary:         "Learn to play guitar",
		Goals:           []string{"play three songs"},
		Motivation:      "always wanted to",
		Constraints:     []string{"30 minutes a day"},
		Timeline:        "3 months",
		SuccessCriteria: []string{"play at a family dinner"},
	}
}

func newTestMachine(t *testing.T, gw *fakeGateway, opts ...Option) (*Machine, *memSaver) {
	t.Helper()
	saver := &memSaver{}
	ids := 0
	opts = append([]Option{
		WithClock(func() time.Time { return fixedNow }),
		WithIDGenerator(func() string { ids++; return fmt.Sprintf("checkin-%d", ids) }),
	}, opts...)
	return New(saver, gw, zerolog.Nop(), opts...), saver
}

func turn(t *testing.T, m *Machine, st *project.State, input string) *Result {
	t.Helper()
	res, err := m.Turn(context.Background(), st, input)
	require.NoError(t, err)
	require.NotNil(t, res)
	return res
}

// planningState returns a project that has just entered planning.
func planningState() *project.State {
	st := project.New("Guitar", "guitar", fixedNow)
	st.Phase = project.PhasePlanning
	st.Discovery.UnderstandingScore = 90
	st.Discovery.Synthesis = completeSynthesis()
	return st
}

// executionState returns a project in execution with three actions where
// action-3 depends on action-2.
func executionState() *project.State {
	st := planningState()
	st.Phase = project.PhaseExecution
	st.Planning.ProposalVersion = 1
	st.Planning.ProposalText = "# Plan"
	st.Planning.Approved = true
	st.Execution.Actions = map[string]*project.ActionItem{
		"action-1": {ID: "action-1", Description: "Buy a guitar", Priority: project.PriorityHigh, Status: project.StatusPending, CreatedAt: fixedNow},
		"action-2": {ID: "action-2", Description: "Learn chords", Priority: project.PriorityMedium, Status: project.StatusPending, CreatedAt: fixedNow},
		"action-3": {ID: "action-3", Description: "Learn a song", Priority: project.PriorityMedium, Status: project.StatusPending, Dependencies: []string{"action-2"}, CreatedAt: fixedNow},
	}
	return st
}
