package gateway

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	perrors "github.com/p-blackswan/project-assistant/internal/errors"
	"github.com/p-blackswan/project-assistant/internal/llm"
	"github.com/p-blackswan/project-assistant/internal/project"
)

// mockProvider returns canned responses in order and records requests.
type mockProvider struct {
	responses []string
	err       error
	requests  []llm.CompletionRequest
}

func (m *mockProvider) Complete(_ context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	m.requests = append(m.requests, req)
	if m.err != nil {
		return nil, m.err
	}
	if len(m.responses) == 0 {
		return nil, fmt.Errorf("mock: no response queued")
	}
	text := m.responses[0]
	m.responses = m.responses[1:]
	return &llm.CompletionResponse{Text: text, StopReason: llm.StopReasonEndTurn}, nil
}
func (m *mockProvider) ModelID() string { return "mock" }
func (m *mockProvider) MaxTokens() int  { return 1024 }

func newTestGateway(responses ...string) (*LLMGateway, *mockProvider) {
	p := &mockProvider{responses: responses}
	return NewLLMGateway(p, zerolog.Nop()), p
}

func TestNextQuestion_ParsesAndNormalizes(t *testing.T) {
	g, p := newTestGateway("```json\n" + `{
		"key": "Timeline",
		"question": "When should it be done?",
		"examples": ["2 weeks", "by summer", "no rush", "someday"],
		"understanding_score": 0.75,
		"project_type": "kitchen_renovation",
		"alternates": [
			{"key": "budget", "question": "What is the budget?"},
			{"key": "goal", "question": "What is the goal?"},
			{"key": "timeline", "question": "Duplicate of the main question"},
			{"key": "team", "question": "Who helps?"},
			{"key": "", "question": ""},
			{"key": "risks", "question": "What could go wrong?"},
			{"key": "extra", "question": "One too many"}
		]
	}` + "\n```")

	res, err := g.NextQuestion(context.Background(), QuestionRequest{
		ProjectName: "Kitchen",
		History:     []project.QA{{Key: "goal", Question: "What is the goal?", Answer: "New kitchen"}},
		Excluded:    []string{"goal"},
	})
	require.NoError(t, err)
	assert.Equal(t, "timeline", res.Question.Key)
	assert.Equal(t, "When should it be done?", res.Question.Text)
	assert.Equal(t, []string{"2 weeks", "by summer", "no rush"}, res.Question.Examples)
	assert.Equal(t, 75, res.Score)
	assert.Equal(t, "kitchen_renovation", res.ProjectType)

	var altKeys []string
	for _, a := range res.Alternates {
		altKeys = append(altKeys, a.Key)
	}
	assert.Equal(t, []string{"budget", "team", "risks"}, altKeys)

	require.Len(t, p.requests, 1)
	user := p.requests[0].Messages[0].Content
	assert.Contains(t, user, "Excluded keys (do not ask again): goal")
	assert.Contains(t, user, "A1: New kitchen")
}

func TestNextQuestion_KeyFallsBackToText(t *testing.T) {
	g, _ := newTestGateway(`{"question": "What is the budget?", "understanding_score": 40}`)
	res, err := g.NextQuestion(context.Background(), QuestionRequest{ProjectName: "X"})
	require.NoError(t, err)
	assert.Equal(t, "what-is-the-budget", res.Question.Key)
	assert.Equal(t, 40, res.Score)
}

func TestNextQuestion_Rejections(t *testing.T) {
	tests := []struct {
		name string
		resp string
	}{
		{"not json", "Sure! Here is a question: what is the goal?"},
		{"empty question", `{"key": "goal", "question": " ", "understanding_score": 10}`},
		{"excluded key", `{"key": "budget", "question": "Budget?", "understanding_score": 10}`},
		{"missing score", `{"key": "timeline", "question": "When?"}`},
		{"bad score", `{"key": "timeline", "question": "When?", "understanding_score": "high"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, _ := newTestGateway(tt.resp)
			_, err := g.NextQuestion(context.Background(), QuestionRequest{Excluded: []string{"budget"}})
			assert.ErrorIs(t, err, perrors.ErrMalformedResponse)
		})
	}
}

func TestNormalizeScore(t *testing.T) {
	tests := map[string]int{
		"0":    0,
		"0.55": 55,
		"1":    1,
		"1.0":  100,
		"5e-1": 50,
		"20":   20,
		"88":   88,
		"150":  100,
		"-5":   0,
		"42.6": 43,
	}
	for in, want := range tests {
		got, err := normalizeScore(jsonNumber(in))
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := normalizeScore("")
	assert.Error(t, err)
}

func TestSynthesizeUnderstanding(t *testing.T) {
	g, _ := newTestGateway(`{
		"project_summary": "A kitchen remodel.",
		"goals": "Modern kitchen",
		"motivation": "Old one is falling apart",
		"timeline": "3 months",
		"constraints": ["$20k", " ", "$20k"],
		"success_criteria": ["Passes inspection"],
		"resources": [],
		"project_type": "renovation"
	}`)
	syn, err := g.SynthesizeUnderstanding(context.Background(), "Kitchen", []project.QA{
		{Key: "budget", Question: "Budget?", Skipped: true},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"Modern kitchen"}, syn.Goals)
	assert.Equal(t, []string{"$20k"}, syn.Constraints)
	assert.Nil(t, syn.Resources)
	assert.Equal(t, "renovation", syn.ProjectType)
	assert.NoError(t, project.ValidateSynthesis(syn))
}

func TestSynthesizeUnderstanding_SkippedMarkerInPrompt(t *testing.T) {
	g, p := newTestGateway(`{}`)
	syn, err := g.SynthesizeUnderstanding(context.Background(), "Kitchen", []project.QA{
		{Key: "budget", Question: "Budget?", Skipped: true},
	})
	require.NoError(t, err)
	assert.Contains(t, p.requests[0].Messages[0].Content, "A1: [skipped]")
	assert.ErrorIs(t, project.ValidateSynthesis(syn), perrors.ErrIncompleteSynthesis)
}

func TestResearch(t *testing.T) {
	var items []string
	for i := range 14 {
		items = append(items, fmt.Sprintf("%q", fmt.Sprintf("insight %d", i)))
	}
	g, _ := newTestGateway(`{"insights": [` + strings.Join(items, ",") + `]}`)
	insights, err := g.Research(context.Background(), "Kitchen", project.Synthesis{})
	require.NoError(t, err)
	assert.Len(t, insights, MaxInsights)
	assert.Equal(t, "insight 0", insights[0])

	g, _ = newTestGateway(`{"insights": []}`)
	_, err = g.Research(context.Background(), "Kitchen", project.Synthesis{})
	assert.ErrorIs(t, err, perrors.ErrMalformedResponse)
}

func TestProposal(t *testing.T) {
	g, p := newTestGateway("```markdown\n# Kitchen Proposal\n\nDo the thing.\n```")
	text, err := g.Proposal(context.Background(), ProposalRequest{
		ProjectName: "Kitchen",
		Insights:    []string{"Order cabinets early"},
		Current:     "# Old",
		Feedback:    []project.Feedback{{Text: "Cheaper please", ProposalVersion: 1}},
	})
	require.NoError(t, err)
	assert.Equal(t, "# Kitchen Proposal\n\nDo the thing.", text)

	user := p.requests[0].Messages[0].Content
	assert.Contains(t, user, "Current proposal:\n\n# Old")
	assert.Contains(t, user, "(on v1) Cheaper please")
	assert.Contains(t, user, "- Order cabinets early")

	g, _ = newTestGateway("   ")
	_, err = g.Proposal(context.Background(), ProposalRequest{})
	assert.ErrorIs(t, err, perrors.ErrMalformedResponse)
}

func TestDecomposeIntoActions(t *testing.T) {
	g, _ := newTestGateway(`Here you go:
	{"actions": [
		{"ref": "a1", "description": "Measure", "priority": "HIGH", "dependencies": []},
		{"ref": "a2", "description": "Order cabinets", "priority": "urgent", "dependencies": ["a1"], "tags": "shopping"},
		{"ref": "a3", "description": "   "},
		{"ref": "a2", "description": "Install", "estimated_duration": "2 days", "due_date": "2026-05-01"}
	]}`)
	drafts, err := g.DecomposeIntoActions(context.Background(), "Kitchen", "# Proposal")
	require.NoError(t, err)
	require.Len(t, drafts, 3)

	assert.Equal(t, "a1", drafts[0].Ref)
	assert.Equal(t, project.PriorityHigh, drafts[0].Priority)
	assert.Equal(t, project.PriorityMedium, drafts[1].Priority)
	assert.Equal(t, []string{"a1"}, drafts[1].Dependencies)
	assert.Equal(t, []string{"shopping"}, drafts[1].Tags)
	assert.Equal(t, "a4", drafts[2].Ref, "duplicate ref is renamed by position")
	assert.Equal(t, "2 days", drafts[2].EstimatedDuration)
}

func TestDecomposeIntoActions_Bounds(t *testing.T) {
	var items []string
	for i := range 30 {
		items = append(items, fmt.Sprintf(`{"description": "step %d"}`, i))
	}
	g, _ := newTestGateway(`{"actions": [` + strings.Join(items, ",") + `]}`)
	drafts, err := g.DecomposeIntoActions(context.Background(), "X", "p")
	require.NoError(t, err)
	assert.Len(t, drafts, MaxActions)

	g, _ = newTestGateway(`{"actions": []}`)
	_, err = g.DecomposeIntoActions(context.Background(), "X", "p")
	assert.ErrorIs(t, err, perrors.ErrMalformedResponse)
}

func TestCheckIn(t *testing.T) {
	g, _ := newTestGateway(`{
		"progress_summary": "Good progress.",
		"completed_highlights": ["Measured"],
		"blockers_identified": [],
		"suggested_next_steps": ["Order cabinets"],
		"encouragement": "Keep going!",
		"recommended_morale_score": 12
	}`)
	report, err := g.CheckIn(context.Background(), CheckInRequest{
		ProjectName: "Kitchen",
		Actions:     []project.ActionItem{{ID: "action-1", Description: "Measure", Status: project.StatusCompleted}},
		Completion:  1,
	})
	require.NoError(t, err)
	assert.Equal(t, "Good progress.", report.Summary)
	assert.Equal(t, 10, report.MoraleScore)
	assert.Nil(t, report.Blockers)

	g, _ = newTestGateway(`{"progress_summary": ""}`)
	_, err = g.CheckIn(context.Background(), CheckInRequest{})
	assert.ErrorIs(t, err, perrors.ErrMalformedResponse)
}

func TestAdjust(t *testing.T) {
	g, p := newTestGateway(`{
		"adjustment_needed": true,
		"reasoning": "Supplier delay",
		"new_actions": [{"ref": "n1", "description": "Find a second supplier", "dependencies": ["action-1"]}],
		"changes": [
			{"id": "action-2", "priority": "HIGH", "add_dependencies": ["n1"]},
			{"id": "", "description": "ignored"}
		]
	}`)
	plan, err := g.Adjust(context.Background(), AdjustRequest{ProjectName: "Kitchen", Note: "supplier went quiet"})
	require.NoError(t, err)
	assert.True(t, plan.Needed)
	require.Len(t, plan.NewActions, 1)
	assert.Equal(t, []string{"action-1"}, plan.NewActions[0].Dependencies)
	require.Len(t, plan.Changes, 1)
	assert.Equal(t, project.PriorityHigh, plan.Changes[0].Priority)
	assert.Equal(t, []string{"n1"}, plan.Changes[0].AddDependencies)
	assert.Contains(t, p.requests[0].Messages[0].Content, "User note: supplier went quiet")

	g, _ = newTestGateway(`{"adjustment_needed": false, "reasoning": "On track", "new_actions": [{"description": "x"}]}`)
	plan, err = g.Adjust(context.Background(), AdjustRequest{})
	require.NoError(t, err)
	assert.False(t, plan.Needed)
	assert.Empty(t, plan.NewActions)
}

func TestProviderErrorPropagates(t *testing.T) {
	p := &mockProvider{err: perrors.NewAPIError("anthropic", 529, "overloaded")}
	g := NewLLMGateway(p, zerolog.Nop())
	_, err := g.Research(context.Background(), "X", project.Synthesis{})
	var apiErr *perrors.APIError
	assert.ErrorAs(t, err, &apiErr)
	assert.True(t, perrors.IsRetryable(err))
}
