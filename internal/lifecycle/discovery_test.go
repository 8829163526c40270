package lifecycle

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	perrors "github.com/p-blackswan/project-assistant/internal/errors"
	"github.com/p-blackswan/project-assistant/internal/gateway"
	"github.com/p-blackswan/project-assistant/internal/project"
)

func startDiscovery(t *testing.T, gw *fakeGateway) (*Machine, *memSaver, *project.State) {
	t.Helper()
	m, saver := newTestMachine(t, gw)
	st, err := m.Create(context.Background(), "Learn Guitar")
	require.NoError(t, err)
	res, err := m.Enter(context.Background(), st)
	require.NoError(t, err)
	require.Equal(t, KindPrompt, res.Kind)
	return m, saver, st
}

func TestCreate(t *testing.T) {
	m, saver := newTestMachine(t, &fakeGateway{})

	st, err := m.Create(context.Background(), "  Learn Guitar  ")
	require.NoError(t, err)
	assert.Equal(t, "Learn Guitar", st.Name)
	assert.Equal(t, "learn-guitar", st.Slug)
	assert.Equal(t, project.PhaseDiscovery, st.Phase)
	assert.Equal(t, 1, saver.saves)

	_, err = m.Create(context.Background(), "a/b")
	assert.ErrorIs(t, err, perrors.ErrInvalidName)
	assert.Equal(t, 1, saver.saves)
}

func TestEnter_PosesFirstQuestion(t *testing.T) {
	gw := &fakeGateway{questions: []gateway.QuestionResult{q("goals", 0)}}
	m, saver, st := startDiscovery(t, gw)

	require.NotNil(t, st.Discovery.Pending)
	assert.Equal(t, "goals", st.Discovery.Pending.Key)
	assert.Equal(t, 0, st.Discovery.UnderstandingScore)
	assert.Equal(t, 2, saver.saves)
	assert.False(t, m.NeedsEntry(st))

	// Entering again only describes the pending question.
	res, err := m.Enter(context.Background(), st)
	require.NoError(t, err)
	assert.Equal(t, KindPrompt, res.Kind)
	assert.Equal(t, "goals", res.Question.Key)
	assert.Equal(t, 1, gw.calls["next_question"])
	assert.Equal(t, 2, saver.saves)
}

func TestAnswer_RecordsAndAsksNext(t *testing.T) {
	gw := &fakeGateway{questions: []gateway.QuestionResult{q("goals", 0), q("timeline", 30)}}
	m, _, st := startDiscovery(t, gw)

	res := turn(t, m, st, "Play three songs")
	assert.Equal(t, KindPrompt, res.Kind)
	assert.True(t, res.Committed)
	assert.Equal(t, "timeline", res.Question.Key)

	require.Len(t, st.Discovery.QuestionsAsked, 1)
	qa := st.Discovery.QuestionsAsked[0]
	assert.Equal(t, "goals", qa.Key)
	assert.Equal(t, "Play three songs", qa.Answer)
	assert.Equal(t, 30, st.Discovery.UnderstandingScore)

	require.Len(t, gw.questionReqs, 2)
	assert.Equal(t, []string{"goals"}, gw.questionReqs[1].Excluded)
}

func TestAnswer_ScoreNeverDecreases(t *testing.T) {
	gw := &fakeGateway{questions: []gateway.QuestionResult{
		q("goals", 40), q("timeline", 20), q("budget", 150),
	}}
	m, _, st := startDiscovery(t, gw)
	assert.Equal(t, 40, st.Discovery.UnderstandingScore)

	turn(t, m, st, "answer one")
	assert.Equal(t, 40, st.Discovery.UnderstandingScore)

	gw.synthesis = completeSynthesis()
	turn(t, m, st, "answer two")
	assert.Equal(t, 100, st.Discovery.UnderstandingScore)
}

func TestAnswer_Empty(t *testing.T) {
	gw := &fakeGateway{questions: []gateway.QuestionResult{q("goals", 0)}}
	m, saver, st := startDiscovery(t, gw)

	res := turn(t, m, st, "   ")
	assert.Equal(t, KindRejected, res.Kind)
	assert.ErrorIs(t, res.Err, perrors.ErrInvalidInput)
	assert.Equal(t, 2, saver.saves)
}

func TestAnswer_GatewayFailureLeavesStateUnchanged(t *testing.T) {
	gw := &fakeGateway{questions: []gateway.QuestionResult{q("goals", 10)}}
	m, saver, st := startDiscovery(t, gw)
	before := st.Clone()

	gw.err = perrors.ErrTimeout
	res, err := m.Turn(context.Background(), st, "some answer")
	require.Error(t, err)
	assert.Nil(t, res)
	assert.ErrorIs(t, err, perrors.ErrGatewayFailure)
	assert.Equal(t, before, st)
	assert.Equal(t, 2, saver.saves)
}

func TestAnswer_ExcludedQuestionIsGatewayFailure(t *testing.T) {
	gw := &fakeGateway{questions: []gateway.QuestionResult{q("goals", 10), q("goals", 20)}}
	m, saver, st := startDiscovery(t, gw)
	before := st.Clone()

	_, err := m.Turn(context.Background(), st, "x")
	assert.ErrorIs(t, err, perrors.ErrGatewayFailure)
	assert.Equal(t, before, st)
	assert.Equal(t, 2, saver.saves)
}

func TestAnswer_StoreFailureAborts(t *testing.T) {
	gw := &fakeGateway{questions: []gateway.QuestionResult{q("goals", 10), q("timeline", 20)}}
	m, saver, st := startDiscovery(t, gw)
	before := st.Clone()

	saver.err = perrors.ErrUnavailable
	_, err := m.Turn(context.Background(), st, "x")
	assert.ErrorIs(t, err, perrors.ErrUnavailable)
	assert.Equal(t, before, st)
}

func TestSkip_UsesLocalQuestionsOnly(t *testing.T) {
	gw := &fakeGateway{questions: []gateway.QuestionResult{q("goals", 10, "timeline", "budget")}}
	m, _, st := startDiscovery(t, gw)

	res := turn(t, m, st, "skip")
	assert.Equal(t, KindPrompt, res.Kind)
	assert.Equal(t, "timeline", res.Question.Key)

	res = turn(t, m, st, "SKIP")
	assert.Equal(t, "budget", res.Question.Key)

	// Queue exhausted: first fallback topic not yet excluded.
	res = turn(t, m, st, "skip")
	assert.Equal(t, "motivation", res.Question.Key)

	assert.Equal(t, 1, gw.calls["next_question"])
	assert.Equal(t, []string{"goals", "timeline", "budget"}, st.Discovery.SkippedQuestionKeys)
	require.Len(t, st.Discovery.QuestionsAsked, 3)
	for _, qa := range st.Discovery.QuestionsAsked {
		assert.True(t, qa.Skipped)
	}
}

func TestSkip_KeyNeverPosedAgain(t *testing.T) {
	gw := &fakeGateway{questions: []gateway.QuestionResult{q("goals", 10, "timeline"), q("goals", 30)}}
	m, _, st := startDiscovery(t, gw)

	turn(t, m, st, "skip")
	_, err := m.Turn(context.Background(), st, "by summer")
	assert.ErrorIs(t, err, perrors.ErrGatewayFailure)
	assert.Contains(t, gw.questionReqs[1].Excluded, "goals")
	assert.Equal(t, "timeline", st.Discovery.Pending.Key)
}

func TestSkip_Exhausted(t *testing.T) {
	gw := &fakeGateway{questions: []gateway.QuestionResult{q("goals", 10)}}
	m, _, st := startDiscovery(t, gw)

	var res *Result
	for range len(fallbackQuestions) {
		res = turn(t, m, st, "skip")
	}
	assert.Equal(t, KindInfo, res.Kind)
	assert.Nil(t, st.Discovery.Pending)

	res = turn(t, m, st, "skip")
	assert.Equal(t, KindRejected, res.Kind)
}

func TestBack(t *testing.T) {
	gw := &fakeGateway{questions: []gateway.QuestionResult{q("goals", 10), q("timeline", 20)}}
	m, _, st := startDiscovery(t, gw)

	res := turn(t, m, st, "back")
	assert.Equal(t, KindRejected, res.Kind)

	turn(t, m, st, "learn songs")
	res = turn(t, m, st, "back")
	assert.Equal(t, KindPrompt, res.Kind)
	assert.Equal(t, "goals", res.Question.Key)
	assert.Empty(t, st.Discovery.QuestionsAsked)
	require.Len(t, st.Discovery.Queued, 1)
	assert.Equal(t, "timeline", st.Discovery.Queued[0].Key)
	assert.Equal(t, 20, st.Discovery.UnderstandingScore)
}

func TestBack_UnskipsKey(t *testing.T) {
	gw := &fakeGateway{questions: []gateway.QuestionResult{q("goals", 10, "timeline")}}
	m, _, st := startDiscovery(t, gw)

	turn(t, m, st, "skip")
	require.True(t, st.Discovery.IsSkipped("goals"))

	turn(t, m, st, "back")
	assert.False(t, st.Discovery.IsSkipped("goals"))
	assert.Equal(t, "goals", st.Discovery.Pending.Key)
}

func TestEnough_BelowThreshold(t *testing.T) {
	gw := &fakeGateway{questions: []gateway.QuestionResult{q("goals", 59)}, synthesis: completeSynthesis()}
	m, saver, st := startDiscovery(t, gw)

	res := turn(t, m, st, "enough")
	assert.Equal(t, KindRejected, res.Kind)
	assert.ErrorIs(t, res.Err, perrors.ErrIllegalTransition)
	assert.Contains(t, res.Message, "59%")
	assert.Equal(t, project.PhaseDiscovery, st.Phase)
	assert.Zero(t, gw.calls["synthesize"])
	assert.Equal(t, 2, saver.saves)
}

func TestEnough_AtThreshold(t *testing.T) {
	gw := &fakeGateway{questions: []gateway.QuestionResult{q("goals", 60)}, synthesis: completeSynthesis()}
	m, _, st := startDiscovery(t, gw)

	res := turn(t, m, st, "enough")
	assert.Equal(t, KindTransition, res.Kind)
	assert.Equal(t, ViewSynthesis, res.View)
	assert.Equal(t, project.PhasePlanning, st.Phase)
	assert.Equal(t, completeSynthesis(), st.Discovery.Synthesis)
	assert.Nil(t, st.Discovery.Pending)
	assert.True(t, m.NeedsEntry(st))
}

func TestEnough_IncompleteSynthesisStaysInDiscovery(t *testing.T) {
	syn := completeSynthesis()
	syn.Timeline = ""
	gw := &fakeGateway{questions: []gateway.QuestionResult{q("goals", 70)}, synthesis: syn}
	m, saver, st := startDiscovery(t, gw)

	res := turn(t, m, st, "enough")
	assert.Equal(t, KindRejected, res.Kind)
	assert.ErrorIs(t, res.Err, perrors.ErrIncompleteSynthesis)
	assert.Contains(t, res.Message, "timeline")
	assert.Equal(t, project.PhaseDiscovery, st.Phase)
	assert.Nil(t, st.Discovery.Synthesis)
	assert.Equal(t, 2, saver.saves)
}

func TestCompletionThreshold_IncompleteSynthesisCommitsAnswer(t *testing.T) {
	syn := completeSynthesis()
	syn.Goals = nil
	gw := &fakeGateway{questions: []gateway.QuestionResult{q("goals", 50), q("timeline", 90)}, synthesis: syn}
	m, _, st := startDiscovery(t, gw)

	res := turn(t, m, st, "play songs")
	assert.Equal(t, KindPrompt, res.Kind)
	assert.True(t, res.Committed)
	assert.ErrorIs(t, res.Err, perrors.ErrIncompleteSynthesis)
	assert.True(t, strings.HasPrefix(res.Message, "I need a little more"))
	assert.Equal(t, project.PhaseDiscovery, st.Phase)
	assert.Equal(t, 90, st.Discovery.UnderstandingScore)
	assert.Equal(t, "timeline", st.Discovery.Pending.Key)
	assert.Len(t, st.Discovery.QuestionsAsked, 1)
}

func TestDiscovery_HelpAndQuit(t *testing.T) {
	gw := &fakeGateway{questions: []gateway.QuestionResult{q("goals", 10)}}
	m, saver, st := startDiscovery(t, gw)

	res := turn(t, m, st, "help")
	assert.Equal(t, ViewHelp, res.View)
	assert.False(t, res.Committed)
	assert.Equal(t, 2, saver.saves)

	res = turn(t, m, st, "quit")
	assert.Equal(t, KindHalt, res.Kind)
	assert.True(t, res.Halt)
	assert.Equal(t, 3, saver.saves)
}

func TestTurn_OversizeInput(t *testing.T) {
	gw := &fakeGateway{questions: []gateway.QuestionResult{q("goals", 10)}}
	m, saver, st := startDiscovery(t, gw)

	res := turn(t, m, st, strings.Repeat("a", project.MaxInputLength+1))
	assert.Equal(t, KindRejected, res.Kind)
	assert.ErrorIs(t, res.Err, perrors.ErrInvalidInput)
	assert.Empty(t, st.Discovery.QuestionsAsked)
	assert.Equal(t, 2, saver.saves)
}
