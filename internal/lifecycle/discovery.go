package lifecycle

import (
	"context"
	"fmt"
	"slices"

	"github.com/p-blackswan/project-assistant/internal/command"
	perrors "github.com/p-blackswan/project-assistant/internal/errors"
	"github.com/p-blackswan/project-assistant/internal/gateway"
	"github.com/p-blackswan/project-assistant/internal/project"
)

// fallbackQuestions are posed by skip once the queued alternates run out.
var fallbackQuestions = []project.Question{
	{Key: "goals", Text: "What would a successful outcome look like for this project?",
		Examples: []string{"a finished product", "a new skill", "a problem solved"}},
	{Key: "motivation", Text: "Why does this project matter to you right now?"},
	{Key: "timeline", Text: "What is your timeline for this project?",
		Examples: []string{"2 weeks", "by end of year", "flexible/no rush"}},
	{Key: "resources", Text: "What resources do you have available?",
		Examples: []string{"a budget", "tools or equipment", "people who can help"}},
	{Key: "constraints", Text: "What limits do you need to work within?"},
	{Key: "success-criteria", Text: "How will you know the project is done?"},
	{Key: "obstacles", Text: "What could get in the way?"},
	{Key: "past-experience", Text: "Have you tried something like this before?"},
}

func (m *Machine) enterDiscovery(ctx context.Context, st *project.State) (*Result, error) {
	next := st.Clone()
	if _, err := m.askNext(ctx, next); err != nil {
		return nil, err
	}
	if err := m.commit(ctx, st, next); err != nil {
		return nil, err
	}
	return &Result{Kind: KindPrompt, Phase: st.Phase, Question: st.Discovery.Pending, Committed: true}, nil
}

func (m *Machine) discoveryTurn(ctx context.Context, st *project.State, text string) (*Result, error) {
	cmd := command.ParseDiscovery(text)
	switch cmd.Type {
	case command.CmdHelp:
		return &Result{Kind: KindInfo, Phase: st.Phase, View: ViewHelp, Question: st.Discovery.Pending}, nil
	case command.CmdQuit:
		return m.quit(ctx, st)
	case command.CmdEnough:
		return m.enough(ctx, st)
	case command.CmdSkip:
		return m.skip(ctx, st)
	case command.CmdBack:
		return m.back(ctx, st)
	}
	return m.answer(ctx, st, cmd.Text)
}

func (m *Machine) answer(ctx context.Context, st *project.State, text string) (*Result, error) {
	if text == "" {
		err := perrors.Invalid(perrors.ErrInvalidInput, "please provide an answer, or type 'skip' to skip this question")
		return m.reject(st, err, ""), nil
	}

	next := st.Clone()
	d := &next.Discovery
	q := d.Pending
	if q == nil {
		q = &project.Question{
			Key:  fmt.Sprintf("notes-%d", len(d.QuestionsAsked)+1),
			Text: "Anything else about the project?",
		}
	}
	d.QuestionsAsked = append(d.QuestionsAsked, project.QA{
		Key:      q.Key,
		Question: q.Text,
		Answer:   text,
		At:       m.now(),
	})

	if _, err := m.askNext(ctx, next); err != nil {
		return nil, err
	}

	if d.UnderstandingScore >= project.CompletionScore {
		return m.finishDiscovery(ctx, st, next, false)
	}
	if err := m.commit(ctx, st, next); err != nil {
		return nil, err
	}
	return &Result{Kind: KindPrompt, Phase: st.Phase, Question: st.Discovery.Pending, Committed: true}, nil
}

// askNext asks the gateway for the next question and applies it to next.
// The score only ever moves up.
func (m *Machine) askNext(ctx context.Context, next *project.State) (*gateway.QuestionResult, error) {
	d := &next.Discovery
	excluded := d.ExcludedKeys()
	res, err := m.gw.NextQuestion(ctx, gateway.QuestionRequest{
		ProjectName: next.Name,
		History:     d.QuestionsAsked,
		Excluded:    excluded,
	})
	if err != nil {
		return nil, err
	}
	if slices.Contains(excluded, res.Question.Key) {
		return nil, fmt.Errorf("%w: next question %q was already asked or skipped", perrors.ErrGatewayFailure, res.Question.Key)
	}

	d.UnderstandingScore = max(d.UnderstandingScore, min(max(res.Score, 0), 100))
	if res.ProjectType != "" {
		d.ProjectType = res.ProjectType
	}
	q := res.Question
	d.Pending = &q
	d.Queued = d.Queued[:0:0]
	for _, alt := range res.Alternates {
		if alt.Key != q.Key && !slices.Contains(excluded, alt.Key) {
			d.Queued = append(d.Queued, alt)
		}
	}
	return res, nil
}

func (m *Machine) enough(ctx context.Context, st *project.State) (*Result, error) {
	score := st.Discovery.UnderstandingScore
	if score < project.EarlyExitScore {
		err := perrors.Invalid(perrors.ErrIllegalTransition,
			"need at least %d%% understanding to end early (currently %d%%)", project.EarlyExitScore, score)
		return m.reject(st, err, ""), nil
	}
	return m.finishDiscovery(ctx, st, st.Clone(), true)
}

// finishDiscovery requests the synthesis and, when it is complete, moves next
// into planning. An incomplete synthesis keeps the project in discovery: on
// the early-exit path nothing is committed; on the normal path the answer
// that reached the threshold is still committed.
func (m *Machine) finishDiscovery(ctx context.Context, st, next *project.State, early bool) (*Result, error) {
	syn, err := m.gw.SynthesizeUnderstanding(ctx, next.Name, next.Discovery.QuestionsAsked)
	if err != nil {
		return nil, err
	}
	if verr := project.ValidateSynthesis(syn); verr != nil {
		m.logger.Info().Err(verr).Str("slug", st.Slug).Msg("synthesis incomplete, discovery continues")
		if early {
			return m.reject(st, verr, ""), nil
		}
		if err := m.commit(ctx, st, next); err != nil {
			return nil, err
		}
		return &Result{
			Kind:      KindPrompt,
			Phase:     st.Phase,
			Question:  st.Discovery.Pending,
			Message:   "I need a little more before planning. " + capitalize(userMessage(verr)) + ".",
			Err:       verr,
			Committed: true,
		}, nil
	}

	if err := advance(next, project.PhasePlanning); err != nil {
		return m.reject(st, err, ""), nil
	}
	next.Discovery.Synthesis = syn
	next.Discovery.Pending = nil
	next.Discovery.Queued = nil
	if syn.ProjectType != "" && next.Discovery.ProjectType == "" {
		next.Discovery.ProjectType = syn.ProjectType
	}
	if err := m.commit(ctx, st, next); err != nil {
		return nil, err
	}
	return &Result{
		Kind:      KindTransition,
		Phase:     st.Phase,
		View:      ViewSynthesis,
		Message:   fmt.Sprintf("Discovery complete. Understanding: %d%%", st.Discovery.UnderstandingScore),
		Committed: true,
	}, nil
}

// skip marks the pending question skipped and poses the next local question.
// It never consults the gateway.
func (m *Machine) skip(ctx context.Context, st *project.State) (*Result, error) {
	q := st.Discovery.Pending
	if q == nil {
		err := perrors.Invalid(perrors.ErrInvalidInput, "there is no question to skip")
		return m.reject(st, err, ""), nil
	}

	next := st.Clone()
	d := &next.Discovery
	d.QuestionsAsked = append(d.QuestionsAsked, project.QA{
		Key:      q.Key,
		Question: q.Text,
		Skipped:  true,
		At:       m.now(),
	})
	if !d.IsSkipped(q.Key) {
		d.SkippedQuestionKeys = append(d.SkippedQuestionKeys, q.Key)
	}
	d.Pending = nil
	popLocalQuestion(d)

	if err := m.commit(ctx, st, next); err != nil {
		return nil, err
	}
	res := &Result{Kind: KindPrompt, Phase: st.Phase, Question: st.Discovery.Pending, Committed: true, Message: "Skipped."}
	if res.Question == nil {
		res.Kind = KindInfo
		res.Message = "Skipped. No more questions queued. Share anything else about the project, or type 'enough'."
	}
	return res, nil
}

// popLocalQuestion sets d.Pending to the first queued alternate, or fallback
// topic, whose key is not excluded.
func popLocalQuestion(d *project.DiscoveryData) {
	excluded := d.ExcludedKeys()
	for len(d.Queued) > 0 {
		q := d.Queued[0]
		d.Queued = d.Queued[1:]
		if !slices.Contains(excluded, q.Key) {
			d.Pending = &q
			return
		}
	}
	d.Queued = nil
	for _, q := range fallbackQuestions {
		if !slices.Contains(excluded, q.Key) {
			q.Examples = slices.Clone(q.Examples)
			d.Pending = &q
			return
		}
	}
}

// back removes the most recent answer and poses its question again.
func (m *Machine) back(ctx context.Context, st *project.State) (*Result, error) {
	n := len(st.Discovery.QuestionsAsked)
	if n == 0 {
		err := perrors.Invalid(perrors.ErrInvalidInput, "no previous questions to go back to")
		return m.reject(st, err, ""), nil
	}

	next := st.Clone()
	d := &next.Discovery
	last := d.QuestionsAsked[n-1]
	d.QuestionsAsked = d.QuestionsAsked[:n-1]
	d.SkippedQuestionKeys = slices.DeleteFunc(d.SkippedQuestionKeys, func(k string) bool { return k == last.Key })
	if d.Pending != nil && d.Pending.Key != last.Key {
		d.Queued = slices.Insert(d.Queued, 0, *d.Pending)
	}
	d.Pending = &project.Question{Key: last.Key, Text: last.Question}

	if err := m.commit(ctx, st, next); err != nil {
		return nil, err
	}
	return &Result{
		Kind:      KindPrompt,
		Phase:     st.Phase,
		Question:  st.Discovery.Pending,
		Message:   "Going back to the previous question.",
		Committed: true,
	}, nil
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	b := []byte(s)
	if b[0] >= 'a' && b[0] <= 'z' {
		b[0] -= 'a' - 'A'
	}
	return string(b)
}
