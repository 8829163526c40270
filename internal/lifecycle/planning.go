package lifecycle

import (
	"context"
	"fmt"

	"github.com/p-blackswan/project-assistant/internal/command"
	perrors "github.com/p-blackswan/project-assistant/internal/errors"
	"github.com/p-blackswan/project-assistant/internal/gateway"
	"github.com/p-blackswan/project-assistant/internal/project"
)

// enterPlanning researches the synthesis and drafts proposal version 1.
func (m *Machine) enterPlanning(ctx context.Context, st *project.State) (*Result, error) {
	syn := st.Discovery.Synthesis
	if syn == nil {
		return nil, fmt.Errorf("enter planning: %w: no synthesis recorded", perrors.ErrStoreCorrupt)
	}

	next := st.Clone()
	p := &next.Planning
	if len(p.ResearchInsights) == 0 {
		insights, err := m.gw.Research(ctx, next.Name, *syn)
		if err != nil {
			return nil, err
		}
		p.ResearchInsights = insights
	}

	text, err := m.gw.Proposal(ctx, gateway.ProposalRequest{
		ProjectName: next.Name,
		Synthesis:   *syn,
		Insights:    p.ResearchInsights,
	})
	if err != nil {
		return nil, err
	}
	m.setProposal(p, text)

	if err := m.commit(ctx, st, next); err != nil {
		return nil, err
	}
	return &Result{
		Kind:      KindInfo,
		Phase:     st.Phase,
		View:      ViewProposal,
		Message:   "Proposal version 1 is ready for your review.",
		Committed: true,
	}, nil
}

func (m *Machine) setProposal(p *project.PlanningData, text string) {
	p.ProposalVersion++
	p.ProposalText = text
	p.Revisions = append(p.Revisions, project.Revision{Version: p.ProposalVersion, Text: text, At: m.now()})
}

func (m *Machine) planningTurn(ctx context.Context, st *project.State, text string) (*Result, error) {
	cmd := command.ParsePlanning(text)
	switch cmd.Type {
	case command.CmdHelp:
		return &Result{Kind: KindInfo, Phase: st.Phase, View: ViewHelp}, nil
	case command.CmdRead:
		return &Result{Kind: KindInfo, Phase: st.Phase, View: ViewProposal}, nil
	case command.CmdQuit:
		return m.quit(ctx, st)
	case command.CmdApprove:
		return m.approve(ctx, st)
	case command.CmdFeedback:
		return m.feedback(ctx, st, cmd.Text)
	}
	return m.unknownCommand(st, text, command.PlanningCommands), nil
}

func (m *Machine) approve(ctx context.Context, st *project.State) (*Result, error) {
	next := st.Clone()
	if err := advance(next, project.PhaseExecution); err != nil {
		return m.reject(st, err, ""), nil
	}
	next.Planning.Approved = true
	if err := m.commit(ctx, st, next); err != nil {
		return nil, err
	}
	return &Result{
		Kind:      KindTransition,
		Phase:     st.Phase,
		Message:   fmt.Sprintf("Proposal version %d approved.", st.Planning.ProposalVersion),
		Committed: true,
	}, nil
}

// feedback records the feedback and refines the proposal against the full
// feedback history.
func (m *Machine) feedback(ctx context.Context, st *project.State, text string) (*Result, error) {
	if text == "" {
		err := perrors.Invalid(perrors.ErrInvalidInput, "tell me what to change: feedback <your feedback>")
		return m.reject(st, err, ""), nil
	}

	next := st.Clone()
	p := &next.Planning
	p.FeedbackHistory = append(p.FeedbackHistory, project.Feedback{
		Text:            text,
		ProposalVersion: p.ProposalVersion,
		At:              m.now(),
	})

	var syn project.Synthesis
	if next.Discovery.Synthesis != nil {
		syn = *next.Discovery.Synthesis
	}
	refined, err := m.gw.Proposal(ctx, gateway.ProposalRequest{
		ProjectName: next.Name,
		Synthesis:   syn,
		Insights:    p.ResearchInsights,
		Feedback:    p.FeedbackHistory,
		Current:     p.ProposalText,
	})
	if err != nil {
		return nil, err
	}
	m.setProposal(p, refined)

	if err := m.commit(ctx, st, next); err != nil {
		return nil, err
	}
	return &Result{
		Kind:      KindInfo,
		Phase:     st.Phase,
		View:      ViewProposal,
		Message:   fmt.Sprintf("Proposal updated to version %d.", st.Planning.ProposalVersion),
		Committed: true,
	}, nil
}
