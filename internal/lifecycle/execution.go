package lifecycle

import (
	"context"
	"fmt"
	"strings"

	"github.com/p-blackswan/project-assistant/internal/command"
	perrors "github.com/p-blackswan/project-assistant/internal/errors"
	"github.com/p-blackswan/project-assistant/internal/gateway"
	"github.com/p-blackswan/project-assistant/internal/project"
)

// recentCheckIns bounds how much history an adjust request carries.
const recentCheckIns = 3

// enterExecution decomposes the approved proposal into the initial actions.
func (m *Machine) enterExecution(ctx context.Context, st *project.State) (*Result, error) {
	drafts, err := m.gw.DecomposeIntoActions(ctx, st.Name, st.Planning.ProposalText)
	if err != nil {
		return nil, err
	}

	next := st.Clone()
	tr := project.NewTracker(&next.Execution, m.now)
	ids, err := addDrafts(tr, drafts)
	if err != nil {
		return nil, fmt.Errorf("%w: decomposition rejected: %w", perrors.ErrGatewayFailure, err)
	}
	if err := m.commit(ctx, st, next); err != nil {
		return nil, err
	}
	return &Result{
		Kind:      KindInfo,
		Phase:     st.Phase,
		View:      ViewStatus,
		Message:   fmt.Sprintf("Created %d action items.", len(ids)),
		Committed: true,
	}, nil
}

// addDrafts assigns sequential ids to drafts, rewrites draft refs in their
// dependencies to those ids and inserts the batch atomically. It returns the
// ref to id mapping in draft order. A ref naming an existing action would
// shadow it, so the batch is refused.
func addDrafts(tr *project.Tracker, drafts []gateway.ActionDraft) (map[string]string, error) {
	refs := make(map[string]string, len(drafts))
	for i, d := range drafts {
		if tr.Get(d.Ref) != nil {
			return nil, perrors.Invalid(perrors.ErrDuplicateAction, "new action %q reuses an existing action id", d.Ref)
		}
		if _, dup := refs[d.Ref]; dup {
			return nil, perrors.Invalid(perrors.ErrDuplicateAction, "new action %q appears twice", d.Ref)
		}
		refs[d.Ref] = tr.NextID(i)
	}
	items := make([]project.ActionItem, 0, len(drafts))
	for _, d := range drafts {
		items = append(items, project.ActionItem{
			ID:                refs[d.Ref],
			Description:       d.Description,
			Priority:          d.Priority,
			Status:            project.StatusPending,
			EstimatedDuration: d.EstimatedDuration,
			DueDate:           d.DueDate,
			Dependencies:      resolveRefs(d.Dependencies, refs),
			Tags:              d.Tags,
		})
	}
	if err := tr.AddItems(items); err != nil {
		return nil, err
	}
	return refs, nil
}

// resolveRefs maps batch refs to assigned ids; anything else is kept as an
// existing action id and validated by the tracker.
func resolveRefs(deps []string, refs map[string]string) []string {
	if len(deps) == 0 {
		return nil
	}
	out := make([]string, 0, len(deps))
	for _, dep := range deps {
		if id, ok := refs[dep]; ok {
			dep = id
		}
		out = append(out, dep)
	}
	return out
}

func (m *Machine) executionTurn(ctx context.Context, st *project.State, text string) (*Result, error) {
	cmd := command.ParseExecution(text)
	switch cmd.Type {
	case command.CmdStatus:
		return &Result{Kind: KindInfo, Phase: st.Phase, View: ViewStatus}, nil
	case command.CmdHelp:
		return &Result{Kind: KindInfo, Phase: st.Phase, View: ViewHelp}, nil
	case command.CmdExit:
		return m.quit(ctx, st)
	case command.CmdDone:
		return m.done(ctx, st)
	case command.CmdStart:
		return m.transition(ctx, st, cmd, project.StatusInProgress)
	case command.CmdComplete:
		return m.transition(ctx, st, cmd, project.StatusCompleted)
	case command.CmdBlock:
		return m.transition(ctx, st, cmd, project.StatusBlocked)
	case command.CmdCheckIn:
		return m.checkIn(ctx, st)
	case command.CmdAdjust:
		return m.adjust(ctx, st, cmd.Text)
	}
	return m.unknownCommand(st, text, command.ExecutionCommands), nil
}

func (m *Machine) transition(ctx context.Context, st *project.State, cmd command.Command, to project.Status) (*Result, error) {
	if cmd.ID == "" {
		err := perrors.UnknownAction("", project.SortedIDs(st.Execution.Actions))
		err.Msg = fmt.Sprintf("usage: %s <id>", cmd.Name)
		if to == project.StatusBlocked {
			err.Msg = "usage: block <id> <reason>"
		}
		if len(err.ValidIDs) > 0 {
			err.Msg += ". Valid IDs: " + strings.Join(err.ValidIDs, ", ")
		}
		return m.reject(st, err, ""), nil
	}

	next := st.Clone()
	tr := project.NewTracker(&next.Execution, m.now)
	if err := tr.Transition(cmd.ID, to, cmd.Text); err != nil {
		return m.reject(st, err, ""), nil
	}
	if err := m.commit(ctx, st, next); err != nil {
		return nil, err
	}

	a := st.Execution.Actions[cmd.ID]
	var msg string
	switch to {
	case project.StatusInProgress:
		msg = fmt.Sprintf("Started %s: %s", a.ID, a.Description)
	case project.StatusCompleted:
		msg = fmt.Sprintf("Completed %s: %s", a.ID, a.Description)
		if ready := project.NewTracker(&st.Execution, m.now).Ready(); len(ready) > 0 {
			msg += fmt.Sprintf(". Ready next: %s", strings.Join(ready, ", "))
		}
	case project.StatusBlocked:
		msg = fmt.Sprintf("Blocked %s: %s", a.ID, a.BlockReason)
	}
	return &Result{Kind: KindInfo, Phase: st.Phase, Message: msg, Committed: true}, nil
}

// done completes the project regardless of outstanding actions.
func (m *Machine) done(ctx context.Context, st *project.State) (*Result, error) {
	next := st.Clone()
	if err := advance(next, project.PhaseCompleted); err != nil {
		return m.reject(st, err, ""), nil
	}
	next.Execution.ProjectCompleted = true
	if err := m.commit(ctx, st, next); err != nil {
		return nil, err
	}
	return &Result{
		Kind:      KindTransition,
		Phase:     st.Phase,
		View:      ViewStatus,
		Message:   "Project marked complete. Congratulations!",
		Committed: true,
		Halt:      true,
	}, nil
}

func (m *Machine) checkIn(ctx context.Context, st *project.State) (*Result, error) {
	tr := project.NewTracker(&st.Execution, m.now)
	completion := tr.CompletionPercentage()
	report, err := m.gw.CheckIn(ctx, gateway.CheckInRequest{
		ProjectName: st.Name,
		Actions:     st.Execution.ActionsSnapshot(),
		History:     st.Execution.CheckIns,
		Completion:  completion,
	})
	if err != nil {
		return nil, err
	}

	var completed []string
	for _, id := range tr.IDs() {
		if tr.Get(id).Status == project.StatusCompleted {
			completed = append(completed, id)
		}
	}

	next := st.Clone()
	next.Execution.CheckIns = append(next.Execution.CheckIns, project.CheckIn{
		ID:               m.newID(),
		At:               m.now(),
		Summary:          report.Summary,
		CompletedActions: completed,
		Blockers:         report.Blockers,
		NextSteps:        report.NextSteps,
		Encouragement:    report.Encouragement,
		MoraleScore:      report.MoraleScore,
		Completion:       completion,
	})
	if err := m.commit(ctx, st, next); err != nil {
		return nil, err
	}
	return &Result{Kind: KindInfo, Phase: st.Phase, View: ViewCheckIn, Committed: true}, nil
}

// adjust asks the gateway for plan changes and applies them only if the
// whole set validates.
func (m *Machine) adjust(ctx context.Context, st *project.State, note string) (*Result, error) {
	checkIns := st.Execution.CheckIns
	if len(checkIns) > recentCheckIns {
		checkIns = checkIns[len(checkIns)-recentCheckIns:]
	}
	plan, err := m.gw.Adjust(ctx, gateway.AdjustRequest{
		ProjectName:    st.Name,
		Actions:        st.Execution.ActionsSnapshot(),
		RecentCheckIns: checkIns,
		Note:           note,
	})
	if err != nil {
		return nil, err
	}
	if !plan.Needed || (len(plan.NewActions) == 0 && len(plan.Changes) == 0) {
		msg := "No adjustment needed."
		if plan.Reasoning != "" {
			msg += " " + plan.Reasoning
		}
		return &Result{Kind: KindInfo, Phase: st.Phase, Message: msg}, nil
	}

	next := st.Clone()
	tr := project.NewTracker(&next.Execution, m.now)
	refs, err := addDrafts(tr, plan.NewActions)
	if err != nil {
		return m.reject(st, fmt.Errorf("proposed adjustment rejected: %w", err), ""), nil
	}
	changes := make([]project.Change, len(plan.Changes))
	changed := make([]string, 0, len(plan.Changes))
	for i, c := range plan.Changes {
		if id, ok := refs[c.ID]; ok {
			c.ID = id
		}
		c.AddDependencies = resolveRefs(c.AddDependencies, refs)
		changes[i] = c
		changed = append(changed, c.ID)
	}
	if err := tr.ApplyChanges(changes); err != nil {
		return m.reject(st, fmt.Errorf("proposed adjustment rejected: %w", err), ""), nil
	}

	added := make([]string, 0, len(plan.NewActions))
	for _, d := range plan.NewActions {
		added = append(added, refs[d.Ref])
	}
	next.Execution.Adjustments = append(next.Execution.Adjustments, project.Adjustment{
		At:        m.now(),
		Note:      note,
		Reasoning: plan.Reasoning,
		Added:     added,
		Changed:   changed,
	})
	if err := m.commit(ctx, st, next); err != nil {
		return nil, err
	}
	return &Result{
		Kind:      KindInfo,
		Phase:     st.Phase,
		View:      ViewAdjustment,
		Message:   fmt.Sprintf("Plan adjusted: %d added, %d changed.", len(added), len(changed)),
		Committed: true,
	}, nil
}
