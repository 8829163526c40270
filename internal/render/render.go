// Package render turns lifecycle results into terminal output and builds the
// markdown documents written next to each project.
package render

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	perrors "github.com/p-blackswan/project-assistant/internal/errors"
	"github.com/p-blackswan/project-assistant/internal/lifecycle"
	"github.com/p-blackswan/project-assistant/internal/project"
	"github.com/p-blackswan/project-assistant/internal/store"
)

// ProposalPreviewLines bounds how much of a proposal is shown inline.
const ProposalPreviewLines = 25

const barWidth = 20

var statusSymbols = map[project.Status]string{
	project.StatusPending:    "○",
	project.StatusInProgress: "◐",
	project.StatusCompleted:  "●",
	project.StatusBlocked:    "✗",
}

type styles struct {
	header  lipgloss.Style
	section lipgloss.Style
	label   lipgloss.Style
	dim     lipgloss.Style
	ok      lipgloss.Style
	warn    lipgloss.Style
	err     lipgloss.Style
	box     lipgloss.Style
	key     lipgloss.Style
}

func newStyles(r *lipgloss.Renderer) styles {
	return styles{
		header: r.NewStyle().
			Foreground(lipgloss.Color("0")).
			Background(lipgloss.Color("51")).
			Bold(true).
			Padding(0, 1),
		section: r.NewStyle().
			Foreground(lipgloss.Color("51")).
			Bold(true),
		label: r.NewStyle().Foreground(lipgloss.Color("45")),
		dim:   r.NewStyle().Foreground(lipgloss.Color("245")),
		ok: r.NewStyle().
			Foreground(lipgloss.Color("46")).
			Bold(true),
		warn: r.NewStyle().
			Foreground(lipgloss.Color("226")).
			Bold(true),
		err: r.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true),
		box: r.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("238")).
			Padding(0, 1),
		key: r.NewStyle().
			Foreground(lipgloss.Color("51")).
			Bold(true),
	}
}

// Renderer writes styled output to a terminal or any other writer. Color is
// only emitted when w is a terminal.
type Renderer struct {
	w io.Writer
	s styles
}

// New returns a Renderer writing to w.
func New(w io.Writer) *Renderer {
	return &Renderer{w: w, s: newStyles(lipgloss.NewRenderer(w))}
}

func (r *Renderer) println(a ...any) {
	fmt.Fprintln(r.w, a...)
}

// Welcome prints the first-run introduction.
func (r *Renderer) Welcome() {
	r.println(r.s.header.Render("Project Assistant"))
	r.println()
	r.println("I help you turn an idea into a plan you can follow through on, in three phases:")
	r.println("  " + r.s.key.Render("1. Discovery") + "  I ask questions until I understand what you want to achieve.")
	r.println("  " + r.s.key.Render("2. Planning") + "   I research and write a proposal you can refine with feedback.")
	r.println("  " + r.s.key.Render("3. Execution") + "  We break the plan into actions and track them together.")
	r.println()
	r.println(r.s.dim.Render("Your progress is saved after every step. Type 'help' at any time."))
	r.println()
}

// Prompt returns the input prompt for phase.
func (r *Renderer) Prompt(phase project.Phase) string {
	return r.s.label.Render(string(phase)+" >") + " "
}

// Failure reports an aborted turn. State is unchanged.
func (r *Renderer) Failure(err error) {
	msg := "Something went wrong: " + err.Error()
	if errors.Is(err, perrors.ErrGatewayFailure) {
		msg = "The assistant could not complete that step. Your progress is saved; try again in a moment."
	}
	r.println(r.s.err.Render("✗ " + msg))
}

// Result renders the outcome of a turn against the committed state.
func (r *Renderer) Result(st *project.State, res *lifecycle.Result) {
	if res == nil {
		return
	}
	switch res.Kind {
	case lifecycle.KindRejected:
		r.println(r.s.warn.Render("! " + res.Message))
	case lifecycle.KindTransition:
		if res.Message != "" {
			r.println(r.s.ok.Render("✓ " + res.Message))
		}
		r.println(r.s.header.Render("Phase: " + capitalize(string(st.Phase))))
	default:
		if res.Message != "" {
			r.println(res.Message)
		}
	}

	switch res.View {
	case lifecycle.ViewHelp:
		r.Help(res.Phase)
	case lifecycle.ViewStatus:
		r.Status(st)
	case lifecycle.ViewProposal:
		r.Proposal(st)
	case lifecycle.ViewCheckIn:
		r.CheckIn(st)
	case lifecycle.ViewAdjustment:
		r.Adjustment(st)
	case lifecycle.ViewSynthesis:
		r.Synthesis(st)
	}

	if res.Question != nil && res.Kind != lifecycle.KindRejected {
		r.Question(st, res.Question)
	}
}

// Question renders a discovery question with the current understanding.
func (r *Renderer) Question(st *project.State, q *project.Question) {
	score := st.Discovery.UnderstandingScore
	r.println()
	r.println(r.s.dim.Render(fmt.Sprintf("Understanding %s %d%%", ProgressBar(float64(score)/100, barWidth), score)))
	r.println(r.s.section.Render(q.Text))
	if len(q.Examples) > 0 {
		r.println(r.s.dim.Render("  e.g. " + strings.Join(q.Examples, ", ")))
	}
}

type helpEntry struct{ cmd, desc string }

var helpTables = map[project.Phase][]helpEntry{
	project.PhaseDiscovery: {
		{"<answer>", "answer the current question"},
		{"skip", "skip this question"},
		{"back", "return to the previous question"},
		{"enough", "end discovery early (needs 60% understanding)"},
		{"quit", "save and exit"},
		{"help", "show this help"},
	},
	project.PhasePlanning: {
		{"approve", "accept the proposal and start execution"},
		{"feedback <text>", "ask for changes to the proposal"},
		{"read", "show the current proposal"},
		{"quit", "save and exit"},
		{"help", "show this help"},
	},
	project.PhaseExecution: {
		{"status", "show progress and all actions"},
		{"checkin", "progress check-in"},
		{"start <id>", "mark an action in progress"},
		{"complete <id>", "mark an action completed"},
		{"block <id> <reason>", "mark an action blocked"},
		{"adjust [note]", "ask for plan adjustments"},
		{"done", "mark the whole project complete"},
		{"exit", "save and exit"},
		{"help", "show this help"},
	},
	project.PhaseCompleted: {
		{"status", "show the final status"},
		{"exit", "leave"},
		{"help", "show this help"},
	},
}

// Help prints the commands available in phase.
func (r *Renderer) Help(phase project.Phase) {
	entries := helpTables[phase]
	width := 0
	for _, e := range entries {
		width = max(width, len(e.cmd))
	}
	r.println(r.s.section.Render("Commands (" + string(phase) + ")"))
	for _, e := range entries {
		r.println("  " + r.s.key.Render(fmt.Sprintf("%-*s", width, e.cmd)) + "  " + e.desc)
	}
}

// Status prints progress and every action item.
func (r *Renderer) Status(st *project.State) {
	tr := project.NewTracker(&st.Execution, nil)
	done := tr.CompletionPercentage()
	counts := tr.Counts()

	r.println(r.s.section.Render(st.Name) + r.s.dim.Render(" · "+string(st.Phase)))
	r.println(fmt.Sprintf("Progress %s %d%%", ProgressBar(done, barWidth), int(done*100+0.5)))
	r.println(r.s.dim.Render(fmt.Sprintf("%d pending · %d in progress · %d completed · %d blocked",
		counts[project.StatusPending], counts[project.StatusInProgress],
		counts[project.StatusCompleted], counts[project.StatusBlocked])))

	if tr.Len() == 0 {
		r.println(r.s.dim.Render("No actions yet."))
		return
	}
	r.println()
	for _, id := range tr.IDs() {
		r.println(r.actionLine(tr.Get(id)))
		for _, d := range actionDetails(tr.Get(id)) {
			r.println("    " + r.s.dim.Render(d))
		}
	}
	if ready := tr.Ready(); len(ready) > 0 {
		r.println()
		r.println(r.s.ok.Render("Ready: ") + strings.Join(ready, ", "))
	}
}

func (r *Renderer) actionLine(a *project.ActionItem) string {
	sym := statusSymbols[a.Status]
	switch a.Status {
	case project.StatusCompleted:
		sym = r.s.ok.Render(sym)
	case project.StatusBlocked:
		sym = r.s.err.Render(sym)
	case project.StatusInProgress:
		sym = r.s.warn.Render(sym)
	}
	return fmt.Sprintf("%s %s %s %s", sym, r.s.label.Render(a.ID), r.s.dim.Render("["+string(a.Priority)+"]"), a.Description)
}

func actionDetails(a *project.ActionItem) []string {
	var out []string
	var meta []string
	if a.EstimatedDuration != "" {
		meta = append(meta, "est "+a.EstimatedDuration)
	}
	if a.DueDate != "" {
		meta = append(meta, "due "+a.DueDate)
	}
	if len(a.Tags) > 0 {
		meta = append(meta, "#"+strings.Join(a.Tags, " #"))
	}
	if len(meta) > 0 {
		out = append(out, strings.Join(meta, " · "))
	}
	if len(a.Dependencies) > 0 {
		out = append(out, "depends on "+strings.Join(a.Dependencies, ", "))
	}
	if a.Status == project.StatusBlocked && a.BlockReason != "" {
		out = append(out, "blocked: "+a.BlockReason)
	}
	return out
}

// Proposal prints the first lines of the current proposal.
func (r *Renderer) Proposal(st *project.State) {
	p := st.Planning
	if p.ProposalVersion == 0 {
		r.println(r.s.dim.Render("No proposal yet."))
		return
	}
	r.println(r.s.section.Render(fmt.Sprintf("Proposal v%d", p.ProposalVersion)))
	preview, more := Preview(p.ProposalText, ProposalPreviewLines)
	r.println(r.s.box.Render(preview))
	if more > 0 {
		r.println(r.s.dim.Render(fmt.Sprintf("... %d more lines in %s", more, store.ProposalFile)))
	}
	r.println(r.s.dim.Render("Type 'approve' to continue, or 'feedback <text>' to request changes."))
}

// Preview returns the first n lines of text and how many lines were cut.
func Preview(text string, n int) (string, int) {
	lines := strings.Split(strings.TrimRight(text, "\n"), "\n")
	if len(lines) <= n {
		return strings.Join(lines, "\n"), 0
	}
	return strings.Join(lines[:n], "\n"), len(lines) - n
}

// CheckIn prints the most recent check-in.
func (r *Renderer) CheckIn(st *project.State) {
	cis := st.Execution.CheckIns
	if len(cis) == 0 {
		return
	}
	ci := cis[len(cis)-1]
	r.println(r.s.section.Render("Check-in"))
	r.println(fmt.Sprintf("Progress %s %d%%", ProgressBar(ci.Completion, barWidth), int(ci.Completion*100+0.5)))
	if ci.Summary != "" {
		r.println(ci.Summary)
	}
	r.list("Blockers", ci.Blockers)
	r.list("Next steps", ci.NextSteps)
	if ci.MoraleScore > 0 {
		r.println(r.s.dim.Render(fmt.Sprintf("Morale %d/10", ci.MoraleScore)))
	}
	if ci.Encouragement != "" {
		r.println(r.s.ok.Render(ci.Encouragement))
	}
}

// Adjustment prints the most recent plan adjustment.
func (r *Renderer) Adjustment(st *project.State) {
	adj := st.Execution.Adjustments
	if len(adj) == 0 {
		return
	}
	a := adj[len(adj)-1]
	r.println(r.s.section.Render("Plan adjustment"))
	if a.Reasoning != "" {
		r.println(a.Reasoning)
	}
	r.list("Added", describe(st, a.Added))
	r.list("Changed", describe(st, a.Changed))
}

func describe(st *project.State, ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if a := st.Execution.Actions[id]; a != nil {
			out = append(out, id+": "+a.Description)
			continue
		}
		out = append(out, id)
	}
	return out
}

// Synthesis prints what discovery learned.
func (r *Renderer) Synthesis(st *project.State) {
	syn := st.Discovery.Synthesis
	if syn == nil {
		return
	}
	r.println(r.s.section.Render("What I understood"))
	if syn.Summary != "" {
		r.println(syn.Summary)
	}
	r.list("Goals", syn.Goals)
	if syn.Motivation != "" {
		r.println(r.s.label.Render("Motivation: ") + syn.Motivation)
	}
	if syn.Timeline != "" {
		r.println(r.s.label.Render("Timeline: ") + syn.Timeline)
	}
	r.list("Constraints", syn.Constraints)
	r.list("Success criteria", syn.SuccessCriteria)
}

func (r *Renderer) list(title string, items []string) {
	if len(items) == 0 {
		return
	}
	r.println(r.s.label.Render(title + ":"))
	for _, it := range items {
		r.println("  • " + it)
	}
}

// Projects prints a project listing.
func (r *Renderer) Projects(rows []store.Summary) {
	if len(rows) == 0 {
		r.println(r.s.dim.Render("No projects yet. Start one with: project-assistant run -p \"My Project\""))
		return
	}
	width := 0
	for _, row := range rows {
		width = max(width, len(row.Name))
	}
	for _, row := range rows {
		r.println(fmt.Sprintf("%-*s  %s  %s", width, row.Name,
			r.s.label.Render(fmt.Sprintf("%-9s", row.Phase)),
			r.s.dim.Render("updated "+humanize.Time(row.UpdatedAt))))
	}
}

// ProgressBar draws fraction (0-1) as a bar of width cells.
func ProgressBar(fraction float64, width int) string {
	fraction = min(max(fraction, 0), 1)
	filled := int(fraction*float64(width) + 0.5)
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
