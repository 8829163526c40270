package render

import (
	"fmt"
	"strings"
	"time"

	"github.com/p-blackswan/project-assistant/internal/project"
)

const stampLayout = "2006-01-02 15:04 MST"

// DiscoveryNotes renders the discovery transcript and synthesis.
func DiscoveryNotes(st *project.State) string {
	var b strings.Builder
	d := st.Discovery
	fmt.Fprintf(&b, "# Discovery Notes: %s\n\n", st.Name)
	fmt.Fprintf(&b, "Understanding: %d%%\n", d.UnderstandingScore)
	if d.ProjectType != "" {
		fmt.Fprintf(&b, "Project type: %s\n", d.ProjectType)
	}
	b.WriteString("\n")

	if syn := d.Synthesis; syn != nil {
		b.WriteString("## Summary\n\n")
		if syn.Summary != "" {
			b.WriteString(syn.Summary + "\n\n")
		}
		bullets(&b, "Goals", syn.Goals)
		section(&b, "Motivation", syn.Motivation)
		bullets(&b, "Constraints", syn.Constraints)
		section(&b, "Timeline", syn.Timeline)
		bullets(&b, "Success Criteria", syn.SuccessCriteria)
		bullets(&b, "Resources", syn.Resources)
		bullets(&b, "Obstacles", syn.Obstacles)
	}

	b.WriteString("## Questions & Answers\n\n")
	for i, qa := range d.QuestionsAsked {
		fmt.Fprintf(&b, "**Q%d. %s**\n\n", i+1, qa.Question)
		if qa.Skipped {
			b.WriteString("_skipped_\n\n")
			continue
		}
		b.WriteString(qa.Answer + "\n\n")
	}
	return b.String()
}

// ProposalDoc renders the current proposal with its feedback history.
func ProposalDoc(st *project.State) string {
	var b strings.Builder
	p := st.Planning
	fmt.Fprintf(&b, "<!-- %s proposal v%d -->\n\n", st.Slug, p.ProposalVersion)
	b.WriteString(strings.TrimRight(p.ProposalText, "\n") + "\n")

	if len(p.ResearchInsights) > 0 {
		b.WriteString("\n---\n\n## Research Insights\n\n")
		for _, in := range p.ResearchInsights {
			b.WriteString("- " + in + "\n")
		}
	}
	if len(p.FeedbackHistory) > 0 {
		b.WriteString("\n## Feedback History\n\n")
		for _, fb := range p.FeedbackHistory {
			fmt.Fprintf(&b, "- v%d (%s): %s\n", fb.ProposalVersion, stamp(fb.At), fb.Text)
		}
	}
	return b.String()
}

// ActionsDoc renders the action list grouped by status.
func ActionsDoc(st *project.State) string {
	var b strings.Builder
	tr := project.NewTracker(&st.Execution, nil)
	done := tr.CompletionPercentage()

	fmt.Fprintf(&b, "# Actions: %s\n\n", st.Name)
	fmt.Fprintf(&b, "Progress: %s %d%%\n\n", ProgressBar(done, barWidth), int(done*100+0.5))

	groups := []struct {
		title  string
		status project.Status
	}{
		{"In Progress", project.StatusInProgress},
		{"Pending", project.StatusPending},
		{"Blocked", project.StatusBlocked},
		{"Completed", project.StatusCompleted},
	}
	for _, g := range groups {
		var ids []string
		for _, id := range tr.IDs() {
			if tr.Get(id).Status == g.status {
				ids = append(ids, id)
			}
		}
		if len(ids) == 0 {
			continue
		}
		fmt.Fprintf(&b, "## %s\n\n", g.title)
		for _, id := range ids {
			a := tr.Get(id)
			box := " "
			if a.Status == project.StatusCompleted {
				box = "x"
			}
			fmt.Fprintf(&b, "- [%s] **%s** (%s) %s\n", box, a.ID, a.Priority, a.Description)
			for _, d := range actionDetails(a) {
				b.WriteString("  - " + d + "\n")
			}
		}
		b.WriteString("\n")
	}

	if n := len(st.Execution.CheckIns); n > 0 {
		ci := st.Execution.CheckIns[n-1]
		fmt.Fprintf(&b, "## Last Check-in (%s)\n\n%s\n", stamp(ci.At), ci.Summary)
	}
	if st.Execution.ProjectCompleted {
		b.WriteString("\nProject completed.\n")
	}
	return b.String()
}

func bullets(b *strings.Builder, title string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(b, "### %s\n\n", title)
	for _, it := range items {
		b.WriteString("- " + it + "\n")
	}
	b.WriteString("\n")
}

func section(b *strings.Builder, title, body string) {
	if body == "" {
		return
	}
	fmt.Fprintf(b, "### %s\n\n%s\n\n", title, body)
}

func stamp(t time.Time) string {
	return t.UTC().Format(stampLayout)
}
