// Package project defines the persisted project state, the validation layer
// that guards it, and the action tracker used during execution.
package project

import (
	"maps"
	"slices"
	"time"
)

// SchemaVersion is written into every persisted state.
const SchemaVersion = 1

// Phase is a project lifecycle stage.
type Phase string

const (
	PhaseDiscovery Phase = "discovery"
	PhasePlanning  Phase = "planning"
	PhaseExecution Phase = "execution"
	PhaseCompleted Phase = "completed"
)

// Discovery exit thresholds. Both values are fixed; they are not derived.
const (
	EarlyExitScore  = 60
	CompletionScore = 85
)

// Priority of an action item.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// ParsePriority maps free-form text to a Priority, defaulting to medium.
func ParsePriority(s string) Priority {
	switch Priority(s) {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return Priority(s)
	}
	return PriorityMedium
}

// Status of an action item.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusBlocked    Status = "blocked"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusCompleted, StatusBlocked:
		return true
	}
	return false
}

// State is the root aggregate for one project.
type State struct {
	SchemaVersion int           `json:"schemaVersion"`
	Name          string        `json:"name"`
	Slug          string        `json:"slug"`
	Phase         Phase         `json:"phase"`
	Discovery     DiscoveryData `json:"discovery"`
	Planning      PlanningData  `json:"planning"`
	Execution     ExecutionData `json:"execution"`
	CreatedAt     time.Time     `json:"createdAt"`
	UpdatedAt     time.Time     `json:"updatedAt"`
}

// Question is a discovery question posed to the user.
type Question struct {
	Key      string   `json:"key"`
	Text     string   `json:"text"`
	Examples []string `json:"examples,omitempty"`
}

// QA is one posed question and its answer, or the skipped marker.
type QA struct {
	Key      string    `json:"key"`
	Question string    `json:"question"`
	Answer   string    `json:"answer,omitempty"`
	Skipped  bool      `json:"skipped,omitempty"`
	At       time.Time `json:"at"`
}

// Synthesis is the structured understanding produced when discovery ends.
type Synthesis struct {
	Summary         string   `json:"summary,omitempty"`
	Goals           []string `json:"goals"`
	Motivation      string   `json:"motivation"`
	Constraints     []string `json:"constraints"`
	Timeline        string   `json:"timeline"`
	SuccessCriteria []string `json:"successCriteria"`
	Resources       []string `json:"resources,omitempty"`
	Obstacles       []string `json:"obstacles,omitempty"`
	ProjectType     string   `json:"projectType,omitempty"`
}

// DiscoveryData is collected while discovering the project's intent.
type DiscoveryData struct {
	QuestionsAsked      []QA       `json:"questionsAsked"`
	UnderstandingScore  int        `json:"understandingScore"`
	SkippedQuestionKeys []string   `json:"skippedQuestionKeys"`
	Pending             *Question  `json:"pendingQuestion,omitempty"`
	Queued              []Question `json:"queuedQuestions,omitempty"`
	ProjectType         string     `json:"projectType,omitempty"`
	Synthesis           *Synthesis `json:"synthesis,omitempty"`
}

// IsSkipped reports whether key has been skipped.
func (d *DiscoveryData) IsSkipped(key string) bool {
	return slices.Contains(d.SkippedQuestionKeys, key)
}

// ExcludedKeys returns every key that must not be posed again: skipped keys
// plus keys already asked, in first-seen order.
func (d *DiscoveryData) ExcludedKeys() []string {
	seen := make(map[string]bool)
	var out []string
	add := func(k string) {
		if k == "" || seen[k] {
			return
		}
		seen[k] = true
		out = append(out, k)
	}
	for _, k := range d.SkippedQuestionKeys {
		add(k)
	}
	for _, qa := range d.QuestionsAsked {
		add(qa.Key)
	}
	return out
}

// Feedback is one round of user feedback on a proposal version.
type Feedback struct {
	Text            string    `json:"text"`
	ProposalVersion int       `json:"proposalVersion"`
	At              time.Time `json:"at"`
}

// Revision is a stored proposal version.
type Revision struct {
	Version int       `json:"version"`
	Text    string    `json:"text"`
	At      time.Time `json:"at"`
}

// PlanningData is produced while planning.
type PlanningData struct {
	ResearchInsights []string   `json:"researchInsights"`
	ProposalText     string     `json:"proposalText"`
	ProposalVersion  int        `json:"proposalVersion"`
	Revisions        []Revision `json:"revisions,omitempty"`
	FeedbackHistory  []Feedback `json:"feedbackHistory"`
	Approved         bool       `json:"approved"`
}

// ActionItem is a trackable unit of execution work.
type ActionItem struct {
	ID                string    `json:"id"`
	Description       string    `json:"description"`
	Priority          Priority  `json:"priority"`
	Status            Status    `json:"status"`
	BlockReason       string    `json:"blockReason,omitempty"`
	EstimatedDuration string    `json:"estimatedDuration,omitempty"`
	DueDate           string    `json:"dueDate,omitempty"`
	Dependencies      []string  `json:"dependencies,omitempty"`
	Tags              []string  `json:"tags,omitempty"`
	CreatedAt         time.Time `json:"createdAt"`
	StartedAt         time.Time `json:"startedAt,omitzero"`
	CompletedAt       time.Time `json:"completedAt,omitzero"`
}

// CheckIn is a progress check-in summary.
type CheckIn struct {
	ID               string    `json:"id"`
	At               time.Time `json:"at"`
	Summary          string    `json:"summary"`
	CompletedActions []string  `json:"completedActions,omitempty"`
	Blockers         []string  `json:"blockers,omitempty"`
	NextSteps        []string  `json:"nextSteps,omitempty"`
	Encouragement    string    `json:"encouragement,omitempty"`
	MoraleScore      int       `json:"moraleScore,omitempty"`
	Completion       float64   `json:"completion"`
}

// Adjustment records an applied plan adjustment.
type Adjustment struct {
	At        time.Time `json:"at"`
	Note      string    `json:"note,omitempty"`
	Reasoning string    `json:"reasoning"`
	Added     []string  `json:"added,omitempty"`
	Changed   []string  `json:"changed,omitempty"`
}

// ExecutionData tracks work during execution.
type ExecutionData struct {
	Actions          map[string]*ActionItem `json:"actions"`
	CheckIns         []CheckIn              `json:"checkIns"`
	Adjustments      []Adjustment           `json:"adjustments,omitempty"`
	ProjectCompleted bool                   `json:"projectCompleted"`
}

// New creates a fresh project state in the discovery phase.
func New(name, slug string, now time.Time) *State {
	return &State{
		SchemaVersion: SchemaVersion,
		Name:          name,
		Slug:          slug,
		Phase:         PhaseDiscovery,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// Clone returns a deep copy of the state. Turns mutate a clone and only
// replace the original once the clone has been committed.
func (s *State) Clone() *State {
	if s == nil {
		return nil
	}
	c := *s

	c.Discovery.QuestionsAsked = slices.Clone(s.Discovery.QuestionsAsked)
	c.Discovery.SkippedQuestionKeys = slices.Clone(s.Discovery.SkippedQuestionKeys)
	if q := s.Discovery.Pending; q != nil {
		cq := *q
		cq.Examples = slices.Clone(q.Examples)
		c.Discovery.Pending = &cq
	}
	c.Discovery.Queued = slices.Clone(s.Discovery.Queued)
	for i := range c.Discovery.Queued {
		c.Discovery.Queued[i].Examples = slices.Clone(c.Discovery.Queued[i].Examples)
	}
	if syn := s.Discovery.Synthesis; syn != nil {
		cs := *syn
		cs.Goals = slices.Clone(syn.Goals)
		cs.Constraints = slices.Clone(syn.Constraints)
		cs.SuccessCriteria = slices.Clone(syn.SuccessCriteria)
		cs.Resources = slices.Clone(syn.Resources)
		cs.Obstacles = slices.Clone(syn.Obstacles)
		c.Discovery.Synthesis = &cs
	}

	c.Planning.ResearchInsights = slices.Clone(s.Planning.ResearchInsights)
	c.Planning.Revisions = slices.Clone(s.Planning.Revisions)
	c.Planning.FeedbackHistory = slices.Clone(s.Planning.FeedbackHistory)

	if s.Execution.Actions != nil {
		c.Execution.Actions = make(map[string]*ActionItem, len(s.Execution.Actions))
		for id, a := range s.Execution.Actions {
			c.Execution.Actions[id] = a.clone()
		}
	}
	c.Execution.CheckIns = slices.Clone(s.Execution.CheckIns)
	for i := range c.Execution.CheckIns {
		ci := &c.Execution.CheckIns[i]
		ci.CompletedActions = slices.Clone(ci.CompletedActions)
		ci.Blockers = slices.Clone(ci.Blockers)
		ci.NextSteps = slices.Clone(ci.NextSteps)
	}
	c.Execution.Adjustments = slices.Clone(s.Execution.Adjustments)
	for i := range c.Execution.Adjustments {
		c.Execution.Adjustments[i].Added = slices.Clone(c.Execution.Adjustments[i].Added)
		c.Execution.Adjustments[i].Changed = slices.Clone(c.Execution.Adjustments[i].Changed)
	}
	return &c
}

func (a *ActionItem) clone() *ActionItem {
	if a == nil {
		return nil
	}
	c := *a
	c.Dependencies = slices.Clone(a.Dependencies)
	c.Tags = slices.Clone(a.Tags)
	return &c
}

// ActionsSnapshot returns copies of all action items in id order.
func (e *ExecutionData) ActionsSnapshot() []ActionItem {
	ids := SortedIDs(e.Actions)
	out := make([]ActionItem, 0, len(ids))
	for _, id := range ids {
		out = append(out, *e.Actions[id].clone())
	}
	return out
}

// SortedIDs returns the keys of actions ordered by their numeric suffix, then
// lexically.
func SortedIDs(actions map[string]*ActionItem) []string {
	ids := slices.Collect(maps.Keys(actions))
	slices.SortFunc(ids, compareIDs)
	return ids
}
