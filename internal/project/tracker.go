package project

import (
	"fmt"
	"slices"
	"strings"
	"time"

	perrors "github.com/p-blackswan/project-assistant/internal/errors"
)

// ActionIDPrefix prefixes every sequentially assigned action id.
const ActionIDPrefix = "action-"

// Tracker manages the action items of an ExecutionData in place.
type Tracker struct {
	exec *ExecutionData
	now  func() time.Time
}

// NewTracker returns a tracker operating on exec.
func NewTracker(exec *ExecutionData, now func() time.Time) *Tracker {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Tracker{exec: exec, now: now}
}

// IDs returns all action ids in display order.
func (t *Tracker) IDs() []string {
	return SortedIDs(t.exec.Actions)
}

// Get returns the action with id, or nil.
func (t *Tracker) Get(id string) *ActionItem {
	return t.exec.Actions[id]
}

// Len returns the number of actions.
func (t *Tracker) Len() int {
	return len(t.exec.Actions)
}

// NextID returns the id the next added action would receive.
func (t *Tracker) NextID(offset int) string {
	maxSeq := 0
	for id := range t.exec.Actions {
		if n, ok := idSeq(id); ok && n > maxSeq {
			maxSeq = n
		}
	}
	return fmt.Sprintf("%s%d", ActionIDPrefix, maxSeq+1+offset)
}

// UnmetDependencies returns the dependencies of id that are not completed.
func (t *Tracker) UnmetDependencies(id string) []string {
	a := t.exec.Actions[id]
	if a == nil {
		return nil
	}
	var unmet []string
	for _, dep := range a.Dependencies {
		if d := t.exec.Actions[dep]; d == nil || d.Status != StatusCompleted {
			unmet = append(unmet, dep)
		}
	}
	return unmet
}

// Transition moves action id to status to. reason is required when blocking
// and discarded otherwise.
func (t *Tracker) Transition(id string, to Status, reason string) error {
	a := t.exec.Actions[id]
	if a == nil {
		return perrors.UnknownAction(id, t.IDs())
	}
	if !to.Valid() {
		return perrors.Invalid(perrors.ErrInvalidInput, "unknown status %q", to)
	}

	if to == StatusInProgress || to == StatusCompleted {
		if unmet := t.UnmetDependencies(id); len(unmet) > 0 {
			return &perrors.ValidationError{
				Kind:    perrors.ErrDependencyNotSatisfied,
				Msg:     fmt.Sprintf("%s is waiting on %s", id, strings.Join(unmet, ", ")),
				Missing: unmet,
			}
		}
	}

	reason = strings.TrimSpace(reason)
	if to == StatusBlocked && reason == "" {
		return perrors.Invalid(perrors.ErrMissingReason, "blocking %s requires a reason", id)
	}

	now := t.now()
	a.Status = to
	a.BlockReason = ""
	switch to {
	case StatusBlocked:
		a.BlockReason = reason
	case StatusInProgress:
		if a.StartedAt.IsZero() {
			a.StartedAt = now
		}
		a.CompletedAt = time.Time{}
	case StatusCompleted:
		a.CompletedAt = now
	case StatusPending:
		a.CompletedAt = time.Time{}
	}
	return nil
}

// CompletionPercentage returns completed/total as a fraction in [0,1].
func (t *Tracker) CompletionPercentage() float64 {
	total := len(t.exec.Actions)
	if total == 0 {
		return 0
	}
	return float64(t.Counts()[StatusCompleted]) / float64(total)
}

// Counts returns the number of actions in each status.
func (t *Tracker) Counts() map[Status]int {
	counts := map[Status]int{
		StatusPending:    0,
		StatusInProgress: 0,
		StatusCompleted:  0,
		StatusBlocked:    0,
	}
	for _, a := range t.exec.Actions {
		counts[a.Status]++
	}
	return counts
}

// Ready returns pending actions whose dependencies are all completed.
func (t *Tracker) Ready() []string {
	var ready []string
	for _, id := range t.IDs() {
		if t.exec.Actions[id].Status == StatusPending && len(t.UnmetDependencies(id)) == 0 {
			ready = append(ready, id)
		}
	}
	return ready
}

// AddItems inserts a batch of actions. The batch is rejected as a whole if it
// contains duplicate ids, references unknown ids or closes a dependency cycle.
func (t *Tracker) AddItems(items []ActionItem) error {
	batch := make(map[string]*ActionItem, len(items))
	for i := range items {
		it := items[i]
		it.ID = strings.TrimSpace(it.ID)
		if it.ID == "" {
			return perrors.Invalid(perrors.ErrInvalidInput, "action %d has no id", i+1)
		}
		if _, dup := batch[it.ID]; dup {
			return perrors.Invalid(perrors.ErrDuplicateAction, "%s appears twice in the batch", it.ID)
		}
		if _, exists := t.exec.Actions[it.ID]; exists {
			return perrors.Invalid(perrors.ErrDuplicateAction, "%s already exists", it.ID)
		}
		batch[it.ID] = it.clone()
	}

	graph := make(map[string][]string, len(t.exec.Actions)+len(batch))
	for id, a := range t.exec.Actions {
		graph[id] = a.Dependencies
	}
	for id, a := range batch {
		graph[id] = a.Dependencies
	}
	if err := checkGraph(graph); err != nil {
		return err
	}

	if t.exec.Actions == nil {
		t.exec.Actions = make(map[string]*ActionItem, len(batch))
	}
	now := t.now()
	for id, a := range batch {
		if !a.Status.Valid() {
			a.Status = StatusPending
		}
		if a.Status != StatusBlocked {
			a.BlockReason = ""
		}
		a.Priority = ParsePriority(string(a.Priority))
		if a.CreatedAt.IsZero() {
			a.CreatedAt = now
		}
		t.exec.Actions[id] = a
	}
	return nil
}

// Change describes an edit to an existing action. Empty fields are left as is.
type Change struct {
	ID                string
	Description       string
	Priority          Priority
	EstimatedDuration string
	DueDate           string
	AddDependencies   []string
	Tags              []string
}

// ApplyChanges edits existing actions. All changes are validated against the
// resulting dependency graph before any is applied.
func (t *Tracker) ApplyChanges(changes []Change) error {
	graph := make(map[string][]string, len(t.exec.Actions))
	for id, a := range t.exec.Actions {
		graph[id] = slices.Clone(a.Dependencies)
	}
	for _, c := range changes {
		if _, ok := t.exec.Actions[c.ID]; !ok {
			return perrors.UnknownAction(c.ID, t.IDs())
		}
		for _, dep := range c.AddDependencies {
			if !slices.Contains(graph[c.ID], dep) {
				graph[c.ID] = append(graph[c.ID], dep)
			}
		}
	}
	if err := checkGraph(graph); err != nil {
		return err
	}

	for _, c := range changes {
		a := t.exec.Actions[c.ID]
		if d := strings.TrimSpace(c.Description); d != "" {
			a.Description = d
		}
		if c.Priority != "" {
			a.Priority = ParsePriority(string(c.Priority))
		}
		if c.EstimatedDuration != "" {
			a.EstimatedDuration = c.EstimatedDuration
		}
		if c.DueDate != "" {
			a.DueDate = c.DueDate
		}
		if len(c.Tags) > 0 {
			a.Tags = mergeUnique(a.Tags, c.Tags)
		}
		a.Dependencies = slices.Clone(graph[c.ID])
	}
	return nil
}

// checkGraph verifies every dependency exists and that the graph is acyclic.
func checkGraph(graph map[string][]string) error {
	ids := make([]string, 0, len(graph))
	for id := range graph {
		ids = append(ids, id)
	}
	slices.SortFunc(ids, compareIDs)

	for _, id := range ids {
		for _, dep := range graph[id] {
			if _, ok := graph[dep]; !ok {
				e := perrors.UnknownAction(dep, ids)
				e.Msg = fmt.Sprintf("%s depends on unknown action %q", id, dep)
				return e
			}
		}
	}

	const (
		unvisited = iota
		visiting
		done
	)
	state := make(map[string]int, len(graph))
	var stack []string

	var visit func(id string) []string
	visit = func(id string) []string {
		state[id] = visiting
		stack = append(stack, id)
		for _, dep := range graph[id] {
			switch state[dep] {
			case visiting:
				start := slices.Index(stack, dep)
				return append(slices.Clone(stack[start:]), dep)
			case unvisited:
				if cycle := visit(dep); cycle != nil {
					return cycle
				}
			}
		}
		stack = stack[:len(stack)-1]
		state[id] = done
		return nil
	}

	for _, id := range ids {
		if state[id] != unvisited {
			continue
		}
		if cycle := visit(id); cycle != nil {
			return &perrors.ValidationError{
				Kind:  perrors.ErrCyclicDependency,
				Msg:   strings.Join(cycle, " -> "),
				Cycle: cycle,
			}
		}
	}
	return nil
}

func mergeUnique(a, b []string) []string {
	out := slices.Clone(a)
	for _, s := range b {
		s = strings.TrimSpace(s)
		if s != "" && !slices.Contains(out, s) {
			out = append(out, s)
		}
	}
	return out
}
