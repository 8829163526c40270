// Package gateway is the boundary to the language model that supplies
// questions, synthesis, research, proposals and execution commentary. Every
// call is stateless: the caller passes the full context each time, and every
// response is parsed and bounded before it is returned.
package gateway

import (
	"context"

	"github.com/p-blackswan/project-assistant/internal/project"
)

// Response bounds.
const (
	MaxAlternates = 3
	MaxInsights   = 10
	MaxActions    = 25
)

// QuestionRequest is the context for choosing the next discovery question.
type QuestionRequest struct {
	ProjectName string
	History     []project.QA
	Excluded    []string // keys that must not be posed
}

// QuestionResult is the next question plus the re-estimated score.
type QuestionResult struct {
	Question    project.Question
	Alternates  []project.Question // backup questions on other topics, for skip
	Score       int                // 0-100
	ProjectType string
}

// ProposalRequest seeds an initial proposal or a refinement.
type ProposalRequest struct {
	ProjectName string
	Synthesis   project.Synthesis
	Insights    []string
	Feedback    []project.Feedback // prior feedback, oldest first
	Current     string             // current proposal text when refining
}

// ActionDraft is an action proposed by the model. Ref is a local reference
// used only to express dependencies between drafts of the same batch.
type ActionDraft struct {
	Ref               string
	Description       string
	Priority          project.Priority
	EstimatedDuration string
	DueDate           string
	Dependencies      []string // refs of drafts in the same batch, or existing action ids
	Tags              []string
}

// CheckInRequest is the context for a progress check-in.
type CheckInRequest struct {
	ProjectName string
	Actions     []project.ActionItem
	History     []project.CheckIn
	Completion  float64
}

// CheckInReport is the commentary produced for a check-in.
type CheckInReport struct {
	Summary       string
	Highlights    []string
	Blockers      []string
	NextSteps     []string
	Encouragement string
	MoraleScore   int // 1-10, 0 when absent
}

// AdjustRequest asks for changes to the plan.
type AdjustRequest struct {
	ProjectName    string
	Actions        []project.ActionItem
	RecentCheckIns []project.CheckIn
	Note           string
}

// AdjustPlan is a proposed set of additions and edits.
type AdjustPlan struct {
	Needed     bool
	Reasoning  string
	NewActions []ActionDraft
	Changes    []project.Change
}

// Gateway is the intelligence boundary used by the lifecycle.
type Gateway interface {
	NextQuestion(ctx context.Context, req QuestionRequest) (*QuestionResult, error)
	SynthesizeUnderstanding(ctx context.Context, projectName string, history []project.QA) (*project.Synthesis, error)
	Research(ctx context.Context, projectName string, synthesis project.Synthesis) ([]string, error)
	Proposal(ctx context.Context, req ProposalRequest) (string, error)
	DecomposeIntoActions(ctx context.Context, projectName, proposal string) ([]ActionDraft, error)
	CheckIn(ctx context.Context, req CheckInRequest) (*CheckInReport, error)
	Adjust(ctx context.Context, req AdjustRequest) (*AdjustPlan, error)
}
