package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/rs/zerolog"

	perrors "github.com/p-blackswan/project-assistant/internal/errors"
	"github.com/p-blackswan/project-assistant/internal/llm"
	"github.com/p-blackswan/project-assistant/internal/project"
)

const skippedMarker = "[skipped]"

// LLMGateway implements Gateway with prompts sent to an llm.LLMProvider.
type LLMGateway struct {
	provider llm.LLMProvider
	logger   zerolog.Logger
}

// NewLLMGateway creates a gateway backed by provider.
func NewLLMGateway(provider llm.LLMProvider, logger zerolog.Logger) *LLMGateway {
	return &LLMGateway{
		provider: provider,
		logger:   logger.With().Str("component", "gateway.llm").Logger(),
	}
}

func (g *LLMGateway) complete(ctx context.Context, op, system, user string) (string, error) {
	resp, err := g.provider.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: system,
		Messages:     []llm.Message{llm.UserMessage(user)},
	})
	if err != nil {
		return "", fmt.Errorf("%s: llm call: %w", op, err)
	}
	if resp.StopReason == llm.StopReasonMaxTokens {
		g.logger.Warn().Str("op", op).Msg("response truncated at max tokens")
	}
	return resp.Text, nil
}

// completeJSON runs a prompt and decodes the JSON object in the reply into v.
func (g *LLMGateway) completeJSON(ctx context.Context, op, system, user string, v any) error {
	text, err := g.complete(ctx, op, system, user)
	if err != nil {
		return err
	}
	raw, ok := extractJSON(text)
	if !ok {
		g.logger.Warn().Str("op", op).Str("text", truncate(text, 200)).Msg("no JSON object in response")
		return fmt.Errorf("%s: %w: no JSON object in response", op, perrors.ErrMalformedResponse)
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		g.logger.Warn().Str("op", op).Str("text", truncate(text, 200)).Err(err).Msg("parse failed")
		return fmt.Errorf("%s: %w: %v", op, perrors.ErrMalformedResponse, err)
	}
	return nil
}

type wireQuestion struct {
	Key      string   `json:"key"`
	Question string   `json:"question"`
	Examples []string `json:"examples"`
}

// NextQuestion asks for the next discovery question and a fresh score.
func (g *LLMGateway) NextQuestion(ctx context.Context, req QuestionRequest) (*QuestionResult, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "Project name: %q\n\n", req.ProjectName)
	if len(req.History) == 0 {
		b.WriteString("This is the first question. Start by understanding what the project is about.\n")
	} else {
		b.WriteString("Previous questions and answers:\n\n")
		writeHistory(&b, req.History)
	}
	if len(req.Excluded) > 0 {
		fmt.Fprintf(&b, "\nExcluded keys (do not ask again): %s\n", strings.Join(req.Excluded, ", "))
	}

	var out struct {
		wireQuestion
		Score       json.Number    `json:"understanding_score"`
		ProjectType string         `json:"project_type"`
		Alternates  []wireQuestion `json:"alternates"`
	}
	if err := g.completeJSON(ctx, "next_question", questionPrompt, b.String(), &out); err != nil {
		return nil, err
	}

	q, ok := toQuestion(out.wireQuestion)
	if !ok {
		return nil, fmt.Errorf("next_question: %w: empty question", perrors.ErrMalformedResponse)
	}
	if slices.Contains(req.Excluded, q.Key) {
		return nil, fmt.Errorf("next_question: %w: excluded key %q was posed again", perrors.ErrMalformedResponse, q.Key)
	}
	score, err := normalizeScore(out.Score)
	if err != nil {
		return nil, fmt.Errorf("next_question: %w: %v", perrors.ErrMalformedResponse, err)
	}

	res := &QuestionResult{
		Question:    q,
		Score:       score,
		ProjectType: strings.TrimSpace(out.ProjectType),
	}
	seen := map[string]bool{q.Key: true}
	for _, w := range out.Alternates {
		alt, ok := toQuestion(w)
		if !ok || seen[alt.Key] || slices.Contains(req.Excluded, alt.Key) {
			continue
		}
		seen[alt.Key] = true
		res.Alternates = append(res.Alternates, alt)
		if len(res.Alternates) == MaxAlternates {
			break
		}
	}
	return res, nil
}

// SynthesizeUnderstanding distills the discovery conversation. Completeness is
// judged by the caller.
func (g *LLMGateway) SynthesizeUnderstanding(ctx context.Context, projectName string, history []project.QA) (*project.Synthesis, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "Project name: %q\n\nDiscovery conversation:\n\n", projectName)
	writeHistory(&b, history)

	var out struct {
		Summary         string     `json:"project_summary"`
		Goals           stringList `json:"goals"`
		Motivation      string     `json:"motivation"`
		Timeline        string     `json:"timeline"`
		Resources       stringList `json:"resources"`
		Constraints     stringList `json:"constraints"`
		SuccessCriteria stringList `json:"success_criteria"`
		Obstacles       stringList `json:"potential_obstacles"`
		ProjectType     string     `json:"project_type"`
	}
	if err := g.completeJSON(ctx, "synthesize", synthesisPrompt, b.String(), &out); err != nil {
		return nil, err
	}
	return &project.Synthesis{
		Summary:         strings.TrimSpace(out.Summary),
		Goals:           cleanList(out.Goals, 0),
		Motivation:      strings.TrimSpace(out.Motivation),
		Constraints:     cleanList(out.Constraints, 0),
		Timeline:        strings.TrimSpace(out.Timeline),
		SuccessCriteria: cleanList(out.SuccessCriteria, 0),
		Resources:       cleanList(out.Resources, 0),
		Obstacles:       cleanList(out.Obstacles, 0),
		ProjectType:     strings.TrimSpace(out.ProjectType),
	}, nil
}

// Research returns up to MaxInsights planning insights.
func (g *LLMGateway) Research(ctx context.Context, projectName string, syn project.Synthesis) ([]string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "Project name: %q\n\n", projectName)
	writeSynthesis(&b, syn)

	var out struct {
		Insights stringList `json:"insights"`
	}
	if err := g.completeJSON(ctx, "research", researchPrompt, b.String(), &out); err != nil {
		return nil, err
	}
	insights := cleanList(out.Insights, MaxInsights)
	if len(insights) == 0 {
		return nil, fmt.Errorf("research: %w: no insights", perrors.ErrMalformedResponse)
	}
	return insights, nil
}

// Proposal drafts a proposal, or refines req.Current against the feedback.
func (g *LLMGateway) Proposal(ctx context.Context, req ProposalRequest) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "Project name: %q\n\n", req.ProjectName)
	writeSynthesis(&b, req.Synthesis)
	if len(req.Insights) > 0 {
		b.WriteString("\nResearch insights:\n")
		for _, in := range req.Insights {
			fmt.Fprintf(&b, "- %s\n", in)
		}
	}
	if req.Current != "" {
		fmt.Fprintf(&b, "\nCurrent proposal:\n\n%s\n", req.Current)
	}
	if len(req.Feedback) > 0 {
		b.WriteString("\nFeedback to address:\n")
		for _, f := range req.Feedback {
			fmt.Fprintf(&b, "- (on v%d) %s\n", f.ProposalVersion, f.Text)
		}
	}

	text, err := g.complete(ctx, "proposal", proposalPrompt, b.String())
	if err != nil {
		return "", err
	}
	text = stripFences(text)
	if text == "" {
		return "", fmt.Errorf("proposal: %w: empty proposal", perrors.ErrMalformedResponse)
	}
	return text, nil
}

type wireAction struct {
	Ref               string     `json:"ref"`
	Description       string     `json:"description"`
	Priority          string     `json:"priority"`
	EstimatedDuration string     `json:"estimated_duration"`
	DueDate           string     `json:"due_date"`
	Dependencies      stringList `json:"dependencies"`
	Tags              stringList `json:"tags"`
}

// DecomposeIntoActions breaks an approved proposal into action drafts.
func (g *LLMGateway) DecomposeIntoActions(ctx context.Context, projectName, proposal string) ([]ActionDraft, error) {
	user := fmt.Sprintf("Project name: %q\n\nApproved proposal:\n\n%s", projectName, proposal)
	var out struct {
		Actions []wireAction `json:"actions"`
	}
	if err := g.completeJSON(ctx, "decompose", decomposePrompt, user, &out); err != nil {
		return nil, err
	}
	drafts := toDrafts(out.Actions, "a")
	if len(drafts) == 0 {
		return nil, fmt.Errorf("decompose: %w: no actions", perrors.ErrMalformedResponse)
	}
	return drafts, nil
}

// CheckIn produces progress commentary.
func (g *LLMGateway) CheckIn(ctx context.Context, req CheckInRequest) (*CheckInReport, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "Project name: %q\nCompletion: %.0f%%\n\n", req.ProjectName, req.Completion*100)
	writeActions(&b, req.Actions)
	if n := len(req.History); n > 0 {
		last := req.History[n-1]
		fmt.Fprintf(&b, "\nPrevious check-in (%s): %s\n", last.At.Format("2006-01-02"), last.Summary)
	}

	var out struct {
		Summary       string      `json:"progress_summary"`
		Highlights    stringList  `json:"completed_highlights"`
		Blockers      stringList  `json:"blockers_identified"`
		NextSteps     stringList  `json:"suggested_next_steps"`
		Encouragement string      `json:"encouragement"`
		Morale        json.Number `json:"recommended_morale_score"`
	}
	if err := g.completeJSON(ctx, "checkin", checkInPrompt, b.String(), &out); err != nil {
		return nil, err
	}
	summary := strings.TrimSpace(out.Summary)
	if summary == "" {
		return nil, fmt.Errorf("checkin: %w: empty summary", perrors.ErrMalformedResponse)
	}
	report := &CheckInReport{
		Summary:       summary,
		Highlights:    cleanList(out.Highlights, 0),
		Blockers:      cleanList(out.Blockers, 0),
		NextSteps:     cleanList(out.NextSteps, 0),
		Encouragement: strings.TrimSpace(out.Encouragement),
	}
	if f, err := out.Morale.Float64(); err == nil {
		report.MoraleScore = int(math.Round(min(max(f, 1), 10)))
	}
	return report, nil
}

// Adjust proposes additions and edits to the plan.
func (g *LLMGateway) Adjust(ctx context.Context, req AdjustRequest) (*AdjustPlan, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "Project name: %q\n\n", req.ProjectName)
	writeActions(&b, req.Actions)
	if len(req.RecentCheckIns) > 0 {
		b.WriteString("\nRecent check-ins:\n")
		for _, c := range req.RecentCheckIns {
			fmt.Fprintf(&b, "- %s: %s\n", c.At.Format("2006-01-02"), c.Summary)
			for _, bl := range c.Blockers {
				fmt.Fprintf(&b, "  blocker: %s\n", bl)
			}
		}
	}
	if req.Note != "" {
		fmt.Fprintf(&b, "\nUser note: %s\n", req.Note)
	}

	var out struct {
		Needed     bool         `json:"adjustment_needed"`
		Reasoning  string       `json:"reasoning"`
		NewActions []wireAction `json:"new_actions"`
		Changes    []struct {
			ID                string     `json:"id"`
			Description       string     `json:"description"`
			Priority          string     `json:"priority"`
			EstimatedDuration string     `json:"estimated_duration"`
			DueDate           string     `json:"due_date"`
			AddDependencies   stringList `json:"add_dependencies"`
			Tags              stringList `json:"tags"`
		} `json:"changes"`
	}
	if err := g.completeJSON(ctx, "adjust", adjustPrompt, b.String(), &out); err != nil {
		return nil, err
	}

	plan := &AdjustPlan{
		Needed:     out.Needed,
		Reasoning:  strings.TrimSpace(out.Reasoning),
		NewActions: toDrafts(out.NewActions, "n"),
	}
	for _, c := range out.Changes {
		id := strings.TrimSpace(c.ID)
		if id == "" {
			continue
		}
		ch := project.Change{
			ID:                id,
			Description:       strings.TrimSpace(c.Description),
			EstimatedDuration: strings.TrimSpace(c.EstimatedDuration),
			DueDate:           strings.TrimSpace(c.DueDate),
			AddDependencies:   cleanList(c.AddDependencies, 0),
			Tags:              cleanList(c.Tags, 0),
		}
		if p := strings.ToLower(strings.TrimSpace(c.Priority)); p != "" {
			ch.Priority = project.ParsePriority(p)
		}
		plan.Changes = append(plan.Changes, ch)
	}
	if !plan.Needed {
		plan.NewActions, plan.Changes = nil, nil
	}
	return plan, nil
}

func toQuestion(w wireQuestion) (project.Question, bool) {
	text := strings.TrimSpace(w.Question)
	if text == "" {
		return project.Question{}, false
	}
	key := project.NormalizeKey(w.Key)
	if key == "" {
		key = project.NormalizeKey(text)
	}
	return project.Question{Key: key, Text: text, Examples: cleanList(w.Examples, 3)}, true
}

// toDrafts bounds and normalizes model actions; missing refs become
// prefix1, prefix2, ...
func toDrafts(in []wireAction, prefix string) []ActionDraft {
	var out []ActionDraft
	seen := make(map[string]bool)
	for i, a := range in {
		desc := strings.TrimSpace(a.Description)
		if desc == "" {
			continue
		}
		ref := strings.TrimSpace(a.Ref)
		if ref == "" || seen[ref] {
			ref = fmt.Sprintf("%s%d", prefix, i+1)
		}
		seen[ref] = true
		out = append(out, ActionDraft{
			Ref:               ref,
			Description:       desc,
			Priority:          project.ParsePriority(strings.ToLower(strings.TrimSpace(a.Priority))),
			EstimatedDuration: strings.TrimSpace(a.EstimatedDuration),
			DueDate:           strings.TrimSpace(a.DueDate),
			Dependencies:      cleanList(a.Dependencies, 0),
			Tags:              cleanList(a.Tags, 0),
		})
		if len(out) == MaxActions {
			break
		}
	}
	return out
}

// normalizeScore accepts 0-1 fractions or 0-100 percentages. Only a
// non-integer literal is read as a fraction, so "1" stays 1%.
func normalizeScore(n json.Number) (int, error) {
	if n == "" {
		return 0, fmt.Errorf("missing understanding_score")
	}
	f, err := n.Float64()
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("bad understanding_score %q", n)
	}
	if f > 0 && f <= 1 && strings.ContainsAny(n.String(), ".eE") {
		f *= 100
	}
	return int(math.Round(min(max(f, 0), 100))), nil
}

func writeHistory(b *strings.Builder, history []project.QA) {
	for i, qa := range history {
		answer := qa.Answer
		if qa.Skipped {
			answer = skippedMarker
		}
		fmt.Fprintf(b, "Q%d [%s]: %s\nA%d: %s\n\n", i+1, qa.Key, qa.Question, i+1, answer)
	}
}

func writeSynthesis(b *strings.Builder, s project.Synthesis) {
	if s.Summary != "" {
		fmt.Fprintf(b, "Summary: %s\n", s.Summary)
	}
	if s.ProjectType != "" {
		fmt.Fprintf(b, "Type: %s\n", s.ProjectType)
	}
	writeList(b, "Goals", s.Goals)
	fmt.Fprintf(b, "Motivation: %s\n", s.Motivation)
	fmt.Fprintf(b, "Timeline: %s\n", s.Timeline)
	writeList(b, "Constraints", s.Constraints)
	writeList(b, "Success criteria", s.SuccessCriteria)
	writeList(b, "Resources", s.Resources)
	writeList(b, "Potential obstacles", s.Obstacles)
}

func writeList(b *strings.Builder, title string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(b, "%s:\n", title)
	for _, it := range items {
		fmt.Fprintf(b, "- %s\n", it)
	}
}

func writeActions(b *strings.Builder, actions []project.ActionItem) {
	b.WriteString("Actions:\n")
	for _, a := range actions {
		fmt.Fprintf(b, "- %s [%s, %s] %s", a.ID, a.Status, a.Priority, a.Description)
		if len(a.Dependencies) > 0 {
			fmt.Fprintf(b, " (after %s)", strings.Join(a.Dependencies, ", "))
		}
		if a.BlockReason != "" {
			fmt.Fprintf(b, " blocked: %s", a.BlockReason)
		}
		b.WriteByte('\n')
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
