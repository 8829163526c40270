package llm

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/schema"
	"github.com/tmc/langchaingo/llms/openai"

	perrors "github.com/p-blackswan/project-assistant/internal/errors"
)

const defaultOpenAIModel = "gpt-4o-mini"

// OpenAIConfig configures an OpenAI-compatible endpoint.
type OpenAIConfig struct {
	APIKey    string
	BaseURL   string // optional, for compatible servers
	Model     string
	MaxTokens int
}

// OpenAIProvider implements LLMProvider on top of langchaingo's OpenAI client.
type OpenAIProvider struct {
	model     llms.Model
	modelID   string
	maxTokens int
	logger    zerolog.Logger
}

// NewOpenAIProvider builds a provider for cfg.
func NewOpenAIProvider(cfg OpenAIConfig, logger zerolog.Logger) (*OpenAIProvider, error) {
	modelID := cfg.Model
	if modelID == "" {
		modelID = defaultOpenAIModel
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	token := cfg.APIKey
	if token == "" {
		// Self-hosted compatible servers ignore the token but the client
		// refuses to start without one.
		token = "placeholder"
	}
	opts := []openai.Option{
		openai.WithModel(modelID),
		openai.WithToken(token),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}
	client, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("create openai client: %w", err)
	}
	return newOpenAIProvider(client, modelID, maxTokens, logger), nil
}

func newOpenAIProvider(model llms.Model, modelID string, maxTokens int, logger zerolog.Logger) *OpenAIProvider {
	return &OpenAIProvider{
		model:     model,
		modelID:   modelID,
		maxTokens: maxTokens,
		logger:    logger.With().Str("component", "llm.openai").Logger(),
	}
}

func (p *OpenAIProvider) ModelID() string { return p.modelID }
func (p *OpenAIProvider) MaxTokens() int  { return p.maxTokens }

// Complete sends the conversation through langchaingo and returns the first
// choice.
func (p *OpenAIProvider) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	var msgs []llms.MessageContent
	if req.SystemPrompt != "" {
		msgs = append(msgs, llms.TextParts(schema.ChatMessageTypeSystem, req.SystemPrompt))
	}
	for _, m := range req.Messages {
		msgs = append(msgs, llms.TextParts(chatType(m.Role), m.Content))
	}

	maxTokens := p.maxTokens
	if req.MaxTokens > 0 {
		maxTokens = req.MaxTokens
	}
	callOpts := []llms.CallOption{llms.WithMaxTokens(maxTokens)}
	if req.Temperature > 0 {
		callOpts = append(callOpts, llms.WithTemperature(req.Temperature))
	}
	if req.Model != "" {
		callOpts = append(callOpts, llms.WithModel(req.Model))
	}

	resp, err := p.model.GenerateContent(ctx, msgs, callOpts...)
	if err != nil {
		return nil, classifyTransportError("openai", err)
	}
	if resp == nil || len(resp.Choices) == 0 {
		return nil, fmt.Errorf("openai: %w: no choices returned", perrors.ErrMalformedResponse)
	}

	choice := resp.Choices[0]
	out := &CompletionResponse{Text: choice.Content, StopReason: choice.StopReason}
	if n, ok := choice.GenerationInfo["PromptTokens"].(int); ok {
		out.InputTokens = n
	}
	if n, ok := choice.GenerationInfo["CompletionTokens"].(int); ok {
		out.OutputTokens = n
	}

	p.logger.Debug().
		Str("model", p.modelID).
		Str("stop_reason", out.StopReason).
		Int("in_tokens", out.InputTokens).
		Int("out_tokens", out.OutputTokens).
		Msg("openai complete")
	return out, nil
}

func chatType(role string) schema.ChatMessageType {
	switch role {
	case RoleSystem:
		return schema.ChatMessageTypeSystem
	case RoleAssistant:
		return schema.ChatMessageTypeAI
	}
	return schema.ChatMessageTypeHuman
}
