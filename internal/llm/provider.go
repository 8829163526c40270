package llm

import (
	"net/http"
	"time"

	"github.com/rs/zerolog"

	perrors "github.com/p-blackswan/project-assistant/internal/errors"
)

// Config selects and configures a provider.
type Config struct {
	Provider        string
	Model           string
	MaxTokens       int
	Timeout         time.Duration
	AnthropicAPIKey string
	OpenAIAPIKey    string
	OpenAIBaseURL   string
}

// New returns the provider named by cfg.Provider.
func New(cfg Config, logger zerolog.Logger) (LLMProvider, error) {
	switch cfg.Provider {
	case "", ProviderAnthropic:
		if cfg.AnthropicAPIKey == "" {
			return nil, perrors.Invalid(perrors.ErrInvalidInput, "PA_ANTHROPIC_API_KEY is required for the anthropic provider")
		}
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 120 * time.Second
		}
		return NewAnthropicProvider(cfg.AnthropicAPIKey,
			WithModel(cfg.Model),
			WithMaxTokens(cfg.MaxTokens),
			WithHTTPClient(&http.Client{Timeout: timeout}),
			WithLogger(logger),
		), nil
	case ProviderOpenAI:
		if cfg.OpenAIAPIKey == "" && cfg.OpenAIBaseURL == "" {
			return nil, perrors.Invalid(perrors.ErrInvalidInput, "PA_OPENAI_API_KEY or PA_OPENAI_BASE_URL is required for the openai provider")
		}
		return NewOpenAIProvider(OpenAIConfig{
			APIKey:    cfg.OpenAIAPIKey,
			BaseURL:   cfg.OpenAIBaseURL,
			Model:     cfg.Model,
			MaxTokens: cfg.MaxTokens,
		}, logger)
	}
	return nil, perrors.Invalid(perrors.ErrInvalidInput, "unknown llm provider %q", cfg.Provider)
}
