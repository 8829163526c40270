package main

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/p-blackswan/project-assistant/internal/config"
	"github.com/p-blackswan/project-assistant/internal/gateway"
	"github.com/p-blackswan/project-assistant/internal/lifecycle"
	"github.com/p-blackswan/project-assistant/internal/llm"
	"github.com/p-blackswan/project-assistant/internal/metrics"
	"github.com/p-blackswan/project-assistant/internal/retry"
	"github.com/p-blackswan/project-assistant/internal/store"
)

// app holds the wired components shared by the subcommands.
type app struct {
	cfg     *config.Config
	logger  zerolog.Logger
	store   store.StateStore
	metrics *metrics.Metrics
	close   func()
}

// newApp opens the store and logger. The gateway is only built by machine,
// so listing projects works without LLM credentials.
func newApp() (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	logger, closeLog, err := newLogger(cfg)
	if err != nil {
		return nil, err
	}
	st, err := store.Open(cfg.StoreBackend, cfg.DataDir, logger)
	if err != nil {
		closeLog()
		return nil, fmt.Errorf("open store: %w", err)
	}
	a := &app{cfg: cfg, logger: logger, store: st, metrics: metrics.New()}
	a.close = func() {
		if err := st.Close(); err != nil {
			logger.Warn().Err(err).Msg("failed to close store")
		}
		if cfg.MetricsFile != "" {
			if err := a.metrics.WriteTextfile(cfg.MetricsFile); err != nil {
				logger.Warn().Err(err).Str("path", cfg.MetricsFile).Msg("failed to write metrics")
			}
		}
		closeLog()
	}
	return a, nil
}

// machine builds the LLM-backed state machine.
func (a *app) machine() (*lifecycle.Machine, error) {
	provider, err := llm.New(llm.Config{
		Provider:        a.cfg.LLMProvider,
		Model:           a.cfg.LLMModel,
		MaxTokens:       a.cfg.LLMMaxTokens,
		Timeout:         a.cfg.GatewayTimeout,
		AnthropicAPIKey: a.cfg.AnthropicAPIKey,
		OpenAIAPIKey:    a.cfg.OpenAIAPIKey,
		OpenAIBaseURL:   a.cfg.OpenAIBaseURL,
	}, a.logger)
	if err != nil {
		return nil, fmt.Errorf("llm provider: %w", err)
	}
	a.logger.Info().
		Str("provider", a.cfg.LLMProvider).
		Str("model", provider.ModelID()).
		Str("store", a.cfg.StoreBackend).
		Msg("assistant configured")

	gw := gateway.WithRetry(
		gateway.NewLLMGateway(provider, a.logger),
		retry.Config{
			MaxAttempts: a.cfg.GatewayMaxAttempts,
			BaseDelay:   a.cfg.GatewayBaseDelay,
			MaxDelay:    a.cfg.GatewayMaxDelay,
			Jitter:      true,
		},
		a.logger,
		gateway.WithObserver(a.metrics),
	)
	return lifecycle.New(a.store, gw, a.logger, lifecycle.WithRecorder(a.metrics)), nil
}
