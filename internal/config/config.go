// Package config loads assistant configuration from PA_* environment
// variables and an optional YAML file.
package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// Prefix is prepended to every environment variable name.
const Prefix = "PA"

// Config holds all application configuration.
type Config struct {
	// General
	DataDir      string `envconfig:"DATA_DIR" default:".data/project_assistant"`
	StoreBackend string `envconfig:"STORE_BACKEND" default:"file"` // "file" or "sqlite"
	LogLevel     string `envconfig:"LOG_LEVEL" default:"info"`
	MetricsFile  string `envconfig:"METRICS_FILE"`
	ConfigFile   string `envconfig:"CONFIG_FILE"`

	// LLM
	LLMProvider     string `envconfig:"LLM_PROVIDER" default:"anthropic"` // "anthropic" or "openai"
	LLMModel        string `envconfig:"LLM_MODEL"`
	LLMMaxTokens    int    `envconfig:"LLM_MAX_TOKENS" default:"4096"`
	AnthropicAPIKey string `envconfig:"ANTHROPIC_API_KEY"`
	OpenAIAPIKey    string `envconfig:"OPENAI_API_KEY"`
	OpenAIBaseURL   string `envconfig:"OPENAI_BASE_URL"`

	// Gateway retries
	GatewayMaxAttempts int           `envconfig:"GATEWAY_MAX_ATTEMPTS" default:"3"`
	GatewayBaseDelay   time.Duration `envconfig:"GATEWAY_BASE_DELAY" default:"500ms"`
	GatewayMaxDelay    time.Duration `envconfig:"GATEWAY_MAX_DELAY" default:"10s"`
	GatewayTimeout     time.Duration `envconfig:"GATEWAY_TIMEOUT" default:"120s"`
}

// fileConfig is the YAML layout. Zero values leave the environment value in
// place.
type fileConfig struct {
	DataDir      string `yaml:"data_dir"`
	StoreBackend string `yaml:"store_backend"`
	LogLevel     string `yaml:"log_level"`
	MetricsFile  string `yaml:"metrics_file"`

	LLM struct {
		Provider        string `yaml:"provider"`
		Model           string `yaml:"model"`
		MaxTokens       int    `yaml:"max_tokens"`
		AnthropicAPIKey string `yaml:"anthropic_api_key"`
		OpenAIAPIKey    string `yaml:"openai_api_key"`
		OpenAIBaseURL   string `yaml:"openai_base_url"`
	} `yaml:"llm"`

	Gateway struct {
		MaxAttempts int           `yaml:"max_attempts"`
		BaseDelay   time.Duration `yaml:"base_delay"`
		MaxDelay    time.Duration `yaml:"max_delay"`
		Timeout     time.Duration `yaml:"timeout"`
	} `yaml:"gateway"`
}

// Load reads the environment and, when path (or PA_CONFIG_FILE) names a
// file, overlays the values set in it.
func Load(path string) (*Config, error) {
	var cfg Config
	if err := envconfig.Process(Prefix, &cfg); err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if path == "" {
		path = cfg.ConfigFile
	}
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := cfg.overlay(raw); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
		cfg.ConfigFile = path
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// overlay applies the non-zero values of a YAML document, expanding
// environment references first.
func (c *Config) overlay(raw []byte) error {
	var fc fileConfig
	if err := yaml.Unmarshal([]byte(expandEnvVars(string(raw))), &fc); err != nil {
		return err
	}
	setString(&c.DataDir, fc.DataDir)
	setString(&c.StoreBackend, fc.StoreBackend)
	setString(&c.LogLevel, fc.LogLevel)
	setString(&c.MetricsFile, fc.MetricsFile)

	setString(&c.LLMProvider, fc.LLM.Provider)
	setString(&c.LLMModel, fc.LLM.Model)
	setString(&c.AnthropicAPIKey, fc.LLM.AnthropicAPIKey)
	setString(&c.OpenAIAPIKey, fc.LLM.OpenAIAPIKey)
	setString(&c.OpenAIBaseURL, fc.LLM.OpenAIBaseURL)
	if fc.LLM.MaxTokens > 0 {
		c.LLMMaxTokens = fc.LLM.MaxTokens
	}

	if fc.Gateway.MaxAttempts > 0 {
		c.GatewayMaxAttempts = fc.Gateway.MaxAttempts
	}
	if fc.Gateway.BaseDelay > 0 {
		c.GatewayBaseDelay = fc.Gateway.BaseDelay
	}
	if fc.Gateway.MaxDelay > 0 {
		c.GatewayMaxDelay = fc.Gateway.MaxDelay
	}
	if fc.Gateway.Timeout > 0 {
		c.GatewayTimeout = fc.Gateway.Timeout
	}
	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

// Validate checks enumerated and numeric settings.
func (c *Config) Validate() error {
	switch c.StoreBackend {
	case "file", "sqlite":
	default:
		return fmt.Errorf("config: store backend must be file or sqlite, got %q", c.StoreBackend)
	}
	switch c.LLMProvider {
	case "anthropic", "openai":
	default:
		return fmt.Errorf("config: llm provider must be anthropic or openai, got %q", c.LLMProvider)
	}
	if _, err := zerolog.ParseLevel(strings.ToLower(c.LogLevel)); err != nil {
		return fmt.Errorf("config: log level: %w", err)
	}
	if c.GatewayMaxAttempts < 1 {
		return fmt.Errorf("config: gateway max attempts must be at least 1")
	}
	if c.DataDir == "" {
		return fmt.Errorf("config: data dir is required")
	}
	return nil
}

// Level returns the configured log level, defaulting to info.
func (c *Config) Level() zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(c.LogLevel))
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

// envVarPattern matches ${VAR_NAME} and $VAR_NAME.
var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}|\$([A-Za-z_][A-Za-z0-9_]*)`)

// expandEnvVars replaces ${VAR} and $VAR with the environment value. Missing
// vars become empty strings.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		name := strings.TrimPrefix(match, "${")
		name = strings.TrimSuffix(name, "}")
		name = strings.TrimPrefix(name, "$")
		return os.Getenv(name)
	})
}
