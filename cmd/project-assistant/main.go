// Package main is the project-assistant command line.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/p-blackswan/project-assistant/internal/config"
)

var (
	dataDir    string
	configPath string
	verbose    bool

	version = "dev"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "project-assistant",
	Short: "Interactive assistant that takes a project from idea to tracked plan",
	Long: `project-assistant guides a project through three phases:

  discovery  questions until the goals are understood
  planning   a researched proposal, refined with your feedback
  execution  action items with dependencies, check-ins and adjustments

State is saved after every step; run the same project again to resume.`,
	Version:      version,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "directory for project state (overrides PA_DATA_DIR)")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "YAML config file (overrides PA_CONFIG_FILE)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "also write logs to stderr")
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(showCmd)
}

// loadConfig resolves configuration and applies command line overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if dataDir != "" {
		cfg.DataDir = dataDir
	}
	return cfg, nil
}

// newLogger writes JSON logs to <data-dir>/assistant.log and, when verbose,
// human-readable logs to stderr. The returned func closes the log file.
func newLogger(cfg *config.Config) (zerolog.Logger, func(), error) {
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return zerolog.Nop(), nil, fmt.Errorf("create data dir: %w", err)
	}
	f, err := os.OpenFile(filepath.Join(cfg.DataDir, "assistant.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return zerolog.Nop(), nil, fmt.Errorf("open log file: %w", err)
	}

	var w = zerolog.MultiLevelWriter(f)
	if verbose {
		w = zerolog.MultiLevelWriter(f, zerolog.ConsoleWriter{Out: os.Stderr})
	}
	logger := zerolog.New(w).Level(cfg.Level()).With().Timestamp().Logger()
	return logger, func() { _ = f.Close() }, nil
}
