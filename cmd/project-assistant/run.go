package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	perrors "github.com/p-blackswan/project-assistant/internal/errors"
	"github.com/p-blackswan/project-assistant/internal/session"
	"github.com/p-blackswan/project-assistant/internal/store"
)

var projectName string

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start or resume a project session",
	Long: `Start a new project or resume an existing one.

Examples:
  # Start a project
  project-assistant run -p "Learn guitar"

  # Resume it later with the same name
  project-assistant run -p "Learn guitar"`,
	RunE: runSession,
}

func init() {
	for _, c := range []*cobra.Command{runCmd, showCmd} {
		c.Flags().StringVarP(&projectName, "project", "p", "", "project name")
		_ = c.MarkFlagRequired("project")
	}
}

func runSession(cmd *cobra.Command, _ []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	m, err := a.machine()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s := session.New(m, a.store, store.NewArtifacts(a.cfg.DataDir), cmd.InOrStdin(), cmd.OutOrStdout(), a.logger)
	err = s.Run(ctx, projectName)
	switch {
	case err == nil, errors.Is(err, context.Canceled):
		return nil
	case errors.Is(err, perrors.ErrStoreCorrupt):
		a.metrics.RecordError("store", "corrupt")
		a.logger.Error().Err(err).Msg("project state is corrupt")
		return fmt.Errorf("%w\nThe state file needs manual repair; nothing was changed", err)
	case perrors.IsValidation(err):
		return err
	}
	a.metrics.RecordError("session", "fatal")
	a.logger.Error().Err(err).Msg("session ended with error")
	return err
}
