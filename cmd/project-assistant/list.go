package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	perrors "github.com/p-blackswan/project-assistant/internal/errors"
	"github.com/p-blackswan/project-assistant/internal/project"
	"github.com/p-blackswan/project-assistant/internal/render"
	"github.com/p-blackswan/project-assistant/internal/store"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored projects",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()

		rows, err := a.store.List(cmd.Context())
		if err != nil {
			return fmt.Errorf("list projects: %w", err)
		}
		render.New(cmd.OutOrStdout()).Projects(rows)
		return nil
	},
}

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Print a project's status without starting a session",
	Long: `Print where a project stands: the current proposal during planning,
or progress and action items during execution.

Examples:
  project-assistant show -p "Learn guitar"`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()

		name, err := project.ValidateName(projectName)
		if err != nil {
			return err
		}
		st, err := a.store.Load(cmd.Context(), project.GenerateSlug(name))
		if errors.Is(err, perrors.ErrNotFound) {
			return fmt.Errorf("no project named %q; start it with: project-assistant run -p %q", name, name)
		}
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		r := render.New(out)
		switch st.Phase {
		case project.PhaseDiscovery:
			fmt.Fprintf(out, "%s is in discovery: %d questions answered, understanding %d%%\n",
				st.Name, len(st.Discovery.QuestionsAsked), st.Discovery.UnderstandingScore)
		case project.PhasePlanning:
			r.Synthesis(st)
			r.Proposal(st)
		default:
			r.Status(st)
		}
		return printHistory(cmd.Context(), cmd, a.store, st.Slug)
	},
}

// eventLister is implemented by stores that keep a phase history.
type eventLister interface {
	Events(ctx context.Context, slug string) ([]store.Event, error)
}

func printHistory(ctx context.Context, cmd *cobra.Command, st store.StateStore, slug string) error {
	el, ok := st.(eventLister)
	if !ok {
		return nil
	}
	events, err := el.Events(ctx, slug)
	if err != nil {
		return fmt.Errorf("phase history: %w", err)
	}
	if len(events) == 0 {
		return nil
	}
	out := cmd.OutOrStdout()
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Phase history:")
	for _, e := range events {
		fmt.Fprintf(out, "  %s  %s -> %s\n", e.CreatedAt.Format("2006-01-02 15:04"), e.FromPhase, e.ToPhase)
	}
	return nil
}
