// Package cli holds the repo-manager commands.
package cli

import (
	"context"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/marcin-skalski/repo-manager/internal/config"
	"github.com/marcin-skalski/repo-manager/internal/tui"
)

type rootOptions struct {
	configPath string
	noTUI      bool
}

// NewRootCommand builds the command tree.
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "repo-manager",
		Short: "Browse, clone, hide and unhide your GitHub repositories",
		Long: `repo-manager lists the repositories of your GitHub account and organizations,
split into those cloned locally and those that are not. Organizations and
repositories you do not care about can be hidden; they stay reachable under
the Hidden section of each list.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !opts.noTUI && os.Getenv("REPO_MANAGER_TUI") != "0" &&
				isatty.IsTerminal(os.Stdin.Fd()) && isatty.IsTerminal(os.Stdout.Fd()) {
				return runTUI(cmd.Context(), opts)
			}
			return runTree(cmd, opts)
		},
	}

	cmd.PersistentFlags().StringVar(&opts.configPath, "config", config.DefaultPath(), "path to config file")
	cmd.PersistentFlags().BoolVar(&opts.noTUI, "no-tui", false, "print the tree instead of starting the interactive view")

	cmd.AddCommand(
		newTUICommand(opts),
		newTreeCommand(opts),
		newHiddenCommand(opts),
		newHideCommand(opts, true),
		newHideCommand(opts, false),
		newSortCommand(opts),
		newCloneCommand(opts),
		newDeleteCommand(opts),
	)
	return cmd
}

// Execute runs the root command with ctx.
func Execute(ctx context.Context) error {
	return NewRootCommand().ExecuteContext(ctx)
}

func newTUICommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "tui",
		Short: "Start the interactive tree",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runTUI(cmd.Context(), opts)
		},
	}
}

func runTUI(ctx context.Context, opts *rootOptions) error {
	e, err := newEnv(opts.configPath, true)
	if err != nil {
		return err
	}
	defer e.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	e.runBackground(ctx)

	e.logger.Info("repo-manager starting", "config", opts.configPath, "state", e.cfg.StateFile)
	return tui.Run(ctx, e.app, e.app.OnChange, e.cfg.TUI.RefreshInterval)
}
