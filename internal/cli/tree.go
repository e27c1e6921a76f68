package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/marcin-skalski/repo-manager/internal/hidden"
	"github.com/marcin-skalski/repo-manager/internal/tree"
)

func newTreeCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "tree",
		Short: "Load the catalog once and print the repositories tree",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runTree(cmd, opts)
		},
	}
}

func runTree(cmd *cobra.Command, opts *rootOptions) error {
	e, err := newEnv(opts.configPath, false)
	if err != nil {
		return err
	}
	defer e.Close()

	if err := e.loader.Reload(cmd.Context()); err != nil {
		return fmt.Errorf("load repositories: %w", err)
	}
	fmt.Fprint(cmd.OutOrStdout(), tree.Format(e.app.Snapshot().Roots))
	return nil
}

func newHiddenCommand(opts *rootOptions) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "hidden",
		Short: "Show the hidden organizations and repositories",
		Long:  `Show the hidden state of both lists without contacting GitHub.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := newEnv(opts.configPath, false)
			if err != nil {
				return err
			}
			defer e.Close()

			states := map[string]hidden.State{}
			for _, d := range []hidden.Domain{hidden.NotCloned, hidden.Cloned} {
				states[d.String()] = e.app.Store(d).Snapshot().State()
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(states)
			}
			printHidden(cmd.OutOrStdout(), "Not cloned", states[hidden.NotCloned.String()])
			printHidden(cmd.OutOrStdout(), "Cloned", states[hidden.Cloned.String()])
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "output in JSON format")
	return cmd
}

func printHidden(w io.Writer, title string, s hidden.State) {
	fmt.Fprintf(w, "%s:\n", title)
	if len(s.Orgs) == 0 && len(s.Repos) == 0 {
		fmt.Fprintln(w, "  nothing hidden")
		return
	}
	for _, org := range s.Orgs {
		fmt.Fprintf(w, "  org %s\n", org)
		for _, url := range s.OrgVisibleRepos[org] {
			fmt.Fprintf(w, "    shown %s\n", url)
		}
	}
	for _, org := range sortedKeys(s.Repos) {
		for _, url := range s.Repos[org] {
			fmt.Fprintf(w, "  repo %s (%s)\n", url, org)
		}
	}
}
