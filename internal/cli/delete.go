package cli

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/marcin-skalski/repo-manager/internal/clone"
)

func newDeleteCommand(opts *rootOptions) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "delete <owner/name|path>",
		Short: "Delete a local clone",
		Long: `Delete a local clone, given as its directory or as owner/name looked up in
the search paths. Asks for confirmation unless --yes is set, with a stronger
warning when the clone has uncommitted changes.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := newEnv(opts.configPath, false)
			if err != nil {
				return err
			}
			defer e.Close()

			path, name, err := resolveClone(cmd, e, args[0])
			if err != nil {
				return err
			}

			title, detail := clone.DeletePrompt(name, e.app.CloneStatus(path))
			if !yes {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\n%s\n%s\nType y to confirm: ", title, detail, path)
				answer, _ := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				answer = strings.ToLower(strings.TrimSpace(answer))
				if answer != "y" && answer != "yes" {
					fmt.Fprintln(cmd.OutOrStdout(), "Delete cancelled")
					return nil
				}
			}

			if err := e.app.DeleteClone(path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Locally deleted %s (%s)\n", name, path)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "delete without asking")
	return cmd
}

// resolveClone returns the directory and display name of the clone arg
// names. An existing directory is taken as is.
func resolveClone(cmd *cobra.Command, e *env, arg string) (path, name string, err error) {
	if fi, statErr := os.Stat(arg); statErr == nil && fi.IsDir() {
		abs, err := filepath.Abs(arg)
		if err != nil {
			return "", "", fmt.Errorf("resolve %s: %w", arg, err)
		}
		return abs, filepath.Base(abs), nil
	}

	target, err := clone.ParseRepositoryInput(arg)
	if err != nil {
		return "", "", err
	}
	r, err := e.app.FindClone(cmd.Context(), target)
	if err != nil {
		return "", "", err
	}
	return r.LocalPath, r.Name, nil
}
