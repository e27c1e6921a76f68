package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marcin-skalski/repo-manager/internal/clone"
)

func newCloneCommand(opts *rootOptions) *cobra.Command {
	var into string
	cmd := &cobra.Command{
		Use:   "clone <owner/name|url>",
		Short: "Clone a GitHub repository into the clone directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := clone.ParseRepositoryInput(args[0])
			if err != nil {
				return err
			}

			e, err := newEnv(opts.configPath, false)
			if err != nil {
				return err
			}
			defer e.Close()

			dir, err := e.app.CloneInto(cmd.Context(), target, into)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Cloned %s to %s\n", target, dir)
			return nil
		},
	}
	cmd.Flags().StringVar(&into, "into", "", "parent directory (defaults to clone_dir)")
	return cmd
}
