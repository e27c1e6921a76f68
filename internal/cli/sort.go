package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marcin-skalski/repo-manager/internal/sortorder"
)

func newSortCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:       "sort [alphabetical|lastUpdated]",
		Short:     "Show or set the repository sort order",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{string(sortorder.Alphabetical), string(sortorder.LastUpdated)},
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := newEnv(opts.configPath, false)
			if err != nil {
				return err
			}
			defer e.Close()

			if len(args) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), e.app.SortOrder())
				return nil
			}

			order, err := sortorder.Parse(args[0])
			if err != nil {
				return err
			}
			if err := e.app.SetSort(order); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), order)
			return nil
		},
	}
}
