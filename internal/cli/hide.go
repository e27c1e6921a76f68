package cli

import (
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/marcin-skalski/repo-manager/internal/clone"
	"github.com/marcin-skalski/repo-manager/internal/hidden"
	"github.com/marcin-skalski/repo-manager/internal/repository"
)

type hideOptions struct {
	cloned bool
	org    string
}

func (o hideOptions) domain() hidden.Domain {
	if o.cloned {
		return hidden.Cloned
	}
	return hidden.NotCloned
}

// newHideCommand builds "hide" or, with hide false, "unhide".
func newHideCommand(root *rootOptions, hide bool) *cobra.Command {
	verb, short, orgShort, repoShort := "hide", "Hide an organization or repository",
		"Hide an organization", "Hide a repository"
	if !hide {
		verb, short = "unhide", "Show a hidden organization or repository again"
		orgShort, repoShort = "Show a hidden organization again", "Show a hidden repository again"
	}
	opts := &hideOptions{}

	cmd := &cobra.Command{
		Use:   verb,
		Short: short,
	}
	cmd.PersistentFlags().BoolVar(&opts.cloned, "cloned", false, "act on the Cloned list instead of Not Cloned")

	orgCmd := &cobra.Command{
		Use:   "org <login>",
		Short: orgShort,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := newEnv(root.configPath, false)
			if err != nil {
				return err
			}
			defer e.Close()

			login := strings.TrimSpace(args[0])
			if login == "" {
				return fmt.Errorf("organization login is required")
			}
			s := e.app.Store(opts.domain())
			if hide {
				s.HideOrg(login)
			} else {
				s.UnhideOrg(login)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: org %s (%s)\n", verb, login, opts.domain())
			return nil
		},
	}

	repoCmd := &cobra.Command{
		Use:   "repo <owner/name|url>",
		Short: repoShort,
		Long: repoShort + `.

The repository is stored under the url GitHub reports for it, so owner and
name may be typed in any case. An entry that is already stored is matched
case-insensitively.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := clone.ParseRepositoryInput(args[0])
			if err != nil {
				return err
			}
			org := target.Owner
			if opts.org != "" {
				org = opts.org
			}

			e, err := newEnv(root.configPath, false)
			if err != nil {
				return err
			}
			defer e.Close()

			url := e.app.RepoURL(cmd.Context(), opts.domain(), org, target)
			s := e.app.Store(opts.domain())
			if hide {
				s.HideRepo(org, url)
			} else {
				s.UnhideRepo(org, url)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: repo %s (%s, %s)\n", verb, url, org, opts.domain())
			return nil
		},
	}
	repoCmd.Flags().StringVar(&opts.org, "org", "",
		fmt.Sprintf("org the repository is listed under, e.g. %q for cloned repositories of other owners", repository.OthersLogin))

	cmd.AddCommand(orgCmd, repoCmd)
	return cmd
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
