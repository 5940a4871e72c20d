package cmd

import (
	"errors"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/mangoplex/multipacks/internal/packs"
	"github.com/mangoplex/multipacks/internal/pool"
	"github.com/mangoplex/multipacks/internal/repository"
)

// fetchWorkers bounds the concurrent fetches of list packs --details.
const fetchWorkers = 4

func newListCommand(a *app) *cobra.Command {
	list := &cobra.Command{
		Use:   "list",
		Short: "List repositories or packs",
	}

	list.AddCommand(
		newListRepoCommand(a),
		newListPacksCommand(a),
	)

	return list
}

func newListRepoCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "repo",
		Short: "List the configured repositories and their indices",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			table := tablewriter.NewWriter(a.stdout)
			table.Header("#", "Repository")
			for i, repo := range a.configured {
				if err := table.Append([]string{"#" + strconv.Itoa(i), repo.String()}); err != nil {
					return err
				}
			}
			return table.Render()
		},
	}
}

func newListPacksCommand(a *app) *cobra.Command {
	var (
		id      string
		details bool
	)

	cmd := &cobra.Command{
		Use:   "packs [CONSTRAINT]",
		Short: "List the packs of the selected repositories",
		Long: `List the packs of the selected repositories.

With --filter only the packs with that identifier are listed. An optional
constraint such as ">=1.2.0" further limits the versions.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				ident  *packs.Identifier
				filter *packs.DependencyFilter
			)

			switch {
			case id != "" && len(args) == 1:
				f, err := packs.ParseFilterParts(id, args[0])
				if err != nil {
					return err
				}
				ident, filter = &f.ID, &f
			case id != "":
				i, err := packs.ParseIdentifier(id)
				if err != nil {
					return err
				}
				ident = &i
			case len(args) == 1:
				return errors.New("a version constraint requires --filter")
			}

			repos, err := a.repositories()
			if err != nil {
				return err
			}

			var indices []repository.Index
			for _, repo := range repos {
				found, err := repository.Collect(repo.Query(cmd.Context(), ident))
				if err != nil {
					return err
				}
				for _, idx := range found {
					if filter == nil || filter.Matches(idx.ID, idx.Version) {
						indices = append(indices, idx)
					}
				}
			}

			table := tablewriter.NewWriter(a.stdout)
			if !details {
				table.Header("ID", "Version", "Repository")
				for _, idx := range indices {
					if err := table.Append([]string{idx.ID.String(), idx.Version.String(), idx.Repository.String()}); err != nil {
						return err
					}
				}
				return table.Render()
			}

			p := pool.New(fetchWorkers)
			defer p.Close()

			fetched, err := repository.Prefetch(cmd.Context(), p, indices)
			if err != nil {
				return err
			}

			table.Header("ID", "Version", "Name", "Description", "Repository")
			for i, pack := range fetched {
				if err := table.Append([]string{pack.ID.String(), pack.Version.String(), pack.Name, pack.Description, indices[i].Repository.String()}); err != nil {
					return err
				}
			}
			return table.Render()
		},
	}

	cmd.Flags().StringVarP(&id, "filter", "F", "", "only list packs with this identifier")
	cmd.Flags().BoolVarP(&details, "details", "d", false, "fetch the packs to show their names and descriptions")

	return cmd
}
