package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/fulltext-search/internal/indexer/index"
)

func newStatsCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stats <index-collection>...",
		Short: "Show token and document counts of index collections",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			svc, err := opts.open(ctx)
			if err != nil {
				return err
			}
			defer svc.Close()

			all := make([]index.Stats, 0, len(args))
			for _, name := range args {
				store, err := svc.Registry.Store(ctx, name)
				if err != nil {
					return err
				}
				st, err := store.Stats(ctx)
				if err != nil {
					return err
				}
				all = append(all, st)
			}

			if opts.format == "json" {
				return writeJSON(cmd.OutOrStdout(), all)
			}
			rows := make([][]string, len(all))
			for i, st := range all {
				rows[i] = []string{st.Name, fmt.Sprint(st.Tokens), fmt.Sprint(st.Documents)}
			}
			return table(cmd.OutOrStdout(), []string{"INDEX", "TOKENS", "DOCUMENTS"}, rows)
		},
	}
}
