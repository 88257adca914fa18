package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newReindexCmd(opts *globalOptions) *cobra.Command {
	var docs []string

	cmd := &cobra.Command{
		Use:   "reindex <index-collection>",
		Short: "Rebuild an index collection from JSON-lines records",
		Long: `Clear an index collection and index every record of the given files.
Each --docs value is collection=path; every collection is mapped to the
index collection being rebuilt.

Example:
  ftsctl reindex articles --docs posts=posts.jsonl --docs notes=notes.jsonl --backend badger --data-dir ./data`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			indexName := args[0]

			sources := make([]source, 0, len(docs))
			for _, d := range docs {
				collection, path, ok := strings.Cut(d, "=")
				if !ok || collection == "" || path == "" {
					return fmt.Errorf("invalid --docs %q: want collection=path", d)
				}
				sources = append(sources, source{collection: collection, indexCollection: indexName, path: path})
			}

			svc, err := opts.open(ctx)
			if err != nil {
				return err
			}
			defer svc.Close()

			// The rebuild starts from an empty index, so entries of records
			// missing from the files disappear.
			for _, src := range sources {
				src.prepare(svc)
			}
			for _, src := range sources {
				if _, err := src.load(ctx, svc); err != nil {
					return err
				}
			}
			n, err := svc.Indexer.ReindexCollection(ctx, indexName)
			if err != nil {
				return err
			}

			if opts.format == "json" {
				return writeJSON(cmd.OutOrStdout(), map[string]any{"index": indexName, "indexed": n})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "reindexed %s: %d records\n", indexName, n)
			return nil
		},
	}

	cmd.Flags().StringArrayVar(&docs, "docs", nil, "collection=path of JSON-lines records (repeatable, required)")
	_ = cmd.MarkFlagRequired("docs")
	return cmd
}
