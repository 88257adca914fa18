package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/fulltext-search/internal/document"
	"github.com/Adithya-Monish-Kumar-K/fulltext-search/internal/search"
	"github.com/Adithya-Monish-Kumar-K/fulltext-search/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/fulltext-search/internal/searcher/ranker"
)

type searchOptions struct {
	index    string
	offset   int
	limit    int
	order    string
	strategy string
	prefixes bool
	docs     source
}

func newSearchCmd(opts *globalOptions) *cobra.Command {
	var so searchOptions

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search an index collection",
		Long: `Search an index collection and print the ranked matches.

Without --docs the persisted index is searched and matches are listed by
reference. With --docs the records are loaded first, so full documents are
returned and paginated with --strategy.

Examples:
  ftsctl search "+go -java" --index articles --backend bolt --data-dir ./data
  ftsctl search "'new york'" --index articles --docs posts.jsonl --order newest`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd, opts, so, strings.Join(args, " "))
		},
	}

	cmd.Flags().StringVarP(&so.index, "index", "i", "", "Index collection to search (required)")
	cmd.Flags().IntVar(&so.offset, "offset", 0, "Number of results to skip")
	cmd.Flags().IntVarP(&so.limit, "limit", "n", 10, "Maximum number of results, 0 for all")
	cmd.Flags().StringVar(&so.order, "order", "relevance", "Order: relevance, occurrences, newest, oldest")
	cmd.Flags().StringVar(&so.strategy, "strategy", "compatible-objects", "Pagination: null-if-incompatible, only-compatible, compatible-objects")
	cmd.Flags().BoolVar(&so.prefixes, "prefixes", false, "Treat every bare word as a prefix")
	cmd.Flags().StringVar(&so.docs.path, "docs", "", "JSON-lines records to load before searching")
	cmd.Flags().StringVarP(&so.docs.collection, "collection", "c", "documents", "Collection of the --docs records")
	_ = cmd.MarkFlagRequired("index")
	return cmd
}

func runSearch(cmd *cobra.Command, opts *globalOptions, so searchOptions, query string) error {
	ctx := cmd.Context()
	order, err := ranker.ParseOrder(so.order)
	if err != nil {
		return err
	}
	strategy, err := executor.ParseStrategy(so.strategy)
	if err != nil {
		return err
	}
	keywords, err := search.ParseKeywords(query, so.prefixes)
	if err != nil {
		return err
	}

	svc, err := opts.open(ctx)
	if err != nil {
		return err
	}
	defer svc.Close()

	out := cmd.OutOrStdout()
	start := time.Now()
	if so.docs.path == "" {
		hits, err := svc.Executor.Rank(ctx, so.index, order, keywords)
		if err != nil {
			return err
		}
		page := ranker.Window(hits, so.offset, so.limit)
		if opts.format == "json" {
			return writeJSON(out, map[string]any{"total": len(hits), "hits": page})
		}
		rows := make([][]string, len(page))
		for i, h := range page {
			rows[i] = []string{
				fmt.Sprint(so.offset + i + 1),
				h.Ref.Collection,
				h.Ref.ObjectID,
				fmt.Sprint(h.Occurrences),
				fmt.Sprint(h.Distinct),
				h.Created().UTC().Format(time.RFC3339),
			}
		}
		if err := table(out, []string{"RANK", "COLLECTION", "ID", "OCCURRENCES", "DISTINCT", "CREATED"}, rows); err != nil {
			return err
		}
		fmt.Fprintf(out, "%d of %d matches in %v\n", len(page), len(hits), time.Since(start).Round(time.Microsecond))
		return nil
	}

	so.docs.indexCollection = so.index
	so.docs.prepare(svc)
	if _, err := so.docs.load(ctx, svc); err != nil {
		return err
	}
	records, err := search.FullTextSearch[*document.Record](ctx, svc, so.index, so.offset, so.limit, order, strategy, keywords)
	if err != nil {
		return err
	}
	if opts.format == "json" {
		return writeJSON(out, map[string]any{"results": records})
	}
	rows := make([][]string, len(records))
	for i, rec := range records {
		if rec == nil {
			rows[i] = []string{fmt.Sprint(so.offset + i + 1), "-", "(incompatible)"}
			continue
		}
		rows[i] = []string{fmt.Sprint(so.offset + i + 1), rec.ID, summary(rec)}
	}
	return table(out, []string{"RANK", "ID", "SUMMARY"}, rows)
}

// summary returns the first field value, shortened for display.
func summary(rec *document.Record) string {
	if len(rec.Fields) == 0 {
		return ""
	}
	s := strings.Join(strings.Fields(fmt.Sprint(rec.Fields[0].Value)), " ")
	if r := []rune(s); len(r) > 60 {
		s = string(r[:57]) + "..."
	}
	return s
}
