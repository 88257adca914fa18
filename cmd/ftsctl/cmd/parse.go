package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/fulltext-search/internal/search"
	"github.com/Adithya-Monish-Kumar-K/fulltext-search/internal/searcher/parser"
)

func keywordType(k parser.Keyword) string {
	switch k.(type) {
	case *parser.Term:
		return "term"
	case *parser.Prefix:
		return "prefix"
	case *parser.Regex:
		return "regex"
	case *parser.Sequence:
		return "sequence"
	default:
		return "unknown"
	}
}

func newParseCmd(opts *globalOptions) *cobra.Command {
	var prefixes bool

	cmd := &cobra.Command{
		Use:   "parse <query>",
		Short: "Show how a query is split into keywords",
		Long: `Parse a query and list its keywords with their modifiers.

Examples:
  ftsctl parse "+go 'search engine' -java /colou?r/"
  ftsctl parse --prefixes "sea eng"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")
			keywords, err := search.ParseKeywords(query, prefixes)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if opts.format == "json" {
				type view struct {
					Type     string `json:"type"`
					Modifier string `json:"modifier"`
					Text     string `json:"text"`
				}
				views := make([]view, len(keywords))
				for i, k := range keywords {
					views[i] = view{keywordType(k), k.Modifier().String(), k.String()}
				}
				return writeJSON(out, map[string]any{
					"canonical": parser.Canonical(keywords),
					"keywords":  views,
				})
			}
			rows := make([][]string, len(keywords))
			for i, k := range keywords {
				rows[i] = []string{keywordType(k), k.Modifier().String(), k.String()}
			}
			if err := table(out, []string{"TYPE", "MODIFIER", "KEYWORD"}, rows); err != nil {
				return err
			}
			fmt.Fprintf(out, "canonical: %s\n", parser.Canonical(keywords))
			return nil
		},
	}

	cmd.Flags().BoolVar(&prefixes, "prefixes", false, "Treat every bare word as a prefix")
	return cmd
}
