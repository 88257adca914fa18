package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/fulltext-search/internal/document"
	"github.com/Adithya-Monish-Kumar-K/fulltext-search/internal/indexer/tokenizer"
	apperrors "github.com/Adithya-Monish-Kumar-K/fulltext-search/pkg/errors"
)

func newTokenizeCmd(opts *globalOptions) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "tokenize [text...]",
		Short: "Show the tokens and positions a document is indexed with",
		Long: `Tokenize text given as arguments, or a JSON record read with --file.

Examples:
  ftsctl tokenize "Pelé scored twice"
  ftsctl tokenize --file record.json --format json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			var rec *document.Record
			switch {
			case file != "":
				data, err := os.ReadFile(file)
				if err != nil {
					return err
				}
				rec = &document.Record{}
				if err := json.Unmarshal(data, rec); err != nil {
					return fmt.Errorf("decoding %s: %w", file, err)
				}
			case len(args) > 0:
				rec = document.Text("-", time.Time{}, "text", strings.Join(args, " "))
			default:
				return fmt.Errorf("nothing to tokenize: pass text or --file")
			}

			var skipped []string
			counts := tokenizer.Count(rec.ID, rec.FullTextFields(), func(err *apperrors.FieldError) {
				skipped = append(skipped, err.Error())
			})

			out := cmd.OutOrStdout()
			if opts.format == "json" {
				return writeJSON(out, map[string]any{"tokens": counts, "skipped": skipped})
			}
			rows := make([][]string, len(counts))
			for i, c := range counts {
				rows[i] = []string{c.Token, fmt.Sprint(len(c.DocIndex)), joinInts(c.DocIndex)}
			}
			if err := table(out, []string{"TOKEN", "COUNT", "POSITIONS"}, rows); err != nil {
				return err
			}
			for _, s := range skipped {
				fmt.Fprintln(cmd.ErrOrStderr(), "skipped:", s)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&file, "file", "", "JSON record to tokenize")
	return cmd
}
