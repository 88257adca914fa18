package cmd

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/fulltext-search/internal/document"
	"github.com/Adithya-Monish-Kumar-K/fulltext-search/internal/search"
)

const maxLineBytes = 16 << 20

// source is one JSON-lines file of records belonging to a collection.
type source struct {
	collection      string
	indexCollection string
	path            string
}

func (s source) prepare(svc *search.Service) {
	if s.indexCollection != "" {
		svc.Indexer.SetFullTextSearchIndexCollection(s.collection, s.indexCollection)
		return
	}
	svc.Indexer.AddFullTextSearch(s.collection)
}

// load puts every record of the file into the object store, which indexes
// it. Lines that fail to decode or validate abort the load.
func (s source) load(ctx context.Context, svc *search.Service) (int, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	return loadRecords(ctx, svc, s.collection, f, s.path)
}

func loadRecords(ctx context.Context, svc *search.Service, collection string, r io.Reader, name string) (int, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	n, line := 0, 0
	for sc.Scan() {
		line++
		if len(sc.Bytes()) == 0 {
			continue
		}
		var rec document.Record
		if err := json.Unmarshal(sc.Bytes(), &rec); err != nil {
			return n, fmt.Errorf("%s:%d: %w", name, line, err)
		}
		if err := rec.Validate(); err != nil {
			return n, fmt.Errorf("%s:%d: %w", name, line, err)
		}
		if err := svc.Objects.Put(ctx, collection, &rec); err != nil {
			return n, fmt.Errorf("%s:%d: %w", name, line, err)
		}
		n++
	}
	if err := sc.Err(); err != nil {
		return n, fmt.Errorf("reading %s: %w", name, err)
	}
	return n, nil
}

func newIndexCmd(opts *globalOptions) *cobra.Command {
	var src source

	cmd := &cobra.Command{
		Use:   "index <file.jsonl>",
		Short: "Index JSON-lines records into an index collection",
		Long: `Read one record per line and index it. Records with an id that is
already indexed replace the earlier version.

Examples:
  ftsctl index posts.jsonl --collection posts --backend bolt --data-dir ./data
  ftsctl index notes.jsonl --collection notes --index-collection articles`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			src.path = args[0]
			svc, err := opts.open(ctx)
			if err != nil {
				return err
			}
			src.prepare(svc)
			n, err := src.load(ctx, svc)
			if cerr := svc.Close(); err == nil {
				err = cerr
			}
			if err != nil {
				return err
			}

			indexName, _ := svc.Indexer.IndexCollection(src.collection)
			if opts.format == "json" {
				return writeJSON(cmd.OutOrStdout(), map[string]any{"index": indexName, "collection": src.collection, "indexed": n})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "indexed %d records from %s into %s\n", n, src.collection, indexName)
			return nil
		},
	}

	cmd.Flags().StringVarP(&src.collection, "collection", "c", "documents", "Collection the records belong to")
	cmd.Flags().StringVar(&src.indexCollection, "index-collection", "", "Index collection (defaults to the configured mapping or the collection name)")
	return cmd
}
