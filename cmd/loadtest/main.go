// Command loadtest drives the search API with a rotating mix of keyword
// queries, orders and pagination offsets and prints a latency report.
// With -seed it first PUTs synthetic documents so the run has something to
// match.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"os"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Adithya-Monish-Kumar-K/fulltext-search/internal/document"
)

type Config struct {
	BaseURL     string
	Index       string
	Collection  string
	Concurrency int
	Duration    time.Duration
	Seed        int
	Queries     []string
	Orders      []string
}

var defaultQueries = []string{
	"search engine",
	"+inverted index",
	"'full text'",
	"token* ranking",
	"/pagina(te|tion)/",
	"+query -cache",
	"'new york' travel",
	"diacritics accents",
	"+document* +index",
	"relevance occurrences",
}

var seedWords = []string{
	"search", "engine", "inverted", "index", "full", "text", "token", "tokens",
	"ranking", "paginate", "pagination", "query", "cache", "new", "york",
	"travel", "diacritics", "accents", "document", "documents", "relevance",
	"occurrences", "Pelé", "Zürich",
}

// Stats aggregates request outcomes across workers.
type Stats struct {
	total   atomic.Int64
	success atomic.Int64
	failed  atomic.Int64

	mu        sync.Mutex
	latencies []time.Duration
	codes     map[int]int64
}

func NewStats() *Stats {
	return &Stats{
		latencies: make([]time.Duration, 0, 100000),
		codes:     make(map[int]int64),
	}
}

func (s *Stats) Record(d time.Duration, status int, err error) {
	s.total.Add(1)
	if err != nil {
		s.failed.Add(1)
		return
	}
	if status >= 200 && status < 300 {
		s.success.Add(1)
	} else {
		s.failed.Add(1)
	}

	s.mu.Lock()
	s.latencies = append(s.latencies, d)
	s.codes[status]++
	s.mu.Unlock()
}

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "base URL of the search service")
	indexName := flag.String("index", "documents", "index collection to query")
	collection := flag.String("collection", "documents", "collection that -seed writes to")
	concurrency := flag.Int("concurrency", 10, "number of concurrent workers")
	duration := flag.Duration("duration", 30*time.Second, "test duration")
	seed := flag.Int("seed", 0, "number of synthetic documents to PUT before the run")
	orders := flag.String("orders", "relevance,occurrences,newest,oldest", "comma-separated orders to rotate through")
	flag.Parse()

	cfg := Config{
		BaseURL:     strings.TrimRight(*baseURL, "/"),
		Index:       *indexName,
		Collection:  *collection,
		Concurrency: *concurrency,
		Duration:    *duration,
		Seed:        *seed,
		Queries:     defaultQueries,
		Orders:      strings.Split(*orders, ","),
	}

	fmt.Println("=== Search Load Test ===")
	fmt.Printf("Target:      %s (index %s)\n", cfg.BaseURL, cfg.Index)
	fmt.Printf("Concurrency: %d\n", cfg.Concurrency)
	fmt.Printf("Duration:    %s\n", cfg.Duration)
	fmt.Printf("Queries:     %d unique, orders %s\n", len(cfg.Queries), strings.Join(cfg.Orders, ","))
	fmt.Println()

	client := newClient(cfg.Concurrency)
	if cfg.Seed > 0 {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		n, err := seedDocuments(ctx, client, cfg)
		cancel()
		if err != nil {
			fmt.Fprintf(os.Stderr, "seeding failed after %d documents: %v\n", n, err)
			os.Exit(1)
		}
		fmt.Printf("Seeded %d documents into %s\n\n", n, cfg.Collection)
	}

	stats := runLoadTest(context.Background(), client, cfg)
	if !printReport(os.Stdout, stats, cfg.Duration) {
		os.Exit(1)
	}
}

func newClient(concurrency int) *http.Client {
	return &http.Client{
		Timeout: 10 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        concurrency * 2,
			MaxIdleConnsPerHost: concurrency * 2,
			IdleConnTimeout:     90 * time.Second,
		},
	}
}

// syntheticRecord builds document i from a deterministic word mix so that
// every default query matches part of the corpus.
func syntheticRecord(i int) *document.Record {
	word := func(k int) string { return seedWords[(i*7+k*13)%len(seedWords)] }
	title := fmt.Sprintf("%s %s", word(0), word(1))
	body := fmt.Sprintf("%s %s %s %s %s", word(2), word(3), word(4), word(0), word(5))
	return document.Text(fmt.Sprintf("load-%06d", i), time.Unix(1_700_000_000+int64(i)*60, 0).UTC(),
		"Title", title, "Body", body)
}

func seedDocuments(ctx context.Context, client *http.Client, cfg Config) (int, error) {
	endpoint := fmt.Sprintf("%s/api/v1/collections/%s/documents", cfg.BaseURL, url.PathEscape(cfg.Collection))
	for i := 0; i < cfg.Seed; i++ {
		body, err := json.Marshal(syntheticRecord(i))
		if err != nil {
			return i, err
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPut, endpoint, bytes.NewReader(body))
		if err != nil {
			return i, err
		}
		req.Header.Set("Content-Type", "application/json")
		resp, err := client.Do(req)
		if err != nil {
			return i, err
		}
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		if resp.StatusCode >= 300 {
			return i, fmt.Errorf("PUT %s: status %d", endpoint, resp.StatusCode)
		}
	}
	return cfg.Seed, nil
}

// searchURL returns the n-th request of a worker. Offsets cycle through the
// first three pages.
func searchURL(cfg Config, n int) string {
	v := url.Values{}
	v.Set("index", cfg.Index)
	v.Set("q", cfg.Queries[n%len(cfg.Queries)])
	v.Set("order", cfg.Orders[n%len(cfg.Orders)])
	v.Set("limit", "10")
	v.Set("offset", fmt.Sprint((n%3)*10))
	return cfg.BaseURL + "/api/v1/search?" + v.Encode()
}

func runLoadTest(parent context.Context, client *http.Client, cfg Config) *Stats {
	stats := NewStats()
	ctx, cancel := context.WithTimeout(parent, cfg.Duration)
	defer cancel()

	var wg sync.WaitGroup
	for w := 0; w < cfg.Concurrency; w++ {
		wg.Go(func() {
			for n := w; ctx.Err() == nil; n++ {
				req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL(cfg, n), nil)
				if err != nil {
					stats.Record(0, 0, err)
					return
				}
				start := time.Now()
				resp, err := client.Do(req)
				elapsed := time.Since(start)
				if err != nil {
					if ctx.Err() != nil {
						return
					}
					stats.Record(elapsed, 0, err)
					continue
				}
				io.Copy(io.Discard, resp.Body)
				resp.Body.Close()
				stats.Record(elapsed, resp.StatusCode, nil)
			}
		})
	}
	wg.Wait()
	return stats
}

// printReport writes the summary and reports whether any request completed.
func printReport(w io.Writer, stats *Stats, duration time.Duration) bool {
	total := stats.total.Load()
	failed := stats.failed.Load()

	fmt.Fprintln(w, "=== Results ===")
	fmt.Fprintf(w, "Total Requests:  %d\n", total)
	fmt.Fprintf(w, "Successful:      %d\n", stats.success.Load())
	fmt.Fprintf(w, "Errors:          %d\n", failed)
	if total > 0 {
		fmt.Fprintf(w, "Error Rate:      %.2f%%\n", float64(failed)/float64(total)*100)
		fmt.Fprintf(w, "Requests/sec:    %.2f\n", float64(total)/duration.Seconds())
	}

	stats.mu.Lock()
	latencies := slices.Clone(stats.latencies)
	codes := make(map[int]int64, len(stats.codes))
	for k, v := range stats.codes {
		codes[k] = v
	}
	stats.mu.Unlock()

	if len(latencies) > 0 {
		slices.Sort(latencies)
		var sum time.Duration
		for _, l := range latencies {
			sum += l
		}
		avg := sum / time.Duration(len(latencies))
		var sq float64
		for _, l := range latencies {
			d := float64(l - avg)
			sq += d * d
		}

		fmt.Fprintln(w)
		fmt.Fprintln(w, "=== Latency ===")
		fmt.Fprintf(w, "Min:    %s\n", latencies[0])
		fmt.Fprintf(w, "Avg:    %s\n", avg)
		for _, p := range []float64{50, 90, 95, 99} {
			fmt.Fprintf(w, "P%-2.0f:    %s\n", p, percentile(latencies, p))
		}
		fmt.Fprintf(w, "Max:    %s\n", latencies[len(latencies)-1])
		fmt.Fprintf(w, "StdDev: %s\n", time.Duration(math.Sqrt(sq/float64(len(latencies)))))
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "=== Status Codes ===")
	keys := make([]int, 0, len(codes))
	for code := range codes {
		keys = append(keys, code)
	}
	slices.Sort(keys)
	for _, code := range keys {
		fmt.Fprintf(w, "  %d: %d\n", code, codes[code])
	}

	if total == 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "WARNING: No requests completed. Is the service running?")
		return false
	}
	return true
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(math.Ceil(p/100*float64(len(sorted)))) - 1
	return sorted[min(max(idx, 0), len(sorted)-1)]
}
