// Command benchmark drives the search endpoint with a fixed query set and
// reports latency percentiles. Intended for sizing the directory indexes
// before a release, not for CI.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"sort"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/alitto/pond/v2"
)

const defaultBaseURL = "http://localhost:8080"

type Config struct {
	BaseURL     string
	QueryFile   string
	Requests    int           // Total number of requests to issue
	Concurrency int           // Number of concurrent workers
	Timeout     time.Duration // Per-request timeout
	IncludeEng  bool          // Pass eng=1 on every request
	Fuzzy       bool          // Pass fuzzy=1 on every request
	OutputFile  string        // Output markdown file path (optional)
}

// defaultQueries cover the interesting scan shapes: short Hangul prefixes,
// full names, substrings that miss the prefix pass, and ASCII.
var defaultQueries = []string{
	"삼성", "삼성전자", "카카오", "현대", "엘지",
	"전자", "바이오", "케미칼", "Samsung", "Kakao",
}

type sample struct {
	duration time.Duration
	status   int
	count    int
	err      error
}

type report struct {
	Total     int
	Failed    int
	NonOK     int
	Hits      int
	Elapsed   time.Duration
	Durations []time.Duration
}

func parseFlags() Config {
	var cfg Config
	flag.StringVar(&cfg.BaseURL, "url", defaultBaseURL, "Base URL of the API server")
	flag.StringVar(&cfg.QueryFile, "queries", "", "File with one search query per line (defaults to a built-in set)")
	flag.IntVar(&cfg.Requests, "n", 1000, "Total number of requests")
	flag.IntVar(&cfg.Concurrency, "concurrency", 10, "Number of concurrent workers")
	flag.DurationVar(&cfg.Timeout, "timeout", 5*time.Second, "Per-request timeout")
	flag.BoolVar(&cfg.IncludeEng, "eng", false, "Include English names in the scan")
	flag.BoolVar(&cfg.Fuzzy, "fuzzy", false, "Use fuzzy matching")
	flag.StringVar(&cfg.OutputFile, "output", "", "Write a markdown report to this path")
	flag.Parse()
	return cfg
}

func main() {
	cfg := parseFlags()

	queries := defaultQueries
	if cfg.QueryFile != "" {
		loaded, err := loadQueries(cfg.QueryFile)
		if err != nil {
			fmt.Printf("Error loading queries: %v\n", err)
			os.Exit(1)
		}
		queries = loaded
	}
	if len(queries) == 0 {
		fmt.Println("Error: no queries to run")
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Println("\n\nReceived interrupt signal, shutting down...")
		cancel()
	}()

	client := &http.Client{Timeout: cfg.Timeout}

	fmt.Printf("Target: %s (queries: %d, requests: %d, concurrency: %d)\n",
		cfg.BaseURL, len(queries), cfg.Requests, cfg.Concurrency)

	var mu sync.Mutex
	samples := make([]sample, 0, cfg.Requests)

	pool := pond.NewPool(cfg.Concurrency, pond.WithContext(ctx))
	start := time.Now()
	for i := 0; i < cfg.Requests; i++ {
		query := queries[i%len(queries)]
		pool.Submit(func() {
			s := runQuery(ctx, client, cfg, query)
			mu.Lock()
			samples = append(samples, s)
			mu.Unlock()
		})
	}
	pool.StopAndWait()
	elapsed := time.Since(start)

	rep := summarize(samples, elapsed)

	fmt.Println("\n" + strings.Repeat("=", 60))
	fmt.Println("BENCHMARK RESULTS")
	fmt.Println(strings.Repeat("=", 60))
	fmt.Print(renderReport(rep))

	if cfg.OutputFile != "" {
		if err := writeMarkdownReport(cfg.OutputFile, cfg, rep); err != nil {
			fmt.Printf("Warning: failed to write markdown file: %v\n", err)
		} else {
			fmt.Printf("Report written to: %s\n", cfg.OutputFile)
		}
	}

	if rep.Failed > 0 || rep.NonOK > 0 {
		os.Exit(1)
	}
}

// runQuery issues one GET /search call and records its outcome.
func runQuery(ctx context.Context, client *http.Client, cfg Config, query string) sample {
	params := url.Values{}
	params.Set("q", query)
	if cfg.IncludeEng {
		params.Set("eng", "1")
	}
	if cfg.Fuzzy {
		params.Set("fuzzy", "1")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		cfg.BaseURL+"/search?"+params.Encode(), nil)
	if err != nil {
		return sample{err: err}
	}

	start := time.Now()
	resp, err := client.Do(req)
	duration := time.Since(start)
	if err != nil {
		return sample{duration: duration, err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	var body struct {
		Count int `json:"count"`
	}
	data, err := io.ReadAll(resp.Body)
	if err == nil {
		_ = json.Unmarshal(data, &body)
	}

	return sample{duration: duration, status: resp.StatusCode, count: body.Count}
}

func summarize(samples []sample, elapsed time.Duration) report {
	rep := report{Total: len(samples), Elapsed: elapsed}
	for _, s := range samples {
		switch {
		case s.err != nil:
			rep.Failed++
		case s.status != http.StatusOK:
			rep.NonOK++
		default:
			rep.Hits += s.count
			rep.Durations = append(rep.Durations, s.duration)
		}
	}
	sort.Slice(rep.Durations, func(i, j int) bool { return rep.Durations[i] < rep.Durations[j] })
	return rep
}

func renderReport(rep report) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Requests:    %d (ok: %d, non-200: %d, failed: %d)\n",
		rep.Total, len(rep.Durations), rep.NonOK, rep.Failed)
	fmt.Fprintf(&b, "Throughput:  %s over %s\n", formatRate(rep.Total, rep.Elapsed), rep.Elapsed.Round(time.Millisecond))
	fmt.Fprintf(&b, "Error rate:  %s\n", percentageString(rep.Failed+rep.NonOK, rep.Total))
	if len(rep.Durations) > 0 {
		fmt.Fprintf(&b, "Results/req: %.2f\n", float64(rep.Hits)/float64(len(rep.Durations)))
		fmt.Fprintf(&b, "Latency:     min %s / p50 %s / p90 %s / p99 %s / max %s\n",
			rep.Durations[0].Round(time.Microsecond),
			percentile(rep.Durations, 50).Round(time.Microsecond),
			percentile(rep.Durations, 90).Round(time.Microsecond),
			percentile(rep.Durations, 99).Round(time.Microsecond),
			rep.Durations[len(rep.Durations)-1].Round(time.Microsecond))
	}
	return b.String()
}

func writeMarkdownReport(path string, cfg Config, rep report) error {
	var b strings.Builder
	b.WriteString("# Search Benchmark\n\n")
	fmt.Fprintf(&b, "- Target: `%s`\n", cfg.BaseURL)
	fmt.Fprintf(&b, "- Requests: %d, concurrency: %d, fuzzy: %v, eng: %v\n\n",
		cfg.Requests, cfg.Concurrency, cfg.Fuzzy, cfg.IncludeEng)
	b.WriteString("```\n")
	b.WriteString(renderReport(rep))
	b.WriteString("```\n")
	return os.WriteFile(path, []byte(b.String()), 0644)
}
