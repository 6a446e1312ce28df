// Command benchmark loads a fixed set of pages several times through a
// running EcoAudit server and reports latency plus how stable the measured
// byte totals are between runs.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/tidwall/gjson"
)

var (
	apiURL = flag.String("api-url", "http://localhost:3000", "EcoAudit API base URL")
	apiKey = flag.String("api-key", "", "API key for authenticated requests")
	runs   = flag.Int("runs", 3, "Number of runs per URL")
	output = flag.String("output", "benchmark-results.json", "JSON output file path")
)

// Pages covering light to heavy footprints.
var testURLs = []struct {
	Label string
	URL   string
}{
	{"Static", "https://example.com"},
	{"Blog", "https://go.dev/blog/go1.21"},
	{"Docs", "https://go.dev/doc/effective_go"},
	{"News", "https://www.bbc.com/news"},
	{"Complex", "https://github.com/go-rod/rod"},
}

type runResult struct {
	Run        int    `json:"run"`
	TotalMs    int64  `json:"total_ms"`
	ScanMs     int64  `json:"scan_ms"`
	TotalBytes int64  `json:"total_bytes"`
	Resources  int64  `json:"resource_count"`
	Unresolved int64  `json:"unresolved_count"`
	Settled    bool   `json:"settled"`
	Success    bool   `json:"success"`
	Error      string `json:"error,omitempty"`
}

type urlSummary struct {
	AvgMs     float64 `json:"avg_ms"`
	AvgBytes  float64 `json:"avg_bytes"`
	MinBytes  int64   `json:"min_bytes"`
	MaxBytes  int64   `json:"max_bytes"`
	SpreadPct float64 `json:"spread_pct"`
}

type urlResult struct {
	URL     string      `json:"url"`
	Label   string      `json:"label"`
	Runs    []runResult `json:"runs"`
	Summary *urlSummary `json:"summary,omitempty"`
}

type benchmarkReport struct {
	Timestamp  string      `json:"timestamp"`
	APIURL     string      `json:"api_url"`
	RunsPerURL int         `json:"runs_per_url"`
	Results    []urlResult `json:"results"`
}

func main() {
	flag.Parse()

	fmt.Println("=== EcoAudit Benchmark ===")
	fmt.Printf("API URL:   %s\n", *apiURL)
	fmt.Printf("Runs/URL:  %d\n", *runs)
	fmt.Printf("Output:    %s\n\n", *output)

	if err := checkAPI(*apiURL); err != nil {
		fmt.Fprintf(os.Stderr, "Error: cannot reach API at %s: %v\n", *apiURL, err)
		os.Exit(1)
	}

	report := benchmarkReport{
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
		APIURL:     *apiURL,
		RunsPerURL: *runs,
	}

	client := &http.Client{Timeout: 150 * time.Second}
	for _, t := range testURLs {
		fmt.Printf("Benchmarking [%s] %s ...\n", t.Label, t.URL)
		ur := urlResult{URL: t.URL, Label: t.Label}

		for i := 1; i <= *runs; i++ {
			fmt.Printf("  Run %d/%d ... ", i, *runs)
			rr := benchmarkURL(client, t.URL, i)
			if rr.Success {
				fmt.Printf("OK  %dms  %d bytes\n", rr.TotalMs, rr.TotalBytes)
			} else {
				fmt.Printf("FAILED: %s\n", rr.Error)
			}
			ur.Runs = append(ur.Runs, rr)
		}

		ur.Summary = summarize(ur.Runs)
		report.Results = append(report.Results, ur)
		fmt.Println()
	}

	printTable(report.Results)

	if err := writeJSON(*output, report); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing JSON output: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("\nDetailed results written to %s\n", *output)
}

func checkAPI(baseURL string) error {
	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Get(baseURL + "/api/v1/health")
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

func benchmarkURL(client *http.Client, url string, run int) runResult {
	rr := runResult{Run: run}

	body, _ := json.Marshal(map[string]any{"url": url, "timeout": 60})
	req, err := http.NewRequest(http.MethodPost, *apiURL+"/api/v1/scan", bytes.NewReader(body))
	if err != nil {
		rr.Error = fmt.Sprintf("request error: %v", err)
		return rr
	}
	req.Header.Set("Content-Type", "application/json")
	if *apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+*apiKey)
	}

	resp, err := client.Do(req)
	if err != nil {
		rr.Error = fmt.Sprintf("request failed: %v", err)
		return rr
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		rr.Error = fmt.Sprintf("read error: %v", err)
		return rr
	}

	doc := gjson.ParseBytes(raw)
	rr.Success = doc.Get("success").Bool()
	rr.TotalMs = doc.Get("timing.total_ms").Int()
	rr.ScanMs = doc.Get("timing.scan_ms").Int()
	rr.TotalBytes = doc.Get("total_bytes").Int()
	rr.Resources = doc.Get("resource_count").Int()
	rr.Unresolved = doc.Get("unresolved_count").Int()
	rr.Settled = doc.Get("settled").Bool()
	if msg := doc.Get("error.message"); msg.Exists() {
		rr.Error = msg.String()
	}
	return rr
}

func summarize(runs []runResult) *urlSummary {
	var (
		s  urlSummary
		ok int
	)
	for _, r := range runs {
		if !r.Success {
			continue
		}
		if ok == 0 || r.TotalBytes < s.MinBytes {
			s.MinBytes = r.TotalBytes
		}
		if r.TotalBytes > s.MaxBytes {
			s.MaxBytes = r.TotalBytes
		}
		ok++
		s.AvgMs += float64(r.TotalMs)
		s.AvgBytes += float64(r.TotalBytes)
	}
	if ok == 0 {
		return nil
	}

	s.AvgMs /= float64(ok)
	s.AvgBytes /= float64(ok)
	if s.AvgBytes > 0 {
		s.SpreadPct = float64(s.MaxBytes-s.MinBytes) / s.AvgBytes * 100
	}
	return &s
}

func printTable(results []urlResult) {
	fmt.Println(strings.Repeat("─", 85))
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "URL\tAvg Latency\tAvg Bytes\tSpread\n")
	fmt.Fprintf(w, "───\t───────────\t─────────\t──────\n")

	for _, r := range results {
		if r.Summary == nil {
			fmt.Fprintf(w, "%s\tFAILED\t-\t-\n", truncateURL(r.URL, 40))
			continue
		}
		fmt.Fprintf(w, "%s\t%dms\t%s\t%.1f%%\n",
			truncateURL(r.URL, 40),
			int64(r.Summary.AvgMs),
			formatInt(int64(r.Summary.AvgBytes)),
			r.Summary.SpreadPct,
		)
	}

	w.Flush()
	fmt.Println(strings.Repeat("─", 85))
}

func truncateURL(u string, max int) string {
	if len(u) <= max {
		return u
	}
	return u[:max-3] + "..."
}

func formatInt(n int64) string {
	s := fmt.Sprintf("%d", n)
	if len(s) <= 3 {
		return s
	}
	var result []byte
	for i, c := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			result = append(result, ',')
		}
		result = append(result, byte(c))
	}
	return string(result)
}

func writeJSON(path string, report benchmarkReport) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
