// Load generator for exercising claimguard with recorded claims.
//
// Usage:
//
//	go run ./cmd/loadgen --csv claims.csv --url http://localhost:8080
//
// The CSV needs a header with claimant, vendor, date and total columns. An
// optional suspicious column (1/0) labels known-bad claims; when present the
// report includes a confusion matrix of the risk routing against the labels.
package main

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"
)

// ClaimRow is one recorded claim.
type ClaimRow struct {
	Claimant   string
	Vendor     string
	Date       string
	Total      float64
	Labeled    bool
	Suspicious bool
}

// SubmitRequest is the POST /claims body.
type SubmitRequest struct {
	ReceiptData struct {
		Vendor string  `json:"vendor"`
		Date   string  `json:"date"`
		Total  float64 `json:"total"`
	} `json:"receiptData"`
}

// SubmitResponse is the part of the POST /claims response the report needs.
type SubmitResponse struct {
	ClaimID string `json:"claimId"`
	Claim   struct {
		Status string `json:"status"`
	} `json:"claim"`
	FraudDetection struct {
		RiskLevel         string  `json:"riskLevel"`
		AuthenticityScore float64 `json:"authenticityScore"`
		IsDuplicate       bool    `json:"isDuplicate"`
	} `json:"fraudDetection"`
}

// Metrics tracks run results.
type Metrics struct {
	TruePositives  int64 // suspicious claim routed to review
	FalsePositives int64 // clean claim routed to review
	TrueNegatives  int64 // clean claim left Pending
	FalseNegatives int64 // suspicious claim left Pending

	TotalProcessed  int64
	TotalErrors     int64
	TotalDuplicates int64

	ProcessingTimeMs int64

	mu       sync.Mutex
	byStatus map[string]int
	byRisk   map[string]int
}

func (m *Metrics) record(resp *SubmitResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.byStatus == nil {
		m.byStatus = map[string]int{}
		m.byRisk = map[string]int{}
	}
	m.byStatus[resp.Claim.Status]++
	m.byRisk[resp.FraudDetection.RiskLevel]++
}

func main() {
	fs := ff.NewFlagSet("loadgen")
	var (
		csvPath = fs.StringLong("csv", "", "Path to claims CSV file")
		baseURL = fs.StringLong("url", "http://localhost:8080", "Claimguard base URL")
		header  = fs.StringLong("caller-header", "X-Caller-ID", "Header carrying the claimant identity")
		limit   = fs.IntLong("limit", 10000, "Maximum claims to submit (0 = all)")
		workers = fs.IntLong("workers", 10, "Number of concurrent workers")
		verbose = fs.BoolLong("verbose", "Print each claim result")
	)

	if err := ff.Parse(fs, os.Args[1:],
		ff.WithEnvVarPrefix("CLAIMGUARD_LOADGEN"),
	); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(fs))
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	if *csvPath == "" {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(fs))
		fmt.Fprintln(os.Stderr, "error: --csv is required")
		os.Exit(1)
	}

	fmt.Printf("CSV File:   %s\n", *csvPath)
	fmt.Printf("Target URL: %s\n", *baseURL)
	fmt.Printf("Workers:    %d\n", *workers)
	fmt.Printf("Limit:      %d\n", *limit)
	fmt.Println()

	if err := checkHealth(*baseURL); err != nil {
		fmt.Printf("ERROR: claimguard not reachable at %s: %v\n", *baseURL, err)
		os.Exit(1)
	}
	fmt.Println("claimguard is healthy")

	file, err := os.Open(*csvPath)
	if err != nil {
		fmt.Printf("ERROR: %v\n", err)
		os.Exit(1)
	}
	rows, err := readClaimsCSV(file, *limit)
	file.Close()
	if err != nil {
		fmt.Printf("ERROR: Failed to read CSV: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Loaded %d claims\n", len(rows))

	fmt.Printf("\nSubmitting with %d workers...\n", *workers)
	startTime := time.Now()
	metrics := run(rows, *baseURL, *header, *workers, *verbose)
	printResults(metrics, time.Since(startTime))
}

func checkHealth(baseURL string) error {
	resp, err := http.Get(baseURL + "/health")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d", resp.StatusCode)
	}
	return nil
}

// readClaimsCSV reads up to limit rows. Malformed rows are skipped.
func readClaimsCSV(r io.Reader, limit int) ([]ClaimRow, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	colIndex := make(map[string]int)
	for i, col := range header {
		colIndex[strings.ToLower(strings.TrimSpace(col))] = i
	}
	for _, required := range []string{"claimant", "vendor", "date", "total"} {
		if _, ok := colIndex[required]; !ok {
			return nil, fmt.Errorf("missing %q column", required)
		}
	}
	labelCol, labeled := colIndex["suspicious"]

	var rows []ClaimRow
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil || len(record) < len(header) {
			continue
		}

		total, err := strconv.ParseFloat(strings.TrimSpace(record[colIndex["total"]]), 64)
		if err != nil {
			continue
		}

		row := ClaimRow{
			Claimant: strings.TrimSpace(record[colIndex["claimant"]]),
			Vendor:   strings.TrimSpace(record[colIndex["vendor"]]),
			Date:     strings.TrimSpace(record[colIndex["date"]]),
			Total:    total,
			Labeled:  labeled,
		}
		if labeled {
			row.Suspicious = strings.TrimSpace(record[labelCol]) == "1"
		}
		rows = append(rows, row)

		if limit > 0 && len(rows) >= limit {
			break
		}
	}

	return rows, nil
}

func run(rows []ClaimRow, baseURL, header string, numWorkers int, verbose bool) *Metrics {
	metrics := &Metrics{}

	work := make(chan ClaimRow, 100)
	var wg sync.WaitGroup

	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			client := &http.Client{Timeout: 10 * time.Second}

			for row := range work {
				start := time.Now()
				result, err := submitClaim(client, baseURL, header, row)
				atomic.AddInt64(&metrics.ProcessingTimeMs, time.Since(start).Milliseconds())
				atomic.AddInt64(&metrics.TotalProcessed, 1)

				if err != nil {
					atomic.AddInt64(&metrics.TotalErrors, 1)
					if verbose {
						fmt.Printf("ERROR: %s %s -> %v\n", row.Claimant, row.Vendor, err)
					}
					continue
				}

				metrics.record(result)
				if result.FraudDetection.IsDuplicate {
					atomic.AddInt64(&metrics.TotalDuplicates, 1)
				}

				if row.Labeled {
					predicted := routedToReview(result.Claim.Status)
					switch {
					case predicted && row.Suspicious:
						atomic.AddInt64(&metrics.TruePositives, 1)
					case predicted && !row.Suspicious:
						atomic.AddInt64(&metrics.FalsePositives, 1)
					case !predicted && !row.Suspicious:
						atomic.AddInt64(&metrics.TrueNegatives, 1)
					default:
						atomic.AddInt64(&metrics.FalseNegatives, 1)
					}
				}

				if verbose {
					fmt.Printf("%-24s | %-20s | %10s | $%12.2f | %-11s %-6s (%.1f) dup=%v\n",
						row.Claimant,
						row.Vendor,
						row.Date,
						row.Total,
						result.Claim.Status,
						result.FraudDetection.RiskLevel,
						result.FraudDetection.AuthenticityScore,
						result.FraudDetection.IsDuplicate,
					)
				}
			}
		}()
	}

	for _, row := range rows {
		work <- row
	}
	close(work)

	wg.Wait()

	return metrics
}

// routedToReview reports whether intake sent the claim to a reviewer.
func routedToReview(status string) bool {
	return status == "Flagged" || status == "UnderReview"
}

func submitClaim(client *http.Client, baseURL, header string, row ClaimRow) (*SubmitResponse, error) {
	var req SubmitRequest
	req.ReceiptData.Vendor = row.Vendor
	req.ReceiptData.Date = row.Date
	req.ReceiptData.Total = row.Total

	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequest(http.MethodPost, baseURL+"/claims", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set(header, row.Claimant)

	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var result SubmitResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}
	return &result, nil
}

func printResults(m *Metrics, duration time.Duration) {
	fmt.Println("\nRESULTS")
	fmt.Printf("   Total Processed:  %d\n", m.TotalProcessed)
	fmt.Printf("   Errors:           %d\n", m.TotalErrors)
	fmt.Printf("   Duplicates:       %d\n", m.TotalDuplicates)

	fmt.Println("\nBY STATUS")
	printCounts(m.byStatus)
	fmt.Println("\nBY RISK LEVEL")
	printCounts(m.byRisk)

	labeled := m.TruePositives + m.FalsePositives + m.TrueNegatives + m.FalseNegatives
	if labeled > 0 {
		fmt.Println("\nROUTING VS LABELS")
		fmt.Println("                     Review     Pending")
		fmt.Printf("   suspicious  %10d  %10d   (TP, FN)\n", m.TruePositives, m.FalseNegatives)
		fmt.Printf("   clean       %10d  %10d   (FP, TN)\n", m.FalsePositives, m.TrueNegatives)

		precision := ratio(m.TruePositives, m.TruePositives+m.FalsePositives)
		recall := ratio(m.TruePositives, m.TruePositives+m.FalseNegatives)
		f1 := float64(0)
		if precision+recall > 0 {
			f1 = 2 * (precision * recall) / (precision + recall)
		}
		fmt.Printf("   Precision:  %.4f\n", precision)
		fmt.Printf("   Recall:     %.4f\n", recall)
		fmt.Printf("   F1-Score:   %.4f\n", f1)
	}

	fmt.Println("\nPERFORMANCE")
	fmt.Printf("   Total Duration:   %v\n", duration.Round(time.Millisecond))
	if m.TotalProcessed > 0 {
		fmt.Printf("   Avg Latency:      %.2f ms\n", float64(m.ProcessingTimeMs)/float64(m.TotalProcessed))
		fmt.Printf("   Throughput:       %.2f claims/sec\n", float64(m.TotalProcessed)/duration.Seconds())
	}
	fmt.Println()
}

func printCounts(counts map[string]int) {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Printf("   %-12s %d\n", k, counts[k])
	}
}

func ratio(n, d int64) float64 {
	if d == 0 {
		return 0
	}
	return float64(n) / float64(d)
}
