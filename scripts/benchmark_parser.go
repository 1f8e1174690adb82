package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

// BenchmarkResult represents a parsed benchmark result.
type BenchmarkResult struct {
	Name        string
	Operation   string
	Strategy    string // "bucket" or "list"
	Iterations  int
	NsPerOp     float64
	BytesPerOp  int64
	AllocsPerOp int64
}

// ComparisonResult pairs the bucket and list results of one operation.
type ComparisonResult struct {
	Operation    string
	BucketNs     float64
	ListNs       float64
	Speedup      float64 // list ns/op divided by bucket ns/op
	BucketAllocs int64
	ListAllocs   int64
	BucketOnly   bool
	ListOnly     bool
}

// strategyPrefixes maps benchmark name prefixes to the strategy they measure.
var strategyPrefixes = map[string]string{
	"Worker": "bucket",
	"List":   "list",
}

var (
	inputFile = flag.String(
		"input",
		"",
		"Input file with benchmark output (stdin if not specified)",
	)
	outputFile = flag.String("output", "", "Output markdown file (stdout if not specified)")
	quiet      = flag.Bool("quiet", false, "Suppress progress output")
)

func main() {
	flag.Parse()

	var in io.Reader = os.Stdin
	if *inputFile != "" {
		f, err := os.Open(*inputFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error opening input file: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		in = f
	}

	results := parseBenchmarks(bufio.NewScanner(in))
	if !*quiet {
		fmt.Fprintf(os.Stderr, "Parsed %d benchmark results\n", len(results))
	}

	comparisons := generateComparisons(results)
	report := generateMarkdownReport(comparisons, time.Now())

	if *outputFile == "" {
		fmt.Fprint(os.Stdout, report)
		return
	}
	if err := os.WriteFile(*outputFile, []byte(report), 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing output file: %v\n", err)
		os.Exit(1)
	}
	if !*quiet {
		fmt.Fprintf(os.Stderr, "Report written to %s\n", *outputFile)
	}
}

// BenchmarkList_Churn-8    1000000    1043 ns/op    0 B/op    0 allocs/op
var benchmarkRegex = regexp.MustCompile(
	`^(Benchmark\S+)\s+(\d+)\s+([\d.]+)\s+ns/op(?:\s+([\d.]+)\s+(?:B|MB)/op)?(?:\s+([\d.]+)\s+allocs/op)?`,
)

func parseBenchmarks(scanner *bufio.Scanner) []BenchmarkResult {
	var results []BenchmarkResult

	for scanner.Scan() {
		line := scanner.Text()

		// Lines from go test -json carry the text in Output.
		var testEvent map[string]any
		if err := json.Unmarshal([]byte(line), &testEvent); err == nil {
			if output, ok := testEvent["Output"].(string); ok {
				line = output
			}
		}

		matches := benchmarkRegex.FindStringSubmatch(strings.TrimSpace(line))
		if matches == nil {
			continue
		}

		name := matches[1]
		strategy, operation := splitName(name)
		if strategy == "" {
			continue
		}

		iterations, _ := strconv.Atoi(matches[2])
		nsPerOp, _ := strconv.ParseFloat(matches[3], 64)

		var bytesPerOp, allocsPerOp int64
		if matches[4] != "" {
			bytesPerOp, _ = strconv.ParseInt(matches[4], 10, 64)
		}
		if matches[5] != "" {
			allocsPerOp, _ = strconv.ParseInt(matches[5], 10, 64)
		}

		results = append(results, BenchmarkResult{
			Name:        name,
			Operation:   operation,
			Strategy:    strategy,
			Iterations:  iterations,
			NsPerOp:     nsPerOp,
			BytesPerOp:  bytesPerOp,
			AllocsPerOp: allocsPerOp,
		})
	}

	return results
}

// splitName turns BenchmarkWorker_AllocFree-8 into ("bucket", "AllocFree").
// Benchmarks of neither strategy yield an empty strategy.
func splitName(name string) (strategy, operation string) {
	name = strings.TrimPrefix(name, "Benchmark")
	if dash := strings.LastIndex(name, "-"); dash > 0 {
		if _, err := strconv.Atoi(name[dash+1:]); err == nil {
			name = name[:dash]
		}
	}
	prefix, op, ok := strings.Cut(name, "_")
	if !ok {
		return "", ""
	}
	return strategyPrefixes[prefix], op
}

func generateComparisons(results []BenchmarkResult) []ComparisonResult {
	grouped := make(map[string]map[string]BenchmarkResult)
	for _, result := range results {
		if grouped[result.Operation] == nil {
			grouped[result.Operation] = make(map[string]BenchmarkResult)
		}
		grouped[result.Operation][result.Strategy] = result
	}

	var comparisons []ComparisonResult
	for op, byStrategy := range grouped {
		bucket, hasBucket := byStrategy["bucket"]
		list, hasList := byStrategy["list"]

		c := ComparisonResult{
			Operation:    op,
			BucketNs:     bucket.NsPerOp,
			ListNs:       list.NsPerOp,
			BucketAllocs: bucket.AllocsPerOp,
			ListAllocs:   list.AllocsPerOp,
			BucketOnly:   hasBucket && !hasList,
			ListOnly:     hasList && !hasBucket,
		}
		if hasBucket && hasList && bucket.NsPerOp > 0 {
			c.Speedup = list.NsPerOp / bucket.NsPerOp
		}
		comparisons = append(comparisons, c)
	}

	sort.Slice(comparisons, func(i, j int) bool {
		return comparisons[i].Operation < comparisons[j].Operation
	})
	return comparisons
}

func generateMarkdownReport(comparisons []ComparisonResult, now time.Time) string {
	var sb strings.Builder

	sb.WriteString("# Allocator Benchmark Report\n\n")
	fmt.Fprintf(&sb, "Generated: %s\n\n", now.Format("2006-01-02 15:04:05"))

	bucketFaster, listFaster := 0, 0
	for _, c := range comparisons {
		switch {
		case c.Speedup > 1.0:
			bucketFaster++
		case c.Speedup > 0 && c.Speedup < 1.0:
			listFaster++
		}
	}

	sb.WriteString("## Summary\n\n")
	fmt.Fprintf(&sb, "- **Operations**: %d\n", len(comparisons))
	fmt.Fprintf(&sb, "- bucket faster: %d\n", bucketFaster)
	fmt.Fprintf(&sb, "- list faster: %d\n\n", listFaster)

	sb.WriteString("## Detailed Results\n\n")
	sb.WriteString("| Operation | bucket (ns/op) | list (ns/op) | Speedup | Allocs |\n")
	sb.WriteString("|-----------|----------------|--------------|---------|--------|\n")

	for _, c := range comparisons {
		switch {
		case c.BucketOnly:
			fmt.Fprintf(&sb, "| %s | %s | *N/A* | *bucket only* | %s |\n",
				c.Operation, formatNumber(c.BucketNs), formatNumber(float64(c.BucketAllocs)))
		case c.ListOnly:
			fmt.Fprintf(&sb, "| %s | *N/A* | %s | *list only* | %s |\n",
				c.Operation, formatNumber(c.ListNs), formatNumber(float64(c.ListAllocs)))
		default:
			fmt.Fprintf(&sb, "| %s | %s | %s | %.2fx | %s vs %s |\n",
				c.Operation,
				formatNumber(c.BucketNs),
				formatNumber(c.ListNs),
				c.Speedup,
				formatNumber(float64(c.BucketAllocs)),
				formatNumber(float64(c.ListAllocs)),
			)
		}
	}

	sb.WriteString("\n## Notes\n\n")
	sb.WriteString("- **Speedup > 1.0**: the bucket strategy is faster\n")
	sb.WriteString("- **Allocs** counts Go heap allocations, which both strategies avoid on the hot path\n")

	return sb.String()
}

func formatNumber(n float64) string {
	if n >= 1000000 {
		return fmt.Sprintf("%.2fM", n/1000000)
	} else if n >= 1000 {
		return fmt.Sprintf("%.1fK", n/1000)
	}
	return fmt.Sprintf("%.0f", n)
}
