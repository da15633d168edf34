package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/eequaled/recall/pkg/catalog"
	"github.com/eequaled/recall/pkg/query"
	"github.com/eequaled/recall/pkg/segstore"
)

func main() {
	var (
		generate = flag.Bool("generate", false, "Generate test data")
		run      = flag.Bool("run", false, "Run benchmarks")
		count    = flag.Int("count", 1000, "Number of test frames to generate")
		dataDir  = flag.String("data-dir", "", "Data directory (default: ~/.recall-bench)")
	)
	flag.Parse()

	if !*generate && !*run {
		fmt.Println("Usage: benchmark --generate --count=N  OR  benchmark --run")
		fmt.Println("  --generate: Generate test data")
		fmt.Println("  --run: Run performance benchmarks")
		fmt.Println("  --count: Number of test frames to generate (default: 1000)")
		fmt.Println("  --data-dir: Data directory (default: ~/.recall-bench)")
		os.Exit(1)
	}

	benchDataDir := *dataDir
	if benchDataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			fmt.Printf("Error getting home directory: %v\n", err)
			os.Exit(1)
		}
		benchDataDir = filepath.Join(homeDir, ".recall-bench")
	}
	if err := os.MkdirAll(benchDataDir, 0o700); err != nil {
		fmt.Printf("Error creating data directory: %v\n", err)
		os.Exit(1)
	}

	cat, err := catalog.Open(filepath.Join(benchDataDir, "catalog.db"))
	if err != nil {
		fmt.Printf("Error opening catalog: %v\n", err)
		os.Exit(1)
	}
	defer cat.Close()

	store := segstore.Open(benchDataDir, nil)

	if *generate {
		fmt.Printf("Generating %d test frames...\n", *count)
		start := time.Now()
		if err := generateFrames(cat, store, *count); err != nil {
			fmt.Printf("Error generating test data: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Generated %d frames in %v\n", *count, time.Since(start))
	}

	if *run {
		fmt.Println("Running performance benchmarks...")
		result, err := runBenchmarks(cat)
		if err != nil {
			fmt.Printf("Error running benchmarks: %v\n", err)
			os.Exit(1)
		}
		printBenchmarkResults(result)
	}
}

// generateFrames seeds one segment with count synthetic, searchable
// frames, spread over the past count hours so age-based retention and
// date-filtered search both have something to chew on, then finalizes
// and closes it.
func generateFrames(cat *catalog.Catalog, store *segstore.Store, count int) error {
	openedAt := time.Now().Add(-time.Duration(count) * time.Hour)
	segmentID, err := cat.InsertSegment(catalog.Segment{OpenedAt: openedAt, Width: 8, Height: 8})
	if err != nil {
		return fmt.Errorf("insert segment: %w", err)
	}
	handle, relPath, err := store.OpenSegment(segmentID, 8, 8, openedAt)
	if err != nil {
		return fmt.Errorf("open segment: %w", err)
	}
	if err := cat.SetSegmentPath(segmentID, relPath); err != nil {
		return fmt.Errorf("set segment path: %w", err)
	}

	apps := []string{"Chrome", "Slack", "Terminal", "VSCode", "Mail"}
	words := []string{"benchmark", "release", "standup", "design", "review", "pull request", "incident"}

	for i := 0; i < count; i++ {
		capturedAt := openedAt.Add(time.Duration(i) * time.Hour)
		idx, err := handle.Append(segstore.NewPixelBuffer(8, 8), capturedAt)
		if err != nil {
			return fmt.Errorf("append frame %d: %w", i, err)
		}
		frameID, err := cat.InsertFrame(catalog.Frame{
			CapturedAt:          capturedAt,
			SegmentID:           segmentID,
			FrameIndexInSegment: idx,
			Metadata:            catalog.FrameMetadata{AppName: apps[i%len(apps)]},
			ProcessingStatus:    catalog.StatusCompleted,
			SourceKind:          catalog.SourceNative,
		})
		if err != nil {
			return fmt.Errorf("insert frame %d: %w", i, err)
		}
		text := fmt.Sprintf("%s notes about %s", apps[i%len(apps)], words[i%len(words)])
		if err := cat.WriteExtractedText(
			catalog.ExtractedText{FrameID: frameID, SegmentID: segmentID, FullText: text},
			nil,
		); err != nil {
			return fmt.Errorf("write text for frame %d: %w", i, err)
		}
	}

	if err := handle.Finalize(nil); err != nil {
		return fmt.Errorf("finalize segment: %w", err)
	}
	return cat.CloseSegment(segmentID, time.Now(), handle.FrameCount())
}

type operationBenchmark struct {
	iterations int
	total      time.Duration
}

func (b operationBenchmark) average() time.Duration { return b.total / time.Duration(b.iterations) }
func (b operationBenchmark) perSecond() float64      { return float64(b.iterations) / b.total.Seconds() }

type benchmarkResult struct {
	frameCount int
	operations map[string]operationBenchmark
}

func runBenchmarks(cat *catalog.Catalog) (*benchmarkResult, error) {
	result := &benchmarkResult{operations: make(map[string]operationBenchmark)}

	fmt.Println("Benchmarking full-text search...")
	searchTerms := []string{"benchmark", "release", "standup", "design review", "incident"}
	iterations := 100
	start := time.Now()
	for i := 0; i < iterations; i++ {
		parsed := query.Parse(searchTerms[i%len(searchTerms)])
		params := query.Compile(parsed, 20)
		results, err := cat.Search(params)
		if err != nil {
			return nil, fmt.Errorf("search: %w", err)
		}
		if i == 0 {
			result.frameCount = len(results)
		}
	}
	result.operations["fulltext_search"] = operationBenchmark{iterations: iterations, total: time.Since(start)}

	fmt.Println("Benchmarking app-filtered search...")
	iterations = 50
	start = time.Now()
	for i := 0; i < iterations; i++ {
		parsed := query.Parse("app:Slack standup")
		params := query.Compile(parsed, 20)
		if _, err := cat.Search(params); err != nil {
			return nil, fmt.Errorf("filtered search: %w", err)
		}
	}
	result.operations["filtered_search"] = operationBenchmark{iterations: iterations, total: time.Since(start)}

	return result, nil
}

func printBenchmarkResults(result *benchmarkResult) {
	fmt.Println("\n=== BENCHMARK RESULTS ===")
	fmt.Printf("Sample result count: %d\n", result.frameCount)

	targets := map[string]int64{
		"fulltext_search": 100,
		"filtered_search": 100,
	}

	for name, bench := range result.operations {
		avgMs := bench.average().Milliseconds()
		status := "PASS"
		if target, ok := targets[name]; ok && avgMs > target {
			status = "FAIL"
		}
		fmt.Printf("\n%s:\n", name)
		fmt.Printf("  Iterations: %d\n", bench.iterations)
		fmt.Printf("  Average: %v\n", bench.average())
		fmt.Printf("  Ops/sec: %.2f\n", bench.perSecond())
		fmt.Printf("  Target: <%dms, Actual: %dms [%s]\n", targets[name], avgMs, status)
	}
}
