// Command recalld runs the continuous capture/OCR/archive pipeline.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/atotto/clipboard"
	"github.com/eequaled/recall/pkg/engine"
)

func main() {
	var (
		dataDir       = flag.String("data-dir", "", "Data directory (default: ~/.recall)")
		quickDelete   = flag.String("quick-delete-since", "", "Delete every captured frame at or after this RFC3339 timestamp, then exit")
		retentionDays = flag.Int("retention-days", 0, "Delete closed segments older than this many days (0 disables)")
		maxStorageGB  = flag.Float64("max-storage-gb", 0, "Delete oldest closed segments until under this size (0 disables)")
		shutdownGrace = flag.Duration("shutdown-grace", 10*time.Second, "How long to wait for workers to drain on shutdown")
		backupTo      = flag.String("backup-to", "", "Write a consistent catalog snapshot to this path, then exit")
		healthCheck   = flag.Bool("health", false, "Print a health check report, then exit")
	)
	flag.Parse()

	dir := *dataDir
	if dir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			fmt.Printf("Error getting home directory: %v\n", err)
			os.Exit(1)
		}
		dir = filepath.Join(homeDir, ".recall")
	}

	cfg := engine.DefaultConfig(dir)
	if *retentionDays > 0 {
		cfg.Retention.RetentionAgeDays = *retentionDays
	}
	if *maxStorageGB > 0 {
		cfg.Retention.MaxStorageBytes = int64(*maxStorageGB * (1 << 30))
	}

	eng, err := engine.New(cfg)
	if err != nil {
		fmt.Printf("Error initializing engine: %v\n", err)
		os.Exit(1)
	}

	if *backupTo != "" {
		if err := eng.Catalog().Backup(*backupTo); err != nil {
			fmt.Printf("Error backing up catalog: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Catalog backed up to %s\n", *backupTo)
		eng.Shutdown(*shutdownGrace)
		return
	}

	if *healthCheck {
		health := eng.Health()
		fmt.Printf("Status: %s\n", health.Status)
		for name, check := range health.Checks {
			fmt.Printf("  %s: %s %s (%dms)\n", name, check.Status, check.Message, check.LatencyMs)
		}
		eng.Shutdown(*shutdownGrace)
		return
	}

	if *quickDelete != "" {
		cutoff, err := time.Parse(time.RFC3339, *quickDelete)
		if err != nil {
			fmt.Printf("Error parsing --quick-delete-since: %v\n", err)
			os.Exit(1)
		}
		count, err := eng.Enforcer().QuickDelete(cutoff)
		if err != nil {
			fmt.Printf("Error running quick delete: %v\n", err)
			os.Exit(1)
		}
		receipt := fmt.Sprintf("Deleted %d frames captured at or after %s", count, cutoff.Format(time.RFC3339))
		fmt.Println(receipt)
		if err := clipboard.WriteAll(receipt); err != nil {
			fmt.Printf("(could not copy receipt to clipboard: %v)\n", err)
		}
		eng.Shutdown(*shutdownGrace)
		return
	}

	fmt.Printf("Recall storing data under %s\n", dir)

	ctx, cancel := context.WithCancel(context.Background())
	if err := eng.Start(ctx); err != nil {
		fmt.Printf("Error starting engine: %v\n", err)
		os.Exit(1)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	fmt.Println("Monitoring active... Press Ctrl+C to stop.")
	<-sigChan

	fmt.Println("Shutting down...")
	cancel()
	if err := eng.Shutdown(*shutdownGrace); err != nil {
		fmt.Printf("Error during shutdown: %v\n", err)
		os.Exit(1)
	}
}
