// Package engine wires every component into one running process: the
// catalog, vault, segment store, capture source, focus tracker, frame
// ingestor, OCR queue, and retention enforcer, and its process
// lifecycle. Grounded in waddle's main.go top-level wiring (open stores,
// start the tracker and pipeline, shut down on signal), generalized from
// its session-logging loop onto the capture/ingest/OCR/retention
// pipeline built in this repo.
package engine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/eequaled/recall/pkg/applog"
	"github.com/eequaled/recall/pkg/capture"
	"github.com/eequaled/recall/pkg/capture/accessibility"
	"github.com/eequaled/recall/pkg/catalog"
	"github.com/eequaled/recall/pkg/clockid"
	"github.com/eequaled/recall/pkg/config"
	"github.com/eequaled/recall/pkg/dedup"
	"github.com/eequaled/recall/pkg/ingest"
	"github.com/eequaled/recall/pkg/ocrqueue"
	"github.com/eequaled/recall/pkg/query"
	"github.com/eequaled/recall/pkg/retention"
	"github.com/eequaled/recall/pkg/segstore"
	"github.com/eequaled/recall/pkg/textextract"
	"github.com/eequaled/recall/pkg/tracker"
	"github.com/eequaled/recall/pkg/vault"
)

// Config is everything needed to stand up an Engine. New uses each
// nested config as given (after persisted settings are applied); a
// zero-valued nested config is not replaced by its package's
// DefaultConfig. DefaultConfig below fills every nested config.
type Config struct {
	DataDir     string
	Passphrase  []byte
	MainDisplay string

	Capture     capture.Config
	Retention   retention.Config
	Ocr         ocrqueue.Config
	TextExtract textextract.Config
	Ingest      ingest.Config
}

// DefaultConfig returns a Config rooted at dataDir with every nested
// config at its package default.
func DefaultConfig(dataDir string) Config {
	return Config{
		DataDir:     dataDir,
		MainDisplay: "0",
		Capture:     capture.DefaultConfig(),
		Retention:   retention.DefaultConfig(),
		Ocr:         ocrqueue.DefaultConfig(),
		TextExtract: textextract.DefaultConfig(),
		Ingest:      ingest.Config{Deduplicate: true, DedupThreshold: 0.98, SegmentBucket: 5 * time.Minute},
	}
}

// Engine owns every long-lived component and their shared lifecycle.
// Exactly one Engine runs per process.
type Engine struct {
	cfg Config

	logs     *applog.Registry
	log      *applog.Logger
	clock    *clockid.Clock
	ops      *clockid.IDAllocator
	cat      *catalog.Catalog
	vault    *vault.Vault
	store    *segstore.Store
	settings *config.Store

	dedup      *dedup.Deduplicator
	accessProv accessibility.Provider
	capSource  *capture.Source
	focus      *tracker.Tracker
	ingestor   *ingest.FrameIngestor
	pixelCache *ocrqueue.PixelCache
	ocrQueue   *ocrqueue.OcrQueue
	enforcer   *retention.Enforcer

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New opens every durable store and wires the pipeline, but starts
// nothing running; call Start to begin capture/OCR/retention.
func New(cfg Config) (*Engine, error) {
	if cfg.DataDir == "" {
		return nil, fmt.Errorf("engine: data dir is required")
	}
	if err := os.MkdirAll(cfg.DataDir, 0o700); err != nil {
		return nil, fmt.Errorf("engine: create data dir: %w", err)
	}

	logs, err := applog.NewRegistry(filepath.Join(cfg.DataDir, "logs"))
	if err != nil {
		return nil, fmt.Errorf("engine: open log registry: %w", err)
	}
	log, err := logs.Get("engine")
	if err != nil {
		logs.Close()
		return nil, fmt.Errorf("engine: open engine logger: %w", err)
	}

	v, err := vault.Open(filepath.Join(cfg.DataDir, "vault.key"), cfg.Passphrase)
	if err != nil {
		logs.Close()
		return nil, fmt.Errorf("engine: open vault: %w", err)
	}

	cat, err := catalog.Open(filepath.Join(cfg.DataDir, "catalog.db"))
	if err != nil {
		logs.Close()
		return nil, fmt.Errorf("engine: open catalog: %w", err)
	}

	store := segstore.Open(cfg.DataDir, v)
	settings := config.New(cat)

	cfg.Capture = settings.LoadCaptureConfig(cfg.Capture)
	cfg.Retention = settings.LoadRetentionConfig(cfg.Retention)
	cfg.Ocr = config.ApplyOcrConfig(cfg.Ocr, settings.LoadOcrConfig(config.OcrConfig{
		Workers:    cfg.Ocr.Workers,
		MaxRetries: cfg.Ocr.MaxRetries,
	}))

	recognizer, err := newRecognizer()
	if err != nil {
		cat.Close()
		logs.Close()
		return nil, fmt.Errorf("engine: init OCR recognizer: %w", err)
	}

	accessProv := newAccessibilityProvider()
	focusSource := tracker.NewFocusSource()
	displayLocator := newDisplayLocator(cfg.MainDisplay)

	var focus *tracker.Tracker
	onDisplayChanged := func(old, new string) {
		log.Info("active display changed", map[string]interface{}{"from": old, "to": new})
	}
	onPermissionDenied := func() {
		log.Warn("accessibility permission denied; falling back to main display", nil)
	}
	focus = tracker.New(focusSource, displayLocator, cfg.MainDisplay, onDisplayChanged, nil, onPermissionDenied)

	dd := dedup.New()
	pixelCache := ocrqueue.NewPixelCache()
	ingestor := ingest.New(cat, store, dd, pixelCache, cfg.Ingest)

	extractor := textextract.New(recognizer, cat, accessProv, focus, cfg.TextExtract)
	ocrQueue := ocrqueue.New(cat, store, extractor, pixelCache, cfg.Ocr)
	enforcer := retention.New(cat, store, cfg.Retention)

	hints := capture.NewAccessibilityHintProvider(accessProv, cfg.TextExtract.AccessibilityMaxDepth)
	capSource := capture.New(cfg.Capture, capture.NewScreenshotCapturer(), newWindowEnumerator(), focus, hints)

	return &Engine{
		cfg:        cfg,
		logs:       logs,
		log:        log,
		clock:      clockid.NewClock(),
		ops:        clockid.NewIDAllocator(0),
		cat:        cat,
		vault:      v,
		store:      store,
		settings:   settings,
		dedup:      dd,
		accessProv: accessProv,
		capSource:  capSource,
		focus:      focus,
		ingestor:   ingestor,
		pixelCache: pixelCache,
		ocrQueue:   ocrQueue,
		enforcer:   enforcer,
	}, nil
}

// Start brings every long-lived loop up: runs one retention pass (age
// and size policies plus the orphan sweep), recovers crashed OCR work,
// then starts capture, ingest, OCR
// workers, the focus tracker, and the retention enforcer, each on its
// own goroutine. Start returns once everything has been launched; it
// does not block.
func (e *Engine) Start(ctx context.Context) error {
	opID := e.ops.Next()
	e.log.Info("engine starting", map[string]interface{}{"op": opID, "data_dir": e.cfg.DataDir})

	if result := e.enforcer.EnforceOnce(); len(result.Errors) > 0 {
		e.log.Warn("startup orphan sweep reported errors", map[string]interface{}{
			"orphan_rows": result.OrphanRowsDeleted, "orphan_files": result.OrphanFilesDeleted, "errors": len(result.Errors),
		})
	}
	if err := e.ocrQueue.RecoverCrashed(); err != nil {
		e.log.Error("recover crashed OCR frames", err, nil)
		return fmt.Errorf("engine: recover crashed frames: %w", err)
	}
	e.ocrQueue.MarkReady()

	runCtx, cancel := context.WithCancel(ctx)
	e.cancel = cancel

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.capSource.Run(runCtx)
	}()

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.ingestor.Run(e.capSource.Frames(), runCtx.Done())
	}()

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.ocrQueue.Run(runCtx)
	}()

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.focus.Run(runCtx)
	}()

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.enforcer.Run(runCtx)
	}()

	e.log.Info("engine started", map[string]interface{}{"op": opID, "uptime_ms": e.clock.MonotonicMillis()})
	return nil
}

// Shutdown cancels every running loop and waits up to grace for them to
// exit, finalizing the active segment and closing the catalog regardless
// of whether the grace period elapsed.
func (e *Engine) Shutdown(grace time.Duration) error {
	opID := e.ops.Next()
	e.log.Info("engine stopping", map[string]interface{}{"op": opID})

	if e.cancel != nil {
		e.cancel()
	}

	waitDone := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(waitDone)
	}()
	select {
	case <-waitDone:
	case <-time.After(grace):
		e.log.Warn("shutdown grace period elapsed before all workers exited", nil)
	}

	if err := e.ingestor.Close(); err != nil {
		e.log.Error("finalize active segment on shutdown", err, nil)
	}

	closeErr := e.cat.Close()
	logErr := e.logs.Close()
	if closeErr != nil {
		return fmt.Errorf("engine: close catalog: %w", closeErr)
	}
	return logErr
}

// Catalog exposes the underlying catalog for a search surface to query.
func (e *Engine) Catalog() *catalog.Catalog { return e.cat }

// Store exposes the underlying segment store so a frame can be read back
// for display.
func (e *Engine) Store() *segstore.Store { return e.store }

// Settings exposes the configuration store so an operator surface can
// read or update CaptureConfig/RetentionConfig/OcrConfig at runtime.
func (e *Engine) Settings() *config.Store { return e.settings }

// Enforcer exposes the retention enforcer for an operator-triggered
// quick delete.
func (e *Engine) Enforcer() *retention.Enforcer { return e.enforcer }

// Search compiles raw (the small query DSL) and runs it against the
// catalog's full-text index.
func (e *Engine) Search(raw string, limit int) ([]catalog.SearchResult, error) {
	parsed := query.Parse(raw)
	params := query.Compile(parsed, limit)
	return e.cat.Search(params)
}

func newRecognizer() (textextract.TextRecognizer, error) {
	if runtime.GOOS == "windows" {
		return textextract.NewWindowsOCRRecognizer()
	}
	return textextract.NewNoopRecognizer(), nil
}
