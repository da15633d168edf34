// Package ocrqueue implements OcrQueue: a fixed worker pool draining the
// catalog's durable priority queue, classifying OCR failures, and recovering
// crashed in-flight work at startup. Grounded in
// waddle's pkg/synthesis/worker.go ticker+atomic-guard worker loop,
// generalized to a real pool with catalog-backed dequeue instead of a
// single background ticker.
package ocrqueue

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/eequaled/recall/pkg/catalog"
	"github.com/eequaled/recall/pkg/segstore"
)

// Extractor performs OCR extraction for one frame and writes the result
// through to the catalog itself (the write-through
// contract); OcrQueue only needs to know whether it succeeded.
type Extractor interface {
	Extract(pixels segstore.PixelBuffer, frameID, segmentID int64, meta catalog.FrameMetadata) error
}

// Config tunes the worker pool.
type Config struct {
	Workers      int
	MaxRetries   int
	PollInterval time.Duration
	MaxDepth     int // carried in the config only; OcrQueue does not read it and no depth bound is enforced on enqueue
}

// DefaultConfig returns sane defaults.
func DefaultConfig() Config {
	return Config{Workers: 2, MaxRetries: 3, PollInterval: 100 * time.Millisecond}
}

// OcrQueue is the durable priority-queue consumer: a fixed pool of
// workers pulling from Catalog's processing_queue table.
type OcrQueue struct {
	cat       *catalog.Catalog
	store     *segstore.Store
	extractor Extractor
	cache     *PixelCache
	cfg       Config

	readyMu sync.RWMutex
	ready   bool
}

// New constructs an OcrQueue. MarkReady must be called once the catalog
// is safe to query (callers may still be constructing it at startup).
func New(cat *catalog.Catalog, store *segstore.Store, extractor Extractor, cache *PixelCache, cfg Config) *OcrQueue {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 100 * time.Millisecond
	}
	return &OcrQueue{cat: cat, store: store, extractor: extractor, cache: cache, cfg: cfg}
}

// MarkReady unblocks workers waiting on catalog availability.
func (q *OcrQueue) MarkReady() {
	q.readyMu.Lock()
	q.ready = true
	q.readyMu.Unlock()
}

func (q *OcrQueue) isReady() bool {
	q.readyMu.RLock()
	defer q.readyMu.RUnlock()
	return q.ready
}

// RecoverCrashed resets frames stuck in processing_status=processing at
// startup: re-enqueued as pending if their segment file still exists,
// terminal-failed otherwise. Running this on a clean state (no crashed
// frames) is a no-op.
func (q *OcrQueue) RecoverCrashed() error {
	ids, err := q.cat.ListCrashedProcessingFrames()
	if err != nil {
		return err
	}
	for _, frameID := range ids {
		frame, err := q.cat.FrameByID(frameID)
		if err != nil || frame == nil {
			continue
		}
		segment, err := q.cat.SegmentByID(frame.SegmentID)
		if err != nil || segment == nil || !q.store.SegmentExists(segment.RelativePath) {
			_ = q.cat.UpdateFrameStatus(frameID, catalog.StatusFailed)
			continue
		}
		if err := q.cat.UpdateFrameStatus(frameID, catalog.StatusPending); err != nil {
			continue
		}
		_ = q.cat.EnqueueFrame(frameID, 0)
	}
	return nil
}

// Run starts the worker pool and blocks until ctx is cancelled, then
// waits for all workers to return.
func (q *OcrQueue) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for i := 0; i < q.cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			q.workerLoop(ctx)
		}()
	}
	wg.Wait()
}

func (q *OcrQueue) workerLoop(ctx context.Context) {
	ticker := time.NewTicker(q.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !q.isReady() {
				continue
			}
			q.processOne(ctx)
		}
	}
}

func (q *OcrQueue) processOne(ctx context.Context) {
	row, err := q.cat.DequeueFrame()
	if err != nil || row == nil {
		return
	}

	if err := q.cat.UpdateFrameStatus(row.FrameID, catalog.StatusProcessing); err != nil {
		return
	}

	pixels, frame, ferr := q.obtainPixels(row.FrameID)
	if ferr != nil {
		q.classifyAndHandle(row, ferr)
		return
	}

	extractErr := q.extractor.Extract(pixels, row.FrameID, frame.SegmentID, frame.Metadata)
	if extractErr != nil {
		q.classifyAndHandle(row, extractErr)
		return
	}
	_ = q.cat.UpdateFrameStatus(row.FrameID, catalog.StatusCompleted)
}

// obtainPixels gets the pixel buffer first from the in-memory cache,
// removing on use, otherwise reads from SegmentStore by
// (segment_id_from_path, frame_index).
func (q *OcrQueue) obtainPixels(frameID int64) (segstore.PixelBuffer, *catalog.Frame, error) {
	if p, ok := q.cache.Take(frameID); ok {
		frame, err := q.cat.FrameByID(frameID)
		if err != nil || frame == nil {
			return segstore.PixelBuffer{}, nil, errFrameMissing
		}
		return p, frame, nil
	}

	frame, err := q.cat.FrameByID(frameID)
	if err != nil || frame == nil {
		return segstore.PixelBuffer{}, nil, errFrameMissing
	}
	segment, err := q.cat.SegmentByID(frame.SegmentID)
	if err != nil || segment == nil {
		return segstore.PixelBuffer{}, nil, errFrameMissing
	}
	pixels, err := q.store.ReadFrame(segment.RelativePath, frame.FrameIndexInSegment)
	if err != nil {
		return segstore.PixelBuffer{}, frame, err
	}
	return pixels, frame, nil
}

var errFrameMissing = segstoreNotFoundErr{}

type segstoreNotFoundErr struct{}

func (segstoreNotFoundErr) Error() string { return "ocrqueue: frame or segment row vanished" }

// classifyAndHandle classifies an OCR failure: verified
// unrecoverable errors delete the frame row or mark it failed without
// deleting; everything else is treated as transient and requeued with a
// bumped retry count until max_retries is exhausted.
func (q *OcrQueue) classifyAndHandle(row *catalog.QueueRow, err error) {
	if segstore.IsFrameOutOfRange(err) {
		if q.verifyDeletable(row.FrameID) {
			_ = q.cat.DeleteFrame(row.FrameID)
			return
		}
		_ = q.cat.UpdateFrameStatus(row.FrameID, catalog.StatusFailed)
		return
	}
	if segstore.IsFileMissing(err) || segstore.IsDamaged(err) {
		_ = q.cat.UpdateFrameStatus(row.FrameID, catalog.StatusFailed)
		return
	}

	if row.RetryCount >= q.cfg.MaxRetries {
		_ = q.cat.UpdateFrameStatus(row.FrameID, catalog.StatusFailed)
		return
	}
	_ = q.cat.UpdateFrameStatus(row.FrameID, catalog.StatusPending)
	_ = q.cat.RequeueFrame(row.FrameID, row.RetryCount+1, errMessage(err))
}

// verifyDeletable implements the three-step verification before deleting
// a frame on a "frame index out of range" signal: the frame and its
// segment both exist in the catalog, and the segment file exists on
// disk. Any check failing converts the outcome to "mark failed" instead,
// guarding against data loss from transient tail-of-segment races.
func (q *OcrQueue) verifyDeletable(frameID int64) bool {
	frame, err := q.cat.FrameByID(frameID)
	if err != nil || frame == nil {
		return false
	}
	segment, err := q.cat.SegmentByID(frame.SegmentID)
	if err != nil || segment == nil {
		return false
	}
	return q.store.SegmentExists(segment.RelativePath)
}

func errMessage(err error) string {
	if err == nil {
		return ""
	}
	return strings.TrimSpace(err.Error())
}
