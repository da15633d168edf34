// Package ingest implements FrameIngestor: the single consumer of
// ScreenSource's output that dedups, rolls segments over, appends pixel
// data, inserts the catalog row, and hands the frame to OcrQueue's pixel
// cache. Grounded in waddle's pipeline/capture.go single-consumer ingest
// loop, generalized onto segstore/catalog instead of direct SQLite
// writes.
package ingest

import (
	"fmt"
	"sync"
	"time"

	"github.com/eequaled/recall/pkg/capture"
	"github.com/eequaled/recall/pkg/catalog"
	"github.com/eequaled/recall/pkg/dedup"
	"github.com/eequaled/recall/pkg/ocrqueue"
	"github.com/eequaled/recall/pkg/segstore"
)

// Config tunes FrameIngestor's dedup/enqueue/rollover behavior.
type Config struct {
	Deduplicate    bool
	DedupThreshold float64
	QueuePriority  int

	// SegmentBucket bounds how long a single segment stays open by wall
	// clock, independent of resolution/display changes. Zero disables
	// the time-based rollover trigger.
	SegmentBucket time.Duration
}

// FrameIngestor is a serialized actor: Ingest must only ever be called by
// one goroutine at a time (its own consumer loop), matching the
// single-writer-per-segment-file invariant in segstore.
type FrameIngestor struct {
	cat   *catalog.Catalog
	store *segstore.Store
	dedup *dedup.Deduplicator
	cache *ocrqueue.PixelCache
	cfg   Config

	mu              sync.Mutex
	active          *segstore.Handle
	activeSegmentID int64
	activeWidth     int
	activeHeight    int
	activeDisplay   string
	activeOpenedAt  time.Time
	lastAccepted    *segstore.PixelBuffer
}

// New constructs a FrameIngestor.
func New(cat *catalog.Catalog, store *segstore.Store, dd *dedup.Deduplicator, cache *ocrqueue.PixelCache, cfg Config) *FrameIngestor {
	return &FrameIngestor{cat: cat, store: store, dedup: dd, cache: cache, cfg: cfg}
}

// Run drives the ingest loop until frames closes or ctx is cancelled,
// finalizing the active segment on exit.
func (fi *FrameIngestor) Run(frames <-chan capture.CapturedFrame, done <-chan struct{}) {
	for {
		select {
		case <-done:
			fi.Close()
			return
		case frame, ok := <-frames:
			if !ok {
				fi.Close()
				return
			}
			if err := fi.Ingest(frame); err != nil {
				// Per-frame failures are isolated; the capture loop itself
				// never stops because one frame failed to ingest.
				continue
			}
		}
	}
}

// Ingest runs the dedup/rollover/append/insert/enqueue sequence for one
// frame.
func (fi *FrameIngestor) Ingest(frame capture.CapturedFrame) error {
	fi.mu.Lock()
	defer fi.mu.Unlock()

	if fi.cfg.Deduplicate && fi.lastAccepted != nil &&
		fi.lastAccepted.Width == frame.Pixels.Width && fi.lastAccepted.Height == frame.Pixels.Height {
		if fi.dedup.IsDuplicate(*fi.lastAccepted, frame.Pixels, fi.cfg.DedupThreshold) {
			return nil
		}
	}

	bucketElapsed := fi.cfg.SegmentBucket > 0 && fi.active != nil && frame.CapturedAt.Sub(fi.activeOpenedAt) >= fi.cfg.SegmentBucket
	if fi.active == nil || fi.activeWidth != frame.Pixels.Width || fi.activeHeight != frame.Pixels.Height || fi.activeDisplay != frame.Metadata.DisplayID || bucketElapsed {
		if err := fi.rollover(frame); err != nil {
			return err
		}
	}

	index, err := fi.active.Append(frame.Pixels, frame.CapturedAt)
	if err != nil {
		return fmt.Errorf("ingest: append frame to segment: %w", err)
	}

	frameID, err := fi.cat.InsertFrame(catalog.Frame{
		CapturedAt:          frame.CapturedAt,
		SegmentID:           fi.activeSegmentID,
		FrameIndexInSegment: index,
		Metadata:            frame.Metadata,
		ProcessingStatus:    catalog.StatusPending,
		SourceKind:          catalog.SourceNative,
	})
	if err != nil {
		// The pixel buffer is already durably appended; it becomes an
		// orphan frame in the video, reconciled by the orphan sweep at
		// retention time rather than rolled back here.
		return fmt.Errorf("ingest: insert frame row: %w", err)
	}

	fi.cache.Put(frameID, frame.Pixels)
	if err := fi.cat.EnqueueFrame(frameID, fi.cfg.QueuePriority); err != nil {
		return fmt.Errorf("ingest: enqueue frame: %w", err)
	}

	pixelsCopy := frame.Pixels
	fi.lastAccepted = &pixelsCopy
	return nil
}

func (fi *FrameIngestor) rollover(frame capture.CapturedFrame) error {
	if fi.active != nil {
		if err := fi.finalizeActive(); err != nil {
			return err
		}
	}

	openedAt := time.Now()
	segmentID, err := fi.cat.InsertSegment(catalog.Segment{
		OpenedAt: openedAt,
		Width:    frame.Pixels.Width,
		Height:   frame.Pixels.Height,
	})
	if err != nil {
		return fmt.Errorf("ingest: insert segment row: %w", err)
	}

	handle, relPath, err := fi.store.OpenSegment(segmentID, frame.Pixels.Width, frame.Pixels.Height, openedAt)
	if err != nil {
		return fmt.Errorf("ingest: open segment file: %w", err)
	}
	if err := fi.cat.SetSegmentPath(segmentID, relPath); err != nil {
		return fmt.Errorf("ingest: record segment path: %w", err)
	}

	fi.active = handle
	fi.activeSegmentID = segmentID
	fi.activeWidth = frame.Pixels.Width
	fi.activeHeight = frame.Pixels.Height
	fi.activeDisplay = frame.Metadata.DisplayID
	fi.activeOpenedAt = openedAt
	fi.lastAccepted = nil
	return nil
}

func (fi *FrameIngestor) finalizeActive() error {
	if err := fi.active.Finalize(fi.store.Vault()); err != nil {
		return fmt.Errorf("ingest: finalize segment: %w", err)
	}
	if err := fi.cat.CloseSegment(fi.activeSegmentID, time.Now(), fi.active.FrameCount()); err != nil {
		return fmt.Errorf("ingest: close segment row: %w", err)
	}
	fi.active = nil
	return nil
}

// Close finalizes the active segment, if any. Safe to call multiple
// times.
func (fi *FrameIngestor) Close() error {
	fi.mu.Lock()
	defer fi.mu.Unlock()
	if fi.active == nil {
		return nil
	}
	return fi.finalizeActive()
}
