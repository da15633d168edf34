package ingest

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/eequaled/recall/pkg/capture"
	"github.com/eequaled/recall/pkg/catalog"
	"github.com/eequaled/recall/pkg/dedup"
	"github.com/eequaled/recall/pkg/ocrqueue"
	"github.com/eequaled/recall/pkg/segstore"
)

func newTestIngestor(t *testing.T, cfg Config) (*FrameIngestor, *catalog.Catalog) {
	t.Helper()
	dir := t.TempDir()
	cat, err := catalog.Open(filepath.Join(dir, "catalog.db"))
	if err != nil {
		t.Fatalf("open catalog: %v", err)
	}
	t.Cleanup(func() { cat.Close() })

	store := segstore.Open(dir, nil)
	cache := ocrqueue.NewPixelCache()
	return New(cat, store, dedup.New(), cache, cfg), cat
}

func solidFrame(fill byte, display string, at time.Time) capture.CapturedFrame {
	p := segstore.NewPixelBuffer(4, 4)
	for i := range p.Pix {
		p.Pix[i] = fill
	}
	return capture.CapturedFrame{
		CapturedAt: at,
		Pixels:     p,
		Metadata:   catalog.FrameMetadata{DisplayID: display},
	}
}

func TestIngestDedupDropsRepeatedFrame(t *testing.T) {
	fi, cat := newTestIngestor(t, Config{Deduplicate: true, DedupThreshold: 0.98})

	now := time.Now()
	for i := 0; i < 10; i++ {
		if err := fi.Ingest(solidFrame(7, "0", now.Add(time.Duration(i)*time.Millisecond))); err != nil {
			t.Fatalf("ingest %d: %v", i, err)
		}
	}
	fi.Close()

	segs, err := cat.SegmentsTouchingRange(now.Add(-time.Hour), now.Add(time.Hour))
	if err != nil {
		t.Fatalf("segments touching range: %v", err)
	}
	if len(segs) != 1 {
		t.Fatalf("expected 1 segment, got %d", len(segs))
	}
	if segs[0].FrameCount != 1 {
		t.Fatalf("expected 1 frame after dedup, got %d", segs[0].FrameCount)
	}
}

func TestIngestRolloverOnDisplayChange(t *testing.T) {
	fi, cat := newTestIngestor(t, Config{Deduplicate: false})

	now := time.Now()
	for i := 0; i < 5; i++ {
		if err := fi.Ingest(solidFrame(byte(i), "A", now.Add(time.Duration(i)*time.Millisecond))); err != nil {
			t.Fatalf("ingest A %d: %v", i, err)
		}
	}
	for i := 0; i < 5; i++ {
		if err := fi.Ingest(solidFrame(byte(i), "B", now.Add(time.Duration(5+i)*time.Millisecond))); err != nil {
			t.Fatalf("ingest B %d: %v", i, err)
		}
	}
	fi.Close()

	segs, err := cat.SegmentsTouchingRange(now.Add(-time.Hour), now.Add(time.Hour))
	if err != nil {
		t.Fatalf("segments touching range: %v", err)
	}
	if len(segs) != 2 {
		t.Fatalf("expected 2 segments on display rollover, got %d", len(segs))
	}
	for _, s := range segs {
		if s.FrameCount != 5 {
			t.Fatalf("expected 5 frames per segment, got %d", s.FrameCount)
		}
	}
}

func TestIngestPutsPixelsInCache(t *testing.T) {
	dir := t.TempDir()
	cat, err := catalog.Open(filepath.Join(dir, "catalog.db"))
	if err != nil {
		t.Fatalf("open catalog: %v", err)
	}
	t.Cleanup(func() { cat.Close() })
	store := segstore.Open(dir, nil)
	cache := ocrqueue.NewPixelCache()
	fi := New(cat, store, dedup.New(), cache, Config{})

	if err := fi.Ingest(solidFrame(1, "0", time.Now())); err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if cache.Len() != 1 {
		t.Fatalf("expected 1 cached pixel buffer, got %d", cache.Len())
	}
	fi.Close()
}
