package textextract

import (
	"path/filepath"
	"testing"

	"github.com/eequaled/recall/pkg/capture/accessibility"
	"github.com/eequaled/recall/pkg/catalog"
	"github.com/eequaled/recall/pkg/segstore"
)

type fakeRecognizer struct {
	regions []OCRRegion
	calls   int
}

func (f *fakeRecognizer) Recognize(segstore.PixelBuffer) ([]OCRRegion, error) {
	f.calls++
	return f.regions, nil
}

type fakeFocusSource struct{ handle uintptr }

func (f fakeFocusSource) FocusedHandle() uintptr { return f.handle }

func newTestExtractor(t *testing.T, recognizer TextRecognizer, accessor accessibility.Provider, focus FocusedHandleSource, cfg Config) (*TextExtractor, *catalog.Catalog) {
	t.Helper()
	dir := t.TempDir()
	cat, err := catalog.Open(filepath.Join(dir, "catalog.db"))
	if err != nil {
		t.Fatalf("open catalog: %v", err)
	}
	t.Cleanup(func() { cat.Close() })
	return New(recognizer, cat, accessor, focus, cfg), cat
}

func solidPixels(w, h int) segstore.PixelBuffer {
	return segstore.NewPixelBuffer(w, h)
}

func TestExtractWritesContentAndChromeRegions(t *testing.T) {
	rec := &fakeRecognizer{regions: []OCRRegion{
		{Text: "top bar menu", X: 0, Y: 0, W: 40, H: 4},
		{Text: "hello world", X: 0, Y: 50, W: 40, H: 10},
	}}
	cfg := Config{TileGridCols: 1, TileGridRows: 1, AccessibilityEnabled: false}
	ex, cat := newTestExtractor(t, rec, nil, nil, cfg)

	segID, err := cat.InsertSegment(catalog.Segment{Width: 40, Height: 100})
	if err != nil {
		t.Fatalf("insert segment: %v", err)
	}
	frameID, err := cat.InsertFrame(catalog.Frame{SegmentID: segID, ProcessingStatus: catalog.StatusProcessing, SourceKind: catalog.SourceNative})
	if err != nil {
		t.Fatalf("insert frame: %v", err)
	}

	if err := ex.Extract(solidPixels(40, 100), frameID, segID, catalog.FrameMetadata{}); err != nil {
		t.Fatalf("extract: %v", err)
	}
	if rec.calls != 1 {
		t.Fatalf("expected 1 recognize call, got %d", rec.calls)
	}
}

func TestExtractReusesTileCacheOnIdenticalFrame(t *testing.T) {
	rec := &fakeRecognizer{regions: []OCRRegion{{Text: "same", X: 0, Y: 0, W: 10, H: 10}}}
	cfg := Config{TileGridCols: 2, TileGridRows: 2, AccessibilityEnabled: false}
	ex, cat := newTestExtractor(t, rec, nil, nil, cfg)

	segID, _ := cat.InsertSegment(catalog.Segment{Width: 20, Height: 20})
	f1, _ := cat.InsertFrame(catalog.Frame{SegmentID: segID, ProcessingStatus: catalog.StatusProcessing, SourceKind: catalog.SourceNative})
	f2, _ := cat.InsertFrame(catalog.Frame{SegmentID: segID, ProcessingStatus: catalog.StatusProcessing, SourceKind: catalog.SourceNative})

	pixels := solidPixels(20, 20)
	if err := ex.Extract(pixels, f1, segID, catalog.FrameMetadata{}); err != nil {
		t.Fatalf("extract 1: %v", err)
	}
	callsAfterFirst := rec.calls
	if err := ex.Extract(pixels, f2, segID, catalog.FrameMetadata{}); err != nil {
		t.Fatalf("extract 2: %v", err)
	}
	if rec.calls != callsAfterFirst {
		t.Fatalf("expected cached tiles to skip re-recognition, calls went from %d to %d", callsAfterFirst, rec.calls)
	}
}

func TestExtractMergesAccessibilityTextWhenSimilar(t *testing.T) {
	rec := &fakeRecognizer{regions: []OCRRegion{{Text: "hello world", X: 0, Y: 50, W: 40, H: 10}}}
	accessor := accessibility.FakeProvider{Granted: true, Snapshot: accessibility.Snapshot{TextSnippets: []string{"hello", "world"}}}
	focus := fakeFocusSource{handle: 42}
	cfg := DefaultConfig()
	cfg.TileGridCols, cfg.TileGridRows = 1, 1
	ex, cat := newTestExtractor(t, rec, accessor, focus, cfg)

	segID, _ := cat.InsertSegment(catalog.Segment{Width: 40, Height: 100})
	frameID, _ := cat.InsertFrame(catalog.Frame{SegmentID: segID, ProcessingStatus: catalog.StatusProcessing, SourceKind: catalog.SourceNative})

	if err := ex.Extract(solidPixels(40, 100), frameID, segID, catalog.FrameMetadata{}); err != nil {
		t.Fatalf("extract: %v", err)
	}
}

func TestExtractSkipsAccessibilityWhenNoFocusedHandle(t *testing.T) {
	rec := &fakeRecognizer{regions: []OCRRegion{{Text: "hello world", X: 0, Y: 50, W: 40, H: 10}}}
	accessor := accessibility.FakeProvider{Granted: true, Snapshot: accessibility.Snapshot{TextSnippets: []string{"hello"}}}
	focus := fakeFocusSource{handle: 0}
	cfg := DefaultConfig()
	cfg.TileGridCols, cfg.TileGridRows = 1, 1
	ex, cat := newTestExtractor(t, rec, accessor, focus, cfg)

	segID, _ := cat.InsertSegment(catalog.Segment{Width: 40, Height: 100})
	frameID, _ := cat.InsertFrame(catalog.Frame{SegmentID: segID, ProcessingStatus: catalog.StatusProcessing, SourceKind: catalog.SourceNative})

	if err := ex.Extract(solidPixels(40, 100), frameID, segID, catalog.FrameMetadata{}); err != nil {
		t.Fatalf("extract: %v", err)
	}
}

func TestExtractFindsURLInChromeTextOnly(t *testing.T) {
	rec := &fakeRecognizer{regions: []OCRRegion{
		{Text: "visit https://example.com/page now", X: 0, Y: 0, W: 40, H: 4},
		{Text: "https://shouldnotcount.com content", X: 0, Y: 50, W: 40, H: 10},
	}}
	cfg := Config{TileGridCols: 1, TileGridRows: 1, AccessibilityEnabled: false}
	ex, cat := newTestExtractor(t, rec, nil, nil, cfg)

	segID, _ := cat.InsertSegment(catalog.Segment{Width: 40, Height: 100})
	frameID, _ := cat.InsertFrame(catalog.Frame{SegmentID: segID, ProcessingStatus: catalog.StatusProcessing, SourceKind: catalog.SourceNative})

	if err := ex.Extract(solidPixels(40, 100), frameID, segID, catalog.FrameMetadata{}); err != nil {
		t.Fatalf("extract: %v", err)
	}

	frame, err := cat.FrameByID(frameID)
	if err != nil || frame == nil {
		t.Fatalf("frame lookup failed: %v", err)
	}
	if frame.Metadata.BrowserURL != "https://example.com/page" {
		t.Fatalf("expected URL resolved from chrome text, got %q", frame.Metadata.BrowserURL)
	}
}
