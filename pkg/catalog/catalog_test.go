package catalog

import (
	"path/filepath"
	"testing"
	"time"
)

func openTestCatalog(t *testing.T) *Catalog {
	t.Helper()
	dir := t.TempDir()
	c, err := Open(filepath.Join(dir, "catalog.db"))
	if err != nil {
		t.Fatalf("open catalog: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func insertOpenSegment(t *testing.T, c *Catalog) int64 {
	t.Helper()
	segID, err := c.InsertSegment(Segment{
		OpenedAt:     time.Now(),
		RelativePath: "segments/2026/07/31/segment_1",
		Width:        1920,
		Height:       1080,
	})
	if err != nil {
		t.Fatalf("insert segment: %v", err)
	}
	return segID
}

func TestInsertFrameAndFrameByID(t *testing.T) {
	c := openTestCatalog(t)
	segID := insertOpenSegment(t, c)

	frameID, err := c.InsertFrame(Frame{
		CapturedAt:          time.Now(),
		SegmentID:           segID,
		FrameIndexInSegment: 0,
		Metadata:            FrameMetadata{AppName: "Editor"},
		ProcessingStatus:    StatusPending,
		SourceKind:          SourceNative,
	})
	if err != nil {
		t.Fatalf("insert frame: %v", err)
	}

	f, err := c.FrameByID(frameID)
	if err != nil {
		t.Fatalf("frame by id: %v", err)
	}
	if f == nil {
		t.Fatal("expected frame, got nil")
	}
	if f.ProcessingStatus != StatusPending {
		t.Fatalf("expected pending status, got %s", f.ProcessingStatus)
	}
}

func TestDuplicateFrameIndexInSegmentRejected(t *testing.T) {
	c := openTestCatalog(t)
	segID := insertOpenSegment(t, c)

	f := Frame{CapturedAt: time.Now(), SegmentID: segID, FrameIndexInSegment: 0, ProcessingStatus: StatusPending, SourceKind: SourceNative}
	if _, err := c.InsertFrame(f); err != nil {
		t.Fatalf("first insert: %v", err)
	}
	if _, err := c.InsertFrame(f); err == nil {
		t.Fatal("expected invariant violation on duplicate (segment_id, frame_index_in_segment)")
	} else if !IsInvariantViolation(err) {
		t.Fatalf("expected invariant violation, got %v", err)
	}
}

func TestEnqueueFrameIdempotent(t *testing.T) {
	c := openTestCatalog(t)
	segID := insertOpenSegment(t, c)
	frameID, err := c.InsertFrame(Frame{CapturedAt: time.Now(), SegmentID: segID, FrameIndexInSegment: 0, ProcessingStatus: StatusPending, SourceKind: SourceNative})
	if err != nil {
		t.Fatalf("insert frame: %v", err)
	}

	for i := 0; i < 5; i++ {
		if err := c.EnqueueFrame(frameID, 1); err != nil {
			t.Fatalf("enqueue %d: %v", i, err)
		}
	}

	row, err := c.DequeueFrame()
	if err != nil {
		t.Fatalf("dequeue: %v", err)
	}
	if row == nil {
		t.Fatal("expected one queue row")
	}
	second, err := c.DequeueFrame()
	if err != nil {
		t.Fatalf("dequeue second: %v", err)
	}
	if second != nil {
		t.Fatal("expected no duplicate queue row after repeated enqueue")
	}
}

func TestDequeueOrderPriorityThenFIFO(t *testing.T) {
	c := openTestCatalog(t)
	segID := insertOpenSegment(t, c)

	var ids []int64
	for i := 0; i < 3; i++ {
		id, err := c.InsertFrame(Frame{CapturedAt: time.Now(), SegmentID: segID, FrameIndexInSegment: i, ProcessingStatus: StatusPending, SourceKind: SourceNative})
		if err != nil {
			t.Fatalf("insert frame %d: %v", i, err)
		}
		ids = append(ids, id)
	}

	// ids[0] low priority first, ids[1] high priority second, ids[2] low priority third.
	if err := c.EnqueueFrame(ids[0], 1); err != nil {
		t.Fatal(err)
	}
	time.Sleep(time.Millisecond)
	if err := c.EnqueueFrame(ids[1], 5); err != nil {
		t.Fatal(err)
	}
	time.Sleep(time.Millisecond)
	if err := c.EnqueueFrame(ids[2], 1); err != nil {
		t.Fatal(err)
	}

	first, err := c.DequeueFrame()
	if err != nil || first == nil {
		t.Fatalf("dequeue first: %v", err)
	}
	if first.FrameID != ids[1] {
		t.Fatalf("expected highest-priority frame %d first, got %d", ids[1], first.FrameID)
	}

	second, err := c.DequeueFrame()
	if err != nil || second == nil {
		t.Fatalf("dequeue second: %v", err)
	}
	if second.FrameID != ids[0] {
		t.Fatalf("expected earliest-enqueued low-priority frame %d second, got %d", ids[0], second.FrameID)
	}
}

func TestDeleteFrameRemovesFTSAndRegions(t *testing.T) {
	c := openTestCatalog(t)
	segID := insertOpenSegment(t, c)
	frameID, err := c.InsertFrame(Frame{CapturedAt: time.Now(), SegmentID: segID, FrameIndexInSegment: 0, ProcessingStatus: StatusCompleted, SourceKind: SourceNative})
	if err != nil {
		t.Fatalf("insert frame: %v", err)
	}
	if err := c.WriteExtractedText(
		ExtractedText{FrameID: frameID, SegmentID: segID, FullText: "hello world", ChromeText: "menu"},
		[]Region{{FrameID: frameID, TextOffset: 0, TextLength: 5, BoundsX: 0, BoundsY: 0, BoundsW: 10, BoundsH: 10}},
	); err != nil {
		t.Fatalf("write extracted text: %v", err)
	}

	if err := c.DeleteFrame(frameID); err != nil {
		t.Fatalf("delete frame: %v", err)
	}
	if f, err := c.FrameByID(frameID); err != nil || f != nil {
		t.Fatalf("expected frame gone, got %v err=%v", f, err)
	}
	results, err := c.Search(SearchParams{MatchExpr: "hello"})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("expected no search hits after delete, got %d", len(results))
	}
}

func TestWriteExtractedTextIsIdempotentOnRegionCount(t *testing.T) {
	c := openTestCatalog(t)
	segID := insertOpenSegment(t, c)
	frameID, err := c.InsertFrame(Frame{CapturedAt: time.Now(), SegmentID: segID, FrameIndexInSegment: 0, ProcessingStatus: StatusCompleted, SourceKind: SourceNative})
	if err != nil {
		t.Fatalf("insert frame: %v", err)
	}

	regions := []Region{
		{FrameID: frameID, TextOffset: 0, TextLength: 5, BoundsW: 10, BoundsH: 10},
		{FrameID: frameID, TextOffset: 6, TextLength: 5, BoundsW: 10, BoundsH: 10},
	}
	for i := 0; i < 2; i++ {
		if err := c.WriteExtractedText(ExtractedText{FrameID: frameID, SegmentID: segID, FullText: "hello world"}, regions); err != nil {
			t.Fatalf("write extracted text pass %d: %v", i, err)
		}
	}

	var count int
	if err := c.db.QueryRow(`SELECT COUNT(*) FROM regions WHERE frame_id = ?`, frameID).Scan(&count); err != nil {
		t.Fatalf("count regions: %v", err)
	}
	if count != len(regions) {
		t.Fatalf("expected %d regions after re-OCR, got %d", len(regions), count)
	}
}

func TestDeleteSegmentCascade(t *testing.T) {
	c := openTestCatalog(t)
	segID := insertOpenSegment(t, c)

	var frameIDs []int64
	for i := 0; i < 3; i++ {
		id, err := c.InsertFrame(Frame{CapturedAt: time.Now(), SegmentID: segID, FrameIndexInSegment: i, ProcessingStatus: StatusCompleted, SourceKind: SourceNative})
		if err != nil {
			t.Fatalf("insert frame: %v", err)
		}
		if err := c.WriteExtractedText(ExtractedText{FrameID: id, SegmentID: segID, FullText: "text"}, nil); err != nil {
			t.Fatalf("write extracted text: %v", err)
		}
		frameIDs = append(frameIDs, id)
	}
	if err := c.EnqueueFrame(frameIDs[0], 1); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	if err := c.DeleteSegmentCascade(segID); err != nil {
		t.Fatalf("cascade delete: %v", err)
	}
	for _, id := range frameIDs {
		if f, err := c.FrameByID(id); err != nil || f != nil {
			t.Fatalf("expected frame %d gone", id)
		}
	}
}

func TestListCrashedProcessingFrames(t *testing.T) {
	c := openTestCatalog(t)
	segID := insertOpenSegment(t, c)
	stuck, err := c.InsertFrame(Frame{CapturedAt: time.Now(), SegmentID: segID, FrameIndexInSegment: 0, ProcessingStatus: StatusProcessing, SourceKind: SourceNative})
	if err != nil {
		t.Fatalf("insert frame: %v", err)
	}
	if _, err := c.InsertFrame(Frame{CapturedAt: time.Now(), SegmentID: segID, FrameIndexInSegment: 1, ProcessingStatus: StatusPending, SourceKind: SourceNative}); err != nil {
		t.Fatalf("insert frame: %v", err)
	}

	crashed, err := c.ListCrashedProcessingFrames()
	if err != nil {
		t.Fatalf("list crashed: %v", err)
	}
	if len(crashed) != 1 || crashed[0] != stuck {
		t.Fatalf("expected only frame %d, got %v", stuck, crashed)
	}
}

func TestSettingsRoundTrip(t *testing.T) {
	c := openTestCatalog(t)
	if err := c.SetSetting("capture_interval_seconds", "5"); err != nil {
		t.Fatalf("set setting: %v", err)
	}
	v, ok, err := c.GetSetting("capture_interval_seconds")
	if err != nil || !ok || v != "5" {
		t.Fatalf("expected 5, got %q ok=%v err=%v", v, ok, err)
	}
	if err := c.SetSetting("capture_interval_seconds", "10"); err != nil {
		t.Fatalf("update setting: %v", err)
	}
	v, _, _ = c.GetSetting("capture_interval_seconds")
	if v != "10" {
		t.Fatalf("expected updated value 10, got %q", v)
	}
}
