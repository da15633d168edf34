package retention

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/eequaled/recall/pkg/catalog"
	"github.com/eequaled/recall/pkg/segstore"
)

func newTestEnforcer(t *testing.T, cfg Config) (*Enforcer, *catalog.Catalog, *segstore.Store) {
	t.Helper()
	dir := t.TempDir()
	cat, err := catalog.Open(filepath.Join(dir, "catalog.db"))
	if err != nil {
		t.Fatalf("open catalog: %v", err)
	}
	t.Cleanup(func() { cat.Close() })
	store := segstore.Open(dir, nil)
	return New(cat, store, cfg), cat, store
}

func seedClosedSegment(t *testing.T, cat *catalog.Catalog, store *segstore.Store, openedAt time.Time, frames int) (segmentID int64, frameIDs []int64) {
	t.Helper()
	segmentID, err := cat.InsertSegment(catalog.Segment{OpenedAt: openedAt, Width: 4, Height: 4})
	if err != nil {
		t.Fatalf("insert segment: %v", err)
	}
	h, relPath, err := store.OpenSegment(segmentID, 4, 4, openedAt)
	if err != nil {
		t.Fatalf("open segment: %v", err)
	}
	if err := cat.SetSegmentPath(segmentID, relPath); err != nil {
		t.Fatalf("set segment path: %v", err)
	}
	for i := 0; i < frames; i++ {
		idx, err := h.Append(segstore.NewPixelBuffer(4, 4), openedAt)
		if err != nil {
			t.Fatalf("append: %v", err)
		}
		frameID, err := cat.InsertFrame(catalog.Frame{
			CapturedAt: openedAt, SegmentID: segmentID, FrameIndexInSegment: idx,
			ProcessingStatus: catalog.StatusCompleted, SourceKind: catalog.SourceNative,
		})
		if err != nil {
			t.Fatalf("insert frame: %v", err)
		}
		frameIDs = append(frameIDs, frameID)
	}
	if err := h.Finalize(nil); err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if err := cat.CloseSegment(segmentID, openedAt.Add(time.Minute), h.FrameCount()); err != nil {
		t.Fatalf("close segment: %v", err)
	}
	return segmentID, frameIDs
}

func TestAgePolicyDeletesSegmentsOlderThanCutoff(t *testing.T) {
	e, cat, store := newTestEnforcer(t, Config{RetentionAgeDays: 1})
	oldSegment, _ := seedClosedSegment(t, cat, store, time.Now().Add(-48*time.Hour), 3)
	newSegment, _ := seedClosedSegment(t, cat, store, time.Now(), 2)

	result := e.EnforceOnce()
	if result.SegmentsDeletedByAge != 1 {
		t.Fatalf("expected 1 segment deleted by age, got %d", result.SegmentsDeletedByAge)
	}

	if seg, _ := cat.SegmentByID(oldSegment); seg != nil {
		t.Fatalf("expected old segment to be deleted")
	}
	if seg, _ := cat.SegmentByID(newSegment); seg == nil {
		t.Fatalf("expected new segment to remain")
	}
}

func TestOrphanSweepRemovesCatalogRowWithoutFile(t *testing.T) {
	e, cat, store := newTestEnforcer(t, Config{})
	segmentID, _ := seedClosedSegment(t, cat, store, time.Now().Add(-time.Hour), 1)

	seg, err := cat.SegmentByID(segmentID)
	if err != nil || seg == nil {
		t.Fatalf("segment lookup: %v", err)
	}
	if err := store.DeleteSegment(seg.RelativePath); err != nil {
		t.Fatalf("remove segment file: %v", err)
	}

	result := e.EnforceOnce()
	if result.OrphanRowsDeleted != 1 {
		t.Fatalf("expected 1 orphan row deleted, got %d", result.OrphanRowsDeleted)
	}
	if seg, _ := cat.SegmentByID(segmentID); seg != nil {
		t.Fatalf("expected segment row to be gone after orphan sweep")
	}
}

func TestOrphanSweepRemovesFileWithoutCatalogRow(t *testing.T) {
	e, cat, store := newTestEnforcer(t, Config{})
	segmentID, _ := seedClosedSegment(t, cat, store, time.Now().Add(-time.Hour), 1)
	seg, _ := cat.SegmentByID(segmentID)

	// Remove the catalog row directly, leaving the file orphaned.
	if err := cat.DeleteSegmentCascade(segmentID); err != nil {
		t.Fatalf("delete segment cascade: %v", err)
	}
	if !store.SegmentExists(seg.RelativePath) {
		t.Fatalf("expected file to still exist before sweep")
	}

	result := e.EnforceOnce()
	if result.OrphanFilesDeleted != 1 {
		t.Fatalf("expected 1 orphan file deleted, got %d", result.OrphanFilesDeleted)
	}
	if store.SegmentExists(seg.RelativePath) {
		t.Fatalf("expected orphaned file to be removed")
	}
}

func TestOrphanSweepIsNoOpOnCleanState(t *testing.T) {
	e, cat, store := newTestEnforcer(t, Config{})
	seedClosedSegment(t, cat, store, time.Now(), 2)

	result := e.EnforceOnce()
	if result.OrphanRowsDeleted != 0 || result.OrphanFilesDeleted != 0 {
		t.Fatalf("expected no-op sweep on clean state, got %+v", result)
	}
}

func TestQuickDeleteDeletesFramesSinceCutoff(t *testing.T) {
	e, cat, store := newTestEnforcer(t, Config{})
	_, oldFrames := seedClosedSegment(t, cat, store, time.Now().Add(-2*time.Hour), 1)
	_, newFrames := seedClosedSegment(t, cat, store, time.Now(), 1)

	cutoff := time.Now().Add(-time.Hour)
	count, err := e.QuickDelete(cutoff)
	if err != nil {
		t.Fatalf("quick delete: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 frame deleted, got %d", count)
	}

	if frame, _ := cat.FrameByID(oldFrames[0]); frame == nil {
		t.Fatalf("expected old frame (captured before cutoff) to remain")
	}
	if frame, _ := cat.FrameByID(newFrames[0]); frame != nil {
		t.Fatalf("expected new frame (captured at/after cutoff) to be deleted")
	}
}
