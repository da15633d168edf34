// Package retention implements RetentionEnforcer: age-then-size segment
// deletion, an idempotent orphan sweep, and an operator quick-delete
// variant. Grounded in waddle's
// pkg/storage/retention_manager.go (ApplyRetentionPolicy's ordered
// age/orphan-sweep passes, a Result struct reporting counts), adapted
// from session-archival semantics to segment/frame cascade deletes.
package retention

import (
	"context"
	"time"

	"github.com/eequaled/recall/pkg/catalog"
	"github.com/eequaled/recall/pkg/segstore"
)

// Config tunes the two ordered policies RetentionEnforcer applies.
type Config struct {
	RetentionAgeDays int   // 0 disables the age policy
	MaxStorageBytes  int64 // 0 disables the size policy
	Interval         time.Duration
}

// DefaultConfig returns sane defaults: both policies disabled, a 1 hour
// schedule (the caller enables whichever policy it wants).
func DefaultConfig() Config {
	return Config{Interval: time.Hour}
}

// Result reports what one enforcement pass did.
type Result struct {
	SegmentsDeletedByAge  int
	SegmentsDeletedBySize int
	OrphanRowsDeleted     int
	OrphanFilesDeleted    int
	Errors                []error
}

// Enforcer runs the age and size policies in order, then an idempotent
// orphan sweep. It is a serialized actor: Run's ticker loop and any
// direct EnforceOnce call from a config-change notification share no
// concurrent access to mutable state (it holds none beyond its config).
type Enforcer struct {
	cat   *catalog.Catalog
	store *segstore.Store
	cfg   Config
}

// New constructs an Enforcer.
func New(cat *catalog.Catalog, store *segstore.Store, cfg Config) *Enforcer {
	return &Enforcer{cat: cat, store: store, cfg: cfg}
}

// Run ticks on cfg.Interval until ctx is cancelled, calling EnforceOnce
// on each tick. Cancellation is honored at the top of each iteration.
func (e *Enforcer) Run(ctx context.Context) {
	interval := e.cfg.Interval
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.EnforceOnce()
		}
	}
}

// EnforceOnce applies the age policy, then the size policy, then the
// orphan sweep, in that order, and returns a count of everything it did.
func (e *Enforcer) EnforceOnce() Result {
	var result Result

	if e.cfg.RetentionAgeDays > 0 {
		result.SegmentsDeletedByAge = e.applyAgePolicy(&result)
	}
	if e.cfg.MaxStorageBytes > 0 {
		result.SegmentsDeletedBySize = e.applySizePolicy(&result)
	}
	e.orphanSweep(&result)

	return result
}

func (e *Enforcer) applyAgePolicy(result *Result) int {
	cutoff := time.Now().Add(-time.Duration(e.cfg.RetentionAgeDays) * 24 * time.Hour)

	segments, err := e.cat.ListClosedSegmentsByAge()
	if err != nil {
		result.Errors = append(result.Errors, err)
		return 0
	}

	deleted := 0
	for _, seg := range segments {
		if seg.ClosedAt == nil || !seg.ClosedAt.Before(cutoff) {
			break // ordered oldest-first; nothing further qualifies
		}
		if err := e.deleteSegment(seg); err != nil {
			result.Errors = append(result.Errors, err)
			continue
		}
		deleted++
	}
	return deleted
}

func (e *Enforcer) applySizePolicy(result *Result) int {
	total, err := e.totalStorageBytes()
	if err != nil {
		result.Errors = append(result.Errors, err)
		return 0
	}
	if total <= e.cfg.MaxStorageBytes {
		return 0
	}

	segments, err := e.cat.ListClosedSegmentsByAge()
	if err != nil {
		result.Errors = append(result.Errors, err)
		return 0
	}

	deleted := 0
	for _, seg := range segments {
		if total <= e.cfg.MaxStorageBytes {
			break
		}
		size, sizeErr := e.store.FileSize(seg.RelativePath)
		if err := e.deleteSegment(seg); err != nil {
			result.Errors = append(result.Errors, err)
			continue
		}
		deleted++
		if sizeErr == nil {
			total -= size
		}
	}
	return deleted
}

func (e *Enforcer) deleteSegment(seg catalog.Segment) error {
	if err := e.cat.DeleteSegmentCascade(seg.SegmentID); err != nil {
		return err
	}
	return e.store.DeleteSegment(seg.RelativePath)
}

func (e *Enforcer) totalStorageBytes() (int64, error) {
	files, err := e.store.ListSegmentFiles()
	if err != nil {
		return 0, err
	}
	var total int64
	for _, f := range files {
		size, err := e.store.FileSize(f)
		if err != nil {
			continue // file vanished mid-walk; the orphan sweep reconciles it
		}
		total += size
	}
	return total, nil
}

// orphanSweep reconciles catalog rows without backing files and files
// without catalog rows. It is idempotent and safe to run repeatedly or
// after a mid-delete crash.
func (e *Enforcer) orphanSweep(result *Result) {
	catalogPaths, err := e.cat.ListSegmentRelativePaths()
	if err != nil {
		result.Errors = append(result.Errors, err)
		return
	}

	for segmentID, path := range catalogPaths {
		if path == "" {
			continue // still being opened; the two-phase insert-then-path-set hasn't landed yet
		}
		if !e.store.SegmentExists(path) {
			if err := e.cat.DeleteSegmentCascade(segmentID); err != nil {
				result.Errors = append(result.Errors, err)
				continue
			}
			result.OrphanRowsDeleted++
		}
	}

	knownPaths := make(map[string]bool, len(catalogPaths))
	for _, path := range catalogPaths {
		knownPaths[path] = true
	}

	files, err := e.store.ListSegmentFiles()
	if err != nil {
		result.Errors = append(result.Errors, err)
		return
	}
	for _, path := range files {
		if knownPaths[path] {
			continue
		}
		if err := e.store.DeleteSegment(path); err != nil {
			result.Errors = append(result.Errors, err)
			continue
		}
		result.OrphanFilesDeleted++
	}
}

// QuickDelete is the operator-triggered deletion of every frame captured
// at or after cutoff, returning the count deleted.
func (e *Enforcer) QuickDelete(cutoff time.Time) (int, error) {
	return e.cat.DeleteFramesCapturedSince(cutoff)
}
