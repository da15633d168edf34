package capture

import (
	"time"

	"github.com/eequaled/recall/pkg/catalog"
	"github.com/eequaled/recall/pkg/segstore"
)

// WindowInfo is the typed record parsed immediately at the OS boundary
// from whatever heterogeneous window-list structure the platform API
// returns. No dynamic dictionary is allowed to flow past this point.
type WindowInfo struct {
	Handle      uintptr
	Bounds      Rect
	OwnerPID    int
	AppBundleID string
	AppName     string
	Layer       int
	Alpha       float64
	Title       string
}

// CapturedFrame is one capture tick's output: pixel data in 32-bit BGRA
// with known dimensions, plus the metadata resolved for the frontmost
// relevant window.
type CapturedFrame struct {
	CapturedAt time.Time
	Pixels     segstore.PixelBuffer
	Metadata   catalog.FrameMetadata
}

// Config mirrors CaptureConfig's recognized settings. Dedup lives on
// ingest.Config instead: FrameIngestor is the single consumer that
// actually compares consecutive frames, so the threshold is configured
// where it's read.
type Config struct {
	CaptureIntervalSeconds   int
	ExcludedAppBundleIDs     map[string]bool
	ExcludePrivateWindows    bool
	MaxResolutionWidth       int
	MaxResolutionHeight      int
	CaptureActiveDisplayOnly bool
}

// DefaultConfig returns sane defaults for a freshly installed capture
// loop.
func DefaultConfig() Config {
	return Config{
		CaptureIntervalSeconds:   5,
		ExcludedAppBundleIDs:     map[string]bool{},
		ExcludePrivateWindows:    true,
		MaxResolutionWidth:       2560,
		MaxResolutionHeight:      1440,
		CaptureActiveDisplayOnly: true,
	}
}
