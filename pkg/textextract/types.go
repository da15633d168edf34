// Package textextract implements TextExtractor: region-based OCR with a
// tile-level spatial cache, chrome/content separation, an accessibility
// merge, and URL extraction, writing through to Catalog.
// The OCR engine itself is abstracted behind TextRecognizer; no example
// repo in the corpus carried a real cross-platform OCR binding, so the
// interface is implemented by a PowerShell/Windows.Media.Ocr shim on
// Windows (grounded in waddle's pkg/ocr/ocr.go exec.Command invocation
// style) and a fake elsewhere.
package textextract

import "github.com/eequaled/recall/pkg/segstore"

// OCRRegion is one recognized text region at paragraph granularity, in
// frame-absolute pixel coordinates.
type OCRRegion struct {
	Text string
	X, Y, W, H int
}

// TextRecognizer performs OCR over a pixel buffer, returning paragraph-
// granularity regions. Implementations are platform-specific; the OCR
// engine's internal behavior is treated as out of scope.
type TextRecognizer interface {
	Recognize(pixels segstore.PixelBuffer) ([]OCRRegion, error)
}

// Config tunes TextExtractor's tiling and accessibility-merge behavior.
type Config struct {
	TileGridCols          int
	TileGridRows          int
	AccessibilityEnabled  bool
	AccessibilityMaxDepth int
	JaccardMergeThreshold float64
}

// DefaultConfig returns sane defaults.
func DefaultConfig() Config {
	return Config{
		TileGridCols:          4,
		TileGridRows:          4,
		AccessibilityEnabled:  true,
		AccessibilityMaxDepth: 15,
		JaccardMergeThreshold: 0.85,
	}
}
