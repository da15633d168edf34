//go:build !windows

package textextract

import "github.com/eequaled/recall/pkg/segstore"

// NoopRecognizer never finds text; Windows.Media.Ocr has no analog on
// other platforms in this corpus.
type NoopRecognizer struct{}

// NewNoopRecognizer returns a recognizer that always reports no regions.
func NewNoopRecognizer() *NoopRecognizer { return &NoopRecognizer{} }

// Recognize always returns no regions.
func (NoopRecognizer) Recognize(segstore.PixelBuffer) ([]OCRRegion, error) {
	return nil, nil
}
