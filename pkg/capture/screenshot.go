package capture

import (
	"fmt"
	"strconv"

	"github.com/kbinani/screenshot"

	"github.com/eequaled/recall/pkg/segstore"
)

// ScreenshotCapturer implements Capturer on top of
// github.com/kbinani/screenshot, the same capture library waddle used
// for its single-window grabs (screenshot.CaptureRect against a
// GetWindowRect result), generalized here to whole-display capture via
// screenshot.CaptureDisplay.
type ScreenshotCapturer struct{}

// NewScreenshotCapturer returns a ready-to-use ScreenshotCapturer.
func NewScreenshotCapturer() *ScreenshotCapturer { return &ScreenshotCapturer{} }

// CaptureDisplay captures the display identified by displayID, a decimal
// display index as produced by DisplayResolver.
func (ScreenshotCapturer) CaptureDisplay(displayID string) (segstore.PixelBuffer, error) {
	index, err := strconv.Atoi(displayID)
	if err != nil {
		index = 0
	}
	if index < 0 || index >= screenshot.NumActiveDisplays() {
		index = 0
	}
	img, err := screenshot.CaptureDisplay(index)
	if err != nil {
		return segstore.PixelBuffer{}, fmt.Errorf("capture: capture display %d: %w", index, err)
	}
	return segstore.FromImage(img), nil
}
