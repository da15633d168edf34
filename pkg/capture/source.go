// Package capture implements ScreenSource: a polling producer of
// CapturedFrame values with per-frame window/application exclusion,
// private-window masking, and a configured resolution cap. The capture
// mechanics are grounded in waddle's pkg/capture/screenshot.go, which
// used github.com/kbinani/screenshot to grab a window rectangle; here the
// same library grabs the whole target display and windows are painted
// out rather than captured individually.
package capture

import (
	"context"
	"image"
	"time"

	"golang.org/x/image/draw"

	"github.com/eequaled/recall/pkg/catalog"
	"github.com/eequaled/recall/pkg/segstore"
)

// Capturer grabs a full raster image of one display.
type Capturer interface {
	CaptureDisplay(displayID string) (segstore.PixelBuffer, error)
}

// WindowEnumerator lists currently on-screen windows on a display,
// front-to-back (index 0 is frontmost).
type WindowEnumerator interface {
	EnumerateWindows(displayID string) ([]WindowInfo, error)
}

// DisplayResolver resolves the capture target: the active display if
// configured, otherwise the main display. It is a read-only snapshot
// view onto ActiveDisplayTracker, breaking the cyclic reference the
// source code had between the tracker and the capture source.
type DisplayResolver interface {
	CurrentDisplay() string
	MainDisplay() string
}

// HintProvider optionally supplies accessibility hints used to classify
// private windows more precisely than title matching alone.
type HintProvider interface {
	HintFor(win WindowInfo) *AccessibilityHint
}

// Source produces frames on a ticker, applying exclusion and masking per
// tick.
type Source struct {
	cfg        Config
	capturer   Capturer
	enumerator WindowEnumerator
	displays   DisplayResolver
	hints      HintProvider // may be nil

	out chan CapturedFrame
}

// New constructs a Source. hints may be nil when accessibility is
// unavailable or disabled; classification then falls back to title
// matching only.
func New(cfg Config, capturer Capturer, enumerator WindowEnumerator, displays DisplayResolver, hints HintProvider) *Source {
	return &Source{
		cfg:        cfg,
		capturer:   capturer,
		enumerator: enumerator,
		displays:   displays,
		hints:      hints,
		out:        make(chan CapturedFrame, 1),
	}
}

// Frames returns the channel frames are published on. The channel is
// closed when Run returns.
func (s *Source) Frames() <-chan CapturedFrame { return s.out }

// Run executes the capture loop until ctx is cancelled. Cancellation is
// honored at the top of each tick (immediate at the next tick boundary).
// If the consumer is slow to drain Frames(), new ticks are dropped rather
// than buffered, per the backpressure contract.
func (s *Source) Run(ctx context.Context) {
	defer close(s.out)

	interval := time.Duration(s.cfg.CaptureIntervalSeconds) * time.Second
	if interval <= 0 {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			frame, ok := s.captureOnce()
			if !ok {
				continue
			}
			select {
			case s.out <- frame:
			default:
				// Consumer too slow; drop this tick rather than buffer.
			}
		}
	}
}

func (s *Source) captureOnce() (CapturedFrame, bool) {
	display := s.targetDisplay()

	windows, err := s.enumerator.EnumerateWindows(display)
	if err != nil {
		windows = nil
	}

	pixels, err := s.capturer.CaptureDisplay(display)
	if err != nil {
		return CapturedFrame{}, false
	}
	pixels = s.applyResolutionCap(pixels)

	excluded := s.excludedWindows(windows)
	if len(excluded) > 0 {
		pixels = paintExclusions(pixels, excluded, windows)
	}

	meta := catalog.FrameMetadata{DisplayID: display}
	if front := frontmostWindow(windows); front != nil {
		meta.AppBundleID = front.AppBundleID
		meta.AppName = front.AppName
		meta.WindowTitle = front.Title
	}

	return CapturedFrame{CapturedAt: time.Now(), Pixels: pixels, Metadata: meta}, true
}

func (s *Source) targetDisplay() string {
	if s.cfg.CaptureActiveDisplayOnly {
		return s.displays.CurrentDisplay()
	}
	return s.displays.MainDisplay()
}

func frontmostWindow(windows []WindowInfo) *WindowInfo {
	if len(windows) == 0 {
		return nil
	}
	return &windows[0]
}

// excludedWindows computes the union of windows whose app is in the
// configured exclusion set and windows classified as private.
func (s *Source) excludedWindows(windows []WindowInfo) []WindowInfo {
	var excluded []WindowInfo
	for _, w := range windows {
		if s.cfg.ExcludedAppBundleIDs[w.AppBundleID] {
			excluded = append(excluded, w)
			continue
		}
		if s.cfg.ExcludePrivateWindows {
			var hint *AccessibilityHint
			if s.hints != nil {
				hint = s.hints.HintFor(w)
			}
			if IsPrivate(w, hint) {
				excluded = append(excluded, w)
			}
		}
	}
	return excluded
}

// paintExclusions computes each excluded window's visible region (its
// bounds minus every window stacked in front of it) and paints those
// regions opaque black onto a copy of the full frame.
func paintExclusions(pixels segstore.PixelBuffer, excluded, all []WindowInfo) segstore.PixelBuffer {
	out := segstore.NewPixelBuffer(pixels.Width, pixels.Height)
	copy(out.Pix, pixels.Pix)

	indexOf := make(map[WindowInfo]int, len(all))
	for i, w := range all {
		indexOf[w] = i
	}

	for _, w := range excluded {
		zIndex := indexOf[w]
		front := make([]Rect, 0, zIndex)
		for i := 0; i < zIndex; i++ {
			front = append(front, all[i].Bounds)
		}
		for _, visible := range subtractAll(w.Bounds, front) {
			paintBlack(out, visible)
		}
	}
	return out
}

func paintBlack(p segstore.PixelBuffer, r Rect) {
	x0, y0 := clamp(r.X, 0, p.Width), clamp(r.Y, 0, p.Height)
	x1, y1 := clamp(r.X+r.W, 0, p.Width), clamp(r.Y+r.H, 0, p.Height)
	for y := y0; y < y1; y++ {
		row := p.Pix[y*p.BytesPerRow : y*p.BytesPerRow+p.Width*4]
		for x := x0; x < x1; x++ {
			row[x*4] = 0
			row[x*4+1] = 0
			row[x*4+2] = 0
			row[x*4+3] = 0xFF
		}
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// applyResolutionCap downscales pixels to fit within the configured
// maximum resolution, using x/image/draw's approximate bilinear scaler.
func (s *Source) applyResolutionCap(pixels segstore.PixelBuffer) segstore.PixelBuffer {
	maxW, maxH := s.cfg.MaxResolutionWidth, s.cfg.MaxResolutionHeight
	if maxW <= 0 || maxH <= 0 || (pixels.Width <= maxW && pixels.Height <= maxH) {
		return pixels
	}

	scale := float64(maxW) / float64(pixels.Width)
	if alt := float64(maxH) / float64(pixels.Height); alt < scale {
		scale = alt
	}
	newW := int(float64(pixels.Width) * scale)
	newH := int(float64(pixels.Height) * scale)
	if newW < 1 {
		newW = 1
	}
	if newH < 1 {
		newH = 1
	}

	src := pixels.ToImage()
	dst := image.NewRGBA(image.Rect(0, 0, newW, newH))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Over, nil)
	return segstore.FromImage(dst)
}
