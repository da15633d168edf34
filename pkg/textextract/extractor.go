package textextract

import (
	"hash/fnv"
	"strings"
	"sync"

	"github.com/eequaled/recall/pkg/capture/accessibility"
	"github.com/eequaled/recall/pkg/catalog"
	"github.com/eequaled/recall/pkg/segstore"
)

// chromeBandFraction is the top/bottom fraction of frame height classified
// as chrome (menu bar / dock) rather than content.
const chromeBandFraction = 0.05

// FocusedHandleSource reports the window handle currently holding focus,
// or 0 if none is known. Satisfied by *tracker.Tracker.
type FocusedHandleSource interface {
	FocusedHandle() uintptr
}

// TextExtractor runs region-based OCR with a tile-level cache, merges in
// accessibility text when available and sufficiently similar, extracts a
// browser URL when none was already known, and writes through to the
// catalog atomically. Extraction calls are serialized per instance (a
// single mutex stands in for the strict FIFO the source's tile cache
// lacked).
type TextExtractor struct {
	recognizer TextRecognizer
	cache      *FullFrameCache
	cat        *catalog.Catalog
	accessor   accessibility.Provider // may be nil
	focused    FocusedHandleSource    // may be nil
	cfg        Config

	mu        sync.Mutex
	lastFrame *segstore.PixelBuffer
}

// New constructs a TextExtractor. accessor and focused may both be nil
// to disable the accessibility merge entirely.
func New(recognizer TextRecognizer, cat *catalog.Catalog, accessor accessibility.Provider, focused FocusedHandleSource, cfg Config) *TextExtractor {
	return &TextExtractor{
		recognizer: recognizer,
		cache:      NewFullFrameCache(),
		cat:        cat,
		accessor:   accessor,
		focused:    focused,
		cfg:        cfg,
	}
}

// InvalidateCache clears the tile cache and forgets the last frame. No
// configuration-change listener calls it; the cache is cleared only when
// this is called explicitly.
func (e *TextExtractor) InvalidateCache() {
	e.cache.Clear()
	e.mu.Lock()
	e.lastFrame = nil
	e.mu.Unlock()
}

// Extract implements ocrqueue.Extractor: it OCRs pixels tile-by-tile
// (reusing unchanged tiles), separates chrome from content regions,
// merges in accessibility text, resolves a browser URL, and writes one
// ExtractedText row plus its Region batch through to the catalog.
func (e *TextExtractor) Extract(pixels segstore.PixelBuffer, frameID, segmentID int64, meta catalog.FrameMetadata) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	regions, err := e.ocrTiled(pixels)
	if err != nil {
		return err
	}
	e.lastFrame = &pixels

	chromeBand := int(float64(pixels.Height) * chromeBandFraction)
	var chromeRegions, contentRegions []OCRRegion
	for _, r := range regions {
		if r.Y < chromeBand || r.Y+r.H > pixels.Height-chromeBand {
			chromeRegions = append(chromeRegions, r)
		} else {
			contentRegions = append(contentRegions, r)
		}
	}

	chromeText := joinRegionText(chromeRegions)
	contentText := joinRegionText(contentRegions)

	browserURL := meta.BrowserURL
	finalContentText := contentText

	if e.cfg.AccessibilityEnabled && e.accessor != nil && e.accessor.PermissionGranted() && e.focused != nil {
		if hwnd := e.focused.FocusedHandle(); hwnd != 0 {
			snap, err := e.accessor.Walk(hwnd, e.cfg.AccessibilityMaxDepth)
			if err == nil {
				if browserURL == "" {
					browserURL = snap.BrowserURL
				}
				accessText := snap.Text()
				if accessText != "" {
					if jaccardSimilarity(accessText, contentText) >= e.cfg.JaccardMergeThreshold {
						finalContentText = accessText
					} else {
						finalContentText = strings.TrimSpace(accessText + " " + contentText)
					}
				}
			}
		}
	}

	if browserURL == "" {
		browserURL = ExtractURL(chromeText)
	}

	et := catalog.ExtractedText{FrameID: frameID, SegmentID: segmentID, FullText: finalContentText, ChromeText: chromeText}
	rows := buildRegionRows(frameID, contentRegions, len(finalContentText), false, finalContentText)
	rows = append(rows, buildRegionRows(frameID, chromeRegions, len(chromeText), true, chromeText)...)

	if err := e.cat.WriteExtractedText(et, rows); err != nil {
		return err
	}
	if browserURL != "" && browserURL != meta.BrowserURL {
		if err := e.cat.UpdateFrameBrowserURL(frameID, browserURL); err != nil {
			return err
		}
	}
	return nil
}

func joinRegionText(regions []OCRRegion) string {
	var sb strings.Builder
	for i, r := range regions {
		if i > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(r.Text)
	}
	return sb.String()
}

// buildRegionRows computes each region's text_offset/text_length against
// the joined text it was folded into (content text for non-chrome
// regions, chrome text for chrome regions), matching how joinRegionText
// concatenates with single-space separators.
func buildRegionRows(frameID int64, regions []OCRRegion, _ int, chrome bool, joined string) []catalog.Region {
	rows := make([]catalog.Region, 0, len(regions))
	offset := 0
	for _, r := range regions {
		idx := strings.Index(joined[offset:], r.Text)
		if idx < 0 {
			continue
		}
		start := offset + idx
		rows = append(rows, catalog.Region{
			FrameID: frameID, TextOffset: start, TextLength: len(r.Text),
			BoundsX: r.X, BoundsY: r.Y, BoundsW: r.W, BoundsH: r.H, ChromeBit: chrome,
		})
		offset = start + len(r.Text)
	}
	return rows
}

// ocrTiled divides pixels into the configured tile grid, reusing cached
// results for tiles whose fingerprint is unchanged from the previous
// call and re-running OCR only on changed tiles.
func (e *TextExtractor) ocrTiled(pixels segstore.PixelBuffer) ([]OCRRegion, error) {
	cols, rows := e.cfg.TileGridCols, e.cfg.TileGridRows
	if cols <= 0 {
		cols = 1
	}
	if rows <= 0 {
		rows = 1
	}

	var all []OCRRegion
	for row := 0; row < rows; row++ {
		for col := 0; col < cols; col++ {
			x0, y0, w, h := tileBounds(pixels.Width, pixels.Height, cols, rows, col, row)
			if w <= 0 || h <= 0 {
				continue
			}
			tile := cropPixelBuffer(pixels, x0, y0, w, h)
			fp := fingerprint(tile)

			if cached, ok := e.cache.Lookup(col, row, fp); ok {
				all = append(all, cached...)
				continue
			}

			tileRegions, err := e.recognizer.Recognize(tile)
			if err != nil {
				return nil, err
			}
			translated := translateRegions(tileRegions, x0, y0)
			e.cache.Store(col, row, fp, translated)
			all = append(all, translated...)
		}
	}
	return all, nil
}

func tileBounds(width, height, cols, rows, col, row int) (x, y, w, h int) {
	x = col * width / cols
	y = row * height / rows
	x1 := (col + 1) * width / cols
	y1 := (row + 1) * height / rows
	return x, y, x1 - x, y1 - y
}

func cropPixelBuffer(p segstore.PixelBuffer, x, y, w, h int) segstore.PixelBuffer {
	out := segstore.NewPixelBuffer(w, h)
	for row := 0; row < h; row++ {
		srcOff := (y+row)*p.BytesPerRow + x*4
		dstOff := row * out.BytesPerRow
		copy(out.Pix[dstOff:dstOff+w*4], p.Pix[srcOff:srcOff+w*4])
	}
	return out
}

func translateRegions(regions []OCRRegion, dx, dy int) []OCRRegion {
	out := make([]OCRRegion, len(regions))
	for i, r := range regions {
		out[i] = OCRRegion{Text: r.Text, X: r.X + dx, Y: r.Y + dy, W: r.W, H: r.H}
	}
	return out
}

func fingerprint(p segstore.PixelBuffer) uint64 {
	h := fnv.New64a()
	h.Write(p.Pix)
	return h.Sum64()
}
