// Package dedup decides whether a newly captured frame is "the same as"
// the previous one, so that FrameIngestor can drop a run of static
// screens instead of encoding and OCRing each one.
package dedup

import "github.com/eequaled/recall/pkg/segstore"

const gridSize = 16

// Deduplicator computes a similarity score in [0,1] between two frames of
// equal dimensions using a downscaled-luminance-histogram metric: both
// frames are reduced to a fixed gridSize x gridSize grid of average
// luminance, and similarity is one minus the normalized mean absolute
// difference across cells. The metric is symmetric and deterministic by
// construction; no internal state is kept between calls.
type Deduplicator struct{}

// New returns a ready-to-use Deduplicator.
func New() *Deduplicator {
	return &Deduplicator{}
}

// Similarity returns a score in [0,1]: 1.0 for identical pixel buffers,
// 0.0 when the two buffers have different dimensions.
func (d *Deduplicator) Similarity(a, b segstore.PixelBuffer) float64 {
	if a.Width != b.Width || a.Height != b.Height {
		return 0.0
	}
	if identicalPixels(a, b) {
		return 1.0
	}

	gridA := luminanceGrid(a)
	gridB := luminanceGrid(b)

	var totalDiff float64
	for i := range gridA {
		diff := gridA[i] - gridB[i]
		if diff < 0 {
			diff = -diff
		}
		totalDiff += diff
	}
	meanDiff := totalDiff / float64(len(gridA)) // in [0, 255]
	similarity := 1.0 - meanDiff/255.0
	if similarity < 0 {
		similarity = 0
	}
	if similarity > 1 {
		similarity = 1
	}
	return similarity
}

// IsDuplicate reports whether similarity meets or exceeds threshold;
// equality is treated as duplicate per the boundary-behavior contract.
func (d *Deduplicator) IsDuplicate(a, b segstore.PixelBuffer, threshold float64) bool {
	return d.Similarity(a, b) >= threshold
}

func identicalPixels(a, b segstore.PixelBuffer) bool {
	if len(a.Pix) != len(b.Pix) {
		return false
	}
	for i := range a.Pix {
		if a.Pix[i] != b.Pix[i] {
			return false
		}
	}
	return true
}

// luminanceGrid reduces a frame to gridSize x gridSize average luminance
// values, cheap to compute and stable under minor encoding noise.
func luminanceGrid(p segstore.PixelBuffer) []float64 {
	grid := make([]float64, gridSize*gridSize)
	counts := make([]int, gridSize*gridSize)

	cellW := p.Width / gridSize
	cellH := p.Height / gridSize
	if cellW == 0 {
		cellW = 1
	}
	if cellH == 0 {
		cellH = 1
	}

	for y := 0; y < p.Height; y++ {
		cellY := y / cellH
		if cellY >= gridSize {
			cellY = gridSize - 1
		}
		row := p.Pix[y*p.BytesPerRow : y*p.BytesPerRow+p.Width*4]
		for x := 0; x < p.Width; x++ {
			cellX := x / cellW
			if cellX >= gridSize {
				cellX = gridSize - 1
			}
			b, g, r := row[x*4], row[x*4+1], row[x*4+2]
			luminance := 0.114*float64(b) + 0.587*float64(g) + 0.299*float64(r)
			idx := cellY*gridSize + cellX
			grid[idx] += luminance
			counts[idx]++
		}
	}
	for i := range grid {
		if counts[i] > 0 {
			grid[i] /= float64(counts[i])
		}
	}
	return grid
}
