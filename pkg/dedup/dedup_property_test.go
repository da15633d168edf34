package dedup

import (
	"testing"

	"github.com/eequaled/recall/pkg/segstore"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// genPixelBuffer produces a small deterministic-dimension PixelBuffer
// filled with a caller-controlled byte, so two generated buffers of
// equal fill are pixel-identical and two of differing fill are not.
func genPixelBuffer() gopter.Gen {
	return gen.UInt8Range(0, 255).Map(func(fill uint8) segstore.PixelBuffer {
		p := segstore.NewPixelBuffer(8, 8)
		for i := range p.Pix {
			p.Pix[i] = fill
		}
		return p
	})
}

// TestSimilarityIsSymmetric validates the round-trip law Similarity(a,b)
// == Similarity(b,a): the metric is defined as a distance,
// so swapping operands must never change the result.
func TestSimilarityIsSymmetric(t *testing.T) {
	d := New()
	properties := gopter.NewProperties(nil)

	properties.Property("Similarity is symmetric", prop.ForAll(
		func(a, b segstore.PixelBuffer) bool {
			return d.Similarity(a, b) == d.Similarity(b, a)
		},
		genPixelBuffer(),
		genPixelBuffer(),
	))

	properties.TestingRun(t)
}

// TestIdenticalBuffersAreMaximallySimilar validates the boundary law that
// a buffer compared with an exact copy of itself always scores 1.0,
// independent of fill value.
func TestIdenticalBuffersAreMaximallySimilar(t *testing.T) {
	d := New()
	properties := gopter.NewProperties(nil)

	properties.Property("identical buffers score 1.0", prop.ForAll(
		func(a segstore.PixelBuffer) bool {
			b := segstore.NewPixelBuffer(a.Width, a.Height)
			copy(b.Pix, a.Pix)
			return d.Similarity(a, b) == 1.0
		},
		genPixelBuffer(),
	))

	properties.TestingRun(t)
}
