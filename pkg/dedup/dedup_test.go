package dedup

import (
	"testing"

	"github.com/eequaled/recall/pkg/segstore"
)

func filled(w, h int, fill byte) segstore.PixelBuffer {
	p := segstore.NewPixelBuffer(w, h)
	for i := range p.Pix {
		p.Pix[i] = fill
	}
	return p
}

func TestIdenticalBuffersScoreOne(t *testing.T) {
	d := New()
	a := filled(32, 32, 100)
	b := filled(32, 32, 100)
	if got := d.Similarity(a, b); got != 1.0 {
		t.Fatalf("expected 1.0 for identical buffers, got %v", got)
	}
}

func TestDimensionMismatchScoresZero(t *testing.T) {
	d := New()
	a := segstore.NewPixelBuffer(32, 32)
	b := segstore.NewPixelBuffer(16, 16)
	if got := d.Similarity(a, b); got != 0.0 {
		t.Fatalf("expected 0.0 for dimension mismatch, got %v", got)
	}
}

func TestSimilarityIsSymmetric(t *testing.T) {
	d := New()
	a := filled(32, 32, 50)
	b := filled(32, 32, 200)
	if d.Similarity(a, b) != d.Similarity(b, a) {
		t.Fatal("expected symmetric similarity score")
	}
}

func TestSimilarityIsDeterministic(t *testing.T) {
	d := New()
	a := filled(32, 32, 77)
	b := filled(32, 32, 90)
	first := d.Similarity(a, b)
	second := d.Similarity(a, b)
	if first != second {
		t.Fatalf("expected deterministic score, got %v then %v", first, second)
	}
}

func TestThresholdEqualityIsDuplicate(t *testing.T) {
	d := New()
	a := filled(32, 32, 100)
	b := filled(32, 32, 100)
	score := d.Similarity(a, b)
	if !d.IsDuplicate(a, b, score) {
		t.Fatal("expected exact-threshold equality to count as duplicate")
	}
}

func TestVeryDifferentFramesScoreLow(t *testing.T) {
	d := New()
	a := filled(32, 32, 0)
	b := filled(32, 32, 255)
	if got := d.Similarity(a, b); got > 0.1 {
		t.Fatalf("expected low similarity for maximally different frames, got %v", got)
	}
}
