package capture

import (
	"context"
	"testing"
	"time"

	"github.com/eequaled/recall/pkg/segstore"
)

func TestRectSubtractFullyCovered(t *testing.T) {
	r := Rect{X: 0, Y: 0, W: 10, H: 10}
	remaining := r.Subtract(Rect{X: 0, Y: 0, W: 10, H: 10})
	if len(remaining) != 0 {
		t.Fatalf("expected no remainder when fully covered, got %v", remaining)
	}
}

func TestRectSubtractNoOverlap(t *testing.T) {
	r := Rect{X: 0, Y: 0, W: 10, H: 10}
	remaining := r.Subtract(Rect{X: 20, Y: 20, W: 5, H: 5})
	if len(remaining) != 1 || remaining[0] != r {
		t.Fatalf("expected unchanged rect, got %v", remaining)
	}
}

func TestRectSubtractCenterPunchesFourPieces(t *testing.T) {
	r := Rect{X: 0, Y: 0, W: 10, H: 10}
	remaining := r.Subtract(Rect{X: 3, Y: 3, W: 4, H: 4})
	if len(remaining) != 4 {
		t.Fatalf("expected 4 remaining rects around a center punch, got %d: %v", len(remaining), remaining)
	}
}

func TestSubtractAllMultipleFrontWindows(t *testing.T) {
	base := Rect{X: 0, Y: 0, W: 100, H: 100}
	front := []Rect{
		{X: 0, Y: 0, W: 50, H: 100},
		{X: 50, Y: 0, W: 50, H: 100},
	}
	remaining := subtractAll(base, front)
	if len(remaining) != 0 {
		t.Fatalf("expected fully covered base window to vanish, got %v", remaining)
	}
}

func TestIsPrivateChromiumIncognitoTitle(t *testing.T) {
	w := WindowInfo{AppBundleID: "com.google.Chrome", Title: "New Tab - Incognito"}
	if !IsPrivate(w, nil) {
		t.Fatal("expected Chrome incognito title to classify as private")
	}
}

func TestIsPrivateNonBrowserNeverPrivate(t *testing.T) {
	w := WindowInfo{AppBundleID: "com.example.Editor", Title: "notes.txt - Incognito"}
	if IsPrivate(w, nil) {
		t.Fatal("non-browser app must never be classified private")
	}
}

func TestIsPrivateAccessibilityHintOverridesTitle(t *testing.T) {
	w := WindowInfo{AppBundleID: "com.apple.Safari", Title: "Example"}
	hint := &AccessibilityHint{Subrole: "Private Browsing"}
	if !IsPrivate(w, hint) {
		t.Fatal("expected accessibility hint to classify Safari window as private")
	}
}

type fakeCapturer struct {
	fill byte
}

func (f fakeCapturer) CaptureDisplay(displayID string) (segstore.PixelBuffer, error) {
	p := segstore.NewPixelBuffer(4, 4)
	for i := range p.Pix {
		p.Pix[i] = f.fill
	}
	return p, nil
}

type fakeDisplays struct{}

func (fakeDisplays) CurrentDisplay() string { return "0" }
func (fakeDisplays) MainDisplay() string    { return "0" }

func TestSourceEmitsFrameOnTick(t *testing.T) {
	cfg := Config{CaptureIntervalSeconds: 1, ExcludedAppBundleIDs: map[string]bool{}}
	src := New(cfg, fakeCapturer{fill: 9}, NewNoopWindowEnumerator(), fakeDisplays{}, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	go src.Run(ctx)

	select {
	case frame, ok := <-src.Frames():
		if !ok {
			t.Fatal("frames channel closed before any frame was emitted")
		}
		if frame.Pixels.Pix[0] != 9 {
			t.Fatalf("expected fill 9, got %d", frame.Pixels.Pix[0])
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for a captured frame")
	}
}
