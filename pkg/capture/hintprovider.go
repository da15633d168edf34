package capture

import "github.com/eequaled/recall/pkg/capture/accessibility"

// AccessibilityHintProvider adapts an accessibility.Provider into a
// HintProvider, placing the accessibility snapshot's joined text in the
// hint's Description; Subrole is left empty. The real signal lives in the
// platform UI Automation tree; this adapter only reshapes it into the
// narrower AccessibilityHint capture.IsPrivate wants.
type AccessibilityHintProvider struct {
	provider accessibility.Provider
	maxDepth int
}

// NewAccessibilityHintProvider wraps provider, walking at most maxDepth
// levels into each window's accessibility tree.
func NewAccessibilityHintProvider(provider accessibility.Provider, maxDepth int) *AccessibilityHintProvider {
	if maxDepth <= 0 {
		maxDepth = 15
	}
	return &AccessibilityHintProvider{provider: provider, maxDepth: maxDepth}
}

// HintFor walks win's owning window and folds the resulting snapshot text
// into a single AccessibilityHint description; it returns nil if the walk
// failed or permission was denied, letting callers fall back to title
// matching alone.
func (a *AccessibilityHintProvider) HintFor(win WindowInfo) *AccessibilityHint {
	if !a.provider.PermissionGranted() {
		return nil
	}
	snap, err := a.provider.Walk(win.Handle, a.maxDepth)
	if err != nil {
		return nil
	}
	return &AccessibilityHint{Description: snap.Text()}
}
