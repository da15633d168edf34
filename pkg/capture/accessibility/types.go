// Package accessibility abstracts the AccessibilityProvider capability:
// walking the focused application's accessibility tree to collect text
// snippets and, where available, a browser URL. The Windows
// implementation is grounded in waddle's pkg/capture/uia package (COM UI
// Automation via github.com/go-ole/go-ole); non-Windows builds get a
// no-op provider behind the same interface.
package accessibility

// Snapshot is the typed record collected from one accessibility-tree
// walk: non-empty values, titles, and descriptions as flat text
// snippets, plus a browser URL if the tree exposed an address bar.
type Snapshot struct {
	TextSnippets []string
	BrowserURL   string
}

// Text concatenates every collected snippet, whitespace-joined, the form
// TextExtractor compares against OCR content text via Jaccard similarity.
func (s Snapshot) Text() string {
	out := ""
	for i, snippet := range s.TextSnippets {
		if i > 0 {
			out += " "
		}
		out += snippet
	}
	return out
}

// Provider walks the focused window's accessibility tree, bounded by
// maxDepth, the portable interface every platform implementation (and
// the in-memory fake used in tests) satisfies.
type Provider interface {
	// Walk returns a Snapshot for the window owning hwnd, or
	// ErrPermissionDenied if the capability has had its permission
	// revoked.
	Walk(hwnd uintptr, maxDepth int) (Snapshot, error)
	// PermissionGranted reports the provider's last known permission
	// state without making a fresh OS call.
	PermissionGranted() bool
}

// ErrPermissionDenied is returned by Walk when the OS has revoked
// accessibility permission for this process.
type ErrPermissionDenied struct{}

func (ErrPermissionDenied) Error() string { return "accessibility: permission denied" }
