//go:build !windows

package capture

// NoopWindowEnumerator is the non-Windows fallback: it reports no
// windows, so the exclusion set is always empty and ScreenSource emits
// the unmasked full display image. A real implementation would walk the
// platform's window server (X11 _NET_CLIENT_LIST_STACKING, or
// CGWindowListCopyWindowInfo on macOS); neither is wired here since the
// only OS-specific source examples in the corpus were Windows-only.
type NoopWindowEnumerator struct{}

// NewNoopWindowEnumerator returns a ready-to-use no-op enumerator.
func NewNoopWindowEnumerator() *NoopWindowEnumerator { return &NoopWindowEnumerator{} }

// EnumerateWindows always returns an empty list.
func (NoopWindowEnumerator) EnumerateWindows(displayID string) ([]WindowInfo, error) {
	return nil, nil
}
