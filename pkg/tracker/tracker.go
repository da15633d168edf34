// Package tracker implements ActiveDisplayTracker: it watches
// application-activation/window-focus events and reports which display
// currently holds the focused window, tolerating accessibility
// permission revocation at any time. Grounded in waddle's
// pkg/tracker/window.go (stable-focus polling) and pkg/tracker/etw
// (zero-overhead event subscription with a polling fallback).
package tracker

import (
	"context"
	"errors"
	"sync"
	"time"
)

// FocusEvent is one focused-window change, however it was detected.
type FocusEvent struct {
	Timestamp time.Time
	Handle    uintptr
	PID       uint32
	ProcessName string
}

// FocusSource emits FocusEvent values as window focus changes. Events
// closes when the source stops.
type FocusSource interface {
	Events() <-chan FocusEvent
	Close() error
}

// ErrPermissionDenied mirrors accessibility.ErrPermissionDenied without
// importing the capture-side package, keeping tracker's only dependency
// direction into capture being the DisplayResolver interface it
// satisfies.
type ErrPermissionDenied struct{}

func (ErrPermissionDenied) Error() string { return "tracker: accessibility permission denied" }

// DisplayLocator resolves which display contains a window, the
// accessibility-capability-backed half of ActiveDisplayTracker.
type DisplayLocator interface {
	DisplayContaining(hwnd uintptr) (string, error)
}

// Tracker implements ActiveDisplayTracker: current_display/
// on_display_changed/on_window_changed/on_permission_denied per spec
// and satisfies capture.DisplayResolver so ScreenSource can read
// it as a plain snapshot view, breaking the cyclic reference the two
// components would otherwise have.
type Tracker struct {
	source      FocusSource
	locator     DisplayLocator
	mainDisplay string

	onDisplayChanged   func(old, new string)
	onWindowChanged    func()
	onPermissionDenied func()

	mu               sync.RWMutex
	current          string
	currentHandle    uintptr
	permissionLost   bool
}

// New constructs a Tracker. Any callback may be nil.
func New(source FocusSource, locator DisplayLocator, mainDisplay string, onDisplayChanged func(old, new string), onWindowChanged func(), onPermissionDenied func()) *Tracker {
	return &Tracker{
		source:             source,
		locator:            locator,
		mainDisplay:        mainDisplay,
		onDisplayChanged:   onDisplayChanged,
		onWindowChanged:    onWindowChanged,
		onPermissionDenied: onPermissionDenied,
		current:            mainDisplay,
	}
}

// CurrentDisplay returns the cached current display id. Implements
// capture.DisplayResolver.
func (t *Tracker) CurrentDisplay() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.current
}

// MainDisplay returns the configured main display id. Implements
// capture.DisplayResolver.
func (t *Tracker) MainDisplay() string { return t.mainDisplay }

// FocusedHandle returns the window handle of the most recently focused
// window, or 0 if none has been observed yet or permission was lost.
// Used by TextExtractor to target the accessibility-tree walk at the
// currently focused application.
func (t *Tracker) FocusedHandle() uintptr {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.permissionLost {
		return 0
	}
	return t.currentHandle
}

// Run consumes focus events until ctx is cancelled or the source closes.
// It honors cancellation at the top of each iteration per the
// cooperative-cancellation contract shared by every long-running loop in
// the system.
func (t *Tracker) Run(ctx context.Context) {
	defer t.source.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-t.source.Events():
			if !ok {
				return
			}
			t.handleFocusEvent(ev)
		}
	}
}

func (t *Tracker) handleFocusEvent(ev FocusEvent) {
	if t.onWindowChanged != nil {
		t.onWindowChanged()
	}

	// Every event re-probes the locator rather than trusting a cached
	// permissionLost flag, so a later re-grant is picked up on the next
	// focus change instead of staying disabled for the rest of the
	// process lifetime.
	display, err := t.locator.DisplayContaining(ev.Handle)
	if err != nil {
		var denied ErrPermissionDenied
		if errors.As(err, &denied) {
			t.handlePermissionDenied()
		}
		return
	}
	t.handlePermissionRegranted()

	t.mu.Lock()
	old := t.current
	t.current = display
	t.currentHandle = ev.Handle
	t.mu.Unlock()

	if old != display && t.onDisplayChanged != nil {
		t.onDisplayChanged(old, display)
	}
}

// handlePermissionDenied reports current_display as the main display and
// fires on_permission_denied exactly once per revocation episode; later
// events keep probing the locator rather than being suppressed here.
func (t *Tracker) handlePermissionDenied() {
	t.mu.Lock()
	alreadyLost := t.permissionLost
	t.permissionLost = true
	old := t.current
	t.current = t.mainDisplay
	t.currentHandle = 0
	t.mu.Unlock()

	if alreadyLost {
		return
	}
	if old != t.mainDisplay && t.onDisplayChanged != nil {
		t.onDisplayChanged(old, t.mainDisplay)
	}
	if t.onPermissionDenied != nil {
		t.onPermissionDenied()
	}
}

// handlePermissionRegranted clears permissionLost the first time the
// locator succeeds again after a revocation, so FocusedHandle resumes
// reporting real handles per the shared-resource re-acquire-on-re-grant
// policy.
func (t *Tracker) handlePermissionRegranted() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.permissionLost = false
}
