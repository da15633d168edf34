package tracker

import (
	"context"
	"testing"
	"time"
)

type fakeFocusSource struct {
	events chan FocusEvent
}

func newFakeFocusSource() *fakeFocusSource {
	return &fakeFocusSource{events: make(chan FocusEvent, 8)}
}

func (f *fakeFocusSource) Events() <-chan FocusEvent { return f.events }
func (f *fakeFocusSource) Close() error {
	close(f.events)
	return nil
}

type fakeLocator struct {
	display string
	err     error
}

func (f fakeLocator) DisplayContaining(hwnd uintptr) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.display, nil
}

func TestCurrentDisplayDefaultsToMain(t *testing.T) {
	src := newFakeFocusSource()
	tr := New(src, fakeLocator{display: "1"}, "0", nil, nil, nil)
	if tr.CurrentDisplay() != "0" {
		t.Fatalf("expected default main display, got %q", tr.CurrentDisplay())
	}
}

func TestOnDisplayChangedFiresOnTransition(t *testing.T) {
	src := newFakeFocusSource()
	var oldSeen, newSeen string
	changed := make(chan struct{}, 1)
	tr := New(src, fakeLocator{display: "1"}, "0", func(old, new string) {
		oldSeen, newSeen = old, new
		changed <- struct{}{}
	}, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go tr.Run(ctx)

	src.events <- FocusEvent{Handle: 42}

	select {
	case <-changed:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for display change callback")
	}
	if oldSeen != "0" || newSeen != "1" {
		t.Fatalf("expected transition 0->1, got %q->%q", oldSeen, newSeen)
	}
	if tr.CurrentDisplay() != "1" {
		t.Fatalf("expected current display 1, got %q", tr.CurrentDisplay())
	}
}

func TestPermissionDeniedResetsToMainOnce(t *testing.T) {
	src := newFakeFocusSource()
	denials := 0
	tr := New(src, fakeLocator{err: ErrPermissionDenied{}}, "0", nil, nil, func() {
		denials++
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go tr.Run(ctx)

	src.events <- FocusEvent{Handle: 1}
	src.events <- FocusEvent{Handle: 2}

	time.Sleep(200 * time.Millisecond)
	if denials != 1 {
		t.Fatalf("expected exactly one permission-denied callback, got %d", denials)
	}
	if tr.CurrentDisplay() != "0" {
		t.Fatalf("expected current display reset to main, got %q", tr.CurrentDisplay())
	}
}

func TestWindowChangedFiresOnEveryEvent(t *testing.T) {
	src := newFakeFocusSource()
	count := 0
	done := make(chan struct{}, 2)
	tr := New(src, fakeLocator{display: "0"}, "0", nil, func() {
		count++
		done <- struct{}{}
	}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go tr.Run(ctx)

	src.events <- FocusEvent{Handle: 1}
	src.events <- FocusEvent{Handle: 2}

	for i := 0; i < 2; i++ {
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for window-changed callback")
		}
	}
	if count != 2 {
		t.Fatalf("expected 2 window-changed callbacks, got %d", count)
	}
}
