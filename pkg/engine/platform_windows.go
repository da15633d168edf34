//go:build windows

package engine

import (
	"github.com/eequaled/recall/pkg/capture"
	"github.com/eequaled/recall/pkg/capture/accessibility"
	"github.com/eequaled/recall/pkg/tracker"
)

func newAccessibilityProvider() accessibility.Provider {
	return accessibility.NewUIAWalkerProvider()
}

func newDisplayLocator(mainDisplay string) tracker.DisplayLocator {
	return tracker.Win32DisplayLocator{}
}

func newWindowEnumerator() capture.WindowEnumerator {
	return capture.NewWin32WindowEnumerator()
}
