//go:build !windows

package engine

import (
	"github.com/eequaled/recall/pkg/capture"
	"github.com/eequaled/recall/pkg/capture/accessibility"
	"github.com/eequaled/recall/pkg/tracker"
)

func newAccessibilityProvider() accessibility.Provider {
	return accessibility.NewNoopProvider()
}

func newDisplayLocator(mainDisplay string) tracker.DisplayLocator {
	return tracker.NoopDisplayLocator{MainDisplay: mainDisplay}
}

func newWindowEnumerator() capture.WindowEnumerator {
	return capture.NewNoopWindowEnumerator()
}
