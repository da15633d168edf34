package capture

import "strings"

// browserFamily names a browser whose windows can be private.
type browserFamily string

const (
	familyChromium browserFamily = "chromium" // Chrome, Edge, Brave, Opera, Vivaldi
	familySafari   browserFamily = "safari"
	familyFirefox  browserFamily = "firefox"
)

// browserMarker is one known-private classification rule for a browser
// family: an accessibility subrole/description substring and a
// title-suffix fallback. The source mixed these markers across languages
// with no single table; per the design note this codifies the exact
// markers observed per family and treats anything else as an extension
// point rather than a guess.
type browserMarker struct {
	family           browserFamily
	appBundleIDs     []string
	subroleMarkers   []string
	titleSuffixes    []string
}

var browserMarkers = []browserMarker{
	{
		family:         familyChromium,
		appBundleIDs:   []string{"com.google.Chrome", "com.microsoft.edgemac", "com.brave.Browser", "com.operasoftware.Opera", "com.vivaldi.Vivaldi"},
		subroleMarkers: []string{"Incognito", "Private"},
		titleSuffixes:  []string{" - Incognito", " (Incognito)"},
	},
	{
		family:         familySafari,
		appBundleIDs:   []string{"com.apple.Safari"},
		subroleMarkers: []string{"Private Browsing"},
		titleSuffixes:  []string{" — Private", " - Private Browsing"},
	},
	{
		family:         familyFirefox,
		appBundleIDs:   []string{"org.mozilla.firefox"},
		subroleMarkers: []string{"Private Browsing"},
		titleSuffixes:  []string{"(InPrivate)", " - Private Browsing"},
	},
}

// AccessibilityHint carries whatever subrole/description text the
// accessibility capability exposed for a window, when available.
type AccessibilityHint struct {
	Subrole     string
	Description string
}

// IsPrivate classifies a window as private iff its app is a known browser
// and either its accessibility hint matches a known marker, or, lacking
// that, its title matches a browser-specific suffix pattern.
// Misclassification is tolerated by design: the cost is leaking or
// masking a single window.
func IsPrivate(win WindowInfo, hint *AccessibilityHint) bool {
	marker := markerFor(win.AppBundleID)
	if marker == nil {
		return false
	}
	if hint != nil {
		for _, m := range marker.subroleMarkers {
			if strings.Contains(hint.Subrole, m) || strings.Contains(hint.Description, m) {
				return true
			}
		}
	}
	for _, suffix := range marker.titleSuffixes {
		if strings.HasSuffix(win.Title, suffix) {
			return true
		}
	}
	return false
}

func markerFor(bundleID string) *browserMarker {
	for i := range browserMarkers {
		for _, id := range browserMarkers[i].appBundleIDs {
			if id == bundleID {
				return &browserMarkers[i]
			}
		}
	}
	return nil
}
