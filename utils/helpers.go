package utils

import "math"

// DeviceType classifies a viewport width the way the page snippet does:
// below 768px is mobile, below 1024px is tablet, anything wider is desktop.
func DeviceType(viewportWidth int) string {
	switch {
	case viewportWidth < 768:
		return "mobile"
	case viewportWidth < 1024:
		return "tablet"
	default:
		return "desktop"
	}
}

// ScrollPercent converts a raw scroll position into a depth percentage.
// When the document is no taller than the viewport the depth is undefined
// (division by zero); it is reported as 0 so the signal is discarded.
func ScrollPercent(scrollTop, windowHeight, docHeight float64) int {
	scrollable := docHeight - windowHeight
	if scrollable <= 0 {
		return 0
	}
	percent := int(math.Round(scrollTop / scrollable * 100))
	// Rubber-band scrolling can report positions past the document edges.
	if percent < 0 {
		return 0
	}
	if percent > 100 {
		return 100
	}
	return percent
}
