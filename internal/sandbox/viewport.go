package sandbox

import "strings"

// Viewport selects one of the fixed preview widths. The rendering surface is
// constrained; the document itself is never transformed.
type Viewport string

const (
	ViewportDesktop Viewport = "desktop"
	ViewportTablet  Viewport = "tablet"
	ViewportMobile  Viewport = "mobile"
)

// ParseViewport maps a query value to a viewport, defaulting to desktop.
func ParseViewport(v string) Viewport {
	switch Viewport(strings.ToLower(strings.TrimSpace(v))) {
	case ViewportTablet:
		return ViewportTablet
	case ViewportMobile:
		return ViewportMobile
	default:
		return ViewportDesktop
	}
}

// Width returns the surface width in CSS pixels. Desktop is fluid up to
// 1280px, reported as 0 max-width below.
func (v Viewport) Width() int {
	switch v {
	case ViewportTablet:
		return 768
	case ViewportMobile:
		return 375
	default:
		return 1280
	}
}

// Fluid reports whether the surface stretches to the available width.
func (v Viewport) Fluid() bool {
	return v != ViewportTablet && v != ViewportMobile
}
