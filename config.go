package pagecapture

import "time"

// OutputKind selects the artifact produced from the captured frames.
type OutputKind int

const (
	// PDF merges the frames into one paged-image PDF document.
	PDF OutputKind = iota
	// Archive stores each frame as a separate entry in a ZIP archive.
	Archive
)

func (k OutputKind) String() string {
	if k == Archive {
		return "archive"
	}
	return "pdf"
}

// Viewport is the browser window size in CSS pixels.
type Viewport struct {
	Width  int
	Height int
}

// Default capture settings.
const (
	DefaultPageIDPrefix    = "page"
	DefaultOverlaySelector = `[data-testid="sticky-wrapper"]`
)

// CaptureConfig controls how a document is discovered and captured.
//
// A nil CaptureConfig or zero-value fields use the values of
// [DefaultCaptureConfig].
type CaptureConfig struct {
	// Viewport is the browser window size. Defaults to 1200x1600.
	Viewport Viewport

	// MaxPages stops discovery after this many pages. Zero means no cap;
	// reaching the cap is not an error.
	MaxPages int

	// SettleDelay is the pause after scrolling a page into view, giving lazily
	// loaded content time to render. Defaults to 500ms.
	SettleDelay time.Duration

	// WaitForImages polls the page element until every image inside it has
	// finished loading, using SettleDelay as the upper bound instead of a
	// fixed pause.
	WaitForImages bool

	// NavigationTimeout bounds loading the URL until the network is idle.
	// Defaults to 30s.
	NavigationTimeout time.Duration

	// SelectorTimeout bounds waiting for the document body. Defaults to 15s.
	SelectorTimeout time.Duration

	// ActionTimeout bounds each probe, scroll, measurement, and screenshot.
	// Defaults to 10s.
	ActionTimeout time.Duration

	// OverlaySelector matches a floating element hidden before capture.
	// Defaults to [DefaultOverlaySelector]. Set NoOverlay to skip the step.
	OverlaySelector string
	NoOverlay       bool

	// PageIDPrefix builds page element ids: prefix + sequence number.
	// Defaults to "page".
	PageIDPrefix string

	// Format is the frame encoding. Defaults to PNG.
	Format ImageFormat

	// Quality applies to JPEG and WebP frames, 1-100. Defaults to 90.
	Quality int

	// Output selects the artifact kind. Defaults to PDF.
	Output OutputKind
}

// DefaultCaptureConfig returns a CaptureConfig with sensible defaults.
func DefaultCaptureConfig() CaptureConfig {
	return CaptureConfig{
		Viewport:          Viewport{Width: 1200, Height: 1600},
		SettleDelay:       500 * time.Millisecond,
		NavigationTimeout: 30 * time.Second,
		SelectorTimeout:   15 * time.Second,
		ActionTimeout:     10 * time.Second,
		OverlaySelector:   DefaultOverlaySelector,
		PageIDPrefix:      DefaultPageIDPrefix,
		Format:            PNG,
		Quality:           90,
		Output:            PDF,
	}
}

// resolved returns a CaptureConfig with all zero values replaced by defaults.
func (c *CaptureConfig) resolved() CaptureConfig {
	d := DefaultCaptureConfig()
	if c == nil {
		return d
	}
	r := *c
	if r.Viewport.Width <= 0 || r.Viewport.Height <= 0 {
		r.Viewport = d.Viewport
	}
	if r.MaxPages < 0 {
		r.MaxPages = 0
	}
	if r.SettleDelay <= 0 {
		r.SettleDelay = d.SettleDelay
	}
	if r.NavigationTimeout <= 0 {
		r.NavigationTimeout = d.NavigationTimeout
	}
	if r.SelectorTimeout <= 0 {
		r.SelectorTimeout = d.SelectorTimeout
	}
	if r.ActionTimeout <= 0 {
		r.ActionTimeout = d.ActionTimeout
	}
	if r.NoOverlay {
		r.OverlaySelector = ""
	} else if r.OverlaySelector == "" {
		r.OverlaySelector = d.OverlaySelector
	}
	if r.PageIDPrefix == "" {
		r.PageIDPrefix = d.PageIDPrefix
	}
	if !r.Format.valid() {
		r.Format = d.Format
	}
	if r.Quality <= 0 || r.Quality > 100 {
		r.Quality = d.Quality
	}
	return r
}
