package pagecapture

import (
	"testing"
	"time"
)

func TestDefaultCaptureConfig(t *testing.T) {
	d := DefaultCaptureConfig()
	if d.Viewport != (Viewport{Width: 1200, Height: 1600}) {
		t.Errorf("default viewport = %+v, want 1200x1600", d.Viewport)
	}
	if d.MaxPages != 0 {
		t.Errorf("default MaxPages = %d, want unbounded", d.MaxPages)
	}
	if d.SettleDelay != 500*time.Millisecond {
		t.Errorf("default SettleDelay = %v, want 500ms", d.SettleDelay)
	}
	if d.NavigationTimeout != 30*time.Second || d.SelectorTimeout != 15*time.Second {
		t.Errorf("default timeouts = %v/%v, want 30s/15s", d.NavigationTimeout, d.SelectorTimeout)
	}
	if d.OverlaySelector != DefaultOverlaySelector {
		t.Errorf("default overlay = %q", d.OverlaySelector)
	}
	if d.Format != PNG || d.Output != PDF {
		t.Errorf("default format/output = %v/%v, want png/pdf", d.Format, d.Output)
	}
}

func TestCaptureConfigResolved_Nil(t *testing.T) {
	var c *CaptureConfig
	if r := c.resolved(); r != DefaultCaptureConfig() {
		t.Errorf("nil resolved = %+v, want defaults", r)
	}
}

func TestCaptureConfigResolved_ZeroValues(t *testing.T) {
	r := (&CaptureConfig{}).resolved()
	if r != DefaultCaptureConfig() {
		t.Errorf("zero resolved = %+v, want defaults", r)
	}
}

func TestCaptureConfigResolved_PreservesExplicit(t *testing.T) {
	c := &CaptureConfig{
		Viewport:        Viewport{Width: 1024, Height: 1200},
		MaxPages:        50,
		SettleDelay:     time.Second,
		OverlaySelector: "#toolbar",
		PageIDPrefix:    "outer_page_",
		Format:          JPEG,
		Quality:         70,
		Output:          Archive,
	}
	r := c.resolved()
	if r.Viewport.Width != 1024 || r.Viewport.Height != 1200 {
		t.Errorf("viewport = %+v", r.Viewport)
	}
	if r.MaxPages != 50 || r.SettleDelay != time.Second {
		t.Errorf("MaxPages/SettleDelay = %d/%v", r.MaxPages, r.SettleDelay)
	}
	if r.OverlaySelector != "#toolbar" || r.PageIDPrefix != "outer_page_" {
		t.Errorf("overlay/prefix = %q/%q", r.OverlaySelector, r.PageIDPrefix)
	}
	if r.Format != JPEG || r.Quality != 70 || r.Output != Archive {
		t.Errorf("format/quality/output = %v/%d/%v", r.Format, r.Quality, r.Output)
	}
}

func TestCaptureConfigResolved_InvalidValues(t *testing.T) {
	r := (&CaptureConfig{
		Viewport: Viewport{Width: 800},
		MaxPages: -4,
		Format:   "gif",
		Quality:  140,
	}).resolved()
	if r.Viewport != DefaultCaptureConfig().Viewport {
		t.Errorf("half-set viewport resolved to %+v", r.Viewport)
	}
	if r.MaxPages != 0 {
		t.Errorf("negative MaxPages resolved to %d", r.MaxPages)
	}
	if r.Format != PNG || r.Quality != 90 {
		t.Errorf("format/quality = %v/%d, want png/90", r.Format, r.Quality)
	}
}

func TestCaptureConfigResolved_NoOverlay(t *testing.T) {
	r := (&CaptureConfig{NoOverlay: true, OverlaySelector: "#x"}).resolved()
	if r.OverlaySelector != "" {
		t.Errorf("NoOverlay kept selector %q", r.OverlaySelector)
	}
}

func TestImageFormatExt(t *testing.T) {
	tests := []struct {
		f    ImageFormat
		ext  string
		mime string
	}{
		{PNG, "png", "image/png"},
		{JPEG, "jpg", "image/jpeg"},
		{WebP, "webp", "image/webp"},
	}
	for _, tt := range tests {
		if got := tt.f.Ext(); got != tt.ext {
			t.Errorf("%v.Ext() = %q, want %q", tt.f, got, tt.ext)
		}
		if got := tt.f.MediaType(); got != tt.mime {
			t.Errorf("%v.MediaType() = %q, want %q", tt.f, got, tt.mime)
		}
	}
}
