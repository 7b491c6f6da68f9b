package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	pagecapture "github.com/porticus-lab/go-page-capture"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pagecapture.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadFile(t *testing.T) {
	path := writeFile(t, `
server:
  addr: ":9090"
  rate_limit: 2
browser:
  no_sandbox: true
  max_sessions: 2
capture:
  viewport_width: 1024
  viewport_height: 1200
  max_pages: 50
  settle_delay: 1s
  format: JPEG
  quality: 80
  output: archive
log:
  level: debug
`)
	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.Server.Addr != ":9090" || cfg.Server.RateLimit != 2 || cfg.Server.Burst != 3 {
		t.Errorf("server = %+v", cfg.Server)
	}
	if !cfg.Browser.NoSandbox || cfg.Browser.MaxSessions != 2 {
		t.Errorf("browser = %+v", cfg.Browser)
	}

	cc := cfg.CaptureOptions()
	if cc.Viewport != (pagecapture.Viewport{Width: 1024, Height: 1200}) {
		t.Errorf("viewport = %+v", cc.Viewport)
	}
	if cc.MaxPages != 50 || cc.SettleDelay != time.Second {
		t.Errorf("MaxPages/SettleDelay = %d/%v", cc.MaxPages, cc.SettleDelay)
	}
	if cc.Format != pagecapture.JPEG || cc.Quality != 80 || cc.Output != pagecapture.Archive {
		t.Errorf("format/quality/output = %v/%d/%v", cc.Format, cc.Quality, cc.Output)
	}
	if cfg.Log.Level != "debug" || cfg.Log.Format != "text" {
		t.Errorf("log = %+v", cfg.Log)
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.Server.Addr != ":8080" || cfg.Browser.MaxSessions != 4 {
		t.Errorf("defaults = %+v", cfg)
	}
	if cfg.CaptureOptions().Output != pagecapture.PDF {
		t.Error("default output is not pdf")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config invalid: %v", err)
	}
}

func TestLoadFile_Invalid(t *testing.T) {
	tests := map[string]string{
		"format":    "capture:\n  format: gif\n",
		"output":    "capture:\n  output: tarball\n",
		"max pages": "capture:\n  max_pages: -1\n",
		"yaml":      "capture: [unterminated\n",
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := LoadFile(writeFile(t, body)); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestLoadFile_Missing(t *testing.T) {
	if _, err := LoadFile(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected an error for a missing file")
	}
}

func TestParseOutput(t *testing.T) {
	for in, want := range map[string]pagecapture.OutputKind{
		"pdf": pagecapture.PDF, "PDF": pagecapture.PDF, "": pagecapture.PDF,
		"archive": pagecapture.Archive, "zip": pagecapture.Archive,
	} {
		got, err := ParseOutput(in)
		if err != nil || got != want {
			t.Errorf("ParseOutput(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
}
