// Package config loads pagecapture settings from YAML files.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	pagecapture "github.com/porticus-lab/go-page-capture"
)

// Config is the top-level configuration shared by the CLI and the server.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Browser BrowserConfig `yaml:"browser"`
	Capture CaptureConfig `yaml:"capture"`
	Log     LogConfig     `yaml:"log"`
}

// ServerConfig controls the HTTP delivery layer.
type ServerConfig struct {
	Addr           string        `yaml:"addr"`
	RateLimit      float64       `yaml:"rate_limit"` // requests per second
	Burst          int           `yaml:"burst"`
	AllowedOrigins []string      `yaml:"allowed_origins"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
}

// BrowserConfig controls the Chrome process.
type BrowserConfig struct {
	ChromePath   string        `yaml:"chrome_path"`
	AutoDownload bool          `yaml:"auto_download"`
	NoSandbox    bool          `yaml:"no_sandbox"`
	Stealth      bool          `yaml:"stealth"`
	MaxSessions  int           `yaml:"max_sessions"`
	Timeout      time.Duration `yaml:"timeout"`
}

// CaptureConfig mirrors [pagecapture.CaptureConfig] for file-based setup.
type CaptureConfig struct {
	ViewportWidth     int           `yaml:"viewport_width"`
	ViewportHeight    int           `yaml:"viewport_height"`
	MaxPages          int           `yaml:"max_pages"`
	SettleDelay       time.Duration `yaml:"settle_delay"`
	WaitForImages     bool          `yaml:"wait_for_images"`
	NavigationTimeout time.Duration `yaml:"navigation_timeout"`
	SelectorTimeout   time.Duration `yaml:"selector_timeout"`
	ActionTimeout     time.Duration `yaml:"action_timeout"`
	OverlaySelector   string        `yaml:"overlay_selector"`
	NoOverlay         bool          `yaml:"no_overlay"`
	PageIDPrefix      string        `yaml:"page_id_prefix"`
	Format            string        `yaml:"format"` // png | jpeg | webp
	Quality           int           `yaml:"quality"`
	Output            string        `yaml:"output"` // pdf | archive
}

// LogConfig controls logrus output.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | json
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// LoadFile reads a YAML configuration file.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.RateLimit <= 0 {
		c.Server.RateLimit = 1
	}
	if c.Server.Burst <= 0 {
		c.Server.Burst = 3
	}
	if len(c.Server.AllowedOrigins) == 0 {
		c.Server.AllowedOrigins = []string{"*"}
	}
	if c.Server.WriteTimeout <= 0 {
		c.Server.WriteTimeout = 10 * time.Minute
	}
	if c.Browser.MaxSessions <= 0 {
		c.Browser.MaxSessions = 4
	}
	if c.Browser.Timeout <= 0 {
		c.Browser.Timeout = 10 * time.Minute
	}
	if c.Capture.Format == "" {
		c.Capture.Format = string(pagecapture.PNG)
	}
	if c.Capture.Output == "" {
		c.Capture.Output = "pdf"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}

// Validate rejects values the library would otherwise silently replace.
func (c *Config) Validate() error {
	switch pagecapture.ImageFormat(strings.ToLower(c.Capture.Format)) {
	case pagecapture.PNG, pagecapture.JPEG, pagecapture.WebP:
	default:
		return fmt.Errorf("config: unknown capture format %q", c.Capture.Format)
	}
	if _, err := ParseOutput(c.Capture.Output); err != nil {
		return err
	}
	if c.Capture.MaxPages < 0 {
		return fmt.Errorf("config: max_pages must not be negative")
	}
	return nil
}

// ParseOutput maps an output name to its artifact kind.
func ParseOutput(s string) (pagecapture.OutputKind, error) {
	switch strings.ToLower(s) {
	case "pdf", "":
		return pagecapture.PDF, nil
	case "archive", "zip":
		return pagecapture.Archive, nil
	}
	return 0, fmt.Errorf("config: unknown output %q (want pdf or archive)", s)
}

// CaptureOptions converts the capture section to library form.
func (c *Config) CaptureOptions() pagecapture.CaptureConfig {
	kind, _ := ParseOutput(c.Capture.Output)
	return pagecapture.CaptureConfig{
		Viewport: pagecapture.Viewport{
			Width:  c.Capture.ViewportWidth,
			Height: c.Capture.ViewportHeight,
		},
		MaxPages:          c.Capture.MaxPages,
		SettleDelay:       c.Capture.SettleDelay,
		WaitForImages:     c.Capture.WaitForImages,
		NavigationTimeout: c.Capture.NavigationTimeout,
		SelectorTimeout:   c.Capture.SelectorTimeout,
		ActionTimeout:     c.Capture.ActionTimeout,
		OverlaySelector:   c.Capture.OverlaySelector,
		NoOverlay:         c.Capture.NoOverlay,
		PageIDPrefix:      c.Capture.PageIDPrefix,
		Format:            pagecapture.ImageFormat(strings.ToLower(c.Capture.Format)),
		Quality:           c.Capture.Quality,
		Output:            kind,
	}
}

// CapturerOptions converts the browser section to [pagecapture.Option]s.
func (c *Config) CapturerOptions() []pagecapture.Option {
	opts := []pagecapture.Option{
		pagecapture.WithMaxSessions(c.Browser.MaxSessions),
		pagecapture.WithTimeout(c.Browser.Timeout),
	}
	if c.Browser.ChromePath != "" {
		opts = append(opts, pagecapture.WithChromePath(c.Browser.ChromePath))
	}
	if c.Browser.AutoDownload {
		opts = append(opts, pagecapture.WithAutoDownload())
	}
	if c.Browser.NoSandbox {
		opts = append(opts, pagecapture.WithNoSandbox())
	}
	if c.Browser.Stealth {
		opts = append(opts, pagecapture.WithStealth())
	}
	return opts
}
