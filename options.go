package pagecapture

import (
	"io"
	"time"

	"github.com/sirupsen/logrus"
)

// capturerConfig holds internal configuration for a Capturer.
type capturerConfig struct {
	chromePath   string
	autoDownload bool
	timeout      time.Duration
	noSandbox    bool
	headless     string
	maxSessions  int
	stealth      bool
	logger       logrus.FieldLogger
}

func defaultConfig() capturerConfig {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return capturerConfig{
		timeout:     10 * time.Minute,
		headless:    "new",
		maxSessions: 4,
		logger:      l,
	}
}

// Option configures a [Capturer].
type Option func(*capturerConfig)

// WithChromePath sets the path to the Chrome or Chromium executable.
// By default the library searches standard locations automatically.
func WithChromePath(path string) Option {
	return func(c *capturerConfig) {
		c.chromePath = path
	}
}

// WithAutoDownload downloads a compatible Chromium build on first use when
// no explicit path is configured. The binary is cached between runs.
func WithAutoDownload() Option {
	return func(c *capturerConfig) {
		c.autoDownload = true
	}
}

// WithTimeout sets the maximum duration for a single capture request,
// covering navigation, every page, and assembly. Defaults to 10 minutes.
// A zero or negative value disables the timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *capturerConfig) {
		c.timeout = d
	}
}

// WithNoSandbox disables the Chrome sandbox. This is required when
// running as root, for example inside Docker containers.
func WithNoSandbox() Option {
	return func(c *capturerConfig) {
		c.noSandbox = true
	}
}

// WithMaxSessions bounds how many capture sessions (browser tabs) may be
// open at once. Further requests wait for a free slot. Defaults to 4.
func WithMaxSessions(n int) Option {
	return func(c *capturerConfig) {
		if n > 0 {
			c.maxSessions = n
		}
	}
}

// WithStealth injects an automation-evasion script into every document
// before its own scripts run. Some sites refuse to render for headless
// browsers without it.
func WithStealth() Option {
	return func(c *capturerConfig) {
		c.stealth = true
	}
}

// WithLogger sets the logger used for session and page events.
// By default nothing is logged.
func WithLogger(l logrus.FieldLogger) Option {
	return func(c *capturerConfig) {
		if l != nil {
			c.logger = l
		}
	}
}
