package pagecapture

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"
)

// Capturer captures paginated documents from web pages.
//
// A Capturer manages a headless browser process that is reused across
// requests. Every request gets its own tab, opened under a slot from a
// bounded pool and closed when the request ends, so requests never share browser
// state. A Capturer is safe for concurrent use.
//
// Call [Capturer.Close] when the Capturer is no longer needed to release
// browser resources.
type Capturer struct {
	cfg           capturerConfig
	allocCtx      context.Context
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
	slots         *semaphore.Weighted

	// open creates a session once a slot is held. Tests replace it.
	open func(ctx context.Context, targetURL string, cfg CaptureConfig, log logrus.FieldLogger) (session, error)

	mu     sync.Mutex
	closed bool
}

// NewCapturer creates a Capturer with the given options.
//
// It starts a headless browser in the background. The caller must call
// [Capturer.Close] when finished.
func NewCapturer(opts ...Option) (*Capturer, error) {
	cfg := defaultConfig()
	for _, o := range opts {
		o(&cfg)
	}

	chromePath, err := resolveBrowser(cfg)
	if err != nil {
		return nil, err
	}

	allocOpts := append(
		chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-background-networking", true),
		chromedp.Flag("disable-sync", true),
		chromedp.Flag("disable-translate", true),
		chromedp.Flag("no-first-run", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("headless", cfg.headless),
	)
	if chromePath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(chromePath))
	}
	if cfg.noSandbox {
		allocOpts = append(allocOpts, chromedp.NoSandbox)
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), allocOpts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	// Start the browser eagerly so errors surface at creation time.
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("pagecapture: starting browser: %w", err)
	}
	cfg.logger.WithField("max_sessions", cfg.maxSessions).Info("pagecapture: browser started")

	c := &Capturer{
		cfg:           cfg,
		allocCtx:      allocCtx,
		allocCancel:   allocCancel,
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
		slots:         semaphore.NewWeighted(int64(cfg.maxSessions)),
	}
	c.open = c.openTab
	return c, nil
}

// Close releases all resources held by the Capturer, including the
// browser process. Close is idempotent.
func (c *Capturer) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	if c.browserCancel != nil {
		c.browserCancel()
	}
	if c.allocCancel != nil {
		c.allocCancel()
	}
	return nil
}

// Frames discovers and captures every page of the document at rawURL and
// returns the frames in page order. A document without pages yields an
// empty slice and a nil error.
// If cfg is nil, [DefaultCaptureConfig] values are used.
func (c *Capturer) Frames(ctx context.Context, rawURL string, cfg *CaptureConfig) ([]Frame, error) {
	var frames []Frame
	err := c.do(ctx, rawURL, cfg, func(ctx context.Context, resolved CaptureConfig) error {
		var err error
		frames, err = c.frames(ctx, rawURL, resolved)
		return err
	})
	return frames, err
}

// Capture captures the document at rawURL and assembles it into the
// artifact kind selected by cfg.Output. A document without pages yields a
// [NoPagesFound] error, never an empty artifact.
// If cfg is nil, [DefaultCaptureConfig] values are used.
func (c *Capturer) Capture(ctx context.Context, rawURL string, cfg *CaptureConfig) (*Artifact, error) {
	var art *Artifact
	err := c.do(ctx, rawURL, cfg, func(ctx context.Context, resolved CaptureConfig) error {
		frames, err := c.frames(ctx, rawURL, resolved)
		if err != nil {
			return err
		}
		if len(frames) == 0 {
			return &Error{Kind: NoPagesFound, URL: rawURL, Err: ErrNoPages}
		}
		start := time.Now()
		if art, err = Assemble(frames, resolved.Output); err != nil {
			return err
		}
		c.cfg.logger.WithFields(logrus.Fields{
			"url":   rawURL,
			"kind":  art.Kind().String(),
			"pages": art.Pages(),
			"bytes": art.Len(),
			"took":  time.Since(start),
		}).Info("pagecapture: artifact assembled")
		return nil
	})
	if err != nil {
		return nil, err
	}
	return art, nil
}

// do is the shared request path: it rejects closed Capturers and invalid
// URLs, resolves cfg and bounds fn by the Capturer timeout.
func (c *Capturer) do(ctx context.Context, rawURL string, cfg *CaptureConfig, fn func(context.Context, CaptureConfig) error) error {
	if err := c.checkClosed(); err != nil {
		return err
	}
	if err := validateURL(rawURL); err != nil {
		return err
	}
	resolved := cfg.resolved()

	if c.cfg.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.timeout)
		defer cancel()
	}
	return fn(ctx, resolved)
}

// frames checks out a session slot, opens a session, runs discovery and
// always closes the session and returns the slot.
func (c *Capturer) frames(ctx context.Context, rawURL string, cfg CaptureConfig) ([]Frame, error) {
	log := c.cfg.logger.WithFields(logrus.Fields{
		"session": uuid.NewString(),
		"url":     rawURL,
	})
	start := time.Now()

	// A full pool is a local condition, not a property of the target site.
	if err := c.slots.Acquire(ctx, 1); err != nil {
		log.WithError(err).Warn("pagecapture: no free session")
		return nil, captureError(rawURL, 0, fmt.Errorf("waiting for a free session: %w", err))
	}
	defer c.slots.Release(1)
	if err := c.checkClosed(); err != nil {
		return nil, err
	}

	s, err := c.open(ctx, rawURL, cfg, log)
	if err != nil {
		log.WithError(err).Warn("pagecapture: navigation failed")
		return nil, navigationError(rawURL, err)
	}
	defer s.Close()

	frames, err := discover(ctx, s, cfg, rawURL, log)
	if err != nil {
		entry := log.WithError(err)
		if isCanceled(err) {
			entry.Info("pagecapture: capture aborted")
		} else {
			entry.Warn("pagecapture: capture failed")
		}
		return nil, err
	}
	log.WithFields(logrus.Fields{
		"pages": len(frames),
		"took":  time.Since(start),
	}).Info("pagecapture: discovery finished")
	return frames, nil
}

// openTab opens a tab on the shared browser and loads targetURL.
func (c *Capturer) openTab(ctx context.Context, targetURL string, cfg CaptureConfig, log logrus.FieldLogger) (session, error) {
	s, err := openSession(ctx, c.browserCtx, targetURL, cfg, c.cfg.stealth, log)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (c *Capturer) checkClosed() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	return nil
}

// validateURL accepts only absolute http and https URLs.
func validateURL(rawURL string) error {
	u, err := url.ParseRequestURI(rawURL)
	if err != nil {
		return navigationError(rawURL, fmt.Errorf("invalid URL: %w", err))
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return navigationError(rawURL, fmt.Errorf("invalid URL: want an absolute http(s) URL"))
	}
	return nil
}

// --- Package-level convenience functions ---

// Capture captures a document using a temporary [Capturer].
// This is convenient for one-off captures. For repeated use, create a
// [Capturer] with [NewCapturer] to reuse the browser instance.
func Capture(ctx context.Context, rawURL string, cfg *CaptureConfig, opts ...Option) (*Artifact, error) {
	c, err := NewCapturer(opts...)
	if err != nil {
		return nil, err
	}
	defer c.Close()
	return c.Capture(ctx, rawURL, cfg)
}

// Frames captures a document's pages using a temporary [Capturer].
func Frames(ctx context.Context, rawURL string, cfg *CaptureConfig, opts ...Option) ([]Frame, error) {
	c, err := NewCapturer(opts...)
	if err != nil {
		return nil, err
	}
	defer c.Close()
	return c.Frames(ctx, rawURL, cfg)
}
