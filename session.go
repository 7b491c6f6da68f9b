package pagecapture

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/go-rod/stealth"
	"github.com/sirupsen/logrus"
)

// session is the browser surface the discovery loop drives. One session
// is one tab bound to one request; it is not safe for concurrent use.
type session interface {
	// Exists reports whether an element with the given id is in the DOM.
	Exists(ctx context.Context, id string) (bool, error)
	// Reveal scrolls the element into the viewport.
	Reveal(ctx context.Context, id string) error
	// Ready reports whether every image inside the element has loaded.
	Ready(ctx context.Context, id string) (bool, error)
	// Bounds returns the element rectangle in document coordinates.
	Bounds(ctx context.Context, id string) (Rect, error)
	// Shoot captures the given document region as an encoded image.
	Shoot(ctx context.Context, r Rect) ([]byte, error)
	// Close tears the session down. It is safe to call more than once.
	Close() error
}

// cdpSession is a session backed by one Chrome tab.
type cdpSession struct {
	tab    context.Context
	cancel context.CancelFunc
	cfg    CaptureConfig
	log    logrus.FieldLogger

	once sync.Once
}

// openSession opens a tab on browserCtx, loads targetURL and waits until
// the document is ready for discovery. On error the tab is already closed.
func openSession(ctx, browserCtx context.Context, targetURL string, cfg CaptureConfig, useStealth bool, log logrus.FieldLogger) (*cdpSession, error) {
	tab, cancel := chromedp.NewContext(browserCtx)
	s := &cdpSession{tab: tab, cancel: cancel, cfg: cfg, log: log}

	setup := []chromedp.Action{
		chromedp.EmulateViewport(int64(cfg.Viewport.Width), int64(cfg.Viewport.Height)),
		page.SetLifecycleEventsEnabled(true),
	}
	if useStealth {
		setup = append(setup, chromedp.ActionFunc(func(ctx context.Context) error {
			_, err := page.AddScriptToEvaluateOnNewDocument(stealth.JS).Do(ctx)
			return err
		}))
	}
	// The first Run allocates the tab, so it must not carry a timeout.
	if err := chromedp.Run(tab, setup...); err != nil {
		s.Close()
		return nil, fmt.Errorf("opening tab: %w", err)
	}

	if err := s.navigate(ctx, targetURL); err != nil {
		s.Close()
		return nil, err
	}
	s.hideOverlay(ctx)
	return s, nil
}

// navigate loads the URL, then waits for the network to go quiet and for
// the body element to exist, each under its own bound.
func (s *cdpSession) navigate(ctx context.Context, targetURL string) error {
	var frameID string
	if err := s.run(ctx, s.cfg.ActionTimeout, chromedp.ActionFunc(func(ctx context.Context) error {
		tree, err := page.GetFrameTree().Do(ctx)
		if err != nil {
			return err
		}
		frameID = string(tree.Frame.ID)
		return nil
	})); err != nil {
		return fmt.Errorf("reading frame tree: %w", err)
	}

	// networkAlmostIdle fires once no more than two connections have been
	// active for 500ms. Only events after the new document's "init" count.
	idle := make(chan struct{})
	var (
		mu      sync.Mutex
		started bool
		done    bool
	)
	chromedp.ListenTarget(s.tab, func(ev any) {
		e, ok := ev.(*page.EventLifecycleEvent)
		if !ok || string(e.FrameID) != frameID {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		switch e.Name {
		case "init":
			started = true
		case "networkAlmostIdle", "networkIdle":
			if started && !done {
				done = true
				close(idle)
			}
		}
	})

	navCtx, cancel := context.WithTimeout(s.tab, s.cfg.NavigationTimeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	if err := chromedp.Run(navCtx, chromedp.Navigate(targetURL)); err != nil {
		return fmt.Errorf("navigating: %w", err)
	}
	select {
	case <-idle:
	case <-navCtx.Done():
		if err := ctx.Err(); err != nil {
			return err
		}
		return fmt.Errorf("waiting for network idle: %w", navCtx.Err())
	}

	if err := s.run(ctx, s.cfg.SelectorTimeout, chromedp.WaitReady("body", chromedp.ByQuery)); err != nil {
		return fmt.Errorf("waiting for body: %w", err)
	}
	return nil
}

// hideOverlay removes a sticky toolbar from the layout. Absence of the
// element is fine, and script failures are only logged.
func (s *cdpSession) hideOverlay(ctx context.Context) {
	if s.cfg.OverlaySelector == "" {
		return
	}
	js := fmt.Sprintf(`(() => {
		const el = document.querySelector(%s);
		if (!el) return false;
		el.style.display = "none";
		return true;
	})()`, jsString(s.cfg.OverlaySelector))

	var hidden bool
	if err := s.run(ctx, s.cfg.ActionTimeout, chromedp.Evaluate(js, &hidden)); err != nil {
		s.log.WithError(err).Warn("pagecapture: hiding overlay failed")
		return
	}
	s.log.WithField("hidden", hidden).Debug("pagecapture: overlay checked")
}

func (s *cdpSession) Exists(ctx context.Context, id string) (bool, error) {
	var ok bool
	js := fmt.Sprintf(`document.getElementById(%s) !== null`, jsString(id))
	err := s.run(ctx, s.cfg.ActionTimeout, chromedp.Evaluate(js, &ok))
	return ok, err
}

func (s *cdpSession) Reveal(ctx context.Context, id string) error {
	var ok bool
	js := fmt.Sprintf(`(() => {
		const el = document.getElementById(%s);
		if (!el) return false;
		el.scrollIntoView();
		return true;
	})()`, jsString(id))
	if err := s.run(ctx, s.cfg.ActionTimeout, chromedp.Evaluate(js, &ok)); err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("element %q disappeared", id)
	}
	return nil
}

func (s *cdpSession) Ready(ctx context.Context, id string) (bool, error) {
	var ok bool
	js := fmt.Sprintf(`(() => {
		const el = document.getElementById(%s);
		if (!el) return false;
		return Array.from(el.querySelectorAll("img")).every(img => img.complete && img.naturalWidth > 0);
	})()`, jsString(id))
	err := s.run(ctx, s.cfg.ActionTimeout, chromedp.Evaluate(js, &ok))
	return ok, err
}

func (s *cdpSession) Bounds(ctx context.Context, id string) (Rect, error) {
	var r *Rect
	js := fmt.Sprintf(`(() => {
		const el = document.getElementById(%s);
		if (!el) return null;
		const rect = el.getBoundingClientRect();
		return {x: rect.left + window.scrollX, y: rect.top + window.scrollY, width: rect.width, height: rect.height};
	})()`, jsString(id))
	if err := s.run(ctx, s.cfg.ActionTimeout, chromedp.Evaluate(js, &r)); err != nil {
		return Rect{}, err
	}
	if r == nil {
		return Rect{}, fmt.Errorf("element %q disappeared", id)
	}
	return *r, nil
}

func (s *cdpSession) Shoot(ctx context.Context, r Rect) ([]byte, error) {
	var buf []byte
	err := s.run(ctx, s.cfg.ActionTimeout, chromedp.ActionFunc(func(ctx context.Context) error {
		params := page.CaptureScreenshot().
			WithFormat(screenshotFormat(s.cfg.Format)).
			WithCaptureBeyondViewport(true).
			WithClip(&page.Viewport{
				X:      r.X,
				Y:      r.Y,
				Width:  r.Width,
				Height: r.Height,
				Scale:  1,
			})
		if s.cfg.Format != PNG {
			params = params.WithQuality(int64(s.cfg.Quality))
		}
		var err error
		buf, err = params.Do(ctx)
		return err
	}))
	return buf, err
}

// Close closes the tab.
func (s *cdpSession) Close() error {
	s.once.Do(s.cancel)
	return nil
}

// run executes actions on the tab bounded by d and by the request context.
// Cancelling ctx aborts the actions without closing the tab.
func (s *cdpSession) run(ctx context.Context, d time.Duration, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithTimeout(s.tab, d)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(runCtx, actions...)
	if err != nil && ctx.Err() != nil && errors.Is(err, context.Canceled) {
		return ctx.Err()
	}
	return err
}

// jsString quotes v as a JavaScript string literal. JSON string syntax is
// a subset of JavaScript's, unlike Go's %q.
func jsString(v string) string {
	b, _ := json.Marshal(v)
	return string(b)
}

func screenshotFormat(f ImageFormat) page.CaptureScreenshotFormat {
	switch f {
	case JPEG:
		return page.CaptureScreenshotFormatJpeg
	case WebP:
		return page.CaptureScreenshotFormatWebp
	default:
		return page.CaptureScreenshotFormatPng
	}
}
