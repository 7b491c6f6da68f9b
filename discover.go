package pagecapture

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

// readyPoll is how often Ready is polled while waiting for images.
const readyPoll = 100 * time.Millisecond

// pageIter walks the document page by page: probe page n, scroll it into
// view, let it settle, measure it and capture it. It stops at the first
// missing page or at MaxPages. A pageIter is finite and cannot be
// restarted; after Next returns false, Err reports why.
type pageIter struct {
	s   session
	cfg CaptureConfig
	url string
	log logrus.FieldLogger

	next  int
	frame Frame
	err   error
	done  bool
}

func newPageIter(s session, cfg CaptureConfig, url string, log logrus.FieldLogger) *pageIter {
	return &pageIter{s: s, cfg: cfg, url: url, log: log, next: 1}
}

// Next captures the next page. It returns false when discovery is over,
// either because the document has no more pages or because of an error.
func (it *pageIter) Next(ctx context.Context) bool {
	if it.done {
		return false
	}
	if err := ctx.Err(); err != nil {
		return it.fail(it.next, err)
	}
	n := it.next
	if it.cfg.MaxPages > 0 && n > it.cfg.MaxPages {
		it.log.WithField("max_pages", it.cfg.MaxPages).Info("pagecapture: page cap reached")
		it.done = true
		return false
	}

	id := PageID(it.cfg.PageIDPrefix, n)
	ok, err := it.s.Exists(ctx, id)
	if err != nil {
		return it.fail(n, fmt.Errorf("probing %s: %w", id, err))
	}
	if !ok {
		it.done = true
		return false
	}

	frame, err := it.capture(ctx, n, id)
	if err != nil {
		return it.fail(n, err)
	}
	it.frame = frame
	it.next++
	it.log.WithFields(logrus.Fields{
		"page":   n,
		"width":  frame.Width,
		"height": frame.Height,
	}).Debug("pagecapture: page captured")
	return true
}

// Frame returns the frame produced by the last successful call to Next.
func (it *pageIter) Frame() Frame { return it.frame }

// Err returns the error that stopped iteration, if any.
func (it *pageIter) Err() error { return it.err }

func (it *pageIter) capture(ctx context.Context, n int, id string) (Frame, error) {
	if err := it.s.Reveal(ctx, id); err != nil {
		return Frame{}, fmt.Errorf("scrolling to %s: %w", id, err)
	}
	if err := it.settle(ctx, id); err != nil {
		return Frame{}, err
	}
	r, err := it.s.Bounds(ctx, id)
	if err != nil {
		return Frame{}, fmt.Errorf("measuring %s: %w", id, err)
	}
	if r.Empty() {
		return Frame{}, fmt.Errorf("%s has an empty bounding box (%gx%g)", id, r.Width, r.Height)
	}
	data, err := it.s.Shoot(ctx, r)
	if err != nil {
		return Frame{}, fmt.Errorf("capturing %s: %w", id, err)
	}
	return newFrame(n, data)
}

// settle waits for lazily loaded content after a scroll. Without
// WaitForImages it is a fixed pause; with it, the pause ends early once
// every image in the element has loaded.
func (it *pageIter) settle(ctx context.Context, id string) error {
	deadline := time.NewTimer(it.cfg.SettleDelay)
	defer deadline.Stop()

	if !it.cfg.WaitForImages {
		select {
		case <-deadline.C:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	tick := time.NewTicker(readyPoll)
	defer tick.Stop()
	for {
		ok, err := it.s.Ready(ctx, id)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			it.log.WithError(err).WithField("id", id).Debug("pagecapture: readiness check failed")
		}
		if ok {
			return nil
		}
		select {
		case <-deadline.C:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		case <-tick.C:
		}
	}
}

func (it *pageIter) fail(n int, err error) bool {
	it.done = true
	it.err = captureError(it.url, n, err)
	return false
}

// discover runs the iterator to completion. The result is either every
// page of the document in order, or an error and no frames.
func discover(ctx context.Context, s session, cfg CaptureConfig, url string, log logrus.FieldLogger) ([]Frame, error) {
	it := newPageIter(s, cfg, url, log)
	var frames []Frame
	for it.Next(ctx) {
		frames = append(frames, it.Frame())
	}
	if err := it.Err(); err != nil {
		return nil, err
	}
	return frames, nil
}

// isCanceled reports whether err stems from context cancellation or expiry.
func isCanceled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
