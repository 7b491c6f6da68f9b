package pagecapture

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by the library.
var (
	// ErrClosed is returned when attempting to use a closed [Capturer].
	ErrClosed = errors.New("pagecapture: capturer is closed")

	// ErrNoPages is wrapped by the [NoPagesFound] failure when a document
	// exposes no addressable pages.
	ErrNoPages = errors.New("no pages found")
)

// Kind classifies why a capture request failed.
type Kind int

const (
	// Unknown is reported by [KindOf] for errors not produced by this package.
	Unknown Kind = iota
	// NavigationFailure means the URL was invalid, unreachable, or did not
	// finish loading in time.
	NavigationFailure
	// NoPagesFound means discovery completed but the document had no pages.
	NoPagesFound
	// CaptureFailure means a located page could not be rasterized.
	CaptureFailure
	// AssemblyFailure means the frames could not be decoded or written into
	// the output container.
	AssemblyFailure
)

func (k Kind) String() string {
	switch k {
	case NavigationFailure:
		return "navigation_failure"
	case NoPagesFound:
		return "no_pages_found"
	case CaptureFailure:
		return "capture_failure"
	case AssemblyFailure:
		return "assembly_failure"
	default:
		return "unknown"
	}
}

// Error is the failure result of a capture request. A caller always gets
// either a complete [Artifact] or an *Error, never both.
type Error struct {
	Kind Kind
	URL  string
	// Page is the 1-based sequence number involved, or 0 when the failure is
	// not tied to a single page.
	Page int
	Err  error
}

func (e *Error) Error() string {
	msg := "pagecapture: " + e.Kind.String()
	if e.Page > 0 {
		msg += fmt.Sprintf(" (page %d)", e.Page)
	}
	if e.URL != "" {
		msg += fmt.Sprintf(" for %s", e.URL)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the [Kind] carried by err, or [Unknown].
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Unknown
}

func navigationError(url string, err error) error {
	return &Error{Kind: NavigationFailure, URL: url, Err: err}
}

func captureError(url string, page int, err error) error {
	return &Error{Kind: CaptureFailure, URL: url, Page: page, Err: err}
}

func assemblyError(page int, err error) error {
	return &Error{Kind: AssemblyFailure, Page: page, Err: err}
}
