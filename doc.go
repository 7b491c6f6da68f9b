// Package pagecapture captures paginated documents rendered inside web
// pages and reassembles them into a downloadable artifact.
//
// The target page must expose each document page as a DOM element with a
// numbered id (page1, page2, …). A headless Chrome tab loads the page,
// scrolls to each element in turn, captures exactly its bounding box as an
// image, and stops at the first missing number. The ordered images are
// then merged into one paged-image PDF or stored in a ZIP archive.
//
// # Capturing
//
// For one-off captures use the package-level helpers:
//
//	art, err := pagecapture.Capture(ctx, "https://example.com/doc", nil)
//
// For repeated captures create a [Capturer], which reuses the browser process
// and hands each request its own tab:
//
//	c, err := pagecapture.NewCapturer(pagecapture.WithNoSandbox())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer c.Close()
//
//	art, err := c.Capture(ctx, "https://example.com/doc", nil)
//	frames, err := c.Frames(ctx, "https://example.com/doc", nil)
//
// Use [CaptureConfig] to control the viewport, page cap, settle pause, frame
// encoding, and artifact kind:
//
//	cfg := &pagecapture.CaptureConfig{
//	    Viewport:    pagecapture.Viewport{Width: 1024, Height: 1200},
//	    MaxPages:    50,
//	    SettleDelay: time.Second,
//	    Output:      pagecapture.Archive,
//	}
//	art, err := c.Capture(ctx, url, cfg)
//
// An [Artifact] gives flexible access to the generated bytes:
//
//	art.Bytes()                            // []byte
//	art.Reader()                           // *bytes.Reader
//	art.WriteToFile("doc.pdf", 0o644)      // write to disk
//	art.ContentType(), art.Filename("doc") // for HTTP responses
//
// # Failures
//
// A request either returns a complete artifact or an [*Error]. Its [Kind]
// tells navigation problems, empty documents, capture failures, and
// assembly failures apart:
//
//	if pagecapture.KindOf(err) == pagecapture.NoPagesFound {
//	    // the URL loaded but had no page1 element
//	}
//
// Nothing is retried. A page that cannot be captured aborts the whole
// request, because a document with a missing page is worse than none.
//
// # Assembling
//
// [Assemble] is exported so frames obtained with [Capturer.Frames] can be
// assembled later or into several kinds.
package pagecapture
