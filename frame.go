package pagecapture

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	_ "image/jpeg" // register decoder
	_ "image/png"  // register decoder
	"strconv"

	_ "golang.org/x/image/webp" // register decoder
)

// ImageFormat is the raster encoding of a captured frame.
type ImageFormat string

// Supported frame encodings.
const (
	PNG  ImageFormat = "png"
	JPEG ImageFormat = "jpeg"
	WebP ImageFormat = "webp"
)

// Ext returns the file extension for the format, without the dot.
func (f ImageFormat) Ext() string {
	if f == JPEG {
		return "jpg"
	}
	return string(f)
}

// MediaType returns the MIME type for the format.
func (f ImageFormat) MediaType() string {
	return "image/" + string(f)
}

func (f ImageFormat) valid() bool {
	switch f {
	case PNG, JPEG, WebP:
		return true
	}
	return false
}

// PageID returns the DOM element id of the page with sequence number n.
func PageID(prefix string, n int) string {
	return prefix + strconv.Itoa(n)
}

// Rect is a region in CSS pixels relative to the top-left corner of the
// full scrollable document.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Empty reports whether the rectangle has no area.
func (r Rect) Empty() bool {
	return r.Width <= 0 || r.Height <= 0
}

// Frame is the captured image of one document page.
//
// Frames are values; the library never modifies Data after the frame is
// produced.
type Frame struct {
	Seq    int // 1-based page number
	Data   []byte
	Width  int // pixels
	Height int // pixels
	Format ImageFormat
}

// Ext returns the file extension of the frame encoding.
func (f Frame) Ext() string { return f.Format.Ext() }

// Name returns the archive entry name for the frame, with the sequence
// number zero-padded to width digits.
func (f Frame) Name(width int) string {
	return fmt.Sprintf("page_%0*d.%s", width, f.Seq, f.Ext())
}

// DataURI returns the frame as a base64 data URI suitable for embedding in
// JSON or HTML.
func (f Frame) DataURI() string {
	return "data:" + f.Format.MediaType() + ";base64," + base64.StdEncoding.EncodeToString(f.Data)
}

// newFrame reads the pixel size and encoding from the image header.
func newFrame(seq int, data []byte) (Frame, error) {
	cfg, name, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return Frame{}, fmt.Errorf("reading image header: %w", err)
	}
	return Frame{
		Seq:    seq,
		Data:   data,
		Width:  cfg.Width,
		Height: cfg.Height,
		Format: ImageFormat(name),
	}, nil
}
