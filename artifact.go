package pagecapture

import (
	"bytes"
	"encoding/base64"
	"io"
	"os"
)

// Artifact holds an assembled document and provides helpers for common
// output forms such as raw bytes, base64 encoding, and streaming readers.
//
// An Artifact always contains every captured page; failed requests return
// an [*Error] instead. It is safe to call its methods multiple times; the
// underlying data is never modified.
type Artifact struct {
	kind  OutputKind
	pages int
	data  []byte
}

// Kind returns the artifact kind.
func (a *Artifact) Kind() OutputKind { return a.kind }

// Pages returns the number of document pages in the artifact.
func (a *Artifact) Pages() int { return a.pages }

// Bytes returns the raw artifact content.
func (a *Artifact) Bytes() []byte {
	return a.data
}

// Base64 returns the artifact encoded as a standard base64 string (RFC 4648).
func (a *Artifact) Base64() string {
	return base64.StdEncoding.EncodeToString(a.data)
}

// Reader returns an [*bytes.Reader] over the artifact content.
func (a *Artifact) Reader() *bytes.Reader {
	return bytes.NewReader(a.data)
}

// WriteTo writes the full artifact content to w. It implements [io.WriterTo].
func (a *Artifact) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(a.data)
	return int64(n), err
}

// WriteToFile writes the artifact to the file at path, creating it if needed.
func (a *Artifact) WriteToFile(path string, perm os.FileMode) error {
	return os.WriteFile(path, a.data, perm)
}

// Len returns the size of the artifact in bytes.
func (a *Artifact) Len() int {
	return len(a.data)
}

// ContentType returns the MIME type of the artifact.
func (a *Artifact) ContentType() string {
	if a.kind == Archive {
		return "application/zip"
	}
	return "application/pdf"
}

// Ext returns the file extension of the artifact, including the dot.
func (a *Artifact) Ext() string {
	if a.kind == Archive {
		return ".zip"
	}
	return ".pdf"
}

// Filename returns base with the artifact's extension appended.
func (a *Artifact) Filename(base string) string {
	return base + a.Ext()
}
