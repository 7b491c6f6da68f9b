// Package output writes artifacts to disk under names derived from the
// source URL (e.g. example_com_doc_12345.pdf).
package output

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	pagecapture "github.com/porticus-lab/go-page-capture"
)

// Writer writes artifacts into one directory.
type Writer struct {
	OutputDir string
}

// New creates a Writer targeting the given output directory.
// If outputDir is empty, it defaults to the current working directory.
func New(outputDir string) (*Writer, error) {
	if outputDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("getting working directory: %w", err)
		}
		outputDir = wd
	}

	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}

	return &Writer{OutputDir: outputDir}, nil
}

// Write stores art under a name derived from rawURL, or under name when it
// is not empty, and returns the written path.
func (w *Writer) Write(rawURL, name string, art *pagecapture.Artifact) (string, error) {
	if name == "" {
		name = FilenameFromURL(rawURL)
	}
	path := filepath.Join(w.OutputDir, art.Filename(name))
	if err := art.WriteToFile(path, 0o644); err != nil {
		return "", fmt.Errorf("writing file %s: %w", path, err)
	}
	return path, nil
}

// FilenameFromURL converts a URL into a flat filename without extension.
// Example: https://example.com/document/123/title → example_com_document_123_title
func FilenameFromURL(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" {
		return "document"
	}

	parts := []string{sanitize(parsed.Host)}
	path := strings.Trim(parsed.Path, "/")
	if path != "" {
		for _, seg := range strings.Split(path, "/") {
			parts = append(parts, sanitize(seg))
		}
	}
	name := strings.Join(parts, "_")
	if len(name) > 120 {
		name = name[:120]
	}
	return name
}

// sanitize replaces non-alphanumeric characters with underscores.
func sanitize(s string) string {
	var b strings.Builder
	for _, ch := range s {
		if (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') || (ch >= '0' && ch <= '9') {
			b.WriteRune(ch)
		} else {
			b.WriteRune('_')
		}
	}
	return b.String()
}
