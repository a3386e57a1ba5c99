// Package loader discovers corpus files and parses them into page units.
package loader

import (
	"context"
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/bull/pdf-rag/internal/metadata"
)

// ErrUnsupportedFormat is returned for files no registered loader handles.
var ErrUnsupportedFormat = errors.New("unsupported document format")

// Page is one loaded unit of a source file: a PDF page or a markdown section.
type Page struct {
	Source string
	// PageNumber is 1-based; zero when the format has no pages.
	PageNumber int
	// Section is the header path for sectioned formats.
	Section string
	Text    string
	// Extra holds format-specific metadata, nested under its own key.
	Extra map[string]any
}

// Metadata returns the raw, possibly nested, metadata the chunker inherits.
func (p Page) Metadata() map[string]any {
	m := map[string]any{metadata.KeySource: p.Source}
	if p.PageNumber > 0 {
		m[metadata.KeyLoc] = map[string]any{"pageNumber": p.PageNumber}
	}
	if p.Section != "" {
		m[metadata.KeySection] = p.Section
	}
	for k, v := range p.Extra {
		if _, ok := m[k]; !ok {
			m[k] = v
		}
	}
	return m
}

// Loader parses the bytes of one file into pages tagged with source.
type Loader interface {
	Load(ctx context.Context, source string, data []byte) ([]Page, error)
}

// Registry maps lower-case file extensions (".pdf") to loaders.
type Registry map[string]Loader

// DefaultRegistry handles PDF and Markdown.
func DefaultRegistry() Registry {
	md := NewMarkdownLoader()
	return Registry{
		".pdf":      PDFLoader{},
		".md":       md,
		".markdown": md,
	}
}

// Extensions returns the registered extensions, sorted.
func (r Registry) Extensions() []string {
	exts := make([]string, 0, len(r))
	for ext := range r {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// Load dispatches on the extension of name.
func (r Registry) Load(ctx context.Context, name string, data []byte) ([]Page, error) {
	ext := strings.ToLower(path.Ext(name))
	l, ok := r[ext]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
	return l.Load(ctx, name, data)
}
