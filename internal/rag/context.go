package rag

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/bull/pdf-rag/internal/metadata"
	"github.com/bull/pdf-rag/internal/storage"
)

// NoDocumentsMarker replaces the context text when nothing was retrieved.
const NoDocumentsMarker = "No relevant documents found."

// DefaultMaxContextTokens bounds the assembled context.
const DefaultMaxContextTokens = 16000

const unknownSource = "unknown"

// Document is a retrieved chunk as presented to callers.
type Document struct {
	Content string `json:"content"`
	Source  string `json:"source"`
	// Page is nil when the chunk has no page number.
	Page    *int64 `json:"page"`
	Section string `json:"section,omitempty"`
	// Score is 1 - distance with 4 decimals.
	Score string `json:"score"`
}

// Documents converts results to their presentation form, keeping order.
func Documents(results []storage.Result) []Document {
	docs := make([]Document, len(results))
	for i, r := range results {
		source, ok := r.Metadata.String(metadata.KeySource)
		if !ok || source == "" {
			source = unknownSource
		}
		var page *int64
		if p, ok := r.Metadata.Int(metadata.KeyPageNumber); ok && p != 0 {
			page = &p
		}
		section, _ := r.Metadata.String(metadata.KeySection)
		docs[i] = Document{
			Content: r.Text,
			Source:  source,
			Page:    page,
			Section: section,
			Score:   FormatScore(r.Distance),
		}
	}
	return docs
}

// FormatScore converts a cosine distance to a similarity string.
func FormatScore(distance float64) string {
	return strconv.FormatFloat(1-distance, 'f', 4, 64)
}

// Attribution identifies a document included in the context.
type Attribution struct {
	Source  string
	Page    *int64
	Section string
}

// Context is the assembled grounding block.
type Context struct {
	// Text is the block passed to the model, or NoDocumentsMarker.
	Text         string
	Attributions []Attribution
}

// Empty reports whether no document made it into the context.
func (c Context) Empty() bool {
	return len(c.Attributions) == 0
}

// Assembler builds a bounded, attributed context block.
type Assembler struct {
	maxChars int
}

// NewAssembler creates an Assembler. The token budget is converted at roughly
// 4 characters per token; a non-positive budget selects DefaultMaxContextTokens.
func NewAssembler(maxTokens int) *Assembler {
	if maxTokens <= 0 {
		maxTokens = DefaultMaxContextTokens
	}
	return &Assembler{maxChars: maxTokens * 4}
}

// Assemble joins documents in order, each headed by its 1-based index, source
// and page. Documents that would overflow the budget are left out; the first
// is truncated instead.
func (a *Assembler) Assemble(docs []Document) Context {
	var (
		parts []string
		attrs []Attribution
		size  int
	)
	for i, doc := range docs {
		block := fmt.Sprintf("Document %d from %s%s:\n%s", i+1, doc.Source, locationInfo(doc), doc.Content)
		sep := 0
		if len(parts) > 0 {
			sep = 2
		}
		n := utf8.RuneCountInString(block)
		if size+sep+n > a.maxChars {
			if len(parts) > 0 {
				break
			}
			block, n = truncate(block, a.maxChars), a.maxChars
		}
		parts = append(parts, block)
		attrs = append(attrs, Attribution{Source: doc.Source, Page: doc.Page, Section: doc.Section})
		size += sep + n
	}

	if len(parts) == 0 {
		return Context{Text: NoDocumentsMarker}
	}
	return Context{Text: strings.Join(parts, "\n\n"), Attributions: attrs}
}

func locationInfo(doc Document) string {
	switch {
	case doc.Page != nil:
		return fmt.Sprintf(" (Page %d)", *doc.Page)
	case doc.Section != "":
		return fmt.Sprintf(" (Section %s)", doc.Section)
	}
	return ""
}

// truncate cuts s to at most n characters.
func truncate(s string, n int) string {
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
