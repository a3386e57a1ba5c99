package loader

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"
	"go.abhg.dev/goldmark/toc"
)

// Section is a markdown span between two H1/H2 boundaries.
type Section struct {
	HeaderPath string // "# Doc Title > ## Section Name"
	Content    string
}

// MarkdownLoader splits markdown documents at H1 and H2 boundaries.
// Each section becomes one Page with no page number.
type MarkdownLoader struct {
	parser goldmark.Markdown
}

var _ Loader = (*MarkdownLoader)(nil)

// NewMarkdownLoader creates a loader configured with the goldmark parser.
func NewMarkdownLoader() *MarkdownLoader {
	md := goldmark.New(
		goldmark.WithParserOptions(
			parser.WithAutoHeadingID(),
		),
	)
	return &MarkdownLoader{parser: md}
}

func (l *MarkdownLoader) Load(_ context.Context, source string, data []byte) ([]Page, error) {
	sections, err := l.Sections(data)
	if err != nil {
		return nil, fmt.Errorf("markdown %s: %w", source, err)
	}

	pages := make([]Page, 0, len(sections))
	for _, s := range sections {
		pages = append(pages, Page{
			Source:  source,
			Section: s.HeaderPath,
			Text:    s.Content,
		})
	}
	return pages, nil
}

type heading struct {
	node ast.Node
	path string
}

// Sections splits source at H1 and H2 headings in document order. Text before
// the first heading is its own section with an empty header path; empty
// sections are dropped.
func (l *MarkdownLoader) Sections(source []byte) ([]Section, error) {
	doc := l.parser.Parser().Parse(text.NewReader(source))

	tree, err := toc.Inspect(doc, source,
		toc.MinDepth(1),
		toc.MaxDepth(2),
		toc.Compact(true),
	)
	if err != nil {
		return nil, fmt.Errorf("inspect TOC: %w", err)
	}

	var headings []heading
	collectHeadings(doc, tree.Items, nil, &headings)

	var sections []Section
	add := func(path string, content []byte) {
		if c := strings.TrimSpace(string(content)); c != "" {
			sections = append(sections, Section{HeaderPath: path, Content: c})
		}
	}

	if len(headings) == 0 {
		add("", source)
		return sections, nil
	}

	starts := make([]int, len(headings))
	for i, h := range headings {
		starts[i] = lineStart(source, h.node.Lines().At(0).Start)
	}

	add("", source[:starts[0]])
	for i, h := range headings {
		end := len(source)
		if i+1 < len(headings) {
			end = starts[i+1]
		}
		add(h.path, source[starts[i]:end])
	}

	return sections, nil
}

// collectHeadings walks TOC items depth-first, which is document order.
func collectHeadings(doc ast.Node, items toc.Items, ancestors []string, out *[]heading) {
	for _, item := range items {
		path := ancestors
		if len(item.Title) > 0 {
			path = append(ancestors[:len(ancestors):len(ancestors)], string(item.Title))
			if node := findHeaderByID(doc, string(item.ID)); node != nil && node.Lines().Len() > 0 {
				*out = append(*out, heading{node: node, path: formatHeaderPath(path)})
			}
		}
		if len(item.Items) > 0 {
			collectHeadings(doc, item.Items, path, out)
		}
	}
}

// formatHeaderPath builds a header hierarchy string.
// Example: ["Installation", "Prerequisites"] -> "# Installation > ## Prerequisites"
func formatHeaderPath(path []string) string {
	parts := make([]string, len(path))
	for i, segment := range path {
		parts[i] = strings.Repeat("#", i+1) + " " + segment
	}
	return strings.Join(parts, " > ")
}

// findHeaderByID locates a heading node by its auto-generated ID.
func findHeaderByID(node ast.Node, id string) ast.Node {
	var found ast.Node
	ast.Walk(node, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if entering && n.Kind() == ast.KindHeading {
			headingID, ok := n.AttributeString("id")
			if ok {
				if b, isBytes := headingID.([]byte); isBytes && string(b) == id {
					found = n
					return ast.WalkStop, nil
				}
			}
		}
		return ast.WalkContinue, nil
	})
	return found
}

// lineStart returns the offset of the line containing pos, so the section
// keeps its "#" marker.
func lineStart(source []byte, pos int) int {
	return bytes.LastIndexByte(source[:pos], '\n') + 1
}
