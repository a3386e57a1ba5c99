package loader

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// PDFLoader yields one Page per PDF page that carries text.
type PDFLoader struct{}

var _ Loader = PDFLoader{}

func (PDFLoader) Load(ctx context.Context, source string, data []byte) (pages []Page, err error) {
	// The parser panics on some malformed inputs.
	defer func() {
		if r := recover(); r != nil {
			pages, err = nil, fmt.Errorf("parse pdf %s: %v", source, r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open pdf %s: %w", source, err)
	}

	total := r.NumPage()
	info := map[string]any{"totalPages": total}
	if title := r.Trailer().Key("Info").Key("Title").Text(); title != "" {
		info["title"] = title
	}

	for i := 1; i <= total; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("page %d of %s: %w", i, source, err)
		}
		if strings.TrimSpace(text) == "" {
			continue
		}

		pages = append(pages, Page{
			Source:     source,
			PageNumber: i,
			Text:       text,
			Extra:      map[string]any{"pdf": info},
		})
	}

	return pages, nil
}
