package loader

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bull/pdf-rag/internal/metadata"
)

func TestPage_Metadata(t *testing.T) {
	tests := []struct {
		name string
		page Page
		want map[string]any
	}{
		{
			name: "pdf page",
			page: Page{Source: "manual.pdf", PageNumber: 1, Extra: map[string]any{"pdf": map[string]any{"totalPages": 3}}},
			want: map[string]any{
				"source": "manual.pdf",
				"loc":    map[string]any{"pageNumber": 1},
				"pdf":    map[string]any{"totalPages": 3},
			},
		},
		{
			name: "markdown section",
			page: Page{Source: "guide.md", Section: "# Intro"},
			want: map[string]any{"source": "guide.md", "section": "# Intro"},
		},
		{
			name: "extra never overrides source",
			page: Page{Source: "a.md", Extra: map[string]any{"source": "other"}},
			want: map[string]any{"source": "a.md"},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.page.Metadata())
		})
	}
}

func TestPage_MetadataNormalizes(t *testing.T) {
	page := Page{Source: "manual.pdf", PageNumber: 1, Extra: map[string]any{"pdf": map[string]any{"totalPages": 3}}}

	flat := metadata.Normalize(page.Metadata())

	assert.Equal(t, metadata.Flat{
		"source":         "manual.pdf",
		"loc_pageNumber": int64(1),
		"pdf_totalPages": int64(3),
	}, flat)
}

type stubLoader struct{ calls []string }

func (s *stubLoader) Load(_ context.Context, source string, _ []byte) ([]Page, error) {
	s.calls = append(s.calls, source)
	return []Page{{Source: source, Text: "x"}}, nil
}

func TestRegistry_Load(t *testing.T) {
	stub := &stubLoader{}
	r := Registry{".txt": stub}

	pages, err := r.Load(context.Background(), "dir/Notes.TXT", nil)
	require.NoError(t, err)
	require.Len(t, pages, 1)
	assert.Equal(t, []string{"dir/Notes.TXT"}, stub.calls)

	_, err = r.Load(context.Background(), "image.png", nil)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestDefaultRegistry_Extensions(t *testing.T) {
	assert.Equal(t, []string{".markdown", ".md", ".pdf"}, DefaultRegistry().Extensions())
}

func TestMatchesExtension(t *testing.T) {
	assert.True(t, MatchesExtension("a/b/Manual.PDF", []string{".pdf"}))
	assert.False(t, MatchesExtension("manual.pdf.bak", []string{".pdf"}))
	assert.False(t, MatchesExtension("README", []string{".md"}))
}
