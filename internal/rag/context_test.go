package rag

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bull/pdf-rag/internal/metadata"
	"github.com/bull/pdf-rag/internal/storage"
)

func TestDocuments(t *testing.T) {
	section := storage.Result{
		Text: "Return within 30 days.",
		Metadata: metadata.Normalize(map[string]any{
			metadata.KeySource:  "guide.md",
			metadata.KeySection: "# Guide > ## Returns",
		}),
		Distance: 0.5,
	}
	docs := Documents([]storage.Result{
		result("Refunds take 30 days.", "manual.pdf", 3, 0.1234),
		section,
		{Text: "orphan", Distance: 1},
	})
	require.Len(t, docs, 3)

	assert.Equal(t, "manual.pdf", docs[0].Source)
	require.NotNil(t, docs[0].Page)
	assert.Equal(t, int64(3), *docs[0].Page)
	assert.Equal(t, "0.8766", docs[0].Score)

	assert.Nil(t, docs[1].Page)
	assert.Equal(t, "# Guide > ## Returns", docs[1].Section)
	assert.Equal(t, "0.5000", docs[1].Score)

	assert.Equal(t, "unknown", docs[2].Source)
	assert.Equal(t, "0.0000", docs[2].Score)
}

func TestFormatScore(t *testing.T) {
	tests := []struct {
		distance float64
		want     string
	}{
		{0, "1.0000"},
		{0.25, "0.7500"},
		{1, "0.0000"},
		{1.5, "-0.5000"},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, FormatScore(tc.distance))
	}
}

func TestAssembler_Assemble(t *testing.T) {
	page := int64(2)
	docs := []Document{
		{Content: "Refunds take 30 days.", Source: "manual.pdf", Page: &page},
		{Content: "Return within 30 days.", Source: "guide.md", Section: "# Guide > ## Returns"},
		{Content: "Plain text.", Source: "notes.pdf"},
	}

	c := NewAssembler(0).Assemble(docs)

	want := "Document 1 from manual.pdf (Page 2):\nRefunds take 30 days.\n\n" +
		"Document 2 from guide.md (Section # Guide > ## Returns):\nReturn within 30 days.\n\n" +
		"Document 3 from notes.pdf:\nPlain text."
	assert.Equal(t, want, c.Text)
	require.Len(t, c.Attributions, 3)
	assert.Equal(t, "manual.pdf", c.Attributions[0].Source)
	assert.Equal(t, &page, c.Attributions[0].Page)
	assert.False(t, c.Empty())
}

func TestAssembler_Empty(t *testing.T) {
	c := NewAssembler(0).Assemble(nil)
	assert.Equal(t, NoDocumentsMarker, c.Text)
	assert.True(t, c.Empty())
}

func TestAssembler_Budget(t *testing.T) {
	docs := []Document{
		{Content: strings.Repeat("a", 30), Source: "a.pdf"},
		{Content: strings.Repeat("b", 30), Source: "b.pdf"},
	}

	t.Run("drops documents past the budget", func(t *testing.T) {
		// 16 tokens is 64 characters; each block is 53.
		c := NewAssembler(16).Assemble(docs)
		require.Len(t, c.Attributions, 1)
		assert.Equal(t, "a.pdf", c.Attributions[0].Source)
		assert.NotContains(t, c.Text, "b.pdf")
	})

	t.Run("truncates an oversized first document", func(t *testing.T) {
		c := NewAssembler(5).Assemble(docs)
		require.Len(t, c.Attributions, 1)
		assert.Len(t, c.Text, 20)
		assert.True(t, strings.HasPrefix(c.Text, "Document 1 from a.pd"))
	})
}

func TestAssembler_BudgetCountsCharacters(t *testing.T) {
	// 53 characters but 83 bytes; fits a 64 character budget.
	docs := []Document{
		{Content: strings.Repeat("é", 30), Source: "a.pdf"},
		{Content: "second", Source: "b.pdf"},
	}

	c := NewAssembler(16).Assemble(docs)

	require.Len(t, c.Attributions, 1)
	assert.Equal(t, "Document 1 from a.pdf:\n"+strings.Repeat("é", 30), c.Text)
}

func TestTruncateKeepsRunes(t *testing.T) {
	assert.Equal(t, "ab", truncate("abé", 2))
	assert.Equal(t, "abé", truncate("abé", 3))
	assert.Equal(t, "abé", truncate("abé", 10))
	assert.Equal(t, "hé", truncate("héllo", 2))
}
