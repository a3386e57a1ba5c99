package mcp

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bull/pdf-rag/internal/rag"
)

type fakeQuerier struct {
	retrieval *rag.Retrieval
	answer    *rag.Answer
	err       error
	lastK     int
}

func (q *fakeQuerier) Retrieve(_ context.Context, _ string, k int) (*rag.Retrieval, error) {
	q.lastK = k
	return q.retrieval, q.err
}

func (q *fakeQuerier) Answer(_ context.Context, _ string, k int) (*rag.Answer, error) {
	q.lastK = k
	return q.answer, q.err
}

func TestSearchHandler(t *testing.T) {
	docs := []rag.Document{{Content: "Refunds take 30 days.", Source: "manual.pdf", Score: "0.9000"}}
	q := &fakeQuerier{retrieval: &rag.Retrieval{Query: "refunds", Results: docs}}

	_, out, err := makeSearchHandler(q)(context.Background(), nil, SearchDocsInput{Query: "refunds", K: 2})
	require.NoError(t, err)

	assert.Equal(t, 2, q.lastK)
	assert.Equal(t, docs, out.Results)
	assert.Empty(t, out.Message)
}

func TestSearchHandler_NoResults(t *testing.T) {
	q := &fakeQuerier{retrieval: &rag.Retrieval{Query: "refunds", Results: []rag.Document{}}}

	_, out, err := makeSearchHandler(q)(context.Background(), nil, SearchDocsInput{Query: "refunds"})
	require.NoError(t, err)

	assert.NotNil(t, out.Results)
	assert.Empty(t, out.Results)
	assert.Equal(t, noResultsMessage, out.Message)
}

func TestSearchHandler_Error(t *testing.T) {
	q := &fakeQuerier{err: rag.ErrProviderUnavailable}

	_, _, err := makeSearchHandler(q)(context.Background(), nil, SearchDocsInput{Query: "refunds"})
	assert.ErrorIs(t, err, rag.ErrProviderUnavailable)
}

func TestAskHandler(t *testing.T) {
	tests := []struct {
		name   string
		answer *rag.Answer
		want   AskDocsOutput
	}{
		{
			name: "grounded answer",
			answer: &rag.Answer{
				Answer:  "Thirty days.",
				Results: []rag.Document{{Source: "manual.pdf", Score: "0.9000"}},
			},
			want: AskDocsOutput{
				Answer:  "Thirty days.",
				Results: []rag.Document{{Source: "manual.pdf", Score: "0.9000"}},
			},
		},
		{
			name:   "fallback keeps an empty result list",
			answer: &rag.Answer{Answer: rag.FallbackAnswer},
			want:   AskDocsOutput{Answer: rag.FallbackAnswer, Results: []rag.Document{}},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			q := &fakeQuerier{answer: tc.answer}

			_, out, err := makeAskHandler(q)(context.Background(), nil, AskDocsInput{Query: "refunds?"})
			require.NoError(t, err)
			assert.Equal(t, tc.want, out)
		})
	}
}

func TestAskHandler_Error(t *testing.T) {
	q := &fakeQuerier{err: errors.New("model down")}

	_, _, err := makeAskHandler(q)(context.Background(), nil, AskDocsInput{Query: "refunds?"})
	assert.ErrorContains(t, err, "answer failed")
}

func TestNewServer(t *testing.T) {
	s := NewServer(&Config{Querier: &fakeQuerier{}})
	assert.NotNil(t, s.MCPServer())
	assert.NotNil(t, NewHTTPHandler(s, true, nil))
}
