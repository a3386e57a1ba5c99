package rag

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bull/pdf-rag/internal/storage"
)

func TestRetriever_Retrieve(t *testing.T) {
	store := &fakeStore{count: 3, results: []storage.Result{
		result("a", "a.pdf", 1, 0.1),
		result("b", "b.pdf", 1, 0.2),
		result("c", "c.pdf", 1, 0.3),
	}}
	r := NewRetriever(&fakeEmbedder{}, store, 0, nil)

	got, err := r.Retrieve(context.Background(), "refunds", 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].Text)
	assert.Equal(t, "b", got[1].Text)

	_, err = r.Retrieve(context.Background(), "refunds", 0)
	require.NoError(t, err)
	assert.Equal(t, DefaultK, store.lastK)
}

func TestRetriever_EmptyCollections(t *testing.T) {
	tests := []struct {
		name  string
		store *fakeStore
	}{
		{"missing collection", &fakeStore{countErr: storage.ErrCollectionNotFound}},
		{"empty collection", &fakeStore{count: 0}},
		{"dropped between count and query", &fakeStore{count: 1, queryErr: storage.ErrCollectionNotFound}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := NewRetriever(&fakeEmbedder{}, tc.store, 4, nil)

			got, err := r.Retrieve(context.Background(), "anything", 4)
			require.NoError(t, err)
			assert.NotNil(t, got)
			assert.Empty(t, got)
		})
	}
}

func TestRetriever_EmptyCollectionSkipsEmbedding(t *testing.T) {
	emb := &fakeEmbedder{}
	r := NewRetriever(emb, &fakeStore{countErr: storage.ErrCollectionNotFound}, 4, nil)

	_, err := r.Retrieve(context.Background(), "anything", 4)
	require.NoError(t, err)
	assert.Zero(t, emb.calls)
}

func TestRetriever_ProviderFailures(t *testing.T) {
	tests := []struct {
		name  string
		emb   *fakeEmbedder
		store *fakeStore
	}{
		{"embedding down", &fakeEmbedder{err: errors.New("connection refused")}, &fakeStore{count: 1}},
		{"store count fails", &fakeEmbedder{}, &fakeStore{countErr: storage.ErrStoreUnreachable}},
		{"store query fails", &fakeEmbedder{}, &fakeStore{count: 1, queryErr: errors.New("deadline exceeded")}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := NewRetriever(tc.emb, tc.store, 4, nil)

			_, err := r.Retrieve(context.Background(), "anything", 4)
			assert.ErrorIs(t, err, ErrProviderUnavailable)
		})
	}
}
