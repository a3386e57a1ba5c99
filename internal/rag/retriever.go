// Package rag implements the query pipeline: retrieval, context assembly
// and answer generation.
package rag

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/bull/pdf-rag/internal/embedding"
	"github.com/bull/pdf-rag/internal/storage"
)

// DefaultK is the number of chunks retrieved when the caller does not say.
const DefaultK = 4

// Retriever finds the chunks nearest to a query.
type Retriever struct {
	embedder embedding.Gateway
	store    storage.VectorStore
	defaultK int
	logger   *slog.Logger
}

// NewRetriever creates a Retriever. A non-positive defaultK selects DefaultK.
func NewRetriever(embedder embedding.Gateway, store storage.VectorStore, defaultK int, logger *slog.Logger) *Retriever {
	if defaultK <= 0 {
		defaultK = DefaultK
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Retriever{embedder: embedder, store: store, defaultK: defaultK, logger: logger}
}

// Retrieve returns up to k results ordered by ascending distance. An empty or
// missing collection yields no results and no error.
func (r *Retriever) Retrieve(ctx context.Context, query string, k int) ([]storage.Result, error) {
	if k <= 0 {
		k = r.defaultK
	}

	n, err := r.store.Count(ctx)
	switch {
	case errors.Is(err, storage.ErrCollectionNotFound):
		r.logger.Debug("Collection not found, returning no results")
		return []storage.Result{}, nil
	case err != nil:
		return nil, fmt.Errorf("%w: count records: %w", ErrProviderUnavailable, err)
	case n == 0:
		r.logger.Debug("Collection empty, returning no results")
		return []storage.Result{}, nil
	}

	vector, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: embed query: %w", ErrProviderUnavailable, err)
	}

	results, err := r.store.Query(ctx, vector, k)
	if errors.Is(err, storage.ErrCollectionNotFound) {
		return []storage.Result{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: query store: %w", ErrProviderUnavailable, err)
	}
	if len(results) > k {
		results = results[:k]
	}

	r.logger.Debug("Retrieved documents", "k", k, "results", len(results))
	return results, nil
}
