// Package embedding turns text into fixed-dimension vectors.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/openai/openai-go"
	"golang.org/x/time/rate"
)

// DefaultBatchSize keeps request bodies small enough for local providers.
const DefaultBatchSize = 64

// ErrProviderUnavailable marks failures of a backing provider: the embedding
// API, the vector store or the language model. Callers wrap it; the gateway
// itself returns provider errors as they are.
var ErrProviderUnavailable = errors.New("provider unavailable")

// Gateway is the contract both pipelines use to embed text.
// Connectivity failures are returned to the caller unretried.
type Gateway interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

var _ Gateway = (*Embedder)(nil)

// Embedder generates embeddings through an OpenAI-compatible API.
// It batches requests, paces them with an optional rate limit and retries
// with exponential backoff on rate limit responses only.
type Embedder struct {
	client    *Client
	batchSize int
	limiter   *rate.Limiter
}

// NewEmbedder creates an Embedder using the client's batch size and request
// rate. A non-positive batch size selects DefaultBatchSize; a non-positive
// rate disables pacing.
func NewEmbedder(client *Client) *Embedder {
	batchSize := client.batchSize
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	limit := rate.Inf
	if client.rps > 0 {
		limit = rate.Limit(client.rps)
	}
	return &Embedder{
		client:    client,
		batchSize: batchSize,
		limiter:   rate.NewLimiter(limit, 1),
	}
}

// Embed embeds a single text.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch embeds texts, preserving input order.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	all := make([][]float32, 0, len(texts))

	for i := 0; i < len(texts); i += e.batchSize {
		end := min(i+e.batchSize, len(texts))

		if err := e.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("batch %d-%d: %w", i, end, err)
		}

		vectors, err := e.embedBatchWithRetry(ctx, texts[i:end])
		if err != nil {
			return nil, fmt.Errorf("batch %d-%d: %w", i, end, err)
		}
		all = append(all, vectors...)
	}

	return all, nil
}

// embedBatchWithRetry embeds one batch. HTTP 429 responses are retried with
// exponential backoff; every other error is permanent.
func (e *Embedder) embedBatchWithRetry(ctx context.Context, texts []string) ([][]float32, error) {
	var vectors [][]float32

	operation := func() error {
		resp, err := e.client.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
			Input: openai.EmbeddingNewParamsInputUnion{
				OfArrayOfStrings: texts,
			},
			Model: openai.EmbeddingModel(e.client.model),
		})
		if err != nil {
			if isRateLimitError(err) {
				return err
			}
			return backoff.Permanent(err)
		}

		if len(resp.Data) != len(texts) {
			return backoff.Permanent(fmt.Errorf("provider returned %d embeddings for %d inputs",
				len(resp.Data), len(texts)))
		}

		vectors = make([][]float32, len(texts))
		for i, data := range resp.Data {
			idx := int(data.Index)
			if idx < 0 || idx >= len(texts) || vectors[idx] != nil {
				idx = i
			}
			vectors[idx] = toFloat32(data.Embedding)
		}
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 10 * time.Second
	b.MaxElapsedTime = 30 * time.Second

	err := backoff.Retry(operation, backoff.WithContext(b, ctx))
	return vectors, err
}

// isRateLimitError checks if the error is a rate limit error (HTTP 429).
func isRateLimitError(err error) bool {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 429
	}
	return false
}

// toFloat32 converts []float64 to []float32.
func toFloat32(f64 []float64) []float32 {
	f32 := make([]float32, len(f64))
	for i, v := range f64 {
		f32[i] = float32(v)
	}
	return f32
}
