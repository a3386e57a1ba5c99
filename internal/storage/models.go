package storage

import (
	"context"

	"github.com/bull/pdf-rag/internal/metadata"
)

// DefaultCollection is the single well-known collection holding the corpus.
const DefaultCollection = "my_documents"

// Record is the persisted unit: one chunk with its embedding.
// Vectors are never mutated in place; changed text means a new record.
type Record struct {
	ID       string
	Vector   []float32
	Text     string
	Metadata metadata.Flat
}

// Result is a similarity query hit. Distance is the cosine distance
// (0 = identical direction); results are ordered by ascending distance.
type Result struct {
	ID       string
	Text     string
	Metadata metadata.Flat
	Distance float64
}

// VectorStore is the collection-oriented store both pipelines talk to.
// Each instance is bound to one collection at construction.
type VectorStore interface {
	// Health reports whether the store is reachable.
	Health(ctx context.Context) error
	// CollectionExists reports whether the bound collection exists.
	CollectionExists(ctx context.Context) (bool, error)
	// EnsureCollection creates the collection with cosine distance if absent.
	// An existing collection with a different dimension is ErrDimensionMismatch.
	EnsureCollection(ctx context.Context, dimension int) error
	// Count returns the number of records, or ErrCollectionNotFound.
	Count(ctx context.Context) (uint64, error)
	// Upsert writes records keyed by ID.
	Upsert(ctx context.Context, records []Record) error
	// Query returns up to k nearest records by ascending distance,
	// or ErrCollectionNotFound.
	Query(ctx context.Context, vector []float32, k int) ([]Result, error)
	// Close releases the connection.
	Close() error
}
