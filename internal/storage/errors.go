package storage

import "errors"

var (
	ErrStoreUnreachable   = errors.New("vector store unreachable")
	ErrCollectionNotFound = errors.New("collection not found")
	ErrDimensionMismatch  = errors.New("embedding dimension mismatch")
)
