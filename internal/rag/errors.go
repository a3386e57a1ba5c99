package rag

import (
	"errors"

	"github.com/bull/pdf-rag/internal/embedding"
)

var (
	// ErrInvalidInput marks client-caused failures: an empty query or a
	// malformed message sequence.
	ErrInvalidInput = errors.New("invalid input")
	// ErrProviderUnavailable marks embedding, vector store or language
	// model failures.
	ErrProviderUnavailable = embedding.ErrProviderUnavailable
)

// InputError carries a client-facing message and matches ErrInvalidInput.
type InputError struct {
	Msg string
}

func (e *InputError) Error() string { return e.Msg }

func (e *InputError) Is(target error) bool { return target == ErrInvalidInput }

func invalidInput(msg string) error {
	return &InputError{Msg: msg}
}
