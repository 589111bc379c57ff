package embedding

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInput         = errors.New("invalid embedding input")
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")
	ErrDimensionMismatch    = errors.New("embedding dimension mismatch")
	ErrUnexpectedResponse   = errors.New("unexpected embedding response")
)

// UnavailableError is returned once every retry attempt has failed.
// It matches ErrEmbeddingUnavailable and the last attempt's error.
type UnavailableError struct {
	Attempts int
	Err      error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("%s after %d attempt(s): %v", ErrEmbeddingUnavailable, e.Attempts, e.Err)
}

func (e *UnavailableError) Unwrap() []error {
	return []error{ErrEmbeddingUnavailable, e.Err}
}

// StatusError is a non-2xx reply from the embedding service.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("embedding service returned %d: %s", e.StatusCode, e.Body)
}
