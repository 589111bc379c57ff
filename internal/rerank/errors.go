package rerank

import "errors"

var (
	// ErrRerankUnavailable marks provider, transport or credential failures.
	// Callers fall back to similarity order.
	ErrRerankUnavailable = errors.New("rerank unavailable")

	// ErrInvalidInput is returned when no usable candidate was given.
	ErrInvalidInput = errors.New("invalid rerank input")
)
