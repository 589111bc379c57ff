package storage

import (
	"errors"
	"fmt"
	"strings"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var (
	ErrStoreUnavailable   = errors.New("vector store unavailable")
	ErrCollectionNotFound = errors.New("collection not found")
	ErrInvalidInput       = errors.New("invalid vector store request")
)

// Error describes a failed vector store call. It matches ErrStoreUnavailable,
// ErrCollectionNotFound when the store reported a missing collection, and
// the underlying client error.
type Error struct {
	Op         string
	Collection string
	Err        error
}

func (e *Error) Error() string {
	if e.Collection == "" {
		return fmt.Sprintf("qdrant %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("qdrant %s %s: %v", e.Op, e.Collection, e.Err)
}

func (e *Error) Unwrap() []error {
	if status.Code(e.Err) == codes.NotFound {
		return []error{ErrStoreUnavailable, ErrCollectionNotFound, e.Err}
	}
	return []error{ErrStoreUnavailable, e.Err}
}

func storeError(op, collection string, err error) error {
	return &Error{Op: op, Collection: collection, Err: err}
}

// isAlreadyExists reports whether err is the store refusing to create
// something another instance created first.
func isAlreadyExists(err error) bool {
	if err == nil {
		return false
	}
	if status.Code(err) == codes.AlreadyExists {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "already exists")
}
