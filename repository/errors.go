package repository

import (
	"errors"
	"fmt"

	goerrors "github.com/goliatone/go-errors"
)

// Text codes attached to categorized repository errors.
const (
	TextCodeUnsupportedQuery = "UNSUPPORTED_QUERY"
	TextCodeStorageFailure   = "STORAGE_FAILURE"
)

var (
	// ErrUnsupportedQuery is matched by every error a backend returns for a
	// query variant it cannot interpret. It is never retried.
	ErrUnsupportedQuery = errors.New("unsupported query")

	// ErrStorageFailure is matched by every error wrapping a backend I/O
	// failure. The original cause stays reachable through errors.Is/As.
	ErrStorageFailure = errors.New("storage failure")
)

// UnsupportedQuery reports that backend cannot interpret q.
func UnsupportedQuery(backend string, q Query) error {
	return goerrors.Wrap(
		ErrUnsupportedQuery,
		goerrors.CategoryBadInput,
		fmt.Sprintf("%s does not support query %s", backend, DescribeQuery(q)),
	).WithTextCode(TextCodeUnsupportedQuery)
}

// StorageError describes a failed backend operation.
type StorageError struct {
	Backend string
	Op      string
	Err     error
}

// Error implements the error interface.
func (e *StorageError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Backend, e.Op, e.Err)
}

// Unwrap exposes the backend cause.
func (e *StorageError) Unwrap() error {
	return e.Err
}

// Is makes every StorageError match ErrStorageFailure.
func (e *StorageError) Is(target error) bool {
	return target == ErrStorageFailure
}

// StorageFailure wraps cause as a categorized storage failure. It returns nil
// when cause is nil so adapters can wrap unconditionally.
func StorageFailure(backend, op string, cause error) error {
	if cause == nil {
		return nil
	}
	return goerrors.Wrap(
		&StorageError{Backend: backend, Op: op, Err: cause},
		goerrors.CategoryExternal,
		fmt.Sprintf("%s: %s failed", backend, op),
	).WithTextCode(TextCodeStorageFailure)
}

// IsUnsupportedQuery reports whether err stems from an unsupported query.
func IsUnsupportedQuery(err error) bool {
	return errors.Is(err, ErrUnsupportedQuery)
}

// IsStorageFailure reports whether err stems from a backend I/O failure.
func IsStorageFailure(err error) bool {
	return errors.Is(err, ErrStorageFailure)
}
