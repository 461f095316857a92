// Package store is the record store adapter every pipeline stage reads and
// writes through. Paths are slash-separated and relative to the store root
// (bucket or directory).
package store

import (
	"context"

	apperrors "github.com/afscgap-dse/flatindex/pkg/errors"
)

// ErrNotFound is returned by Get when the path does not exist. Backends wrap
// apperrors.ErrNotFound so callers may test either.
var ErrNotFound = apperrors.ErrNotFound

// RecordStore reads and writes whole objects.
type RecordStore interface {
	// Get returns the object at path, or an error satisfying
	// errors.Is(err, ErrNotFound).
	Get(ctx context.Context, path string) ([]byte, error)
	// Put replaces the object at path.
	Put(ctx context.Context, path string, data []byte) error
	// List returns every path beginning with prefix, sorted.
	List(ctx context.Context, prefix string) ([]string, error)
}
