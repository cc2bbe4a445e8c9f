package blob

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a key has no stored object.
var ErrNotFound = errors.New("blob: object not found")

// ObjectInfo describes one stored object for listing operations.
type ObjectInfo struct {
	Key  string
	Size int64
}

// Store persists opaque byte blobs under string keys. Implementations must
// treat keys as flat strings; the "/" separators in repository-layout keys
// carry no meaning beyond what a backend chooses to map them to.
type Store interface {
	// Put stores data under key, overwriting any existing object.
	Put(ctx context.Context, key string, data []byte, contentType string) error

	// Get returns the object stored under key, or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Delete removes the object under key. Deleting a missing key is not
	// an error.
	Delete(ctx context.Context, key string) error

	// List returns all objects whose key starts with prefix.
	List(ctx context.Context, prefix string) ([]ObjectInfo, error)
}
