package storage

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a key has no stored object.
var ErrNotFound = errors.New("object not found")

// ObjectStore hides where photo bytes live. The API server treats keys as
// opaque strings; the backing store may be a local directory or an S3 bucket.
type ObjectStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}
