package storage

import (
	"context"
	"io"
)

// ObjectStorage is the subset of object-store operations the photo mirror needs.
type ObjectStorage interface {
	// Upload stores an object under key, replacing any existing one.
	Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error

	// Exists checks if an object exists
	Exists(ctx context.Context, key string) (bool, error)

	// GetURL returns the URL for accessing an object
	GetURL(key string) string
}
