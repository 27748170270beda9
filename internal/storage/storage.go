// Package storage is the blob collaborator: it stores and retrieves
// document bytes under opaque object keys. The catalog only ever sees the
// key, never the bytes.
package storage

import (
	"context"
	"errors"
	"io"
)

// ErrUnavailable wraps any backend I/O failure so callers can fail the
// request without leaking backend detail.
var ErrUnavailable = errors.New("storage unavailable")

// ErrNotFound is returned when an object key does not resolve.
var ErrNotFound = errors.New("object not found")

type BlobStore interface {
	// Store writes the full content under key. size may be -1 when unknown;
	// the backend then streams until EOF.
	Store(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	// Retrieve opens the object for reading. The caller closes the stream.
	Retrieve(ctx context.Context, key string) (io.ReadCloser, error)
	Remove(ctx context.Context, key string) error
}
