// Package media serves audio assets referenced by track metadata. Two
// backends are provided: a local directory and a MinIO bucket; the entrypoint
// picks one from configuration.
package media

import (
	"context"
	"errors"
	"io"
)

// ErrNotFound is returned when no asset exists under the requested filename.
var ErrNotFound = errors.New("media: file not found")

// Object is a readable, seekable asset handle. Seeking is required so the
// HTTP layer can sniff the content type and still serve range requests.
type Object interface {
	io.ReadSeekCloser
}

// Store opens assets by filename.
type Store interface {
	Open(ctx context.Context, filename string) (Object, error)
}
