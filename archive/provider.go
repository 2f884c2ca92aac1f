package archive

import (
	"context"
	"io"
)

// Archiver ships a finished log artifact to durable storage.
type Archiver interface {
	// Upload stores the artifact under the given name. open is called per
	// attempt so retries start from the beginning of the content.
	Upload(ctx context.Context, name string, open func() (io.ReadCloser, error)) error
	// Exists reports whether an artifact with this name is already stored.
	Exists(ctx context.Context, name string) (bool, error)
	Close() error
}
