// Package storage abstracts where downloaded products land: the local
// filesystem, an S3 bucket, or a Supabase bucket.
package storage

import (
	"context"
	"io"
)

// Sink writes downloaded files to a destination path. Implementations
// must treat dest as a slash-separated relative path.
type Sink interface {
	// Exists reports whether dest already holds a file.
	Exists(ctx context.Context, dest string) (bool, error)
	// Write streams r into dest, replacing any existing file. size is
	// the expected byte count, or -1 when unknown.
	Write(ctx context.Context, dest string, r io.Reader, size int64) error
}
