// Package source implements the read-only, cloneable handle to a
// service's script bundle. The core only consumes this interface;
// DirSource and MapSource are the two concrete implementations wired
// up here (a disk-backed bundle watched with fsnotify, and an
// in-memory bundle for tests and the admin API's inline-upload path).
package source

import (
	"context"
	"io"
)

// File is what Get returns: a readable, seekable, closeable file.
type File interface {
	io.ReadSeekCloser
}

// Source maps a relative path within a service's bundle to an
// asynchronously readable file. Implementations must be safe to
// Clone and used from multiple goroutines concurrently.
type Source interface {
	// Clone returns a cheap, independent handle to the same bundle.
	Clone() Source
	// Get opens the named file for reading. ctx allows the caller to
	// cancel a slow open (e.g. a remote-backed Source).
	Get(ctx context.Context, path string) (File, error)
}
