// Package fs defines the filesystem capability consumed by the resolver
// pipeline: read file contents, stat a path with and without following
// symlinks, read a symlink target, and canonicalize a path. The resolver
// core never touches the operating system directly; every filesystem access
// goes through this interface so that it can be swapped for an in-memory
// fixture (tests) or a remote object store (fs.S3).
package fs

import (
	"errors"
	"io/fs"
	"time"
)

// ErrNotExist is returned by Metadata/SymlinkMetadata when the path does not
// exist. It is distinct from other I/O errors, mirroring spec.md §6's
// "not-found is a distinct variant, not an error" contract.
var ErrNotExist = fs.ErrNotExist

// IsNotExist reports whether err indicates a missing path.
func IsNotExist(err error) bool {
	return errors.Is(err, ErrNotExist)
}

// Metadata describes a path's kind, independent of the underlying FS.
type Metadata struct {
	IsFile      bool
	IsDir       bool
	IsSymlink   bool
	Size        int64
	ModTime     time.Time
}

// FS is the filesystem capability required by the resolver. Implementations
// must be safe for concurrent use and cheap to copy by reference.
type FS interface {
	// ReadFile reads the full contents of path.
	ReadFile(path string) ([]byte, error)
	// Metadata stats path, following symlinks.
	Metadata(path string) (Metadata, error)
	// SymlinkMetadata stats path without following a trailing symlink.
	SymlinkMetadata(path string) (Metadata, error)
	// ReadLink returns the target of the symlink at path.
	ReadLink(path string) (string, error)
	// Canonicalize resolves every symlink segment in path, returning a path
	// that contains none. Used as a fallback when a piecewise walk fails.
	Canonicalize(path string) (string, error)
}
