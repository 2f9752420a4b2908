package artifact

import (
	"context"
	"errors"
	"io"
)

// ErrNotExist indicates that the archive holds no file at the given path.
var ErrNotExist = errors.New("artifact does not exist")

// Store defines durable storage for artifact files. The archive is
// append-only: Save never overwrites an existing file. Paths returned by
// Save and accepted by the other methods are relative to the archive root.
type Store interface {
	// Save consumes the reader and writes its content to a newly generated,
	// collision-free name inside the archive. The ext parameter carries the
	// original file extension (including the dot) and is appended to the
	// generated name. Returns the archive-relative path.
	Save(ctx context.Context, r io.Reader, ext string) (string, error)

	// RestoreToActive clears every file in the active slot, then copies the
	// archived file at archivePath into the slot under its base name.
	// Returns the filesystem path of the restored file. The clear-then-copy
	// sequence is not atomic with respect to concurrent readers of the slot.
	RestoreToActive(ctx context.Context, archivePath string) (string, error)

	// Open returns the archived file content for reading. The caller is
	// responsible for closing the returned ReadCloser.
	Open(ctx context.Context, archivePath string) (io.ReadCloser, error)
}
