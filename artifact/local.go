package artifact

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// LocalStore implements Store on the local filesystem. Archived artifacts
// live under archiveDir as flat files named by a random UUID stem; the
// active slot is a separate directory holding at most the most recently
// restored file. All file operations run on the shared worker pool.
type LocalStore struct {
	archiveDir string
	activeDir  string
	pool       *Pool
}

// NewLocalStore creates a LocalStore with the given archive and active-slot
// directories, creating them if they do not exist.
func NewLocalStore(archiveDir, activeDir string, pool *Pool) (*LocalStore, error) {
	absArchive, err := filepath.Abs(archiveDir)
	if err != nil {
		return nil, fmt.Errorf("resolve archive path: %w", err)
	}
	absActive, err := filepath.Abs(activeDir)
	if err != nil {
		return nil, fmt.Errorf("resolve active path: %w", err)
	}
	if err := os.MkdirAll(absArchive, 0o750); err != nil {
		return nil, fmt.Errorf("create archive directory: %w", err)
	}
	if err := os.MkdirAll(absActive, 0o750); err != nil {
		return nil, fmt.Errorf("create active directory: %w", err)
	}
	return &LocalStore{archiveDir: absArchive, activeDir: absActive, pool: pool}, nil
}

// ArchiveDir returns the absolute archive root.
func (s *LocalStore) ArchiveDir() string { return s.archiveDir }

// ActiveDir returns the absolute active-slot directory.
func (s *LocalStore) ActiveDir() string { return s.activeDir }

// resolve converts an archive-relative path to an absolute filesystem path,
// ensuring the result stays within the archive root.
func (s *LocalStore) resolve(path string) (string, error) {
	clean := filepath.Clean(path)
	abs := filepath.Join(s.archiveDir, clean)
	// Prevent path traversal
	if !strings.HasPrefix(abs, s.archiveDir) {
		return "", fmt.Errorf("path %q escapes archive root", path)
	}
	return abs, nil
}

// sanitizeExt keeps a user-supplied extension only when it is a plain
// ".something" suffix with no separators.
func sanitizeExt(ext string) string {
	if ext == "" || !strings.HasPrefix(ext, ".") {
		return ""
	}
	if strings.ContainsAny(ext, `/\`) || strings.Contains(ext, "..") {
		return ""
	}
	return ext
}

// Save writes the full content of r to a new archive file named by a random
// UUID stem, so the name never collides regardless of the user-supplied
// artifact name. The file is opened with O_EXCL so an existing file is never
// overwritten. On failure or caller cancellation the partial file is removed.
func (s *LocalStore) Save(ctx context.Context, r io.Reader, ext string) (string, error) {
	name := uuid.New().String() + sanitizeExt(ext)
	abs := filepath.Join(s.archiveDir, name)

	err := s.pool.Run(ctx, func() error {
		f, err := os.OpenFile(abs, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o640)
		if err != nil {
			return fmt.Errorf("create artifact file: %w", err)
		}
		if _, err := io.Copy(f, &ctxReader{ctx: ctx, r: r}); err != nil {
			f.Close()
			_ = os.Remove(abs)
			return fmt.Errorf("write artifact: %w", err)
		}
		if err := f.Close(); err != nil {
			_ = os.Remove(abs)
			return fmt.Errorf("close artifact file: %w", err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return name, nil
}

// RestoreToActive clears the active slot and copies the archived file into
// it. The prior slot contents are destroyed before the copy begins, so a
// concurrent reader may observe an empty or partially written slot.
func (s *LocalStore) RestoreToActive(ctx context.Context, archivePath string) (string, error) {
	src, err := s.resolve(archivePath)
	if err != nil {
		return "", err
	}

	dst := filepath.Join(s.activeDir, filepath.Base(src))
	err = s.pool.Run(ctx, func() error {
		if _, err := os.Stat(src); err != nil {
			if os.IsNotExist(err) {
				return fmt.Errorf("%w: %s", ErrNotExist, archivePath)
			}
			return fmt.Errorf("stat artifact: %w", err)
		}

		if err := s.clearActive(); err != nil {
			return err
		}

		in, err := os.Open(src)
		if err != nil {
			return fmt.Errorf("open artifact: %w", err)
		}
		defer in.Close()

		out, err := os.Create(dst)
		if err != nil {
			return fmt.Errorf("create active file: %w", err)
		}
		if _, err := io.Copy(out, in); err != nil {
			out.Close()
			return fmt.Errorf("copy artifact: %w", err)
		}
		if err := out.Close(); err != nil {
			return fmt.Errorf("close active file: %w", err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return dst, nil
}

// clearActive removes every regular file in the active slot.
func (s *LocalStore) clearActive() error {
	entries, err := os.ReadDir(s.activeDir)
	if err != nil {
		return fmt.Errorf("read active directory: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if err := os.Remove(filepath.Join(s.activeDir, entry.Name())); err != nil {
			return fmt.Errorf("clear active file %s: %w", entry.Name(), err)
		}
	}
	return nil
}

// Open returns the archived file for reading.
func (s *LocalStore) Open(_ context.Context, archivePath string) (io.ReadCloser, error) {
	abs, err := s.resolve(archivePath)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotExist, archivePath)
		}
		return nil, fmt.Errorf("open artifact: %w", err)
	}
	return f, nil
}

// ctxReader aborts an in-progress copy when the context is cancelled, e.g.
// when the uploading client disconnects mid-save.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
