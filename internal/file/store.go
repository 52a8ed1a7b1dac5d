// Package file writes downloaded archive products to the local filesystem.
package file

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"go.uber.org/zap"
)

// EnsureDir creates dir and its parents. A directory created concurrently by
// another writer is not an error.
func EnsureDir(dir string) error {
	if dir == "" || dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		if errors.Is(err, fs.ErrExist) {
			if info, statErr := os.Stat(dir); statErr == nil && info.IsDir() {
				return nil
			}
		}
		return fmt.Errorf("creating directory %s: %w", dir, err)
	}
	return nil
}

// WriteAtomic streams r into path through a temporary file in the same
// directory and renames it into place. On any failure the temporary file is
// removed and path is left untouched.
func WriteAtomic(ctx context.Context, path string, r io.Reader) (int64, error) {
	dir := filepath.Dir(path)
	if err := EnsureDir(dir); err != nil {
		return 0, err
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.part")
	if err != nil {
		return 0, fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() {
		tmp.Close()
		os.Remove(tmpName)
	}

	n, err := io.Copy(tmp, ctxReader{ctx: ctx, r: r})
	if err != nil {
		cleanup()
		return n, fmt.Errorf("writing %s: %w", path, err)
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return n, fmt.Errorf("syncing %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return n, fmt.Errorf("closing %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return n, fmt.Errorf("renaming into %s: %w", path, err)
	}
	return n, nil
}

// ctxReader stops a copy once ctx is done.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}

// ErrNoFilename is returned when a name reduces to no usable file name.
var ErrNoFilename = errors.New("download has no usable filename")

// Store saves named files under one directory.
type Store struct {
	dataDir string
	logger  *zap.Logger
}

func NewStore(dataDir string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := EnsureDir(dataDir); err != nil {
		return nil, err
	}
	return &Store{
		dataDir: dataDir,
		logger:  logger.Named("file"),
	}, nil
}

// Path returns where name is stored. Directory components in name are
// dropped so a remote-supplied filename cannot escape the store.
func (s *Store) Path(name string) (string, error) {
	base := filepath.Base(filepath.Clean("/" + name))
	if base == "" || base == "." || base == ".." || base == string(filepath.Separator) {
		return "", fmt.Errorf("%w: %q", ErrNoFilename, name)
	}
	return filepath.Join(s.dataDir, base), nil
}

// Put writes r under name and returns the final path.
func (s *Store) Put(ctx context.Context, name string, r io.Reader) (string, error) {
	path, err := s.Path(name)
	if err != nil {
		return "", err
	}
	n, err := WriteAtomic(ctx, path, r)
	if err != nil {
		return "", err
	}
	s.logger.Debug("file stored on disk",
		zap.String("path", path),
		zap.Int64("size", n),
	)
	return path, nil
}

func (s *Store) Exists(name string) (bool, error) {
	path, err := s.Path(name)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(path)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}
