package image

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"syscall"
)

// FsLoader reads images from the directory it names.
type FsLoader string

func (l FsLoader) Path(key Key) string {
	return filepath.Join(string(l), key.FsPath())
}

// Load returns the whole contents of the file behind key. A missing file yields
// ErrNotFound; any other failure, including ctx expiring before the read
// completes, yields an *IOError.
func (l FsLoader) Load(ctx context.Context, key Key) ([]byte, error) {
	path := l.Path(key)

	if err := ctx.Err(); err != nil {
		return nil, &IOError{Path: path, Op: "read", Err: err}
	}

	type result struct {
		data []byte
		err  error
	}

	// Buffered so that the reader never blocks once ctx is gone.
	ch := make(chan result, 1)

	go func() {
		data, err := readFile(path)
		ch <- result{data: data, err: err}
	}()

	select {
	case res := <-ch:
		return res.data, res.err
	case <-ctx.Done():
		return nil, &IOError{Path: path, Op: "read", Err: ctx.Err()}
	}
}

func readFile(path string) ([]byte, error) {
	fd, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) || errors.Is(err, syscall.ENOTDIR) {
			return nil, fmt.Errorf("%w: %w", ErrNotFound, err)
		}

		return nil, &IOError{Path: path, Op: "open", Err: err}
	}
	defer fd.Close()

	fi, err := fd.Stat()
	if err != nil {
		return nil, &IOError{Path: path, Op: "stat", Err: err}
	}

	if fi.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", ErrNotFound, path)
	}

	buf := make([]byte, fi.Size())

	if _, err := io.ReadFull(fd, buf); err != nil {
		return nil, &IOError{Path: path, Op: "read", Err: err}
	}

	return buf, nil
}
