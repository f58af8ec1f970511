package image

import (
	"fmt"
	"path/filepath"
)

// Key identifies an image both in the cache and under the served directory.
type Key struct {
	directory string
	filename  string
}

// NewKey validates both segments before building the key. The returned error
// wraps ErrInvalidSegment.
func NewKey(directory, filename string) (Key, error) {
	if err := ValidateSegment(directory); err != nil {
		return Key{}, fmt.Errorf("%w: directory %q: %v", ErrInvalidSegment, directory, err)
	}

	if err := ValidateSegment(filename); err != nil {
		return Key{}, fmt.Errorf("%w: filename %q: %v", ErrInvalidSegment, filename, err)
	}

	return Key{directory: directory, filename: filename}, nil
}

func (k Key) Directory() string {
	return k.directory
}

func (k Key) Filename() string {
	return k.filename
}

// CacheKey always uses '/' regardless of the OS.
func (k Key) CacheKey() string {
	return k.directory + "/" + k.filename
}

func (k Key) FsPath() string {
	return filepath.Join(k.directory, k.filename)
}

func (k Key) String() string {
	return k.CacheKey()
}
