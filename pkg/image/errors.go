package image

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidSegment = errors.New("invalid path segment")
	ErrNotFound       = errors.New("image not found")
)

// IOError reports a file that exists but could not be read in full.
type IOError struct {
	Path string
	Op   string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("could not %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}
