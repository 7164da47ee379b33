//go:build !linux && !darwin

package store

import (
	"errors"
	"fmt"
)

var errUnsupported = errors.New("memory-mapped destinations are not supported on this platform")

// Open always fails on platforms without mmap support.
func Open(path string, length int64, opts Options) (*File, error) {
	return nil, fmt.Errorf("%w: %w", ErrMap, errUnsupported)
}

// Sync is unreachable on this platform.
func (f *File) Sync() error {
	return errUnsupported
}

// Close is unreachable on this platform.
func (f *File) Close() error {
	return nil
}
