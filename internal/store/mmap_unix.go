//go:build linux || darwin

package store

import (
	"errors"
	"fmt"
	"math"
	"os"

	"github.com/detailyang/go-fallocate"
	"golang.org/x/sys/unix"
)

// Open creates the file at path, sizes it to length bytes and maps it.
// In resume mode an existing file is kept as is, except that it is grown or
// shrunk to length. Bytes already present are never overwritten.
func Open(path string, length int64, opts Options) (*File, error) {
	if length <= 0 {
		return nil, fmt.Errorf("%w: invalid length %d", ErrCreate, length)
	}
	if length > math.MaxInt {
		return nil, fmt.Errorf("%w: length %d exceeds address space", ErrMap, length)
	}

	flags := os.O_RDWR | os.O_CREATE
	if !opts.Resume {
		flags |= os.O_TRUNC
	}

	f, err := os.OpenFile(path, flags, 0644)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCreate, err)
	}

	if err := resize(f, length, opts.Preallocate); err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: %w", ErrCreate, err)
	}

	data, err := unix.Mmap(int(f.Fd()), 0, int(length), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: %w", ErrMap, err)
	}

	return &File{
		path: path,
		file: f,
		data: data,
	}, nil
}

// resize makes f exactly length bytes long.
func resize(f *os.File, length int64, preallocate bool) error {
	if preallocate {
		if err := fallocate.Fallocate(f, 0, length); err != nil {
			return fmt.Errorf("preallocate: %w", err)
		}
	}

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat: %w", err)
	}

	switch {
	case info.Size() < length:
		// A single byte at the end extends the file; everything before it
		// reads as zeroes until written.
		if _, err := f.WriteAt([]byte{0}, length-1); err != nil {
			return fmt.Errorf("extend: %w", err)
		}
	case info.Size() > length:
		if err := f.Truncate(length); err != nil {
			return fmt.Errorf("truncate: %w", err)
		}
	}

	return nil
}

// Sync flushes the mapping and the file to stable storage.
func (f *File) Sync() error {
	if f.closed.Load() {
		return ErrClosed
	}
	if err := unix.Msync(f.data, unix.MS_SYNC); err != nil {
		return fmt.Errorf("store: msync: %w", err)
	}
	if err := f.file.Sync(); err != nil {
		return fmt.Errorf("store: fsync: %w", err)
	}
	return nil
}

// Close unmaps and closes the file. It is safe to call more than once; every
// call returns the result of the first.
func (f *File) Close() error {
	f.once.Do(func() {
		f.closed.Store(true)
		var errs []error
		if err := unix.Munmap(f.data); err != nil {
			errs = append(errs, fmt.Errorf("store: munmap: %w", err))
		}
		f.data = nil
		if err := f.file.Close(); err != nil {
			errs = append(errs, fmt.Errorf("store: close: %w", err))
		}
		f.err = errors.Join(errs...)
	})
	return f.err
}
