package store

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
)

// Common errors.
var (
	ErrCreate     = errors.New("store: create file")
	ErrMap        = errors.New("store: map file")
	ErrClosed     = errors.New("store: file is closed")
	ErrOutOfRange = errors.New("store: write outside region")
)

// Options configures Open.
type Options struct {
	// Resume reopens an existing file without truncating it.
	Resume bool

	// Preallocate reserves disk blocks for the whole file up front.
	Preallocate bool
}

// File is a destination file mapped into memory.
type File struct {
	path   string
	file   *os.File
	data   []byte
	closed atomic.Bool
	once   sync.Once
	err    error
}

// Path returns the path of the backing file.
func (f *File) Path() string {
	return f.path
}

// Len returns the size of the mapping in bytes.
func (f *File) Len() int64 {
	return int64(len(f.data))
}

// WriteAt copies p into the mapping at off. It implements io.WriterAt.
func (f *File) WriteAt(p []byte, off int64) (int, error) {
	if f.closed.Load() {
		return 0, ErrClosed
	}
	if off < 0 || off+int64(len(p)) > int64(len(f.data)) {
		return 0, fmt.Errorf("%w: [%d, %d) not in [0, %d)", ErrOutOfRange, off, off+int64(len(p)), len(f.data))
	}
	return copy(f.data[off:], p), nil
}

// Region returns the byte range [start, end] of the file. An empty region
// (end == start-1) is allowed and refuses every non-empty write.
func (f *File) Region(start, end int64) (*Region, error) {
	if start < 0 || end < start-1 || end >= int64(len(f.data)) {
		return nil, fmt.Errorf("%w: region [%d, %d] in file of %d bytes", ErrOutOfRange, start, end, len(f.data))
	}
	return &Region{file: f, start: start, end: end}, nil
}

// Region is the part of a File owned by a single writer.
type Region struct {
	file  *File
	start int64
	end   int64
}

// Start returns the first byte of the region.
func (r *Region) Start() int64 {
	return r.start
}

// End returns the last byte of the region (inclusive).
func (r *Region) End() int64 {
	return r.end
}

// WriteAt writes p at the absolute file offset off. The whole write must fall
// inside the region.
func (r *Region) WriteAt(p []byte, off int64) (int, error) {
	if off < r.start || off+int64(len(p)) > r.end+1 {
		return 0, fmt.Errorf("%w: [%d, %d) not in [%d, %d]", ErrOutOfRange, off, off+int64(len(p)), r.start, r.end)
	}
	return r.file.WriteAt(p, off)
}
