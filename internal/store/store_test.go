//go:build linux || darwin

package store

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenCreatesSizedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.bin")

	f, err := Open(path, 1000, Options{})
	require.NoError(t, err)
	assert.Equal(t, int64(1000), f.Len())
	assert.Equal(t, path, f.Path())
	require.NoError(t, f.Close())

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), info.Size())
}

func TestRegionWritesReachFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.bin")

	f, err := Open(path, 16, Options{})
	require.NoError(t, err)
	defer f.Close()

	lo, err := f.Region(0, 7)
	require.NoError(t, err)
	hi, err := f.Region(8, 15)
	require.NoError(t, err)

	_, err = hi.WriteAt([]byte("89abcdef"), 8)
	require.NoError(t, err)
	_, err = lo.WriteAt([]byte("0123"), 0)
	require.NoError(t, err)
	_, err = lo.WriteAt([]byte("4567"), 4)
	require.NoError(t, err)

	require.NoError(t, f.Sync())
	require.NoError(t, f.Close())

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []byte("0123456789abcdef"), got)
}

func TestRegionRefusesForeignBytes(t *testing.T) {
	f, err := Open(filepath.Join(t.TempDir(), "out.bin"), 16, Options{})
	require.NoError(t, err)
	defer f.Close()

	r, err := f.Region(4, 7)
	require.NoError(t, err)

	_, err = r.WriteAt([]byte("xx"), 2)
	assert.ErrorIs(t, err, ErrOutOfRange)

	_, err = r.WriteAt([]byte("xxx"), 6)
	assert.ErrorIs(t, err, ErrOutOfRange)

	n, err := r.WriteAt([]byte("xxxx"), 4)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
}

func TestRegionBounds(t *testing.T) {
	f, err := Open(filepath.Join(t.TempDir(), "out.bin"), 16, Options{})
	require.NoError(t, err)
	defer f.Close()

	_, err = f.Region(8, 16)
	assert.ErrorIs(t, err, ErrOutOfRange)

	_, err = f.Region(-1, 3)
	assert.ErrorIs(t, err, ErrOutOfRange)

	empty, err := f.Region(0, -1)
	require.NoError(t, err)
	_, err = empty.WriteAt([]byte("x"), 0)
	assert.ErrorIs(t, err, ErrOutOfRange)
}

func TestOpenFreshTruncates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.bin")
	require.NoError(t, os.WriteFile(path, bytes.Repeat([]byte("z"), 32), 0644))

	f, err := Open(path, 8, Options{})
	require.NoError(t, err)
	require.NoError(t, f.Close())

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, make([]byte, 8), got)
}

func TestOpenResumeKeepsBytes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.bin")
	require.NoError(t, os.WriteFile(path, []byte("abcdefgh"), 0644))

	f, err := Open(path, 8, Options{Resume: true})
	require.NoError(t, err)
	require.NoError(t, f.Close())

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []byte("abcdefgh"), got, "the last byte must not be overwritten when resuming")
}

func TestOpenResumeGrowsShortFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.bin")
	require.NoError(t, os.WriteFile(path, []byte("abcd"), 0644))

	f, err := Open(path, 8, Options{Resume: true})
	require.NoError(t, err)
	require.NoError(t, f.Close())

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []byte("abcd\x00\x00\x00\x00"), got)
}

func TestOpenPreallocate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.bin")

	f, err := Open(path, 4096, Options{Preallocate: true})
	if err != nil {
		t.Skipf("preallocation not supported here: %v", err)
	}
	require.NoError(t, f.Close())

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, int64(4096), info.Size())
}

func TestOpenInvalidLength(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.bin")

	_, err := Open(path, 0, Options{})
	assert.ErrorIs(t, err, ErrCreate)

	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr), "no file should be created for an invalid length")
}

func TestOpenMissingDirectory(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing", "out.bin"), 10, Options{})
	assert.ErrorIs(t, err, ErrCreate)
}

func TestCloseIsIdempotent(t *testing.T) {
	f, err := Open(filepath.Join(t.TempDir(), "out.bin"), 10, Options{})
	require.NoError(t, err)

	require.NoError(t, f.Close())
	require.NoError(t, f.Close())

	_, err = f.WriteAt([]byte("x"), 0)
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, f.Sync(), ErrClosed)
}
