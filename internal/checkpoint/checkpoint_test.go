package checkpoint

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocloud.dev/blob"
	_ "gocloud.dev/blob/memblob"

	"github.com/ligustah/pfetch/internal/partition"
)

func TestEncode(t *testing.T) {
	cp := &partition.Checkpoint{
		Count: 4,
		Cursors: []partition.Cursor{
			{Start: 0, Offset: 25, End: 24},
			{Start: 25, Offset: 31, End: 49},
			{Start: 50, Offset: 74, End: 74},
			{Start: 75, Offset: 75, End: 99},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, cp))
	assert.Equal(t, "[4]\n0-25-24\n25-31-49\n50-74-74\n75-75-99\n", buf.String())
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  *partition.Checkpoint
	}{
		{
			name:  "basic",
			input: "[2]\n0-10-49\n50-50-99\n",
			want: &partition.Checkpoint{Count: 2, Cursors: []partition.Cursor{
				{Start: 0, Offset: 10, End: 49},
				{Start: 50, Offset: 50, End: 99},
			}},
		},
		{
			name:  "crlf and blank lines",
			input: "[2]\r\n\r\n0-10-49\r\n50-50-99\r\n\n",
			want: &partition.Checkpoint{Count: 2, Cursors: []partition.Cursor{
				{Start: 0, Offset: 10, End: 49},
				{Start: 50, Offset: 50, End: 99},
			}},
		},
		{
			name:  "empty partition",
			input: "[3]\n0-0--1\n0-0--1\n0-1-1\n",
			want: &partition.Checkpoint{Count: 3, Cursors: []partition.Cursor{
				{Start: 0, Offset: 0, End: -1},
				{Start: 0, Offset: 0, End: -1},
				{Start: 0, Offset: 1, End: 1},
			}},
		},
		{
			name:  "no trailing newline",
			input: "[1]\n0-7-9",
			want: &partition.Checkpoint{Count: 1, Cursors: []partition.Cursor{
				{Start: 0, Offset: 7, End: 9},
			}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode(strings.NewReader(tt.input))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecodeMalformed(t *testing.T) {
	inputs := map[string]string{
		"empty":          "",
		"no header":      "0-10-49\n",
		"bad header":     "[x]\n0-1-2\n",
		"zero count":     "[0]\n",
		"header garbage": "[2]junk\n0-0-0\n1-1-1\n",
		"too few":        "[3]\n0-1-9\n10-10-19\n",
		"too many":       "[1]\n0-1-9\n10-10-19\n",
		"bad cursor":     "[1]\n0-1\n",
		"cursor garbage": "[1]\n0-1-9 x\n",
		"not numbers":    "[1]\na-b-c\n",
	}

	for name, input := range inputs {
		t.Run(name, func(t *testing.T) {
			_, err := Decode(strings.NewReader(input))
			assert.ErrorIs(t, err, ErrMalformed)
		})
	}
}

func TestEncodeDecodeSplit(t *testing.T) {
	set := partition.Split(1000, 7)
	set[2].Advance(13)
	set[6].Advance(set[6].Len())

	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, set.Checkpoint()))

	got, err := Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, set.Checkpoint(), got)
}

func newMemManager(t *testing.T) (*Manager, *blob.Bucket) {
	t.Helper()
	bucket, err := blob.OpenBucket(context.Background(), "mem://")
	require.NoError(t, err)
	t.Cleanup(func() { bucket.Close() })
	return NewManager(bucket, Key("/data/out.bin")), bucket
}

func TestManagerSaveLoadClear(t *testing.T) {
	ctx := context.Background()
	m, bucket := newMemManager(t)
	assert.Equal(t, "out.bin.pfetch-resume", m.Key())

	cp, err := m.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, cp, "no record yet")

	ok, err := m.Exists(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	set := partition.Split(100, 4)
	set[0].Advance(25)
	set[1].Advance(6)
	set[2].Advance(24)
	require.NoError(t, m.Save(ctx, set))

	data, err := bucket.ReadAll(ctx, m.Key())
	require.NoError(t, err)
	assert.Equal(t, "[4]\n0-25-24\n25-31-49\n50-74-74\n75-75-99\n", string(data))

	cp, err = m.Load(ctx)
	require.NoError(t, err)
	require.NotNil(t, cp)
	assert.Equal(t, set.Checkpoint(), cp)

	ok, err = m.Exists(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, m.Clear(ctx))
	ok, err = m.Exists(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	// Clearing twice is fine.
	require.NoError(t, m.Clear(ctx))
}

func TestManagerSaveReplaces(t *testing.T) {
	ctx := context.Background()
	m, _ := newMemManager(t)

	first := partition.Split(10, 2)
	require.NoError(t, m.Save(ctx, first))

	second := partition.Split(10, 2)
	second[0].Advance(5)
	require.NoError(t, m.Save(ctx, second))

	cp, err := m.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, second.Checkpoint(), cp)
}

func TestManagerLoadMalformed(t *testing.T) {
	ctx := context.Background()
	m, bucket := newMemManager(t)

	require.NoError(t, bucket.WriteAll(ctx, m.Key(), []byte("garbage\n"), nil))

	cp, err := m.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, cp)
}

func TestOpenManagerSidecar(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	dest := filepath.Join(dir, "file.iso")

	m, err := OpenManager(ctx, "", dest)
	require.NoError(t, err)
	defer m.Close()

	set := partition.Split(10, 2)
	set[1].Advance(3)
	require.NoError(t, m.Save(ctx, set))

	data, err := os.ReadFile(dest + Suffix)
	require.NoError(t, err)
	assert.Equal(t, "[2]\n0-0-4\n5-8-9\n", string(data))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "only the sidecar should be written")

	require.NoError(t, m.Clear(ctx))
	_, err = os.Stat(dest + Suffix)
	assert.True(t, os.IsNotExist(err))
}

func TestOpenManagerBucketURL(t *testing.T) {
	ctx := context.Background()

	m, err := OpenManager(ctx, "mem://", "/tmp/x/file.iso")
	require.NoError(t, err)
	defer m.Close()

	assert.Equal(t, "file.iso.pfetch-resume", m.Key())
	require.NoError(t, m.Save(ctx, partition.Split(3, 1)))

	cp, err := m.Load(ctx)
	require.NoError(t, err)
	require.NotNil(t, cp)
	assert.Equal(t, 1, cp.Count)
}

func TestOpenManagerBadURL(t *testing.T) {
	_, err := OpenManager(context.Background(), "nosuchscheme://bucket", "out.bin")
	assert.Error(t, err)
}
