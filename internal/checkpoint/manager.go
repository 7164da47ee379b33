package checkpoint

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"

	"github.com/rs/zerolog"
	"gocloud.dev/blob"
	"gocloud.dev/blob/fileblob"
	"gocloud.dev/gcerrors"

	"github.com/ligustah/pfetch/internal/partition"
)

// Suffix is appended to the destination file name to form the record key.
const Suffix = ".pfetch-resume"

// Key returns the record key for the destination path dest.
func Key(dest string) string {
	return filepath.Base(dest) + Suffix
}

// Manager loads, saves and clears the checkpoint of one destination.
type Manager struct {
	bucket *blob.Bucket
	key    string
	owned  bool
	log    zerolog.Logger
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger used to report discarded records.
func WithLogger(l zerolog.Logger) Option {
	return func(m *Manager) {
		m.log = l
	}
}

// NewManager returns a Manager storing its record under key in bucket.
// The caller keeps ownership of bucket.
func NewManager(bucket *blob.Bucket, key string, opts ...Option) *Manager {
	m := &Manager{
		bucket: bucket,
		key:    key,
		log:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// OpenManager opens the checkpoint store for dest. With an empty bucketURL the
// record is the sidecar file "<dest>.pfetch-resume"; otherwise bucketURL is
// opened with blob.OpenBucket and the record is keyed by the destination's
// base name. The returned Manager must be closed.
func OpenManager(ctx context.Context, bucketURL, dest string, opts ...Option) (*Manager, error) {
	var (
		bucket *blob.Bucket
		err    error
	)
	if bucketURL == "" {
		dir := filepath.Dir(dest)
		bucket, err = fileblob.OpenBucket(dir, &fileblob.Options{
			Metadata:  fileblob.MetadataDontWrite,
			NoTempDir: true,
		})
	} else {
		bucket, err = blob.OpenBucket(ctx, bucketURL)
	}
	if err != nil {
		return nil, fmt.Errorf("checkpoint: open bucket: %w", err)
	}

	m := NewManager(bucket, Key(dest), opts...)
	m.owned = true
	return m, nil
}

// Key returns the key of the record in the bucket.
func (m *Manager) Key() string {
	return m.key
}

// Save writes the current cursors of set, replacing any previous record.
func (m *Manager) Save(ctx context.Context, set partition.Set) error {
	return m.SaveCheckpoint(ctx, set.Checkpoint())
}

// SaveCheckpoint writes cp, replacing any previous record.
func (m *Manager) SaveCheckpoint(ctx context.Context, cp *partition.Checkpoint) error {
	var buf bytes.Buffer
	if err := Encode(&buf, cp); err != nil {
		return fmt.Errorf("checkpoint: encode: %w", err)
	}

	if err := m.bucket.WriteAll(ctx, m.key, buf.Bytes(), &blob.WriterOptions{
		ContentType: "text/plain; charset=utf-8",
	}); err != nil {
		return fmt.Errorf("checkpoint: write %s: %w", m.key, err)
	}

	m.log.Debug().Str("key", m.key).Int("partitions", cp.Count).Msg("checkpoint saved")
	return nil
}

// Load returns the stored checkpoint. It returns nil and no error when there
// is no record or the record is malformed.
func (m *Manager) Load(ctx context.Context) (*partition.Checkpoint, error) {
	data, err := m.bucket.ReadAll(ctx, m.key)
	if err != nil {
		if isNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("checkpoint: read %s: %w", m.key, err)
	}

	cp, err := Decode(bytes.NewReader(data))
	if err != nil {
		m.log.Warn().Err(err).Str("key", m.key).Msg("ignoring unreadable checkpoint")
		return nil, nil
	}

	return cp, nil
}

// Exists reports whether a record is stored.
func (m *Manager) Exists(ctx context.Context) (bool, error) {
	ok, err := m.bucket.Exists(ctx, m.key)
	if err != nil {
		return false, fmt.Errorf("checkpoint: stat %s: %w", m.key, err)
	}
	return ok, nil
}

// Clear deletes the record. A missing record is not an error.
func (m *Manager) Clear(ctx context.Context) error {
	if err := m.bucket.Delete(ctx, m.key); err != nil && !isNotExist(err) {
		return fmt.Errorf("checkpoint: delete %s: %w", m.key, err)
	}
	m.log.Debug().Str("key", m.key).Msg("checkpoint cleared")
	return nil
}

// Close releases the bucket if it was opened by OpenManager.
func (m *Manager) Close() error {
	if !m.owned {
		return nil
	}
	return m.bucket.Close()
}

func isNotExist(err error) bool {
	return gcerrors.Code(err) == gcerrors.NotFound
}
