package partition

import (
	"errors"
	"fmt"
	"sync/atomic"
)

// ErrInvalidCursors is returned by Restore when checkpointed cursors do not
// describe a valid partition set for the requested length.
var ErrInvalidCursors = errors.New("partition: invalid cursors")

// Cursor is a point-in-time view of a partition.
type Cursor struct {
	Start  int64
	Offset int64
	End    int64 // inclusive
}

// Done reports whether every byte of the cursor's range has been written.
func (c Cursor) Done() bool {
	return c.Offset > c.End
}

func (c Cursor) String() string {
	return fmt.Sprintf("%d-%d-%d", c.Start, c.Offset, c.End)
}

// Checkpoint is the persisted progress of an interrupted download.
type Checkpoint struct {
	// Count is the partition count of the run that produced the checkpoint.
	Count int

	// Cursors holds one entry per partition, in partition order.
	Cursors []Cursor
}

// Partition is a contiguous byte range of the resource, written by one worker.
type Partition struct {
	index  int
	start  int64
	end    int64
	total  int64
	offset atomic.Int64
}

func newPartition(index int, start, offset, end, total int64) *Partition {
	p := &Partition{
		index: index,
		start: start,
		end:   end,
		total: total,
	}
	p.offset.Store(offset)
	return p
}

// Index returns the position of the partition in its set.
func (p *Partition) Index() int {
	return p.index
}

// Start returns the first byte owned by the partition.
func (p *Partition) Start() int64 {
	return p.start
}

// End returns the last byte owned by the partition (inclusive).
func (p *Partition) End() int64 {
	return p.end
}

// Total returns the length of the whole resource.
func (p *Partition) Total() int64 {
	return p.total
}

// Offset returns the next byte to be written.
func (p *Partition) Offset() int64 {
	return p.offset.Load()
}

// Len returns the number of bytes owned by the partition.
func (p *Partition) Len() int64 {
	return p.end - p.start + 1
}

// Written returns the number of bytes written so far.
func (p *Partition) Written() int64 {
	return p.offset.Load() - p.start
}

// Remaining returns the number of bytes still to be written.
func (p *Partition) Remaining() int64 {
	return p.end + 1 - p.offset.Load()
}

// Done reports whether the partition is complete.
func (p *Partition) Done() bool {
	return p.offset.Load() > p.end
}

// Advance moves the cursor forward by n bytes. It must only be called by the
// owning worker, after the bytes have been written.
func (p *Partition) Advance(n int64) {
	p.offset.Add(n)
}

// Cursor returns a snapshot of the partition.
func (p *Partition) Cursor() Cursor {
	return Cursor{
		Start:  p.start,
		Offset: p.offset.Load(),
		End:    p.end,
	}
}

// Set is the ordered list of partitions of one download.
type Set []*Partition

// Downloaded returns the number of bytes written across all partitions.
// It reads offsets without coordination and is meant for display.
func (s Set) Downloaded() int64 {
	var n int64
	for _, p := range s {
		n += p.Written()
	}
	return n
}

// Cursors returns a snapshot of every partition in order.
func (s Set) Cursors() []Cursor {
	cursors := make([]Cursor, len(s))
	for i, p := range s {
		cursors[i] = p.Cursor()
	}
	return cursors
}

// Checkpoint returns the set as a checkpoint record.
func (s Set) Checkpoint() *Checkpoint {
	return &Checkpoint{
		Count:   len(s),
		Cursors: s.Cursors(),
	}
}

// Incomplete returns the partitions that still have bytes to write.
func (s Set) Incomplete() Set {
	var out Set
	for _, p := range s {
		if !p.Done() {
			out = append(out, p)
		}
	}
	return out
}

// Complete reports whether every partition is done.
func (s Set) Complete() bool {
	for _, p := range s {
		if !p.Done() {
			return false
		}
	}
	return true
}

// Split divides [0, length) into n contiguous partitions. The last partition
// absorbs the remainder of the division.
func Split(length int64, n int) Set {
	if n <= 0 {
		n = 1
	}

	base := length / int64(n)
	set := make(Set, n)
	for i := 0; i < n; i++ {
		start := base * int64(i)
		end := base*int64(i+1) - 1
		if i == n-1 {
			end = length - 1
		}
		set[i] = newPartition(i, start, start, end, length)
	}
	return set
}

// Restore rebuilds a partition set from checkpointed cursors. The cursors must
// cover [0, length) contiguously and satisfy Start <= Offset <= End+1.
func Restore(length int64, cursors []Cursor) (Set, error) {
	if len(cursors) == 0 {
		return nil, fmt.Errorf("%w: no cursors", ErrInvalidCursors)
	}

	var next int64
	set := make(Set, len(cursors))
	for i, c := range cursors {
		if c.Start != next {
			return nil, fmt.Errorf("%w: partition %d starts at %d, want %d", ErrInvalidCursors, i, c.Start, next)
		}
		if c.End < c.Start-1 {
			return nil, fmt.Errorf("%w: partition %d ends at %d before it starts at %d", ErrInvalidCursors, i, c.End, c.Start)
		}
		if c.Offset < c.Start || c.Offset > c.End+1 {
			return nil, fmt.Errorf("%w: partition %d offset %d outside [%d, %d]", ErrInvalidCursors, i, c.Offset, c.Start, c.End+1)
		}
		set[i] = newPartition(i, c.Start, c.Offset, c.End, length)
		next = c.End + 1
	}

	if next != length {
		return nil, fmt.Errorf("%w: partitions cover %d bytes, want %d", ErrInvalidCursors, next, length)
	}

	return set, nil
}

// Plan returns the partition set for a run of n partitions over length bytes.
// The checkpoint is used only when its Count equals n and its cursors restore
// cleanly; otherwise a fresh split is returned. The boolean reports whether
// the checkpoint was used.
func Plan(length int64, n int, cp *Checkpoint) (Set, bool) {
	if cp != nil && cp.Count == n && len(cp.Cursors) == n {
		if set, err := Restore(length, cp.Cursors); err == nil {
			return set, true
		}
	}
	return Split(length, n), false
}
