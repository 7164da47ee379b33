// Package partition divides a remote resource into disjoint byte ranges.
//
// A [Partition] owns the inclusive range [Start, End] of the destination and
// tracks a write cursor (Offset) that only moves forward. Offset == End+1
// means the partition is complete. A [Set] is the ordered list of partitions
// of one download; it always covers [0, length) without gaps or overlaps.
//
// # Planning
//
// [Split] performs the fresh split: every partition gets length/n bytes and
// the last one absorbs the remainder.
//
//	Split(101, 4) => [0-24] [25-49] [50-74] [75-100]
//
// [Restore] rebuilds a set from checkpointed cursors. [Plan] picks between the
// two: a [Checkpoint] is used only when its Count equals the requested
// partition count and its cursors are a valid cover of the current length.
// Anything else is discarded wholesale; checkpoints are never merged.
//
// # Concurrency
//
// Each partition is advanced by exactly one worker. Offset is atomic so that
// progress readers and checkpoint snapshots can observe it concurrently.
package partition
