// Package checkpoint persists the progress of an interrupted download.
//
// A checkpoint records the partition count of the run and one
// (start, offset, end) cursor per partition, as a small line-oriented text
// record:
//
//	[4]
//	0-25-24
//	25-31-49
//	50-74-74
//	75-75-99
//
// The record is stored through gocloud.dev/blob so it can live next to the
// destination (the default, a fileblob bucket on the destination directory
// holding "<name>.pfetch-resume") or in any other bucket URL.
//
// # Lifecycle
//
//   - [Manager.Save] is called after an interrupted run has stopped all of its
//     workers and flushed the destination.
//   - [Manager.Load] is called at the start of a run. A missing or malformed
//     record yields no checkpoint.
//   - [Manager.Clear] is called only after a fully successful run.
package checkpoint
