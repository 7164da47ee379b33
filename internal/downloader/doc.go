// Package downloader orchestrates parallel ranged HTTP downloads into a local
// file.
//
// The file is probed for its length, pre-sized and memory mapped, and split
// into one contiguous partition per worker. Each worker streams its own byte
// range straight into its region of the mapping.
//
// # Usage
//
// The main entry point is the Download function:
//
//	res, err := downloader.Download(ctx, url, "/data/file.iso", downloader.Options{
//	    Workers:     8,
//	    Checkpoints: mgr,
//	    Progress:    os.Stderr,
//	})
//
// # Workers
//
// One goroutine runs per incomplete partition. Partitions already complete in
// a checkpoint are not fetched again. A failed partition does not stop the
// others; failures are collected into a [PartitionsFailedError]. Nothing is
// retried.
//
// # Graceful Shutdown
//
// On context cancellation:
//   - Workers stop after the write in progress
//   - The mapping is flushed to disk
//   - Every partition cursor is saved through the checkpoint manager
//   - Download returns [ErrInterrupted]
package downloader
