// Package http provides an HTTP client for parallel ranged downloads.
//
// This package handles:
//   - Connection pooling for high parallelism
//   - HEAD requests to get file metadata
//   - Range requests, streamed into a caller supplied sink
//
// Requests are never retried. A failed range is reported to the caller, which
// decides what to do with the partition it was filling.
//
// # Usage
//
//	client := http.NewClient(http.Options{
//	    MaxIdleConnsPerHost: 16,
//	    Timeout:             30 * time.Second,
//	})
//
//	// Get file info
//	info, err := client.Head(ctx, url)
//	// info.Size, info.ETag, info.AcceptsRanges
//
//	// Stream a range
//	err = client.FetchRange(ctx, url, start, end, func(p []byte) error {
//	    _, err := region.WriteAt(p, offset)
//	    offset += int64(len(p))
//	    return err
//	})
package http
