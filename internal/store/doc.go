// Package store provides the memory-mapped destination file of a download.
//
// [Open] creates (or, when resuming, reopens) the destination, sizes it to the
// exact resource length and maps it shared and writable, so writes reach the
// file through the page cache rather than buffered I/O.
//
// Workers never see the mapping itself. Each one gets a [Region], the
// exclusively owned byte range of its partition, and writes through
// [Region.WriteAt]; writes outside the region are refused.
//
//	f, err := store.Open(path, length, store.Options{Resume: resumed})
//	if err != nil {
//	    return err
//	}
//	defer f.Close()
//
//	r, _ := f.Region(p.Start(), p.End())
//	r.WriteAt(chunk, p.Offset())
//
// Nothing is flushed implicitly: call [File.Sync] before trusting the bytes on
// disk (before reporting success or persisting a checkpoint).
package store
