// Package progress tracks and displays download progress.
//
// An [Aggregator] turns the byte count of a partition set into whole-percent
// updates and drops repeats, so it can be called after every write from any
// worker. A [Reporter] renders those updates for humans.
//
// # Usage
//
//	reporter := progress.NewReporter(progress.Options{
//	    TotalSize:  length,
//	    Partitions: workers,
//	    SourceURL:  url,
//	})
//	agg := progress.NewAggregator(set, length, reporter.Update)
//
//	reporter.Start(set.Downloaded())
//	defer reporter.Stop()
//
//	// after each write
//	agg.Observe()
//
// # Output Format
//
//	[pfetch] Downloading: https://example.com/file.iso
//	[pfetch] Total size: 4.2 GiB | Partitions: 8
//	[pfetch] downloaded: 42% | 1.8 GiB / 4.2 GiB | Speed: 96 MiB/s | ETA: 26s
//	[pfetch] Partitions: 3 completed | 5 in-progress | 0 pending
package progress
