package downloader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ligustah/pfetch/internal/checkpoint"
	pfhttp "github.com/ligustah/pfetch/internal/http"
	"github.com/ligustah/pfetch/internal/partition"
	"github.com/ligustah/pfetch/internal/progress"
	"github.com/ligustah/pfetch/internal/store"
)

// Common errors.
var (
	ErrProbe         = errors.New("downloader: probe failed")
	ErrUnknownLength = errors.New("downloader: content length unknown")
	ErrInterrupted   = errors.New("downloader: interrupted")
	ErrCheckpoint    = errors.New("downloader: checkpoint storage")
)

// Prober reports metadata of a remote file.
type Prober interface {
	Head(ctx context.Context, url string) (*pfhttp.FileInfo, error)
}

// RangeFetcher streams a byte range of a remote file into onChunk.
type RangeFetcher interface {
	FetchRange(ctx context.Context, url string, start, end int64, onChunk func([]byte) error) error
}

// Options configures the downloader.
type Options struct {
	// Workers is the number of partitions, and of parallel requests.
	// Default: 8
	Workers int

	// ChunkSize is the read buffer size of each worker.
	// Default: 32 KiB
	ChunkSize int64

	// Preallocate reserves disk blocks for the destination up front.
	Preallocate bool

	// Checkpoints persists progress across interruptions. Nil disables
	// resume.
	Checkpoints *checkpoint.Manager

	// Prober and Fetcher override the HTTP client built from HTTPOptions.
	Prober  Prober
	Fetcher RangeFetcher

	// HTTPOptions configures the default HTTP client.
	HTTPOptions pfhttp.Options

	// OnProgress is called whenever the completed percentage changes.
	OnProgress func(percent int, downloaded int64)

	// Progress receives a human-readable progress display when set.
	Progress io.Writer

	// Logger receives structured events. Nil disables logging.
	Logger *zerolog.Logger
}

// State is the lifecycle state of a download.
type State int

const (
	Idle State = iota
	Probing
	Mapping
	Partitioning
	Downloading
	Completed
	Interrupted
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Probing:
		return "probing"
	case Mapping:
		return "mapping"
	case Partitioning:
		return "partitioning"
	case Downloading:
		return "downloading"
	case Completed:
		return "completed"
	case Interrupted:
		return "interrupted"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Result describes the outcome of a Download call. It is returned together
// with any error.
type Result struct {
	// ID identifies the run in logs.
	ID string

	// State is the final state of the run.
	State State

	// Length is the probed size of the file, or 0 if probing failed.
	Length int64

	// Resumed reports whether a checkpoint was used.
	Resumed bool

	// Partitions holds the final cursor of every partition.
	Partitions []partition.Cursor

	// Failed lists the partitions that failed, if any.
	Failed []FailedPartition
}

// FailedPartition records a partition that could not be completed.
type FailedPartition struct {
	Index  int
	Cursor partition.Cursor
	Err    error
}

// PartitionsFailedError is returned when at least one partition failed and
// the run was not interrupted.
//
// Use errors.As to extract this error and inspect Failed for details. The
// causes are reachable with errors.Is.
type PartitionsFailedError struct {
	Failed    []FailedPartition
	Succeeded int
	Total     int
}

func (e *PartitionsFailedError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d of %d partitions failed", len(e.Failed), e.Total)
	for i, f := range e.Failed {
		if i == 3 {
			fmt.Fprintf(&b, "; and %d more", len(e.Failed)-i)
			break
		}
		fmt.Fprintf(&b, "; partition %d at %d: %v", f.Index, f.Cursor.Offset, f.Err)
	}
	return b.String()
}

func (e *PartitionsFailedError) Unwrap() []error {
	errs := make([]error, len(e.Failed))
	for i, f := range e.Failed {
		errs[i] = f.Err
	}
	return errs
}

func (o Options) withDefaults() Options {
	if o.Workers <= 0 {
		o.Workers = 8
	}
	if o.ChunkSize <= 0 {
		o.ChunkSize = 32 * 1024
	}
	if o.Prober == nil || o.Fetcher == nil {
		httpOpts := o.HTTPOptions
		if httpOpts.BufferSize <= 0 {
			httpOpts.BufferSize = int(o.ChunkSize)
		}
		if httpOpts.MaxIdleConnsPerHost <= 0 {
			httpOpts.MaxIdleConnsPerHost = o.Workers
		}
		client := pfhttp.NewClient(httpOpts)
		if o.Prober == nil {
			o.Prober = client
		}
		if o.Fetcher == nil {
			o.Fetcher = client
		}
	}
	return o
}

func (o Options) logger() zerolog.Logger {
	if o.Logger == nil {
		return zerolog.Nop()
	}
	return *o.Logger
}

// Probe returns the length of the remote file. It fails with ErrProbe when the
// request fails and with ErrUnknownLength when the server does not report a
// positive length.
func Probe(ctx context.Context, prober Prober, url string) (int64, error) {
	info, err := probe(ctx, prober, url)
	if err != nil {
		return 0, err
	}
	return info.Size, nil
}

func probe(ctx context.Context, prober Prober, url string) (*pfhttp.FileInfo, error) {
	info, err := prober.Head(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrProbe, err)
	}
	if info.Size <= 0 {
		return nil, fmt.Errorf("%w: server reported %d", ErrUnknownLength, info.Size)
	}
	return info, nil
}

// Download fetches url into the file dest using opts.Workers parallel range
// requests. When ctx is cancelled the workers stop after their current write,
// the progress is saved to opts.Checkpoints, and ErrInterrupted is returned.
// A later call with the same destination and worker count resumes from there.
func Download(ctx context.Context, url, dest string, opts Options) (*Result, error) {
	opts = opts.withDefaults()

	res := &Result{ID: uuid.NewString()}
	log := opts.logger().With().Str("run", res.ID).Logger()
	enter := func(s State) {
		res.State = s
		log.Debug().Stringer("state", s).Msg("state changed")
	}

	enter(Probing)
	info, err := probe(ctx, opts.Prober, url)
	if err != nil {
		enter(Failed)
		return res, err
	}
	length := info.Size
	res.Length = length
	log.Info().Str("url", url).Int64("length", length).Str("etag", info.ETag).Msg("probed source")
	if !info.AcceptsRanges {
		log.Warn().Msg("server does not advertise byte ranges, trying anyway")
	}

	var cp *partition.Checkpoint
	if opts.Checkpoints != nil {
		cp, err = opts.Checkpoints.Load(ctx)
		if err != nil {
			enter(Failed)
			return res, fmt.Errorf("%w: %w", ErrCheckpoint, err)
		}
		if cp != nil {
			if reason := checkpointMismatch(cp, dest, length, opts.Workers); reason != "" {
				log.Warn().Str("reason", reason).Msg("discarding checkpoint, starting over")
				cp = nil
			}
		}
	}

	enter(Mapping)
	file, err := store.Open(dest, length, store.Options{
		Resume:      cp != nil,
		Preallocate: opts.Preallocate,
	})
	if err != nil {
		enter(Failed)
		return res, err
	}
	defer file.Close()

	enter(Partitioning)
	set, resumed := partition.Plan(length, opts.Workers, cp)
	res.Resumed = resumed
	if resumed {
		log.Info().Int64("downloaded", set.Downloaded()).Msg("resuming from checkpoint")
	}

	var reporter *progress.Reporter
	if opts.Progress != nil {
		reporter = progress.NewReporter(progress.Options{
			TotalSize:   length,
			Partitions:  len(set),
			Output:      opts.Progress,
			SourceURL:   url,
			Destination: dest,
			Counter:     set,
		})
	}
	agg := progress.NewAggregator(set, length, func(percent int, downloaded int64) {
		if reporter != nil {
			reporter.Update(percent, downloaded)
		}
		if opts.OnProgress != nil {
			opts.OnProgress(percent, downloaded)
		}
	})

	enter(Downloading)
	if reporter != nil {
		reporter.Start(set.Downloaded())
	}

	w := &worker{
		url:      url,
		fetcher:  opts.Fetcher,
		agg:      agg,
		reporter: reporter,
		log:      log,
	}
	errs := make([]error, len(set))
	var (
		succeeded atomic.Int64
		wg        sync.WaitGroup
	)
	for _, p := range set {
		if p.Done() {
			succeeded.Add(1)
			continue
		}

		region, err := file.Region(p.Start(), p.End())
		if err != nil {
			errs[p.Index()] = err
			continue
		}

		wg.Add(1)
		go func(p *partition.Partition, region *store.Region) {
			defer wg.Done()
			if err := w.run(ctx, p, region); err != nil {
				errs[p.Index()] = err
				return
			}
			succeeded.Add(1)
		}(p, region)
	}
	wg.Wait()

	if reporter != nil {
		reporter.Stop()
	}
	res.Partitions = set.Cursors()

	switch {
	case int(succeeded.Load()) == len(set):
		if err := file.Sync(); err != nil {
			enter(Failed)
			return res, err
		}
		if err := file.Close(); err != nil {
			enter(Failed)
			return res, err
		}
		if opts.Checkpoints != nil {
			if err := opts.Checkpoints.Clear(context.WithoutCancel(ctx)); err != nil {
				log.Warn().Err(err).Msg("could not remove checkpoint")
			}
		}
		enter(Completed)
		log.Info().Int64("length", length).Msg("download complete")
		return res, nil

	case ctx.Err() != nil:
		if err := file.Sync(); err != nil {
			enter(Failed)
			return res, err
		}
		if opts.Checkpoints != nil {
			saveCtx := context.WithoutCancel(ctx)
			if err := opts.Checkpoints.Save(saveCtx, set); err != nil {
				enter(Failed)
				return res, fmt.Errorf("%w: %w", ErrCheckpoint, err)
			}
			log.Info().Str("checkpoint", opts.Checkpoints.Key()).Int64("downloaded", set.Downloaded()).Msg("progress saved")
		}
		enter(Interrupted)
		return res, ErrInterrupted

	default:
		pfe := &PartitionsFailedError{
			Succeeded: int(succeeded.Load()),
			Total:     len(set),
		}
		for i, err := range errs {
			if err == nil {
				continue
			}
			pfe.Failed = append(pfe.Failed, FailedPartition{
				Index:  i,
				Cursor: set[i].Cursor(),
				Err:    err,
			})
		}
		res.Failed = pfe.Failed
		enter(Failed)
		log.Error().Int("failed", len(pfe.Failed)).Int("total", len(set)).Msg("download failed")
		return res, pfe
	}
}

// checkpointMismatch returns why cp cannot be resumed into dest, or "" if it
// can.
func checkpointMismatch(cp *partition.Checkpoint, dest string, length int64, workers int) string {
	if cp.Count != workers {
		return fmt.Sprintf("checkpoint has %d partitions, run has %d", cp.Count, workers)
	}
	if _, err := partition.Restore(length, cp.Cursors); err != nil {
		return err.Error()
	}
	fi, err := os.Stat(dest)
	if err != nil {
		return fmt.Sprintf("destination unusable: %v", err)
	}
	if fi.Size() != length {
		return fmt.Sprintf("destination has %d bytes, source has %d", fi.Size(), length)
	}
	return ""
}
