package downloader

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	pfhttp "github.com/ligustah/pfetch/internal/http"
	"github.com/ligustah/pfetch/internal/partition"
	"github.com/ligustah/pfetch/internal/progress"
	"github.com/ligustah/pfetch/internal/store"
)

// worker fills partitions. One worker value is shared by all partition
// goroutines of a run; run holds no state of its own.
type worker struct {
	url      string
	fetcher  RangeFetcher
	agg      *progress.Aggregator
	reporter *progress.Reporter
	log      zerolog.Logger
}

// run streams the remaining bytes of p into region. It returns nil only when
// the partition is complete.
func (w *worker) run(ctx context.Context, p *partition.Partition, region *store.Region) error {
	log := w.log.With().
		Int("partition", p.Index()).
		Int64("start", p.Start()).
		Int64("offset", p.Offset()).
		Int64("end", p.End()).
		Logger()
	log.Debug().Msg("partition started")

	if w.reporter != nil {
		w.reporter.PartitionStarted()
	}

	err := w.fetcher.FetchRange(ctx, w.url, p.Offset(), p.End(), func(chunk []byte) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if int64(len(chunk)) > p.Remaining() {
			return fmt.Errorf("%w: %d bytes for %d remaining", pfhttp.ErrOverrun, len(chunk), p.Remaining())
		}
		if _, err := region.WriteAt(chunk, p.Offset()); err != nil {
			return err
		}
		p.Advance(int64(len(chunk)))
		w.agg.Observe()
		return nil
	})
	if err == nil && !p.Done() {
		err = fmt.Errorf("%w: stopped at %d of %d", pfhttp.ErrShortRange, p.Offset(), p.End()+1)
	}

	if err != nil {
		if w.reporter != nil {
			w.reporter.PartitionFailed()
		}
		if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
			log.Debug().Int64("stopped_at", p.Offset()).Msg("partition stopped")
		} else {
			log.Error().Err(err).Int64("stopped_at", p.Offset()).Msg("partition failed")
		}
		return fmt.Errorf("partition %d: %w", p.Index(), err)
	}

	if w.reporter != nil {
		w.reporter.PartitionCompleted()
	}
	log.Debug().Msg("partition done")
	return nil
}
