package progress

import (
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
)

// Options configures the progress reporter.
type Options struct {
	// TotalSize is the total size in bytes to download.
	TotalSize int64

	// Partitions is the number of partitions of the file.
	Partitions int

	// Output is where to write progress output.
	// Default: os.Stderr
	Output io.Writer

	// UpdateInterval is how often to update the progress display.
	// Default: 500ms
	UpdateInterval time.Duration

	// SourceURL is the URL being downloaded (for display).
	SourceURL string

	// Destination is the local file being written (for display).
	Destination string

	// Counter, when set, is sampled on every tick so speed and ETA follow
	// the bytes written rather than the last percent update.
	Counter Counter
}

// Reporter outputs human-readable progress information.
type Reporter struct {
	opts Options

	mu             sync.Mutex
	downloaded     atomic.Int64
	resumedBytes   int64
	completedParts atomic.Int32
	failedParts    atomic.Int32
	inProgress     atomic.Int32
	startTime      time.Time
	lastUpdate     time.Time
	lastBytes      int64
	stopCh         chan struct{}
	doneCh         chan struct{}
	started        bool
	stopped        bool
}

// NewReporter creates a new progress reporter.
func NewReporter(opts Options) *Reporter {
	if opts.Output == nil {
		opts.Output = os.Stderr
	}
	if opts.UpdateInterval == 0 {
		opts.UpdateInterval = 500 * time.Millisecond
	}

	return &Reporter{
		opts:   opts,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
}

// Start prints the header and begins outputting progress information.
// resumed is the number of bytes already present from an earlier run.
func (r *Reporter) Start(resumed int64) {
	r.mu.Lock()
	if r.started {
		r.mu.Unlock()
		return
	}
	r.started = true
	r.mu.Unlock()

	r.startTime = time.Now()
	r.lastUpdate = r.startTime
	r.resumedBytes = resumed
	r.lastBytes = resumed
	r.downloaded.Store(resumed)

	fmt.Fprintf(r.opts.Output, "[pfetch] Downloading: %s\n", r.opts.SourceURL)
	if r.opts.Destination != "" {
		fmt.Fprintf(r.opts.Output, "[pfetch] Destination: %s\n", r.opts.Destination)
	}
	fmt.Fprintf(r.opts.Output, "[pfetch] Total size: %s | Partitions: %d\n",
		FormatBytes(r.opts.TotalSize),
		r.opts.Partitions,
	)
	if resumed > 0 {
		fmt.Fprintf(r.opts.Output, "[pfetch] Resuming with %s already on disk\n", FormatBytes(resumed))
	}

	go r.updateLoop()
}

// Stop stops the progress reporter and prints the final status. It waits for
// the final status to be written.
func (r *Reporter) Stop() {
	r.mu.Lock()
	if r.stopped || !r.started {
		r.stopped = true
		r.mu.Unlock()
		return
	}
	r.stopped = true
	r.mu.Unlock()

	close(r.stopCh)
	<-r.doneCh
}

// Update records the current byte count. It matches the emit signature of
// NewAggregator; the percentage is derived from the byte count when printed.
func (r *Reporter) Update(_ int, downloaded int64) {
	r.downloaded.Store(downloaded)
}

// current returns the latest known byte count.
func (r *Reporter) current() int64 {
	if r.opts.Counter != nil {
		return r.opts.Counter.Downloaded()
	}
	return r.downloaded.Load()
}

func (r *Reporter) percentOf(downloaded int64) int64 {
	if r.opts.TotalSize <= 0 {
		return 0
	}
	return downloaded * 100 / r.opts.TotalSize
}

// PartitionStarted marks a partition as in progress.
func (r *Reporter) PartitionStarted() {
	r.inProgress.Add(1)
}

// PartitionCompleted marks a partition as completed.
func (r *Reporter) PartitionCompleted() {
	r.completedParts.Add(1)
	r.inProgress.Add(-1)
}

// PartitionFailed marks a partition as failed or stopped.
func (r *Reporter) PartitionFailed() {
	r.failedParts.Add(1)
	r.inProgress.Add(-1)
}

// updateLoop periodically updates the progress display.
func (r *Reporter) updateLoop() {
	defer close(r.doneCh)

	ticker := time.NewTicker(r.opts.UpdateInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stopCh:
			r.printFinalStatus()
			return
		case <-ticker.C:
			r.printProgress()
		}
	}
}

// printProgress outputs the current progress.
func (r *Reporter) printProgress() {
	now := time.Now()
	downloaded := r.current()

	elapsed := now.Sub(r.lastUpdate).Seconds()
	if elapsed < 0.1 {
		elapsed = 0.1
	}
	speed := float64(downloaded-r.lastBytes) / elapsed

	r.lastUpdate = now
	r.lastBytes = downloaded

	var eta string
	if speed > 0 {
		remaining := float64(r.opts.TotalSize - downloaded)
		eta = formatDuration(time.Duration(remaining / speed * float64(time.Second)))
	} else {
		eta = "calculating..."
	}

	pending := r.opts.Partitions - int(r.completedParts.Load()) - int(r.inProgress.Load()) - int(r.failedParts.Load())
	if pending < 0 {
		pending = 0
	}

	fmt.Fprintf(r.opts.Output, "\r[pfetch] downloaded: %d%% | %s / %s | Speed: %s/s | ETA: %s    ",
		r.percentOf(downloaded),
		FormatBytes(downloaded),
		FormatBytes(r.opts.TotalSize),
		FormatBytes(int64(speed)),
		eta,
	)
	fmt.Fprintf(r.opts.Output, "\n[pfetch] Partitions: %d completed | %d in-progress | %d pending    \033[A",
		r.completedParts.Load(),
		r.inProgress.Load(),
		pending,
	)
}

// printFinalStatus outputs the final status.
func (r *Reporter) printFinalStatus() {
	downloaded := r.current()
	duration := time.Since(r.startTime)
	transferred := downloaded - r.resumedBytes

	var avgSpeed float64
	if s := duration.Seconds(); s > 0 {
		avgSpeed = float64(transferred) / s
	}

	percent := r.percentOf(downloaded)

	fmt.Fprintf(r.opts.Output, "\r[pfetch] downloaded: %d%% | %s / %s                              \n",
		percent,
		FormatBytes(downloaded),
		FormatBytes(r.opts.TotalSize),
	)
	fmt.Fprintf(r.opts.Output, "[pfetch] Partitions: %d completed | %d failed or stopped                \n",
		r.completedParts.Load(),
		r.failedParts.Load(),
	)
	fmt.Fprintf(r.opts.Output, "[pfetch] Total time: %s | Transferred: %s | Average speed: %s/s\n",
		formatDuration(duration),
		FormatBytes(transferred),
		FormatBytes(int64(avgSpeed)),
	)
}

// formatDuration formats a duration as a human-readable string.
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%.0fs", d.Seconds())
	}
	if d < time.Hour {
		m := int(d.Minutes())
		s := int(d.Seconds()) % 60
		return fmt.Sprintf("%dm %ds", m, s)
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%dh %dm %ds", h, m, s)
}

// FormatBytes formats a byte count with binary units ("1.5 KiB").
func FormatBytes(b int64) string {
	if b < 0 {
		return "-" + humanize.IBytes(uint64(-b))
	}
	return humanize.IBytes(uint64(b))
}

// ParseBytes parses a human-readable byte string. Both binary ("256MiB") and
// SI ("256MB") suffixes are accepted.
func ParseBytes(s string) (int64, error) {
	n, err := humanize.ParseBytes(s)
	if err != nil {
		return 0, fmt.Errorf("invalid byte string %q: %w", s, err)
	}
	if n > 1<<62 {
		return 0, fmt.Errorf("byte string %q too large", s)
	}
	return int64(n), nil
}
