package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	_ "gocloud.dev/blob/gcsblob"
	_ "gocloud.dev/blob/s3blob"

	"github.com/ligustah/pfetch/internal/checkpoint"
	"github.com/ligustah/pfetch/internal/config"
	"github.com/ligustah/pfetch/internal/downloader"
	pfhttp "github.com/ligustah/pfetch/internal/http"
	"github.com/ligustah/pfetch/internal/logging"
	"github.com/ligustah/pfetch/internal/progress"
	"github.com/ligustah/pfetch/internal/store"
)

type downloadFlags struct {
	configPath       string
	chunkSize        string
	progress         bool
	preallocate      bool
	checkpointBucket string
	logLevel         string
	timeout          time.Duration
}

func newDownloadCmd() *cobra.Command {
	var f downloadFlags

	cmd := &cobra.Command{
		Use:   "download <url> <destination-path> <worker-count>",
		Short: "Download a file with parallel range requests",
		Long: `Download a file with parallel range requests.

The file is split into <worker-count> contiguous partitions, each fetched by
its own request. On interrupt the progress of every partition is saved and a
later run with the same destination and worker count resumes it.`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDownload(cmd, args, f)
		},
	}

	fs := cmd.Flags()
	fs.StringVar(&f.configPath, "config", "", "YAML configuration file")
	fs.StringVar(&f.chunkSize, "chunk-size", "", "Read buffer size per worker (e.g. 64KiB)")
	fs.BoolVar(&f.progress, "progress", false, "Show progress output")
	fs.BoolVar(&f.preallocate, "preallocate", false, "Reserve disk space for the whole file up front")
	fs.StringVar(&f.checkpointBucket, "checkpoint-bucket", "", "Bucket URL for checkpoints (default: next to the destination)")
	fs.StringVar(&f.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	fs.DurationVar(&f.timeout, "timeout", 0, "Time to wait for response headers")

	return cmd
}

func runDownload(cmd *cobra.Command, args []string, f downloadFlags) error {
	stderr := cmd.ErrOrStderr()

	workers, err := strconv.Atoi(args[2])
	if err != nil || workers <= 0 {
		return exitWith(ExitInvalidArgs, fmt.Errorf("worker count must be a positive integer, got %q", args[2]))
	}

	cfg := config.Default()
	if f.configPath != "" {
		cfg, err = config.LoadFromFile(f.configPath)
		if err != nil {
			return exitWith(ExitInvalidArgs, err)
		}
	}
	if err := cfg.LoadFromEnv(); err != nil {
		return exitWith(ExitInvalidArgs, err)
	}

	override := config.Config{
		URL:              args[0],
		Output:           args[1],
		Workers:          workers,
		Progress:         f.progress,
		Preallocate:      f.preallocate,
		CheckpointBucket: f.checkpointBucket,
		LogLevel:         f.logLevel,
		HTTP:             config.HTTPConfig{Timeout: f.timeout},
	}
	if f.chunkSize != "" {
		size, err := progress.ParseBytes(f.chunkSize)
		if err != nil {
			return exitWith(ExitInvalidArgs, fmt.Errorf("invalid chunk size: %w", err))
		}
		override.ChunkSize = size
	}
	cfg = cfg.Merge(override)
	if err := cfg.Validate(); err != nil {
		return exitWith(ExitInvalidArgs, err)
	}

	log, err := logging.New(cfg.LogLevel, stderr)
	if err != nil {
		return exitWith(ExitInvalidArgs, err)
	}

	// Setup context with cancellation
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	// Handle signals for graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			fmt.Fprintln(stderr, "\n[pfetch] Received interrupt, saving progress...")
			cancel()
		case <-ctx.Done():
		}
	}()

	mgr, err := checkpoint.OpenManager(ctx, cfg.CheckpointBucket, cfg.Output, checkpoint.WithLogger(log))
	if err != nil {
		return exitWith(ExitStorageError, err)
	}
	defer mgr.Close()

	opts := downloader.Options{
		Workers:     cfg.Workers,
		ChunkSize:   cfg.ChunkSize,
		Preallocate: cfg.Preallocate,
		Checkpoints: mgr,
		HTTPOptions: pfhttp.Options{
			MaxIdleConnsPerHost: cfg.HTTP.MaxIdleConnsPerHost,
			Timeout:             cfg.HTTP.Timeout,
			BufferSize:          int(cfg.ChunkSize),
			UserAgent:           "pfetch/" + version,
		},
		Logger: &log,
	}
	if cfg.Progress {
		opts.Progress = stderr
	}

	res, err := downloader.Download(ctx, cfg.URL, cfg.Output, opts)
	if err == nil {
		fmt.Fprintf(stderr, "[pfetch] Download complete: %s (%s)\n", cfg.Output, progress.FormatBytes(res.Length))
		return nil
	}

	if errors.Is(err, downloader.ErrInterrupted) {
		var done int64
		for _, c := range res.Partitions {
			done += c.Offset - c.Start
		}
		fmt.Fprintf(stderr, "[pfetch] Download interrupted at %s of %s, progress saved to %s\n",
			progress.FormatBytes(done), progress.FormatBytes(res.Length), mgr.Key())
		fmt.Fprintf(stderr, "[pfetch] Run the same command with %d workers to resume\n", cfg.Workers)
		return exitWith(ExitInterrupted, nil)
	}

	// Interrupted before any partition started, e.g. during the HEAD request.
	if ctx.Err() != nil && errors.Is(err, context.Canceled) {
		fmt.Fprintln(stderr, "[pfetch] Download interrupted before any data was written")
		return exitWith(ExitInterrupted, nil)
	}

	return exitWith(exitCode(err), err)
}

// exitCode maps a download error to the process exit code.
func exitCode(err error) int {
	var pfe *downloader.PartitionsFailedError
	switch {
	case errors.Is(err, downloader.ErrProbe), errors.Is(err, downloader.ErrUnknownLength):
		return ExitSourceNotAccess
	case errors.Is(err, pfhttp.ErrRangeNotSupported):
		return ExitRangeNotSupported
	case errors.As(err, &pfe):
		return ExitPartitionsFailed
	case errors.Is(err, store.ErrCreate), errors.Is(err, store.ErrMap), errors.Is(err, downloader.ErrCheckpoint):
		return ExitStorageError
	default:
		return ExitGeneralError
	}
}
