package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ligustah/pfetch/internal/checkpoint"
	"github.com/ligustah/pfetch/internal/progress"
)

func newStatusCmd() *cobra.Command {
	var bucketURL string

	cmd := &cobra.Command{
		Use:   "status <destination-path>",
		Short: "Show the saved progress of an interrupted download",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dest := args[0]
			out := cmd.OutOrStdout()

			mgr, err := checkpoint.OpenManager(cmd.Context(), bucketURL, dest)
			if err != nil {
				return exitWith(ExitStorageError, err)
			}
			defer mgr.Close()

			cp, err := mgr.Load(cmd.Context())
			if err != nil {
				return exitWith(ExitStorageError, err)
			}
			if cp == nil {
				fmt.Fprintf(out, "No saved progress for %s\n", dest)
				return nil
			}

			fmt.Fprintf(out, "File:       %s\n", dest)
			fmt.Fprintf(out, "Checkpoint: %s\n", mgr.Key())
			fmt.Fprintf(out, "Partitions: %d\n", cp.Count)

			var done, total int64
			for i, c := range cp.Cursors {
				size := c.End - c.Start + 1
				written := c.Offset - c.Start
				state := "in progress"
				switch {
				case c.Done():
					state = "done"
				case written == 0:
					state = "pending"
				}
				fmt.Fprintf(out, "  [%d] %s / %s (%s)\n", i, progress.FormatBytes(written), progress.FormatBytes(size), state)
				done += written
				total += size
			}

			percent := 0
			if total > 0 {
				percent = int(done * 100 / total)
			}
			fmt.Fprintf(out, "Total:      %s / %s (%d%%)\n", progress.FormatBytes(done), progress.FormatBytes(total), percent)
			return nil
		},
	}

	cmd.Flags().StringVar(&bucketURL, "checkpoint-bucket", "", "Bucket URL for checkpoints (default: next to the destination)")
	return cmd
}
