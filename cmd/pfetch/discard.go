package main

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ligustah/pfetch/internal/checkpoint"
)

func newDiscardCmd() *cobra.Command {
	var (
		bucketURL  string
		removeFile bool
		force      bool
	)

	cmd := &cobra.Command{
		Use:   "discard <destination-path>",
		Short: "Forget the saved progress of an interrupted download",
		Long: `Forget the saved progress of an interrupted download.

The next download to the same destination starts from the beginning. With
--remove-file the partially written destination file is deleted as well.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dest := args[0]
			out := cmd.OutOrStdout()

			// Confirm deletion unless --force
			if removeFile && !force {
				fmt.Fprintf(out, "Delete partial file %s? [y/N]: ", dest)
				reader := bufio.NewReader(cmd.InOrStdin())
				response, _ := reader.ReadString('\n')
				response = strings.TrimSpace(strings.ToLower(response))
				if response != "y" && response != "yes" {
					fmt.Fprintln(cmd.ErrOrStderr(), "Cancelled")
					return nil
				}
			}

			mgr, err := checkpoint.OpenManager(cmd.Context(), bucketURL, dest)
			if err != nil {
				return exitWith(ExitStorageError, err)
			}
			defer mgr.Close()

			if err := mgr.Clear(cmd.Context()); err != nil {
				return exitWith(ExitStorageError, err)
			}
			fmt.Fprintf(out, "Removed checkpoint %s\n", mgr.Key())

			if removeFile {
				if err := os.Remove(dest); err != nil && !errors.Is(err, fs.ErrNotExist) {
					return exitWith(ExitStorageError, err)
				}
				fmt.Fprintf(out, "Removed %s\n", dest)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&bucketURL, "checkpoint-bucket", "", "Bucket URL for checkpoints (default: next to the destination)")
	cmd.Flags().BoolVar(&removeFile, "remove-file", false, "Also delete the partially written destination file")
	cmd.Flags().BoolVar(&force, "force", false, "Skip confirmation prompt")
	return cmd
}
