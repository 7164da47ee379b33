// Command pfetch downloads a file over HTTP with parallel range requests and
// resumes interrupted downloads.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

// Exit codes
const (
	ExitSuccess           = 0
	ExitGeneralError      = 1
	ExitInvalidArgs       = 2
	ExitSourceNotAccess   = 3
	ExitRangeNotSupported = 4
	ExitStorageError      = 5
	ExitPartitionsFailed  = 6
	ExitInterrupted       = 7
)

var version = "dev"

// exitError carries the exit code of a failed command. A nil err means the
// command already reported the problem.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit status %d", e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error {
	return e.err
}

func exitWith(code int, err error) error {
	return &exitError{code: code, err: err}
}

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	root := newRootCmd()
	root.SetArgs(args)
	root.SetIn(stdin)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	if err == nil {
		return ExitSuccess
	}

	var ee *exitError
	if errors.As(err, &ee) {
		if ee.err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", ee.err)
		}
		return ee.code
	}

	// Anything else comes from argument or flag parsing.
	fmt.Fprintf(stderr, "Error: %v\n", err)
	fmt.Fprintf(stderr, "Run '%s --help' for usage.\n", root.Name())
	return ExitInvalidArgs
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "pfetch",
		Short: "Parallel, resumable HTTP file fetcher",
		Long: `pfetch downloads a file over HTTP by splitting it into one byte range per
worker and writing every range straight into a pre-sized local file.

An interrupted download (Ctrl-C) leaves a <destination>.pfetch-resume file
next to the destination. Running the same download again with the same
worker count continues where it stopped.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.Help()
			return exitWith(ExitInvalidArgs, nil)
		},
	}

	root.AddCommand(
		newDownloadCmd(),
		newStatusCmd(),
		newDiscardCmd(),
	)
	return root
}
