// Command pglitenv runs a disposable PGlite engine from the command line,
// for local development and for CI jobs that need a database outside of Go
// tests.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
)

// Version, Commit, and BuildDate are overridden at build time.
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"
)

func main() {
	runMain(context.Background(), os.Args, os.Stdout, os.Stderr, os.Exit)
}

// execute runs the CLI command with the provided args and output writers.
func execute(ctx context.Context, args []string, stdout io.Writer, stderr io.Writer) error {
	cmd := newRootCmd()
	if len(args) > 1 {
		cmd.SetArgs(args[1:])
	} else {
		cmd.SetArgs([]string{})
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	return cmd.ExecuteContext(ctx)
}

// runMain executes the CLI, exiting with status 1 on errors.
func runMain(ctx context.Context, args []string, stdout io.Writer, stderr io.Writer, exit func(int)) {
	if err := execute(ctx, args, stdout, stderr); err != nil {
		_, _ = fmt.Fprintln(stderr, "Error:", err)
		exit(1)
	}
}
