package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/roach88/gfstore/internal/cli"
)

func main() {
	os.Exit(run(context.Background(), os.Args[1:]))
}

// run executes the CLI and maps the outcome to a process exit code.
func run(ctx context.Context, args []string) int {
	root := cli.NewRootCommand()
	root.SetArgs(args)

	err := root.ExecuteContext(ctx)
	if err == nil {
		return cli.ExitSuccess
	}

	// ExitErrors have already been reported on stdout. Anything else is a
	// usage error from flag or argument parsing.
	var exitErr *cli.ExitError
	if errors.As(err, &exitErr) {
		fmt.Fprintln(os.Stderr, exitErr.Error())
		return exitErr.Code
	}
	fmt.Fprintln(os.Stderr, "Error:", err)
	return cli.ExitCommandError
}
