package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/gfstore/internal/builder"
)

// BuildOptions holds flags for the build command.
type BuildOptions struct {
	*RootOptions
	Workers int
	Force   bool
	Timeout time.Duration
	KeepTmp bool

	// RunIDs allows overriding the build run id generator (for testing).
	// If nil, defaults to UUIDv7Generator.
	RunIDs builder.RunIDGenerator
}

// NewBuildCommand creates the build command.
func NewBuildCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &BuildOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "build <dir>",
		Short: "Compute the missing records of a store",
		Long: `Compute Green's functions for every source depth of a store that is
not yet complete, running the configured modelling code.

Source depths are built by a pool of workers. A depth whose program fails
is reported and the build continues; a modelling program that is not
installed aborts the build. Ctrl-C stops the build after the running
depths have been committed. Every build is recorded in the store's
journal.

Example:
  gfstore build ./crust --workers 4
  gfstore build ./crust --force --timeout 10m`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBuild(opts, args[0], cmd)
		},
	}

	cmd.Flags().IntVar(&opts.Workers, "workers", 1, "number of concurrent jobs")
	cmd.Flags().BoolVar(&opts.Force, "force", false, "rebuild complete source depths")
	cmd.Flags().DurationVar(&opts.Timeout, "timeout", 0, "limit per program run (0 for none)")
	cmd.Flags().BoolVar(&opts.KeepTmp, "keep-tmp", false, "keep job work directories")

	return cmd
}

func runBuild(opts *BuildOptions, dir string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	if opts.Workers < 1 {
		_ = formatter.Error(ErrCodeInvalidArgument, fmt.Sprintf("--workers must be at least 1, got %d", opts.Workers), nil)
		return NewExitError(ExitCommandError, fmt.Sprintf("%s: invalid --workers", ErrCodeInvalidArgument))
	}

	// Setup signal handling for graceful shutdown
	// Use command's context if available (for testing), otherwise create one
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan) // Prevent signal handler leak

	go func() {
		select {
		case sig := <-sigChan:
			slog.Info("received signal, stopping build", "signal", sig)
			cancel()
		case <-ctx.Done():
			// Parent context cancelled (e.g., from test)
		}
	}()

	report, err := builder.BuildDir(ctx, dir, opts.registry(), builder.Options{
		Workers: opts.Workers,
		Force:   opts.Force,
		Timeout: opts.Timeout,
		KeepTmp: opts.KeepTmp,
		RunIDs:  opts.RunIDs,
	})
	if report == nil {
		return fail(formatter, "build failed", err)
	}
	if err != nil {
		code, exit := classify(err)
		_ = formatter.Error(code, fmt.Sprintf("build %s: %v", report.Status, err), report)
		if formatter.Format != "json" {
			printReport(formatter, report)
		}
		return WrapExitError(exit, fmt.Sprintf("%s: build %s", code, report.Status), err)
	}

	if formatter.Format == "json" {
		return formatter.Success(report)
	}
	printReport(formatter, report)
	return nil
}

func printReport(formatter *OutputFormatter, report *builder.Report) {
	mark := "✓"
	if report.Failed > 0 || report.Pending > 0 {
		mark = "✗"
	}
	fmt.Fprintf(formatter.Writer, "%s Build %s %s: %d built, %d skipped, %d failed, %d pending (%s)\n",
		mark, report.RunID, report.Status,
		report.Built, report.Skipped, report.Failed, report.Pending,
		report.Duration.Round(time.Millisecond))
	for _, j := range report.FailedJobs() {
		fmt.Fprintf(formatter.Writer, "  depth %g m: %s\n", j.SourceDepth, j.Error)
	}
}
