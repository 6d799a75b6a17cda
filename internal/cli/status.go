package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/gfstore/internal/store"
)

// StatusResult reports the build state of a store.
type StatusResult struct {
	Dir       string             `json:"dir"`
	Stats     store.Stats        `json:"stats"`
	Complete  bool               `json:"complete"`
	LastBuild *store.BuildRecord `json:"last_build,omitempty"`
}

// NewStatusCommand creates the status command.
func NewStatusCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status <dir>",
		Short: "Show how much of a store is built",
		Long: `Show per source depth how many records are built, the travel-time
tables present and the most recent build recorded in the journal.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(rootOpts, args[0], cmd)
		},
	}
	return cmd
}

func runStatus(opts *RootOptions, dir string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	st, err := store.Open(dir, store.ModeRead)
	if err != nil {
		return fail(formatter, "failed to open store", err)
	}
	defer st.Close()

	stats, err := st.Stats()
	if err != nil {
		return fail(formatter, "failed to read store", err)
	}
	result := StatusResult{Dir: dir, Stats: stats, Complete: stats.Complete()}

	// The journal only exists once a build has started.
	if _, err := os.Stat(st.JournalPath()); err == nil {
		journal, err := store.OpenJournal(st.JournalPath())
		if err != nil {
			return fail(formatter, "failed to open journal", err)
		}
		defer journal.Close()
		if result.LastBuild, err = journal.LatestBuild(cmd.Context()); err != nil {
			return fail(formatter, "failed to read journal", err)
		}
	} else if !errors.Is(err, fs.ErrNotExist) {
		return fail(formatter, "failed to open journal", err)
	}

	if formatter.Format == "json" {
		return formatter.Success(result)
	}
	printStatus(formatter, result)
	return nil
}

func printStatus(formatter *OutputFormatter, r StatusResult) {
	mark := "✓"
	if !r.Complete {
		mark = "✗"
	}
	fmt.Fprintf(formatter.Writer, "%s Store %s (%s): %d of %d records built\n",
		mark, r.Stats.ID, r.Stats.State, r.Stats.Built, r.Stats.Records)
	fmt.Fprintf(formatter.Writer, "  phases: %v\n", r.Stats.Phases)
	fmt.Fprintf(formatter.Writer, "  traces: %d bytes\n", r.Stats.TracesBytes)
	if b := r.LastBuild; b != nil {
		fmt.Fprintf(formatter.Writer, "  last build: %s %s (started %s)\n",
			b.ID, b.Status, b.StartedAt.Format("2006-01-02 15:04:05"))
	}

	tw := tabwriter.NewWriter(formatter.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "  DEPTH\tBUILT\tMISSING\tZERO\tSHORT\tDATA")
	for _, p := range r.Stats.Partitions {
		fmt.Fprintf(tw, "  %g\t%d\t%d\t%d\t%d\t%d\n", p.Depth, p.Built(), p.Missing, p.Zero, p.Short, p.Data)
	}
	_ = tw.Flush()
}
