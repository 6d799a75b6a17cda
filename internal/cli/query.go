package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/gfstore/internal/engine"
	"github.com/roach88/gfstore/internal/gf"
	"github.com/roach88/gfstore/internal/store"
)

// QueryOptions holds flags for the query command.
type QueryOptions struct {
	*RootOptions
	Source  string
	Targets string
}

// NewQueryCommand creates the query command.
func NewQueryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &QueryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "query <dir>...",
		Short: "Synthesise seismograms from built stores",
		Long: `Synthesise one trace per target for a source, interpolating the Green's
functions of one or more built stores. Targets select a store by id; the
first store is used when they name none.

With --format json the traces are printed in full; the text format prints
a summary per trace.

Example:
  gfstore query ./crust --source event.yaml --targets stations.yaml
  gfstore query ./crust ./mantle --source event.yaml --targets stations.yaml --format json`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Source, "source", "", "path to source YAML (required)")
	cmd.Flags().StringVar(&opts.Targets, "targets", "", "path to targets YAML (required)")
	_ = cmd.MarkFlagRequired("source")
	_ = cmd.MarkFlagRequired("targets")

	return cmd
}

func runQuery(opts *QueryOptions, dirs []string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	source, targets, err := loadQuery(opts.Source, opts.Targets)
	if err != nil {
		return fail(formatter, "failed to load query", err)
	}

	stores, err := openStores(dirs)
	if err != nil {
		return fail(formatter, "failed to open store", err)
	}
	defer closeStores(stores)

	eng, err := engine.New(stores...)
	if err != nil {
		return fail(formatter, "failed to start engine", err)
	}

	formatter.VerboseLog("Querying %d target(s) from %d store(s)", len(targets), len(stores))
	resp, err := eng.Process(cmd.Context(), source, targets)
	if err != nil {
		return fail(formatter, "query failed", err)
	}

	if formatter.Format == "json" {
		return formatter.Success(resp)
	}

	fmt.Fprintf(formatter.Writer, "✓ Synthesised %d trace(s)\n", len(resp.Traces))
	tw := tabwriter.NewWriter(formatter.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "  CODES\tTMIN\tDELTAT\tSAMPLES\tPEAK")
	for _, tr := range resp.Traces {
		fmt.Fprintf(tw, "  %s\t%g\t%g\t%d\t%.6g\n", tr.Codes, tr.Tmin, tr.Deltat, len(tr.Samples), tr.AbsMax())
	}
	return tw.Flush()
}

// loadQuery reads the source and target documents.
func loadQuery(sourcePath, targetsPath string) (gf.Source, []gf.Target, error) {
	source, err := gf.LoadSource(sourcePath)
	if err != nil {
		return nil, nil, err
	}
	targets, err := gf.LoadTargets(targetsPath)
	if err != nil {
		return nil, nil, err
	}
	return source, targets, nil
}

// openStores opens every directory for reading. On error the stores
// already opened are closed.
func openStores(dirs []string) ([]*store.Store, error) {
	stores := make([]*store.Store, 0, len(dirs))
	for _, dir := range dirs {
		st, err := store.Open(dir, store.ModeRead)
		if err != nil {
			closeStores(stores)
			return nil, err
		}
		stores = append(stores, st)
	}
	return stores, nil
}

func closeStores(stores []*store.Store) {
	for _, st := range stores {
		_ = st.Close()
	}
}
