package cli

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/gfstore/internal/compare"
	"github.com/roach88/gfstore/internal/engine"
	"github.com/roach88/gfstore/internal/gf"
	"github.com/roach88/gfstore/internal/store"
)

// CompareOptions holds flags for the compare command.
type CompareOptions struct {
	*RootOptions
	Source    string
	Targets   string
	Amplitude float64
	Phase     float64
}

// CompareResult holds the per-target agreement of two stores.
type CompareResult struct {
	Reference  string              `json:"reference"`
	Candidate  string              `json:"candidate"`
	Tolerance  compare.Tolerance   `json:"tolerance"`
	Agreements []compare.Agreement `json:"agreements"`
	OK         bool                `json:"ok"`
}

// NewCompareCommand creates the compare command.
func NewCompareCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompareOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compare <dirA> <dirB>",
		Short: "Check that two stores give the same seismograms",
		Long: `Synthesise the same source and targets from two stores and compare the
traces. The first store is the reference. Peak and spectral amplitudes must
agree within --amplitude (relative) and spectral phases within --phase
(radians). Any target store ids are ignored.

Exits 1 if any trace disagrees.

Example:
  gfstore compare ./crust-qseis ./crust-qseis2d --source event.yaml --targets stations.yaml`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompare(opts, args[0], args[1], cmd)
		},
	}

	def := compare.DefaultTolerance()
	cmd.Flags().StringVar(&opts.Source, "source", "", "path to source YAML (required)")
	cmd.Flags().StringVar(&opts.Targets, "targets", "", "path to targets YAML (required)")
	cmd.Flags().Float64Var(&opts.Amplitude, "amplitude", def.Amplitude, "relative amplitude tolerance")
	cmd.Flags().Float64Var(&opts.Phase, "phase", def.Phase, "phase tolerance in radians")
	_ = cmd.MarkFlagRequired("source")
	_ = cmd.MarkFlagRequired("targets")

	return cmd
}

func runCompare(opts *CompareOptions, dirA, dirB string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	source, targets, err := loadQuery(opts.Source, opts.Targets)
	if err != nil {
		return fail(formatter, "failed to load query", err)
	}
	for i := range targets {
		targets[i].StoreID = ""
	}

	refs, err := synthesise(cmd.Context(), dirA, source, targets)
	if err != nil {
		return fail(formatter, "reference query failed", err)
	}
	cands, err := synthesise(cmd.Context(), dirB, source, targets)
	if err != nil {
		return fail(formatter, "candidate query failed", err)
	}

	tol := compare.Tolerance{Amplitude: opts.Amplitude, Phase: opts.Phase}
	ags, err := compare.Traces(refs, cands, tol)
	if err != nil {
		return fail(formatter, "comparison failed", err)
	}
	result := CompareResult{Reference: dirA, Candidate: dirB, Tolerance: tol, Agreements: ags, OK: compare.AllOK(ags)}

	if !result.OK {
		n := 0
		for _, ag := range ags {
			if !ag.OK {
				n++
			}
		}
		msg := fmt.Sprintf("%d of %d trace(s) disagree", n, len(ags))
		if formatter.Format == "json" {
			_ = formatter.Error(ErrCodeCompareMismatch, msg, result)
		} else {
			printAgreements(formatter, "✗ "+msg, result)
		}
		return NewExitError(ExitFailure, fmt.Sprintf("%s: %s", ErrCodeCompareMismatch, msg))
	}

	if formatter.Format == "json" {
		return formatter.Success(result)
	}
	printAgreements(formatter, fmt.Sprintf("✓ %d trace(s) agree", len(ags)), result)
	return nil
}

// synthesise queries a single store.
func synthesise(ctx context.Context, dir string, source gf.Source, targets []gf.Target) ([]*gf.Trace, error) {
	st, err := store.Open(dir, store.ModeRead)
	if err != nil {
		return nil, err
	}
	defer st.Close()

	eng, err := engine.New(st)
	if err != nil {
		return nil, err
	}
	resp, err := eng.Process(ctx, source, targets)
	if err != nil {
		return nil, err
	}
	return resp.Traces, nil
}

func printAgreements(formatter *OutputFormatter, headline string, r CompareResult) {
	fmt.Fprintln(formatter.Writer, headline)
	tw := tabwriter.NewWriter(formatter.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "  CODES\tPEAK\tSPECTRAL\tPHASE\tOK")
	for _, ag := range r.Agreements {
		fmt.Fprintf(tw, "  %s\t%.4f\t%.4f\t%.4f\t%t\n", ag.Codes, ag.PeakError, ag.SpectralError, ag.PhaseError, ag.OK)
	}
	_ = tw.Flush()
}
