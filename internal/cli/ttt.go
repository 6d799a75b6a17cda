package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/gfstore/internal/store"
)

// TTTResult lists the tables built for a store.
type TTTResult struct {
	Dir    string   `json:"dir"`
	Phases []string `json:"phases"`
}

// NewTTTCommand creates the ttt command.
func NewTTTCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ttt <dir>",
		Short: "Build travel-time tables",
		Long: `Build the travel-time table of every phase declared by the store
configuration. Existing tables are replaced. Building a store makes any
missing tables first, so this is only needed after editing phases.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTTT(rootOpts, args[0], cmd)
		},
	}
	return cmd
}

func runTTT(opts *RootOptions, dir string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	st, err := store.Open(dir, store.ModeReadWrite)
	if err != nil {
		return fail(formatter, "failed to open store", err)
	}
	defer st.Close()

	if err := st.MakeTTT(); err != nil {
		return fail(formatter, "failed to build travel-time tables", err)
	}

	result := TTTResult{Dir: dir, Phases: st.PhaseIDs()}
	if formatter.Format == "json" {
		return formatter.Success(result)
	}
	fmt.Fprintf(formatter.Writer, "✓ Built %d travel-time table(s): %v\n", len(result.Phases), result.Phases)
	return nil
}
