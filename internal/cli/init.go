package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/gfstore/internal/config"
	"github.com/roach88/gfstore/internal/store"
)

// InitOptions holds flags for the init command.
type InitOptions struct {
	*RootOptions
	Config string
	Extras []string // id=file
}

// InitResult describes a newly created store.
type InitResult struct {
	Dir     string   `json:"dir"`
	ID      string   `json:"id"`
	Records int      `json:"records"`
	Extras  []string `json:"extras,omitempty"`
}

// NewInitCommand creates the init command.
func NewInitCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &InitOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "init <dir>",
		Short: "Create an empty store",
		Long: `Create an empty store directory from a configuration.

Every grid record starts unbuilt. Backend settings may be supplied per
modelling code with --extra; settings for a registered code are checked
against the configuration before anything is written.

Example:
  gfstore init ./crust --config crust.yaml
  gfstore init ./crust --config crust.yaml --extra qseis=qseis.yaml`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Config, "config", "", "path to store configuration (required)")
	cmd.Flags().StringArrayVar(&opts.Extras, "extra", nil, "backend settings as id=file (repeatable)")
	_ = cmd.MarkFlagRequired("config")

	return cmd
}

func runInit(opts *InitOptions, dir string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	reg := opts.registry()

	cfg, err := config.Load(opts.Config)
	if err != nil {
		return fail(formatter, "failed to load config", err)
	}
	if err := cfg.Validate(reg); err != nil {
		return fail(formatter, "invalid config", err)
	}

	extras := make(map[string][]byte, len(opts.Extras))
	for _, arg := range opts.Extras {
		id, path, ok := strings.Cut(arg, "=")
		if !ok || id == "" || path == "" {
			_ = formatter.Error(ErrCodeInvalidArgument, fmt.Sprintf("invalid --extra %q: want id=file", arg), nil)
			return NewExitError(ExitCommandError, fmt.Sprintf("%s: invalid --extra %q", ErrCodeInvalidArgument, arg))
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return fail(formatter, "failed to read extra "+id, err)
		}
		if reg.Has(id) {
			f, _ := reg.Get(id)
			extra, err := f.DecodeExtra(data)
			if err == nil && id == cfg.ModellingCodeID {
				err = extra.Validate(cfg)
			}
			if err != nil {
				_ = formatter.Error(ErrCodeConfigInvalid, fmt.Sprintf("invalid %s settings: %v", id, err), nil)
				return WrapExitError(ExitFailure, fmt.Sprintf("%s: invalid %s settings", ErrCodeConfigInvalid, id), err)
			}
		}
		extras[id] = data
		formatter.VerboseLog("Using %s settings from %s", id, path)
	}

	if err := store.CreateEditables(dir, cfg, extras); err != nil {
		return fail(formatter, "failed to create store", err)
	}

	result := InitResult{Dir: dir, ID: cfg.ID, Records: cfg.NRecords()}
	for id := range extras {
		result.Extras = append(result.Extras, id)
	}
	if formatter.Format == "json" {
		return formatter.Success(result)
	}
	fmt.Fprintf(formatter.Writer, "✓ Created store %s in %s (%d records)\n", result.ID, dir, result.Records)
	return nil
}
