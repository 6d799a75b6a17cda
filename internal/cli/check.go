package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"

	"github.com/spf13/cobra"

	"github.com/roach88/gfstore/internal/config"
)

// CheckResult holds configuration check results.
type CheckResult struct {
	Valid   bool                     `json:"valid"`
	ID      string                   `json:"id,omitempty"`
	Records int                      `json:"records,omitempty"`
	Errors  []config.ValidationError `json:"errors,omitempty"`
}

// NewCheckCommand creates the check command.
func NewCheckCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check <config.yaml>",
		Short: "Validate a store configuration",
		Long: `Validate a store configuration without creating anything.

Checks the document against the schema, then the grid, sampling, earth
models, phase definitions and modelling code. All problems are reported
at once.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runCheck(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	cfg, err := config.Load(path)
	if err == nil {
		formatter.VerboseLog("Loaded configuration %s (%d records)", cfg.ID, cfg.NRecords())
		err = cfg.Validate(opts.registry())
	}

	var verrs *config.ValidationErrors
	switch {
	case err == nil:
		return outputCheckSuccess(formatter, cfg)
	case errors.As(err, &verrs):
		return outputValidationErrors(formatter, verrs.Errors)
	case errors.Is(err, fs.ErrNotExist):
		_ = formatter.Error(ErrCodeNotFound, err.Error(), nil)
		return WrapExitError(ExitCommandError, fmt.Sprintf("%s: config not found", ErrCodeNotFound), err)
	default:
		// Undecodable YAML is a validation failure of the document.
		return outputValidationErrors(formatter, []config.ValidationError{{
			Field:   "config",
			Message: err.Error(),
			Code:    config.ErrSchema,
		}})
	}
}

// outputCheckSuccess outputs a successful check.
func outputCheckSuccess(formatter *OutputFormatter, cfg *config.Config) error {
	if formatter.Format == "json" {
		return formatter.Success(CheckResult{Valid: true, ID: cfg.ID, Records: cfg.NRecords()})
	}

	fmt.Fprintf(formatter.Writer, "✓ Configuration %s valid (%d records)\n", cfg.ID, cfg.NRecords())
	return nil
}

// outputValidationErrors outputs multiple validation errors.
func outputValidationErrors(formatter *OutputFormatter, errs []config.ValidationError) error {
	if formatter.Format == "json" {
		response := CLIResponse{
			Status: "error",
			Data:   CheckResult{Valid: false, Errors: errs},
			Error: &CLIError{
				Code:    ErrCodeConfigInvalid,
				Message: errs[0].Message,
			},
		}

		encoder := json.NewEncoder(formatter.Writer)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(response); err != nil {
			return err
		}

		// Validation failures = exit code 1
		return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
	}

	// Text format
	fmt.Fprintln(formatter.Writer, "✗ Validation failed")
	fmt.Fprintln(formatter.Writer)

	for _, err := range errs {
		if err.Line > 0 {
			fmt.Fprintf(formatter.Writer, "line %d\n", err.Line)
		}
		fmt.Fprintf(formatter.Writer, "  %s %s: %s\n\n", err.Code, err.Field, err.Message)
	}

	return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
}
