package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"

	"github.com/roach88/gfstore/internal/backend"
	"github.com/roach88/gfstore/internal/builder"
	"github.com/roach88/gfstore/internal/config"
	"github.com/roach88/gfstore/internal/engine"
	"github.com/roach88/gfstore/internal/store"
)

// Exit codes for CLI commands.
const (
	ExitSuccess            = 0 // Successful execution
	ExitFailure            = 1 // Validation failure, failed jobs, comparison mismatch, query outside the grid
	ExitCommandError       = 2 // Command error (invalid paths, locked store, bad arguments, etc.)
	ExitBackendUnavailable = 3 // Modelling program not installed
)

// Error codes reported in CLI output.
const (
	ErrCodeGeneric         = "E001" // Generic/unknown error
	ErrCodeInvalidArgument = "E002" // Bad flag or argument value
	ErrCodeNotFound        = "E005" // Path not found
	ErrCodeConfigInvalid   = "E010" // Configuration failed validation
	ErrCodeStoreExists     = "E020" // Store directory already holds a store
	ErrCodeStoreLocked     = "E021" // Store is held by another writer
	ErrCodeStoreCorrupt    = "E022" // Store files inconsistent with the configuration
	ErrCodeBuildFailed     = "E030" // Some partitions failed
	ErrCodeBackendMissing  = "E031" // Modelling program not installed
	ErrCodeBuildCancelled  = "E032" // Build interrupted
	ErrCodeOutOfGrid       = "E040" // Query outside the grid
	ErrCodeNotBuilt        = "E041" // Query needs unbuilt records
	ErrCodeQueryFailed     = "E042" // Other query failure
	ErrCodeCompareMismatch = "E050" // Traces disagree beyond tolerance
)

// ExitError represents an error with a specific exit code.
// Use this to return errors with meaningful exit codes from CLI commands.
type ExitError struct {
	Code    int    // Exit code (use ExitFailure or ExitCommandError)
	Message string // Error message
	Err     error  // Underlying error (optional)
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError creates a new ExitError with the given code and message.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError wraps an existing error with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error.
// Returns ExitFailure (1) if the error is not an ExitError.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// classify maps a domain error to an output code and an exit code.
func classify(err error) (code string, exit int) {
	switch {
	case backend.IsUnavailable(err):
		return ErrCodeBackendMissing, ExitBackendUnavailable
	case config.IsValidationError(err):
		return ErrCodeConfigInvalid, ExitFailure
	case builder.IsBuildFailed(err):
		return ErrCodeBuildFailed, ExitFailure
	case errors.Is(err, context.Canceled):
		return ErrCodeBuildCancelled, ExitFailure
	case engine.IsOutOfGrid(err):
		return ErrCodeOutOfGrid, ExitFailure
	case engine.IsNotBuilt(err):
		return ErrCodeNotBuilt, ExitFailure
	case engine.IsQueryError(err):
		return ErrCodeQueryFailed, ExitFailure
	case store.IsLockError(err):
		return ErrCodeStoreLocked, ExitCommandError
	case store.IsCorruptionError(err):
		return ErrCodeStoreCorrupt, ExitCommandError
	case errors.Is(err, store.ErrExists):
		return ErrCodeStoreExists, ExitCommandError
	case errors.Is(err, fs.ErrNotExist):
		return ErrCodeNotFound, ExitCommandError
	default:
		return ErrCodeGeneric, ExitCommandError
	}
}

// fail reports err through the formatter and returns the matching
// ExitError.
func fail(f *OutputFormatter, message string, err error) error {
	code, exit := classify(err)
	_ = f.Error(code, fmt.Sprintf("%s: %v", message, err), nil)
	return WrapExitError(exit, fmt.Sprintf("%s: %s", code, message), err)
}

// OutputFormatter handles JSON vs text output for CLI commands.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer // Separate writer for verbose/diagnostic output (defaults to Writer)
	Verbose   bool
}

// CLIResponse is the standard JSON response format for CLI output.
type CLIResponse struct {
	Status string    `json:"status"`          // "ok" or "error"
	Data   any       `json:"data,omitempty"`  // success payload
	Error  *CLIError `json:"error,omitempty"` // error details
}

// CLIError is the error structure for CLI responses.
type CLIError struct {
	Code    string `json:"code"`              // "E001", "E002", etc.
	Message string `json:"message"`           // human-readable message
	Details any    `json:"details,omitempty"` // additional context
}

// Success outputs a successful result in the configured format.
func (f *OutputFormatter) Success(data any) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "ok",
			Data:   data,
		})
	}

	// Human-readable text output
	fmt.Fprintln(f.Writer, data)
	return nil
}

// Error outputs an error in the configured format.
func (f *OutputFormatter) Error(code, message string, details any) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "error",
			Error: &CLIError{
				Code:    code,
				Message: message,
				Details: details,
			},
		})
	}

	// Human-readable error
	fmt.Fprintf(f.Writer, "Error [%s]: %s\n", code, message)
	if f.Verbose && details != nil {
		fmt.Fprintf(f.Writer, "Details: %v\n", details)
	}
	return nil
}

// VerboseLog outputs a message only if verbose mode is enabled.
// Uses ErrWriter if set, otherwise falls back to Writer.
// When format is JSON, verbose logs go to ErrWriter to avoid corrupting JSON output.
func (f *OutputFormatter) VerboseLog(format string, args ...any) {
	if !f.Verbose {
		return
	}
	w := f.ErrWriter
	if w == nil {
		w = f.Writer
	}
	fmt.Fprintf(w, format+"\n", args...)
}
