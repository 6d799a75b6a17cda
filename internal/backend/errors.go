package backend

import (
	"errors"
	"fmt"
	"strings"
)

// startFailureSignature appears in every message about a program that could
// not be started.
const startFailureSignature = "could not start "

// UnavailableError indicates that a modelling program is not installed or
// cannot be started. It aborts a build.
type UnavailableError struct {
	Family  string
	Program string
	Err     error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("%s: %s%s: %v", e.Family, startFailureSignature, e.Program, e.Err)
}

func (e *UnavailableError) Unwrap() error { return e.Err }

// ExecutionError indicates that a program ran but failed: non-zero exit,
// timeout, or missing or malformed output.
type ExecutionError struct {
	Family  string
	Program string

	// ExitCode is the program's exit status, or -1 if it did not exit.
	ExitCode int

	// Reason is a human-readable description.
	Reason string

	// Stderr is the tail of the program's standard error.
	Stderr string

	Err error
}

func (e *ExecutionError) Error() string {
	msg := fmt.Sprintf("%s: %s: %s", e.Family, e.Program, e.Reason)
	if e.Stderr != "" {
		msg += fmt.Sprintf(" (stderr: %s)", e.Stderr)
	}
	return msg
}

func (e *ExecutionError) Unwrap() error { return e.Err }

// IsUnavailable returns true if err reports a program that could not be
// started, either as an UnavailableError or, for untyped errors, by its
// message signature. An ExecutionError never counts: the program ran, and
// its stderr may contain any text.
func IsUnavailable(err error) bool {
	if err == nil {
		return false
	}
	var ue *UnavailableError
	if errors.As(err, &ue) {
		return true
	}
	var ee *ExecutionError
	if errors.As(err, &ee) {
		return false
	}
	return strings.Contains(err.Error(), startFailureSignature)
}

// IsExecutionError returns true if err is or wraps an ExecutionError.
func IsExecutionError(err error) bool {
	var ee *ExecutionError
	return errors.As(err, &ee)
}

// Malformed reports unparseable program output as an ExecutionError.
func Malformed(family, program, format string, args ...any) error {
	return &ExecutionError{
		Family:  family,
		Program: program,
		Reason:  "malformed output: " + fmt.Sprintf(format, args...),
	}
}
