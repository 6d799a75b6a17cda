package engine

import (
	"errors"
	"fmt"

	"github.com/roach88/gfstore/internal/config"
)

// QueryError represents an error detected while synthesising a target.
//
// Query errors include:
//   - Unknown store: target names a store the engine does not hold
//   - Bad source: source cannot be discretised or has no usable mechanism
//   - Bad target: orientation or quantity cannot be resolved
//   - Not built: a required grid record has not been computed yet
type QueryError struct {
	// Code identifies the error category.
	Code QueryErrorCode

	// Message is a human-readable description.
	Message string

	// Target identifies the affected target by its codes.
	Target string

	// Err is the underlying cause, if any.
	Err error
}

// QueryErrorCode categorizes query errors.
type QueryErrorCode string

const (
	// ErrCodeUnknownStore indicates a target referencing an unknown store id.
	ErrCodeUnknownStore QueryErrorCode = "UNKNOWN_STORE"

	// ErrCodeBadSource indicates a source that cannot be evaluated.
	ErrCodeBadSource QueryErrorCode = "BAD_SOURCE"

	// ErrCodeBadTarget indicates a target that cannot be evaluated.
	ErrCodeBadTarget QueryErrorCode = "BAD_TARGET"

	// ErrCodeNotBuilt indicates a grid record that has not been built.
	ErrCodeNotBuilt QueryErrorCode = "NOT_BUILT"
)

// Error implements the error interface.
func (e *QueryError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.Target != "" {
		msg += fmt.Sprintf(" (target=%s)", e.Target)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *QueryError) Unwrap() error { return e.Err }

// OutOfGridError reports a source-receiver geometry outside the store's
// grid. No extrapolation or clamping is ever done.
type OutOfGridError struct {
	// StoreID is the store that was queried.
	StoreID string

	// Depth and Distance locate the requested point (metres).
	Depth    float64
	Distance float64

	// ReceiverDepth is set when the receiver depth does not match the store.
	ReceiverDepth *float64

	Extent config.Extent
}

// Error implements the error interface.
func (e *OutOfGridError) Error() string {
	if e.ReceiverDepth != nil {
		return fmt.Sprintf("store %s: receiver depth %g m outside the grid", e.StoreID, *e.ReceiverDepth)
	}
	return fmt.Sprintf("store %s: depth %g m, distance %g m outside the grid (depth %g..%g m, distance %g..%g m)",
		e.StoreID, e.Depth, e.Distance,
		e.Extent.DepthMin, e.Extent.DepthMax, e.Extent.DistanceMin, e.Extent.DistanceMax)
}

// IsOutOfGrid returns true if the error is or wraps an OutOfGridError.
func IsOutOfGrid(err error) bool {
	var oe *OutOfGridError
	return errors.As(err, &oe)
}

// IsNotBuilt returns true if the error reports an unbuilt grid record.
func IsNotBuilt(err error) bool {
	var qe *QueryError
	if errors.As(err, &qe) {
		return qe.Code == ErrCodeNotBuilt
	}
	return false
}

// IsUnknownStore returns true if the error reports an unknown store id.
func IsUnknownStore(err error) bool {
	var qe *QueryError
	if errors.As(err, &qe) {
		return qe.Code == ErrCodeUnknownStore
	}
	return false
}

// IsQueryError returns true if the error is or wraps a QueryError.
func IsQueryError(err error) bool {
	var qe *QueryError
	return errors.As(err, &qe)
}
