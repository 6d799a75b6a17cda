package store

import (
	"errors"
	"fmt"
)

var (
	// ErrReadOnly is returned by mutating operations on a read-only handle.
	ErrReadOnly = errors.New("store opened read-only")

	// ErrClosed is returned by operations on a closed handle.
	ErrClosed = errors.New("store is closed")

	// ErrExists is returned by CreateEditables when the directory already holds a store.
	ErrExists = errors.New("store already exists")
)

// LockError indicates that another writer holds the store directory.
type LockError struct {
	Dir string
	Err error
}

func (e *LockError) Error() string {
	return fmt.Sprintf("store %s is locked by another writer: %v", e.Dir, e.Err)
}

func (e *LockError) Unwrap() error { return e.Err }

// CorruptionError indicates that on-disk data is inconsistent or unreadable.
type CorruptionError struct {
	// Path is the offending file.
	Path string

	// Reason is a human-readable description.
	Reason string
}

func (e *CorruptionError) Error() string {
	return fmt.Sprintf("store corrupted: %s: %s", e.Path, e.Reason)
}

// NotBuiltError indicates that a grid node exists but has no record yet.
type NotBuiltError struct {
	IZ, IX, IC int
}

func (e *NotBuiltError) Error() string {
	return fmt.Sprintf("record not built (iz=%d, ix=%d, ic=%d)", e.IZ, e.IX, e.IC)
}

// IsLockError returns true if err is or wraps a LockError.
func IsLockError(err error) bool {
	var le *LockError
	return errors.As(err, &le)
}

// IsCorruptionError returns true if err is or wraps a CorruptionError.
func IsCorruptionError(err error) bool {
	var ce *CorruptionError
	return errors.As(err, &ce)
}

// IsNotBuilt returns true if err is or wraps a NotBuiltError.
func IsNotBuilt(err error) bool {
	var ne *NotBuiltError
	return errors.As(err, &ne)
}

func corrupt(path, format string, args ...any) error {
	return &CorruptionError{Path: path, Reason: fmt.Sprintf(format, args...)}
}
