// Package backend adapts numerical modelling codes to the store build.
//
// Every modelling family provides the same three capabilities:
//
//   - Translate: turn one source-depth partition into program input
//   - Run: execute the program(s) and capture raw output
//   - Parse: convert raw output into component traces in the store layout
//
// External families share the process Runner. In-process families compute
// their result during Run and carry it in RawOutput.Payload.
package backend

import (
	"context"
	"time"

	"github.com/roach88/gfstore/internal/config"
	"github.com/roach88/gfstore/internal/ttt"
)

// Partition is one unit of build work: every distance and component of a
// single source depth.
type Partition struct {
	IZ          int
	SourceDepth float64
	Distances   []float64
}

// NewPartition returns partition iz of the configured grid.
func NewPartition(cfg *config.Config, iz int) Partition {
	return Partition{
		IZ:          iz,
		SourceDepth: cfg.SourceDepth(iz),
		Distances:   cfg.Distances(),
	}
}

// Timer evaluates timings at grid nodes. A store handle satisfies it.
type Timer interface {
	TimeAt(t config.Timing, iz, ix int) (ttt.Arrival, error)
}

// Env is the store context a translation may consult.
type Env struct {
	// StoreDir is the store directory, for backend-owned subdirectories.
	StoreDir string

	// Times evaluates timings against the store's travel-time tables.
	Times Timer
}

// Invocation is one run of an external program.
type Invocation struct {
	// Program is the executable name, resolved through PATH.
	Program string

	// Dir is the working directory relative to the job's work dir.
	Dir string

	// InputFile is the file whose name is passed to the program on stdin.
	InputFile string

	// Files are written into Dir before the program starts.
	Files map[string][]byte

	// Outputs are read from Dir after a successful run.
	Outputs []string

	// Keep copies outputs to absolute destination paths after the run.
	Keep map[string]string
}

// Input is the translated form of a partition.
type Input struct {
	Partition   Partition
	Invocations []Invocation

	// Payload carries family-specific state for in-process families.
	Payload any
}

// RawOutput holds what a run produced. Files are keyed by the path
// relative to the work dir.
type RawOutput struct {
	Partition Partition
	Files     map[string][]byte
	Stdout    []byte
	Stderr    []byte
	Payload   any
}

// ComponentTrace is one parsed Green's-function component.
type ComponentTrace struct {
	IX      int
	IC      int
	Tmin    float64
	Deltat  float64
	Samples []float64
}

// Adapter drives one modelling code for one store.
type Adapter interface {
	Translate(part Partition, env Env) (*Input, error)
	Run(ctx context.Context, in *Input) (*RawOutput, error)
	Parse(out *RawOutput) ([]ComponentTrace, error)
}

// Extra is the backend-specific settings stored under extra/<id>.
type Extra interface {
	// Validate checks the settings against the store configuration.
	Validate(cfg *config.Config) error

	// Cut returns the window stored records are cut to, if any.
	Cut() (from, to config.Timing, ok bool)
}

// Options tune adapter execution.
type Options struct {
	// TmpDir is where job work dirs are created ("" for the OS default).
	TmpDir string

	// KeepTmp retains work dirs after completion.
	KeepTmp bool

	// Timeout bounds each program invocation (0 for no limit).
	Timeout time.Duration
}

// Family creates adapters for one modelling code.
type Family interface {
	ID() string
	DefaultExtra() Extra
	DecodeExtra(data []byte) (Extra, error)
	NewAdapter(cfg *config.Config, extra Extra, opts Options) (Adapter, error)
}
