// Package ahfull computes Green's functions in process with the analytic
// solution for a homogeneous, isotropic full space. The material is taken
// from the source-side earth model at the source depth.
//
// The records are responses to moment tensors switched on as a unit step,
// so every record settles to the static displacement after the S arrival.
package ahfull

import (
	"context"
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/roach88/gfstore/internal/backend"
	"github.com/roach88/gfstore/internal/config"
	"github.com/roach88/gfstore/internal/earthmodel"
	"github.com/roach88/gfstore/internal/gf"
)

// ID is the modelling code id.
const ID = "ahfull"

// Extra holds the ahfull settings stored under extra/ahfull.
type Extra struct {
	// MarginSamples pads the window around the P and S arrivals.
	MarginSamples int `yaml:"margin_samples"`

	// CutRegion is the window stored records are cut to.
	CutRegion *[2]config.Timing `yaml:"cut,omitempty"`
}

// DefaultExtra returns the default settings.
func DefaultExtra() *Extra {
	return &Extra{MarginSamples: 5}
}

// Cut returns the configured cut window.
func (e *Extra) Cut() (config.Timing, config.Timing, bool) {
	if e.CutRegion == nil {
		return config.Timing{}, config.Timing{}, false
	}
	return e.CutRegion[0], e.CutRegion[1], true
}

// Validate checks the settings against the store configuration.
func (e *Extra) Validate(cfg *config.Config) error {
	var errs []error
	if e.MarginSamples < 1 {
		errs = append(errs, fmt.Errorf("margin_samples %d must be at least 1", e.MarginSamples))
	}
	if e.CutRegion != nil {
		for _, t := range e.CutRegion {
			if err := cfg.CheckTiming(t); err != nil {
				errs = append(errs, fmt.Errorf("cut: %w", err))
			}
		}
	}
	return errors.Join(errs...)
}

// Family registers the ahfull modelling code.
type Family struct{}

func (Family) ID() string { return ID }

func (Family) DefaultExtra() backend.Extra { return DefaultExtra() }

func (Family) DecodeExtra(data []byte) (backend.Extra, error) {
	e := DefaultExtra()
	if err := backend.DecodeYAML(data, e); err != nil {
		return nil, err
	}
	return e, nil
}

func (Family) NewAdapter(cfg *config.Config, extra backend.Extra, _ backend.Options) (backend.Adapter, error) {
	e, ok := extra.(*Extra)
	if !ok {
		return nil, fmt.Errorf("ahfull: unexpected settings type %T", extra)
	}
	return NewAdapter(cfg, e)
}

// Adapter evaluates the full-space solution for one store.
type Adapter struct {
	cfg   *config.Config
	extra *Extra
	model *earthmodel.Model
}

// NewAdapter creates an adapter for cfg.
func NewAdapter(cfg *config.Config, extra *Extra) (*Adapter, error) {
	model, err := cfg.EarthModel()
	if err != nil {
		return nil, fmt.Errorf("ahfull: %w", err)
	}
	return &Adapter{cfg: cfg, extra: extra, model: model}, nil
}

// Translate has nothing to render; the partition is evaluated in Run.
func (a *Adapter) Translate(part backend.Partition, _ backend.Env) (*backend.Input, error) {
	return &backend.Input{Partition: part}, nil
}

// Run evaluates every distance of the partition. The result travels in
// RawOutput.Payload.
func (a *Adapter) Run(ctx context.Context, in *backend.Input) (*backend.RawOutput, error) {
	part := in.Partition
	mat := a.model.Material(part.SourceDepth)
	deltat := a.cfg.Deltat()
	dz := a.cfg.ReceiverDepth - part.SourceDepth

	var traces []backend.ComponentTrace
	for ix, x := range part.Distances {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rcv := r3.Vec{X: x, Y: 0, Z: dz}
		g := a.window(r3.Norm(rcv), mat, deltat)

		var (
			resp map[gf.Element]backend.Response
			iso  *backend.Response
		)
		if a.cfg.ComponentScheme == config.SchemeElastic2 {
			u, err := Synthesize(mat, gf.Isotropic(1), rcv, g)
			if err != nil {
				return nil, fmt.Errorf("ahfull: distance %g: %w", x, err)
			}
			iso = &backend.Response{R: u[0], D: u[2]}
		} else {
			resp = make(map[gf.Element]backend.Response, len(gf.Elements))
			for _, e := range gf.Elements {
				u, err := Synthesize(mat, e.Tensor(), rcv, g)
				if err != nil {
					return nil, fmt.Errorf("ahfull: distance %g: %w", x, err)
				}
				resp[e] = backend.Response{R: u[0], T: u[1], D: u[2]}
			}
		}
		tr, err := backend.Assemble(a.cfg.ComponentScheme, ix, g.Tmin, deltat, resp, iso)
		if err != nil {
			return nil, fmt.Errorf("ahfull: %w", err)
		}
		traces = append(traces, tr...)
	}
	return &backend.RawOutput{Partition: part, Payload: traces}, nil
}

// Parse returns the traces computed by Run.
func (a *Adapter) Parse(out *backend.RawOutput) ([]backend.ComponentTrace, error) {
	traces, ok := out.Payload.([]backend.ComponentTrace)
	if !ok {
		return nil, fmt.Errorf("ahfull: unexpected payload %T", out.Payload)
	}
	return traces, nil
}

// window spans the P to S interval at distance r padded by the margin, on
// the sample grid.
func (a *Adapter) window(r float64, mat earthmodel.Material, deltat float64) Grid {
	it0 := int(math.Floor(r/mat.Vp/deltat)) - a.extra.MarginSamples
	it1 := int(math.Ceil(r/mat.Vs/deltat)) + a.extra.MarginSamples
	return Grid{Tmin: float64(it0) * deltat, Deltat: deltat, N: it1 - it0 + 1}
}
