// Package qseis drives the one-stage QSEIS reflectivity code.
//
// One program run per source depth computes the responses of four
// fundamental sources at every grid distance and writes them as ASCII
// tables gf_<src>.<comp>: a time column followed by one column per distance.
// Sources are ex (isotropic), ss (strike-slip), ds (dip-slip) and cl (CLVD,
// Mzz=1, Mxx=Myy=-1/2); components are tz (vertical, positive up), tr
// (radial) and tt (transverse).
//
// The ss radial and vertical columns are the response to Mxx=1, Myy=-1 and
// its transverse column the response to the Mxy pair; ds holds the Mxz pair
// for radial and vertical and the Myz pair for transverse. The adapter
// recombines them into the element responses of the store layout.
package qseis

import (
	"context"
	"fmt"

	"github.com/roach88/gfstore/internal/backend"
	"github.com/roach88/gfstore/internal/config"
	"github.com/roach88/gfstore/internal/earthmodel"
	"github.com/roach88/gfstore/internal/gf"
)

// ID is the modelling code id.
const ID = "qseis"

const inputFile = "input"

// Family registers the qseis modelling code.
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

func (Family) NewAdapter(cfg *config.Config, extra backend.Extra, opts backend.Options) (backend.Adapter, error) {
	e, ok := extra.(*Extra)
	if !ok {
		return nil, fmt.Errorf("qseis: unexpected settings type %T", extra)
	}
	return NewAdapter(cfg, e, opts)
}

// Adapter runs QSEIS for one store.
type Adapter struct {
	cfg    *config.Config
	extra  *Extra
	runner *backend.Runner
	model  *earthmodel.Model
	rmodel *earthmodel.Model
}

// NewAdapter creates an adapter for cfg.
func NewAdapter(cfg *config.Config, extra *Extra, opts backend.Options) (*Adapter, error) {
	model, err := cfg.EarthModel()
	if err != nil {
		return nil, fmt.Errorf("qseis: %w", err)
	}
	rmodel, err := cfg.ReceiverEarthModel()
	if err != nil {
		return nil, fmt.Errorf("qseis: %w", err)
	}
	return &Adapter{
		cfg:    cfg,
		extra:  extra,
		runner: backend.NewRunner(ID, opts),
		model:  model,
		rmodel: rmodel,
	}, nil
}

// sources lists the fundamental sources needed by the component scheme.
func (a *Adapter) sources() []string {
	if a.cfg.ComponentScheme == config.SchemeElastic2 {
		return []string{"ex"}
	}
	return []string{"ex", "ss", "ds", "cl"}
}

func components(src string) []string {
	if src == "ex" || src == "cl" {
		return []string{"tz", "tr"}
	}
	return []string{"tz", "tr", "tt"}
}

func (a *Adapter) outputs() []string {
	var out []string
	for _, src := range a.sources() {
		for _, c := range components(src) {
			out = append(out, fmt.Sprintf("gf_%s.%s", src, c))
		}
	}
	return out
}

// Translate renders the QSEIS input for one source depth.
func (a *Adapter) Translate(part backend.Partition, env backend.Env) (*backend.Input, error) {
	deltat := a.cfg.Deltat()
	tstart, n, err := backend.Window(env, part, a.extra.TimeRegion, deltat)
	if err != nil {
		return nil, fmt.Errorf("qseis: %w", err)
	}
	n = backend.NextPow2(n)

	roots := make([]string, 0, 4)
	for _, src := range a.sources() {
		roots = append(roots, "gf_"+src)
	}

	data := renderInput(inputParams{
		SourceDepth:            part.SourceDepth,
		ReceiverDepth:          a.cfg.ReceiverDepth,
		Distances:              part.Distances,
		TimeStart:              tstart,
		TimeWindow:             float64(n-1) * deltat,
		NSamples:               n,
		SlownessWindow:         a.extra.SlownessWindow,
		AliasingSuppression:    a.extra.AliasingSuppression,
		WaveletDurationSamples: a.extra.WaveletDurationSamples,
		FlatEarthTransform:     a.extra.FlatEarthTransform,
		Roots:                  roots,
		Model:                  a.model,
		ReceiverModel:          a.rmodel,
	})

	return &backend.Input{
		Partition: part,
		Invocations: []backend.Invocation{{
			Program:   a.extra.Program(),
			InputFile: inputFile,
			Files:     map[string][]byte{inputFile: data},
			Outputs:   a.outputs(),
		}},
	}, nil
}

// Run executes QSEIS.
func (a *Adapter) Run(ctx context.Context, in *backend.Input) (*backend.RawOutput, error) {
	return a.runner.Run(ctx, in)
}

// Parse reads the fundamental-source tables and assembles the store
// components for every distance.
func (a *Adapter) Parse(out *backend.RawOutput) ([]backend.ComponentTrace, error) {
	deltat := a.cfg.Deltat()
	prog := a.extra.Program()
	nx := len(out.Partition.Distances)

	cols := make(map[string][][]float64)
	var tmin float64
	nrows := -1
	for _, name := range a.outputs() {
		data, ok := out.Files[name]
		if !ok {
			return nil, backend.Malformed(ID, prog, "missing %s", name)
		}
		tab, err := backend.ParseTable(data)
		if err != nil {
			return nil, backend.Malformed(ID, prog, "%s: %v", name, err)
		}
		if len(tab.Columns) != nx+1 {
			return nil, backend.Malformed(ID, prog, "%s: %d columns, expected %d", name, len(tab.Columns), nx+1)
		}
		t0, err := tab.TimeAxis(deltat)
		if err != nil {
			return nil, backend.Malformed(ID, prog, "%s: %v", name, err)
		}
		if nrows < 0 {
			nrows, tmin = tab.NRows(), t0
		} else if tab.NRows() != nrows || t0 != tmin {
			return nil, backend.Malformed(ID, prog, "%s: time axis differs from other outputs", name)
		}
		cols[name] = tab.Columns[1:]
	}

	get := func(src, comp string, ix int) []float64 {
		return cols[fmt.Sprintf("gf_%s.%s", src, comp)][ix]
	}

	var traces []backend.ComponentTrace
	for ix := 0; ix < nx; ix++ {
		var (
			resp map[gf.Element]backend.Response
			iso  *backend.Response
		)
		if a.cfg.ComponentScheme == config.SchemeElastic2 {
			iso = &backend.Response{R: get("ex", "tr", ix), D: scale(get("ex", "tz", ix), -1)}
		} else {
			resp = fundamentalsToElements(
				get("ex", "tr", ix), get("ex", "tz", ix),
				get("ss", "tr", ix), get("ss", "tz", ix), get("ss", "tt", ix),
				get("ds", "tr", ix), get("ds", "tz", ix), get("ds", "tt", ix),
				get("cl", "tr", ix), get("cl", "tz", ix),
			)
		}
		tr, err := backend.Assemble(a.cfg.ComponentScheme, ix, tmin, deltat, resp, iso)
		if err != nil {
			return nil, backend.Malformed(ID, prog, "%v", err)
		}
		traces = append(traces, tr...)
	}
	return traces, nil
}

// fundamentalsToElements decomposes Mxx = (ex - cl)/3 + ss/2,
// Myy = (ex - cl)/3 - ss/2 and Mzz = (ex + 2 cl)/3. Vertical is flipped to
// positive down.
func fundamentalsToElements(exR, exZ, ssR, ssZ, ssT, dsR, dsZ, dsT, clR, clZ []float64) map[gf.Element]backend.Response {
	n := len(exR)
	xxR, xxD := make([]float64, n), make([]float64, n)
	yyR, yyD := make([]float64, n), make([]float64, n)
	zzR, zzD := make([]float64, n), make([]float64, n)
	for i := 0; i < n; i++ {
		isoR, isoZ := (exR[i]-clR[i])/3, (exZ[i]-clZ[i])/3
		xxR[i], xxD[i] = isoR+ssR[i]/2, -(isoZ + ssZ[i]/2)
		yyR[i], yyD[i] = isoR-ssR[i]/2, -(isoZ - ssZ[i]/2)
		zzR[i], zzD[i] = (exR[i]+2*clR[i])/3, -(exZ[i]+2*clZ[i])/3
	}
	return map[gf.Element]backend.Response{
		gf.ElemXX: {R: xxR, D: xxD},
		gf.ElemYY: {R: yyR, D: yyD},
		gf.ElemZZ: {R: zzR, D: zzD},
		gf.ElemXY: {T: ssT},
		gf.ElemXZ: {R: dsR, D: scale(dsZ, -1)},
		gf.ElemYZ: {T: dsT},
	}
}

func scale(v []float64, f float64) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = f * x
	}
	return out
}
