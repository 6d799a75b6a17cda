// Package qseis2d drives the two-stage QSEIS2d code.
//
// Stage S (fomosto_qseisS<version>) runs once per source depth and writes
// the slowness-domain response green_<depth>km.fk plus its .info file. Both
// are kept in a store-owned directory and reused by later builds. Stage R
// (fomosto_qseisR<version>) runs once per distance and moment-tensor element
// with the receiver-side model and writes seis.tz (up), seis.tr (radial) and
// seis.tt (transverse) as two-column time/value tables. The receiver is
// placed due north so that the tensor elements map directly onto the
// source-receiver frame.
package qseis2d

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/roach88/gfstore/internal/backend"
	"github.com/roach88/gfstore/internal/config"
	"github.com/roach88/gfstore/internal/earthmodel"
	"github.com/roach88/gfstore/internal/gf"
)

// ID is the modelling code id.
const ID = "qseis2d"

const inputFile = "input"

var outputs = []string{"seis.tz", "seis.tr", "seis.tt"}

// Family registers the qseis2d modelling code.
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
		return nil, fmt.Errorf("qseis2d: unexpected settings type %T", extra)
	}
	return NewAdapter(cfg, e, opts)
}

// Adapter runs QSEIS2d for one store.
type Adapter struct {
	cfg    *config.Config
	extra  *Extra
	runner *backend.Runner
	model  *earthmodel.Model
	rmodel *earthmodel.Model
}

// NewAdapter creates an adapter for cfg. Without a receiver-side model the
// source-side model is used for stage R.
func NewAdapter(cfg *config.Config, extra *Extra, opts backend.Options) (*Adapter, error) {
	model, err := cfg.EarthModel()
	if err != nil {
		return nil, fmt.Errorf("qseis2d: %w", err)
	}
	rmodel, err := cfg.ReceiverEarthModel()
	if err != nil {
		return nil, fmt.Errorf("qseis2d: %w", err)
	}
	if rmodel == nil {
		rmodel = model
	}
	return &Adapter{
		cfg:    cfg,
		extra:  extra,
		runner: backend.NewRunner(ID, opts),
		model:  model,
		rmodel: rmodel,
	}, nil
}

// GreenRoot returns the stage S file root for a source depth in metres.
func GreenRoot(depth float64) string {
	return fmt.Sprintf("green_%.3fkm", depth/1000)
}

// run identifies one stage R invocation.
type run struct {
	ix   int
	elem gf.Element
	iso  bool
}

func (r run) dir() string {
	if r.iso {
		return fmt.Sprintf("r%03d_iso", r.ix)
	}
	return fmt.Sprintf("r%03d_%s", r.ix, r.elem)
}

func (r run) tensor() gf.MomentTensor {
	if r.iso {
		return gf.Isotropic(1)
	}
	return r.elem.Tensor()
}

func (a *Adapter) runs(nx int) []run {
	var out []run
	for ix := 0; ix < nx; ix++ {
		if a.cfg.ComponentScheme == config.SchemeElastic2 {
			out = append(out, run{ix: ix, iso: true})
			continue
		}
		for _, e := range gf.Elements {
			out = append(out, run{ix: ix, elem: e})
		}
	}
	return out
}

// Translate plans stage S, unless its output already exists, followed by
// every stage R run of the partition.
func (a *Adapter) Translate(part backend.Partition, env backend.Env) (*backend.Input, error) {
	deltat := a.cfg.Deltat()
	tstart, n, err := backend.Window(env, part, a.extra.TimeRegion, deltat)
	if err != nil {
		return nil, fmt.Errorf("qseis2d: %w", err)
	}
	n = backend.NextPow2(n)
	twin := float64(n-1) * deltat

	gfDir, err := filepath.Abs(filepath.Join(env.StoreDir, a.extra.GFDirectory))
	if err != nil {
		return nil, fmt.Errorf("qseis2d: %w", err)
	}
	root := GreenRoot(part.SourceDepth)
	green := filepath.Join(gfDir, root)

	var invs []backend.Invocation
	if exists(green+".fk") && exists(green+".info") {
		slog.Debug("reusing slowness-domain response", "family", ID, "file", green+".fk")
	} else {
		invs = append(invs, backend.Invocation{
			Program:   a.extra.programS(),
			Dir:       "s",
			InputFile: inputFile,
			Files:     map[string][]byte{inputFile: a.renderS(part, root, tstart, twin, n)},
			Keep: map[string]string{
				root + ".fk":   green + ".fk",
				root + ".info": green + ".info",
			},
		})
	}

	for _, r := range a.runs(len(part.Distances)) {
		invs = append(invs, backend.Invocation{
			Program:   a.extra.programR(),
			Dir:       r.dir(),
			InputFile: inputFile,
			Files:     map[string][]byte{inputFile: a.renderR(part, r, green, tstart, twin, n)},
			Outputs:   outputs,
		})
	}
	return &backend.Input{Partition: part, Invocations: invs}, nil
}

func (a *Adapter) renderS(part backend.Partition, root string, tstart, twin float64, n int) []byte {
	var f backend.InputFile
	f.Comment("gfstore qseis2d stage S input")
	f.Line("source depth [km]", "%.6f", part.SourceDepth/1000)
	f.Line("receiver basement depth [km]", "%.6f", a.extra.S.ReceiverBasementDepth)
	f.Line("minimum distance [km]", "%.6f", part.Distances[0]/1000)
	f.Line("maximum distance [km]", "%.6f", part.Distances[len(part.Distances)-1]/1000)
	f.Line("time start [s]", "%.6f", tstart)
	f.Line("time window [s]", "%.6f", twin)
	f.Line("number of samples", "%d", n)
	sw := a.extra.slownessWindow(a.model)
	f.Line("slowness window [s/km]", "%.6f %.6f %.6f %.6f", sw[0], sw[1], sw[2], sw[3])
	f.Line("flat earth transform", "%d", backend.BoolFlag(a.extra.S.FlatEarthTransform))
	f.Line("output file root", "'%s'", root)
	f.Model("source side model", a.model)
	return f.Bytes()
}

func (a *Adapter) renderR(part backend.Partition, r run, green string, tstart, twin float64, n int) []byte {
	m := r.tensor()
	var f backend.InputFile
	f.Comment("gfstore qseis2d stage R input")
	f.Line("green's function file", "'%s'", green)
	f.Line("source depth [km]", "%.6f", part.SourceDepth/1000)
	f.Line("receiver depth [km]", "%.6f", a.cfg.ReceiverDepth/1000)
	f.Line("distance [km]", "%.6f", part.Distances[r.ix]/1000)
	f.Line("azimuth [deg]", "%.6f", 0.0)
	f.Line("time start [s]", "%.6f", tstart)
	f.Line("time window [s]", "%.6f", twin)
	f.Line("number of samples", "%d", n)
	f.Line("wavelet duration [samples]", "%.6f", a.extra.R.WaveletDuration)
	f.Line("moment tensor nn ee dd ne nd ed", "%g %g %g %g %g %g",
		m[gf.MNN], m[gf.MEE], m[gf.MDD], m[gf.MNE], m[gf.MND], m[gf.MED])
	f.Model("receiver side model", a.rmodel)
	return f.Bytes()
}

// Run executes both stages.
func (a *Adapter) Run(ctx context.Context, in *backend.Input) (*backend.RawOutput, error) {
	return a.runner.Run(ctx, in)
}

// Parse collects the stage R seismograms into component traces.
func (a *Adapter) Parse(out *backend.RawOutput) ([]backend.ComponentTrace, error) {
	deltat := a.cfg.Deltat()
	prog := a.extra.programR()
	nx := len(out.Partition.Distances)

	type result struct {
		resp backend.Response
		tmin float64
	}
	results := make(map[run]result)
	for _, r := range a.runs(nx) {
		var cols [3][]float64
		var tmin float64
		for i, name := range outputs {
			key := filepath.Join(r.dir(), name)
			data, ok := out.Files[key]
			if !ok {
				return nil, backend.Malformed(ID, prog, "missing %s", key)
			}
			tab, err := backend.ParseTable(data)
			if err != nil {
				return nil, backend.Malformed(ID, prog, "%s: %v", key, err)
			}
			if len(tab.Columns) != 2 {
				return nil, backend.Malformed(ID, prog, "%s: %d columns, expected 2", key, len(tab.Columns))
			}
			t0, err := tab.TimeAxis(deltat)
			if err != nil {
				return nil, backend.Malformed(ID, prog, "%s: %v", key, err)
			}
			if i > 0 && (t0 != tmin || tab.NRows() != len(cols[0])) {
				return nil, backend.Malformed(ID, prog, "%s: time axis differs from seis.tz", key)
			}
			tmin = t0
			cols[i] = tab.Columns[1]
		}
		tz, tr, tt := cols[0], cols[1], cols[2]
		results[r] = result{
			resp: backend.Response{R: tr, T: tt, D: negate(tz)},
			tmin: tmin,
		}
	}

	var traces []backend.ComponentTrace
	for ix := 0; ix < nx; ix++ {
		var (
			resp map[gf.Element]backend.Response
			iso  *backend.Response
			tmin float64
		)
		if a.cfg.ComponentScheme == config.SchemeElastic2 {
			res := results[run{ix: ix, iso: true}]
			iso, tmin = &res.resp, res.tmin
		} else {
			resp = make(map[gf.Element]backend.Response, len(gf.Elements))
			for i, e := range gf.Elements {
				res := results[run{ix: ix, elem: e}]
				if i > 0 && res.tmin != tmin {
					return nil, backend.Malformed(ID, prog, "distance %d: elements start at different times", ix)
				}
				resp[e], tmin = res.resp, res.tmin
			}
		}
		tr, err := backend.Assemble(a.cfg.ComponentScheme, ix, tmin, deltat, resp, iso)
		if err != nil {
			return nil, backend.Malformed(ID, prog, "%v", err)
		}
		traces = append(traces, tr...)
	}
	return traces, nil
}

func negate(v []float64) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = -x
	}
	return out
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
