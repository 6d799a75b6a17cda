package engine

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/roach88/gfstore/internal/config"
	"github.com/roach88/gfstore/internal/gf"
	"github.com/roach88/gfstore/internal/store"
)

// Engine synthesises seismograms from one or more opened stores.
//
// Thread-safety: the engine only reads from its stores. Process may be
// called from any number of goroutines.
type Engine struct {
	stores []*store.Store
	byID   map[string]*store.Store
}

// Response holds the traces of one Process call, in target order.
type Response struct {
	Traces []*gf.Trace `json:"traces"`
}

// New creates an engine over the given stores. The first store is the
// default for targets that name none. Store ids must be unique.
func New(stores ...*store.Store) (*Engine, error) {
	if len(stores) == 0 {
		return nil, fmt.Errorf("engine: no stores")
	}
	e := &Engine{stores: stores, byID: make(map[string]*store.Store, len(stores))}
	for _, st := range stores {
		id := st.Config().ID
		if _, dup := e.byID[id]; dup {
			return nil, fmt.Errorf("engine: duplicate store id %q", id)
		}
		e.byID[id] = st
	}
	return e, nil
}

// Store returns the store for id, or the default store when id is empty.
func (e *Engine) Store(id string) (*store.Store, error) {
	if id == "" {
		return e.stores[0], nil
	}
	st, ok := e.byID[id]
	if !ok {
		return nil, &QueryError{Code: ErrCodeUnknownStore, Message: fmt.Sprintf("no store with id %q", id)}
	}
	return st, nil
}

// Process computes one trace per target for source. Any failing target
// fails the whole call. Cancellation is checked between targets.
func (e *Engine) Process(ctx context.Context, source gf.Source, targets []gf.Target) (*Response, error) {
	resp := &Response{Traces: make([]*gf.Trace, 0, len(targets))}
	for i := range targets {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		tr, err := e.target(source, &targets[i])
		if err != nil {
			return nil, err
		}
		resp.Traces = append(resp.Traces, tr)
	}
	slog.Debug("processed query", "targets", len(targets))
	return resp, nil
}

// target synthesises a single target.
func (e *Engine) target(source gf.Source, t *gf.Target) (*gf.Trace, error) {
	codes := t.Codes.String()
	st, err := e.Store(t.StoreID)
	if err != nil {
		return nil, withTarget(err, codes)
	}
	cfg := st.Config()
	deltat := cfg.Deltat()

	dtol, _ := cfg.Tolerance()
	if math.Abs(t.Depth-cfg.ReceiverDepth) > dtol {
		depth := t.Depth
		return nil, &OutOfGridError{StoreID: cfg.ID, ReceiverDepth: &depth, Extent: cfg.Extent()}
	}

	nder, err := t.Quantity.Derivatives()
	if err != nil {
		return nil, &QueryError{Code: ErrCodeBadTarget, Message: "quantity", Target: codes, Err: err}
	}
	method := t.Interpolation
	if method == "" {
		method = cfg.Interpolation
	}
	if method != config.InterpMultilinear && method != config.InterpNearestNeighbor {
		return nil, &QueryError{Code: ErrCodeBadTarget, Message: fmt.Sprintf("unknown interpolation %q", method), Target: codes}
	}

	points, err := source.Discretize(deltat)
	if err != nil {
		return nil, &QueryError{Code: ErrCodeBadSource, Message: "discretize", Target: codes, Err: err}
	}
	k0, kernel, err := source.SourceTimeFunction().Discretize(deltat)
	if err != nil {
		return nil, &QueryError{Code: ErrCodeBadSource, Message: "source time function", Target: codes, Err: err}
	}

	var sum stack
	for _, p := range points {
		if err := e.addPoint(&sum, st, method, p, t); err != nil {
			return nil, withTarget(err, codes)
		}
	}

	out := sum.trace(deltat)
	out.Codes = t.Codes
	out.Convolve(k0, kernel)
	for range nder {
		out.Differentiate()
	}
	slog.Debug("synthesised target",
		"target", codes,
		"store", cfg.ID,
		"points", len(points),
		"samples", len(out.Samples),
	)
	return out, nil
}

// addPoint adds the response of one point source at target t.
func (e *Engine) addPoint(sum *stack, st *store.Store, method string, p gf.PointSource, t *gf.Target) error {
	cfg := st.Config()
	deltat := cfg.Deltat()
	radius := cfg.EarthRadius

	distance := p.DistanceTo(t.Location, radius)
	azi, bazi := p.AziBazi(t.Location, radius)

	nodes, err := locate(cfg, method, p.Depth, distance)
	if err != nil {
		return err
	}

	w, err := gf.ComponentWeights(cfg.ComponentScheme, p.M6, azi)
	if err != nil {
		return &QueryError{Code: ErrCodeBadSource, Message: "mechanism", Err: err}
	}
	sensorAzi, sensorDip, err := t.Orientation(bazi)
	if err != nil {
		return &QueryError{Code: ErrCodeBadTarget, Message: "orientation", Err: err}
	}
	wr, wt, wd := gf.ProjectionWeights(bazi+180, sensorAzi, sensorDip)

	weights := make([]float64, cfg.NComponents)
	for ic := range weights {
		weights[ic] = wr*w.R[ic] + wt*w.T[ic] + wd*w.D[ic]
	}

	onset, err := st.Time(config.Timing{PhaseID: config.BeginPhase}, p.Depth, distance)
	if err != nil {
		return err
	}
	itime := int(math.Round(p.Time / deltat))

	for _, n := range nodes {
		shift := itime
		at, err := st.TimeAt(config.Timing{PhaseID: config.BeginPhase}, n.iz, n.ix)
		if err != nil {
			return err
		}
		if onset.Valid && at.Valid {
			shift += int(math.Round((onset.T - at.T) / deltat))
		}

		for ic, wc := range weights {
			if wc == 0 {
				continue
			}
			rec, err := st.Get(n.iz, n.ix, ic)
			if err != nil {
				if store.IsNotBuilt(err) {
					return &QueryError{Code: ErrCodeNotBuilt, Message: "grid record missing", Err: err}
				}
				return err
			}
			sum.add(rec, shift, n.w*wc)
		}
	}
	return nil
}

func withTarget(err error, codes string) error {
	if qe, ok := err.(*QueryError); ok && qe.Target == "" {
		qe.Target = codes
	}
	return err
}
