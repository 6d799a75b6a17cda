package ttt

import (
	"fmt"
	"log/slog"

	"github.com/roach88/gfstore/internal/config"
)

// Build computes the tables of every tabulated phase of cfg. Phases are
// evaluated in dependency order so that stored references resolve against
// finished tables.
func Build(cfg *config.Config) (map[string]*Table, error) {
	model, err := cfg.EarthModel()
	if err != nil {
		return nil, fmt.Errorf("build travel-time tables: %w", err)
	}
	order, exprs, err := cfg.PhaseOrder()
	if err != nil {
		return nil, fmt.Errorf("build travel-time tables: %w", err)
	}

	tracer := NewTracer(model, cfg.EarthRadius)
	cache := make(map[branchKey]*Branches)
	tables := make(map[string]*Table, len(order))

	for _, id := range order {
		slog.Debug("building travel-time table", "phase", id)
		t, err := buildPhase(cfg, id, exprs[id], tracer, tables, cache)
		if err != nil {
			return nil, err
		}
		tables[id] = t
	}
	return tables, nil
}

type branchKey struct {
	wave config.Wave
	leg  Leg
	iz   int
}

func buildPhase(cfg *config.Config, id string, expr *config.PhaseExpr, tracer *Tracer, done map[string]*Table, cache map[branchKey]*Branches) (*Table, error) {
	t := NewTable(id, cfg)
	for iz := 0; iz < t.NDepths; iz++ {
		zs := cfg.SourceDepth(iz)
		for ix := 0; ix < t.NDists; ix++ {
			x := cfg.Distance(ix)
			best := NoArrival
			for _, alt := range expr.Alternatives {
				var a Arrival
				switch alt.Kind {
				case config.TermRay:
					key := branchKey{wave: alt.Wave, leg: LegOf(alt), iz: iz}
					br, ok := cache[key]
					if !ok {
						br = tracer.Branches(alt.Wave, key.leg, zs, cfg.ReceiverDepth)
						cache[key] = br
					}
					a = br.FirstArrival(x)
				case config.TermVelocity:
					a = Arrival{T: x / alt.Velocity, Valid: true}
				case config.TermStored:
					ref, ok := done[alt.Ref]
					if !ok {
						return nil, fmt.Errorf("phase %q: reference to unbuilt phase %q", id, alt.Ref)
					}
					a = ref.At(iz, ix)
				}
				a = a.Add(alt.Offset)
				if a.Valid && (!best.Valid || a.T < best.T) {
					best = a
				}
			}
			t.set(iz, ix, best)
		}
	}
	return t, nil
}
