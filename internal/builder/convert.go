package builder

import (
	"fmt"
	"math"

	"github.com/roach88/gfstore/internal/backend"
	"github.com/roach88/gfstore/internal/config"
	"github.com/roach88/gfstore/internal/store"
)

// cutter trims traces to the window configured in the backend settings.
type cutter struct {
	times    backend.Timer
	from, to config.Timing
	enabled  bool
}

func newCutter(times backend.Timer, extra backend.Extra) cutter {
	from, to, ok := extra.Cut()
	return cutter{times: times, from: from, to: to, enabled: ok}
}

// window returns the sample range [it0, it1] to keep at (iz, ix). ok is
// false when no cut applies there.
func (c cutter) window(iz, ix int, deltat float64) (it0, it1 int, ok bool, err error) {
	if !c.enabled {
		return 0, 0, false, nil
	}
	a, err := c.times.TimeAt(c.from, iz, ix)
	if err != nil {
		return 0, 0, false, err
	}
	b, err := c.times.TimeAt(c.to, iz, ix)
	if err != nil {
		return 0, 0, false, err
	}
	if !a.Valid || !b.Valid {
		return 0, 0, false, nil
	}
	return int(math.Round(a.T / deltat)), int(math.Round(b.T / deltat)), true, nil
}

// toRecords converts parsed traces of partition iz into store records.
// Every (distance, component) node must appear exactly once.
func toRecords(cfg *config.Config, iz int, traces []backend.ComponentTrace, cut cutter) ([]store.NodeRecord, error) {
	deltat := cfg.Deltat()
	nx, nc := cfg.NDistances(), cfg.NComponents
	seen := make(map[store.Node]bool, nx*nc)

	out := make([]store.NodeRecord, 0, len(traces))
	for _, tr := range traces {
		node := store.Node{IX: tr.IX, IC: tr.IC}
		if tr.IX < 0 || tr.IX >= nx || tr.IC < 0 || tr.IC >= nc {
			return nil, fmt.Errorf("trace (ix=%d, ic=%d) outside the grid", tr.IX, tr.IC)
		}
		if seen[node] {
			return nil, fmt.Errorf("duplicate trace (ix=%d, ic=%d)", tr.IX, tr.IC)
		}
		seen[node] = true
		if math.Abs(tr.Deltat-deltat) > 1e-6*deltat {
			return nil, fmt.Errorf("trace (ix=%d, ic=%d) sampled at %g s, store at %g s", tr.IX, tr.IC, tr.Deltat, deltat)
		}

		itmin := int(math.Round(tr.Tmin / deltat))
		samples := tr.Samples
		it0, it1, ok, err := cut.window(iz, tr.IX, deltat)
		if err != nil {
			return nil, fmt.Errorf("cut: %w", err)
		}
		if ok {
			itmin, samples = cutSamples(itmin, samples, it0, it1)
		}
		out = append(out, store.NodeRecord{Node: node, Record: store.NewRecord(itmin, samples)})
	}
	if len(out) != nx*nc {
		return nil, fmt.Errorf("got %d of %d traces", len(out), nx*nc)
	}
	return out, nil
}

// cutSamples keeps the samples with absolute index in [it0, it1]. An empty
// intersection keeps a single held edge sample.
func cutSamples(itmin int, samples []float64, it0, it1 int) (int, []float64) {
	if len(samples) == 0 {
		return itmin, samples
	}
	itmax := itmin + len(samples) - 1
	lo, hi := max(it0, itmin), min(it1, itmax)
	if lo > hi {
		switch {
		case it1 < itmin:
			return it1, samples[:1]
		default:
			return it0, samples[len(samples)-1:]
		}
	}
	return lo, samples[lo-itmin : hi-itmin+1]
}
