package backend

import (
	"fmt"

	"github.com/roach88/gfstore/internal/config"
	"github.com/roach88/gfstore/internal/gf"
)

// Response is the radial, transverse and down displacement at one distance
// for one excitation. Unused directions may be nil.
type Response struct {
	R, T, D []float64
}

// Assemble lays out per-element responses at distance index ix as
// component traces of the configured scheme. For elastic10 every element
// must be present in resp; elastic2 uses only iso, the response to a unit
// isotropic source.
func Assemble(scheme string, ix int, tmin, deltat float64, resp map[gf.Element]Response, iso *Response) ([]ComponentTrace, error) {
	trace := func(ic int, samples []float64) ComponentTrace {
		return ComponentTrace{IX: ix, IC: ic, Tmin: tmin, Deltat: deltat, Samples: samples}
	}

	switch scheme {
	case config.SchemeElastic10:
		out := make([]ComponentTrace, 0, 10)
		for _, e := range gf.Elements {
			r, ok := resp[e]
			if !ok {
				return nil, fmt.Errorf("missing response to element %s", e)
			}
			slots := gf.Elastic10Slots[e]
			for _, s := range []struct {
				ic      int
				samples []float64
			}{{slots.R, r.R}, {slots.T, r.T}, {slots.D, r.D}} {
				if s.ic < 0 {
					continue
				}
				if s.samples == nil {
					return nil, fmt.Errorf("missing component %d of element %s", s.ic, e)
				}
				out = append(out, trace(s.ic, s.samples))
			}
		}
		return out, nil
	case config.SchemeElastic2:
		if iso == nil || iso.R == nil || iso.D == nil {
			return nil, fmt.Errorf("missing isotropic response")
		}
		return []ComponentTrace{trace(gf.CompIsoR, iso.R), trace(gf.CompIsoD, iso.D)}, nil
	default:
		return nil, fmt.Errorf("unknown component scheme %q", scheme)
	}
}
