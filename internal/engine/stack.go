package engine

import (
	"github.com/roach88/gfstore/internal/gf"
	"github.com/roach88/gfstore/internal/store"
)

// contribution is one weighted, time-shifted stored record.
type contribution struct {
	rec   store.Record
	shift int
	w     float64
}

// stack accumulates weighted records on the store's sample grid. Each
// record holds its edge values outside its stored window, so static offsets
// carry through the sum.
type stack struct {
	parts []contribution
}

func (s *stack) add(rec store.Record, shift int, w float64) {
	s.parts = append(s.parts, contribution{rec: rec, shift: shift, w: w})
}

// window returns the union of all shifted record windows.
func (s *stack) window() (itmin, itmax int, ok bool) {
	for _, c := range s.parts {
		if c.rec.Len() == 0 {
			continue
		}
		lo, hi := c.rec.Itmin+c.shift, c.rec.Itmax()+c.shift
		if !ok {
			itmin, itmax, ok = lo, hi, true
			continue
		}
		itmin, itmax = min(itmin, lo), max(itmax, hi)
	}
	return itmin, itmax, ok
}

// trace renders the sum. An empty stack yields a single zero sample at
// time zero.
func (s *stack) trace(deltat float64) *gf.Trace {
	itmin, itmax, ok := s.window()
	if !ok {
		return &gf.Trace{Deltat: deltat, Samples: []float64{0}}
	}
	samples := make([]float64, itmax-itmin+1)
	for _, c := range s.parts {
		for i := range samples {
			samples[i] += c.w * float64(c.rec.At(itmin+i-c.shift))
		}
	}
	return &gf.Trace{Tmin: float64(itmin) * deltat, Deltat: deltat, Samples: samples}
}
