package gf

import (
	"fmt"
	"math"
)

// STF types.
const (
	STFBoxcar     = "boxcar"
	STFTriangular = "triangular"
)

// STF is a normalised moment-rate function centred on the source time.
type STF struct {
	Type     string  `yaml:"type" json:"type"`
	Duration float64 `yaml:"duration" json:"duration"`
}

// Discretize samples the STF on the grid k*deltat. It returns the index of
// the first sample (possibly negative) and amplitudes that sum to one. Each
// amplitude is the STF's integral over its sample interval.
func (s *STF) Discretize(deltat float64) (int, []float64, error) {
	if deltat <= 0 {
		return 0, nil, fmt.Errorf("discretize stf: non-positive deltat %g", deltat)
	}
	if s == nil || s.Duration <= 0 {
		return 0, []float64{1}, nil
	}

	var cdf func(t float64) float64
	h := 0.5 * s.Duration
	switch s.Type {
	case STFBoxcar, "":
		cdf = func(t float64) float64 { return math.Min(1, math.Max(0, (t+h)/s.Duration)) }
	case STFTriangular:
		cdf = func(t float64) float64 {
			switch {
			case t <= -h:
				return 0
			case t <= 0:
				return (t + h) * (t + h) / (2 * h * h)
			case t < h:
				return 1 - (h-t)*(h-t)/(2*h*h)
			default:
				return 1
			}
		}
	default:
		return 0, nil, fmt.Errorf("unknown stf type %q", s.Type)
	}

	kmin := int(math.Floor(-h/deltat + 0.5))
	kmax := int(math.Ceil(h/deltat - 0.5))
	amps := make([]float64, 0, kmax-kmin+1)
	var sum float64
	for k := kmin; k <= kmax; k++ {
		t := float64(k) * deltat
		a := cdf(t+0.5*deltat) - cdf(t-0.5*deltat)
		amps = append(amps, a)
		sum += a
	}
	for i := range amps {
		amps[i] /= sum
	}
	return kmin, amps, nil
}
