// Package compare measures the agreement of two synthetic traces, used to
// check that interchangeable modelling backends give the same result.
package compare

import (
	"errors"
	"fmt"
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/floats"

	"github.com/roach88/gfstore/internal/gf"
)

// Default tolerances.
const (
	DefaultAmplitude = 0.03
	DefaultPhase     = 0.04
)

// significance is the fraction of the peak spectral amplitude a bin must
// reach to enter the spectral metrics.
const significance = 0.1

// Tolerance bounds the accepted differences.
type Tolerance struct {
	// Amplitude bounds the relative peak and spectral amplitude errors.
	Amplitude float64 `json:"amplitude"`

	// Phase bounds the mean phase difference in radians.
	Phase float64 `json:"phase"`
}

// DefaultTolerance returns the default tolerances.
func DefaultTolerance() Tolerance {
	return Tolerance{Amplitude: DefaultAmplitude, Phase: DefaultPhase}
}

// Agreement describes how closely a candidate trace matches a reference.
type Agreement struct {
	Codes         gf.Codes `json:"codes"`
	PeakError     float64  `json:"peak_error"`
	SpectralError float64  `json:"spectral_error"`
	PhaseError    float64  `json:"phase_error"`
	Bins          int      `json:"bins"`
	OK            bool     `json:"ok"`
}

// ErrSampling is returned for traces with different sampling intervals.
var ErrSampling = errors.New("traces have different sampling intervals")

// Compare compares candidate b against reference a. Both traces are put on
// a common time axis, holding their edge values, before the metrics are
// computed over the band below half the Nyquist frequency.
func Compare(a, b *gf.Trace, tol Tolerance) (Agreement, error) {
	if a.Deltat <= 0 || math.Abs(a.Deltat-b.Deltat) > 1e-6*a.Deltat {
		return Agreement{}, fmt.Errorf("compare %s: %w (%g s vs %g s)", a.Codes, ErrSampling, a.Deltat, b.Deltat)
	}
	if len(a.Samples) == 0 || len(b.Samples) == 0 {
		return Agreement{}, fmt.Errorf("compare %s: empty trace", a.Codes)
	}

	xa, xb := common(a, b)
	ag := Agreement{Codes: a.Codes}

	peakA, peakB := absMax(xa), absMax(xb)
	switch {
	case peakA == 0 && peakB == 0:
		ag.OK = true
		return ag, nil
	case peakA == 0:
		// silent reference: report the candidate as entirely wrong
		ag.PeakError = 1
		return ag, nil
	}
	ag.PeakError = math.Abs(peakB-peakA) / peakA

	fft := fourier.NewFFT(len(xa))
	ca := fft.Coefficients(nil, xa)
	cb := fft.Coefficients(nil, xb)

	// bins below half the Nyquist frequency
	nb := max(1, len(xa)/4)
	ref := make([]float64, nb)
	for k := range ref {
		ref[k] = cmplx.Abs(ca[k])
	}
	threshold := significance * floats.Max(ref)

	var spectral, phase float64
	for k := range ref {
		if ref[k] < threshold || ref[k] == 0 {
			continue
		}
		spectral += math.Abs(cmplx.Abs(cb[k])-ref[k]) / ref[k]
		phase += math.Abs(wrap(cmplx.Phase(cb[k]) - cmplx.Phase(ca[k])))
		ag.Bins++
	}
	if ag.Bins > 0 {
		ag.SpectralError = spectral / float64(ag.Bins)
		ag.PhaseError = phase / float64(ag.Bins)
	}
	ag.OK = ag.PeakError <= tol.Amplitude && ag.SpectralError <= tol.Amplitude && ag.PhaseError <= tol.Phase
	return ag, nil
}

// Traces compares candidates against references pairwise.
func Traces(refs, cands []*gf.Trace, tol Tolerance) ([]Agreement, error) {
	if len(refs) != len(cands) {
		return nil, fmt.Errorf("compare: %d reference traces, %d candidates", len(refs), len(cands))
	}
	out := make([]Agreement, 0, len(refs))
	for i := range refs {
		ag, err := Compare(refs[i], cands[i], tol)
		if err != nil {
			return nil, err
		}
		out = append(out, ag)
	}
	return out, nil
}

// AllOK reports whether every agreement is within tolerance.
func AllOK(ags []Agreement) bool {
	for _, ag := range ags {
		if !ag.OK {
			return false
		}
	}
	return true
}

// common samples both traces on the union of their time spans.
func common(a, b *gf.Trace) ([]float64, []float64) {
	dt := a.Deltat
	tmin := math.Min(a.Tmin, b.Tmin)
	tmax := math.Max(a.Tmax(), b.Tmax())
	n := int(math.Round((tmax-tmin)/dt)) + 1

	xa, xb := make([]float64, n), make([]float64, n)
	for i := range n {
		t := tmin + float64(i)*dt
		xa[i], xb[i] = a.At(t), b.At(t)
	}
	return xa, xb
}

func absMax(x []float64) float64 {
	return math.Max(floats.Max(x), -floats.Min(x))
}

// wrap maps a phase difference into (-pi, pi].
func wrap(p float64) float64 {
	p = math.Mod(p+math.Pi, 2*math.Pi)
	if p <= 0 {
		p += 2 * math.Pi
	}
	return p - math.Pi
}
