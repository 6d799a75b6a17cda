package gf

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// Trace is a regularly sampled time series.
type Trace struct {
	Codes   Codes     `json:"codes"`
	Tmin    float64   `json:"tmin"`
	Deltat  float64   `json:"deltat"`
	Samples []float64 `json:"samples"`
}

// Tmax returns the time of the last sample.
func (t *Trace) Tmax() float64 {
	if len(t.Samples) == 0 {
		return t.Tmin
	}
	return t.Tmin + float64(len(t.Samples)-1)*t.Deltat
}

// AbsMax returns the largest absolute sample value.
func (t *Trace) AbsMax() float64 {
	if len(t.Samples) == 0 {
		return 0
	}
	return math.Max(floats.Max(t.Samples), -floats.Min(t.Samples))
}

// Copy returns a deep copy.
func (t *Trace) Copy() *Trace {
	out := *t
	out.Samples = append([]float64(nil), t.Samples...)
	return &out
}

// Differentiate replaces the samples by their time derivative, using
// central differences inside and one-sided differences at the ends.
func (t *Trace) Differentiate() {
	n := len(t.Samples)
	if n < 2 {
		for i := range t.Samples {
			t.Samples[i] = 0
		}
		return
	}
	out := make([]float64, n)
	out[0] = (t.Samples[1] - t.Samples[0]) / t.Deltat
	out[n-1] = (t.Samples[n-1] - t.Samples[n-2]) / t.Deltat
	for i := 1; i < n-1; i++ {
		out[i] = (t.Samples[i+1] - t.Samples[i-1]) / (2 * t.Deltat)
	}
	t.Samples = out
}

// Convolve convolves the trace with a discrete kernel whose first sample
// sits at sample offset k0. The output grows by len(kernel)-1 samples and its
// start time shifts by k0 samples. Values outside the trace are taken as its
// edge samples so that static levels are preserved.
func (t *Trace) Convolve(k0 int, kernel []float64) {
	n := len(t.Samples)
	if n == 0 || len(kernel) == 0 {
		return
	}
	out := make([]float64, n+len(kernel)-1)
	for i := range out {
		var s float64
		for j, k := range kernel {
			src := i - j
			switch {
			case src < 0:
				s += k * t.Samples[0]
			case src >= n:
				s += k * t.Samples[n-1]
			default:
				s += k * t.Samples[src]
			}
		}
		out[i] = s
	}
	t.Samples = out
	t.Tmin += float64(k0) * t.Deltat
}

// At returns the trace value at time tt by linear interpolation, with
// the edge values held outside the trace.
func (t *Trace) At(tt float64) float64 {
	n := len(t.Samples)
	if n == 0 {
		return 0
	}
	f := (tt - t.Tmin) / t.Deltat
	if f <= 0 {
		return t.Samples[0]
	}
	if f >= float64(n-1) {
		return t.Samples[n-1]
	}
	i := int(math.Floor(f))
	r := f - float64(i)
	return t.Samples[i]*(1-r) + t.Samples[i+1]*r
}

func (t *Trace) String() string {
	return fmt.Sprintf("%s tmin=%g deltat=%g n=%d", t.Codes, t.Tmin, t.Deltat, len(t.Samples))
}
