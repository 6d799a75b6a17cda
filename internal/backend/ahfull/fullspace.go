package ahfull

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/roach88/gfstore/internal/earthmodel"
	"github.com/roach88/gfstore/internal/gf"
)

// Grid is a regular time axis.
type Grid struct {
	Tmin   float64
	Deltat float64
	N      int
}

// Synthesize returns the north, east and down displacement at receiver
// (north-east-down position relative to the source, in metres) due to a
// moment tensor switched on as a step at t = 0 in a homogeneous full space.
//
// The near, intermediate and far field terms of the point-source solution
// are summed. Far-field impulses are split linearly between the two
// neighbouring samples; the intermediate-field steps are their running
// integral.
func Synthesize(mat earthmodel.Material, m gf.MomentTensor, receiver r3.Vec, g Grid) ([3][]float64, error) {
	var u [3][]float64
	r := r3.Norm(receiver)
	if r == 0 {
		return u, fmt.Errorf("receiver coincides with source")
	}
	if mat.Vp <= 0 || mat.Vs <= 0 || mat.Rho <= 0 {
		return u, fmt.Errorf("full space needs positive vp, vs and rho, got %+v", mat)
	}
	alpha, beta, rho := mat.Vp, mat.Vs, mat.Rho
	ta, tb := r/alpha, r/beta

	gamma := r3.Unit(receiver)
	mm := m.Matrix()
	mg := r3.Vec{
		X: r3.Dot(r3.Vec{X: mm[0][0], Y: mm[0][1], Z: mm[0][2]}, gamma),
		Y: r3.Dot(r3.Vec{X: mm[1][0], Y: mm[1][1], Z: mm[1][2]}, gamma),
		Z: r3.Dot(r3.Vec{X: mm[2][0], Y: mm[2][1], Z: mm[2][2]}, gamma),
	}
	gmg := r3.Dot(gamma, mg)
	tr := mm[0][0] + mm[1][1] + mm[2][2]

	gs := [3]float64{gamma.X, gamma.Y, gamma.Z}
	ms := [3]float64{mg.X, mg.Y, mg.Z}

	impA := impulse(ta, g)
	impB := impulse(tb, g)
	stepA := step(ta, g)
	stepB := step(tb, g)

	c := 1 / (4 * math.Pi * rho)
	for n := 0; n < 3; n++ {
		near := 15*gs[n]*gmg - 3*gs[n]*tr - 6*ms[n]
		interA := 6*gs[n]*gmg - gs[n]*tr - 2*ms[n]
		interB := 6*gs[n]*gmg - gs[n]*tr - 3*ms[n]
		farA := gs[n] * gmg
		farB := gs[n]*gmg - ms[n]

		out := make([]float64, g.N)
		for i := range out {
			t := g.Tmin + float64(i)*g.Deltat
			v := near / math.Pow(r, 4) * nearIntegral(t, ta, tb)
			v += interA / (alpha * alpha * r * r) * stepA[i]
			v -= interB / (beta * beta * r * r) * stepB[i]
			v += farA / (alpha * alpha * alpha * r) * impA[i]
			v -= farB / (beta * beta * beta * r) * impB[i]
			out[i] = c * v
		}
		u[n] = out
	}
	return u, nil
}

// nearIntegral is the integral of tau over [ta, min(t, tb)].
func nearIntegral(t, ta, tb float64) float64 {
	if t <= ta {
		return 0
	}
	e := math.Min(t, tb)
	return (e*e - ta*ta) / 2
}

// impulse discretizes a unit-area delta at t0.
func impulse(t0 float64, g Grid) []float64 {
	out := make([]float64, g.N)
	p := (t0 - g.Tmin) / g.Deltat
	i := int(math.Floor(p))
	w := p - float64(i)
	if i >= 0 && i < g.N {
		out[i] += (1 - w) / g.Deltat
	}
	if i+1 >= 0 && i+1 < g.N {
		out[i+1] += w / g.Deltat
	}
	return out
}

// step is the running integral of impulse(t0, g).
func step(t0 float64, g Grid) []float64 {
	out := make([]float64, g.N)
	p := (t0 - g.Tmin) / g.Deltat
	i := int(math.Floor(p))
	w := p - float64(i)
	for k := range out {
		switch {
		case k > i:
			out[k] = 1
		case k == i:
			out[k] = 1 - w
		}
	}
	return out
}
