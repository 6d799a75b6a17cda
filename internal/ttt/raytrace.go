package ttt

import (
	"math"
	"sort"

	"github.com/roach88/gfstore/internal/config"
	"github.com/roach88/gfstore/internal/earthmodel"
)

const (
	// slabThickness bounds the thickness of the homogeneous slabs the model is
	// discretised into before tracing.
	slabThickness = 5000.0

	// deepestTurn is the depth down to which the half-space below the model is
	// discretised, so that rays can turn beneath the deepest model point.
	deepestTurn = 2890000.0

	// branchSamples is the number of ray parameters sampled per branch.
	branchSamples = 64
)

// Leg selects the geometry of a single-leg ray.
type Leg int

const (
	// LegUpUp leaves the source upward and arrives travelling upward.
	LegUpUp Leg = iota + 1
	// LegDownUp leaves the source downward, turns, and arrives upward.
	LegDownUp
	// LegDownDown leaves the source downward and arrives travelling downward.
	LegDownDown
	// LegUpDown cannot occur without surface reflections.
	LegUpDown
)

// LegOf maps a ray alternative to its leg geometry.
func LegOf(alt config.Alternative) Leg {
	switch {
	case alt.Upgoing && alt.ArrivesDown:
		return LegUpDown
	case alt.Upgoing:
		return LegUpUp
	case alt.ArrivesDown:
		return LegDownDown
	default:
		return LegDownUp
	}
}

type slab struct {
	top, bottom float64 // flattened depth
	vp, vs      float64 // flattened velocity
}

type segment struct {
	top, bottom float64
	v           float64
}

func (s segment) thickness() float64 { return s.bottom - s.top }

// Tracer computes first-arrival times of single-leg rays through a
// spherically symmetric model, using the earth-flattening transform so that
// the spherical problem becomes a flat-layered one.
type Tracer struct {
	radius float64
	slabs  []slab
}

// NewTracer discretises and flattens m for a sphere of the given radius.
func NewTracer(m *earthmodel.Model, radius float64) *Tracer {
	extend := deepestTurn
	if extend >= radius {
		extend = 0.5 * radius
	}
	src := m.Slabs(slabThickness, extend)
	slabs := make([]slab, 0, len(src))
	for _, s := range src {
		mid := 0.5 * (s.Top + s.Bottom)
		if math.IsInf(s.Bottom, 1) {
			mid = s.Top
		}
		f := earthmodel.FlattenFactor(mid, radius)
		slabs = append(slabs, slab{
			top:    earthmodel.FlattenDepth(s.Top, radius),
			bottom: earthmodel.FlattenDepth(s.Bottom, radius),
			vp:     s.Vp * f,
			vs:     s.Vs * f,
		})
	}
	return &Tracer{radius: radius, slabs: slabs}
}

// Branches holds the sampled travel-time curves of one (wave, leg, source
// depth, receiver depth) combination.
type Branches struct {
	curves []curve
}

type curve struct {
	x, t []float64

	// slope, when set, extends the curve beyond its last sample along the
	// asymptote t = t_last + (x - x_last) * slope.
	slope float64
}

// Branches samples all travel-time branches for a ray of the given wave and
// leg between a source at zs and a receiver at zr (unflattened depths).
func (tr *Tracer) Branches(wave config.Wave, leg Leg, zs, zr float64) *Branches {
	zsf := earthmodel.FlattenDepth(zs, tr.radius)
	zrf := earthmodel.FlattenDepth(zr, tr.radius)
	segs := tr.column(wave, zsf, zrf)

	b := &Branches{}
	if zsf == zrf && (leg == LegUpUp || leg == LegDownDown) {
		b.addHorizontal(segs, zsf)
		return b
	}
	switch leg {
	case LegUpUp:
		if zrf < zsf {
			b.addDirect(segs, zrf, zsf)
		}
	case LegDownDown:
		if zrf > zsf {
			b.addDirect(segs, zsf, zrf)
		}
	case LegDownUp:
		b.addTurning(segs, zsf, zrf)
	}
	return b
}

// FirstArrival returns the earliest time at surface distance x over all
// branches.
func (b *Branches) FirstArrival(x float64) Arrival {
	best := NoArrival
	for _, c := range b.curves {
		if t, ok := c.at(x); ok && (!best.Valid || t < best.T) {
			best = Arrival{T: t, Valid: true}
		}
	}
	return best
}

// column cuts the slab stack at both depths and returns segments with the
// velocity of the requested wave.
func (tr *Tracer) column(wave config.Wave, cuts ...float64) []segment {
	var segs []segment
	for _, s := range tr.slabs {
		v := s.vp
		if wave == config.WaveS {
			v = s.vs
		}
		top := s.top
		var inner []float64
		for _, c := range cuts {
			if c > s.top && c < s.bottom {
				inner = append(inner, c)
			}
		}
		sort.Float64s(inner)
		for _, c := range inner {
			if c > top {
				segs = append(segs, segment{top: top, bottom: c, v: v})
				top = c
			}
		}
		segs = append(segs, segment{top: top, bottom: s.bottom, v: v})
	}
	return segs
}

// addDirect adds the branch of rays travelling monotonically between upper
// and lower without turning.
func (b *Branches) addDirect(segs []segment, upper, lower float64) {
	weights := make([]float64, len(segs))
	vmax := 0.0
	for i, s := range segs {
		if s.top >= upper && s.bottom <= lower {
			if s.v == 0 {
				return
			}
			weights[i] = 1
			vmax = math.Max(vmax, s.v)
		}
	}
	if vmax == 0 {
		return
	}
	c := sampleCurve(segs, weights, 0, 1/vmax)
	c.slope = 1 / vmax
	b.addCurve(c)
}

// addHorizontal adds the ray travelling along depth z in the fastest
// segment bordering it, for source and receiver at the same depth.
func (b *Branches) addHorizontal(segs []segment, z float64) {
	v := 0.0
	for _, s := range segs {
		if s.top == z || s.bottom == z {
			v = math.Max(v, s.v)
		}
	}
	if v == 0 {
		return
	}
	b.addCurve(curve{x: []float64{0, 1}, t: []float64{0, 1 / v}, slope: 1 / v})
}

// addTurning adds one branch per segment below both endpoints at whose top a
// down-going ray can turn.
func (b *Branches) addTurning(segs []segment, zsf, zrf float64) {
	shallow, deep := math.Min(zsf, zrf), math.Max(zsf, zrf)

	weights := make([]float64, len(segs))
	vmax := 0.0
	for i, s := range segs {
		if s.bottom <= shallow {
			continue
		}
		if s.top >= deep {
			// Candidate turning segment: the ray turns at its top when
			// p*v >= 1 while every segment above still transmits it.
			if vmax > 0 && (s.v == 0 || s.v > vmax) {
				pLo := 0.0
				if s.v > 0 {
					pLo = 1 / s.v
				}
				b.addCurve(sampleCurve(segs, weights, pLo, 1/vmax))
			}
			if s.v == 0 || math.IsInf(s.bottom, 1) {
				return
			}
			weights[i] = 2
			vmax = math.Max(vmax, s.v)
			continue
		}
		// Between source and receiver the ray passes once.
		if s.v == 0 {
			return
		}
		weights[i] = 1
		vmax = math.Max(vmax, s.v)
	}
}

func (b *Branches) addCurve(c curve) {
	n := len(c.x)
	if n < 2 || c.x[n-1] <= 0 {
		return
	}
	b.curves = append(b.curves, c)
}

// sampleCurve evaluates X(p) and T(p) on p in [pLo, pHi), sampled densely
// towards pHi where X grows without bound.
func sampleCurve(segs []segment, weights []float64, pLo, pHi float64) curve {
	c := curve{x: make([]float64, 0, branchSamples), t: make([]float64, 0, branchSamples)}
	for j := 0; j < branchSamples; j++ {
		s := float64(j) / branchSamples
		u := 1 - s
		p := pLo + (pHi-pLo)*(1-u*u*u)
		x, t := 0.0, 0.0
		for i, seg := range segs {
			w := weights[i]
			if w == 0 {
				continue
			}
			h := seg.thickness()
			q := 1 - p*p*seg.v*seg.v
			if q <= 0 {
				x, t = math.Inf(1), math.Inf(1)
				break
			}
			sq := math.Sqrt(q)
			x += w * h * p * seg.v / sq
			t += w * h / (seg.v * sq)
		}
		if math.IsInf(x, 1) || math.IsNaN(x) {
			break
		}
		if n := len(c.x); n > 0 && x <= c.x[n-1] {
			continue
		}
		c.x = append(c.x, x)
		c.t = append(c.t, t)
	}
	return c
}

func (c curve) at(x float64) (float64, bool) {
	n := len(c.x)
	if n < 2 || x < c.x[0] {
		return 0, false
	}
	if x > c.x[n-1] {
		if c.slope == 0 {
			return 0, false
		}
		return c.t[n-1] + (x-c.x[n-1])*c.slope, true
	}
	j := sort.SearchFloat64s(c.x, x)
	if j < n && c.x[j] == x {
		return c.t[j], true
	}
	if j == 0 {
		return 0, false
	}
	f := (x - c.x[j-1]) / (c.x[j] - c.x[j-1])
	return c.t[j-1] + f*(c.t[j]-c.t[j-1]), true
}
