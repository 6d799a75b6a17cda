package earthmodel

import "math"

// Slab is a homogeneous layer between Top and Bottom. The last slab of a
// discretisation has Bottom = +Inf.
type Slab struct {
	Top    float64
	Bottom float64
	Material
}

// Thickness returns Bottom-Top.
func (s Slab) Thickness() float64 {
	return s.Bottom - s.Top
}

// Slabs discretises the model into homogeneous slabs no thicker than
// maxThickness. Gradient intervals are sampled at their slab mid-depths. The
// half-space below the deepest point is continued as slabs down to extendTo
// (if deeper than the model) and closed by an infinite slab.
func (m *Model) Slabs(maxThickness, extendTo float64) []Slab {
	if maxThickness <= 0 {
		maxThickness = 1 * km
	}

	var out []Slab
	pts := m.points

	if pts[0].Depth > 0 {
		out = appendUniform(out, 0, pts[0].Depth, maxThickness, func(float64) Material { return pts[0].Material })
	}

	for i := 1; i < len(pts); i++ {
		top, bot := pts[i-1], pts[i]
		if bot.Depth == top.Depth {
			continue
		}
		out = appendUniform(out, top.Depth, bot.Depth, maxThickness, func(z float64) Material {
			return lerp(top.Material, bot.Material, (z-top.Depth)/(bot.Depth-top.Depth))
		})
	}

	last := pts[len(pts)-1]
	bottom := last.Depth
	if extendTo > bottom {
		out = appendUniform(out, bottom, extendTo, maxThickness, func(float64) Material { return last.Material })
		bottom = extendTo
	}
	out = append(out, Slab{Top: bottom, Bottom: math.Inf(1), Material: last.Material})
	return out
}

func appendUniform(out []Slab, top, bottom, maxThickness float64, at func(z float64) Material) []Slab {
	n := int(math.Ceil((bottom - top) / maxThickness))
	if n < 1 {
		n = 1
	}
	h := (bottom - top) / float64(n)
	for k := 0; k < n; k++ {
		z0 := top + float64(k)*h
		z1 := z0 + h
		if k == n-1 {
			z1 = bottom
		}
		out = append(out, Slab{Top: z0, Bottom: z1, Material: at(0.5 * (z0 + z1))})
	}
	return out
}

// FlattenDepth maps a depth in a sphere of radius r to its depth under the
// earth-flattening transform.
func FlattenDepth(z, r float64) float64 {
	if z >= r {
		return math.Inf(1)
	}
	return r * math.Log1p(z/(r-z))
}

// FlattenFactor is the velocity scale factor of the earth-flattening transform
// at depth z.
func FlattenFactor(z, r float64) float64 {
	return r / (r - z)
}
