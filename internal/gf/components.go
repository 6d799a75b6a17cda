package gf

import (
	"fmt"
	"math"
)

// Element is a unit symmetric moment-tensor element in the source-receiver
// frame: x horizontal from source towards receiver, y transverse (x rotated
// 90 degrees clockwise), z down.
type Element int

const (
	ElemXX Element = iota
	ElemYY
	ElemZZ
	ElemXY
	ElemXZ
	ElemYZ
)

// Elements lists every element in a fixed order.
var Elements = []Element{ElemXX, ElemYY, ElemZZ, ElemXY, ElemXZ, ElemYZ}

func (e Element) String() string {
	return [...]string{"xx", "yy", "zz", "xy", "xz", "yz"}[e]
}

// Tensor returns the element as a north-east-down tensor for a receiver due
// north of the source.
func (e Element) Tensor() MomentTensor {
	var m MomentTensor
	switch e {
	case ElemXX:
		m[MNN] = 1
	case ElemYY:
		m[MEE] = 1
	case ElemZZ:
		m[MDD] = 1
	case ElemXY:
		m[MNE] = 1
	case ElemXZ:
		m[MND] = 1
	case ElemYZ:
		m[MED] = 1
	}
	return m
}

// Elastic10 record layout. Component names give the displacement direction
// (R radial, T transverse, D down) and the element that excites it.
const (
	CompRXX = 0
	CompRXZ = 1
	CompRZZ = 2
	CompTXY = 3
	CompTYZ = 4
	CompDXX = 5
	CompDXZ = 6
	CompDZZ = 7
	CompRYY = 8
	CompDYY = 9
)

// Elastic2 record layout: response to a unit isotropic source.
const (
	CompIsoR = 0
	CompIsoD = 1
)

// Slots names the elastic10 components an element fills; -1 when the
// element does not excite that direction.
type Slots struct {
	R, T, D int
}

// Elastic10Slots maps each element to its record slots.
var Elastic10Slots = map[Element]Slots{
	ElemXX: {R: CompRXX, T: -1, D: CompDXX},
	ElemYY: {R: CompRYY, T: -1, D: CompDYY},
	ElemZZ: {R: CompRZZ, T: -1, D: CompDZZ},
	ElemXY: {R: -1, T: CompTXY, D: -1},
	ElemXZ: {R: CompRXZ, T: -1, D: CompDXZ},
	ElemYZ: {R: -1, T: CompTYZ, D: -1},
}

// Rotated returns the tensor elements in the source-receiver frame whose x
// axis points along azimuth azi (degrees clockwise from north).
func (m MomentTensor) Rotated(azi float64) (xx, yy, zz, xy, xz, yz float64) {
	b := azi * d2r
	cb, sb := math.Cos(b), math.Sin(b)
	s2b, c2b := math.Sin(2*b), math.Cos(2*b)

	xx = m[MNN]*cb*cb + m[MEE]*sb*sb + m[MNE]*s2b
	yy = m[MNN]*sb*sb + m[MEE]*cb*cb - m[MNE]*s2b
	zz = m[MDD]
	xy = 0.5*(m[MEE]-m[MNN])*s2b + m[MNE]*c2b
	xz = m[MND]*cb + m[MED]*sb
	yz = m[MED]*cb - m[MND]*sb
	return
}

// Weights are per-component factors for the radial, transverse and down
// displacement: u_r = sum(R[i]*G[i]) and so on.
type Weights struct {
	R, T, D []float64
}

// ComponentWeights returns the weights of the stored components for a
// moment tensor observed at source azimuth azi.
func ComponentWeights(scheme string, m MomentTensor, azi float64) (Weights, error) {
	switch scheme {
	case "elastic10":
		xx, yy, zz, xy, xz, yz := m.Rotated(azi)
		w := Weights{R: make([]float64, 10), T: make([]float64, 10), D: make([]float64, 10)}
		w.R[CompRXX], w.R[CompRXZ], w.R[CompRZZ], w.R[CompRYY] = xx, xz, zz, yy
		w.T[CompTXY], w.T[CompTYZ] = xy, yz
		w.D[CompDXX], w.D[CompDXZ], w.D[CompDZZ], w.D[CompDYY] = xx, xz, zz, yy
		return w, nil
	case "elastic2":
		if !m.IsPurelyIsotropic() {
			return Weights{}, fmt.Errorf("component scheme elastic2 supports isotropic sources only, got %s", m)
		}
		iso := m.IsotropicPart()
		return Weights{
			R: []float64{iso, 0},
			T: []float64{0, 0},
			D: []float64{0, iso},
		}, nil
	default:
		return Weights{}, fmt.Errorf("unknown component scheme %q", scheme)
	}
}

// ProjectionWeights returns the factors that project radial, transverse and
// down displacement onto a sensor with the given azimuth and dip (degrees,
// dip positive down). radialAzi is the azimuth of the radial direction at
// the receiver.
func ProjectionWeights(radialAzi, azimuth, dip float64) (wr, wt, wd float64) {
	da := (azimuth - radialAzi) * d2r
	cd, sd := math.Cos(dip*d2r), math.Sin(dip*d2r)
	return cd * math.Cos(da), cd * math.Sin(da), sd
}
