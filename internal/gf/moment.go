package gf

import (
	"fmt"
	"math"
)

// MomentTensor is a symmetric moment tensor in the north-east-down frame,
// stored as m6 = (mnn, mee, mdd, mne, mnd, med) in Nm.
type MomentTensor [6]float64

// Component indices into a MomentTensor.
const (
	MNN = iota
	MEE
	MDD
	MNE
	MND
	MED
)

// MagnitudeToMoment converts moment magnitude to scalar moment in Nm.
func MagnitudeToMoment(mw float64) float64 {
	return math.Pow(10, 1.5*(mw+10.7)) * 1e-7
}

// MomentToMagnitude converts scalar moment in Nm to moment magnitude.
func MomentToMagnitude(m0 float64) float64 {
	return math.Log10(m0*1e7)/1.5 - 10.7
}

// DoubleCouple returns the moment tensor of a double couple with the given
// strike, dip and rake (degrees) and scalar moment (Nm), following Aki &
// Richards (1980) box 4.4 with x=north, y=east, z=down.
func DoubleCouple(strike, dip, rake, moment float64) MomentTensor {
	s, d, r := strike*d2r, dip*d2r, rake*d2r
	sd, cd := math.Sin(d), math.Cos(d)
	s2d, c2d := math.Sin(2*d), math.Cos(2*d)
	ss, cs := math.Sin(s), math.Cos(s)
	s2s, c2s := math.Sin(2*s), math.Cos(2*s)
	sr, cr := math.Sin(r), math.Cos(r)

	return MomentTensor{
		MNN: -moment * (sd*cr*s2s + s2d*sr*ss*ss),
		MEE: moment * (sd*cr*s2s - s2d*sr*cs*cs),
		MDD: moment * s2d * sr,
		MNE: moment * (sd*cr*c2s + 0.5*s2d*sr*s2s),
		MND: -moment * (cd*cr*cs + c2d*sr*ss),
		MED: -moment * (cd*cr*ss - c2d*sr*cs),
	}
}

// Isotropic returns the moment tensor of an explosion of the given moment.
func Isotropic(moment float64) MomentTensor {
	return MomentTensor{MNN: moment, MEE: moment, MDD: moment}
}

// Matrix returns the full 3x3 tensor.
func (m MomentTensor) Matrix() [3][3]float64 {
	return [3][3]float64{
		{m[MNN], m[MNE], m[MND]},
		{m[MNE], m[MEE], m[MED]},
		{m[MND], m[MED], m[MDD]},
	}
}

// ScalarMoment returns the Frobenius-norm based scalar moment
// sqrt(sum(Mij²)/2).
func (m MomentTensor) ScalarMoment() float64 {
	var s float64
	for _, row := range m.Matrix() {
		for _, v := range row {
			s += v * v
		}
	}
	return math.Sqrt(s / 2)
}

// Scale returns the tensor multiplied by f.
func (m MomentTensor) Scale(f float64) MomentTensor {
	for i := range m {
		m[i] *= f
	}
	return m
}

// IsotropicPart returns one third of the trace.
func (m MomentTensor) IsotropicPart() float64 {
	return (m[MNN] + m[MEE] + m[MDD]) / 3
}

// IsPurelyIsotropic reports whether the deviatoric part is negligible
// relative to the tensor's size.
func (m MomentTensor) IsPurelyIsotropic() bool {
	iso := m.IsotropicPart()
	dev := MomentTensor{m[MNN] - iso, m[MEE] - iso, m[MDD] - iso, m[MNE], m[MND], m[MED]}
	scale := math.Max(m.ScalarMoment(), math.SmallestNonzeroFloat64)
	return dev.ScalarMoment() <= 1e-9*scale
}

func (m MomentTensor) String() string {
	return fmt.Sprintf("mnn=%g mee=%g mdd=%g mne=%g mnd=%g med=%g", m[MNN], m[MEE], m[MDD], m[MNE], m[MND], m[MED])
}
