package gf

import (
	"errors"
	"fmt"
	"math"
)

// Source types.
const (
	SourceMT          = "mt"
	SourceDC          = "dc"
	SourceExplosion   = "explosion"
	SourceRectangular = "rectangular"
)

// PointSource is one elementary moment-tensor point source.
type PointSource struct {
	Location
	Time float64
	M6   MomentTensor
}

// Source is anything that can be reduced to a set of point sources.
type Source interface {
	// Discretize returns the point sources representing the source. deltat
	// is the sampling interval of the store the source will be evaluated on.
	Discretize(deltat float64) ([]PointSource, error)
	// SourceTimeFunction returns the moment-rate function, or nil for an
	// impulse.
	SourceTimeFunction() *STF
	// Base returns the common source attributes.
	Base() *SourceBase
}

// SourceBase carries the fields common to every source.
type SourceBase struct {
	Type     string  `yaml:"type" json:"type"`
	Location `yaml:",inline"`
	Time     float64 `yaml:"time" json:"time"`
	STF      *STF    `yaml:"stf,omitempty" json:"stf,omitempty"`
}

// SourceTimeFunction returns the configured STF.
func (b *SourceBase) SourceTimeFunction() *STF { return b.STF }

// Base returns b.
func (b *SourceBase) Base() *SourceBase { return b }

func (b *SourceBase) point(m MomentTensor) ([]PointSource, error) {
	if b.Depth < 0 {
		return nil, fmt.Errorf("source depth must not be negative, got %g", b.Depth)
	}
	return []PointSource{{Location: b.Location, Time: b.Time, M6: m}}, nil
}

// MTSource is a point source with a full moment tensor.
type MTSource struct {
	SourceBase `yaml:",inline"`
	M6         MomentTensor `yaml:"m6"`
}

// Discretize returns the single point source.
func (s *MTSource) Discretize(float64) ([]PointSource, error) {
	return s.point(s.M6)
}

// DCSource is a double-couple point source.
type DCSource struct {
	SourceBase `yaml:",inline"`
	Strike     float64 `yaml:"strike"`
	Dip        float64 `yaml:"dip"`
	Rake       float64 `yaml:"rake"`
	Magnitude  float64 `yaml:"magnitude"`
}

// MomentTensor returns the tensor of the double couple.
func (s *DCSource) MomentTensor() MomentTensor {
	return DoubleCouple(s.Strike, s.Dip, s.Rake, MagnitudeToMoment(s.Magnitude))
}

// Discretize returns the single point source.
func (s *DCSource) Discretize(float64) ([]PointSource, error) {
	return s.point(s.MomentTensor())
}

// ExplosionSource is an isotropic point source. Moment takes precedence over
// Magnitude when both are set.
type ExplosionSource struct {
	SourceBase `yaml:",inline"`
	Moment     float64 `yaml:"moment,omitempty"`
	Magnitude  float64 `yaml:"magnitude,omitempty"`
}

// Discretize returns the single point source.
func (s *ExplosionSource) Discretize(float64) ([]PointSource, error) {
	m0 := s.Moment
	if m0 == 0 {
		m0 = MagnitudeToMoment(s.Magnitude)
	}
	return s.point(Isotropic(m0))
}

// ErrIncompleteMechanism is returned when only some of strike, dip and rake
// are given.
var ErrIncompleteMechanism = errors.New("strike, dip and rake must be used in combination")

// DefaultRuptureVelocity is used when a rectangular source sets none.
const DefaultRuptureVelocity = 3500.0

// maxSubfaults bounds the discretisation along each fault dimension.
const maxSubfaults = 64

// RectangularSource is a finite rectangular fault with uniform slip direction,
// centred on its location. Rupture spreads from the nucleation point at a
// constant velocity.
type RectangularSource struct {
	SourceBase `yaml:",inline"`
	Strike     *float64 `yaml:"strike,omitempty"`
	Dip        *float64 `yaml:"dip,omitempty"`
	Rake       *float64 `yaml:"rake,omitempty"`
	Length     float64  `yaml:"length,omitempty"`
	Width      float64  `yaml:"width,omitempty"`
	Magnitude  float64  `yaml:"magnitude"`
	// NucleationX and NucleationY locate the hypocentre relative to the
	// fault: -1 and 1 are the fault edges along strike and down dip.
	NucleationX float64 `yaml:"nucleation_x,omitempty"`
	NucleationY float64 `yaml:"nucleation_y,omitempty"`
	Velocity    float64 `yaml:"velocity,omitempty"`
}

// Mechanism returns strike, dip and rake, defaulting to a vertical
// strike-slip fault when none is given.
func (s *RectangularSource) Mechanism() (strike, dip, rake float64, err error) {
	set := 0
	for _, v := range []*float64{s.Strike, s.Dip, s.Rake} {
		if v != nil {
			set++
		}
	}
	switch set {
	case 0:
		return 0, 90, 0, nil
	case 3:
		return *s.Strike, *s.Dip, *s.Rake, nil
	default:
		return 0, 0, 0, ErrIncompleteMechanism
	}
}

// Dimensions returns length and width, deriving unset ones from the moment
// with the scaling relations of Mai and Beroza (2000).
func (s *RectangularSource) Dimensions() (length, width float64) {
	m0 := MagnitudeToMoment(s.Magnitude)
	length, width = s.Length, s.Width
	if length == 0 {
		length = math.Exp(-6.27 + 0.4*math.Log(m0))
	}
	if width == 0 {
		width = math.Exp(-4.24 + 0.32*math.Log(m0))
	}
	return length, width
}

// Discretize splits the fault into subfaults no larger than the distance the
// rupture front travels in one sample interval.
func (s *RectangularSource) Discretize(deltat float64) ([]PointSource, error) {
	strike, dip, rake, err := s.Mechanism()
	if err != nil {
		return nil, err
	}
	length, width := s.Dimensions()
	vr := s.Velocity
	if vr == 0 {
		vr = DefaultRuptureVelocity
	}
	if deltat <= 0 {
		return nil, fmt.Errorf("discretize rectangular source: non-positive deltat %g", deltat)
	}

	step := vr * deltat
	nl := clampCount(math.Ceil(length / step))
	nw := clampCount(math.Ceil(width / step))

	m0 := MagnitudeToMoment(s.Magnitude) / float64(nl*nw)
	mt := DoubleCouple(strike, dip, rake, m0)

	sr, dr := strike*d2r, dip*d2r
	alongN, alongE := math.Cos(sr), math.Sin(sr)
	downN, downE, downD := -math.Sin(sr)*math.Cos(dr), math.Cos(sr)*math.Cos(dr), math.Sin(dr)

	nucU := 0.5 * s.NucleationX * length
	nucV := 0.5 * s.NucleationY * width

	points := make([]PointSource, 0, nl*nw)
	for iw := 0; iw < nw; iw++ {
		v := (float64(iw)+0.5)/float64(nw)*width - 0.5*width
		for il := 0; il < nl; il++ {
			u := (float64(il)+0.5)/float64(nl)*length - 0.5*length
			loc := s.Location
			loc.NorthShift += u*alongN + v*downN
			loc.EastShift += u*alongE + v*downE
			loc.Depth += v * downD
			if loc.Depth < 0 {
				return nil, fmt.Errorf("rectangular source extends above the surface (depth %g)", loc.Depth)
			}
			points = append(points, PointSource{
				Location: loc,
				Time:     s.Time + math.Hypot(u-nucU, v-nucV)/vr,
				M6:       mt,
			})
		}
	}
	return points, nil
}

func clampCount(n float64) int {
	if n < 1 {
		return 1
	}
	if n > maxSubfaults {
		return maxSubfaults
	}
	return int(n)
}
