// Package gf holds the domain types shared by the store, the backends and the
// query engine: locations, sources, moment tensors, source time functions,
// targets and traces.
//
// Conventions: lengths in metres, angles in degrees, times in seconds.
// Moment tensors use the north-east-down frame.
package gf

import "math"

const (
	d2r = math.Pi / 180
	r2d = 180 / math.Pi
)

// Location is a point given by a geographic reference plus local
// north/east offsets and a depth.
type Location struct {
	Lat        float64 `yaml:"lat" json:"lat"`
	Lon        float64 `yaml:"lon" json:"lon"`
	NorthShift float64 `yaml:"north_shift" json:"north_shift"`
	EastShift  float64 `yaml:"east_shift" json:"east_shift"`
	Depth      float64 `yaml:"depth" json:"depth"`
}

// sameOrigin reports whether both locations share their geographic
// reference, in which case the local offsets can be compared on a plane.
func (l Location) sameOrigin(o Location) bool {
	return l.Lat == o.Lat && l.Lon == o.Lon
}

// EffectiveLatLon returns the geographic position including the local
// offsets, computed on a sphere of radius r.
func (l Location) EffectiveLatLon(r float64) (lat, lon float64) {
	if l.NorthShift == 0 && l.EastShift == 0 {
		return l.Lat, l.Lon
	}
	dist := math.Hypot(l.NorthShift, l.EastShift)
	azi := math.Atan2(l.EastShift, l.NorthShift) * r2d
	return pointAt(l.Lat, l.Lon, azi, dist/r)
}

// DistanceTo returns the surface distance to o on a sphere of radius r.
func (l Location) DistanceTo(o Location, r float64) float64 {
	if l.sameOrigin(o) {
		return math.Hypot(o.NorthShift-l.NorthShift, o.EastShift-l.EastShift)
	}
	alat, alon := l.EffectiveLatLon(r)
	blat, blon := o.EffectiveLatLon(r)
	return r * centralAngle(alat, alon, blat, blon)
}

// AziBazi returns the azimuth from l to o and the back-azimuth from o to l,
// both in degrees clockwise from north.
func (l Location) AziBazi(o Location, r float64) (azi, bazi float64) {
	if l.sameOrigin(o) {
		dn := o.NorthShift - l.NorthShift
		de := o.EastShift - l.EastShift
		azi = math.Atan2(de, dn) * r2d
		return azi, wrap180(azi + 180)
	}
	alat, alon := l.EffectiveLatLon(r)
	blat, blon := o.EffectiveLatLon(r)
	return bearing(alat, alon, blat, blon), bearing(blat, blon, alat, alon)
}

func centralAngle(lat1, lon1, lat2, lon2 float64) float64 {
	p1, p2 := lat1*d2r, lat2*d2r
	dp := p2 - p1
	dl := (lon2 - lon1) * d2r
	h := math.Sin(dp/2)*math.Sin(dp/2) + math.Cos(p1)*math.Cos(p2)*math.Sin(dl/2)*math.Sin(dl/2)
	return 2 * math.Asin(math.Min(1, math.Sqrt(h)))
}

func bearing(lat1, lon1, lat2, lon2 float64) float64 {
	p1, p2 := lat1*d2r, lat2*d2r
	dl := (lon2 - lon1) * d2r
	y := math.Sin(dl) * math.Cos(p2)
	x := math.Cos(p1)*math.Sin(p2) - math.Sin(p1)*math.Cos(p2)*math.Cos(dl)
	return math.Atan2(y, x) * r2d
}

// pointAt moves from (lat, lon) along azimuth azi by angular distance delta
// (radians).
func pointAt(lat, lon, azi, delta float64) (float64, float64) {
	p1, l1, a := lat*d2r, lon*d2r, azi*d2r
	p2 := math.Asin(math.Sin(p1)*math.Cos(delta) + math.Cos(p1)*math.Sin(delta)*math.Cos(a))
	l2 := l1 + math.Atan2(math.Sin(a)*math.Sin(delta)*math.Cos(p1), math.Cos(delta)-math.Sin(p1)*math.Sin(p2))
	return p2 * r2d, wrap180(l2 * r2d)
}

func wrap180(deg float64) float64 {
	deg = math.Mod(deg+180, 360)
	if deg < 0 {
		deg += 360
	}
	return deg - 180
}
