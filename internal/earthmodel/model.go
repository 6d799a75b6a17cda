// Package earthmodel reads and represents one-dimensional layered earth
// models.
//
// Models are read from the "nd" text format: one depth point per line with
// depth [km], vp [km/s], vs [km/s], density [g/cm³] and optional qp and qs.
// Two consecutive points at the same depth mark a first-order discontinuity;
// between points at different depths properties vary linearly. A line holding
// a single word (for example "mantle") names the discontinuity that follows.
//
// Internally all values are SI: metres, metres per second, kilograms per cubic
// metre.
package earthmodel

import (
	"bufio"
	"fmt"
	"math"
	"strconv"
	"strings"
)

const (
	km = 1000.0

	// Quality factors used when a line carries only four columns.
	DefaultQp = 1456.0
	DefaultQs = 600.0
)

// Material holds elastic properties at a point.
type Material struct {
	Vp  float64 // m/s
	Vs  float64 // m/s
	Rho float64 // kg/m³
	Qp  float64
	Qs  float64
}

// Point is a depth sample of the model.
type Point struct {
	Depth float64 // m
	Material
	// Label names the discontinuity starting at this point, if any.
	Label string
}

// Model is an ordered sequence of depth points, shallowest first.
// A Model is immutable once parsed; all methods are read-only.
type Model struct {
	points []Point
}

// ParseError reports a malformed line in nd text.
type ParseError struct {
	Line    int
	Message string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("earth model line %d: %s", e.Line, e.Message)
}

// ParseND parses nd text into a Model and validates it.
func ParseND(text string) (*Model, error) {
	var (
		points  []Point
		label   string
		lineNum int
	)

	scanner := bufio.NewScanner(strings.NewReader(text))
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.Fields(line)
		if len(fields) == 1 {
			if _, err := strconv.ParseFloat(fields[0], 64); err != nil {
				label = fields[0]
				continue
			}
		}

		if len(fields) != 4 && len(fields) != 6 {
			return nil, &ParseError{Line: lineNum, Message: fmt.Sprintf("expected 4 or 6 columns, got %d", len(fields))}
		}

		vals := make([]float64, len(fields))
		for i, f := range fields {
			v, err := strconv.ParseFloat(f, 64)
			if err != nil {
				return nil, &ParseError{Line: lineNum, Message: fmt.Sprintf("column %d: %v", i+1, err)}
			}
			vals[i] = v
		}

		p := Point{
			Depth: vals[0] * km,
			Material: Material{
				Vp:  vals[1] * km,
				Vs:  vals[2] * km,
				Rho: vals[3] * km,
				Qp:  DefaultQp,
				Qs:  DefaultQs,
			},
			Label: label,
		}
		if len(vals) == 6 {
			p.Qp = vals[4]
			p.Qs = vals[5]
		}
		label = ""
		points = append(points, p)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read earth model: %w", err)
	}

	m := &Model{points: points}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// New builds a Model from points and validates it.
func New(points []Point) (*Model, error) {
	m := &Model{points: append([]Point(nil), points...)}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// Validate checks ordering and physical plausibility of the points.
func (m *Model) Validate() error {
	if len(m.points) == 0 {
		return fmt.Errorf("earth model has no depth points")
	}
	if m.points[0].Depth < 0 {
		return fmt.Errorf("earth model starts at negative depth %g m", m.points[0].Depth)
	}
	for i, p := range m.points {
		if p.Vp <= 0 {
			return fmt.Errorf("earth model point %d: vp must be positive", i+1)
		}
		if p.Vs < 0 || p.Vs >= p.Vp {
			return fmt.Errorf("earth model point %d: vs must be in [0, vp)", i+1)
		}
		if p.Rho <= 0 {
			return fmt.Errorf("earth model point %d: density must be positive", i+1)
		}
		if i == 0 {
			continue
		}
		prev := m.points[i-1]
		if p.Depth < prev.Depth {
			return fmt.Errorf("earth model point %d: depth %g km above previous point", i+1, p.Depth/km)
		}
		if i >= 2 && p.Depth == prev.Depth && prev.Depth == m.points[i-2].Depth {
			return fmt.Errorf("earth model point %d: more than two points at depth %g km", i+1, p.Depth/km)
		}
	}
	return nil
}

// Points returns a copy of the depth points.
func (m *Model) Points() []Point {
	return append([]Point(nil), m.points...)
}

// MaxDepth returns the depth of the deepest point. Below it the model
// continues as a homogeneous half-space.
func (m *Model) MaxDepth() float64 {
	return m.points[len(m.points)-1].Depth
}

// Material returns the properties at depth. At a discontinuity the material
// below the interface is returned.
func (m *Model) Material(depth float64) Material {
	pts := m.points
	if depth < pts[0].Depth {
		return pts[0].Material
	}
	for i := len(pts) - 1; i >= 0; i-- {
		if pts[i].Depth > depth {
			continue
		}
		if i == len(pts)-1 {
			return pts[i].Material
		}
		next := pts[i+1]
		if next.Depth == pts[i].Depth {
			return next.Material
		}
		f := (depth - pts[i].Depth) / (next.Depth - pts[i].Depth)
		return lerp(pts[i].Material, next.Material, f)
	}
	return pts[0].Material
}

// Discontinuities returns the depths of first-order discontinuities.
func (m *Model) Discontinuities() []float64 {
	var out []float64
	for i := 1; i < len(m.points); i++ {
		if m.points[i].Depth == m.points[i-1].Depth {
			out = append(out, m.points[i].Depth)
		}
	}
	return out
}

// String renders the model as nd text. Parsing the result yields an equal
// model.
func (m *Model) String() string {
	var b strings.Builder
	for _, p := range m.points {
		if p.Label != "" {
			b.WriteString(p.Label)
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%s %s %s %s %s %s\n",
			formatKM(p.Depth), formatKM(p.Vp), formatKM(p.Vs), formatKM(p.Rho),
			formatPlain(p.Qp), formatPlain(p.Qs))
	}
	return b.String()
}

// Equal reports whether two models have identical points.
func (m *Model) Equal(o *Model) bool {
	if m == nil || o == nil {
		return m == o
	}
	if len(m.points) != len(o.points) {
		return false
	}
	for i := range m.points {
		if m.points[i] != o.points[i] {
			return false
		}
	}
	return true
}

func lerp(a, b Material, f float64) Material {
	mix := func(x, y float64) float64 { return x + (y-x)*f }
	return Material{
		Vp:  mix(a.Vp, b.Vp),
		Vs:  mix(a.Vs, b.Vs),
		Rho: mix(a.Rho, b.Rho),
		Qp:  mix(a.Qp, b.Qp),
		Qs:  mix(a.Qs, b.Qs),
	}
}

func formatKM(v float64) string {
	return formatPlain(v / km)
}

func formatPlain(v float64) string {
	if v == math.Trunc(v) && math.Abs(v) < 1e15 {
		return strconv.FormatFloat(v, 'f', 1, 64)
	}
	return strconv.FormatFloat(v, 'g', 10, 64)
}
