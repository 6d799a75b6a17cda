// Package ttt builds and stores travel-time tables.
//
// A table maps every (source depth, distance) node of a store grid to the
// arrival time of one tabulated phase. Nodes without a physical ray path hold
// an explicit absent arrival; interpolation never treats them as times.
package ttt

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"math"

	"github.com/roach88/gfstore/internal/config"
)

// Arrival is an optional travel time in seconds.
type Arrival struct {
	T     float64
	Valid bool
}

// NoArrival is the absent arrival.
var NoArrival = Arrival{}

// Add shifts a present arrival by dt.
func (a Arrival) Add(dt float64) Arrival {
	if !a.Valid {
		return a
	}
	return Arrival{T: a.T + dt, Valid: true}
}

// Table is the travel-time table of one phase over a store grid.
// Tables are immutable once built.
type Table struct {
	PhaseID    string
	DepthMin   float64
	DepthDelta float64
	NDepths    int
	DistMin    float64
	DistDelta  float64
	NDists     int

	times []float64
	valid []bool
}

// NewTable allocates a table on the grid of cfg with every node absent.
func NewTable(id string, cfg *config.Config) *Table {
	nz, nx := cfg.NSourceDepths(), cfg.NDistances()
	return &Table{
		PhaseID:    id,
		DepthMin:   cfg.SourceDepthMin,
		DepthDelta: cfg.SourceDepthDelta,
		NDepths:    nz,
		DistMin:    cfg.DistanceMin,
		DistDelta:  cfg.DistanceDelta,
		NDists:     nx,
		times:      make([]float64, nz*nx),
		valid:      make([]bool, nz*nx),
	}
}

// At returns the arrival at node (iz, ix).
func (t *Table) At(iz, ix int) Arrival {
	if iz < 0 || iz >= t.NDepths || ix < 0 || ix >= t.NDists {
		return NoArrival
	}
	i := iz*t.NDists + ix
	if !t.valid[i] {
		return NoArrival
	}
	return Arrival{T: t.times[i], Valid: true}
}

func (t *Table) set(iz, ix int, a Arrival) {
	i := iz*t.NDists + ix
	t.valid[i] = a.Valid
	if a.Valid {
		t.times[i] = a.T
	} else {
		t.times[i] = 0
	}
}

// Interpolate returns the bilinearly interpolated arrival at (depth,
// distance). Absent neighbours are excluded and the remaining weights are
// renormalised; if no neighbour with non-zero weight is present, or the point
// lies outside the grid, the result is absent.
func (t *Table) Interpolate(depth, distance float64) Arrival {
	zs, ok := axisWeights(depth, t.DepthMin, t.DepthDelta, t.NDepths)
	if !ok {
		return NoArrival
	}
	xs, ok := axisWeights(distance, t.DistMin, t.DistDelta, t.NDists)
	if !ok {
		return NoArrival
	}

	var sum, wsum float64
	for _, z := range zs {
		for _, x := range xs {
			w := z.w * x.w
			if w == 0 {
				continue
			}
			a := t.At(z.i, x.i)
			if !a.Valid {
				continue
			}
			sum += w * a.T
			wsum += w
		}
	}
	if wsum == 0 {
		return NoArrival
	}
	return Arrival{T: sum / wsum, Valid: true}
}

type axisWeight struct {
	i int
	w float64
}

// axisWeights returns the bracketing nodes and linear weights of v on a
// regular axis. Points within a small tolerance of the ends snap onto them.
func axisWeights(v, min, delta float64, n int) ([]axisWeight, bool) {
	if n <= 0 {
		return nil, false
	}
	tol := 1e-6 * math.Max(delta, 1)
	max := min + float64(n-1)*delta
	if v < min-tol || v > max+tol {
		return nil, false
	}
	if n == 1 || delta <= 0 {
		return []axisWeight{{i: 0, w: 1}}, true
	}
	f := (v - min) / delta
	i0 := int(math.Floor(f))
	if i0 < 0 {
		return []axisWeight{{i: 0, w: 1}}, true
	}
	if i0 >= n-1 {
		return []axisWeight{{i: n - 1, w: 1}}, true
	}
	r := f - float64(i0)
	return []axisWeight{{i: i0, w: 1 - r}, {i: i0 + 1, w: r}}, true
}

var tableMagic = [8]byte{'G', 'F', 'T', 'T', 'T', 0, 0, 1}

// ErrCorruptTable reports a phase file that cannot be decoded.
var ErrCorruptTable = errors.New("corrupt travel-time table")

// MarshalBinary encodes the table. Encoding is deterministic: equal tables
// produce identical bytes.
func (t *Table) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer
	w := func(v any) { _ = binary.Write(&buf, binary.LittleEndian, v) }

	buf.Write(tableMagic[:])
	w(uint32(t.NDepths))
	w(uint32(t.NDists))
	w(t.DepthMin)
	w(t.DepthDelta)
	w(t.DistMin)
	w(t.DistDelta)
	if len(t.PhaseID) > math.MaxUint16 {
		return nil, fmt.Errorf("phase id too long")
	}
	w(uint16(len(t.PhaseID)))
	buf.WriteString(t.PhaseID)
	w(t.times)
	for _, v := range t.valid {
		if v {
			buf.WriteByte(1)
		} else {
			buf.WriteByte(0)
		}
	}
	w(crc32.ChecksumIEEE(buf.Bytes()))
	return buf.Bytes(), nil
}

// UnmarshalBinary decodes a table written by MarshalBinary.
func (t *Table) UnmarshalBinary(data []byte) error {
	if len(data) < 8+4 {
		return fmt.Errorf("%w: too short", ErrCorruptTable)
	}
	body, sum := data[:len(data)-4], binary.LittleEndian.Uint32(data[len(data)-4:])
	if crc32.ChecksumIEEE(body) != sum {
		return fmt.Errorf("%w: checksum mismatch", ErrCorruptTable)
	}

	r := bytes.NewReader(body)
	var magic [8]byte
	if _, err := r.Read(magic[:]); err != nil || magic != tableMagic {
		return fmt.Errorf("%w: bad magic", ErrCorruptTable)
	}

	var (
		nz, nx uint32
		idLen  uint16
	)
	rd := func(v any) error { return binary.Read(r, binary.LittleEndian, v) }
	for _, v := range []any{&nz, &nx, &t.DepthMin, &t.DepthDelta, &t.DistMin, &t.DistDelta, &idLen} {
		if err := rd(v); err != nil {
			return fmt.Errorf("%w: header: %v", ErrCorruptTable, err)
		}
	}
	id := make([]byte, idLen)
	if _, err := r.Read(id); err != nil && idLen > 0 {
		return fmt.Errorf("%w: phase id: %v", ErrCorruptTable, err)
	}

	n := int(nz) * int(nx)
	if r.Len() != n*8+n {
		return fmt.Errorf("%w: expected %d nodes", ErrCorruptTable, n)
	}
	t.PhaseID = string(id)
	t.NDepths, t.NDists = int(nz), int(nx)
	t.times = make([]float64, n)
	if err := rd(t.times); err != nil {
		return fmt.Errorf("%w: times: %v", ErrCorruptTable, err)
	}
	flags := make([]byte, n)
	if _, err := r.Read(flags); err != nil && n > 0 {
		return fmt.Errorf("%w: flags: %v", ErrCorruptTable, err)
	}
	t.valid = make([]bool, n)
	for i, f := range flags {
		t.valid[i] = f == 1
	}
	return nil
}

// Equal reports whether two tables hold the same grid and arrivals.
func (t *Table) Equal(o *Table) bool {
	if t.PhaseID != o.PhaseID || t.NDepths != o.NDepths || t.NDists != o.NDists ||
		t.DepthMin != o.DepthMin || t.DepthDelta != o.DepthDelta ||
		t.DistMin != o.DistMin || t.DistDelta != o.DistDelta {
		return false
	}
	for i := range t.times {
		if t.valid[i] != o.valid[i] || t.times[i] != o.times[i] {
			return false
		}
	}
	return true
}
