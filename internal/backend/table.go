package backend

import (
	"bufio"
	"bytes"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Table is a whitespace-separated numeric table as written by the modelling
// programs: a time column followed by one column per trace.
type Table struct {
	Columns [][]float64
}

// ParseTable parses numeric rows. Lines that do not start with a number are
// treated as headers and skipped; every data row must have the same width.
func ParseTable(data []byte) (*Table, error) {
	var t Table
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}
		if _, err := strconv.ParseFloat(fortranExponent(fields[0]), 64); err != nil {
			if t.Columns != nil {
				return nil, fmt.Errorf("line %d: text after data rows", lineNo)
			}
			continue
		}
		if t.Columns == nil {
			t.Columns = make([][]float64, len(fields))
		}
		if len(fields) != len(t.Columns) {
			return nil, fmt.Errorf("line %d: %d columns, expected %d", lineNo, len(fields), len(t.Columns))
		}
		for i, f := range fields {
			v, err := strconv.ParseFloat(fortranExponent(f), 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", lineNo, err)
			}
			t.Columns[i] = append(t.Columns[i], v)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if len(t.Columns) == 0 {
		return nil, fmt.Errorf("no data rows")
	}
	return &t, nil
}

// fortranExponent rewrites a Fortran "D" exponent as "E".
func fortranExponent(s string) string {
	return strings.NewReplacer("D", "E", "d", "e").Replace(s)
}

// NRows returns the number of data rows.
func (t *Table) NRows() int {
	if len(t.Columns) == 0 {
		return 0
	}
	return len(t.Columns[0])
}

// TimeAxis checks that the first column is evenly sampled at deltat
// and returns its first value.
func (t *Table) TimeAxis(deltat float64) (float64, error) {
	times := t.Columns[0]
	if len(times) < 2 {
		return 0, fmt.Errorf("need at least 2 samples, got %d", len(times))
	}
	for i := 1; i < len(times); i++ {
		if math.Abs(times[i]-times[i-1]-deltat) > 1e-2*deltat {
			return 0, fmt.Errorf("sampling interval %g at row %d, expected %g", times[i]-times[i-1], i, deltat)
		}
	}
	return times[0], nil
}
