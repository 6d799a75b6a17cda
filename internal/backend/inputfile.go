package backend

import (
	"bytes"
	"fmt"

	"github.com/roach88/gfstore/internal/earthmodel"
)

// InputFile builds the line-oriented input files read by the QSEIS family
// of programs. Each value line carries a comment after '|' naming the field.
type InputFile struct {
	buf bytes.Buffer
}

// Comment writes a '#' comment line.
func (f *InputFile) Comment(text string) {
	fmt.Fprintf(&f.buf, "# %s\n", text)
}

// Line writes a formatted value followed by its field comment.
func (f *InputFile) Line(comment, format string, args ...any) {
	fmt.Fprintf(&f.buf, "%-34s|%s\n", fmt.Sprintf(format, args...), comment)
}

// Model writes a layer count line followed by one row per model point:
// index, depth [km], vp, vs [km/s], rho [g/cm³], qp, qs. A nil model is
// written as zero layers.
func (f *InputFile) Model(name string, m *earthmodel.Model) {
	if m == nil {
		f.Line(name+" layers", "%d", 0)
		return
	}
	pts := m.Points()
	f.Line(name+" layers", "%d", len(pts))
	for i, p := range pts {
		fmt.Fprintf(&f.buf, "%d %.4f %.4f %.4f %.4f %.1f %.1f\n",
			i+1, p.Depth/1000, p.Vp/1000, p.Vs/1000, p.Rho/1000, p.Qp, p.Qs)
	}
}

// Bytes returns the rendered file.
func (f *InputFile) Bytes() []byte {
	return f.buf.Bytes()
}

// BoolFlag renders a switch as 0 or 1.
func BoolFlag(v bool) int {
	if v {
		return 1
	}
	return 0
}
