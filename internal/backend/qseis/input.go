package qseis

import (
	"fmt"
	"strings"

	"github.com/roach88/gfstore/internal/backend"
	"github.com/roach88/gfstore/internal/earthmodel"
)

type inputParams struct {
	SourceDepth            float64 // m
	ReceiverDepth          float64 // m
	Distances              []float64
	TimeStart              float64
	TimeWindow             float64
	NSamples               int
	SlownessWindow         [4]float64
	AliasingSuppression    float64
	WaveletDurationSamples float64
	FlatEarthTransform     bool
	Roots                  []string
	Model                  *earthmodel.Model
	ReceiverModel          *earthmodel.Model
}

// renderInput writes the QSEIS input file. Lengths are in km.
func renderInput(p inputParams) []byte {
	var f backend.InputFile
	f.Comment("gfstore qseis input")
	f.Line("source depth [km]", "%.6f", p.SourceDepth/1000)
	f.Line("receiver depth [km]", "%.6f", p.ReceiverDepth/1000)

	dists := make([]string, len(p.Distances))
	for i, d := range p.Distances {
		dists[i] = fmt.Sprintf("%.6f", d/1000)
	}
	f.Line("number of distances", "%d", len(p.Distances))
	f.Line("distances [km]", "%s", strings.Join(dists, " "))

	f.Line("time start [s]", "%.6f", p.TimeStart)
	f.Line("time window [s]", "%.6f", p.TimeWindow)
	f.Line("number of samples", "%d", p.NSamples)

	sw := p.SlownessWindow
	f.Line("slowness window [s/km]", "%.6f %.6f %.6f %.6f", sw[0], sw[1], sw[2], sw[3])
	f.Line("aliasing suppression factor", "%.6f", p.AliasingSuppression)
	f.Line("wavelet duration [samples]", "%.6f", p.WaveletDurationSamples)
	f.Line("flat earth transform", "%d", backend.BoolFlag(p.FlatEarthTransform))

	f.Line("number of green's function files", "%d", len(p.Roots))
	for _, r := range p.Roots {
		f.Line("green's function file root", "'%s'", r)
	}

	f.Model("source side model", p.Model)
	f.Model("receiver side model", p.ReceiverModel)
	return f.Bytes()
}
