package ahfull

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/roach88/gfstore/internal/backend"
	"github.com/roach88/gfstore/internal/config"
	"github.com/roach88/gfstore/internal/earthmodel"
	"github.com/roach88/gfstore/internal/gf"
	"github.com/roach88/gfstore/internal/testutil"
)

var rock = earthmodel.Material{Vp: 6000, Vs: 3460, Rho: 2700}

func TestSynthesize_ExplosionStatic(t *testing.T) {
	rcv := r3.Vec{X: 3000, Y: 4000, Z: 0}
	r := 5000.0
	g := Grid{Tmin: 0, Deltat: 0.01, N: 300}

	u, err := Synthesize(rock, gf.Isotropic(1), rcv, g)
	require.NoError(t, err)

	static := 1 / (4 * math.Pi * rock.Rho * rock.Vp * rock.Vp * r * r)
	last := g.N - 1
	assert.InDelta(t, static*3/5, u[0][last], static*1e-9)
	assert.InDelta(t, static*4/5, u[1][last], static*1e-9)
	assert.InDelta(t, 0.0, u[2][last], static*1e-9)

	// nothing before the P arrival
	ta := r / rock.Vp
	for i := 0; float64(i)*g.Deltat < ta-g.Deltat; i++ {
		assert.Zero(t, u[0][i])
	}
}

func TestSynthesize_Linear(t *testing.T) {
	rcv := r3.Vec{X: 8000, Y: -2000, Z: 3000}
	g := Grid{Tmin: 1, Deltat: 0.05, N: 80}

	m := gf.MomentTensor{0.3, -1.2, 0.9, 0.5, -0.7, 0.2}
	sum, err := Synthesize(rock, m, rcv, g)
	require.NoError(t, err)

	var acc [3][]float64
	for i := range acc {
		acc[i] = make([]float64, g.N)
	}
	for j, v := range m {
		var unit gf.MomentTensor
		unit[j] = 1
		u, err := Synthesize(rock, unit, rcv, g)
		require.NoError(t, err)
		for c := 0; c < 3; c++ {
			floats.AddScaled(acc[c], v, u[c])
		}
	}
	for c := 0; c < 3; c++ {
		tol := 1e-9 * floats.Norm(sum[c], math.Inf(1))
		assert.True(t, floats.EqualApprox(sum[c], acc[c], tol), "component %d", c)
	}
}

func TestSynthesize_NoTransverseInPlane(t *testing.T) {
	rcv := r3.Vec{X: 10000, Y: 0, Z: -2000}
	g := Grid{Tmin: 1, Deltat: 0.05, N: 80}
	for _, e := range []gf.Element{gf.ElemXX, gf.ElemYY, gf.ElemZZ, gf.ElemXZ} {
		u, err := Synthesize(rock, e.Tensor(), rcv, g)
		require.NoError(t, err)
		assert.Zero(t, floats.Norm(u[1], math.Inf(1)), "element %s", e)
	}
	for _, e := range []gf.Element{gf.ElemXY, gf.ElemYZ} {
		u, err := Synthesize(rock, e.Tensor(), rcv, g)
		require.NoError(t, err)
		assert.Zero(t, floats.Norm(u[0], math.Inf(1)), "element %s", e)
		assert.Positive(t, floats.Norm(u[1], math.Inf(1)), "element %s", e)
	}
}

func TestSynthesize_Errors(t *testing.T) {
	g := Grid{Deltat: 0.1, N: 10}
	_, err := Synthesize(rock, gf.Isotropic(1), r3.Vec{}, g)
	assert.Error(t, err)
	_, err = Synthesize(earthmodel.Material{Vp: 6000}, gf.Isotropic(1), r3.Vec{X: 1}, g)
	assert.Error(t, err)
}

func TestImpulseAndStep(t *testing.T) {
	g := Grid{Tmin: 0, Deltat: 0.1, N: 10}
	imp := impulse(0.425, g)
	assert.InDelta(t, 1.0, floats.Sum(imp)*g.Deltat, 1e-12)
	assert.InDelta(t, 7.5, imp[4], 1e-9)
	assert.InDelta(t, 2.5, imp[5], 1e-9)

	s := step(0.425, g)
	assert.Equal(t, 0.0, s[3])
	assert.InDelta(t, 0.75, s[4], 1e-9)
	assert.Equal(t, 1.0, s[5])

	// before the window
	assert.Equal(t, 1.0, step(-1, g)[0])
	assert.Zero(t, floats.Sum(impulse(-1, g)))
}

func TestAdapter_Elastic10(t *testing.T) {
	cfg := testutil.SmallConfig(ID)
	a, err := NewAdapter(cfg, DefaultExtra())
	require.NoError(t, err)

	part := backend.NewPartition(cfg, 0)
	in, err := a.Translate(part, backend.Env{})
	require.NoError(t, err)
	out, err := a.Run(context.Background(), in)
	require.NoError(t, err)
	traces, err := a.Parse(out)
	require.NoError(t, err)
	require.Len(t, traces, 5*10)

	for _, tr := range traces {
		r := math.Hypot(part.Distances[tr.IX], part.SourceDepth)
		ta := r / 6000
		assert.LessOrEqual(t, tr.Tmin, ta, "ix=%d", tr.IX)
		assert.InDelta(t, 0, math.Remainder(tr.Tmin, cfg.Deltat()), 1e-9)
		assert.Equal(t, cfg.Deltat(), tr.Deltat)
		assert.Zero(t, tr.Samples[0], "starts before the P arrival")
	}
}

func TestAdapter_Elastic2(t *testing.T) {
	cfg := testutil.SmallConfig(ID)
	cfg.ComponentScheme = config.SchemeElastic2
	cfg.NComponents = 2
	a, err := NewAdapter(cfg, DefaultExtra())
	require.NoError(t, err)

	part := backend.NewPartition(cfg, 1)
	out, err := a.Run(context.Background(), &backend.Input{Partition: part})
	require.NoError(t, err)
	traces, err := a.Parse(out)
	require.NoError(t, err)
	require.Len(t, traces, 5*2)

	for _, tr := range traces {
		x, z := part.Distances[tr.IX], -part.SourceDepth
		r := math.Hypot(x, z)
		static := 1 / (4 * math.Pi * 2700 * 6000 * 6000 * r * r)
		last := tr.Samples[len(tr.Samples)-1]
		switch tr.IC {
		case gf.CompIsoR:
			assert.InEpsilon(t, static*x/r, last, 1e-6)
		case gf.CompIsoD:
			assert.InEpsilon(t, static*z/r, last, 1e-6)
		}
	}
}

func TestAdapter_Cancelled(t *testing.T) {
	cfg := testutil.SmallConfig(ID)
	a, err := NewAdapter(cfg, DefaultExtra())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = a.Run(ctx, &backend.Input{Partition: backend.NewPartition(cfg, 0)})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestExtra(t *testing.T) {
	cfg := testutil.SmallConfig(ID)

	e, err := Family{}.DecodeExtra([]byte("margin_samples: 3\ncut: [begin-1, end]\n"))
	require.NoError(t, err)
	require.NoError(t, e.Validate(cfg))
	_, _, ok := e.Cut()
	assert.True(t, ok)

	bad := &Extra{MarginSamples: 0, CutRegion: &[2]config.Timing{config.MustParseTiming("nope"), config.MustParseTiming("0")}}
	err = bad.Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "margin_samples")
	assert.Contains(t, err.Error(), "cut")
}
