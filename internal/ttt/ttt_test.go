package ttt

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/gfstore/internal/config"
	"github.com/roach88/gfstore/internal/earthmodel"
)

// flatRadius makes the earth-flattening transform an identity to within
// numerical precision so that flat-layer formulas apply.
const flatRadius = 1e12

const twoLayer = `
0 6 3.5 2.8
20 6 3.5 2.8
20 8 4.5 3.3
`

func mustModel(t *testing.T, text string) *earthmodel.Model {
	t.Helper()
	m, err := earthmodel.ParseND(text)
	require.NoError(t, err)
	return m
}

func TestTracer_DirectUpgoing(t *testing.T) {
	tr := NewTracer(mustModel(t, "0 6 3.5 2.8\n"), flatRadius)
	br := tr.Branches(config.WaveP, LegUpUp, 10000, 0)

	a := br.FirstArrival(0)
	require.True(t, a.Valid)
	assert.InDelta(t, 10000.0/6000.0, a.T, 1e-6)

	a = br.FirstArrival(10000)
	require.True(t, a.Valid)
	assert.InDelta(t, math.Hypot(10000, 10000)/6000, a.T, 0.01)
}

func TestTracer_NoTurningInHomogeneousHalfspace(t *testing.T) {
	tr := NewTracer(mustModel(t, "0 6 3.5 2.8\n"), flatRadius)
	br := tr.Branches(config.WaveP, LegDownUp, 10000, 0)
	assert.False(t, br.FirstArrival(50000).Valid)
}

func TestTracer_ImpossibleLegs(t *testing.T) {
	tr := NewTracer(mustModel(t, twoLayer), flatRadius)

	// Receiver above source: nothing arrives travelling downward.
	assert.False(t, tr.Branches(config.WaveP, LegDownDown, 10000, 0).FirstArrival(5000).Valid)
	assert.False(t, tr.Branches(config.WaveP, LegUpDown, 10000, 0).FirstArrival(5000).Valid)
	// Receiver below source: an up-going ray never reaches it.
	assert.False(t, tr.Branches(config.WaveP, LegUpUp, 0, 10000).FirstArrival(5000).Valid)
}

func TestTracer_SameDepth(t *testing.T) {
	tr := NewTracer(mustModel(t, "0 6 3.5 2.8\n"), flatRadius)

	for _, z := range []float64{0, 1, 5000} {
		for _, leg := range []Leg{LegUpUp, LegDownDown} {
			a := tr.Branches(config.WaveP, leg, z, z).FirstArrival(10000)
			require.True(t, a.Valid, "depth %g leg %d", z, leg)
			assert.InDelta(t, 10000.0/6000.0, a.T, 1e-6)
		}
	}

	s := tr.Branches(config.WaveS, LegUpUp, 0, 0).FirstArrival(7000)
	require.True(t, s.Valid)
	assert.InDelta(t, 2.0, s.T, 1e-6)
}

func TestTracer_SmallOffsetFarAway(t *testing.T) {
	tr := NewTracer(mustModel(t, "0 6 3.5 2.8\n"), flatRadius)

	for _, dz := range []float64{0.1, 1, 10, 100} {
		a := tr.Branches(config.WaveP, LegUpUp, dz, 0).FirstArrival(10000)
		require.True(t, a.Valid, "offset %g m", dz)
		assert.InDelta(t, math.Hypot(dz, 10000)/6000, a.T, 1e-3, "offset %g m", dz)

		a = tr.Branches(config.WaveP, LegDownDown, 0, dz).FirstArrival(10000)
		require.True(t, a.Valid, "offset %g m", dz)
		assert.InDelta(t, math.Hypot(dz, 10000)/6000, a.T, 1e-3, "offset %g m", dz)
	}
}

func TestTracer_DirectDowngoing(t *testing.T) {
	tr := NewTracer(mustModel(t, twoLayer), flatRadius)
	a := tr.Branches(config.WaveS, LegDownDown, 0, 7000).FirstArrival(0)
	require.True(t, a.Valid)
	assert.InDelta(t, 7000.0/3500.0, a.T, 1e-6)
}

func TestTracer_Reflection(t *testing.T) {
	tr := NewTracer(mustModel(t, twoLayer), flatRadius)
	br := tr.Branches(config.WaveP, LegDownUp, 10000, 0)

	// Critical distance of the 20 km interface is about 34 km.
	assert.False(t, br.FirstArrival(20000).Valid)

	a := br.FirstArrival(50000)
	require.True(t, a.Valid)
	// Down 10 km, up 20 km: equivalent to a straight path of vertical extent 30 km.
	assert.InDelta(t, math.Hypot(30000, 50000)/6000, a.T, 0.02)
}

func TestTable_Interpolate(t *testing.T) {
	cfg := &config.Config{
		SourceDepthMin: 0, SourceDepthMax: 10, SourceDepthDelta: 10,
		DistanceMin: 0, DistanceMax: 10, DistanceDelta: 10,
	}
	tab := NewTable("x", cfg)
	tab.set(0, 0, Arrival{T: 1, Valid: true})
	tab.set(0, 1, Arrival{T: 3, Valid: true})
	tab.set(1, 0, Arrival{T: 5, Valid: true})
	tab.set(1, 1, Arrival{T: 7, Valid: true})

	t.Run("exact at nodes", func(t *testing.T) {
		assert.Equal(t, Arrival{T: 7, Valid: true}, tab.Interpolate(10, 10))
		assert.Equal(t, Arrival{T: 1, Valid: true}, tab.Interpolate(0, 0))
	})

	t.Run("bilinear", func(t *testing.T) {
		a := tab.Interpolate(5, 5)
		require.True(t, a.Valid)
		assert.InDelta(t, 4.0, a.T, 1e-12)
	})

	t.Run("outside", func(t *testing.T) {
		assert.False(t, tab.Interpolate(11, 5).Valid)
		assert.False(t, tab.Interpolate(5, -1).Valid)
	})

	t.Run("absent neighbours excluded", func(t *testing.T) {
		tab.set(1, 1, NoArrival)
		a := tab.Interpolate(5, 5)
		require.True(t, a.Valid)
		assert.InDelta(t, 3.0, a.T, 1e-12) // mean of 1, 3, 5
		assert.False(t, tab.Interpolate(10, 10).Valid)
	})

	t.Run("all absent", func(t *testing.T) {
		empty := NewTable("y", cfg)
		assert.False(t, empty.Interpolate(5, 5).Valid)
	})
}

func TestTable_BinaryRoundTrip(t *testing.T) {
	cfg := &config.Config{
		SourceDepthMin: 1000, SourceDepthMax: 3000, SourceDepthDelta: 1000,
		DistanceMin: 0, DistanceMax: 4000, DistanceDelta: 2000,
	}
	tab := NewTable("begin", cfg)
	tab.set(0, 0, Arrival{T: 1.25, Valid: true})
	tab.set(2, 1, Arrival{T: 9.5, Valid: true})

	data, err := tab.MarshalBinary()
	require.NoError(t, err)

	var got Table
	require.NoError(t, got.UnmarshalBinary(data))
	assert.True(t, tab.Equal(&got))
	assert.Equal(t, Arrival{T: 9.5, Valid: true}, got.At(2, 1))
	assert.False(t, got.At(1, 1).Valid)

	again, err := got.MarshalBinary()
	require.NoError(t, err)
	assert.Equal(t, data, again)
}

func TestTable_UnmarshalCorrupt(t *testing.T) {
	cfg := &config.Config{SourceDepthMin: 0, SourceDepthMax: 0, SourceDepthDelta: 1, DistanceMin: 0, DistanceMax: 0, DistanceDelta: 1}
	data, err := NewTable("begin", cfg).MarshalBinary()
	require.NoError(t, err)

	flipped := append([]byte(nil), data...)
	flipped[20] ^= 0xff

	var tab Table
	assert.ErrorIs(t, tab.UnmarshalBinary(flipped), ErrCorruptTable)
	assert.ErrorIs(t, tab.UnmarshalBinary(data[:5]), ErrCorruptTable)
}

func testConfig() *config.Config {
	cfg := &config.Config{
		ID:               "ttt_test",
		ModellingCodeID:  "ahfull",
		SampleRate:       1,
		SourceDepthMin:   5000,
		SourceDepthMax:   15000,
		SourceDepthDelta: 5000,
		DistanceMin:      10000,
		DistanceMax:      100000,
		DistanceDelta:    30000,
		EarthModel1D:     twoLayer,
		TabulatedPhases: []config.PhaseDef{
			{ID: "late", Definition: "{stored:begin}+10"},
			{ID: "begin", Definition: `p,P,p\,P\`},
			{ID: "end", Definition: "2.5"},
		},
	}
	cfg.ApplyDefaults()
	return cfg
}

func TestBuild(t *testing.T) {
	cfg := testConfig()
	require.NoError(t, cfg.Validate(nil))

	tables, err := Build(cfg)
	require.NoError(t, err)
	require.Len(t, tables, 3)

	for iz := 0; iz < cfg.NSourceDepths(); iz++ {
		for ix := 0; ix < cfg.NDistances(); ix++ {
			begin := tables["begin"].At(iz, ix)
			require.True(t, begin.Valid, "begin must exist at (%d,%d)", iz, ix)

			// The direct wave bounds the first arrival from above.
			direct := math.Hypot(cfg.SourceDepth(iz), cfg.Distance(ix)) / 6000
			assert.LessOrEqual(t, begin.T, direct+0.05)

			assert.Equal(t, begin.Add(10), tables["late"].At(iz, ix))
			assert.Equal(t, Arrival{T: cfg.Distance(ix) / 2500, Valid: true}, tables["end"].At(iz, ix))
		}
	}
}

func TestBuild_Deterministic(t *testing.T) {
	cfg := testConfig()

	first, err := Build(cfg)
	require.NoError(t, err)
	second, err := Build(cfg)
	require.NoError(t, err)

	for id, tab := range first {
		a, err := tab.MarshalBinary()
		require.NoError(t, err)
		b, err := second[id].MarshalBinary()
		require.NoError(t, err)
		assert.Equal(t, a, b, "phase %s not bit-identical", id)
	}
}

func TestBuild_NoPathIsAbsent(t *testing.T) {
	cfg := testConfig()
	cfg.TabulatedPhases = []config.PhaseDef{
		{ID: "begin", Definition: "2.5"},
		{ID: "down", Definition: `P\`},
	}
	tables, err := Build(cfg)
	require.NoError(t, err)

	// Receiver at the surface is above every source: no down-going arrival.
	for iz := 0; iz < cfg.NSourceDepths(); iz++ {
		for ix := 0; ix < cfg.NDistances(); ix++ {
			assert.False(t, tables["down"].At(iz, ix).Valid)
		}
	}
}

func TestBuild_SourceAtReceiverDepth(t *testing.T) {
	cfg := testConfig()
	cfg.EarthModel1D = "0 6 3.46 2.7\n"
	cfg.SourceDepthMin = 0
	cfg.SourceDepthMax = 2000
	cfg.SourceDepthDelta = 1000
	cfg.TabulatedPhases = []config.PhaseDef{{ID: "begin", Definition: "p,P"}}
	require.NoError(t, cfg.Validate(nil))

	tables, err := Build(cfg)
	require.NoError(t, err)

	for iz := 0; iz < cfg.NSourceDepths(); iz++ {
		for ix := 0; ix < cfg.NDistances(); ix++ {
			begin := tables["begin"].At(iz, ix)
			require.True(t, begin.Valid, "begin must exist at (%d,%d)", iz, ix)
			direct := math.Hypot(cfg.SourceDepth(iz), cfg.Distance(ix)) / 6000
			assert.InDelta(t, direct, begin.T, 0.05, "(%d,%d)", iz, ix)
		}
	}
}
