package qseis2d

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/gfstore/internal/backend"
	"github.com/roach88/gfstore/internal/config"
	"github.com/roach88/gfstore/internal/gf"
	"github.com/roach88/gfstore/internal/testutil"
	"github.com/roach88/gfstore/internal/ttt"
)

type constTimer struct{}

func (constTimer) TimeAt(t config.Timing, _, _ int) (ttt.Arrival, error) {
	if !t.IsConstant() {
		return ttt.NoArrival, fmt.Errorf("phase %q is not tabulated", t.PhaseID)
	}
	return ttt.Arrival{T: t.Offset, Valid: true}, nil
}

// fakeStageS writes the green files named in the input and logs each run
// to COUNT.
const fakeStageS = `read f
root=$(sed -n "s/^'\([^']*\)'.*|output file root\$/\1/p" "$f")
test -n "$root" || exit 5
echo fk > "$root.fk"
echo info > "$root.info"
echo run >> "COUNT"
`

// fakeStageR checks the green file and writes seis.tr = v, seis.tt = 10 v
// and seis.tz = 100 v where v identifies the moment tensor.
const fakeStageR = `read f
g=$(sed -n "s/^'\([^']*\)'.*|green's function file\$/\1/p" "$f")
test -f "$g.fk" || exit 4
mt=$(sed -n "s/^\(.*[^ ]\) *|moment tensor.*/\1/p" "$f")
case "$mt" in
  "1 0 0 0 0 0") v=1 ;;
  "0 1 0 0 0 0") v=2 ;;
  "0 0 1 0 0 0") v=3 ;;
  "0 0 0 1 0 0") v=4 ;;
  "0 0 0 0 1 0") v=5 ;;
  "0 0 0 0 0 1") v=6 ;;
  "1 1 1 0 0 0") v=7 ;;
  *) echo "unexpected tensor $mt" >&2; exit 6 ;;
esac
printf '0.0 %s\n0.1 %s\n' $v $v > seis.tr
printf '0.0 %s\n0.1 %s\n' $((v*10)) $((v*10)) > seis.tt
printf '0.0 %s\n0.1 %s\n' $((v*100)) $((v*100)) > seis.tz
`

type fixture struct {
	cfg   *config.Config
	a     *Adapter
	env   backend.Env
	count string
}

func setup(t *testing.T, scheme string, stageR string) *fixture {
	t.Helper()
	bin := t.TempDir()
	count := filepath.Join(t.TempDir(), "count")
	testutil.WriteScript(t, bin, "fomosto_qseisS2014", strings.Replace(fakeStageS, `"COUNT"`, `"`+count+`"`, 1))
	if stageR != "" {
		testutil.WriteScript(t, bin, "fomosto_qseisR2014", stageR)
	}
	t.Setenv("PATH", bin+string(os.PathListSeparator)+os.Getenv("PATH"))

	cfg := testutil.SmallConfig(ID)
	if scheme == config.SchemeElastic2 {
		cfg.ComponentScheme = config.SchemeElastic2
		cfg.NComponents = 2
	}
	extra := DefaultExtra()
	extra.TimeRegion = [2]config.Timing{config.MustParseTiming("0"), config.MustParseTiming("10")}
	a, err := NewAdapter(cfg, extra, backend.Options{TmpDir: t.TempDir()})
	require.NoError(t, err)

	return &fixture{
		cfg:   cfg,
		a:     a,
		env:   backend.Env{StoreDir: t.TempDir(), Times: constTimer{}},
		count: count,
	}
}

func (f *fixture) build(t *testing.T, iz int) ([]backend.ComponentTrace, *backend.Input, error) {
	t.Helper()
	in, err := f.a.Translate(backend.NewPartition(f.cfg, iz), f.env)
	require.NoError(t, err)
	out, err := f.a.Run(context.Background(), in)
	if err != nil {
		return nil, in, err
	}
	traces, err := f.a.Parse(out)
	return traces, in, err
}

func (f *fixture) stageSRuns(t *testing.T) int {
	data, err := os.ReadFile(f.count)
	if os.IsNotExist(err) {
		return 0
	}
	require.NoError(t, err)
	return strings.Count(string(data), "run")
}

func TestAdapter_Elastic10(t *testing.T) {
	f := setup(t, config.SchemeElastic10, fakeStageR)

	traces, in, err := f.build(t, 0)
	require.NoError(t, err)
	assert.Len(t, in.Invocations, 1+5*6)
	assert.Equal(t, "fomosto_qseisS2014", in.Invocations[0].Program)
	require.Len(t, traces, 5*10)

	want := map[int]float64{
		gf.CompRXX: 1, gf.CompDXX: -100,
		gf.CompRYY: 2, gf.CompDYY: -200,
		gf.CompRZZ: 3, gf.CompDZZ: -300,
		gf.CompTXY: 40,
		gf.CompRXZ: 5, gf.CompDXZ: -500,
		gf.CompTYZ: 60,
	}
	for _, tr := range traces {
		require.Len(t, tr.Samples, 2)
		assert.InDelta(t, want[tr.IC], tr.Samples[1], 1e-12, "ix=%d ic=%d", tr.IX, tr.IC)
		assert.InDelta(t, 0.0, tr.Tmin, 1e-12)
	}

	green := filepath.Join(f.env.StoreDir, "qseis2d_green", "green_5.000km")
	assert.FileExists(t, green+".fk")
	assert.FileExists(t, green+".info")
	assert.Equal(t, 1, f.stageSRuns(t))
}

func TestAdapter_ReusesStageS(t *testing.T) {
	f := setup(t, config.SchemeElastic10, fakeStageR)

	_, _, err := f.build(t, 1)
	require.NoError(t, err)
	_, in, err := f.build(t, 1)
	require.NoError(t, err)

	assert.Len(t, in.Invocations, 5*6)
	for _, inv := range in.Invocations {
		assert.Equal(t, "fomosto_qseisR2014", inv.Program)
	}
	assert.Equal(t, 1, f.stageSRuns(t))
	assert.FileExists(t, filepath.Join(f.env.StoreDir, "qseis2d_green", "green_6.000km.fk"))
}

func TestAdapter_Elastic2(t *testing.T) {
	f := setup(t, config.SchemeElastic2, fakeStageR)

	traces, in, err := f.build(t, 2)
	require.NoError(t, err)
	assert.Len(t, in.Invocations, 1+5)
	require.Len(t, traces, 5*2)
	for _, tr := range traces {
		switch tr.IC {
		case gf.CompIsoR:
			assert.InDelta(t, 7.0, tr.Samples[0], 1e-12)
		case gf.CompIsoD:
			assert.InDelta(t, -700.0, tr.Samples[0], 1e-12)
		default:
			t.Fatalf("unexpected component %d", tr.IC)
		}
	}
}

func TestAdapter_StageRFailure(t *testing.T) {
	f := setup(t, config.SchemeElastic10, "echo 'bad model' >&2\nexit 1\n")

	_, _, err := f.build(t, 0)
	require.Error(t, err)
	assert.True(t, backend.IsExecutionError(err))
	assert.Contains(t, err.Error(), "fomosto_qseisR2014")
	assert.Contains(t, err.Error(), "bad model")
}

func TestAdapter_NotInstalled(t *testing.T) {
	f := setup(t, config.SchemeElastic10, "")
	t.Setenv("PATH", filepath.Dir(f.count))

	_, _, err := f.build(t, 0)
	require.Error(t, err)
	assert.True(t, backend.IsUnavailable(err))
	assert.Contains(t, err.Error(), "could not start fomosto_qseisS2014")
}

func TestExtra_Decode(t *testing.T) {
	cfg := testutil.SmallConfig(ID)
	data := []byte(`gf_directory: green
time_region: [begin-10, end+10]
qseis_s_conf:
  qseiss_version: "2014"
  receiver_basement_depth: 20
  slowness_window: [0, 0, 0.3, 0.4]
  calc_slowness_window: false
qseis_r_conf:
  qseisr_version: "2014"
  wavelet_duration_samples: 0.01
`)
	e, err := Family{}.DecodeExtra(data)
	require.NoError(t, err)
	require.NoError(t, e.Validate(cfg))

	x := e.(*Extra)
	assert.Equal(t, "green", x.GFDirectory)
	assert.Equal(t, 20.0, x.S.ReceiverBasementDepth)
	assert.Equal(t, [4]float64{0, 0, 0.3, 0.4}, x.S.SlownessWindow)
	assert.Equal(t, 0.01, x.R.WaveletDuration)
}

func TestExtra_Validate(t *testing.T) {
	cfg := testutil.SmallConfig(ID)
	require.NoError(t, DefaultExtra().Validate(cfg))

	e := DefaultExtra()
	e.GFDirectory = "../outside"
	e.S.Version = "x"
	e.S.ReceiverBasementDepth = 0
	e.CutRegion = &[2]config.Timing{config.MustParseTiming("missing"), config.MustParseTiming("end")}
	err := e.Validate(cfg)
	require.Error(t, err)
	for _, want := range []string{"gf_directory", "qseiss_version", "receiver_basement_depth", "cut"} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestExtra_CalcSlownessWindow(t *testing.T) {
	cfg := testutil.SmallConfig(ID)
	model, err := cfg.EarthModel()
	require.NoError(t, err)

	e := DefaultExtra()
	e.S.CalcSlownessWindow = true
	sw := e.slownessWindow(model)
	smax := 1 / 3.46
	assert.InDelta(t, 1.1*smax, sw[2], 1e-9)
	assert.InDelta(t, 1.3*smax, sw[3], 1e-9)
}
