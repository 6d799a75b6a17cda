package harness

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/gfstore/internal/gf"
	"github.com/roach88/gfstore/internal/testutil"
)

func TestLoadScenario(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/ahfull_small.yaml")
	require.NoError(t, err)

	assert.Equal(t, "ahfull_small", s.Name)
	assert.Equal(t, filepath.Join("testdata", "configs", "small.yaml"), s.Config)
	assert.Equal(t, 2, s.Build.Workers)
	require.Len(t, s.Queries, 3)
	assert.Equal(t, OutcomeOutOfGrid, s.Queries[2].Expect)
	require.Len(t, s.Assertions, 5)
	assert.Equal(t, AssertJournalJob, s.Assertions[4].Type)
	assert.Equal(t, 1, s.Assertions[4].IZ)
}

func TestQueryStep_Parse(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/ahfull_small.yaml")
	require.NoError(t, err)

	source, targets, err := s.Queries[1].parse()
	require.NoError(t, err)

	mt, ok := source.(*gf.MTSource)
	require.True(t, ok, "source should decode as a moment tensor, got %T", source)
	assert.Equal(t, 6000.0, mt.Depth)
	assert.Equal(t, 1e15, mt.M6[gf.MNN])

	require.Len(t, targets, 2)
	assert.Equal(t, "XX.STA..R", targets[1].Codes.String())
	assert.Equal(t, 12000.0, targets[1].NorthShift)
}

// writeScenario writes a scenario using the shared small config.
func writeScenario(t *testing.T, body string) string {
	t.Helper()
	cfg, err := filepath.Abs("testdata/configs/small.yaml")
	require.NoError(t, err)
	return testutil.WriteFile(t, t.TempDir(), "scenario.yaml", []byte("config: "+cfg+"\n"+body))
}

const validQueries = `
queries:
  - name: q
    source: {type: explosion, depth: 6000, moment: 1.0}
    targets:
      - codes: {network: XX, station: STA, location: "", channel: Z}
        north_shift: 12000
`

func TestLoadScenario_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{
			name: "missing name",
			body: "description: d\n" + validQueries + "assertions: [{type: peak_positive, query: q}]\n",
			want: "name is required",
		},
		{
			name: "missing description",
			body: "name: n\n" + validQueries + "assertions: [{type: peak_positive, query: q}]\n",
			want: "description is required",
		},
		{
			name: "unknown field",
			body: "name: n\ndescription: d\nassertion: []\n" + validQueries,
			want: "failed to parse YAML",
		},
		{
			name: "no queries",
			body: "name: n\ndescription: d\nassertions: [{type: peak_positive, query: q}]\n",
			want: "queries list is required",
		},
		{
			name: "no assertions",
			body: "name: n\ndescription: d\n" + validQueries,
			want: "assertions list is required",
		},
		{
			name: "bad build status",
			body: "name: n\ndescription: d\nbuild: {expect: done}\n" + validQueries + "assertions: [{type: peak_positive, query: q}]\n",
			want: "unknown build status",
		},
		{
			name: "unknown query",
			body: "name: n\ndescription: d\n" + validQueries + "assertions: [{type: trace_count, query: other, count: 1}]\n",
			want: `unknown query "other"`,
		},
		{
			name: "unknown reference",
			body: "name: n\ndescription: d\n" + validQueries + "assertions: [{type: agree, query: q, reference: other}]\n",
			want: `unknown reference query "other"`,
		},
		{
			name: "bad job status",
			body: "name: n\ndescription: d\n" + validQueries + "assertions: [{type: journal_job, iz: 0, status: done}]\n",
			want: "unknown job status",
		},
		{
			name: "unknown assertion type",
			body: "name: n\ndescription: d\n" + validQueries + "assertions: [{type: nonsense}]\n",
			want: "unknown assertion type",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadScenario(writeScenario(t, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadScenario_MissingConfig(t *testing.T) {
	path := testutil.WriteFile(t, t.TempDir(), "scenario.yaml", []byte(
		"name: n\ndescription: d\nconfig: missing.yaml\n"+validQueries+"assertions: [{type: peak_positive, query: q}]\n"))

	_, err := LoadScenario(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config file not found")
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario("testdata/scenarios/nonexistent.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}
