package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/gfstore/internal/builder"
	"github.com/roach88/gfstore/internal/gf"
	"github.com/roach88/gfstore/internal/store"
)

func TestRunWithGolden_AhfullSmall(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/ahfull_small.yaml")
	require.NoError(t, err)

	// To regenerate:
	//   go test ./internal/harness -run TestRunWithGolden_AhfullSmall -update
	result, err := RunWithGolden(t, s)
	require.NoError(t, err)
	assert.True(t, result.Pass, "scenario errors: %v", result.Errors)
}

func TestNewSnapshot_SortsJobs(t *testing.T) {
	result := NewResult()
	result.Report = &builder.Report{
		RunID:  "r1",
		Status: store.BuildFailed,
		Jobs: []builder.JobResult{
			{IZ: 2, SourceDepth: 7000, Status: store.JobBuilt, Records: 50},
			{IZ: 0, SourceDepth: 5000, Status: store.JobFailed},
		},
	}
	result.Queries = []QueryOutcome{
		{Name: "q", Outcome: OutcomeOK, Traces: []*gf.Trace{{Codes: gf.Codes{Network: "XX", Station: "A", Channel: "Z"}}}},
	}

	snap := NewSnapshot("s", result)
	assert.Equal(t, "r1", snap.RunID)
	assert.Equal(t, "failed", snap.Build.Status)
	require.Len(t, snap.Build.Jobs, 2)
	assert.Equal(t, 0, snap.Build.Jobs[0].IZ)
	assert.Equal(t, "failed", snap.Build.Jobs[0].Status)
	assert.Equal(t, []string{"XX.A..Z"}, snap.Queries[0].Traces)

	data, err := snap.Marshal()
	require.NoError(t, err)
	assert.Equal(t, byte('\n'), data[len(data)-1])
}
