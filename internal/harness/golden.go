package harness

import (
	"encoding/json"
	"sort"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// Snapshot is the deterministic part of a scenario result: build and job
// statuses, record counts and query outcomes. Sample values are left out;
// assertions cover them.
type Snapshot struct {
	Scenario string          `json:"scenario"`
	RunID    string          `json:"run_id"`
	Build    BuildSnapshot   `json:"build"`
	Queries  []QuerySnapshot `json:"queries"`
}

// BuildSnapshot summarises the build.
type BuildSnapshot struct {
	Status string        `json:"status"`
	Jobs   []JobSnapshot `json:"jobs"`
}

// JobSnapshot is one partition outcome.
type JobSnapshot struct {
	IZ          int     `json:"iz"`
	SourceDepth float64 `json:"source_depth"`
	Status      string  `json:"status"`
	Records     int     `json:"records"`
}

// QuerySnapshot is one query outcome with the codes of its traces.
type QuerySnapshot struct {
	Name    string   `json:"name"`
	Outcome string   `json:"outcome"`
	Traces  []string `json:"traces,omitempty"`
}

// NewSnapshot extracts the snapshot of a result. Jobs are ordered by
// partition so the snapshot does not depend on worker scheduling.
func NewSnapshot(name string, result *Result) Snapshot {
	snap := Snapshot{
		Scenario: name,
		Queries:  []QuerySnapshot{},
	}
	if r := result.Report; r != nil {
		snap.RunID = r.RunID
		snap.Build.Status = string(r.Status)
		for _, j := range r.Jobs {
			snap.Build.Jobs = append(snap.Build.Jobs, JobSnapshot{
				IZ:          j.IZ,
				SourceDepth: j.SourceDepth,
				Status:      string(j.Status),
				Records:     j.Records,
			})
		}
		sort.Slice(snap.Build.Jobs, func(a, b int) bool { return snap.Build.Jobs[a].IZ < snap.Build.Jobs[b].IZ })
	}
	for _, q := range result.Queries {
		qs := QuerySnapshot{Name: q.Name, Outcome: q.Outcome}
		for _, tr := range q.Traces {
			qs.Traces = append(qs.Traces, tr.Codes.String())
		}
		snap.Queries = append(snap.Queries, qs)
	}
	return snap
}

// Marshal renders the snapshot as indented JSON with a trailing newline.
func (s Snapshot) Marshal() ([]byte, error) {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// RunWithGolden executes a scenario in a temporary directory and compares
// its snapshot against a golden file.
// The golden file is stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns the result for further checks, or an error if the scenario could
// not be executed. Test failure (via goldie) occurs if the snapshot doesn't
// match the golden file.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario, t.TempDir())
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares the snapshot of a result against a golden file.
// This is useful when you've already run a scenario and want to compare
// the result against a golden file without re-running.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	data, err := NewSnapshot(scenarioName, result).Marshal()
	if err != nil {
		return err
	}

	// Compare with golden file using goldie
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, data)
	return nil
}
