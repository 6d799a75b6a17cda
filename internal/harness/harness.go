package harness

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/roach88/gfstore/internal/backend/all"
	"github.com/roach88/gfstore/internal/builder"
	"github.com/roach88/gfstore/internal/config"
	"github.com/roach88/gfstore/internal/engine"
	"github.com/roach88/gfstore/internal/store"
	"github.com/roach88/gfstore/internal/testutil"
)

// epoch is the frozen build clock.
var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// Run executes a scenario in workDir and returns the result.
//
// Execution flow:
// 1. Create the store in workDir/<name> from the configuration and extras
// 2. Build it with a fixed run id and frozen clock
// 3. Run the queries against a read handle
// 4. Evaluate assertions
//
// An error is returned only when the scenario cannot be executed at all;
// unexpected outcomes are reported in Result.Errors.
func Run(scenario *Scenario, workDir string) (*Result, error) {
	ctx := context.Background()

	cfg, err := config.Load(scenario.Config)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	extras := make(map[string][]byte, len(scenario.Extras))
	for id, path := range scenario.Extras {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read extra %s: %w", id, err)
		}
		extras[id] = data
	}

	dir := filepath.Join(workDir, scenario.Name)
	if err := store.CreateEditables(dir, cfg, extras); err != nil {
		return nil, err
	}

	runID := scenario.RunID
	if runID == "" {
		runID = "run-" + scenario.Name
	}
	report, buildErr := build(ctx, dir, runID, scenario.Build.Workers, workDir)
	if report == nil {
		return nil, fmt.Errorf("failed to build store: %w", buildErr)
	}

	result := NewResult()
	result.Report = report
	want := store.BuildStatus(scenario.Build.Expect)
	if want == "" {
		want = store.BuildSucceeded
	}
	if report.Status != want {
		result.AddError(fmt.Sprintf("build: expected %s, got %s (%v)", want, report.Status, buildErr))
	}

	st, err := store.Open(dir, store.ModeRead)
	if err != nil {
		return nil, err
	}
	defer st.Close()
	eng, err := engine.New(st)
	if err != nil {
		return nil, err
	}

	for _, q := range scenario.Queries {
		outcome, err := runQuery(ctx, eng, &q)
		if err != nil {
			return nil, fmt.Errorf("query %s: %w", q.Name, err)
		}
		want := q.Expect
		if want == "" {
			want = OutcomeOK
		}
		if outcome.Outcome != want {
			result.AddError(fmt.Sprintf("query %s: expected %s, got %s %s", q.Name, want, outcome.Outcome, outcome.Error))
		}
		result.Queries = append(result.Queries, outcome)
	}

	// Evaluate assertions against the result
	actx := &AssertionContext{
		Ctx:         ctx,
		JournalPath: st.JournalPath(),
		RunID:       report.RunID,
	}
	for _, errMsg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(errMsg)
	}

	slog.Debug("scenario finished", "scenario", scenario.Name, "pass", result.Pass, "errors", len(result.Errors))
	return result, nil
}

func build(ctx context.Context, dir, runID string, workers int, tmp string) (*builder.Report, error) {
	st, err := store.Open(dir, store.ModeReadWrite)
	if err != nil {
		return nil, err
	}
	defer st.Close()

	return builder.Build(ctx, st, all.Registry(), builder.Options{
		Workers: workers,
		TmpDir:  tmp,
		Clock:   testutil.NewManualClock(epoch),
		RunIDs:  builder.NewFixedGenerator(runID),
	})
}

// runQuery executes one query step. Engine failures become outcomes;
// only an undecodable step is an error.
func runQuery(ctx context.Context, eng *engine.Engine, q *QueryStep) (QueryOutcome, error) {
	source, targets, err := q.parse()
	if err != nil {
		return QueryOutcome{}, err
	}

	out := QueryOutcome{Name: q.Name, Outcome: OutcomeOK}
	resp, err := eng.Process(ctx, source, targets)
	switch {
	case err == nil:
		out.Traces = resp.Traces
		return out, nil
	case engine.IsOutOfGrid(err):
		out.Outcome = OutcomeOutOfGrid
	case engine.IsNotBuilt(err):
		out.Outcome = OutcomeNotBuilt
	default:
		out.Outcome = OutcomeError
	}
	out.Error = err.Error()
	return out, nil
}
