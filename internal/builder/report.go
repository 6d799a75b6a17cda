package builder

import (
	"errors"
	"fmt"
	"time"

	"github.com/roach88/gfstore/internal/store"
)

// JobResult is the outcome of one partition.
type JobResult struct {
	IZ          int             `json:"iz"`
	SourceDepth float64         `json:"source_depth"`
	Status      store.JobStatus `json:"status"`
	Records     int             `json:"records"`
	Duration    time.Duration   `json:"duration"`
	Err         error           `json:"-"`
	Error       string          `json:"error,omitempty"`
}

// Report summarises a build.
type Report struct {
	RunID    string            `json:"run_id"`
	Status   store.BuildStatus `json:"status"`
	Jobs     []JobResult       `json:"jobs"`
	Built    int               `json:"built"`
	Skipped  int               `json:"skipped"`
	Failed   int               `json:"failed"`
	Pending  int               `json:"pending"`
	Duration time.Duration     `json:"duration"`
}

func (r *Report) add(res JobResult) {
	if res.Err != nil {
		res.Error = res.Err.Error()
	}
	r.Jobs = append(r.Jobs, res)
	switch res.Status {
	case store.JobBuilt:
		r.Built++
	case store.JobSkipped:
		r.Skipped++
	case store.JobFailed:
		r.Failed++
	}
}

// FailedJobs returns the failed job results.
func (r *Report) FailedJobs() []JobResult {
	var out []JobResult
	for _, j := range r.Jobs {
		if j.Status == store.JobFailed {
			out = append(out, j)
		}
	}
	return out
}

// BuildFailedError reports a build in which some partitions failed while
// the others were built.
type BuildFailedError struct {
	RunID  string
	Failed []JobResult
	Total  int
}

func (e *BuildFailedError) Error() string {
	msg := fmt.Sprintf("build %s: %d of %d partitions failed", e.RunID, len(e.Failed), e.Total)
	if len(e.Failed) > 0 {
		first := e.Failed[0]
		msg += fmt.Sprintf(" (depth %g: %s)", first.SourceDepth, first.Error)
	}
	return msg
}

// Unwrap exposes the job errors.
func (e *BuildFailedError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failed))
	for _, j := range e.Failed {
		if j.Err != nil {
			errs = append(errs, j.Err)
		}
	}
	return errs
}

// IsBuildFailed returns true if err is or wraps a BuildFailedError.
func IsBuildFailed(err error) bool {
	var bf *BuildFailedError
	return errors.As(err, &bf)
}
