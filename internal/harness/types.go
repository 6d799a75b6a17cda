package harness

import (
	"github.com/roach88/gfstore/internal/builder"
	"github.com/roach88/gfstore/internal/gf"
)

// Query outcomes.
const (
	OutcomeOK        = "ok"
	OutcomeOutOfGrid = "out_of_grid"
	OutcomeNotBuilt  = "not_built"
	OutcomeError     = "error"
)

// QueryOutcome is the result of one query step.
type QueryOutcome struct {
	Name    string      `json:"name"`
	Outcome string      `json:"outcome"`
	Error   string      `json:"error,omitempty"`
	Traces  []*gf.Trace `json:"-"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass indicates overall test success.
	Pass bool `json:"pass"`

	// Report is the build report.
	Report *builder.Report `json:"report"`

	// Queries holds the query outcomes in scenario order.
	Queries []QueryOutcome `json:"queries"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
// Used as the starting point for test execution.
func NewResult() *Result {
	return &Result{
		Pass:    true,
		Queries: []QueryOutcome{},
		Errors:  []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// Query returns the outcome of the named query.
func (r *Result) Query(name string) (QueryOutcome, bool) {
	for _, q := range r.Queries {
		if q.Name == name {
			return q, true
		}
	}
	return QueryOutcome{}, false
}
