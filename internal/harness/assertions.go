package harness

import (
	"context"
	"fmt"
	"strings"

	"github.com/roach88/gfstore/internal/compare"
	"github.com/roach88/gfstore/internal/store"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string // Assertion type for categorization
	Expected string // Human-readable expected outcome
	Actual   string // Human-readable actual outcome
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s", e.Actual)
	return buf.String()
}

// AssertionContext carries what assertions need beyond the result.
type AssertionContext struct {
	Ctx         context.Context
	JournalPath string
	RunID       string
}

// EvaluateAssertions runs every assertion and returns the failure messages.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errs []string
	for i, a := range assertions {
		var err error
		switch a.Type {
		case AssertTraceCount:
			err = assertTraceCount(result, a)
		case AssertPeakPositive:
			err = assertPeakPositive(result, a)
		case AssertAgree:
			err = assertAgree(result, a)
		case AssertJournalJob:
			err = assertJournalJob(actx, a)
		default:
			err = fmt.Errorf("unknown assertion type %q", a.Type)
		}
		if err != nil {
			errs = append(errs, fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return errs
}

// succeeded returns the named query, failing if it did not produce traces.
func succeeded(result *Result, typ, name string) (QueryOutcome, error) {
	q, ok := result.Query(name)
	if !ok {
		return q, &AssertionError{Type: typ, Expected: fmt.Sprintf("query %s to run", name), Actual: "not found"}
	}
	if q.Outcome != OutcomeOK {
		return q, &AssertionError{Type: typ, Expected: fmt.Sprintf("query %s to succeed", name), Actual: q.Outcome + ": " + q.Error}
	}
	return q, nil
}

// assertTraceCount checks the number of traces a query returned.
func assertTraceCount(result *Result, a Assertion) error {
	q, err := succeeded(result, AssertTraceCount, a.Query)
	if err != nil {
		return err
	}
	if len(q.Traces) != a.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d traces from %s", a.Count, a.Query),
			Actual:   fmt.Sprintf("%d traces", len(q.Traces)),
		}
	}
	return nil
}

// assertPeakPositive checks that traces carry signal.
func assertPeakPositive(result *Result, a Assertion) error {
	q, err := succeeded(result, AssertPeakPositive, a.Query)
	if err != nil {
		return err
	}
	found := false
	for _, tr := range q.Traces {
		if a.Trace != "" && tr.Codes.String() != a.Trace {
			continue
		}
		found = true
		if tr.AbsMax() <= 0 {
			return &AssertionError{
				Type:     AssertPeakPositive,
				Expected: fmt.Sprintf("non-zero trace %s in %s", tr.Codes, a.Query),
				Actual:   "all samples zero",
			}
		}
	}
	if !found {
		return &AssertionError{
			Type:     AssertPeakPositive,
			Expected: fmt.Sprintf("trace %q in %s", a.Trace, a.Query),
			Actual:   "not found",
		}
	}
	return nil
}

// assertAgree checks that two queries give the same traces.
func assertAgree(result *Result, a Assertion) error {
	q, err := succeeded(result, AssertAgree, a.Query)
	if err != nil {
		return err
	}
	ref, err := succeeded(result, AssertAgree, a.Reference)
	if err != nil {
		return err
	}

	tol := compare.DefaultTolerance()
	if a.Amplitude > 0 {
		tol.Amplitude = a.Amplitude
	}
	if a.Phase > 0 {
		tol.Phase = a.Phase
	}
	ags, err := compare.Traces(ref.Traces, q.Traces, tol)
	if err != nil {
		return &AssertionError{Type: AssertAgree, Expected: "comparable traces", Actual: err.Error()}
	}
	for _, ag := range ags {
		if !ag.OK {
			return &AssertionError{
				Type:     AssertAgree,
				Expected: fmt.Sprintf("%s to match %s within %g / %g rad", a.Query, a.Reference, tol.Amplitude, tol.Phase),
				Actual: fmt.Sprintf("%s: peak %.4f, spectral %.4f, phase %.4f",
					ag.Codes, ag.PeakError, ag.SpectralError, ag.PhaseError),
			}
		}
	}
	return nil
}

// assertJournalJob checks the journal entry of one partition.
func assertJournalJob(actx *AssertionContext, a Assertion) error {
	journal, err := store.OpenJournal(actx.JournalPath)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	defer journal.Close()

	jobs, err := journal.Jobs(actx.Ctx, actx.RunID)
	if err != nil {
		return fmt.Errorf("read journal: %w", err)
	}
	for _, j := range jobs {
		if j.IZ != a.IZ {
			continue
		}
		if string(j.Status) != a.Status {
			return &AssertionError{
				Type:     AssertJournalJob,
				Expected: fmt.Sprintf("job %d %s", a.IZ, a.Status),
				Actual:   fmt.Sprintf("job %d %s %s", j.IZ, j.Status, j.Error),
			}
		}
		return nil
	}
	return &AssertionError{
		Type:     AssertJournalJob,
		Expected: fmt.Sprintf("job %d in build %s", a.IZ, actx.RunID),
		Actual:   "not journaled",
	}
}
