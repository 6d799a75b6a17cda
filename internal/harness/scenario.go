package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/roach88/gfstore/internal/gf"
	"github.com/roach88/gfstore/internal/store"
)

// Scenario defines a store conformance scenario.
type Scenario struct {
	// Name uniquely identifies this scenario. It names the store directory
	// and the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Config is the path to the store configuration.
	// Relative paths are resolved against the scenario file location.
	Config string `yaml:"config"`

	// Extras maps backend ids to settings files, resolved like Config.
	Extras map[string]string `yaml:"extras,omitempty"`

	// Build controls the build step.
	Build BuildStep `yaml:"build,omitempty"`

	// Queries run against the built store in order.
	Queries []QueryStep `yaml:"queries"`

	// Assertions validate the build and query outcomes.
	Assertions []Assertion `yaml:"assertions"`

	// RunID is an optional fixed build run id.
	// If empty, defaults to "run-<name>".
	RunID string `yaml:"run_id,omitempty"`
}

// BuildStep configures the build.
type BuildStep struct {
	// Workers bounds concurrent jobs (default 1).
	Workers int `yaml:"workers,omitempty"`

	// Expect is the expected build status (default "succeeded").
	Expect string `yaml:"expect,omitempty"`
}

// QueryStep is one engine request.
type QueryStep struct {
	Name string `yaml:"name"`

	// Source is a source document, as accepted by gf.ParseSource.
	Source yaml.Node `yaml:"source"`

	// Targets is a list of targets, as accepted by gf.ParseTargets.
	Targets yaml.Node `yaml:"targets"`

	// Expect is the expected outcome (default "ok").
	Expect string `yaml:"expect,omitempty"`
}

// Assertion validates a scenario outcome.
type Assertion struct {
	// Type specifies the assertion type:
	// - "trace_count": Check a query returned Count traces
	// - "peak_positive": Check traces are not all zero
	// - "agree": Check Query matches Reference within tolerance
	// - "journal_job": Check the journal recorded job IZ with Status
	Type string `yaml:"type"`

	// Query names the query under test.
	Query string `yaml:"query,omitempty"`

	// Trace restricts peak_positive to one channel, by its codes
	// (e.g. "XX.STA..Z").
	Trace string `yaml:"trace,omitempty"`

	// Reference names the reference query (used by agree).
	Reference string `yaml:"reference,omitempty"`

	// Amplitude and Phase override the default tolerances (used by agree).
	Amplitude float64 `yaml:"amplitude,omitempty"`
	Phase     float64 `yaml:"phase,omitempty"`

	// Count is the expected number of traces (used by trace_count).
	Count int `yaml:"count,omitempty"`

	// IZ and Status select and check a journal job (used by journal_job).
	IZ     int    `yaml:"iz,omitempty"`
	Status string `yaml:"status,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceCount   = "trace_count"
	AssertPeakPositive = "peak_positive"
	AssertAgree        = "agree"
	AssertJournalJob   = "journal_job"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	// Read file
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Parse YAML with strict field validation (catches typos like "assertion:" vs "assertions:")
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	// Resolve paths relative to the scenario file BEFORE validation
	base := filepath.Dir(path)
	scenario.Config = resolve(base, scenario.Config)
	for id, p := range scenario.Extras {
		scenario.Extras[id] = resolve(base, p)
	}

	// Validate required fields (now with resolved paths)
	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

func resolve(base, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(base, path)
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if s.Config == "" {
		return fmt.Errorf("config is required")
	}
	if _, err := os.Stat(s.Config); os.IsNotExist(err) {
		return fmt.Errorf("config file not found: %s", s.Config)
	}
	for id, p := range s.Extras {
		if _, err := os.Stat(p); os.IsNotExist(err) {
			return fmt.Errorf("extras[%s]: file not found: %s", id, p)
		}
	}

	switch store.BuildStatus(s.Build.Expect) {
	case "", store.BuildSucceeded, store.BuildFailed, store.BuildAborted:
	default:
		return fmt.Errorf("build.expect: unknown build status %q", s.Build.Expect)
	}

	if len(s.Queries) == 0 {
		return fmt.Errorf("queries list is required and must be non-empty")
	}

	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	// Validate query steps
	names := make(map[string]bool, len(s.Queries))
	for i, q := range s.Queries {
		if q.Name == "" {
			return fmt.Errorf("queries[%d]: name is required", i)
		}
		if names[q.Name] {
			return fmt.Errorf("queries[%d]: duplicate name %q", i, q.Name)
		}
		names[q.Name] = true
		if q.Source.Kind == 0 {
			return fmt.Errorf("queries[%d]: source is required", i)
		}
		if q.Targets.Kind != yaml.SequenceNode {
			return fmt.Errorf("queries[%d]: targets must be a list", i)
		}
		switch q.Expect {
		case "", OutcomeOK, OutcomeOutOfGrid, OutcomeNotBuilt, OutcomeError:
		default:
			return fmt.Errorf("queries[%d].expect: unknown outcome %q", i, q.Expect)
		}
	}

	// Validate assertions
	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion, names); err != nil {
			return err
		}
	}

	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion, queries map[string]bool) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertTraceCount, AssertPeakPositive, AssertAgree:
		if !queries[a.Query] {
			return fmt.Errorf("assertions[%d]: unknown query %q for %s", index, a.Query, a.Type)
		}
	}

	switch a.Type {
	case AssertTraceCount:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertPeakPositive:
	case AssertAgree:
		if !queries[a.Reference] {
			return fmt.Errorf("assertions[%d]: unknown reference query %q for agree", index, a.Reference)
		}
		if a.Amplitude < 0 || a.Phase < 0 {
			return fmt.Errorf("assertions[%d]: tolerances must be non-negative for agree", index)
		}
	case AssertJournalJob:
		if a.IZ < 0 {
			return fmt.Errorf("assertions[%d]: iz must be non-negative for journal_job", index)
		}
		switch store.JobStatus(a.Status) {
		case store.JobBuilt, store.JobSkipped, store.JobFailed:
		default:
			return fmt.Errorf("assertions[%d]: unknown job status %q for journal_job", index, a.Status)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}

// parse decodes the source and targets of a query step.
func (q *QueryStep) parse() (gf.Source, []gf.Target, error) {
	data, err := yaml.Marshal(&q.Source)
	if err != nil {
		return nil, nil, fmt.Errorf("encode source: %w", err)
	}
	source, err := gf.ParseSource(data)
	if err != nil {
		return nil, nil, fmt.Errorf("source: %w", err)
	}

	data, err = yaml.Marshal(struct {
		Targets *yaml.Node `yaml:"targets"`
	}{&q.Targets})
	if err != nil {
		return nil, nil, fmt.Errorf("encode targets: %w", err)
	}
	targets, err := gf.ParseTargets(data)
	if err != nil {
		return nil, nil, fmt.Errorf("targets: %w", err)
	}
	return source, targets, nil
}
