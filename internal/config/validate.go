package config

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Validation error codes (E200-E299)
const (
	ErrSchema             = "E201" // document does not match the schema
	ErrInvalidID          = "E202" // store id missing or malformed
	ErrGridRange          = "E203" // min > max or negative extent
	ErrGridStep           = "E204" // non-positive step
	ErrGridDivision       = "E205" // step does not divide the range
	ErrSampleRate         = "E206" // sample rate must be positive
	ErrComponentScheme    = "E207" // unknown scheme or component count mismatch
	ErrEarthModel         = "E208" // source-side earth model invalid
	ErrReceiverEarthModel = "E209" // receiver-side earth model invalid
	ErrPhaseDefinition    = "E210" // phase definition does not parse
	ErrDuplicatePhase     = "E211" // phase id declared twice
	ErrUndefinedPhase     = "E212" // reference to an undeclared phase
	ErrPhaseCycle         = "E213" // phase references form a cycle
	ErrMissingBeginPhase  = "E214" // the "begin" phase is required
	ErrUnknownBackend     = "E215" // modelling code not registered
	ErrInterpolation      = "E216" // unknown interpolation method
	ErrReceiverDepth      = "E217" // receiver depth negative
	ErrEarthRadius        = "E218" // earth radius must be positive
)

// BeginPhase is the phase that bounds the causal onset of every record.
const BeginPhase = "begin"

var storeIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.-]*$`)

// ValidationError represents a single configuration problem.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Line    int    `json:"line,omitempty"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("[%s] line %d: %s: %s", e.Code, e.Line, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// ValidationErrors collects every problem found in a configuration.
type ValidationErrors struct {
	Errors []ValidationError
}

// Error implements the error interface.
func (e *ValidationErrors) Error() string {
	msgs := make([]string, len(e.Errors))
	for i, ve := range e.Errors {
		msgs[i] = ve.Error()
	}
	return fmt.Sprintf("invalid store configuration (%d problem(s)): %s", len(e.Errors), strings.Join(msgs, "; "))
}

// Has reports whether any collected error carries code.
func (e *ValidationErrors) Has(code string) bool {
	for _, ve := range e.Errors {
		if ve.Code == code {
			return true
		}
	}
	return false
}

// IsValidationError returns true if err is a configuration validation error.
// Uses errors.As to handle wrapped errors.
func IsValidationError(err error) bool {
	var ve *ValidationErrors
	return errors.As(err, &ve)
}

// Registry answers whether a modelling code is available.
type Registry interface {
	Has(id string) bool
}

// Validate checks the configuration and returns *ValidationErrors listing all
// problems, or nil. A nil registry skips the modelling-code check.
func (c *Config) Validate(reg Registry) error {
	var errs []ValidationError
	add := func(field, code, format string, args ...any) {
		errs = append(errs, ValidationError{Field: field, Code: code, Message: fmt.Sprintf(format, args...)})
	}

	if !storeIDPattern.MatchString(c.ID) {
		add("id", ErrInvalidID, "store id %q must be non-empty and contain only letters, digits, '_', '.' or '-'", c.ID)
	}

	if c.ModellingCodeID == "" {
		add("modelling_code_id", ErrUnknownBackend, "modelling code is required")
	} else if reg != nil && !reg.Has(c.ModellingCodeID) {
		add("modelling_code_id", ErrUnknownBackend, "modelling code %q is not registered", c.ModellingCodeID)
	}

	if c.SampleRate <= 0 {
		add("sample_rate", ErrSampleRate, "sample rate must be positive, got %g", c.SampleRate)
	}
	if c.ReceiverDepth < 0 {
		add("receiver_depth", ErrReceiverDepth, "receiver depth must not be negative, got %g", c.ReceiverDepth)
	}
	if c.EarthRadius <= 0 {
		add("earth_radius", ErrEarthRadius, "earth radius must be positive, got %g", c.EarthRadius)
	}

	validateAxis := func(name string, min, max, delta float64) {
		switch {
		case delta <= 0:
			add(name+"_delta", ErrGridStep, "step must be positive, got %g", delta)
		case min < 0:
			add(name+"_min", ErrGridRange, "minimum must not be negative, got %g", min)
		case min > max:
			add(name+"_min", ErrGridRange, "minimum %g exceeds maximum %g", min, max)
		case !divides(min, max, delta):
			add(name+"_delta", ErrGridDivision, "step %g does not evenly divide range [%g, %g]", delta, min, max)
		}
	}
	validateAxis("source_depth", c.SourceDepthMin, c.SourceDepthMax, c.SourceDepthDelta)
	validateAxis("distance", c.DistanceMin, c.DistanceMax, c.DistanceDelta)

	if want, ok := SchemeComponents[c.ComponentScheme]; !ok {
		add("component_scheme", ErrComponentScheme, "unknown component scheme %q", c.ComponentScheme)
	} else if c.NComponents != want {
		add("ncomponents", ErrComponentScheme, "scheme %s has %d components, got %d", c.ComponentScheme, want, c.NComponents)
	}

	switch c.Interpolation {
	case InterpMultilinear, InterpNearestNeighbor:
	default:
		add("interpolation", ErrInterpolation, "unknown interpolation %q", c.Interpolation)
	}

	if _, err := c.EarthModel(); err != nil {
		add("earthmodel_1d", ErrEarthModel, "%v", err)
	}
	if _, err := c.ReceiverEarthModel(); err != nil {
		add("earthmodel_receiver_1d", ErrReceiverEarthModel, "%v", err)
	}

	errs = append(errs, c.validatePhases()...)

	if len(errs) > 0 {
		return &ValidationErrors{Errors: errs}
	}
	return nil
}

func (c *Config) validatePhases() []ValidationError {
	var errs []ValidationError
	seen := make(map[string]bool)
	exprs := make(map[string]*PhaseExpr)

	for i, p := range c.TabulatedPhases {
		field := fmt.Sprintf("tabulated_phases[%d]", i)
		if !phaseIDPattern.MatchString(p.ID) {
			errs = append(errs, ValidationError{Field: field + ".id", Code: ErrPhaseDefinition, Message: fmt.Sprintf("invalid phase id %q", p.ID)})
			continue
		}
		if seen[p.ID] {
			errs = append(errs, ValidationError{Field: field + ".id", Code: ErrDuplicatePhase, Message: fmt.Sprintf("phase %q declared more than once", p.ID)})
			continue
		}
		seen[p.ID] = true

		expr, err := ParsePhase(p.Definition)
		if err != nil {
			errs = append(errs, ValidationError{Field: field + ".definition", Code: ErrPhaseDefinition, Message: err.Error()})
			continue
		}
		exprs[p.ID] = expr
	}

	for i, p := range c.TabulatedPhases {
		expr, ok := exprs[p.ID]
		if !ok {
			continue
		}
		for _, ref := range expr.Refs() {
			if !seen[ref] {
				errs = append(errs, ValidationError{
					Field:   fmt.Sprintf("tabulated_phases[%d].definition", i),
					Code:    ErrUndefinedPhase,
					Message: fmt.Sprintf("phase %q references undefined phase %q", p.ID, ref),
				})
			}
		}
	}

	if _, err := phaseOrder(c.TabulatedPhases, exprs); err != nil {
		errs = append(errs, ValidationError{Field: "tabulated_phases", Code: ErrPhaseCycle, Message: err.Error()})
	}

	if !seen[BeginPhase] {
		errs = append(errs, ValidationError{Field: "tabulated_phases", Code: ErrMissingBeginPhase, Message: fmt.Sprintf("a phase named %q is required", BeginPhase)})
	}

	return errs
}

// PhaseOrder returns the tabulated phases parsed and ordered so that every
// phase comes after the phases it references.
func (c *Config) PhaseOrder() ([]string, map[string]*PhaseExpr, error) {
	exprs := make(map[string]*PhaseExpr, len(c.TabulatedPhases))
	for _, p := range c.TabulatedPhases {
		expr, err := ParsePhase(p.Definition)
		if err != nil {
			return nil, nil, err
		}
		exprs[p.ID] = expr
	}
	order, err := phaseOrder(c.TabulatedPhases, exprs)
	if err != nil {
		return nil, nil, err
	}
	return order, exprs, nil
}

// phaseOrder sorts phases topologically by their references, keeping
// declaration order where there is no dependency. Undefined references are
// ignored here; they are reported separately.
func phaseOrder(defs []PhaseDef, exprs map[string]*PhaseExpr) ([]string, error) {
	const (
		unvisited = iota
		visiting
		done
	)
	state := make(map[string]int, len(defs))
	var order []string

	var visit func(id string, path []string) error
	visit = func(id string, path []string) error {
		switch state[id] {
		case done:
			return nil
		case visiting:
			return fmt.Errorf("cyclic phase reference: %s", strings.Join(append(path, id), " -> "))
		}
		expr, ok := exprs[id]
		if !ok {
			return nil
		}
		state[id] = visiting
		next := append(append([]string(nil), path...), id)
		for _, ref := range expr.Refs() {
			if err := visit(ref, next); err != nil {
				return err
			}
		}
		state[id] = done
		order = append(order, id)
		return nil
	}

	for _, d := range defs {
		if err := visit(d.ID, nil); err != nil {
			return nil, err
		}
	}
	return order, nil
}
