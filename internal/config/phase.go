package config

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// TermKind distinguishes the kinds of phase alternatives.
type TermKind int

const (
	// TermRay is a single-leg ray phase such as P, p, S\ or s.
	TermRay TermKind = iota + 1
	// TermVelocity is a horizontal velocity: arrival = distance / velocity.
	TermVelocity
	// TermStored references another tabulated phase.
	TermStored
)

// Wave selects P or S velocities.
type Wave int

const (
	WaveP Wave = iota + 1
	WaveS
)

func (w Wave) String() string {
	if w == WaveS {
		return "S"
	}
	return "P"
}

// Alternative is one comma-separated branch of a phase definition.
type Alternative struct {
	Kind TermKind

	// Ray fields.
	Wave Wave
	// Upgoing is true when the ray leaves the source upward (lower-case leg).
	Upgoing bool
	// ArrivesDown is true when the ray reaches the receiver travelling
	// downward (trailing backslash).
	ArrivesDown bool

	// Velocity is the horizontal velocity in m/s for TermVelocity.
	Velocity float64

	// Ref is the referenced phase id for TermStored.
	Ref string

	// Offset is added to the arrival time, in seconds.
	Offset float64
}

// PhaseExpr is a parsed phase definition. The arrival is the earliest present
// alternative.
type PhaseExpr struct {
	Alternatives []Alternative
}

var (
	phaseIDPattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]*$`)
	numberPrefix   = regexp.MustCompile(`^([0-9]*\.?[0-9]+(?:[eE][+-]?[0-9]+)?)`)
	offsetPattern  = regexp.MustCompile(`^([+-])\s*([0-9]*\.?[0-9]+(?:[eE][+-]?[0-9]+)?)$`)
)

// ParsePhase parses a phase definition.
func ParsePhase(def string) (*PhaseExpr, error) {
	if strings.TrimSpace(def) == "" {
		return nil, fmt.Errorf("empty phase definition")
	}

	var expr PhaseExpr
	for _, raw := range strings.Split(def, ",") {
		alt, err := parseAlternative(strings.TrimSpace(raw))
		if err != nil {
			return nil, fmt.Errorf("phase definition %q: %w", def, err)
		}
		expr.Alternatives = append(expr.Alternatives, alt)
	}
	return &expr, nil
}

// Refs returns the phase ids referenced by stored alternatives.
func (e *PhaseExpr) Refs() []string {
	var refs []string
	for _, a := range e.Alternatives {
		if a.Kind == TermStored {
			refs = append(refs, a.Ref)
		}
	}
	return refs
}

func parseAlternative(s string) (Alternative, error) {
	if s == "" {
		return Alternative{}, fmt.Errorf("empty alternative")
	}

	var (
		alt  Alternative
		rest string
	)

	switch {
	case s[0] == '{':
		end := strings.IndexByte(s, '}')
		if end < 0 {
			return alt, fmt.Errorf("unterminated reference in %q", s)
		}
		ref, err := parseStoredRef(s[1:end])
		if err != nil {
			return alt, err
		}
		alt.Kind = TermStored
		alt.Ref = ref
		rest = s[end+1:]

	case strings.ContainsRune("PpSs", rune(s[0])):
		alt.Kind = TermRay
		alt.Wave = WaveP
		if s[0] == 'S' || s[0] == 's' {
			alt.Wave = WaveS
		}
		alt.Upgoing = s[0] == 'p' || s[0] == 's'
		rest = s[1:]
		if strings.HasPrefix(rest, `\`) {
			alt.ArrivesDown = true
			rest = rest[1:]
		}

	default:
		m := numberPrefix.FindString(s)
		if m == "" {
			return alt, fmt.Errorf("unrecognised phase term %q", s)
		}
		v, err := strconv.ParseFloat(m, 64)
		if err != nil || v <= 0 {
			return alt, fmt.Errorf("invalid velocity %q", m)
		}
		alt.Kind = TermVelocity
		alt.Velocity = v * 1000
		rest = s[len(m):]
	}

	off, err := parseOffset(rest)
	if err != nil {
		return alt, fmt.Errorf("term %q: %w", s, err)
	}
	alt.Offset = off
	return alt, nil
}

func parseStoredRef(inner string) (string, error) {
	const prefix = "stored:"
	if !strings.HasPrefix(inner, prefix) {
		return "", fmt.Errorf("unsupported reference {%s}", inner)
	}
	id := strings.TrimPrefix(inner, prefix)
	if !phaseIDPattern.MatchString(id) {
		return "", fmt.Errorf("invalid phase id %q", id)
	}
	return id, nil
}

func parseOffset(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	m := offsetPattern.FindStringSubmatch(s)
	if m == nil {
		return 0, fmt.Errorf("invalid offset %q", s)
	}
	v, err := strconv.ParseFloat(m[2], 64)
	if err != nil {
		return 0, fmt.Errorf("invalid offset %q: %w", s, err)
	}
	if m[1] == "-" {
		v = -v
	}
	return v, nil
}
