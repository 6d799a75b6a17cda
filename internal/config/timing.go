package config

import (
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Timing is a time expression relative to the origin of a source: either a
// constant number of seconds or a tabulated phase plus an offset, e.g. "0",
// "begin-50", "end+100" or "{stored:begin}+10".
type Timing struct {
	PhaseID string
	Offset  float64
}

// ParseTiming parses a timing expression.
func ParseTiming(s string) (Timing, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Timing{}, fmt.Errorf("empty timing")
	}

	if v, err := strconv.ParseFloat(s, 64); err == nil {
		return Timing{Offset: v}, nil
	}

	var id, rest string
	if s[0] == '{' {
		end := strings.IndexByte(s, '}')
		if end < 0 {
			return Timing{}, fmt.Errorf("timing %q: unterminated reference", s)
		}
		ref, err := parseStoredRef(s[1:end])
		if err != nil {
			return Timing{}, fmt.Errorf("timing %q: %w", s, err)
		}
		id, rest = ref, s[end+1:]
	} else {
		i := strings.IndexAny(s, "+-")
		if i < 0 {
			i = len(s)
		}
		id, rest = strings.TrimSpace(s[:i]), s[i:]
		if !phaseIDPattern.MatchString(id) {
			return Timing{}, fmt.Errorf("timing %q: invalid phase id %q", s, id)
		}
	}

	off, err := parseOffset(rest)
	if err != nil {
		return Timing{}, fmt.Errorf("timing %q: %w", s, err)
	}
	return Timing{PhaseID: id, Offset: off}, nil
}

// MustParseTiming is like ParseTiming but panics on error.
// Use only in tests or for literals known to be valid.
func MustParseTiming(s string) Timing {
	t, err := ParseTiming(s)
	if err != nil {
		panic(err)
	}
	return t
}

// IsConstant reports whether the timing does not depend on a phase.
func (t Timing) IsConstant() bool {
	return t.PhaseID == ""
}

// String renders the timing in the same syntax ParseTiming accepts.
func (t Timing) String() string {
	off := strconv.FormatFloat(t.Offset, 'g', -1, 64)
	if t.PhaseID == "" {
		return off
	}
	switch {
	case t.Offset > 0:
		return t.PhaseID + "+" + off
	case t.Offset < 0:
		return t.PhaseID + off
	default:
		return t.PhaseID
	}
}

// MarshalYAML renders the timing as a scalar string.
func (t Timing) MarshalYAML() (interface{}, error) {
	return t.String(), nil
}

// UnmarshalYAML parses a scalar timing expression.
func (t *Timing) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	parsed, err := ParseTiming(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// CheckTiming verifies that the timing refers to a tabulated phase.
func (c *Config) CheckTiming(t Timing) error {
	if t.IsConstant() {
		return nil
	}
	if _, ok := c.Phase(t.PhaseID); !ok {
		return fmt.Errorf("timing %s references undefined phase %q", t, t.PhaseID)
	}
	return nil
}
