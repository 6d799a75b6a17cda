// Package config defines the store configuration: grid extent, sampling,
// component scheme, earth models and tabulated phases.
//
// A configuration is read from YAML, checked against an embedded CUE schema
// and then validated semantically. Validation never mutates the value and
// can be repeated freely.
package config

import (
	"bytes"
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/gfstore/internal/earthmodel"
)

// Component schemes.
const (
	SchemeElastic10 = "elastic10"
	SchemeElastic2  = "elastic2"
)

// Interpolation methods.
const (
	InterpMultilinear     = "multilinear"
	InterpNearestNeighbor = "nearest_neighbor"
)

// DefaultEarthRadius is the sphere radius used for distances and the
// earth-flattening transform.
const DefaultEarthRadius = 6371000.0

// gridTolerance is the relative tolerance for grid arithmetic.
const gridTolerance = 1e-6

// SchemeComponents maps component schemes to their component count.
var SchemeComponents = map[string]int{
	SchemeElastic10: 10,
	SchemeElastic2:  2,
}

// PhaseDef declares a tabulated phase.
type PhaseDef struct {
	ID         string `yaml:"id"`
	Definition string `yaml:"definition"`
}

// Config is a store configuration. Lengths are in metres, sample rate in Hz.
type Config struct {
	ID                   string     `yaml:"id"`
	Description          string     `yaml:"description,omitempty"`
	ModellingCodeID      string     `yaml:"modelling_code_id"`
	ComponentScheme      string     `yaml:"component_scheme,omitempty"`
	NComponents          int        `yaml:"ncomponents,omitempty"`
	SampleRate           float64    `yaml:"sample_rate"`
	ReceiverDepth        float64    `yaml:"receiver_depth"`
	SourceDepthMin       float64    `yaml:"source_depth_min"`
	SourceDepthMax       float64    `yaml:"source_depth_max"`
	SourceDepthDelta     float64    `yaml:"source_depth_delta"`
	DistanceMin          float64    `yaml:"distance_min"`
	DistanceMax          float64    `yaml:"distance_max"`
	DistanceDelta        float64    `yaml:"distance_delta"`
	EarthModel1D         string     `yaml:"earthmodel_1d"`
	EarthModelReceiver1D string     `yaml:"earthmodel_receiver_1d,omitempty"`
	TabulatedPhases      []PhaseDef `yaml:"tabulated_phases,omitempty"`
	Interpolation        string     `yaml:"interpolation,omitempty"`
	EarthRadius          float64    `yaml:"earth_radius,omitempty"`
}

// Extent is the rectangular coverage of the grid.
type Extent struct {
	DepthMin    float64 `json:"depth_min"`
	DepthMax    float64 `json:"depth_max"`
	DistanceMin float64 `json:"distance_min"`
	DistanceMax float64 `json:"distance_max"`
}

// Load reads, schema-checks and decodes a configuration file.
// Semantic validation is left to Validate.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse schema-checks and decodes configuration YAML and fills defaults.
func Parse(data []byte) (*Config, error) {
	if errs := CheckSchema(data); len(errs) > 0 {
		return nil, &ValidationErrors{Errors: errs}
	}

	var cfg Config
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	cfg.ApplyDefaults()
	return &cfg, nil
}

// ApplyDefaults fills unset optional fields.
func (c *Config) ApplyDefaults() {
	if c.ComponentScheme == "" {
		c.ComponentScheme = SchemeElastic10
	}
	if c.NComponents == 0 {
		c.NComponents = SchemeComponents[c.ComponentScheme]
	}
	if c.Interpolation == "" {
		c.Interpolation = InterpMultilinear
	}
	if c.EarthRadius == 0 {
		c.EarthRadius = DefaultEarthRadius
	}
}

// Marshal renders the configuration as YAML.
func (c *Config) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	return buf.Bytes(), nil
}

// Save writes the configuration as YAML to path.
func (c *Config) Save(path string) error {
	data, err := c.Marshal()
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Clone returns a deep copy.
func (c *Config) Clone() *Config {
	out := *c
	out.TabulatedPhases = append([]PhaseDef(nil), c.TabulatedPhases...)
	return &out
}

// EarthModel parses the source-side earth model.
func (c *Config) EarthModel() (*earthmodel.Model, error) {
	return earthmodel.ParseND(c.EarthModel1D)
}

// ReceiverEarthModel parses the receiver-side earth model. It returns nil
// without error when none is configured.
func (c *Config) ReceiverEarthModel() (*earthmodel.Model, error) {
	if c.EarthModelReceiver1D == "" {
		return nil, nil
	}
	return earthmodel.ParseND(c.EarthModelReceiver1D)
}

// Deltat returns the sampling interval in seconds.
func (c *Config) Deltat() float64 {
	return 1.0 / c.SampleRate
}

// NSourceDepths returns the number of source depth nodes.
func (c *Config) NSourceDepths() int {
	return axisCount(c.SourceDepthMin, c.SourceDepthMax, c.SourceDepthDelta)
}

// NDistances returns the number of distance nodes.
func (c *Config) NDistances() int {
	return axisCount(c.DistanceMin, c.DistanceMax, c.DistanceDelta)
}

// SourceDepth returns the depth of source depth node i.
func (c *Config) SourceDepth(i int) float64 {
	return c.SourceDepthMin + float64(i)*c.SourceDepthDelta
}

// Distance returns the distance of distance node i.
func (c *Config) Distance(i int) float64 {
	return c.DistanceMin + float64(i)*c.DistanceDelta
}

// Distances returns all distance nodes.
func (c *Config) Distances() []float64 {
	out := make([]float64, c.NDistances())
	for i := range out {
		out[i] = c.Distance(i)
	}
	return out
}

// NRecords returns the total record count of the grid.
func (c *Config) NRecords() int {
	return c.NSourceDepths() * c.NDistances() * c.NComponents
}

// RecordIndex returns the flat index of a (depth, distance, component) node.
func (c *Config) RecordIndex(iz, ix, ic int) int {
	return (iz*c.NDistances()+ix)*c.NComponents + ic
}

// Extent returns the grid coverage.
func (c *Config) Extent() Extent {
	return Extent{
		DepthMin:    c.SourceDepthMin,
		DepthMax:    c.SourceDepthMax,
		DistanceMin: c.DistanceMin,
		DistanceMax: c.DistanceMax,
	}
}

// Tolerance returns the absolute tolerance used to decide whether a depth or
// distance lies on the grid boundary.
func (c *Config) Tolerance() (depth, distance float64) {
	return gridTolerance * math.Max(c.SourceDepthDelta, 1), gridTolerance * math.Max(c.DistanceDelta, 1)
}

// Phase returns the phase definition with the given id.
func (c *Config) Phase(id string) (PhaseDef, bool) {
	for _, p := range c.TabulatedPhases {
		if p.ID == id {
			return p, true
		}
	}
	return PhaseDef{}, false
}

func axisCount(min, max, delta float64) int {
	if delta <= 0 || max < min {
		return 0
	}
	return int(math.Round((max-min)/delta)) + 1
}

// divides reports whether delta evenly divides max-min.
func divides(min, max, delta float64) bool {
	n := (max - min) / delta
	return math.Abs(n-math.Round(n)) <= gridTolerance*math.Max(1, n)
}
