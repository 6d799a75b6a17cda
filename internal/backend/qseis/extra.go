package qseis

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/roach88/gfstore/internal/config"
)

var versionPattern = regexp.MustCompile(`^[0-9]{4}[a-z]?$`)

// Extra holds the QSEIS settings stored under extra/qseis.
type Extra struct {
	// Version selects the program fomosto_qseis<version>.
	Version string `yaml:"qseis_version"`

	// TimeRegion is the computed time window.
	TimeRegion [2]config.Timing `yaml:"time_region"`

	// CutRegion is the window stored records are cut to.
	CutRegion *[2]config.Timing `yaml:"cut,omitempty"`

	// SlownessWindow is the taper of the slowness integration [s/km].
	SlownessWindow [4]float64 `yaml:"slowness_window"`

	AliasingSuppression    float64 `yaml:"aliasing_suppression_factor"`
	WaveletDurationSamples float64 `yaml:"wavelet_duration_samples"`
	FlatEarthTransform     bool    `yaml:"sw_flat_earth_transform"`
}

// DefaultExtra returns the default settings.
func DefaultExtra() *Extra {
	return &Extra{
		Version: "2006",
		TimeRegion: [2]config.Timing{
			config.MustParseTiming("begin-50"),
			config.MustParseTiming("end+100"),
		},
		SlownessWindow:         [4]float64{0, 0, 0.4, 0.5},
		AliasingSuppression:    0.1,
		WaveletDurationSamples: 0.001,
	}
}

// Program returns the executable name.
func (e *Extra) Program() string {
	return "fomosto_qseis" + e.Version
}

// Cut returns the configured cut window.
func (e *Extra) Cut() (config.Timing, config.Timing, bool) {
	if e.CutRegion == nil {
		return config.Timing{}, config.Timing{}, false
	}
	return e.CutRegion[0], e.CutRegion[1], true
}

// Validate checks the settings against the store configuration.
func (e *Extra) Validate(cfg *config.Config) error {
	var errs []error
	if !versionPattern.MatchString(e.Version) {
		errs = append(errs, fmt.Errorf("qseis_version %q must look like 2006 or 2006a", e.Version))
	}
	for _, t := range e.TimeRegion {
		if err := cfg.CheckTiming(t); err != nil {
			errs = append(errs, fmt.Errorf("time_region: %w", err))
		}
	}
	if e.CutRegion != nil {
		for _, t := range e.CutRegion {
			if err := cfg.CheckTiming(t); err != nil {
				errs = append(errs, fmt.Errorf("cut: %w", err))
			}
		}
	}
	sw := e.SlownessWindow
	for i := 1; i < len(sw); i++ {
		if sw[i] < sw[i-1] || sw[0] < 0 {
			errs = append(errs, fmt.Errorf("slowness_window %v must be non-negative and non-decreasing", sw))
			break
		}
	}
	if sw[3] <= 0 {
		errs = append(errs, fmt.Errorf("slowness_window %v is empty", sw))
	}
	if e.AliasingSuppression <= 0 || e.AliasingSuppression >= 1 {
		errs = append(errs, fmt.Errorf("aliasing_suppression_factor %g must be in (0, 1)", e.AliasingSuppression))
	}
	if e.WaveletDurationSamples <= 0 {
		errs = append(errs, fmt.Errorf("wavelet_duration_samples %g must be positive", e.WaveletDurationSamples))
	}
	return errors.Join(errs...)
}
