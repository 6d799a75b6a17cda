package qseis2d

import (
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"regexp"

	"github.com/roach88/gfstore/internal/config"
	"github.com/roach88/gfstore/internal/earthmodel"
)

var versionPattern = regexp.MustCompile(`^[0-9]{4}[a-z]?$`)

// SConfig configures the slowness-domain stage.
type SConfig struct {
	Version string `yaml:"qseiss_version"`

	// ReceiverBasementDepth is where the receiver-side model is joined to
	// the source-side model [km].
	ReceiverBasementDepth float64 `yaml:"receiver_basement_depth"`

	SlownessWindow     [4]float64 `yaml:"slowness_window"`
	CalcSlownessWindow bool       `yaml:"calc_slowness_window"`
	FlatEarthTransform bool       `yaml:"sw_flat_earth_transform"`
}

// RConfig configures the receiver stage.
type RConfig struct {
	Version         string  `yaml:"qseisr_version"`
	WaveletDuration float64 `yaml:"wavelet_duration_samples"`
}

// Extra holds the QSEIS2d settings stored under extra/qseis2d.
type Extra struct {
	// GFDirectory is the store subdirectory holding the stage S output.
	GFDirectory string            `yaml:"gf_directory"`
	TimeRegion  [2]config.Timing  `yaml:"time_region"`
	CutRegion   *[2]config.Timing `yaml:"cut,omitempty"`
	S           SConfig           `yaml:"qseis_s_conf"`
	R           RConfig           `yaml:"qseis_r_conf"`
}

// DefaultExtra returns the default settings.
func DefaultExtra() *Extra {
	return &Extra{
		GFDirectory: "qseis2d_green",
		TimeRegion: [2]config.Timing{
			config.MustParseTiming("begin-50"),
			config.MustParseTiming("end+100"),
		},
		S: SConfig{
			Version:               "2014",
			ReceiverBasementDepth: 35,
			SlownessWindow:        [4]float64{0, 0, 0.4, 0.5},
		},
		R: RConfig{
			Version:         "2014",
			WaveletDuration: 0.001,
		},
	}
}

func (e *Extra) programS() string { return "fomosto_qseisS" + e.S.Version }

func (e *Extra) programR() string { return "fomosto_qseisR" + e.R.Version }

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
	if e.GFDirectory == "" || filepath.Base(e.GFDirectory) != e.GFDirectory || e.GFDirectory == "." || e.GFDirectory == ".." {
		errs = append(errs, fmt.Errorf("gf_directory %q must be a plain directory name", e.GFDirectory))
	}
	if !versionPattern.MatchString(e.S.Version) {
		errs = append(errs, fmt.Errorf("qseiss_version %q must look like 2014", e.S.Version))
	}
	if !versionPattern.MatchString(e.R.Version) {
		errs = append(errs, fmt.Errorf("qseisr_version %q must look like 2014", e.R.Version))
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
	if !e.S.CalcSlownessWindow {
		sw := e.S.SlownessWindow
		if sw[0] < 0 || sw[1] < sw[0] || sw[2] < sw[1] || sw[3] < sw[2] || sw[3] <= 0 {
			errs = append(errs, fmt.Errorf("slowness_window %v must be non-negative, non-decreasing and non-empty", sw))
		}
	}
	if e.S.ReceiverBasementDepth <= 0 {
		errs = append(errs, fmt.Errorf("receiver_basement_depth %g must be positive", e.S.ReceiverBasementDepth))
	}
	if e.R.WaveletDuration <= 0 {
		errs = append(errs, fmt.Errorf("wavelet_duration_samples %g must be positive", e.R.WaveletDuration))
	}
	return errors.Join(errs...)
}

// slownessWindow returns the configured window, or one derived from the
// slowest shear velocity of the model when CalcSlownessWindow is set.
func (e *Extra) slownessWindow(m *earthmodel.Model) [4]float64 {
	if !e.S.CalcSlownessWindow {
		return e.S.SlownessWindow
	}
	vmin := math.Inf(1)
	for _, p := range m.Points() {
		v := p.Vs
		if v <= 0 {
			v = p.Vp
		}
		vmin = math.Min(vmin, v)
	}
	smax := 1000 / vmin // s/km
	return [4]float64{0, 0, 1.1 * smax, 1.3 * smax}
}
