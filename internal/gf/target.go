package gf

import (
	"fmt"
	"strings"
)

// Quantity is the physical quantity of a synthetic trace.
type Quantity string

const (
	Displacement Quantity = "displacement"
	Velocity     Quantity = "velocity"
	Acceleration Quantity = "acceleration"
)

// Derivatives returns how often displacement must be differentiated.
func (q Quantity) Derivatives() (int, error) {
	switch q {
	case Displacement, "":
		return 0, nil
	case Velocity:
		return 1, nil
	case Acceleration:
		return 2, nil
	default:
		return 0, fmt.Errorf("unknown quantity %q", q)
	}
}

// Codes identifies a channel.
type Codes struct {
	Network  string `yaml:"network" json:"network"`
	Station  string `yaml:"station" json:"station"`
	Location string `yaml:"location" json:"location"`
	Channel  string `yaml:"channel" json:"channel"`
}

func (c Codes) String() string {
	return strings.Join([]string{c.Network, c.Station, c.Location, c.Channel}, ".")
}

// Target is a receiver channel at which a synthetic trace is requested.
//
// Azimuth and dip give the sensitive axis (dip positive downward). When both
// are unset the orientation follows from the last letter of the channel code:
// Z up, N north, E east, R radial (back-azimuth + 180), T transverse
// (back-azimuth - 90).
type Target struct {
	Codes         Codes `yaml:"codes" json:"codes"`
	Location      `yaml:",inline"`
	Azimuth       *float64 `yaml:"azimuth,omitempty" json:"azimuth,omitempty"`
	Dip           *float64 `yaml:"dip,omitempty" json:"dip,omitempty"`
	Quantity      Quantity `yaml:"quantity,omitempty" json:"quantity,omitempty"`
	StoreID       string   `yaml:"store_id,omitempty" json:"store_id,omitempty"`
	Interpolation string   `yaml:"interpolation,omitempty" json:"interpolation,omitempty"`
}

// Orientation resolves the sensitive axis of the target for a given
// back-azimuth (degrees).
func (t *Target) Orientation(bazi float64) (azimuth, dip float64, err error) {
	if t.Azimuth != nil || t.Dip != nil {
		if t.Azimuth != nil {
			azimuth = *t.Azimuth
		}
		if t.Dip != nil {
			dip = *t.Dip
		}
		return azimuth, dip, nil
	}

	cha := strings.ToUpper(t.Codes.Channel)
	if cha == "" {
		return 0, 0, fmt.Errorf("target %s: no orientation and no channel code", t.Codes)
	}
	switch cha[len(cha)-1] {
	case 'Z':
		return 0, -90, nil
	case 'N':
		return 0, 0, nil
	case 'E':
		return 90, 0, nil
	case 'R':
		return bazi + 180, 0, nil
	case 'T':
		return bazi - 90, 0, nil
	default:
		return 0, 0, fmt.Errorf("target %s: cannot infer orientation from channel %q", t.Codes, t.Codes.Channel)
	}
}

// Float64 returns a pointer to v, for optional angles.
func Float64(v float64) *float64 {
	return &v
}
