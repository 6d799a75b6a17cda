package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/roach88/gfstore/internal/config"
)

// Homogeneous is a uniform 100 km thick nd model (vp 6 km/s, vs 3.46 km/s).
const Homogeneous = `0 6 3.46 2.7 1456 600
100 6 3.46 2.7 1456 600
`

// SmallConfig returns a valid 3 x 5 grid configuration for the given
// modelling code: source depths 5-7 km, distances 10-14 km, 10 Hz.
func SmallConfig(code string) *config.Config {
	cfg := &config.Config{
		ID:               "test_" + code,
		ModellingCodeID:  code,
		SampleRate:       10,
		SourceDepthMin:   5000,
		SourceDepthMax:   7000,
		SourceDepthDelta: 1000,
		DistanceMin:      10000,
		DistanceMax:      14000,
		DistanceDelta:    1000,
		EarthModel1D:     Homogeneous,
		TabulatedPhases: []config.PhaseDef{
			{ID: "begin", Definition: "p,P"},
			{ID: "end", Definition: "2.5"},
		},
	}
	cfg.ApplyDefaults()
	return cfg
}

// WriteFile writes data to name inside dir and returns the path.
func WriteFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

// WriteScript writes an executable shell script named name into dir and
// returns its path. Used to stand in for external modelling programs.
func WriteScript(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755); err != nil {
		t.Fatalf("write script %s: %v", path, err)
	}
	return path
}
