package backend

import (
	"fmt"
	"math"

	"github.com/roach88/gfstore/internal/config"
)

// Window evaluates a time region at every distance of a partition and
// returns the covering start time, aligned to the sample grid, and the
// number of samples. Distances without an arrival are ignored.
func Window(env Env, part Partition, region [2]config.Timing, deltat float64) (float64, int, error) {
	tmin, tmax := math.Inf(1), math.Inf(-1)
	for ix := range part.Distances {
		from, err := env.Times.TimeAt(region[0], part.IZ, ix)
		if err != nil {
			return 0, 0, err
		}
		to, err := env.Times.TimeAt(region[1], part.IZ, ix)
		if err != nil {
			return 0, 0, err
		}
		if from.Valid {
			tmin = math.Min(tmin, from.T)
		}
		if to.Valid {
			tmax = math.Max(tmax, to.T)
		}
	}
	if math.IsInf(tmin, 0) || math.IsInf(tmax, 0) {
		return 0, 0, fmt.Errorf("time region %s..%s has no arrivals at depth %g", region[0], region[1], part.SourceDepth)
	}
	if tmax <= tmin {
		return 0, 0, fmt.Errorf("time region %s..%s is empty at depth %g", region[0], region[1], part.SourceDepth)
	}

	tstart := math.Floor(tmin/deltat) * deltat
	n := int(math.Ceil((tmax-tstart)/deltat-1e-9)) + 1
	return tstart, n, nil
}

// NextPow2 returns the smallest power of two >= n.
func NextPow2(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}
