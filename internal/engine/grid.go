package engine

import (
	"math"

	"github.com/roach88/gfstore/internal/config"
)

// node is one grid node contributing to an interpolated response.
type node struct {
	iz, ix int
	w      float64
}

// snap is the fractional cell position below which a point counts as
// lying on a node.
const snap = 1e-6

type axisNode struct {
	i int
	w float64
}

// locate returns the weighted grid nodes for a source at depth and a
// receiver at distance. Nodes of zero weight are omitted, so a point on a
// node yields that node alone.
func locate(cfg *config.Config, method string, depth, distance float64) ([]node, error) {
	dtol, xtol := cfg.Tolerance()
	ext := cfg.Extent()
	if depth < ext.DepthMin-dtol || depth > ext.DepthMax+dtol ||
		distance < ext.DistanceMin-xtol || distance > ext.DistanceMax+xtol {
		return nil, &OutOfGridError{StoreID: cfg.ID, Depth: depth, Distance: distance, Extent: ext}
	}

	zs := axis(depth, cfg.SourceDepthMin, cfg.SourceDepthDelta, cfg.NSourceDepths(), method)
	xs := axis(distance, cfg.DistanceMin, cfg.DistanceDelta, cfg.NDistances(), method)

	nodes := make([]node, 0, len(zs)*len(xs))
	for _, z := range zs {
		for _, x := range xs {
			if w := z.w * x.w; w != 0 {
				nodes = append(nodes, node{iz: z.i, ix: x.i, w: w})
			}
		}
	}
	return nodes, nil
}

// axis returns the nodes of a regular axis around v with their weights.
// v must lie within the axis up to the grid tolerance.
func axis(v, min, delta float64, n int, method string) []axisNode {
	if n == 1 || delta <= 0 {
		return []axisNode{{i: 0, w: 1}}
	}
	f := (v - min) / delta
	if method == config.InterpNearestNeighbor {
		i := int(math.Round(f))
		return []axisNode{{i: clamp(i, 0, n-1), w: 1}}
	}

	i0 := int(math.Floor(f))
	switch {
	case i0 < 0:
		return []axisNode{{i: 0, w: 1}}
	case i0 >= n-1:
		return []axisNode{{i: n - 1, w: 1}}
	}
	r := f - float64(i0)
	switch {
	case r < snap:
		return []axisNode{{i: i0, w: 1}}
	case r > 1-snap:
		return []axisNode{{i: i0 + 1, w: 1}}
	}
	return []axisNode{{i: i0, w: 1 - r}, {i: i0 + 1, w: r}}
}

func clamp(i, lo, hi int) int {
	return max(lo, min(i, hi))
}
