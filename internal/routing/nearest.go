package routing

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
)

// FindNearestConnector returns the connector minimizing great-circle
// distance to an arbitrary point, or absent when the coordinate set is
// empty. Ties break toward the smaller id so results are deterministic.
func FindNearestConnector(coords Coords, point orb.Point) (string, bool) {
	best := ""
	bestDist := 0.0
	for id, pos := range coords {
		d := geo.Distance(point, pos)
		if best == "" || d < bestDist || (d == bestDist && id < best) {
			best = id
			bestDist = d
		}
	}
	return best, best != ""
}
