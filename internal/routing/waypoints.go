package routing

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
)

// TravelParams are the configured travel-time constants.
type TravelParams struct {
	SpeedMps          float64
	MinSeconds        float64
	MaxSeconds        float64
	FallbackInflation float64
}

// TravelSeconds computes the clamped travel duration for a path result,
// or for its absence. With a path the duration derives from the weighted
// path distance; without one it derives from the inflated great-circle
// distance between the true endpoints. The result is always within
// [MinSeconds, MaxSeconds] inclusive.
func TravelSeconds(path *PathResult, actualStart, actualEnd orb.Point, p TravelParams) float64 {
	var meters float64
	if path != nil {
		meters = path.TotalWeightedDistance
	} else {
		meters = geo.Distance(actualStart, actualEnd) * p.FallbackInflation
	}

	seconds := 0.0
	if p.SpeedMps > 0 {
		seconds = meters / p.SpeedMps
	}
	if seconds < p.MinSeconds {
		return p.MinSeconds
	}
	if seconds > p.MaxSeconds {
		return p.MaxSeconds
	}
	return seconds
}

// BuildWaypoints converts a path into the time-stamped position sequence
// the client animates. Arrival times distribute the clamped total travel
// time over cumulative great-circle distance along the path, and the
// first/last positions are replaced with the true source and destination
// rather than the snapped connectors. Without a path there is nothing to
// animate: the result is nil and callers render a direct move using just
// the duration.
func BuildWaypoints(path *PathResult, coords Coords, departAtMs int64, p TravelParams, actualStart, actualEnd orb.Point) []Waypoint {
	if path == nil || len(path.ConnectorIDs) == 0 {
		return nil
	}

	totalSeconds := TravelSeconds(path, actualStart, actualEnd, p)

	positions := make([]orb.Point, 0, len(path.ConnectorIDs))
	for _, id := range path.ConnectorIDs {
		pos, ok := coords[id]
		if !ok {
			return nil
		}
		positions = append(positions, pos)
	}

	cumulative := make([]float64, len(positions))
	for i := 1; i < len(positions); i++ {
		cumulative[i] = cumulative[i-1] + geo.Distance(positions[i-1], positions[i])
	}
	total := cumulative[len(cumulative)-1]

	waypoints := make([]Waypoint, len(positions))
	for i, pos := range positions {
		frac := 1.0
		if total > 0 {
			frac = cumulative[i] / total
		} else if i < len(positions)-1 {
			frac = 0.0
		}
		waypoints[i] = Waypoint{
			Lng:        pos.Lon(),
			Lat:        pos.Lat(),
			ArriveAtMs: departAtMs + int64(frac*totalSeconds*1000),
		}
	}

	// True endpoints, not the snapped connectors.
	waypoints[0].Lng = actualStart.Lon()
	waypoints[0].Lat = actualStart.Lat()
	last := len(waypoints) - 1
	waypoints[last].Lng = actualEnd.Lon()
	waypoints[last].Lat = actualEnd.Lat()

	return waypoints
}
