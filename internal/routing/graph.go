// Package routing is the online query path: a TTL-bounded graph cache,
// nearest-connector lookup, weighted shortest-path search, and travel
// schedule construction for convoys.
package routing

import "github.com/paulmach/orb"

// GraphEdge is one outgoing adjacency in the runtime graph. CostM is the
// routing weight: length scaled by the segment-health penalty captured at
// load time.
type GraphEdge struct {
	To        string
	SegmentID string
	LengthM   float64
	CostM     float64
}

// Graph is the adjacency map of one region's road network.
type Graph map[string][]GraphEdge

// Coords maps connector ids to positions.
type Coords map[string]orb.Point

// PathResult is an ordered connector path and its accumulated weighted
// distance.
type PathResult struct {
	ConnectorIDs          []string
	TotalWeightedDistance float64
}

// Waypoint is a position plus absolute arrival time, for animating a
// convoy along its path.
type Waypoint struct {
	Lng        float64 `json:"lng"`
	Lat        float64 `json:"lat"`
	ArriveAtMs int64   `json:"arrive_at_ms"`
}
