package routing

import (
	"context"

	"github.com/paulmach/orb"
)

// Engine bundles the graph cache and travel constants behind the query
// surface the gameplay layer calls per action. Every degraded outcome —
// no graph, no nearby connector, no path — yields a usable straight-line
// plan; nothing here is ever fatal to the calling action.
type Engine struct {
	cache  *GraphCache
	params TravelParams
}

// NewEngine creates an Engine.
func NewEngine(cache *GraphCache, params TravelParams) *Engine {
	return &Engine{cache: cache, params: params}
}

// TravelPlan is the schedule returned for one convoy dispatch. Routed
// reports whether a road path backs it; when false, Waypoints is empty
// and the client animates a direct move over TravelSeconds.
type TravelPlan struct {
	TravelSeconds float64    `json:"travel_seconds"`
	Waypoints     []Waypoint `json:"waypoints,omitempty"`
	Routed        bool       `json:"routed"`
}

// PlanTravel computes the travel schedule from start to end within a
// region, departing at departAtMs.
func (e *Engine) PlanTravel(ctx context.Context, regionID string, start, end orb.Point, departAtMs int64) TravelPlan {
	graph, coords, ok := e.cache.LoadGraphForRegion(ctx, regionID)
	if !ok {
		return e.fallback(start, end)
	}

	fromID, ok := FindNearestConnector(coords, start)
	if !ok {
		return e.fallback(start, end)
	}
	toID, ok := FindNearestConnector(coords, end)
	if !ok {
		return e.fallback(start, end)
	}

	path, ok := FindPath(graph, coords, fromID, toID)
	if !ok {
		return e.fallback(start, end)
	}

	return TravelPlan{
		TravelSeconds: TravelSeconds(path, start, end, e.params),
		Waypoints:     BuildWaypoints(path, coords, departAtMs, e.params, start, end),
		Routed:        true,
	}
}

func (e *Engine) fallback(start, end orb.Point) TravelPlan {
	return TravelPlan{
		TravelSeconds: TravelSeconds(nil, start, end, e.params),
	}
}
