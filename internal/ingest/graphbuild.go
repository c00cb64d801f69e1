package ingest

import (
	"sort"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"go.uber.org/zap"

	"github.com/rustbelt-games/atlas/internal/hexgrid"
	"github.com/rustbelt-games/atlas/internal/store"
)

// connectorRegistry fixes each connector's position at its first mention.
// A connector shared by several segments gets whatever position the first
// segment interpolated for it; later mentions reuse it. Scoped to one
// graph-build run and passed by reference through segment processing.
type connectorRegistry struct {
	byID  map[string]store.Connector
	order []string
}

func newConnectorRegistry() *connectorRegistry {
	return &connectorRegistry{byID: make(map[string]store.Connector)}
}

// resolve returns the connector's permanent position, registering the
// proposed one if the id is new.
func (r *connectorRegistry) resolve(id, regionID string, pt orb.Point, resolution int) orb.Point {
	if existing, ok := r.byID[id]; ok {
		return orb.Point{existing.Lng, existing.Lat}
	}
	r.byID[id] = store.Connector{
		ID:       id,
		RegionID: regionID,
		Lng:      pt.Lon(),
		Lat:      pt.Lat(),
		HexID:    hexgrid.CellForPoint(pt, resolution).String(),
	}
	r.order = append(r.order, id)
	return pt
}

// connectors returns all registered connectors in registration order.
func (r *connectorRegistry) connectors() []store.Connector {
	out := make([]store.Connector, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.byID[id])
	}
	return out
}

// BuildGraph constructs the bidirectional road graph for the retained
// segments. Each segment contributes one edge pair per consecutive
// connector pair along it, so intermediate intersections participate in
// routing. Segments with fewer than two usable connectors are skipped.
func BuildGraph(segments []Segment, regionID string, resolution int) ([]store.Connector, []store.Edge) {
	registry := newConnectorRegistry()
	var edges []store.Edge
	skipped := 0

	for _, seg := range segments {
		if len(seg.Connectors) < 2 {
			skipped++
			continue
		}

		conns := make([]SegmentConnector, len(seg.Connectors))
		copy(conns, seg.Connectors)
		sort.SliceStable(conns, func(i, j int) bool { return conns[i].At < conns[j].At })

		positions := make([]orb.Point, len(conns))
		for i, sc := range conns {
			pt := interpolateAlong(seg.Line, sc.At)
			positions[i] = registry.resolve(sc.ID, regionID, pt, resolution)
		}

		for i := 0; i+1 < len(conns); i++ {
			from, to := conns[i], conns[i+1]
			if from.ID == to.ID {
				continue
			}
			length := geo.Distance(positions[i], positions[i+1])
			hexID := hexgrid.CellForPoint(positions[i], resolution).String()

			edges = append(edges,
				store.Edge{SegmentID: seg.ID, FromConnector: from.ID, ToConnector: to.ID, LengthM: length, HexID: hexID},
				store.Edge{SegmentID: seg.ID, FromConnector: to.ID, ToConnector: from.ID, LengthM: length, HexID: hexID},
			)
		}
	}

	if skipped > 0 {
		zap.L().Debug("ingest: segments without enough connectors", zap.Int("skipped", skipped))
	}
	return registry.connectors(), edges
}

// interpolateAlong returns the point at fraction t of the line's
// arc length, linearly interpolated within the containing vertex pair.
func interpolateAlong(line orb.LineString, t float64) orb.Point {
	if t <= 0 {
		return line[0]
	}
	if t >= 1 {
		return line[len(line)-1]
	}

	total := 0.0
	legs := make([]float64, len(line)-1)
	for i := 0; i+1 < len(line); i++ {
		legs[i] = geo.Distance(line[i], line[i+1])
		total += legs[i]
	}
	if total == 0 {
		return line[0]
	}

	target := t * total
	walked := 0.0
	for i, leg := range legs {
		if walked+leg >= target {
			frac := 0.0
			if leg > 0 {
				frac = (target - walked) / leg
			}
			return orb.Point{
				line[i].Lon() + (line[i+1].Lon()-line[i].Lon())*frac,
				line[i].Lat() + (line[i+1].Lat()-line[i].Lat())*frac,
			}
		}
		walked += leg
	}
	return line[len(line)-1]
}
