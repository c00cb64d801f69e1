// Package ingest turns raw map geometry into the persisted atlas model:
// region coverage, world features, hex associations, hubs, and the
// per-region road graph.
package ingest

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"github.com/paulmach/orb/geojson"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Segment is a raw road segment with its ordered navigation connectors.
type Segment struct {
	ID         string
	Class      string
	Line       orb.LineString
	Connectors []SegmentConnector
	Bound      orb.Bound
}

// SegmentConnector tags a connector id with its position fraction along
// the owning segment.
type SegmentConnector struct {
	ID string
	At float64
}

// Building is a raw building footprint.
type Building struct {
	ID       string
	Bound    orb.Bound
	AreaSqM  float64
	Category string
}

// Place is a point of interest carrying a category used for resource
// classification.
type Place struct {
	ID       string
	Point    orb.Point
	Category string
}

const maxFeatureLine = 16 << 20

// ReadSegments loads road segments from a newline-delimited GeoJSON file,
// keeping only those whose extent overlaps the bound. Non-LineString
// geometries and segments without connector tags are skipped.
func ReadSegments(path string, bound orb.Bound) ([]Segment, error) {
	var segs []Segment
	skipped := 0

	err := eachFeature(path, func(f *geojson.Feature) {
		line, ok := f.Geometry.(orb.LineString)
		if !ok || len(line) < 2 {
			skipped++
			return
		}
		b := line.Bound()
		if !b.Intersects(bound) {
			return
		}

		seg := Segment{
			ID:         featureID(f),
			Class:      f.Properties.MustString("class", "unclassified"),
			Line:       line,
			Connectors: parseConnectors(f.Properties["connectors"]),
			Bound:      b,
		}
		if seg.ID == "" {
			skipped++
			return
		}
		segs = append(segs, seg)
	})
	if err != nil {
		return nil, err
	}

	if skipped > 0 {
		zap.L().Debug("ingest: skipped segment records", zap.Int("skipped", skipped))
	}
	return segs, nil
}

// ReadBuildings loads building footprints from a newline-delimited GeoJSON
// file, keeping only those whose extent overlaps the bound.
func ReadBuildings(path string, bound orb.Bound) ([]Building, error) {
	var buildings []Building
	skipped := 0

	err := eachFeature(path, func(f *geojson.Feature) {
		if f.Geometry == nil {
			skipped++
			return
		}
		b := f.Geometry.Bound()
		if !b.Intersects(bound) {
			return
		}
		id := featureID(f)
		if id == "" {
			skipped++
			return
		}
		buildings = append(buildings, Building{
			ID:       id,
			Bound:    b,
			AreaSqM:  geo.Area(f.Geometry),
			Category: strings.ToLower(f.Properties.MustString("category", "")),
		})
	})
	if err != nil {
		return nil, err
	}

	if skipped > 0 {
		zap.L().Debug("ingest: skipped building records", zap.Int("skipped", skipped))
	}
	return buildings, nil
}

// ReadPlaces loads category-bearing places from a newline-delimited GeoJSON
// file, keeping only points inside the bound.
func ReadPlaces(path string, bound orb.Bound) ([]Place, error) {
	var places []Place

	err := eachFeature(path, func(f *geojson.Feature) {
		pt, ok := f.Geometry.(orb.Point)
		if !ok || !bound.Contains(pt) {
			return
		}
		id := featureID(f)
		if id == "" {
			return
		}
		places = append(places, Place{
			ID:       id,
			Point:    pt,
			Category: strings.ToLower(f.Properties.MustString("category", "")),
		})
	})
	if err != nil {
		return nil, err
	}
	return places, nil
}

// eachFeature streams a newline-delimited GeoJSON file.
func eachFeature(path string, fn func(*geojson.Feature)) error {
	file, err := os.Open(path)
	if err != nil {
		return eris.Wrapf(err, "ingest: open dataset %s", path)
	}
	defer func() { _ = file.Close() }()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64*1024), maxFeatureLine)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		raw := strings.TrimSpace(scanner.Text())
		if raw == "" {
			continue
		}
		f, err := geojson.UnmarshalFeature([]byte(raw))
		if err != nil {
			return eris.Wrapf(err, "ingest: parse feature at %s:%d", path, lineNo)
		}
		fn(f)
	}
	return eris.Wrapf(scanner.Err(), "ingest: read dataset %s", path)
}

// featureID returns the feature's global id from its id member or "id"
// property.
func featureID(f *geojson.Feature) string {
	switch v := f.ID.(type) {
	case string:
		if v != "" {
			return v
		}
	case float64:
		return fmt.Sprintf("%.0f", v)
	}
	return f.Properties.MustString("id", "")
}

// parseConnectors decodes the segment's connector list from its decoded
// JSON form: a list of {connector_id, at} objects.
func parseConnectors(raw any) []SegmentConnector {
	items, ok := raw.([]any)
	if !ok {
		return nil
	}
	conns := make([]SegmentConnector, 0, len(items))
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		id, _ := m["connector_id"].(string)
		at, ok := m["at"].(float64)
		if id == "" || !ok || at < 0 || at > 1 {
			continue
		}
		conns = append(conns, SegmentConnector{ID: id, At: at})
	}
	return conns
}
