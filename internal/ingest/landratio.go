package ingest

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	h3 "github.com/uber/h3-go/v4"

	"github.com/rustbelt-games/atlas/internal/hexgrid"
)

// ComputeLandRatios estimates, per hex, the fraction of the cell covered
// by land polygons, in [0,1]. Overlap is approximated by bounding-box
// intersection area; exact polygon clipping is not worth the cost for a
// spawn-steering ratio.
func ComputeLandRatios(cells []h3.Cell, land []LandPolygon) map[string]float64 {
	ratios := make(map[string]float64, len(cells))
	for _, cell := range cells {
		hexBound := hexgrid.CellBound(cell)
		hexArea := geo.Area(hexBound)
		if hexArea <= 0 {
			ratios[cell.String()] = 0
			continue
		}

		covered := 0.0
		for _, lp := range land {
			covered += boundOverlapArea(hexBound, lp.Bound)
		}
		ratios[cell.String()] = math.Min(covered/hexArea, 1.0)
	}
	return ratios
}

// boundOverlapArea returns the geodesic area of the intersection of two
// bounding boxes, zero when disjoint.
func boundOverlapArea(a, b orb.Bound) float64 {
	minLng := math.Max(a.Min.Lon(), b.Min.Lon())
	minLat := math.Max(a.Min.Lat(), b.Min.Lat())
	maxLng := math.Min(a.Max.Lon(), b.Max.Lon())
	maxLat := math.Min(a.Max.Lat(), b.Max.Lat())
	if minLng >= maxLng || minLat >= maxLat {
		return 0
	}
	return geo.Area(orb.Bound{
		Min: orb.Point{minLng, minLat},
		Max: orb.Point{maxLng, maxLat},
	})
}
