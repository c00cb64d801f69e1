package ingest

import (
	"github.com/jonas-p/go-shp"
	"github.com/paulmach/orb"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// LandPolygon is one land-mass ring read from the land shapefile.
type LandPolygon struct {
	Ring  orb.Ring
	Bound orb.Bound
}

// ReadLandPolygons reads land polygons from a shapefile, keeping only
// rings whose extent overlaps the bound. The land layer feeds the per-hex
// land-ratio phase; water is simply the absence of land.
func ReadLandPolygons(path string, bound orb.Bound) ([]LandPolygon, error) {
	reader, err := shp.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "ingest: open land shapefile %s", path)
	}
	defer func() { _ = reader.Close() }()

	var polys []LandPolygon
	skipped := 0

	for reader.Next() {
		_, shape := reader.Shape()
		poly, ok := shape.(*shp.Polygon)
		if !ok || poly.NumParts == 0 || len(poly.Points) == 0 {
			skipped++
			continue
		}

		for i := int32(0); i < poly.NumParts; i++ {
			start := poly.Parts[i]
			end := int32(len(poly.Points))
			if i+1 < poly.NumParts {
				end = poly.Parts[i+1]
			}
			if end-start < 3 {
				skipped++
				continue
			}

			ring := make(orb.Ring, 0, end-start)
			for j := start; j < end; j++ {
				ring = append(ring, orb.Point{poly.Points[j].X, poly.Points[j].Y})
			}
			b := ring.Bound()
			if !b.Intersects(bound) {
				continue
			}
			polys = append(polys, LandPolygon{Ring: ring, Bound: b})
		}
	}

	if skipped > 0 {
		zap.L().Debug("ingest: skipped land shapefile records", zap.Int("skipped", skipped))
	}
	return polys, nil
}
