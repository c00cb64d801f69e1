// Package hexgrid computes the H3 hex coverage of a region bounding box.
// The coverage cell set bounds ingestion, and the union of the cells is the
// authoritative region boundary every downstream containment filter uses.
package hexgrid

import (
	"sort"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/wkt"
	h3 "github.com/uber/h3-go/v4"
)

// Coverage is the hex-cell set covering a bounding box plus the WKT of
// their union. When the box is too small to seed any cell, PolygonWKT
// falls back to the raw box so containment filters are never vacuously
// false.
type Coverage struct {
	Bound      orb.Bound
	Resolution int
	Cells      []h3.Cell
	PolygonWKT string

	cellSet map[h3.Cell]struct{}
}

// CoverBound computes the coverage for a bounding box at the given H3
// resolution. Seeds with cells whose centers fall inside the box, expands
// each seed by its immediate neighbor ring (a box can be straddled by a
// hex whose center lies outside it), then keeps only candidates whose own
// extent overlaps the box.
func CoverBound(bound orb.Bound, resolution int) (*Coverage, error) {
	if bound.Min.Lon() >= bound.Max.Lon() || bound.Min.Lat() >= bound.Max.Lat() {
		return nil, eris.Errorf("hexgrid: degenerate bound %v", bound)
	}

	seeds := h3.PolygonToCells(boundGeoPolygon(bound), resolution)

	candidates := make(map[h3.Cell]struct{}, len(seeds)*2)
	for _, seed := range seeds {
		for _, c := range h3.GridDisk(seed, 1) {
			candidates[c] = struct{}{}
		}
	}

	var cells []h3.Cell
	for c := range candidates {
		if cellOverlapsBound(c, bound) {
			cells = append(cells, c)
		}
	}
	sort.Slice(cells, func(i, j int) bool { return cells[i] < cells[j] })

	polyWKT, err := unionWKT(cells, bound)
	if err != nil {
		return nil, err
	}

	cov := &Coverage{
		Bound:      bound,
		Resolution: resolution,
		Cells:      cells,
		PolygonWKT: polyWKT,
		cellSet:    make(map[h3.Cell]struct{}, len(cells)),
	}
	for _, c := range cells {
		cov.cellSet[c] = struct{}{}
	}
	return cov, nil
}

// ContainsCell reports whether a cell belongs to the coverage.
func (c *Coverage) ContainsCell(cell h3.Cell) bool {
	_, ok := c.cellSet[cell]
	return ok
}

// ContainsAll reports whether every given cell belongs to the coverage.
// An empty input does not count as contained.
func (c *Coverage) ContainsAll(cells []h3.Cell) bool {
	if len(cells) == 0 {
		return false
	}
	for _, cell := range cells {
		if !c.ContainsCell(cell) {
			return false
		}
	}
	return true
}

// CellsForBound returns the coverage-resolution cells a bounding box
// touches, using the same seed-expand-filter walk as CoverBound. A box
// smaller than a cell produces no seeds, so the center's cell is always
// seeded too; every seed is ring-expanded before the overlap filter, or
// a sub-cell box straddling a cell edge would miss the neighbor. Falls
// back to the single cell of the bound's center when the walk finds none.
func CellsForBound(bound orb.Bound, resolution int) []h3.Cell {
	seeds := h3.PolygonToCells(boundGeoPolygon(bound), resolution)

	candidates := make(map[h3.Cell]struct{}, len(seeds)*2)
	center := bound.Center()
	for _, c := range h3.GridDisk(CellForPoint(center, resolution), 1) {
		candidates[c] = struct{}{}
	}
	for _, seed := range seeds {
		for _, c := range h3.GridDisk(seed, 1) {
			candidates[c] = struct{}{}
		}
	}

	var cells []h3.Cell
	for c := range candidates {
		if cellOverlapsBound(c, bound) {
			cells = append(cells, c)
		}
	}
	if len(cells) == 0 {
		cells = []h3.Cell{CellForPoint(center, resolution)}
	}
	sort.Slice(cells, func(i, j int) bool { return cells[i] < cells[j] })
	return cells
}

// CellForPoint returns the cell containing a point.
func CellForPoint(pt orb.Point, resolution int) h3.Cell {
	return h3.LatLngToCell(h3.NewLatLng(pt.Lat(), pt.Lon()), resolution)
}

// CellFromString parses the canonical hex-string form of a cell id.
func CellFromString(s string) h3.Cell {
	return h3.Cell(h3.IndexFromString(s))
}

// CellCenter returns a cell's center point.
func CellCenter(c h3.Cell) orb.Point {
	ll := h3.CellToLatLng(c)
	return orb.Point{ll.Lng, ll.Lat}
}

// CellPolygon returns a cell's boundary as a closed orb polygon.
func CellPolygon(c h3.Cell) orb.Polygon {
	boundary := h3.CellToBoundary(c)
	ring := make(orb.Ring, 0, len(boundary)+1)
	for _, ll := range boundary {
		ring = append(ring, orb.Point{ll.Lng, ll.Lat})
	}
	if len(ring) > 0 {
		ring = append(ring, ring[0])
	}
	return orb.Polygon{ring}
}

// CellBound returns a cell's bounding box.
func CellBound(c h3.Cell) orb.Bound {
	return CellPolygon(c).Bound()
}

// boundGeoPolygon converts a box to the H3 polygon form PolygonToCells wants.
func boundGeoPolygon(bound orb.Bound) h3.GeoPolygon {
	loop := h3.GeoLoop{
		h3.NewLatLng(bound.Min.Lat(), bound.Min.Lon()),
		h3.NewLatLng(bound.Min.Lat(), bound.Max.Lon()),
		h3.NewLatLng(bound.Max.Lat(), bound.Max.Lon()),
		h3.NewLatLng(bound.Max.Lat(), bound.Min.Lon()),
	}
	return h3.GeoPolygon{GeoLoop: loop}
}

// cellOverlapsBound reports whether a cell's hexagon overlaps a box.
// Convex-vs-box: overlap implies a hex vertex inside the box, a box
// corner inside the hex, or one shape's center inside the other.
func cellOverlapsBound(c h3.Cell, bound orb.Bound) bool {
	poly := CellPolygon(c)
	if !poly.Bound().Intersects(bound) {
		return false
	}
	for _, pt := range poly[0] {
		if bound.Contains(pt) {
			return true
		}
	}
	corners := []orb.Point{
		bound.Min,
		{bound.Max.Lon(), bound.Min.Lat()},
		bound.Max,
		{bound.Min.Lon(), bound.Max.Lat()},
		bound.Center(),
	}
	for _, pt := range corners {
		if planar.PolygonContains(poly, pt) {
			return true
		}
	}
	return bound.Contains(CellCenter(c))
}

// unionWKT renders the cell set as a MultiPolygon WKT. The store dissolves
// shared cell edges server-side; an empty cell set degrades to the raw box.
func unionWKT(cells []h3.Cell, bound orb.Bound) (string, error) {
	mp := geom.NewMultiPolygon(geom.XY)

	if len(cells) == 0 {
		ring := []geom.Coord{
			{bound.Min.Lon(), bound.Min.Lat()},
			{bound.Max.Lon(), bound.Min.Lat()},
			{bound.Max.Lon(), bound.Max.Lat()},
			{bound.Min.Lon(), bound.Max.Lat()},
			{bound.Min.Lon(), bound.Min.Lat()},
		}
		poly := geom.NewPolygon(geom.XY)
		if _, err := poly.SetCoords([][]geom.Coord{ring}); err != nil {
			return "", eris.Wrap(err, "hexgrid: build fallback box polygon")
		}
		if err := mp.Push(poly); err != nil {
			return "", eris.Wrap(err, "hexgrid: push fallback box polygon")
		}
	}

	for _, c := range cells {
		hex := CellPolygon(c)
		ring := make([]geom.Coord, 0, len(hex[0]))
		for _, pt := range hex[0] {
			ring = append(ring, geom.Coord{pt.Lon(), pt.Lat()})
		}
		poly := geom.NewPolygon(geom.XY)
		if _, err := poly.SetCoords([][]geom.Coord{ring}); err != nil {
			return "", eris.Wrapf(err, "hexgrid: build cell polygon %s", c.String())
		}
		if err := mp.Push(poly); err != nil {
			return "", eris.Wrapf(err, "hexgrid: push cell polygon %s", c.String())
		}
	}

	s, err := wkt.Marshal(mp)
	if err != nil {
		return "", eris.Wrap(err, "hexgrid: marshal coverage WKT")
	}
	return s, nil
}
