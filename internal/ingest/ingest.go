package ingest

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"github.com/rotisserie/eris"
	h3 "github.com/uber/h3-go/v4"
	"go.uber.org/zap"

	"github.com/rustbelt-games/atlas/internal/hexgrid"
	"github.com/rustbelt-games/atlas/internal/store"
)

// Options configures one ingestion run.
type Options struct {
	RegionID   string
	RegionName string
	Bound      orb.Bound

	Resolution int // H3 resolution (default 7)
	BatchSize  int // row chunk size for bulk writes (default 1000)
	HexTypeCap int // kept buildings per hex per resource type (default 5)

	SegmentsPath  string
	BuildingsPath string
	PlacesPath    string
	LandShapefile string // optional

	HubCloseWeight float64
	HubSizeWeight  float64
}

// Counts summarizes what a run wrote, persisted on the run record.
type Counts struct {
	HexCells       int   `json:"hex_cells"`
	Roads          int   `json:"roads"`
	Buildings      int   `json:"buildings"`
	Places         int   `json:"places"`
	PrunedFeatures int64 `json:"pruned_features"`
	PrunedCells    int64 `json:"pruned_cells"`
	HealthSeeded   int64 `json:"health_seeded"`
	Hubs           int   `json:"hubs"`
	Connectors     int   `json:"connectors"`
	Edges          int   `json:"edges"`
}

// Run executes the full ingestion pipeline for one region. Phases run in
// order — coverage, roads, buildings, pruning, land-ratio, health-seed,
// hub-assignment, graph-build — and a phase failure aborts the run. Every
// write is an upsert or delete-then-insert keyed by stable ids, so
// re-running after a failure is always safe.
func Run(ctx context.Context, st store.Store, opts Options) error {
	if opts.Resolution <= 0 {
		opts.Resolution = 7
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 1000
	}
	if opts.HexTypeCap <= 0 {
		opts.HexTypeCap = 5
	}
	if opts.HubCloseWeight == 0 && opts.HubSizeWeight == 0 {
		opts.HubCloseWeight, opts.HubSizeWeight = 0.7, 0.3
	}

	log := zap.L().With(
		zap.String("component", "ingest"),
		zap.String("region", opts.RegionID),
	)

	run := &store.IngestRun{
		ID:        uuid.New(),
		RegionID:  opts.RegionID,
		Status:    store.RunStatusRunning,
		StartedAt: time.Now().UTC(),
	}
	if err := st.CreateIngestRun(ctx, run); err != nil {
		return err
	}

	counts, err := runPhases(ctx, st, opts, log)

	status := store.RunStatusDone
	if err != nil {
		status = store.RunStatusFailed
	}
	countsJSON, _ := json.Marshal(counts)
	if finErr := st.FinishIngestRun(ctx, run.ID, status, countsJSON); finErr != nil {
		log.Warn("failed to finalize ingest run", zap.Error(finErr))
	}

	if err != nil {
		return eris.Wrapf(err, "ingest: run %s for region %s", run.ID, opts.RegionID)
	}
	log.Info("ingest run complete",
		zap.String("run", run.ID.String()),
		zap.Int("roads", counts.Roads),
		zap.Int("buildings", counts.Buildings),
		zap.Int("connectors", counts.Connectors),
		zap.Int("edges", counts.Edges),
	)
	return nil
}

func runPhases(ctx context.Context, st store.Store, opts Options, log *zap.Logger) (*Counts, error) {
	counts := &Counts{}

	// Phase: coverage.
	cov, err := hexgrid.CoverBound(opts.Bound, opts.Resolution)
	if err != nil {
		return counts, err
	}
	region, err := upsertCoverage(ctx, st, opts, cov)
	if err != nil {
		return counts, err
	}
	counts.HexCells = len(cov.Cells)
	log.Info("coverage computed", zap.Int("cells", len(cov.Cells)))

	// Phase: roads.
	retained, err := ingestRoads(ctx, st, opts, cov, counts)
	if err != nil {
		return counts, err
	}
	log.Info("roads ingested", zap.Int("retained", counts.Roads))

	// Phase: buildings (and the places that classify them).
	if err := ingestBuildings(ctx, st, opts, cov, counts); err != nil {
		return counts, err
	}
	log.Info("buildings ingested",
		zap.Int("buildings", counts.Buildings),
		zap.Int("places", counts.Places),
	)

	// Phase: pruning.
	counts.PrunedFeatures, counts.PrunedCells, err = st.PruneOrphans(ctx, opts.RegionID)
	if err != nil {
		return counts, err
	}
	log.Info("orphans pruned",
		zap.Int64("features", counts.PrunedFeatures),
		zap.Int64("cells", counts.PrunedCells),
	)

	// Phase: land ratio + distance from center.
	if err := updateHexMetrics(ctx, st, opts, cov, region); err != nil {
		return counts, err
	}

	// Phase: health seed. Only newly created road features get a value;
	// live health belongs to the simulation tick.
	counts.HealthSeeded, err = st.SeedSegmentHealth(ctx, opts.RegionID)
	if err != nil {
		return counts, err
	}

	// Phase: hub assignment.
	counts.Hubs, err = AssignHubs(ctx, st, opts.RegionID, opts.HubCloseWeight, opts.HubSizeWeight)
	if err != nil {
		return counts, err
	}

	// Phase: graph build, over post-prune segments only.
	conns, edges := BuildGraph(retained, opts.RegionID, opts.Resolution)
	if err := st.DeleteRegionGraph(ctx, opts.RegionID); err != nil {
		return counts, err
	}
	for start := 0; start < len(conns); start += opts.BatchSize {
		if _, err := st.InsertConnectors(ctx, conns[start:min(start+opts.BatchSize, len(conns))]); err != nil {
			return counts, err
		}
	}
	for start := 0; start < len(edges); start += opts.BatchSize {
		if _, err := st.UpsertEdges(ctx, edges[start:min(start+opts.BatchSize, len(edges))]); err != nil {
			return counts, err
		}
	}
	counts.Connectors = len(conns)
	counts.Edges = len(edges)

	return counts, nil
}

// upsertCoverage persists the region boundary and its hex cells, and
// returns the region with its server-computed centroid.
func upsertCoverage(ctx context.Context, st store.Store, opts Options, cov *hexgrid.Coverage) (*store.Region, error) {
	if err := st.UpsertRegion(ctx, &store.Region{
		ID:          opts.RegionID,
		Name:        opts.RegionName,
		MinLng:      opts.Bound.Min.Lon(),
		MinLat:      opts.Bound.Min.Lat(),
		MaxLng:      opts.Bound.Max.Lon(),
		MaxLat:      opts.Bound.Max.Lat(),
		BoundaryWKT: cov.PolygonWKT,
	}); err != nil {
		return nil, err
	}

	region, err := st.GetRegion(ctx, opts.RegionID)
	if err != nil {
		return nil, err
	}
	if region == nil {
		return nil, eris.Errorf("ingest: region %s missing after upsert", opts.RegionID)
	}

	centroid := orb.Point{region.CentroidLng, region.CentroidLat}
	cells := make([]store.HexCell, 0, len(cov.Cells))
	for _, c := range cov.Cells {
		cells = append(cells, store.HexCell{
			HexID:       c.String(),
			RegionID:    opts.RegionID,
			DistCenterM: hexDistCenter(c, centroid),
		})
	}
	for start := 0; start < len(cells); start += opts.BatchSize {
		if _, err := st.BulkUpsertHexCells(ctx, cells[start:min(start+opts.BatchSize, len(cells))]); err != nil {
			return nil, err
		}
	}
	return region, nil
}

// ingestRoads upserts contained road segments and returns the retained set
// for the later graph-build phase.
func ingestRoads(ctx context.Context, st store.Store, opts Options, cov *hexgrid.Coverage, counts *Counts) ([]Segment, error) {
	segs, err := ReadSegments(opts.SegmentsPath, cov.Bound)
	if err != nil {
		return nil, err
	}

	var retained []Segment
	var batch []store.WorldFeature
	hexesByFeature := make(map[string][]string)

	for _, seg := range segs {
		cells := hexgrid.CellsForBound(seg.Bound, opts.Resolution)
		if !cov.ContainsAll(cells) {
			continue
		}

		class := seg.Class
		batch = append(batch, store.WorldFeature{
			ID:          seg.ID,
			FeatureType: store.FeatureRoad,
			RegionID:    opts.RegionID,
			MinLng:      seg.Bound.Min.Lon(),
			MinLat:      seg.Bound.Min.Lat(),
			MaxLng:      seg.Bound.Max.Lon(),
			MaxLat:      seg.Bound.Max.Lat(),
			RoadClass:   &class,
		})
		hexesByFeature[seg.ID] = cellStrings(cells)
		retained = append(retained, seg)

		if len(batch) >= opts.BatchSize {
			if err := flushFeatures(ctx, st, batch, hexesByFeature); err != nil {
				return nil, err
			}
			batch = batch[:0]
		}
	}
	if err := flushFeatures(ctx, st, batch, hexesByFeature); err != nil {
		return nil, err
	}

	counts.Roads = len(retained)
	return retained, nil
}

// ingestBuildings classifies, caps, and upserts contained buildings, plus
// the contained places used for classification.
func ingestBuildings(ctx context.Context, st store.Store, opts Options, cov *hexgrid.Coverage, counts *Counts) error {
	places, err := ReadPlaces(opts.PlacesPath, cov.Bound)
	if err != nil {
		return err
	}
	buildings, err := ReadBuildings(opts.BuildingsPath, cov.Bound)
	if err != nil {
		return err
	}

	// Persist contained places as world features.
	var placeBatch []store.WorldFeature
	placeHexes := make(map[string][]string)
	placesByCell := make(map[h3.Cell][]Place)
	for _, p := range places {
		cell := hexgrid.CellForPoint(p.Point, opts.Resolution)
		if !cov.ContainsCell(cell) {
			continue
		}
		placesByCell[cell] = append(placesByCell[cell], p)
		placeBatch = append(placeBatch, store.WorldFeature{
			ID:          p.ID,
			FeatureType: store.FeaturePlace,
			RegionID:    opts.RegionID,
			MinLng:      p.Point.Lon(),
			MinLat:      p.Point.Lat(),
			MaxLng:      p.Point.Lon(),
			MaxLat:      p.Point.Lat(),
		})
		placeHexes[p.ID] = []string{cell.String()}
		counts.Places++

		if len(placeBatch) >= opts.BatchSize {
			if err := flushFeatures(ctx, st, placeBatch, placeHexes); err != nil {
				return err
			}
			placeBatch = placeBatch[:0]
		}
	}
	if err := flushFeatures(ctx, st, placeBatch, placeHexes); err != nil {
		return err
	}

	// Pass 1: containment filter and category classification, tallying
	// matched types.
	balancer := newResourceBalancer()
	var cands []candidate
	for _, b := range buildings {
		cells := hexgrid.CellsForBound(b.Bound, opts.Resolution)
		if !cov.ContainsAll(cells) {
			continue
		}

		resType, ok := classifyBuilding(b, placeCategoriesFor(b, cells, placesByCell))
		if ok {
			balancer.observe(resType)
		}
		cands = append(cands, candidate{
			building:   b,
			hexIDs:     cellStrings(cells),
			resType:    resType,
			catMatched: ok,
		})
	}

	// Pass 2: fairness fallback for the unmatched.
	for i := range cands {
		if !cands[i].catMatched {
			cands[i].resType = balancer.fallback(cands[i].building.ID)
		}
	}

	kept := capByHexType(cands, opts.HexTypeCap)

	var batch []store.WorldFeature
	hexesByFeature := make(map[string][]string)
	for _, c := range kept {
		resType := c.resType
		batch = append(batch, store.WorldFeature{
			ID:           c.building.ID,
			FeatureType:  store.FeatureBuilding,
			RegionID:     opts.RegionID,
			MinLng:       c.building.Bound.Min.Lon(),
			MinLat:       c.building.Bound.Min.Lat(),
			MaxLng:       c.building.Bound.Max.Lon(),
			MaxLat:       c.building.Bound.Max.Lat(),
			ResourceType: &resType,
			AreaSqM:      c.building.AreaSqM,
		})
		hexesByFeature[c.building.ID] = c.hexIDs

		if len(batch) >= opts.BatchSize {
			if err := flushFeatures(ctx, st, batch, hexesByFeature); err != nil {
				return err
			}
			batch = batch[:0]
		}
	}
	if err := flushFeatures(ctx, st, batch, hexesByFeature); err != nil {
		return err
	}

	counts.Buildings = len(kept)
	return nil
}

// placeCategoriesFor collects the categories of places inside a building's
// extent, looked up via the hexes the building touches.
func placeCategoriesFor(b Building, cells []h3.Cell, placesByCell map[h3.Cell][]Place) []string {
	var cats []string
	for _, cell := range cells {
		for _, p := range placesByCell[cell] {
			if b.Bound.Contains(p.Point) && p.Category != "" {
				cats = append(cats, p.Category)
			}
		}
	}
	return cats
}

// updateHexMetrics recomputes land ratio and distance-from-center per hex.
func updateHexMetrics(ctx context.Context, st store.Store, opts Options, cov *hexgrid.Coverage, region *store.Region) error {
	var land []LandPolygon
	if opts.LandShapefile != "" {
		var err error
		land, err = ReadLandPolygons(opts.LandShapefile, cov.Bound)
		if err != nil {
			return err
		}
	}
	ratios := ComputeLandRatios(cov.Cells, land)

	centroid := orb.Point{region.CentroidLng, region.CentroidLat}
	cells := make([]store.HexCell, 0, len(cov.Cells))
	for _, c := range cov.Cells {
		cells = append(cells, store.HexCell{
			HexID:       c.String(),
			RegionID:    opts.RegionID,
			LandRatio:   ratios[c.String()],
			DistCenterM: hexDistCenter(c, centroid),
		})
	}
	for start := 0; start < len(cells); start += opts.BatchSize {
		if err := st.UpdateHexMetrics(ctx, cells[start:min(start+opts.BatchSize, len(cells))]); err != nil {
			return err
		}
	}
	return nil
}

func flushFeatures(ctx context.Context, st store.Store, batch []store.WorldFeature, hexesByFeature map[string][]string) error {
	if len(batch) == 0 {
		return nil
	}
	if _, err := st.BulkUpsertFeatures(ctx, batch); err != nil {
		return err
	}
	for _, f := range batch {
		if err := st.ReplaceFeatureHexes(ctx, f.ID, hexesByFeature[f.ID]); err != nil {
			return err
		}
	}
	return nil
}

func hexDistCenter(c h3.Cell, centroid orb.Point) float64 {
	center := hexgrid.CellCenter(c)
	return h3.GreatCircleDistanceM(
		h3.NewLatLng(center.Lat(), center.Lon()),
		h3.NewLatLng(centroid.Lat(), centroid.Lon()),
	)
}

func cellStrings(cells []h3.Cell) []string {
	out := make([]string, 0, len(cells))
	for _, c := range cells {
		out = append(out, c.String())
	}
	return out
}
