package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/rustbelt-games/atlas/internal/db"
)

// PostgresStore implements Store using a Postgres connection pool with PostGIS.
type PostgresStore struct {
	pool db.Pool
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// UpsertRegion implements Store. The boundary arrives as a MultiPolygon WKT
// of raw hex cells; ST_UnaryUnion dissolves the shared cell edges so the
// persisted boundary is a clean coverage polygon.
func (s *PostgresStore) UpsertRegion(ctx context.Context, r *Region) error {
	sql := `
		INSERT INTO atlas.regions (id, name, min_lng, min_lat, max_lng, max_lat, boundary, centroid)
		VALUES ($1, $2, $3, $4, $5, $6,
			ST_Multi(ST_UnaryUnion(ST_GeomFromText($7, 4326))),
			ST_Centroid(ST_GeomFromText($7, 4326)))
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			min_lng = EXCLUDED.min_lng,
			min_lat = EXCLUDED.min_lat,
			max_lng = EXCLUDED.max_lng,
			max_lat = EXCLUDED.max_lat,
			boundary = EXCLUDED.boundary,
			centroid = EXCLUDED.centroid,
			updated_at = now()
	`
	_, err := s.pool.Exec(ctx, sql,
		r.ID, r.Name, r.MinLng, r.MinLat, r.MaxLng, r.MaxLat, r.BoundaryWKT,
	)
	return eris.Wrap(err, "store: upsert region")
}

// GetRegion implements Store.
func (s *PostgresStore) GetRegion(ctx context.Context, id string) (*Region, error) {
	sql := `
		SELECT id, name, min_lng, min_lat, max_lng, max_lat,
		       ST_AsText(boundary), ST_X(centroid), ST_Y(centroid),
		       created_at, updated_at
		FROM atlas.regions WHERE id = $1
	`
	var r Region
	err := s.pool.QueryRow(ctx, sql, id).Scan(
		&r.ID, &r.Name, &r.MinLng, &r.MinLat, &r.MaxLng, &r.MaxLat,
		&r.BoundaryWKT, &r.CentroidLng, &r.CentroidLat,
		&r.CreatedAt, &r.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "store: get region")
	}
	return &r, nil
}

// BulkUpsertHexCells implements Store. Hub links are untouched here; hub
// assignment owns them.
func (s *PostgresStore) BulkUpsertHexCells(ctx context.Context, cells []HexCell) (int64, error) {
	rows := make([][]any, 0, len(cells))
	for _, c := range cells {
		rows = append(rows, []any{c.HexID, c.RegionID, c.LandRatio, c.DistCenterM})
	}
	n, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "atlas.hex_cells",
		Columns:      []string{"hex_id", "region_id", "land_ratio", "dist_center_m"},
		ConflictKeys: []string{"hex_id"},
	}, rows)
	return n, eris.Wrap(err, "store: upsert hex cells")
}

// UpdateHexMetrics implements Store.
func (s *PostgresStore) UpdateHexMetrics(ctx context.Context, cells []HexCell) error {
	sql := `UPDATE atlas.hex_cells SET land_ratio = $2, dist_center_m = $3 WHERE hex_id = $1`
	for _, c := range cells {
		if _, err := s.pool.Exec(ctx, sql, c.HexID, c.LandRatio, c.DistCenterM); err != nil {
			return eris.Wrapf(err, "store: update hex metrics %s", c.HexID)
		}
	}
	return nil
}

// BulkUpsertFeatures implements Store. Health is deliberately not an update
// column: re-ingesting must never clobber the simulation's live values.
func (s *PostgresStore) BulkUpsertFeatures(ctx context.Context, feats []WorldFeature) (int64, error) {
	rows := make([][]any, 0, len(feats))
	for _, f := range feats {
		rows = append(rows, []any{
			f.ID, f.FeatureType, f.RegionID,
			f.MinLng, f.MinLat, f.MaxLng, f.MaxLat,
			f.RoadClass, f.ResourceType, f.AreaSqM,
		})
	}
	n, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table: "atlas.world_features",
		Columns: []string{
			"id", "feature_type", "region_id",
			"min_lng", "min_lat", "max_lng", "max_lat",
			"road_class", "resource_type", "area_sq_m",
		},
		ConflictKeys: []string{"id"},
	}, rows)
	return n, eris.Wrap(err, "store: upsert features")
}

// ReplaceFeatureHexes implements Store. The delete guarantees the COPY
// never collides: hex ids are unique within one feature's assignment.
func (s *PostgresStore) ReplaceFeatureHexes(ctx context.Context, featureID string, hexIDs []string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "store: replace feature hexes: begin tx")
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM atlas.feature_hexes WHERE feature_id = $1`, featureID); err != nil {
		return eris.Wrapf(err, "store: delete feature hexes %s", featureID)
	}

	rows := make([][]any, 0, len(hexIDs))
	for _, hexID := range hexIDs {
		rows = append(rows, []any{featureID, hexID})
	}
	if _, err := db.CopyFromSchema(ctx, tx, "atlas", "feature_hexes", []string{"feature_id", "hex_id"}, rows); err != nil {
		return eris.Wrapf(err, "store: insert feature hexes %s", featureID)
	}
	return eris.Wrap(tx.Commit(ctx), "store: replace feature hexes: commit")
}

// PruneOrphans implements Store.
func (s *PostgresStore) PruneOrphans(ctx context.Context, regionID string) (int64, int64, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, 0, eris.Wrap(err, "store: prune: begin tx")
	}
	defer tx.Rollback(ctx)

	featTag, err := tx.Exec(ctx, `
		DELETE FROM atlas.world_features f
		WHERE f.region_id = $1
		  AND NOT EXISTS (SELECT 1 FROM atlas.feature_hexes fh WHERE fh.feature_id = f.id)
	`, regionID)
	if err != nil {
		return 0, 0, eris.Wrap(err, "store: prune orphan features")
	}

	cellTag, err := tx.Exec(ctx, `
		DELETE FROM atlas.hex_cells h
		WHERE h.region_id = $1
		  AND NOT EXISTS (SELECT 1 FROM atlas.feature_hexes fh WHERE fh.hex_id = h.hex_id)
	`, regionID)
	if err != nil {
		return 0, 0, eris.Wrap(err, "store: prune empty hex cells")
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, 0, eris.Wrap(err, "store: prune: commit")
	}
	return featTag.RowsAffected(), cellTag.RowsAffected(), nil
}

// SeedSegmentHealth implements Store.
func (s *PostgresStore) SeedSegmentHealth(ctx context.Context, regionID string) (int64, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE atlas.world_features
		SET health = 100
		WHERE region_id = $1 AND feature_type = 'road' AND health IS NULL
	`, regionID)
	if err != nil {
		return 0, eris.Wrap(err, "store: seed segment health")
	}
	return tag.RowsAffected(), nil
}

// ListHexBuildings implements Store.
func (s *PostgresStore) ListHexBuildings(ctx context.Context, regionID string) ([]HexBuilding, error) {
	sql := `
		SELECT f.id, fh.hex_id,
		       (f.min_lng + f.max_lng) / 2, (f.min_lat + f.max_lat) / 2,
		       f.area_sq_m, f.resource_type
		FROM atlas.world_features f
		JOIN atlas.feature_hexes fh ON fh.feature_id = f.id
		WHERE f.region_id = $1 AND f.feature_type = 'building'
		ORDER BY fh.hex_id, f.id
	`
	rows, err := s.pool.Query(ctx, sql, regionID)
	if err != nil {
		return nil, eris.Wrap(err, "store: list hex buildings")
	}
	defer rows.Close()

	var out []HexBuilding
	for rows.Next() {
		var b HexBuilding
		if err := rows.Scan(&b.FeatureID, &b.HexID, &b.CenterLng, &b.CenterLat, &b.AreaSqM, &b.ResourceType); err != nil {
			return nil, eris.Wrap(err, "store: scan hex building")
		}
		out = append(out, b)
	}
	return out, eris.Wrap(rows.Err(), "store: iterate hex buildings")
}

// ClearHubs implements Store.
func (s *PostgresStore) ClearHubs(ctx context.Context, regionID string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "store: clear hubs: begin tx")
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`UPDATE atlas.hex_cells SET hub_feature_id = NULL WHERE region_id = $1`, regionID,
	); err != nil {
		return eris.Wrap(err, "store: clear hex hub links")
	}
	if _, err := tx.Exec(ctx,
		`UPDATE atlas.world_features SET is_hub = false WHERE region_id = $1 AND is_hub`, regionID,
	); err != nil {
		return eris.Wrap(err, "store: clear hub flags")
	}
	return eris.Wrap(tx.Commit(ctx), "store: clear hubs: commit")
}

// SetHub implements Store.
func (s *PostgresStore) SetHub(ctx context.Context, hexID, featureID string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "store: set hub: begin tx")
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`UPDATE atlas.hex_cells SET hub_feature_id = $2 WHERE hex_id = $1`, hexID, featureID,
	); err != nil {
		return eris.Wrapf(err, "store: set hub link %s", hexID)
	}
	if _, err := tx.Exec(ctx,
		`UPDATE atlas.world_features SET is_hub = true WHERE id = $1`, featureID,
	); err != nil {
		return eris.Wrapf(err, "store: set hub flag %s", featureID)
	}
	return eris.Wrap(tx.Commit(ctx), "store: set hub: commit")
}

// DeleteRegionGraph implements Store.
func (s *PostgresStore) DeleteRegionGraph(ctx context.Context, regionID string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "store: delete graph: begin tx")
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `
		DELETE FROM atlas.road_edges e
		USING atlas.road_connectors c
		WHERE e.from_connector = c.id AND c.region_id = $1
	`, regionID); err != nil {
		return eris.Wrap(err, "store: delete region edges")
	}
	if _, err := tx.Exec(ctx,
		`DELETE FROM atlas.road_connectors WHERE region_id = $1`, regionID,
	); err != nil {
		return eris.Wrap(err, "store: delete region connectors")
	}
	return eris.Wrap(tx.Commit(ctx), "store: delete graph: commit")
}

// InsertConnectors implements Store. ON CONFLICT DO NOTHING enforces the
// first-writer-wins identity rule at the storage boundary too.
func (s *PostgresStore) InsertConnectors(ctx context.Context, conns []Connector) (int64, error) {
	rows := make([][]any, 0, len(conns))
	for _, c := range conns {
		rows = append(rows, []any{c.ID, c.RegionID, c.Lng, c.Lat, c.HexID})
	}
	n, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "atlas.road_connectors",
		Columns:      []string{"id", "region_id", "lng", "lat", "hex_id"},
		ConflictKeys: []string{"id"},
		UpdateCols:   []string{},
	}, rows)
	return n, eris.Wrap(err, "store: insert connectors")
}

// UpsertEdges implements Store.
func (s *PostgresStore) UpsertEdges(ctx context.Context, edges []Edge) (int64, error) {
	rows := make([][]any, 0, len(edges))
	for _, e := range edges {
		rows = append(rows, []any{e.SegmentID, e.FromConnector, e.ToConnector, e.LengthM, e.HexID})
	}
	n, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "atlas.road_edges",
		Columns:      []string{"segment_id", "from_connector", "to_connector", "length_m", "hex_id"},
		ConflictKeys: []string{"segment_id", "from_connector", "to_connector"},
	}, rows)
	return n, eris.Wrap(err, "store: upsert edges")
}

// ListConnectors implements Store.
func (s *PostgresStore) ListConnectors(ctx context.Context, regionID string) ([]Connector, error) {
	sql := `SELECT id, region_id, lng, lat, hex_id FROM atlas.road_connectors WHERE region_id = $1`
	rows, err := s.pool.Query(ctx, sql, regionID)
	if err != nil {
		return nil, eris.Wrap(err, "store: list connectors")
	}
	defer rows.Close()

	var out []Connector
	for rows.Next() {
		var c Connector
		if err := rows.Scan(&c.ID, &c.RegionID, &c.Lng, &c.Lat, &c.HexID); err != nil {
			return nil, eris.Wrap(err, "store: scan connector")
		}
		out = append(out, c)
	}
	return out, eris.Wrap(rows.Err(), "store: iterate connectors")
}

// ListEdgesWithHealth implements Store.
func (s *PostgresStore) ListEdgesWithHealth(ctx context.Context, regionID string) ([]EdgeWithHealth, error) {
	sql := `
		SELECT e.segment_id, e.from_connector, e.to_connector, e.length_m, e.hex_id, f.health
		FROM atlas.road_edges e
		JOIN atlas.road_connectors c ON c.id = e.from_connector
		LEFT JOIN atlas.world_features f ON f.id = e.segment_id
		WHERE c.region_id = $1
	`
	rows, err := s.pool.Query(ctx, sql, regionID)
	if err != nil {
		return nil, eris.Wrap(err, "store: list edges")
	}
	defer rows.Close()

	var out []EdgeWithHealth
	for rows.Next() {
		var e EdgeWithHealth
		if err := rows.Scan(&e.SegmentID, &e.FromConnector, &e.ToConnector, &e.LengthM, &e.HexID, &e.Health); err != nil {
			return nil, eris.Wrap(err, "store: scan edge")
		}
		out = append(out, e)
	}
	return out, eris.Wrap(rows.Err(), "store: iterate edges")
}

// CreateIngestRun implements Store.
func (s *PostgresStore) CreateIngestRun(ctx context.Context, run *IngestRun) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO atlas.ingest_runs (id, region_id, status, started_at)
		VALUES ($1, $2, $3, $4)
	`, run.ID, run.RegionID, run.Status, run.StartedAt)
	return eris.Wrap(err, "store: create ingest run")
}

// FinishIngestRun implements Store.
func (s *PostgresStore) FinishIngestRun(ctx context.Context, id uuid.UUID, status string, counts []byte) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE atlas.ingest_runs SET status = $2, counts = $3, finished_at = now() WHERE id = $1
	`, id, status, counts)
	return eris.Wrap(err, "store: finish ingest run")
}

// LastIngestRun implements Store.
func (s *PostgresStore) LastIngestRun(ctx context.Context, regionID string) (*IngestRun, error) {
	sql := `
		SELECT id, region_id, status, counts, started_at, finished_at
		FROM atlas.ingest_runs
		WHERE region_id = $1
		ORDER BY started_at DESC
		LIMIT 1
	`
	var run IngestRun
	err := s.pool.QueryRow(ctx, sql, regionID).Scan(
		&run.ID, &run.RegionID, &run.Status, &run.Counts, &run.StartedAt, &run.FinishedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "store: last ingest run")
	}
	return &run, nil
}

// Stats implements Store.
func (s *PostgresStore) Stats(ctx context.Context, regionID string) (*RegionStats, error) {
	sql := `
		SELECT
			(SELECT count(*) FROM atlas.world_features WHERE region_id = $1),
			(SELECT count(*) FROM atlas.hex_cells WHERE region_id = $1),
			(SELECT count(*) FROM atlas.road_connectors WHERE region_id = $1),
			(SELECT count(*) FROM atlas.road_edges e JOIN atlas.road_connectors c ON c.id = e.from_connector WHERE c.region_id = $1),
			(SELECT count(*) FROM atlas.hex_cells WHERE region_id = $1 AND hub_feature_id IS NOT NULL)
	`
	st := RegionStats{RegionID: regionID}
	err := s.pool.QueryRow(ctx, sql, regionID).Scan(
		&st.Features, &st.HexCells, &st.Connectors, &st.Edges, &st.Hubs,
	)
	if err != nil {
		return nil, eris.Wrap(err, "store: region stats")
	}
	return &st, nil
}
