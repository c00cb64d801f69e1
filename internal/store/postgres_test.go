package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func newMockStore(t *testing.T) (pgxmock.PgxPoolIface, *PostgresStore) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock, NewPostgresStore(mock)
}

func TestUpsertRegion(t *testing.T) {
	mock, st := newMockStore(t)

	r := &Region{
		ID: "detroit", Name: "Detroit",
		MinLng: -83.10, MinLat: 42.30, MaxLng: -83.00, MaxLat: 42.38,
		BoundaryWKT: "MULTIPOLYGON(((0 0,1 0,1 1,0 0)))",
	}

	mock.ExpectExec("INSERT INTO atlas.regions").
		WithArgs(r.ID, r.Name, r.MinLng, r.MinLat, r.MaxLng, r.MaxLat, r.BoundaryWKT).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, st.UpsertRegion(context.Background(), r))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertRegion_DissolvesBoundary(t *testing.T) {
	// the raw hex MultiPolygon must be unioned server-side
	mock, st := newMockStore(t)

	mock.ExpectExec("ST_UnaryUnion").
		WithArgs("d", "n", 0.0, 0.0, 1.0, 1.0, "wkt").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	r := &Region{ID: "d", Name: "n", MaxLng: 1, MaxLat: 1, BoundaryWKT: "wkt"}
	require.NoError(t, st.UpsertRegion(context.Background(), r))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetRegion(t *testing.T) {
	mock, st := newMockStore(t)

	now := time.Now()
	mock.ExpectQuery("SELECT id, name, min_lng").
		WithArgs("detroit").
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "name", "min_lng", "min_lat", "max_lng", "max_lat",
			"boundary", "cx", "cy", "created_at", "updated_at",
		}).AddRow("detroit", "Detroit", -83.10, 42.30, -83.00, 42.38, "MULTIPOLYGON EMPTY", -83.05, 42.34, now, now))

	r, err := st.GetRegion(context.Background(), "detroit")
	require.NoError(t, err)
	require.NotNil(t, r)
	assert.Equal(t, "Detroit", r.Name)
	assert.Equal(t, -83.05, r.CentroidLng)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetRegion_NotFound(t *testing.T) {
	mock, st := newMockStore(t)

	mock.ExpectQuery("SELECT id, name, min_lng").
		WithArgs("nowhere").
		WillReturnRows(pgxmock.NewRows([]string{"id"}))

	r, err := st.GetRegion(context.Background(), "nowhere")
	require.NoError(t, err)
	assert.Nil(t, r)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSeedSegmentHealth(t *testing.T) {
	mock, st := newMockStore(t)

	mock.ExpectExec("UPDATE atlas.world_features").
		WithArgs("detroit").
		WillReturnResult(pgxmock.NewResult("UPDATE", 42))

	n, err := st.SeedSegmentHealth(context.Background(), "detroit")
	require.NoError(t, err)
	assert.Equal(t, int64(42), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReplaceFeatureHexes(t *testing.T) {
	mock, st := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM atlas.feature_hexes").
		WithArgs("feat-1").
		WillReturnResult(pgxmock.NewResult("DELETE", 2))
	mock.ExpectCopyFrom(pgx.Identifier{"atlas", "feature_hexes"}, []string{"feature_id", "hex_id"}).
		WillReturnResult(2)
	mock.ExpectCommit()

	err := st.ReplaceFeatureHexes(context.Background(), "feat-1", []string{"hex-a", "hex-b"})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPruneOrphans(t *testing.T) {
	mock, st := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM atlas.world_features").
		WithArgs("detroit").
		WillReturnResult(pgxmock.NewResult("DELETE", 7))
	mock.ExpectExec("DELETE FROM atlas.hex_cells").
		WithArgs("detroit").
		WillReturnResult(pgxmock.NewResult("DELETE", 3))
	mock.ExpectCommit()

	feats, cells, err := st.PruneOrphans(context.Background(), "detroit")
	require.NoError(t, err)
	assert.Equal(t, int64(7), feats)
	assert.Equal(t, int64(3), cells)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClearHubs(t *testing.T) {
	mock, st := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE atlas.hex_cells").
		WithArgs("detroit").
		WillReturnResult(pgxmock.NewResult("UPDATE", 10))
	mock.ExpectExec("UPDATE atlas.world_features").
		WithArgs("detroit").
		WillReturnResult(pgxmock.NewResult("UPDATE", 10))
	mock.ExpectCommit()

	require.NoError(t, st.ClearHubs(context.Background(), "detroit"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSetHub(t *testing.T) {
	mock, st := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE atlas.hex_cells").
		WithArgs("hex-a", "feat-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("UPDATE atlas.world_features").
		WithArgs("feat-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	require.NoError(t, st.SetHub(context.Background(), "hex-a", "feat-1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteRegionGraph(t *testing.T) {
	mock, st := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM atlas.road_edges").
		WithArgs("detroit").
		WillReturnResult(pgxmock.NewResult("DELETE", 20))
	mock.ExpectExec("DELETE FROM atlas.road_connectors").
		WithArgs("detroit").
		WillReturnResult(pgxmock.NewResult("DELETE", 12))
	mock.ExpectCommit()

	require.NoError(t, st.DeleteRegionGraph(context.Background(), "detroit"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListConnectors(t *testing.T) {
	mock, st := newMockStore(t)

	mock.ExpectQuery("SELECT id, region_id, lng, lat, hex_id FROM atlas.road_connectors").
		WithArgs("detroit").
		WillReturnRows(pgxmock.NewRows([]string{"id", "region_id", "lng", "lat", "hex_id"}).
			AddRow("c1", "detroit", -83.05, 42.33, "hex-a").
			AddRow("c2", "detroit", -83.04, 42.33, "hex-b"))

	conns, err := st.ListConnectors(context.Background(), "detroit")
	require.NoError(t, err)
	require.Len(t, conns, 2)
	assert.Equal(t, "c1", conns[0].ID)
	assert.Equal(t, -83.04, conns[1].Lng)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListEdgesWithHealth(t *testing.T) {
	mock, st := newMockStore(t)

	health := 60
	mock.ExpectQuery("SELECT e.segment_id").
		WithArgs("detroit").
		WillReturnRows(pgxmock.NewRows([]string{
			"segment_id", "from_connector", "to_connector", "length_m", "hex_id", "health",
		}).
			AddRow("s1", "c1", "c2", 120.5, "hex-a", &health).
			AddRow("s2", "c2", "c3", 80.0, "hex-a", nil))

	edges, err := st.ListEdgesWithHealth(context.Background(), "detroit")
	require.NoError(t, err)
	require.Len(t, edges, 2)
	require.NotNil(t, edges[0].Health)
	assert.Equal(t, 60, *edges[0].Health)
	assert.Nil(t, edges[1].Health)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIngestRunLifecycle(t *testing.T) {
	mock, st := newMockStore(t)

	run := &IngestRun{
		ID:        uuid.New(),
		RegionID:  "detroit",
		Status:    RunStatusRunning,
		StartedAt: time.Now(),
	}

	mock.ExpectExec("INSERT INTO atlas.ingest_runs").
		WithArgs(run.ID, run.RegionID, run.Status, run.StartedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("UPDATE atlas.ingest_runs").
		WithArgs(run.ID, RunStatusDone, []byte(`{"features":5}`)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, st.CreateIngestRun(context.Background(), run))
	require.NoError(t, st.FinishIngestRun(context.Background(), run.ID, RunStatusDone, []byte(`{"features":5}`)))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLastIngestRun_NotFound(t *testing.T) {
	mock, st := newMockStore(t)

	mock.ExpectQuery("SELECT id, region_id, status").
		WithArgs("nowhere").
		WillReturnRows(pgxmock.NewRows([]string{"id"}))

	run, err := st.LastIngestRun(context.Background(), "nowhere")
	require.NoError(t, err)
	assert.Nil(t, run)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStats(t *testing.T) {
	mock, st := newMockStore(t)

	mock.ExpectQuery("SELECT").
		WithArgs("detroit").
		WillReturnRows(pgxmock.NewRows([]string{"f", "h", "c", "e", "hub"}).
			AddRow(int64(120), int64(40), int64(85), int64(210), int64(18)))

	stats, err := st.Stats(context.Background(), "detroit")
	require.NoError(t, err)
	assert.Equal(t, "detroit", stats.RegionID)
	assert.Equal(t, int64(120), stats.Features)
	assert.Equal(t, int64(210), stats.Edges)
	assert.Equal(t, int64(18), stats.Hubs)
	assert.NoError(t, mock.ExpectationsWereMet())
}
