// Package store persists the atlas schema: regions, hex cells, world
// features, and the per-region road graph.
package store

import (
	"context"

	"github.com/google/uuid"
)

// Store defines the persistence operations used by ingestion and routing.
type Store interface {
	// UpsertRegion inserts or updates a region. The boundary WKT is
	// dissolved server-side and the centroid recomputed from it.
	UpsertRegion(ctx context.Context, r *Region) error

	// GetRegion retrieves a region by id, boundary as WKT.
	GetRegion(ctx context.Context, id string) (*Region, error)

	// BulkUpsertHexCells upserts hex cells by hex id, preserving hub links.
	BulkUpsertHexCells(ctx context.Context, cells []HexCell) (int64, error)

	// UpdateHexMetrics sets land ratio and distance-from-center per hex.
	UpdateHexMetrics(ctx context.Context, cells []HexCell) error

	// BulkUpsertFeatures upserts world features by global id.
	BulkUpsertFeatures(ctx context.Context, feats []WorldFeature) (int64, error)

	// ReplaceFeatureHexes atomically replaces a feature's hex associations.
	ReplaceFeatureHexes(ctx context.Context, featureID string, hexIDs []string) error

	// PruneOrphans deletes features with no hex association and hex cells
	// covering no live feature. Returns (features, cells) deleted.
	PruneOrphans(ctx context.Context, regionID string) (int64, int64, error)

	// SeedSegmentHealth initializes health to full for road features that
	// have none yet. Live health is owned by the simulation afterwards.
	SeedSegmentHealth(ctx context.Context, regionID string) (int64, error)

	// ListHexBuildings returns every (building, hex) pairing for a region.
	ListHexBuildings(ctx context.Context, regionID string) ([]HexBuilding, error)

	// ClearHubs removes all hub flags and links for a region.
	ClearHubs(ctx context.Context, regionID string) error

	// SetHub marks a building as the hub of a hex.
	SetHub(ctx context.Context, hexID, featureID string) error

	// DeleteRegionGraph removes all connectors and edges for a region
	// ahead of a graph rebuild.
	DeleteRegionGraph(ctx context.Context, regionID string) error

	// InsertConnectors inserts connectors; the first writer for an id wins.
	InsertConnectors(ctx context.Context, conns []Connector) (int64, error)

	// UpsertEdges upserts edges on (segment, from, to).
	UpsertEdges(ctx context.Context, edges []Edge) (int64, error)

	// ListConnectors returns all connectors for a region.
	ListConnectors(ctx context.Context, regionID string) ([]Connector, error)

	// ListEdgesWithHealth returns all edges whose origin connector belongs
	// to the region, each joined with its segment's live health.
	ListEdgesWithHealth(ctx context.Context, regionID string) ([]EdgeWithHealth, error)

	// CreateIngestRun records the start of an ingestion run.
	CreateIngestRun(ctx context.Context, run *IngestRun) error

	// FinishIngestRun finalizes a run with its status and phase counts.
	FinishIngestRun(ctx context.Context, id uuid.UUID, status string, counts []byte) error

	// LastIngestRun returns the most recent run for a region, or nil.
	LastIngestRun(ctx context.Context, regionID string) (*IngestRun, error)

	// Stats returns row counts for the status command.
	Stats(ctx context.Context, regionID string) (*RegionStats, error)
}
