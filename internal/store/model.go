package store

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Feature types persisted in atlas.world_features.
const (
	FeatureRoad     = "road"
	FeatureBuilding = "building"
	FeaturePlace    = "place"
	FeatureLand     = "land"
)

// Ingest run statuses.
const (
	RunStatusRunning = "running"
	RunStatusDone    = "done"
	RunStatusFailed  = "failed"
)

// Region is a playable area bounded by its hex coverage polygon.
type Region struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	MinLng      float64   `json:"min_lng"`
	MinLat      float64   `json:"min_lat"`
	MaxLng      float64   `json:"max_lng"`
	MaxLat      float64   `json:"max_lat"`
	BoundaryWKT string    `json:"boundary_wkt"`
	CentroidLng float64   `json:"centroid_lng"`
	CentroidLat float64   `json:"centroid_lat"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// HexCell is one fixed-resolution cell of the region's hexagonal grid.
// Rust level lives with the simulation state, not here.
type HexCell struct {
	HexID        string  `json:"hex_id"`
	RegionID     string  `json:"region_id"`
	LandRatio    float64 `json:"land_ratio"`
	DistCenterM  float64 `json:"dist_center_m"`
	HubFeatureID *string `json:"hub_feature_id,omitempty"`
}

// WorldFeature is an ingested map feature (road segment, building, place
// or land polygon) clipped to a region's coverage.
type WorldFeature struct {
	ID           string    `json:"id"`
	FeatureType  string    `json:"feature_type"`
	RegionID     string    `json:"region_id"`
	MinLng       float64   `json:"min_lng"`
	MinLat       float64   `json:"min_lat"`
	MaxLng       float64   `json:"max_lng"`
	MaxLat       float64   `json:"max_lat"`
	RoadClass    *string   `json:"road_class,omitempty"`
	ResourceType *string   `json:"resource_type,omitempty"`
	IsHub        bool      `json:"is_hub"`
	Health       *int      `json:"health,omitempty"`
	AreaSqM      float64   `json:"area_sq_m"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Connector is a road graph node: an intersection or segment endpoint.
type Connector struct {
	ID       string  `json:"id"`
	RegionID string  `json:"region_id"`
	Lng      float64 `json:"lng"`
	Lat      float64 `json:"lat"`
	HexID    string  `json:"hex_id"`
}

// Edge is a directed weighted connection between two connectors. Every
// adjacency is stored as two rows (A→B and B→A) of equal length.
type Edge struct {
	SegmentID     string  `json:"segment_id"`
	FromConnector string  `json:"from_connector"`
	ToConnector   string  `json:"to_connector"`
	LengthM       float64 `json:"length_m"`
	HexID         string  `json:"hex_id"`
}

// EdgeWithHealth is an edge joined with its segment's live health at
// graph-load time. Health is nil when the owning segment has none yet.
type EdgeWithHealth struct {
	Edge
	Health *int `json:"health,omitempty"`
}

// HexBuilding is a building/hex pairing used by hub assignment and the
// per-hex resource caps.
type HexBuilding struct {
	FeatureID    string  `json:"feature_id"`
	HexID        string  `json:"hex_id"`
	CenterLng    float64 `json:"center_lng"`
	CenterLat    float64 `json:"center_lat"`
	AreaSqM      float64 `json:"area_sq_m"`
	ResourceType *string `json:"resource_type,omitempty"`
}

// IngestRun is an audit record for one ingestion run.
type IngestRun struct {
	ID         uuid.UUID       `json:"id"`
	RegionID   string          `json:"region_id"`
	Status     string          `json:"status"`
	Counts     json.RawMessage `json:"counts,omitempty"`
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt *time.Time      `json:"finished_at,omitempty"`
}

// RegionStats summarizes a region's persisted state for the status command.
type RegionStats struct {
	RegionID   string `json:"region_id"`
	Features   int64  `json:"features"`
	HexCells   int64  `json:"hex_cells"`
	Connectors int64  `json:"connectors"`
	Edges      int64  `json:"edges"`
	Hubs       int64  `json:"hubs"`
}
