package routing

import (
	"context"
	"sync"
	"time"

	"github.com/paulmach/orb"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/rustbelt-games/atlas/internal/store"
)

// GraphSource is the slice of the store the cache needs.
type GraphSource interface {
	ListConnectors(ctx context.Context, regionID string) ([]store.Connector, error)
	ListEdgesWithHealth(ctx context.Context, regionID string) ([]store.EdgeWithHealth, error)
}

// GraphCache loads region road graphs on demand and shares them across
// concurrent queries until the TTL lapses. Reloads are wholesale: entries
// are never mutated in place. Concurrent cold-cache callers each trigger
// their own reload; with a TTL of minutes against per-action query volume
// the duplicated work is not worth a de-duplication layer.
type GraphCache struct {
	source GraphSource
	ttl    time.Duration
	// healthK scales the degraded-segment penalty:
	// cost = length × (1 + healthK×(1 − health/100)).
	healthK float64

	mu      sync.RWMutex
	entries map[string]*cacheEntry
}

type cacheEntry struct {
	graph    Graph
	coords   Coords
	loadedAt time.Time
}

// NewGraphCache creates a GraphCache over the given source.
func NewGraphCache(source GraphSource, ttl time.Duration, healthPenaltyK float64) *GraphCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &GraphCache{
		source:  source,
		ttl:     ttl,
		healthK: healthPenaltyK,
		entries: make(map[string]*cacheEntry),
	}
}

// LoadGraphForRegion returns the cached graph and coordinate lookup for a
// region, reloading on miss or expiry. A region with no connectors — and a
// storage failure — both surface as absent, never as an error: callers
// fall back to the straight-line estimate.
func (c *GraphCache) LoadGraphForRegion(ctx context.Context, regionID string) (Graph, Coords, bool) {
	c.mu.RLock()
	entry, ok := c.entries[regionID]
	c.mu.RUnlock()

	if ok && time.Since(entry.loadedAt) <= c.ttl {
		return entry.graph, entry.coords, true
	}

	graph, coords, err := c.reload(ctx, regionID)
	if err != nil {
		zap.L().Warn("graph reload failed, degrading to no-route",
			zap.String("region", regionID),
			zap.Error(err),
		)
		return nil, nil, false
	}
	if len(coords) == 0 {
		return nil, nil, false
	}

	c.mu.Lock()
	c.entries[regionID] = &cacheEntry{graph: graph, coords: coords, loadedAt: time.Now()}
	c.mu.Unlock()

	return graph, coords, true
}

// reload fetches the region's connectors and edges and rebuilds the
// adjacency and coordinate maps, folding each edge's live segment health
// into its routing cost.
func (c *GraphCache) reload(ctx context.Context, regionID string) (Graph, Coords, error) {
	var (
		conns []store.Connector
		edges []store.EdgeWithHealth
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		conns, err = c.source.ListConnectors(gctx, regionID)
		return err
	})
	g.Go(func() error {
		var err error
		edges, err = c.source.ListEdgesWithHealth(gctx, regionID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	coords := make(Coords, len(conns))
	for _, conn := range conns {
		coords[conn.ID] = orb.Point{conn.Lng, conn.Lat}
	}

	graph := make(Graph, len(conns))
	for _, e := range edges {
		graph[e.FromConnector] = append(graph[e.FromConnector], GraphEdge{
			To:        e.ToConnector,
			SegmentID: e.SegmentID,
			LengthM:   e.LengthM,
			CostM:     e.LengthM * c.healthPenalty(e.Health),
		})
	}

	zap.L().Debug("graph loaded",
		zap.String("region", regionID),
		zap.Int("connectors", len(conns)),
		zap.Int("edges", len(edges)),
	)
	return graph, coords, nil
}

// healthPenalty maps segment health (0–100, nil = full) to a monotonic
// cost multiplier. A fully degraded segment costs (1 + healthK)× its
// length; the multiplier never drops below 1.
func (c *GraphCache) healthPenalty(health *int) float64 {
	h := 100
	if health != nil {
		h = *health
	}
	if h < 0 {
		h = 0
	}
	if h > 100 {
		h = 100
	}
	return 1 + c.healthK*(1-float64(h)/100)
}
