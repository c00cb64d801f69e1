package ingest

import (
	"context"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/rustbelt-games/atlas/internal/hexgrid"
	"github.com/rustbelt-games/atlas/internal/store"
)

// hubCandidate scores one building for one hex.
type hubCandidate struct {
	featureID string
	distM     float64
	areaSqM   float64
}

// AssignHubs selects one logistics hub building per occupied hex:
// score = closeWeight×closeness + sizeWeight×size, both normalized by
// their hex-local maxima. All existing hub links for the region are
// cleared first so stale assignments cannot survive a re-ingest. A
// building may win more than one hex. Returns the number of hubs set.
func AssignHubs(ctx context.Context, st store.Store, regionID string, closeWeight, sizeWeight float64) (int, error) {
	if err := st.ClearHubs(ctx, regionID); err != nil {
		return 0, err
	}

	buildings, err := st.ListHexBuildings(ctx, regionID)
	if err != nil {
		return 0, err
	}

	byHex := make(map[string][]hubCandidate)
	for _, b := range buildings {
		center := hexgrid.CellCenter(hexgrid.CellFromString(b.HexID))
		byHex[b.HexID] = append(byHex[b.HexID], hubCandidate{
			featureID: b.FeatureID,
			distM:     geo.Distance(orb.Point{b.CenterLng, b.CenterLat}, center),
			areaSqM:   b.AreaSqM,
		})
	}

	assigned := 0
	for hexID, cands := range byHex {
		winner := pickHub(cands, closeWeight, sizeWeight)
		if winner == "" {
			continue
		}
		if err := st.SetHub(ctx, hexID, winner); err != nil {
			return assigned, eris.Wrapf(err, "ingest: assign hub for hex %s", hexID)
		}
		assigned++
	}

	zap.L().Info("hub assignment complete",
		zap.String("region", regionID),
		zap.Int("hexes", len(byHex)),
		zap.Int("hubs", assigned),
	)
	return assigned, nil
}

// pickHub returns the best-scoring candidate's feature id.
func pickHub(cands []hubCandidate, closeWeight, sizeWeight float64) string {
	if len(cands) == 0 {
		return ""
	}

	var maxDist, maxArea float64
	for _, c := range cands {
		if c.distM > maxDist {
			maxDist = c.distM
		}
		if c.areaSqM > maxArea {
			maxArea = c.areaSqM
		}
	}

	best := ""
	bestScore := -1.0
	for _, c := range cands {
		closeness := 1.0
		if maxDist > 0 {
			closeness = 1.0 - c.distM/maxDist
		}
		size := 0.0
		if maxArea > 0 {
			size = c.areaSqM / maxArea
		}
		score := closeWeight*closeness + sizeWeight*size
		if score > bestScore {
			bestScore = score
			best = c.featureID
		}
	}
	return best
}
