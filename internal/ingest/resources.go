package ingest

import (
	"hash/fnv"
	"sort"
	"strings"
)

// Resource types a building can generate, ordered rarest first. The order
// breaks classification ties and the fallback's least-represented ties.
const (
	ResourceMedicine = "medicine"
	ResourceFuel     = "fuel"
	ResourceFood     = "food"
	ResourceScrap    = "scrap"
)

var resourcePriority = []string{ResourceMedicine, ResourceFuel, ResourceFood, ResourceScrap}

var resourceKeywords = map[string][]string{
	ResourceMedicine: {"pharmacy", "hospital", "clinic", "doctor", "dentist", "veterinar", "health"},
	ResourceFuel:     {"fuel", "gas_station", "petrol", "charging", "power", "substation", "refinery"},
	ResourceFood:     {"restaurant", "cafe", "supermarket", "grocery", "bakery", "butcher", "farm", "market", "food"},
	ResourceScrap:    {"industrial", "warehouse", "factory", "hardware", "construction", "scrap", "junk", "garage", "workshop"},
}

// classifyCategory maps a place category to a resource type by keyword
// match. When several types match, the rarest wins.
func classifyCategory(category string) (string, bool) {
	if category == "" {
		return "", false
	}
	for _, resType := range resourcePriority {
		for _, kw := range resourceKeywords[resType] {
			if strings.Contains(category, kw) {
				return resType, true
			}
		}
	}
	return "", false
}

// classifyBuilding resolves a building's resource type from its own
// category first, then from the categories of places inside its extent.
func classifyBuilding(b Building, placeCategories []string) (string, bool) {
	if resType, ok := classifyCategory(b.Category); ok {
		return resType, true
	}
	matched := make(map[string]bool)
	for _, cat := range placeCategories {
		if resType, ok := classifyCategory(cat); ok {
			matched[resType] = true
		}
	}
	for _, resType := range resourcePriority {
		if matched[resType] {
			return resType, true
		}
	}
	return "", false
}

// resourceBalancer tracks running per-type counts so hash-fallback
// assignment keeps the four types roughly even. It is threaded explicitly
// through the building pass; assignment order matters.
type resourceBalancer struct {
	counts map[string]int
}

func newResourceBalancer() *resourceBalancer {
	counts := make(map[string]int, len(resourcePriority))
	for _, t := range resourcePriority {
		counts[t] = 0
	}
	return &resourceBalancer{counts: counts}
}

// observe records a category-matched assignment.
func (rb *resourceBalancer) observe(resType string) {
	rb.counts[resType]++
}

// fallback deterministically assigns an unmatched building to one of the
// two least-represented types, steered by a hash of its id.
func (rb *resourceBalancer) fallback(featureID string) string {
	ranked := make([]string, len(resourcePriority))
	copy(ranked, resourcePriority)
	sort.SliceStable(ranked, func(i, j int) bool {
		return rb.counts[ranked[i]] < rb.counts[ranked[j]]
	})

	pick := ranked[featureHash(featureID)%2]
	rb.counts[pick]++
	return pick
}

// featureHash is the deterministic tiebreak hash (FNV-1a).
func featureHash(id string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(id))
	return h.Sum64()
}

// candidate is a building that survived containment filtering, with its
// touched hexes and resolved resource type.
type candidate struct {
	building   Building
	hexIDs     []string
	resType    string
	catMatched bool
}

// capByHexType keeps at most cap buildings per hex per resource type.
// Candidates rank by weight: a category-match bonus, a footprint bonus
// normalized against the largest candidate footprint, and a hash tiebreak.
// A multi-hex building is rejected outright if any touched hex is already
// at cap for its type.
func capByHexType(cands []candidate, cap int) []candidate {
	if cap <= 0 {
		return nil
	}

	var maxArea float64
	for _, c := range cands {
		if c.building.AreaSqM > maxArea {
			maxArea = c.building.AreaSqM
		}
	}

	weight := func(c candidate) float64 {
		w := 0.0
		if c.catMatched {
			w += 1.0
		}
		if maxArea > 0 {
			w += 0.5 * (c.building.AreaSqM / maxArea)
		}
		// Sub-epsilon hash term keeps ordering total and deterministic.
		w += float64(featureHash(c.building.ID)%1000) * 1e-9
		return w
	}

	ranked := make([]candidate, len(cands))
	copy(ranked, cands)
	sort.SliceStable(ranked, func(i, j int) bool {
		return weight(ranked[i]) > weight(ranked[j])
	})

	counts := make(map[string]map[string]int)
	var kept []candidate
	for _, c := range ranked {
		atCap := false
		for _, hexID := range c.hexIDs {
			if counts[hexID][c.resType] >= cap {
				atCap = true
				break
			}
		}
		if atCap {
			continue
		}
		for _, hexID := range c.hexIDs {
			if counts[hexID] == nil {
				counts[hexID] = make(map[string]int)
			}
			counts[hexID][c.resType]++
		}
		kept = append(kept, c)
	}
	return kept
}
