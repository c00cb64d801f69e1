package ingest

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyCategory(t *testing.T) {
	tests := []struct {
		category string
		want     string
		matched  bool
	}{
		{"pharmacy", ResourceMedicine, true},
		{"veterinary_clinic", ResourceMedicine, true},
		{"gas_station", ResourceFuel, true},
		{"fast_food_restaurant", ResourceFood, true},
		{"scrap_yard", ResourceScrap, true},
		{"tattoo_parlor", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.category, func(t *testing.T) {
			got, ok := classifyCategory(tt.category)
			assert.Equal(t, tt.matched, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestClassifyCategory_RarestWinsTies(t *testing.T) {
	// "health_food" matches both medicine ("health") and food ("food");
	// the rarer type wins.
	got, ok := classifyCategory("health_food")
	require.True(t, ok)
	assert.Equal(t, ResourceMedicine, got)
}

func TestClassifyBuilding_OwnCategoryBeatsPlaces(t *testing.T) {
	b := Building{ID: "b1", Category: "warehouse"}
	got, ok := classifyBuilding(b, []string{"pharmacy"})
	require.True(t, ok)
	assert.Equal(t, ResourceScrap, got)
}

func TestClassifyBuilding_FallsBackToPlaceCategories(t *testing.T) {
	b := Building{ID: "b1"}
	got, ok := classifyBuilding(b, []string{"bookstore", "bakery"})
	require.True(t, ok)
	assert.Equal(t, ResourceFood, got)

	_, ok = classifyBuilding(Building{ID: "b2"}, nil)
	assert.False(t, ok)
}

func TestResourceBalancer_Deterministic(t *testing.T) {
	a := newResourceBalancer()
	b := newResourceBalancer()
	for i := 0; i < 20; i++ {
		id := fmt.Sprintf("bldg-%d", i)
		assert.Equal(t, a.fallback(id), b.fallback(id))
	}
}

func TestResourceBalancer_PicksAmongTwoLeastRepresented(t *testing.T) {
	rb := newResourceBalancer()
	rb.observe(ResourceMedicine)
	rb.observe(ResourceMedicine)
	rb.observe(ResourceFuel)
	rb.observe(ResourceFuel)

	// food and scrap are the two least-represented; the fallback must
	// land on one of them.
	pick := rb.fallback("some-building")
	assert.Contains(t, []string{ResourceFood, ResourceScrap}, pick)
}

func TestResourceBalancer_EvensOutOverTime(t *testing.T) {
	rb := newResourceBalancer()
	for i := 0; i < 400; i++ {
		rb.fallback(fmt.Sprintf("bldg-%d", i))
	}
	for _, resType := range resourcePriority {
		count := rb.counts[resType]
		assert.InDelta(t, 100, count, 60, "type %s drifted too far: %d", resType, count)
	}
}

func TestCapByHexType_EnforcesCap(t *testing.T) {
	var cands []candidate
	for i := 0; i < 8; i++ {
		cands = append(cands, candidate{
			building: Building{ID: fmt.Sprintf("b%d", i), AreaSqM: float64(100 + i)},
			hexIDs:   []string{"hex-a"},
			resType:  ResourceFood,
		})
	}

	kept := capByHexType(cands, 3)
	assert.Len(t, kept, 3)

	// Counts per hex per type never exceed the cap.
	counts := make(map[string]map[string]int)
	for _, c := range kept {
		for _, hexID := range c.hexIDs {
			if counts[hexID] == nil {
				counts[hexID] = make(map[string]int)
			}
			counts[hexID][c.resType]++
			assert.LessOrEqual(t, counts[hexID][c.resType], 3)
		}
	}
}

func TestCapByHexType_MultiHexRejectedWhenAnyHexFull(t *testing.T) {
	// hex-a is filled to cap by large single-hex buildings; the multi-hex
	// building spanning hex-a and hex-b must be rejected even though
	// hex-b has room.
	cands := []candidate{
		{building: Building{ID: "big1", AreaSqM: 900}, hexIDs: []string{"hex-a"}, resType: ResourceFuel, catMatched: true},
		{building: Building{ID: "big2", AreaSqM: 800}, hexIDs: []string{"hex-a"}, resType: ResourceFuel, catMatched: true},
		{building: Building{ID: "straddler", AreaSqM: 10}, hexIDs: []string{"hex-a", "hex-b"}, resType: ResourceFuel},
	}

	kept := capByHexType(cands, 2)
	require.Len(t, kept, 2)
	for _, c := range kept {
		assert.NotEqual(t, "straddler", c.building.ID)
	}
}

func TestCapByHexType_CategoryMatchOutranksSize(t *testing.T) {
	cands := []candidate{
		{building: Building{ID: "huge-unmatched", AreaSqM: 5000}, hexIDs: []string{"hex-a"}, resType: ResourceScrap},
		{building: Building{ID: "small-matched", AreaSqM: 50}, hexIDs: []string{"hex-a"}, resType: ResourceScrap, catMatched: true},
	}

	kept := capByHexType(cands, 1)
	require.Len(t, kept, 1)
	assert.Equal(t, "small-matched", kept[0].building.ID)
}

func TestCapByHexType_ZeroCap(t *testing.T) {
	cands := []candidate{
		{building: Building{ID: "b1"}, hexIDs: []string{"hex-a"}, resType: ResourceFood},
	}
	assert.Empty(t, capByHexType(cands, 0))
}
