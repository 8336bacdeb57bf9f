package availability

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"stockwatch/pkg/models"
)

var testStores = []models.Store{
	{StoreID: "1", Name: "AM Escazú"},
	{StoreID: "2", Name: "AM Heredia"},
	{StoreID: "X", Name: "AM Tamarindo"},
}

func TestScope(t *testing.T) {
	region := models.Region{StoreNames: []string{"escazú", "Heredia"}}

	tests := []struct {
		name     string
		settings models.NotificationSettings
		want     map[string]struct{}
	}{
		{
			name:     "empty tracked means all",
			settings: models.NotificationSettings{AllStoresWhenEmpty: true},
			want:     nil,
		},
		{
			name:     "empty tracked means none",
			settings: models.NotificationSettings{},
			want:     map[string]struct{}{},
		},
		{
			name: "tracked stores",
			settings: models.NotificationSettings{
				TrackedStoresByChain: map[models.ChainID][]string{models.Chain1: {"2", "X"}},
			},
			want: map[string]struct{}{"2": {}, "X": {}},
		},
		{
			name:     "region only",
			settings: models.NotificationSettings{AllStoresWhenEmpty: true, RegionFilterEnabled: true},
			want:     map[string]struct{}{"1": {}, "2": {}},
		},
		{
			name: "tracked intersected with region",
			settings: models.NotificationSettings{
				RegionFilterEnabled:  true,
				TrackedStoresByChain: map[models.ChainID][]string{models.Chain1: {"2", "X"}},
			},
			want: map[string]struct{}{"2": {}},
		},
		{
			name: "other chain's tracked stores ignored",
			settings: models.NotificationSettings{
				AllStoresWhenEmpty:   true,
				TrackedStoresByChain: map[models.ChainID][]string{models.Chain2: {"9"}},
			},
			want: nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Scope(tt.settings, models.Chain1, region, testStores))
		})
	}
}

func TestApplyRegionExcludedStore(t *testing.T) {
	p := models.Product{
		ProductID: "A",
		StoreDetail: map[string]models.StoreDetail{
			"X": {HasInventory: true},
			"1": {HasInventory: false},
		},
		AvailableAnywhere: true,
	}
	scope := Scope(models.NotificationSettings{AllStoresWhenEmpty: true, RegionFilterEnabled: true},
		models.Chain1, models.Region{StoreNames: []string{"Escazú"}}, testStores)

	got := Apply(p, testStores, scope)
	assert.False(t, got.AvailableAnywhere)
	assert.True(t, got.StoreDetail["X"].HasInventory)
}

func TestApplyDropsUnknownStores(t *testing.T) {
	p := models.Product{StoreDetail: map[string]models.StoreDetail{
		"1":     {HasInventory: false},
		"ghost": {HasInventory: true},
	}}
	got := Apply(p, testStores, nil)
	assert.NotContains(t, got.StoreDetail, "ghost")
	assert.False(t, got.AvailableAnywhere)

	// unknown store list keeps everything
	got = Apply(p, nil, nil)
	assert.Contains(t, got.StoreDetail, "ghost")
	assert.True(t, got.AvailableAnywhere)
}

func TestSortAvailableFirst(t *testing.T) {
	ps := []models.Product{
		{ProductID: "a"},
		{ProductID: "b", AvailableAnywhere: true},
		{ProductID: "c"},
		{ProductID: "d", AvailableAnywhere: true},
	}
	SortAvailableFirst(ps)
	got := []string{}
	for _, p := range ps {
		got = append(got, p.ProductID)
	}
	assert.Equal(t, []string{"b", "d", "a", "c"}, got)
}

func TestInRegion(t *testing.T) {
	r := models.Region{StoreNames: []string{"Tres Ríos", "Santa Ana"}}
	assert.True(t, InRegion("PriceSmart Tres Ríos", r))
	assert.True(t, InRegion("santa ana", r))
	assert.False(t, InRegion("Brisas", r))
	assert.False(t, InRegion("", r))
}
