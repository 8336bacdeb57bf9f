package availability

import (
	"context"
	"errors"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockwatch/internal/chain"
	"stockwatch/internal/mockproxy"
	"stockwatch/internal/proxy"
	"stockwatch/pkg/models"
)

var crRegion = models.Region{Locale: "es-CR", StoreNames: []string{"Escazú", "Heredia", "Zapote", "Llorente"}}

func quietLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

func newTestFetcher(t *testing.T) (*Fetcher, *mockproxy.Server, string) {
	t.Helper()
	mock := mockproxy.New(mockproxy.DemoCatalog())
	srv := httptest.NewServer(mock.Handler())
	t.Cleanup(srv.Close)

	client := proxy.NewClient(proxy.Options{Timeout: 2 * time.Second})
	f := NewFetcher(client, chain.DefaultRegistry(nil, "es-CR"), 4, quietLogger())
	return f, mock, srv.URL
}

func allStores() models.NotificationSettings {
	return models.NotificationSettings{Enabled: true, IntervalMinutes: 60, AllStoresWhenEmpty: true}
}

func TestFetchAvailabilityChain1(t *testing.T) {
	f, _, url := newTestFetcher(t)

	products, err := f.FetchAvailability(context.Background(), models.CycleConfig{
		Chain:      models.Chain1,
		ProxyURL:   url,
		ProductIDs: []string{"3001", "3002", "4002"},
		Settings:   allStores(),
		Region:     crRegion,
	})
	require.NoError(t, err)
	require.Len(t, products, 3)
	for _, p := range products {
		assert.True(t, p.AvailableAnywhere, p.ProductID)
	}
	assert.Len(t, f.CachedStores(models.Chain1), 3)
}

func TestFetchAvailabilityAvailableFirstStable(t *testing.T) {
	f, mock, url := newTestFetcher(t)
	mock.SetStock(models.Chain1, "3001", "01", false)

	products, err := f.FetchAvailability(context.Background(), models.CycleConfig{
		Chain:      models.Chain1,
		ProxyURL:   url,
		ProductIDs: []string{"3001", "3002", "4002"},
		Settings:   allStores(),
	})
	require.NoError(t, err)
	ids := []string{}
	for _, p := range products {
		ids = append(ids, p.ProductID)
	}
	assert.Equal(t, []string{"3002", "4002", "3001"}, ids)
}

func TestFetchAvailabilityRegionFilter(t *testing.T) {
	f, _, url := newTestFetcher(t)

	// 3002 is only stocked at Tamarindo, outside the region
	settings := allStores()
	settings.RegionFilterEnabled = true
	products, err := f.FetchAvailability(context.Background(), models.CycleConfig{
		Chain:      models.Chain1,
		ProxyURL:   url,
		ProductIDs: []string{"3002"},
		Settings:   settings,
		Region:     crRegion,
	})
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.False(t, products[0].AvailableAnywhere)
	assert.True(t, products[0].StoreDetail["03"].HasInventory)
}

func TestFetchAvailabilityChain2RegionFilter(t *testing.T) {
	f, mock, url := newTestFetcher(t)
	mock.SetStock(models.Chain2, "555001", "ch-brisas", true)

	settings := allStores()
	settings.RegionFilterEnabled = true
	products, err := f.FetchAvailability(context.Background(), models.CycleConfig{
		Chain:      models.Chain2,
		ProxyURL:   url,
		ProductIDs: []string{"210400", "555001"},
		Settings:   settings,
		Region:     crRegion,
	})
	require.NoError(t, err)
	require.Len(t, products, 2)
	assert.Equal(t, "210400", products[0].ProductID)
	assert.True(t, products[0].AvailableAnywhere)
	assert.Equal(t, "555001", products[1].ProductID)
	assert.False(t, products[1].AvailableAnywhere, "Brisas is outside the region")
}

func TestFetchAvailabilityDropsFailedProducts(t *testing.T) {
	f, mock, url := newTestFetcher(t)
	mock.FailProduct("3002", true)

	products, err := f.FetchAvailability(context.Background(), models.CycleConfig{
		Chain:      models.Chain1,
		ProxyURL:   url,
		ProductIDs: []string{"3001", "3002", "9999"},
		Settings:   allStores(),
	})
	require.NoError(t, err)
	require.Len(t, products, 1, "3002 failed, 9999 has no hits")
	assert.Equal(t, "3001", products[0].ProductID)
}

func TestFetchAvailabilityAllFail(t *testing.T) {
	f, mock, url := newTestFetcher(t)
	mock.FailProduct("3001", true)
	mock.FailProduct("3002", true)

	_, err := f.FetchAvailability(context.Background(), models.CycleConfig{
		Chain:      models.Chain1,
		ProxyURL:   url,
		ProductIDs: []string{"3001", "3002"},
		Settings:   allStores(),
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrFetchFailed))
	var nerr *models.NetworkError
	assert.True(t, errors.As(err, &nerr))
}

func TestFetchAvailabilityProxyDown(t *testing.T) {
	f, mock, url := newTestFetcher(t)
	mock.SetDown(true)

	_, err := f.FetchAvailability(context.Background(), models.CycleConfig{
		Chain:      models.Chain1,
		ProxyURL:   url,
		ProductIDs: []string{"3001"},
		Settings:   allStores(),
	})
	assert.True(t, errors.Is(err, ErrFetchFailed))
	assert.Equal(t, 0, mock.Calls("availability"), "no product fan-out without a store list")
}

func TestFetchAvailabilityNoProducts(t *testing.T) {
	f, mock, url := newTestFetcher(t)
	products, err := f.FetchAvailability(context.Background(), models.CycleConfig{Chain: models.Chain1, ProxyURL: url})
	require.NoError(t, err)
	assert.Empty(t, products)
	assert.Equal(t, 0, mock.Calls("stores"))
}

func TestFetchAvailabilityUnsupportedChain(t *testing.T) {
	f, _, url := newTestFetcher(t)
	_, err := f.FetchAvailability(context.Background(), models.CycleConfig{Chain: "chain3", ProxyURL: url, ProductIDs: []string{"1"}})
	var uerr *models.UnsupportedChainError
	assert.True(t, errors.As(err, &uerr))
}

func TestRecommendations(t *testing.T) {
	f, _, url := newTestFetcher(t)

	recs, err := f.Recommendations(context.Background(), models.Chain1, url, "3001", []string{"3001", "3002"})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "4002", recs[0].ProductID)

	recs, err = f.Recommendations(context.Background(), models.Chain2, url, "210400", nil)
	require.NoError(t, err)
	assert.Empty(t, recs, "chain2 has no recommendation model")
}
