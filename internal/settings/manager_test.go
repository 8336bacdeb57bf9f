package settings

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockwatch/internal/kvstore"
	"stockwatch/pkg/models"
)

func quietLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

func defaults() models.NotificationSettings {
	return models.NotificationSettings{
		Enabled:              true,
		IntervalMinutes:      60,
		TrackedStoresByChain: map[models.ChainID][]string{},
		AllStoresWhenEmpty:   true,
	}
}

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	return NewManager(kvstore.NewMemory(), Options{
		Defaults: defaults(),
		Region:   models.Region{Locale: "es-CR", StoreNames: []string{"Escazú"}},
		ProxyURL: "http://localhost:3001/",
	}, quietLogger())
}

func TestLoadDefaults(t *testing.T) {
	m := newTestManager(t)
	s, err := m.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, defaults(), s)
}

func TestSaveRoundTripAndBroadcast(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	var got []models.NotificationSettings
	unsubscribe := m.Subscribe(func(_ context.Context, s models.NotificationSettings) {
		got = append(got, s)
	})

	s := defaults()
	s.IntervalMinutes = 15
	s.RegionFilterEnabled = true
	s.TrackedStoresByChain[models.Chain1] = []string{"01", "02", "01"}
	require.NoError(t, m.Save(ctx, s))

	loaded, err := m.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 15, loaded.IntervalMinutes)
	assert.True(t, loaded.RegionFilterEnabled)
	assert.Equal(t, []string{"01", "02"}, loaded.TrackedStoresByChain[models.Chain1])

	require.Len(t, got, 1)
	assert.Equal(t, 15, got[0].IntervalMinutes)

	unsubscribe()
	require.NoError(t, m.Save(ctx, s))
	assert.Len(t, got, 1)
}

func TestSaveRejectsZeroInterval(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	good := defaults()
	good.IntervalMinutes = 30
	require.NoError(t, m.Save(ctx, good))

	called := false
	m.Subscribe(func(context.Context, models.NotificationSettings) { called = true })

	bad := defaults()
	bad.IntervalMinutes = 0
	err := m.Save(ctx, bad)
	var verr *models.ConfigValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "intervalMinutes", verr.Field)
	assert.False(t, called, "rejected saves are not broadcast")

	loaded, _ := m.Load(ctx)
	assert.Equal(t, 30, loaded.IntervalMinutes)
}

func TestValidateUnknownChain(t *testing.T) {
	s := defaults()
	s.TrackedStoresByChain["chain9"] = []string{"1"}
	var verr *models.ConfigValidationError
	assert.True(t, errors.As(Validate(s), &verr))
}

func TestSetProxyURL(t *testing.T) {
	m := newTestManager(t)
	assert.Equal(t, "http://localhost:3001", m.ProxyURL())

	require.NoError(t, m.SetProxyURL("https://proxy.example.com/"))
	assert.Equal(t, "https://proxy.example.com", m.ProxyURL())

	for _, bad := range []string{"", "ftp://x", "localhost:3001", "http://"} {
		assert.Error(t, m.SetProxyURL(bad), bad)
	}
	assert.Equal(t, "https://proxy.example.com", m.ProxyURL())
}

func TestAddProduct(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	id, err := m.AddProduct(ctx, models.Chain1, "6a237f75-d599-ec11-b400-000d3a347b43")
	require.NoError(t, err)
	assert.Equal(t, "6a237f75-d599-ec11-b400-000d3a347b43", id)

	id, err = m.AddProduct(ctx, models.Chain1, "https://automercado.cr/p/bebida-gaseosa/id/1c4d9e75-d599-ec11-b400-000d3a347ca0")
	require.NoError(t, err)
	assert.Equal(t, "1c4d9e75-d599-ec11-b400-000d3a347ca0", id)

	_, err = m.AddProduct(ctx, models.Chain1, "1c4d9e75-d599-ec11-b400-000d3a347ca0")
	assert.ErrorIs(t, err, models.ErrDuplicateProduct)

	_, err = m.AddProduct(ctx, models.Chain1, "https://automercado.cr/p/no-id-here")
	var verr *models.ConfigValidationError
	assert.True(t, errors.As(err, &verr))

	_, err = m.AddProduct(ctx, "chain3", "1")
	var uerr *models.UnsupportedChainError
	assert.True(t, errors.As(err, &uerr))

	tracked, err := m.Tracked(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"6a237f75-d599-ec11-b400-000d3a347b43",
		"1c4d9e75-d599-ec11-b400-000d3a347ca0",
	}, tracked[models.Chain1])

	sel, err := m.Selection(ctx)
	require.NoError(t, err)
	assert.Equal(t, "6a237f75-d599-ec11-b400-000d3a347b43", sel.Products[models.Chain1], "first product is selected")
}

func TestSameProductOnTwoChains(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()
	_, err := m.AddProduct(ctx, models.Chain1, "100")
	require.NoError(t, err)
	_, err = m.AddProduct(ctx, models.Chain2, "100")
	require.NoError(t, err)
}

func TestRemoveProductMovesSelection(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()
	for _, id := range []string{"A", "B", "C"} {
		_, err := m.AddProduct(ctx, models.Chain2, id)
		require.NoError(t, err)
	}

	require.NoError(t, m.RemoveProduct(ctx, models.Chain2, "A"))
	sel, _ := m.Selection(ctx)
	assert.Equal(t, "B", sel.Products[models.Chain2])

	require.NoError(t, m.RemoveProduct(ctx, models.Chain2, "C"))
	sel, _ = m.Selection(ctx)
	assert.Equal(t, "B", sel.Products[models.Chain2], "removing an unselected product keeps selection")

	require.NoError(t, m.RemoveProduct(ctx, models.Chain2, "B"))
	sel, _ = m.Selection(ctx)
	assert.NotContains(t, sel.Products, models.Chain2)

	assert.ErrorIs(t, m.RemoveProduct(ctx, models.Chain2, "B"), models.ErrProductNotTracked)
}

func TestSelect(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()
	_, err := m.AddProduct(ctx, models.Chain1, "A")
	require.NoError(t, err)
	_, err = m.AddProduct(ctx, models.Chain1, "B")
	require.NoError(t, err)

	require.NoError(t, m.Select(ctx, Selection{Chain: models.Chain2, Products: map[models.ChainID]string{models.Chain1: "B"}}))
	sel, err := m.Selection(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.Chain2, sel.Chain)
	assert.Equal(t, "B", sel.Products[models.Chain1])

	err = m.Select(ctx, Selection{Chain: models.Chain1, Products: map[models.ChainID]string{models.Chain1: "Z"}})
	assert.ErrorIs(t, err, models.ErrProductNotTracked)
}

func TestCycleConfig(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()
	_, err := m.AddProduct(ctx, models.Chain2, "210400")
	require.NoError(t, err)

	cfgs, err := m.CycleConfigs(ctx)
	require.NoError(t, err)
	require.Len(t, cfgs, 1, "chain1 has nothing tracked")

	cfg := cfgs[0]
	assert.Equal(t, models.Chain2, cfg.Chain)
	assert.Equal(t, "http://localhost:3001", cfg.ProxyURL)
	assert.Equal(t, []string{"210400"}, cfg.ProductIDs)
	assert.Equal(t, "es-CR", cfg.Region.Locale)
	assert.True(t, cfg.Settings.AllStoresWhenEmpty)

	// later saves do not leak into an already built config
	s := defaults()
	s.IntervalMinutes = 5
	require.NoError(t, m.Save(ctx, s))
	assert.Equal(t, 60, cfg.Settings.IntervalMinutes)
}
