package models

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreDetailUnknownValuesStayNA(t *testing.T) {
	d := StoreDetail{HasInventory: true, Hall: Text("")}
	b, err := json.Marshal(d)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"hasInventory": true,
		"basePrice": null,
		"unitPrice": null,
		"hasDiscount": false,
		"percentDiscount": "N/A",
		"hall": "N/A",
		"quantity": "N/A"
	}`, string(b))

	var back StoreDetail
	require.NoError(t, json.Unmarshal(b, &back))
	assert.False(t, back.Quantity.Valid)
	assert.False(t, back.Hall.Valid)
	assert.False(t, back.BasePrice.Valid)
}

func TestNumberOrNAAcceptsVendorShapes(t *testing.T) {
	cases := map[string]NumberOrNA{
		`12`:     Number(12),
		`"7.5"`:  Number(7.5),
		`"N/A"`:  {},
		`""`:     {},
		`null`:   {},
		`0`:      Number(0),
		`"0.25"`: Number(0.25),
	}
	for in, want := range cases {
		var got NumberOrNA
		require.NoError(t, json.Unmarshal([]byte(in), &got), in)
		assert.Equal(t, want, got, in)
	}

	var bad NumberOrNA
	assert.Error(t, json.Unmarshal([]byte(`"lots"`), &bad))
	assert.Equal(t, "N/A", NumberOrNA{}.String())
	assert.Equal(t, "3", Number(3).String())
}

func TestPricesKeepDecimalPrecision(t *testing.T) {
	d := StoreDetail{BasePrice: decimal.NewNullDecimal(decimal.RequireFromString("1999.90"))}
	b, err := json.Marshal(d)
	require.NoError(t, err)

	var back StoreDetail
	require.NoError(t, json.Unmarshal(b, &back))
	require.True(t, back.BasePrice.Valid)
	assert.True(t, back.BasePrice.Decimal.Equal(decimal.RequireFromString("1999.9")))
}

func TestAnyInStock(t *testing.T) {
	p := Product{StoreDetail: map[string]StoreDetail{
		"s1": {HasInventory: false},
		"s2": {HasInventory: true},
	}}
	assert.True(t, p.AnyInStock(nil))
	assert.True(t, p.AnyInStock(map[string]struct{}{"s2": {}}))
	assert.False(t, p.AnyInStock(map[string]struct{}{"s1": {}}))
	assert.False(t, p.AnyInStock(map[string]struct{}{}))
	assert.False(t, Product{}.AnyInStock(nil))
}

func TestParseChain(t *testing.T) {
	c, err := ParseChain("chain2")
	require.NoError(t, err)
	assert.Equal(t, Chain2, c)

	_, err = ParseChain("chain9")
	var unsupported *UnsupportedChainError
	require.True(t, errors.As(err, &unsupported))
	assert.Equal(t, "chain9", unsupported.Chain)
}

func TestSettingsCloneIsDeep(t *testing.T) {
	s := NotificationSettings{TrackedStoresByChain: map[ChainID][]string{Chain1: {"a"}}}
	c := s.Clone()
	c.TrackedStoresByChain[Chain1][0] = "b"
	c.TrackedStoresByChain[Chain2] = []string{"x"}
	assert.Equal(t, []string{"a"}, s.TrackedStoresByChain[Chain1])
	assert.NotContains(t, s.TrackedStoresByChain, Chain2)
}
