package chain

import (
	"encoding/json"
	"net/http"
	"net/url"
	"slices"
	"strings"

	"stockwatch/internal/proxy"
	"stockwatch/pkg/models"
)

const (
	algoliaIndex       = "Product_CatalogueV2"
	recommendModel     = "related-products"
	autoMercadoDisplay = "Auto Mercado"
)

// facets requested with every availability lookup; the proxy forwards
// them to Algolia untouched.
var algoliaFacets = []string{
	"marca", "addedSugarFree", "fiberSource", "lactoseFree", "lfGlutemFree",
	"lfOrganic", "lfVegan", "lowFat", "lowSodium", "preservativeFree",
	"sweetenersFree", "parentProductid", "parentProductid2",
	"parentProductid_URL", "catecom",
}

// AutoMercado is chain1. Its proxy fronts an Algolia product index.
type AutoMercado struct {
	name string
}

func NewAutoMercado(displayName string) *AutoMercado {
	if displayName == "" {
		displayName = autoMercadoDisplay
	}
	return &AutoMercado{name: displayName}
}

func (a *AutoMercado) Chain() models.ChainID { return models.Chain1 }
func (a *AutoMercado) DisplayName() string   { return a.name }

func (a *AutoMercado) StoresRequest() proxy.Request {
	return proxy.Request{
		Method: http.MethodGet,
		Path:   "/stores",
		Query:  url.Values{"chainId": {string(models.Chain1)}},
	}
}

type amStoresResponse struct {
	Data *[]struct {
		StoreID flexString `json:"storeid"`
		Store   string     `json:"store"`
	} `json:"data"`
}

func (a *AutoMercado) ParseStores(raw []byte) ([]models.Store, error) {
	var resp amStoresResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, a.normErr("$", err.Error())
	}
	if resp.Data == nil {
		return nil, a.normErr("data", "missing store list")
	}
	stores := make([]models.Store, 0, len(*resp.Data))
	for _, s := range *resp.Data {
		if s.StoreID == "" {
			continue
		}
		stores = append(stores, models.Store{StoreID: string(s.StoreID), Name: strings.TrimSpace(s.Store)})
	}
	return stores, nil
}

type algoliaQuery struct {
	IndexName      string `json:"indexName"`
	Params         string `json:"params"`
	ClickAnalytics bool   `json:"clickAnalytics"`
}

func (a *AutoMercado) AvailabilityRequest(productID string) proxy.Request {
	filter, _ := json.Marshal([]string{"productID:" + productID})
	facets, _ := json.Marshal(algoliaFacets)
	params := "facetFilters=" + url.QueryEscape(string(filter)) + "&facets=" + url.QueryEscape(string(facets))

	return proxy.Request{
		Method: http.MethodPost,
		Path:   "/availability",
		Body: map[string]any{
			"requests": []algoliaQuery{{
				IndexName:      algoliaIndex,
				Params:         params,
				ClickAnalytics: true,
			}},
		},
	}
}

type amHit struct {
	ProductID       flexString              `json:"productID"`
	EcomDescription string                  `json:"ecomDescription"`
	ImageURL        string                  `json:"imageUrl"`
	StoreDetail     map[string]amStoreEntry `json:"storeDetail"`
}

type amStoreEntry struct {
	// sic: the vendor spells it this way
	HasInventory    flexBool    `json:"hasInvontory"`
	BasePrice       flexDecimal `json:"basePrice"`
	UnitPrice       flexDecimal `json:"uomPrice"`
	HasDiscount     flexBool    `json:"havedDiscount"`
	PercentDiscount flexNumber  `json:"percentDiscount"`
	Hall            flexString  `json:"hall"`
	Quantity        flexNumber  `json:"quantity"`
}

type amSearchResponse struct {
	Results []struct {
		Hits *[]amHit `json:"hits"`
	} `json:"results"`
}

func (a *AutoMercado) Normalize(raw []byte) (*models.Product, error) {
	var resp amSearchResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, a.normErr("$", err.Error())
	}
	if len(resp.Results) == 0 {
		return nil, a.normErr("results", "no results")
	}
	hits := resp.Results[0].Hits
	if hits == nil || len(*hits) == 0 {
		return nil, a.normErr("results[0].hits", "no hits for product")
	}
	return a.fromHit((*hits)[0])
}

func (a *AutoMercado) fromHit(h amHit) (*models.Product, error) {
	if h.ProductID == "" {
		return nil, a.normErr("results[0].hits[0].productID", "missing")
	}
	p := &models.Product{
		ProductID:   string(h.ProductID),
		Name:        strings.TrimSpace(h.EcomDescription),
		ImageURL:    h.ImageURL,
		StoreDetail: make(map[string]models.StoreDetail, len(h.StoreDetail)),
	}
	for storeID, d := range h.StoreDetail {
		p.StoreDetail[storeID] = models.StoreDetail{
			HasInventory:    bool(d.HasInventory),
			BasePrice:       d.BasePrice.NullDecimal,
			UnitPrice:       d.UnitPrice.NullDecimal,
			HasDiscount:     bool(d.HasDiscount),
			PercentDiscount: d.PercentDiscount.NumberOrNA,
			Hall:            models.Text(string(d.Hall)),
			Quantity:        d.Quantity.NumberOrNA,
		}
	}
	return finish(p), nil
}

func (a *AutoMercado) RecommendationsRequest(productID string) proxy.Request {
	return proxy.Request{
		Method: http.MethodPost,
		Path:   "/recommendations",
		Body: map[string]any{
			"requests": []map[string]any{{
				"indexName":       algoliaIndex,
				"objectID":        productID,
				"queryParameters": map[string]any{"clickAnalytics": true},
				"model":           recommendModel,
				"threshold":       0,
			}},
		},
	}
}

func (a *AutoMercado) ParseRecommendations(raw []byte, exclude []string) ([]models.Product, error) {
	var resp amSearchResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, a.normErr("$", err.Error())
	}
	if len(resp.Results) == 0 || resp.Results[0].Hits == nil {
		return []models.Product{}, nil
	}

	out := make([]models.Product, 0, len(*resp.Results[0].Hits))
	for _, h := range *resp.Results[0].Hits {
		if slices.Contains(exclude, string(h.ProductID)) {
			continue
		}
		// hits without inventory data are not products we can track
		if h.StoreDetail == nil {
			continue
		}
		p, err := a.fromHit(h)
		if err != nil {
			continue
		}
		out = append(out, *p)
	}
	return out, nil
}

func (a *AutoMercado) normErr(path, reason string) error {
	return &models.NormalizationError{Chain: models.Chain1, Path: path, Reason: reason}
}
