package chain

import (
	"encoding/json"
	"net/http"
	"strings"

	"stockwatch/internal/proxy"
	"stockwatch/pkg/models"
)

const (
	priceSmartDisplay = "PriceSmart"
	// priceSmartChannel is the distribution channel the product query runs under.
	priceSmartChannel = "5dc40d0e-e2c3-4c3b-9ed5-89fd11634e56"
	// priceSmartProbeSKU is a product stocked chain wide; its availability
	// channels double as the store list.
	priceSmartProbeSKU = "755713"
	localizedImagesKey = "localized_images"
)

// PriceSmart is chain2. Its proxy forwards commercetools product queries.
type PriceSmart struct {
	name   string
	locale string
}

func NewPriceSmart(displayName, locale string) *PriceSmart {
	if displayName == "" {
		displayName = priceSmartDisplay
	}
	if locale == "" {
		locale = "es-CR"
	}
	return &PriceSmart{name: displayName, locale: locale}
}

func (p *PriceSmart) Chain() models.ChainID { return models.Chain2 }
func (p *PriceSmart) DisplayName() string   { return p.name }

func (p *PriceSmart) productRequest(sku string) proxy.Request {
	return proxy.Request{
		Method: http.MethodPost,
		Path:   "/pricesmart-availability",
		Body: []any{
			map[string]any{"skus": []string{sku}},
			map[string]any{
				"products": "getProductBySKU",
				"metadata": map[string]string{"channelId": priceSmartChannel},
			},
		},
	}
}

func (p *PriceSmart) StoresRequest() proxy.Request { return p.productRequest(priceSmartProbeSKU) }

func (p *PriceSmart) AvailabilityRequest(productID string) proxy.Request {
	return p.productRequest(productID)
}

type psResponse struct {
	Data *struct {
		Products *struct {
			Results []psProduct `json:"results"`
		} `json:"products"`
	} `json:"data"`
}

type psProduct struct {
	ID         string `json:"id"`
	MasterData *struct {
		Current *struct {
			Name          localizedText `json:"name"`
			MasterVariant *psVariant    `json:"masterVariant"`
		} `json:"current"`
	} `json:"masterData"`
}

type psVariant struct {
	SKU   flexString `json:"sku"`
	Price *struct {
		Value struct {
			CentAmount flexDecimal `json:"centAmount"`
		} `json:"value"`
	} `json:"price"`
	Images []struct {
		URL string `json:"url"`
	} `json:"images"`
	AttributesRaw []struct {
		Name  string          `json:"name"`
		Value json.RawMessage `json:"value"`
	} `json:"attributesRaw"`
	Availability *struct {
		Channels *struct {
			Results []psChannel `json:"results"`
		} `json:"channels"`
	} `json:"availability"`
}

type psChannel struct {
	Channel struct {
		ID             string `json:"id"`
		NameAllLocales []struct {
			Locale string `json:"locale"`
			Value  string `json:"value"`
		} `json:"nameAllLocales"`
	} `json:"channel"`
	Availability *struct {
		IsOnStock         flexBool   `json:"isOnStock"`
		AvailableQuantity flexNumber `json:"availableQuantity"`
	} `json:"availability"`
	// older payloads carry the flag on the channel entry itself
	IsOnStock *flexBool `json:"isOnStock"`
}

func (c psChannel) inStock() bool {
	if c.Availability != nil && bool(c.Availability.IsOnStock) {
		return true
	}
	return c.IsOnStock != nil && bool(*c.IsOnStock)
}

func (c psChannel) name(locale string) string {
	names := c.Channel.NameAllLocales
	for _, n := range names {
		if n.Locale == locale {
			return n.Value
		}
	}
	if len(names) > 0 {
		return names[0].Value
	}
	return ""
}

// variant walks data.products.results[0].masterData.current.masterVariant.
func (p *PriceSmart) variant(raw []byte) (psProduct, string, *psVariant, error) {
	var resp psResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return psProduct{}, "", nil, p.normErr("$", err.Error())
	}
	switch {
	case resp.Data == nil:
		return psProduct{}, "", nil, p.normErr("data", "missing")
	case resp.Data.Products == nil || len(resp.Data.Products.Results) == 0:
		return psProduct{}, "", nil, p.normErr("data.products.results", "no product found")
	}
	prod := resp.Data.Products.Results[0]
	if prod.MasterData == nil || prod.MasterData.Current == nil {
		return psProduct{}, "", nil, p.normErr("data.products.results[0].masterData.current", "missing")
	}
	cur := prod.MasterData.Current
	if cur.MasterVariant == nil {
		return psProduct{}, "", nil, p.normErr("masterData.current.masterVariant", "missing")
	}
	v := cur.MasterVariant
	if v.Availability == nil || v.Availability.Channels == nil || v.Availability.Channels.Results == nil {
		return psProduct{}, "", nil, p.normErr("masterVariant.availability.channels.results", "missing")
	}
	return prod, cur.Name.In(p.locale), v, nil
}

func (p *PriceSmart) ParseStores(raw []byte) ([]models.Store, error) {
	_, _, v, err := p.variant(raw)
	if err != nil {
		return nil, err
	}
	stores := make([]models.Store, 0, len(v.Availability.Channels.Results))
	for _, c := range v.Availability.Channels.Results {
		if c.Channel.ID == "" {
			continue
		}
		stores = append(stores, models.Store{StoreID: c.Channel.ID, Name: strings.TrimSpace(c.name(p.locale))})
	}
	return stores, nil
}

func (p *PriceSmart) Normalize(raw []byte) (*models.Product, error) {
	prod, name, v, err := p.variant(raw)
	if err != nil {
		return nil, err
	}

	// the tracked id is the SKU; the product id is only a fallback
	id := string(v.SKU)
	if id == "" {
		id = prod.ID
	}
	if id == "" {
		return nil, p.normErr("masterVariant.sku", "missing")
	}

	out := &models.Product{
		ProductID:   id,
		Name:        strings.TrimSpace(name),
		ImageURL:    p.image(v),
		StoreDetail: make(map[string]models.StoreDetail, len(v.Availability.Channels.Results)),
	}

	var price flexDecimal
	if v.Price != nil {
		price = v.Price.Value.CentAmount
	}
	for _, c := range v.Availability.Channels.Results {
		if c.Channel.ID == "" {
			continue
		}
		d := models.StoreDetail{
			HasInventory: c.inStock(),
			BasePrice:    centsToUnits(price),
			UnitPrice:    centsToUnits(price),
		}
		if c.Availability != nil {
			d.Quantity = c.Availability.AvailableQuantity.NumberOrNA
		}
		out.StoreDetail[c.Channel.ID] = d
	}
	return finish(out), nil
}

// image takes images[0].url, then the localized_images attribute for the
// configured locale.
func (p *PriceSmart) image(v *psVariant) string {
	if len(v.Images) > 0 && v.Images[0].URL != "" {
		return v.Images[0].URL
	}
	for _, attr := range v.AttributesRaw {
		if attr.Name != localizedImagesKey {
			continue
		}
		var byLocale []map[string]any
		if err := json.Unmarshal(attr.Value, &byLocale); err != nil || len(byLocale) == 0 {
			return ""
		}
		if s, ok := byLocale[0][p.locale].(string); ok {
			return s
		}
		return ""
	}
	return ""
}

func (p *PriceSmart) normErr(path, reason string) error {
	return &models.NormalizationError{Chain: models.Chain2, Path: path, Reason: reason}
}
