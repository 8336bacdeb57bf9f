package settings

import (
	"context"
	"regexp"
	"slices"
	"strings"

	"github.com/sirupsen/logrus"

	"stockwatch/internal/kvstore"
	"stockwatch/pkg/models"
)

// Selection is the UI's current chain and the selected product per chain.
type Selection struct {
	Chain    models.ChainID            `json:"selectedChain"`
	Products map[models.ChainID]string `json:"selectedProducts"`
}

func (m *Manager) Tracked(ctx context.Context) (models.TrackedProducts, error) {
	tracked := models.TrackedProducts{}
	if _, err := m.store.Get(ctx, kvstore.KeyTrackedProductIDs, &tracked); err != nil {
		return nil, err
	}
	return tracked, nil
}

// productURL matches store links ending in /id/<product id>.
var productURL = regexp.MustCompile(`/id/([A-Za-z0-9-]+)/?$`)

// ParseProductRef accepts a bare product id or a product page URL.
func ParseProductRef(ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if strings.HasPrefix(ref, "https://") || strings.HasPrefix(ref, "http://") {
		m := productURL.FindStringSubmatch(ref)
		if m == nil {
			return "", &models.ConfigValidationError{Field: "productId", Reason: "invalid product URL format"}
		}
		return m[1], nil
	}
	if ref == "" {
		return "", &models.ConfigValidationError{Field: "productId", Reason: "required"}
	}
	return ref, nil
}

// AddProduct appends a product id (or product URL) to chain's tracked list.
// The first product tracked for a chain becomes its selected product.
func (m *Manager) AddProduct(ctx context.Context, chain models.ChainID, ref string) (string, error) {
	if _, err := models.ParseChain(string(chain)); err != nil {
		return "", err
	}
	id, err := ParseProductRef(ref)
	if err != nil {
		return "", err
	}

	m.writeMu.Lock()
	defer m.writeMu.Unlock()

	tracked, err := m.Tracked(ctx)
	if err != nil {
		return "", err
	}
	if slices.Contains(tracked[chain], id) {
		return "", models.ErrDuplicateProduct
	}
	tracked[chain] = append(tracked[chain], id)
	if err := m.store.Put(ctx, kvstore.KeyTrackedProductIDs, tracked); err != nil {
		return "", err
	}

	if len(tracked[chain]) == 1 {
		if err := m.selectProduct(ctx, chain, id); err != nil {
			return id, err
		}
	}
	m.log.WithFields(logrus.Fields{"chain": chain, "product_id": id}).Info("product tracked")
	return id, nil
}

// RemoveProduct drops id from chain's list. If it was selected, the first
// remaining product takes over.
func (m *Manager) RemoveProduct(ctx context.Context, chain models.ChainID, id string) error {
	if _, err := models.ParseChain(string(chain)); err != nil {
		return err
	}

	m.writeMu.Lock()
	defer m.writeMu.Unlock()

	tracked, err := m.Tracked(ctx)
	if err != nil {
		return err
	}
	i := slices.Index(tracked[chain], id)
	if i < 0 {
		return models.ErrProductNotTracked
	}
	tracked[chain] = slices.Delete(tracked[chain], i, i+1)
	if err := m.store.Put(ctx, kvstore.KeyTrackedProductIDs, tracked); err != nil {
		return err
	}

	sel, err := m.Selection(ctx)
	if err != nil {
		return err
	}
	if sel.Products[chain] == id {
		next := ""
		if len(tracked[chain]) > 0 {
			next = tracked[chain][0]
		}
		if err := m.selectProduct(ctx, chain, next); err != nil {
			return err
		}
	}
	m.log.WithFields(logrus.Fields{"chain": chain, "product_id": id}).Info("product untracked")
	return nil
}

func (m *Manager) Selection(ctx context.Context) (Selection, error) {
	sel := Selection{Chain: models.Chain1, Products: map[models.ChainID]string{}}
	if _, err := m.store.Get(ctx, kvstore.KeySelectedChain, &sel.Chain); err != nil {
		return Selection{}, err
	}
	if _, err := m.store.Get(ctx, kvstore.KeySelectedProducts, &sel.Products); err != nil {
		return Selection{}, err
	}
	if sel.Products == nil {
		sel.Products = map[models.ChainID]string{}
	}
	return sel, nil
}

// Select stores the UI selection. Products must be tracked on their chain;
// an empty id clears that chain's selection.
func (m *Manager) Select(ctx context.Context, sel Selection) error {
	if _, err := models.ParseChain(string(sel.Chain)); err != nil {
		return err
	}

	m.writeMu.Lock()
	defer m.writeMu.Unlock()

	tracked, err := m.Tracked(ctx)
	if err != nil {
		return err
	}
	for chain, id := range sel.Products {
		if _, err := models.ParseChain(string(chain)); err != nil {
			return err
		}
		if id != "" && !slices.Contains(tracked[chain], id) {
			return models.ErrProductNotTracked
		}
	}
	if err := m.store.Put(ctx, kvstore.KeySelectedChain, sel.Chain); err != nil {
		return err
	}
	if sel.Products == nil {
		sel.Products = map[models.ChainID]string{}
	}
	return m.store.Put(ctx, kvstore.KeySelectedProducts, sel.Products)
}

// selectProduct must be called with writeMu held.
func (m *Manager) selectProduct(ctx context.Context, chain models.ChainID, id string) error {
	products := map[models.ChainID]string{}
	if _, err := m.store.Get(ctx, kvstore.KeySelectedProducts, &products); err != nil {
		return err
	}
	if products == nil {
		products = map[models.ChainID]string{}
	}
	if id == "" {
		delete(products, chain)
	} else {
		products[chain] = id
	}
	return m.store.Put(ctx, kvstore.KeySelectedProducts, products)
}
