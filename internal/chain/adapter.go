// Package chain maps each retailer's proxy payloads into the chain
// independent models.Product. Adapters are pure: they build requests and
// decode responses but never perform I/O themselves.
package chain

import (
	"slices"

	"stockwatch/internal/proxy"
	"stockwatch/pkg/models"
)

// Adapter is implemented once per supported chain.
type Adapter interface {
	Chain() models.ChainID
	DisplayName() string

	StoresRequest() proxy.Request
	ParseStores(raw []byte) ([]models.Store, error)

	AvailabilityRequest(productID string) proxy.Request
	// Normalize decodes one availability response. AvailableAnywhere is
	// computed over every store; callers narrow it to their store scope.
	Normalize(raw []byte) (*models.Product, error)
}

// Recommender is implemented by chains whose proxy exposes related products.
type Recommender interface {
	RecommendationsRequest(productID string) proxy.Request
	// ParseRecommendations drops hits whose id is in exclude.
	ParseRecommendations(raw []byte, exclude []string) ([]models.Product, error)
}

// Registry looks adapters up by chain id.
type Registry struct {
	adapters map[models.ChainID]Adapter
}

func NewRegistry(adapters ...Adapter) *Registry {
	r := &Registry{adapters: make(map[models.ChainID]Adapter, len(adapters))}
	for _, a := range adapters {
		r.adapters[a.Chain()] = a
	}
	return r
}

// DefaultRegistry wires the two supported chains. names overrides display
// names; locale selects localized vendor attributes.
func DefaultRegistry(names map[models.ChainID]string, locale string) *Registry {
	return NewRegistry(
		NewAutoMercado(names[models.Chain1]),
		NewPriceSmart(names[models.Chain2], locale),
	)
}

func (r *Registry) Get(chain models.ChainID) (Adapter, error) {
	a, ok := r.adapters[chain]
	if !ok {
		return nil, &models.UnsupportedChainError{Chain: string(chain)}
	}
	return a, nil
}

// Chains returns the registered chain ids in a stable order.
func (r *Registry) Chains() []models.ChainID {
	out := make([]models.ChainID, 0, len(r.adapters))
	for c := range r.adapters {
		out = append(out, c)
	}
	slices.Sort(out)
	return out
}

// Normalize dispatches raw to the adapter registered for chain.
func Normalize(r *Registry, raw []byte, chain models.ChainID) (*models.Product, error) {
	a, err := r.Get(chain)
	if err != nil {
		return nil, err
	}
	return a.Normalize(raw)
}

func finish(p *models.Product) *models.Product {
	if p.StoreDetail == nil {
		p.StoreDetail = map[string]models.StoreDetail{}
	}
	p.AvailableAnywhere = p.AnyInStock(nil)
	return p
}
