// Package availability fetches the current availability of a chain's
// tracked products through the proxy and normalizes it.
package availability

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"stockwatch/internal/chain"
	"stockwatch/internal/proxy"
	"stockwatch/pkg/models"
)

// ErrFetchFailed aborts a cycle: the store list could not be fetched, or
// every product request failed at the network level.
var ErrFetchFailed = errors.New("availability fetch failed")

type Fetcher struct {
	client      *proxy.Client
	registry    *chain.Registry
	concurrency int
	log         *logrus.Entry

	mu     sync.RWMutex
	stores map[models.ChainID][]models.Store
}

func NewFetcher(client *proxy.Client, registry *chain.Registry, concurrency int, log *logrus.Entry) *Fetcher {
	if concurrency <= 0 {
		concurrency = 4
	}
	return &Fetcher{
		client:      client,
		registry:    registry,
		concurrency: concurrency,
		log:         log,
		stores:      make(map[models.ChainID][]models.Store),
	}
}

// Stores fetches the chain's store list. The latest successful list
// replaces the cached one.
func (f *Fetcher) Stores(ctx context.Context, chainID models.ChainID, proxyURL string) ([]models.Store, error) {
	adapter, err := f.registry.Get(chainID)
	if err != nil {
		return nil, err
	}
	raw, err := f.client.WithBaseURL(proxyURL).Do(ctx, adapter.StoresRequest())
	if err != nil {
		return nil, fmt.Errorf("fetch %s stores: %w", chainID, err)
	}
	stores, err := adapter.ParseStores(raw)
	if err != nil {
		return nil, fmt.Errorf("parse %s stores: %w", chainID, err)
	}

	f.mu.Lock()
	f.stores[chainID] = stores
	f.mu.Unlock()
	return stores, nil
}

// CachedStores returns the last fetched store list, or nil.
func (f *Fetcher) CachedStores(chainID models.ChainID) []models.Store {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return slices.Clone(f.stores[chainID])
}

// FetchAvailability runs one fetch for cfg.Chain. Products whose request or
// normalization fails are dropped with a warning and not retried. The result
// lists available products first.
func (f *Fetcher) FetchAvailability(ctx context.Context, cfg models.CycleConfig) ([]models.Product, error) {
	adapter, err := f.registry.Get(cfg.Chain)
	if err != nil {
		return nil, err
	}
	log := f.log.WithField("chain", cfg.Chain)

	if len(cfg.ProductIDs) == 0 {
		return []models.Product{}, nil
	}

	stores, err := f.Stores(ctx, cfg.Chain, cfg.ProxyURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFetchFailed, err)
	}
	scope := Scope(cfg.Settings, cfg.Chain, cfg.Region, stores)
	client := f.client.WithBaseURL(cfg.ProxyURL)

	results := make([]*models.Product, len(cfg.ProductIDs))
	var (
		networkFailures atomic.Int32
		errMu           sync.Mutex
		lastErr         error
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.concurrency)
	for i, id := range cfg.ProductIDs {
		g.Go(func() error {
			raw, err := client.Do(gctx, adapter.AvailabilityRequest(id))
			if err != nil {
				networkFailures.Add(1)
				errMu.Lock()
				lastErr = err
				errMu.Unlock()
				log.WithError(err).WithField("product_id", id).Warn("availability request failed, product dropped")
				return nil
			}
			p, err := adapter.Normalize(raw)
			if err != nil {
				log.WithError(err).WithField("product_id", id).Warn("unexpected payload, product dropped")
				return nil
			}
			applied := Apply(*p, stores, scope)
			results[i] = &applied
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if int(networkFailures.Load()) == len(cfg.ProductIDs) {
		return nil, fmt.Errorf("%w: all %d product requests failed: %w", ErrFetchFailed, len(cfg.ProductIDs), lastErr)
	}

	products := make([]models.Product, 0, len(results))
	for _, p := range results {
		if p != nil {
			products = append(products, *p)
		}
	}
	SortAvailableFirst(products)

	log.WithFields(logrus.Fields{
		"requested": len(cfg.ProductIDs),
		"fetched":   len(products),
		"available": countAvailable(products),
	}).Debug("availability fetched")
	return products, nil
}

// Recommendations returns related products for chains that support them,
// skipping ids in exclude.
func (f *Fetcher) Recommendations(ctx context.Context, chainID models.ChainID, proxyURL, productID string, exclude []string) ([]models.Product, error) {
	adapter, err := f.registry.Get(chainID)
	if err != nil {
		return nil, err
	}
	rec, ok := adapter.(chain.Recommender)
	if !ok {
		return []models.Product{}, nil
	}
	raw, err := f.client.WithBaseURL(proxyURL).Do(ctx, rec.RecommendationsRequest(productID))
	if err != nil {
		return nil, fmt.Errorf("fetch recommendations: %w", err)
	}
	return rec.ParseRecommendations(raw, exclude)
}

func countAvailable(products []models.Product) int {
	n := 0
	for _, p := range products {
		if p.AvailableAnywhere {
			n++
		}
	}
	return n
}
