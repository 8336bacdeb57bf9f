package availability

import (
	"slices"
	"strings"

	"stockwatch/pkg/models"
)

// Scope resolves which store ids count toward AvailableAnywhere for one
// chain. A nil result means every store counts; an empty non-nil map means
// none do.
//
// Tracked stores come first: an empty list is "all stores" when
// AllStoresWhenEmpty is set and "no stores" otherwise. With the region
// filter on, the result is narrowed to stores whose name matches one of the
// region's store names.
func Scope(settings models.NotificationSettings, chain models.ChainID, region models.Region, stores []models.Store) map[string]struct{} {
	var scope map[string]struct{}

	tracked := settings.TrackedStoresByChain[chain]
	switch {
	case len(tracked) > 0:
		scope = make(map[string]struct{}, len(tracked))
		for _, id := range tracked {
			scope[id] = struct{}{}
		}
	case !settings.AllStoresWhenEmpty:
		scope = map[string]struct{}{}
	}

	if !settings.RegionFilterEnabled {
		return scope
	}

	inRegion := make(map[string]struct{})
	for _, s := range stores {
		if InRegion(s.Name, region) {
			inRegion[s.StoreID] = struct{}{}
		}
	}
	if scope == nil {
		return inRegion
	}
	out := make(map[string]struct{}, len(scope))
	for id := range scope {
		if _, ok := inRegion[id]; ok {
			out[id] = struct{}{}
		}
	}
	return out
}

// InRegion matches a vendor store name against the region's store names,
// ignoring case. Vendors prefix names ("AM Escazú"), so containment counts.
func InRegion(storeName string, region models.Region) bool {
	name := strings.ToLower(strings.TrimSpace(storeName))
	if name == "" {
		return false
	}
	return slices.ContainsFunc(region.StoreNames, func(r string) bool {
		r = strings.ToLower(strings.TrimSpace(r))
		return r != "" && strings.Contains(name, r)
	})
}

// Apply drops store entries the chain does not list (when the list is
// known) and recomputes AvailableAnywhere over scope.
func Apply(p models.Product, stores []models.Store, scope map[string]struct{}) models.Product {
	if len(stores) > 0 {
		known := make(map[string]struct{}, len(stores))
		for _, s := range stores {
			known[s.StoreID] = struct{}{}
		}
		detail := make(map[string]models.StoreDetail, len(p.StoreDetail))
		for id, d := range p.StoreDetail {
			if _, ok := known[id]; ok {
				detail[id] = d
			}
		}
		p.StoreDetail = detail
	}
	p.AvailableAnywhere = p.AnyInStock(scope)
	return p
}

// SortAvailableFirst is a stable partition: available products first, the
// input order kept inside each group.
func SortAvailableFirst(products []models.Product) {
	slices.SortStableFunc(products, func(a, b models.Product) int {
		switch {
		case a.AvailableAnywhere == b.AvailableAnywhere:
			return 0
		case a.AvailableAnywhere:
			return -1
		default:
			return 1
		}
	})
}
