package models

import "slices"

// NotificationSettings is owned by the settings manager and read by the
// scheduler and the diff engine.
type NotificationSettings struct {
	Enabled         bool `json:"enabled"`
	IntervalMinutes int  `json:"intervalMinutes"`
	// TrackedStoresByChain restricts which stores count toward availability.
	TrackedStoresByChain map[ChainID][]string `json:"trackedStoresByChain"`
	// AllStoresWhenEmpty decides what an empty tracked-store list means:
	// true counts every store, false counts none.
	AllStoresWhenEmpty  bool `json:"allStoresWhenEmpty"`
	RegionFilterEnabled bool `json:"regionFilterEnabled"`
}

// Clone returns a deep copy so a running cycle never observes a later save.
func (s NotificationSettings) Clone() NotificationSettings {
	out := s
	out.TrackedStoresByChain = make(map[ChainID][]string, len(s.TrackedStoresByChain))
	for chain, ids := range s.TrackedStoresByChain {
		out.TrackedStoresByChain[chain] = slices.Clone(ids)
	}
	return out
}

// TrackedProducts maps a chain to its tracked product ids in insertion order.
type TrackedProducts map[ChainID][]string

// Region describes the stores the region filter keeps and the locale used
// for localized vendor attributes.
type Region struct {
	Locale     string   `json:"locale" yaml:"locale"`
	StoreNames []string `json:"storeNames" yaml:"storeNames"`
}

// CycleConfig is everything one availability cycle needs. It is built fresh
// for each invocation so a cycle never reads shared mutable state.
type CycleConfig struct {
	Chain      ChainID
	ProxyURL   string
	ProductIDs []string
	Settings   NotificationSettings
	Region     Region
}
