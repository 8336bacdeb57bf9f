// Package settings owns the user's notification settings, tracked
// products and selection state, and builds the per-cycle configuration
// handed to the engine.
package settings

import (
	"context"
	"fmt"
	"net/url"
	"slices"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"stockwatch/internal/kvstore"
	"stockwatch/pkg/models"
)

// Listener is called after a save has been persisted.
type Listener func(ctx context.Context, s models.NotificationSettings)

type Options struct {
	Defaults models.NotificationSettings
	Region   models.Region
	ProxyURL string
}

type Manager struct {
	store    kvstore.Store
	defaults models.NotificationSettings
	region   models.Region
	log      *logrus.Entry

	// serializes read-modify-write of tracked products and selection
	writeMu sync.Mutex

	mu        sync.RWMutex
	proxyURL  string
	listeners map[int]Listener
	nextID    int
}

func NewManager(store kvstore.Store, opts Options, log *logrus.Entry) *Manager {
	return &Manager{
		store:     store,
		defaults:  opts.Defaults.Clone(),
		region:    opts.Region,
		log:       log,
		proxyURL:  strings.TrimRight(opts.ProxyURL, "/"),
		listeners: make(map[int]Listener),
	}
}

// Load returns the stored settings, or the defaults when none were saved.
func (m *Manager) Load(ctx context.Context) (models.NotificationSettings, error) {
	var s models.NotificationSettings
	found, err := m.store.Get(ctx, kvstore.KeyNotificationSettings, &s)
	if err != nil {
		return models.NotificationSettings{}, err
	}
	if !found {
		return m.defaults.Clone(), nil
	}
	if s.TrackedStoresByChain == nil {
		s.TrackedStoresByChain = map[models.ChainID][]string{}
	}
	return s, nil
}

// Validate rejects settings the scheduler or engine cannot run with.
func Validate(s models.NotificationSettings) error {
	if s.IntervalMinutes < 1 {
		return &models.ConfigValidationError{Field: "intervalMinutes", Reason: "must be a positive integer"}
	}
	for chain, stores := range s.TrackedStoresByChain {
		if _, err := models.ParseChain(string(chain)); err != nil {
			return &models.ConfigValidationError{Field: "trackedStoresByChain", Reason: err.Error()}
		}
		for _, id := range stores {
			if strings.TrimSpace(id) == "" {
				return &models.ConfigValidationError{Field: "trackedStoresByChain." + string(chain), Reason: "empty store id"}
			}
		}
	}
	return nil
}

// Save validates s, waits for the write and then tells every listener.
// A rejected save leaves the stored settings untouched.
func (m *Manager) Save(ctx context.Context, s models.NotificationSettings) error {
	if err := Validate(s); err != nil {
		return err
	}
	s = s.Clone()
	for chain, stores := range s.TrackedStoresByChain {
		s.TrackedStoresByChain[chain] = dedupe(stores)
	}
	if err := m.store.Put(ctx, kvstore.KeyNotificationSettings, s); err != nil {
		return err
	}

	m.log.WithFields(logrus.Fields{
		"enabled":  s.Enabled,
		"interval": s.IntervalMinutes,
		"region":   s.RegionFilterEnabled,
	}).Info("notification settings saved")

	m.mu.RLock()
	ids := make([]int, 0, len(m.listeners))
	for id := range m.listeners {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	listeners := make([]Listener, 0, len(ids))
	for _, id := range ids {
		listeners = append(listeners, m.listeners[id])
	}
	m.mu.RUnlock()

	for _, l := range listeners {
		l(ctx, s.Clone())
	}
	return nil
}

// Subscribe registers l for saved settings. The returned func removes it.
func (m *Manager) Subscribe(l Listener) func() {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.listeners[id] = l
	m.mu.Unlock()
	return func() {
		m.mu.Lock()
		delete(m.listeners, id)
		m.mu.Unlock()
	}
}

func (m *Manager) ProxyURL() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.proxyURL
}

// SetProxyURL replaces the proxy base URL used by the next cycle.
func (m *Manager) SetProxyURL(raw string) error {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return &models.ConfigValidationError{Field: "proxyUrl", Reason: fmt.Sprintf("%q is not an http(s) URL", raw)}
	}
	m.mu.Lock()
	m.proxyURL = strings.TrimRight(raw, "/")
	m.mu.Unlock()
	m.log.WithField("proxy_url", raw).Info("proxy url updated")
	return nil
}

func (m *Manager) Region() models.Region { return m.region }

// CycleConfig snapshots everything one cycle of chain needs.
func (m *Manager) CycleConfig(ctx context.Context, chain models.ChainID) (models.CycleConfig, error) {
	if _, err := models.ParseChain(string(chain)); err != nil {
		return models.CycleConfig{}, err
	}
	s, err := m.Load(ctx)
	if err != nil {
		return models.CycleConfig{}, err
	}
	tracked, err := m.Tracked(ctx)
	if err != nil {
		return models.CycleConfig{}, err
	}
	return models.CycleConfig{
		Chain:      chain,
		ProxyURL:   m.ProxyURL(),
		ProductIDs: slices.Clone(tracked[chain]),
		Settings:   s.Clone(),
		Region:     models.Region{Locale: m.region.Locale, StoreNames: slices.Clone(m.region.StoreNames)},
	}, nil
}

// CycleConfigs returns one config per chain that has tracked products.
func (m *Manager) CycleConfigs(ctx context.Context) ([]models.CycleConfig, error) {
	tracked, err := m.Tracked(ctx)
	if err != nil {
		return nil, err
	}
	var out []models.CycleConfig
	for _, chain := range models.Chains {
		if len(tracked[chain]) == 0 {
			continue
		}
		cfg, err := m.CycleConfig(ctx, chain)
		if err != nil {
			return nil, err
		}
		out = append(out, cfg)
	}
	return out, nil
}

func dedupe(ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id != "" && !slices.Contains(out, id) {
			out = append(out, id)
		}
	}
	return out
}
