// Package engine runs availability cycles: fetch, diff against the stored
// snapshot, notify on flips, persist the new snapshot.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"stockwatch/internal/kvstore"
	"stockwatch/pkg/models"
)

// ErrCycleInFlight is returned when a chain already has a running cycle.
// The trigger is dropped, not queued.
var ErrCycleInFlight = errors.New("availability cycle already in flight")

// State is the stage a chain's cycle is in.
type State string

const (
	StateIdle       State = "IDLE"
	StateFetching   State = "FETCHING"
	StateDiffing    State = "DIFFING"
	StateNotifying  State = "NOTIFYING"
	StatePersisting State = "PERSISTING"
)

type Fetcher interface {
	FetchAvailability(ctx context.Context, cfg models.CycleConfig) ([]models.Product, error)
}

type Notifier interface {
	RequestPermission(ctx context.Context) models.Permission
	Show(ctx context.Context, n models.Notification) error
}

type DisplayNamer interface {
	DisplayName(chain models.ChainID) string
}

// CycleResult describes one completed cycle.
type CycleResult struct {
	Chain     models.ChainID       `json:"chain"`
	Products  []models.Product     `json:"products"`
	Events    []models.ChangeEvent `json:"events"`
	Notified  int                  `json:"notified"`
	Skipped   string               `json:"notificationsSkipped,omitempty"`
	StartedAt time.Time            `json:"startedAt"`
	Duration  time.Duration        `json:"duration"`
}

// ChainStatus is the observable state of one chain.
type ChainStatus struct {
	State      State     `json:"state"`
	LastRunAt  time.Time `json:"lastRunAt,omitzero"`
	LastError  string    `json:"lastError,omitempty"`
	LastEvents int       `json:"lastEvents"`
}

type Engine struct {
	fetcher  Fetcher
	store    kvstore.Store
	notifier Notifier
	names    DisplayNamer
	log      *logrus.Entry
	now      func() time.Time

	mu     sync.Mutex
	status map[models.ChainID]ChainStatus
}

func New(fetcher Fetcher, store kvstore.Store, notifier Notifier, names DisplayNamer, log *logrus.Entry) *Engine {
	return &Engine{
		fetcher:  fetcher,
		store:    store,
		notifier: notifier,
		names:    names,
		log:      log,
		now:      time.Now,
		status:   make(map[models.ChainID]ChainStatus),
	}
}

// State reports the current stage of chain's cycle.
func (e *Engine) State(chain models.ChainID) State {
	e.mu.Lock()
	defer e.mu.Unlock()
	if st, ok := e.status[chain]; ok && st.State != "" {
		return st.State
	}
	return StateIdle
}

// Status returns a copy of every chain's status.
func (e *Engine) Status() map[models.ChainID]ChainStatus {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make(map[models.ChainID]ChainStatus, len(e.status))
	for c, st := range e.status {
		if st.State == "" {
			st.State = StateIdle
		}
		out[c] = st
	}
	return out
}

func (e *Engine) begin(chain models.ChainID) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	st := e.status[chain]
	if st.State != "" && st.State != StateIdle {
		return false
	}
	st.State = StateFetching
	e.status[chain] = st
	return true
}

func (e *Engine) setState(chain models.ChainID, s State) {
	e.mu.Lock()
	st := e.status[chain]
	st.State = s
	e.status[chain] = st
	e.mu.Unlock()
}

func (e *Engine) finish(chain models.ChainID, at time.Time, events int, err error) {
	e.mu.Lock()
	st := e.status[chain]
	st.State = StateIdle
	st.LastRunAt = at
	st.LastEvents = events
	st.LastError = ""
	if err != nil {
		st.LastError = err.Error()
	}
	e.status[chain] = st
	e.mu.Unlock()
}

// Snapshot reads chain's persisted baseline. A missing document is an empty
// snapshot.
func (e *Engine) Snapshot(ctx context.Context, chain models.ChainID) (models.Snapshot, error) {
	snap := models.Snapshot{}
	if _, err := e.store.Get(ctx, kvstore.SnapshotKey(chain), &snap); err != nil {
		return nil, err
	}
	return snap, nil
}

// RunCycle runs one availability cycle for cfg.Chain. The stored snapshot is
// only replaced when the whole cycle succeeds, as its last step.
func (e *Engine) RunCycle(ctx context.Context, cfg models.CycleConfig) (*CycleResult, error) {
	if _, err := models.ParseChain(string(cfg.Chain)); err != nil {
		return nil, err
	}
	if !e.begin(cfg.Chain) {
		return nil, ErrCycleInFlight
	}

	started := e.now()
	res, err := e.run(ctx, cfg, started)
	events := 0
	if res != nil {
		events = len(res.Events)
	}
	e.finish(cfg.Chain, started, events, err)
	return res, err
}

func (e *Engine) run(ctx context.Context, cfg models.CycleConfig, started time.Time) (*CycleResult, error) {
	chain := cfg.Chain
	log := e.log.WithField("chain", chain)

	products, err := e.fetcher.FetchAvailability(ctx, cfg)
	if err != nil {
		log.WithError(err).Warn("fetch failed, snapshot left untouched")
		return nil, fmt.Errorf("fetch %s: %w", chain, err)
	}

	e.setState(chain, StateDiffing)
	prev, err := e.Snapshot(ctx, chain)
	if err != nil {
		var perr *models.PersistenceError
		if !errors.As(err, &perr) || perr.Op != "decode" {
			return nil, err
		}
		// an unreadable baseline is replaced by this cycle's snapshot
		log.WithError(err).Warn("stored snapshot unreadable, starting from empty")
		prev = models.Snapshot{}
	}
	events := Diff(prev, products, chain)

	res := &CycleResult{
		Chain:     chain,
		Products:  products,
		Events:    events,
		StartedAt: started,
	}

	e.setState(chain, StateNotifying)
	res.Notified, res.Skipped = e.notify(ctx, cfg, events, log)

	e.setState(chain, StatePersisting)
	if err := e.store.Put(ctx, kvstore.SnapshotKey(chain), nextSnapshot(prev, products, cfg.ProductIDs)); err != nil {
		log.WithError(err).Error("persist snapshot failed, previous snapshot retained")
		return nil, err
	}

	res.Duration = e.now().Sub(started)
	log.WithFields(logrus.Fields{
		"products": len(products),
		"events":   len(events),
		"notified": res.Notified,
		"duration": res.Duration.String(),
	}).Info("availability cycle complete")
	return res, nil
}

// notify dispatches one notification per event. Sink failures are logged
// and never abort the cycle.
func (e *Engine) notify(ctx context.Context, cfg models.CycleConfig, events []models.ChangeEvent, log *logrus.Entry) (int, string) {
	if len(events) == 0 {
		return 0, ""
	}
	if !cfg.Settings.Enabled {
		return 0, "notifications disabled"
	}
	if e.notifier == nil {
		return 0, "no notifier"
	}
	if e.notifier.RequestPermission(ctx) == models.PermissionDenied {
		log.WithError(models.ErrPermissionDenied).Info("skipping notifications")
		return 0, models.ErrPermissionDenied.Error()
	}

	name := string(cfg.Chain)
	if e.names != nil {
		name = e.names.DisplayName(cfg.Chain)
	}
	sent := 0
	for _, ev := range events {
		n := NotificationFor(ev, name, e.now())
		if err := e.notifier.Show(ctx, n); err != nil {
			log.WithError(err).WithField("product_id", ev.ProductID).Warn("notification delivery failed")
			if errors.Is(err, models.ErrPermissionDenied) {
				return sent, models.ErrPermissionDenied.Error()
			}
			continue
		}
		sent++
	}
	return sent, ""
}

// ChainResult is one chain's outcome of RunAll.
type ChainResult struct {
	Chain  models.ChainID `json:"chain"`
	Result *CycleResult   `json:"result,omitempty"`
	Err    error          `json:"-"`
	Error  string         `json:"error,omitempty"`
}

// RunAll runs one cycle per config concurrently. A panicking cycle is
// recovered and reported as that chain's error.
func (e *Engine) RunAll(ctx context.Context, cfgs []models.CycleConfig) []ChainResult {
	out := make([]ChainResult, len(cfgs))
	var wg sync.WaitGroup
	for i, cfg := range cfgs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					err := fmt.Errorf("cycle panic: %v", r)
					e.log.WithField("chain", cfg.Chain).WithError(err).Error("availability cycle panicked")
					e.setState(cfg.Chain, StateIdle)
					out[i] = ChainResult{Chain: cfg.Chain, Err: err, Error: err.Error()}
				}
			}()
			res, err := e.RunCycle(ctx, cfg)
			out[i] = ChainResult{Chain: cfg.Chain, Result: res, Err: err}
			if err != nil {
				out[i].Error = err.Error()
			}
		}()
	}
	wg.Wait()
	return out
}
