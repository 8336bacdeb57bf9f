package scheduler

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"stockwatch/internal/kvstore"
	"stockwatch/pkg/models"
)

// Registration is one persisted periodic task.
type Registration struct {
	Tag          string        `json:"tag"`
	MinInterval  time.Duration `json:"minInterval"`
	RegisteredAt time.Time     `json:"registeredAt"`
	LastRun      time.Time     `json:"lastRun"`
}

func (r Registration) due(now time.Time) bool {
	return now.Sub(r.LastRun) >= r.MinInterval
}

// HandlerFunc runs one firing of a periodic task.
type HandlerFunc func(ctx context.Context)

// Registry is a persistent periodic-task primitive. Registrations and
// their last run times live in the store, so a restarted daemon resumes the
// schedule and fires tags that became overdue while it was down.
type Registry struct {
	store      kvstore.Store
	resolution time.Duration
	log        *logrus.Entry
	now        func() time.Time

	mu       sync.Mutex
	regs     map[string]Registration
	handlers map[string]HandlerFunc
}

func NewRegistry(store kvstore.Store, resolution time.Duration, log *logrus.Entry) *Registry {
	if resolution <= 0 {
		resolution = 15 * time.Second
	}
	return &Registry{
		store:      store,
		resolution: resolution,
		log:        log,
		now:        time.Now,
		regs:       make(map[string]Registration),
		handlers:   make(map[string]HandlerFunc),
	}
}

// Load reads persisted registrations.
func (r *Registry) Load(ctx context.Context) error {
	regs := map[string]Registration{}
	if _, err := r.store.Get(ctx, kvstore.KeyPeriodicRegistrations, &regs); err != nil {
		return err
	}
	r.mu.Lock()
	r.regs = regs
	r.mu.Unlock()
	return nil
}

// Register adds tag with a minimum interval. The first firing is one
// interval from now.
func (r *Registry) Register(ctx context.Context, tag string, minInterval time.Duration) error {
	if minInterval <= 0 {
		return &models.ConfigValidationError{Field: "minInterval", Reason: fmt.Sprintf("must be positive, got %s", minInterval)}
	}
	now := r.now()

	r.mu.Lock()
	defer r.mu.Unlock()
	prev, had := r.regs[tag]
	r.regs[tag] = Registration{Tag: tag, MinInterval: minInterval, RegisteredAt: now, LastRun: now}
	if err := r.persistLocked(ctx); err != nil {
		if had {
			r.regs[tag] = prev
		} else {
			delete(r.regs, tag)
		}
		return err
	}
	return nil
}

func (r *Registry) Unregister(ctx context.Context, tag string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	prev, ok := r.regs[tag]
	if !ok {
		return nil
	}
	delete(r.regs, tag)
	if err := r.persistLocked(ctx); err != nil {
		r.regs[tag] = prev
		return err
	}
	return nil
}

// Tags lists registered tags in sorted order.
func (r *Registry) Tags() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	tags := make([]string, 0, len(r.regs))
	for t := range r.regs {
		tags = append(tags, t)
	}
	slices.Sort(tags)
	return tags
}

func (r *Registry) Get(tag string) (Registration, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	reg, ok := r.regs[tag]
	return reg, ok
}

// Handle binds fn to tag. Registrations without a handler never fire.
func (r *Registry) Handle(tag string, fn HandlerFunc) {
	r.mu.Lock()
	r.handlers[tag] = fn
	r.mu.Unlock()
}

// Run fires due tags every resolution until ctx is done. Overdue tags fire
// immediately on start.
func (r *Registry) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.resolution)
	defer ticker.Stop()

	r.Tick(ctx)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			r.Tick(ctx)
		}
	}
}

// Tick fires every due tag once.
func (r *Registry) Tick(ctx context.Context) {
	now := r.now()

	r.mu.Lock()
	type firing struct {
		tag string
		fn  HandlerFunc
	}
	var due []firing
	for tag, reg := range r.regs {
		fn, ok := r.handlers[tag]
		if !ok || !reg.due(now) {
			continue
		}
		reg.LastRun = now
		r.regs[tag] = reg
		due = append(due, firing{tag, fn})
	}
	if len(due) > 0 {
		if err := r.persistLocked(ctx); err != nil {
			r.log.WithError(err).Warn("persist periodic registrations")
		}
	}
	r.mu.Unlock()

	for _, f := range due {
		r.fire(ctx, f.tag, f.fn)
	}
}

func (r *Registry) fire(ctx context.Context, tag string, fn HandlerFunc) {
	defer func() {
		if rec := recover(); rec != nil {
			r.log.WithField("tag", tag).Errorf("periodic task panicked: %v", rec)
		}
	}()
	fn(ctx)
}

func (r *Registry) persistLocked(ctx context.Context) error {
	return r.store.Put(ctx, kvstore.KeyPeriodicRegistrations, r.regs)
}
