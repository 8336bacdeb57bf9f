// Package scheduler runs the availability job periodically, preferring the
// persistent Registry and falling back to an in-process timer.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"stockwatch/pkg/models"
)

// Tag names the availability job's periodic registration.
const Tag = "check-product-availability"

const (
	MechanismPeriodic = "periodic"
	// MechanismTimer only fires while the daemon is running; missed
	// intervals are not caught up.
	MechanismTimer = "timer"
)

type Options struct {
	// Unit is the length of one interval step, a minute in production.
	Unit time.Duration
	// BaseContext bounds the timer loop; request contexts passed to
	// Start/Reconfigure only cover the registration itself.
	BaseContext context.Context
}

type Status struct {
	Running         bool     `json:"running"`
	Mechanism       string   `json:"mechanism"`
	IntervalMinutes int      `json:"intervalMinutes"`
	Tags            []string `json:"tags"`
	LastRun         string   `json:"lastRun,omitempty"`
}

type Scheduler struct {
	registry *Registry
	job      HandlerFunc
	unit     time.Duration
	base     context.Context
	log      *logrus.Entry

	mu       sync.Mutex
	running  bool
	interval int
	stopTick context.CancelFunc
	tickDone chan struct{}
	lastRun  time.Time
}

// New returns a scheduler for job. A nil registry selects the timer
// fallback.
func New(registry *Registry, job HandlerFunc, opts Options, log *logrus.Entry) *Scheduler {
	if opts.Unit <= 0 {
		opts.Unit = time.Minute
	}
	if opts.BaseContext == nil {
		opts.BaseContext = context.Background()
	}
	s := &Scheduler{
		registry: registry,
		unit:     opts.Unit,
		base:     opts.BaseContext,
		log:      log,
	}
	s.job = s.wrap(job)
	if registry != nil {
		registry.Handle(Tag, s.job)
	}
	return s
}

// wrap records the last run and keeps a panicking job from killing the loop.
func (s *Scheduler) wrap(job HandlerFunc) HandlerFunc {
	return func(ctx context.Context) {
		s.mu.Lock()
		s.lastRun = time.Now()
		s.mu.Unlock()
		defer func() {
			if r := recover(); r != nil {
				s.log.Errorf("scheduled job panicked: %v", r)
			}
		}()
		job(ctx)
	}
}

func (s *Scheduler) Mechanism() string {
	if s.registry != nil {
		return MechanismPeriodic
	}
	return MechanismTimer
}

func validInterval(minutes int) error {
	if minutes <= 0 {
		return &models.ConfigValidationError{Field: "intervalMinutes", Reason: fmt.Sprintf("must be > 0, got %d", minutes)}
	}
	return nil
}

// Start schedules the job every intervalMinutes. Starting a running
// scheduler reconfigures it.
func (s *Scheduler) Start(ctx context.Context, intervalMinutes int) error {
	if err := validInterval(intervalMinutes); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.restartLocked(ctx, intervalMinutes)
}

// Reconfigure tears the current registration down and recreates it with
// the new interval. An invalid interval leaves the current schedule as is.
func (s *Scheduler) Reconfigure(ctx context.Context, intervalMinutes int) error {
	return s.Start(ctx, intervalMinutes)
}

func (s *Scheduler) restartLocked(ctx context.Context, minutes int) error {
	if err := s.stopLocked(ctx); err != nil {
		return err
	}
	every := time.Duration(minutes) * s.unit

	if s.registry != nil {
		if err := s.registry.Register(ctx, Tag, every); err != nil {
			return err
		}
	} else {
		tickCtx, cancel := context.WithCancel(s.base)
		done := make(chan struct{})
		s.stopTick, s.tickDone = cancel, done
		go s.tick(tickCtx, every, done)
	}

	s.running = true
	s.interval = minutes
	s.log.WithFields(logrus.Fields{
		"mechanism": s.Mechanism(),
		"interval":  minutes,
	}).Info("availability checks scheduled")
	return nil
}

func (s *Scheduler) tick(ctx context.Context, every time.Duration, done chan struct{}) {
	defer close(done)
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.job(ctx)
		}
	}
}

// Stop removes the schedule. A cycle already running is left to finish.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return nil
	}
	if err := s.stopLocked(ctx); err != nil {
		return err
	}
	s.log.Info("availability checks stopped")
	return nil
}

func (s *Scheduler) stopLocked(ctx context.Context) error {
	if s.registry != nil {
		if err := s.registry.Unregister(ctx, Tag); err != nil {
			return err
		}
	}
	if s.stopTick != nil {
		s.stopTick()
		s.stopTick = nil
		s.tickDone = nil
	}
	s.running = false
	return nil
}

// ApplySettings follows a saved settings document: disabled settings stop
// the schedule, enabled ones (re)start it with the new interval.
func (s *Scheduler) ApplySettings(ctx context.Context, settings models.NotificationSettings) error {
	if !settings.Enabled {
		return s.Stop(ctx)
	}
	return s.Reconfigure(ctx, settings.IntervalMinutes)
}

// Resume is ApplySettings for daemon start. A registration persisted by a
// previous run is adopted when its interval still matches, so a run that
// became overdue while the daemon was down fires on the next registry tick.
// Call Registry.Load first.
func (s *Scheduler) Resume(ctx context.Context, settings models.NotificationSettings) error {
	if s.registry != nil {
		reg, ok := s.registry.Get(Tag)
		switch {
		case ok && !settings.Enabled:
			return s.registry.Unregister(ctx, Tag)
		case ok && settings.IntervalMinutes > 0 && reg.MinInterval == time.Duration(settings.IntervalMinutes)*s.unit:
			s.mu.Lock()
			s.running = true
			s.interval = settings.IntervalMinutes
			s.mu.Unlock()
			s.log.WithFields(logrus.Fields{
				"interval": settings.IntervalMinutes,
				"last_run": reg.LastRun,
			}).Info("resumed persisted schedule")
			return nil
		}
	}
	return s.ApplySettings(ctx, settings)
}

// Trigger runs the job now, outside the schedule.
func (s *Scheduler) Trigger(ctx context.Context) {
	s.job(ctx)
}

func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := Status{
		Running:         s.running,
		Mechanism:       s.Mechanism(),
		IntervalMinutes: s.interval,
		Tags:            []string{},
	}
	if s.registry != nil {
		st.Tags = s.registry.Tags()
	} else if s.running {
		st.Tags = []string{Tag}
	}
	if !s.lastRun.IsZero() {
		st.LastRun = s.lastRun.UTC().Format(time.RFC3339)
	}
	return st
}
