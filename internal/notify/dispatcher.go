// Package notify is the notification boundary: a permission gate in front
// of a set of sinks (hub clients, UDP clients, NATS, the log).
package notify

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"stockwatch/pkg/models"
)

// Sink delivers notifications to one kind of output.
type Sink interface {
	Name() string
	Deliver(ctx context.Context, n models.Notification) error
}

type Dispatcher struct {
	mu         sync.RWMutex
	permission models.Permission
	sinks      []Sink
}

func NewDispatcher(sinks ...Sink) *Dispatcher {
	return &Dispatcher{permission: models.PermissionDefault, sinks: sinks}
}

func (d *Dispatcher) AddSink(s Sink) {
	d.mu.Lock()
	d.sinks = append(d.sinks, s)
	d.mu.Unlock()
}

// RequestPermission reports the current permission. A daemon has no user
// prompt: "default" resolves to granted once at least one sink exists.
func (d *Dispatcher) RequestPermission(context.Context) models.Permission {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.permission == models.PermissionDefault && len(d.sinks) > 0 {
		d.permission = models.PermissionGranted
	}
	return d.permission
}

// Permission returns the stored permission without resolving "default".
func (d *Dispatcher) Permission() models.Permission {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.permission
}

func (d *Dispatcher) SetPermission(p models.Permission) error {
	switch p {
	case models.PermissionGranted, models.PermissionDenied, models.PermissionDefault:
	default:
		return &models.ConfigValidationError{Field: "permission", Reason: fmt.Sprintf("unknown value %q", p)}
	}
	d.mu.Lock()
	d.permission = p
	d.mu.Unlock()
	return nil
}

// Show delivers n to every sink. Each sink failure is reported in the
// joined error; the other sinks still receive n.
func (d *Dispatcher) Show(ctx context.Context, n models.Notification) error {
	if d.RequestPermission(ctx) == models.PermissionDenied {
		return models.ErrPermissionDenied
	}

	d.mu.RLock()
	sinks := append([]Sink(nil), d.sinks...)
	d.mu.RUnlock()

	var errs []error
	for _, s := range sinks {
		if err := s.Deliver(ctx, n); err != nil {
			errs = append(errs, fmt.Errorf("%s sink: %w", s.Name(), err))
		}
	}
	return errors.Join(errs...)
}
