// Package service implements the supervision core: the service lifecycle
// state machine and the Manager driving registered services through it.
package service

import (
	"context"

	"github.com/Kitt3120/lum/event"
)

type (
	// Task is a long-running unit of work a service may expose for
	// supervision. It runs for the whole span the service is started and
	// should return promptly once its context is canceled.
	Task func(ctx context.Context) error

	// Info is the immutable identity of a service plus its observable
	// status. It is owned by the service; the Manager never copies,
	// replaces or rebuilds it.
	Info struct {
		ID       string
		Name     string
		Priority Priority

		Status *event.Observable[Status]
	}

	// Service is a unit of functionality the Manager can bring up and down.
	// Start and Stop must tolerate being abandoned when the Manager's
	// timeout expires; no rollback is performed on their behalf.
	Service interface {
		Info() *Info

		// Start brings the service up. It receives the owning Manager so
		// implementations can look up sibling services.
		Start(ctx context.Context, m *Manager) error

		// Stop tears the service down.
		Stop(ctx context.Context) error

		// Task returns the background task to supervise while the service
		// is started, or nil when the service has none.
		Task() Task
	}
)

func NewInfo(id, name string, priority Priority) *Info {
	return &Info{
		ID:       id,
		Name:     name,
		Priority: priority,
		Status:   event.NewObservable(Stopped, id+"_status_change"),
	}
}

// Available reports whether the service is currently started.
func Available(s Service) bool {
	return s.Info().Status.Get().State == StateStarted
}
