package service

import (
	"context"

	"github.com/Kitt3120/lum/log"
)

type void = struct{}

// watchdog is the cancellation handle of one supervised background task.
type watchdog struct {
	cancel context.CancelFunc
	done   chan void
}

// stop aborts the task. It does not wait for the task to return; once the
// context is canceled any later resolution is ignored by the continuation.
func (w *watchdog) stop() {
	w.cancel()
}

// superviseTask runs the service's background task and watches its
// resolution. A task that resolves while the service is still started, with
// an error or without one, flips the service into RuntimeError. A task whose
// context was canceled resolved because of a deliberate stop and is ignored.
func (m *Manager) superviseTask(s Service, task Task) {
	info := s.Info()

	ctx, cancel := context.WithCancel(context.Background())
	w := &watchdog{
		cancel: cancel,
		done:   make(chan void),
	}

	m.mu.Lock()
	m.tasks[info.ID] = w
	m.mu.Unlock()

	go func() {
		defer close(w.done)
		defer cancel()

		err := task(ctx)
		if ctx.Err() != nil {
			return
		}

		m.mu.Lock()
		delete(m.tasks, info.ID)
		m.mu.Unlock()

		if err != nil {
			log.Error().
				Str("service", info.Name).
				Err(err).
				Msg("background task of service ended with error, marking service as failed")
			info.Status.Set(context.Background(), RuntimeError("background task ended with error: "+err.Error()))
		} else {
			log.Error().
				Str("service", info.Name).
				Msg("background task of service ended unexpectedly, marking service as failed")
			info.Status.Set(context.Background(), RuntimeError("background task ended unexpectedly"))
		}
	}()

	log.Info().Str("service", info.Name).Msg("started background task of service")
}
