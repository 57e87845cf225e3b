// Package heartbeat is a minimal supervised service: its background task
// ticks at a fixed interval and publishes each beat.
package heartbeat

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/Kitt3120/lum/event"
	"github.com/Kitt3120/lum/log"
	"github.com/Kitt3120/lum/service"
)

type Service struct {
	info     *service.Info
	interval time.Duration
	beats    atomic.Uint64

	// OnBeat fires with the running beat count.
	OnBeat *event.Event[uint64]
}

func New(interval time.Duration, priority service.Priority) *Service {
	return &Service{
		info:     service.NewInfo("heartbeat", "Heartbeat", priority),
		interval: interval,
		OnBeat:   event.New[uint64]("heartbeat_beat"),
	}
}

func (s *Service) Info() *service.Info { return s.info }

func (s *Service) Start(context.Context, *service.Manager) error {
	s.beats.Store(0)
	return nil
}

func (s *Service) Stop(context.Context) error { return nil }

func (s *Service) Beats() uint64 { return s.beats.Load() }

func (s *Service) Task() service.Task {
	return func(ctx context.Context) error {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
				beat := s.beats.Add(1)
				log.Debug().Uint64("beat", beat).Msg("heartbeat")
				s.OnBeat.Dispatch(ctx, beat)
			}
		}
	}
}
