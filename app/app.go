// Package app ties the service manager to the lifetime of the owning
// process: start everything, watch the aggregate status stream and the stop
// signals, shut down gracefully.
package app

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Kitt3120/lum/errors"
	"github.com/Kitt3120/lum/log"
	"github.com/Kitt3120/lum/service"
)

// joinBuffer bounds the status-change queue of the Join subscription. Values
// beyond it are dropped, which is fine: any received change triggers a full
// health check.
const joinBuffer = 2

type (
	ExitReason uint8

	App struct {
		Name    string
		Manager *service.Manager
	}

	Builder struct {
		name    string
		manager *service.Builder
	}
)

const (
	ExitSignal ExitReason = iota
	ExitEssentialServiceFailed
)

var ErrUnhealthy = errors.New("one or more essential services failed")

func (r ExitReason) String() string {
	switch r {
	case ExitSignal:
		return "Signal"
	case ExitEssentialServiceFailed:
		return "Essential Service Failed"
	default:
		return "Unknown"
	}
}

func NewBuilder(name string) *Builder {
	return &Builder{
		name:    name,
		manager: service.NewBuilder(),
	}
}

func (b *Builder) With(services ...service.Service) *Builder {
	b.manager.With(services...)
	return b
}

func (b *Builder) WithStartTimeout(d time.Duration) *Builder {
	b.manager.WithStartTimeout(d)
	return b
}

func (b *Builder) WithStopTimeout(d time.Duration) *Builder {
	b.manager.WithStopTimeout(d)
	return b
}

func (b *Builder) WithStatusBuffer(n int) *Builder {
	b.manager.WithStatusBuffer(n)
	return b
}

func (b *Builder) Build() *App {
	return &App{
		Name:    b.name,
		Manager: b.manager.Build(),
	}
}

func (a *App) Start(ctx context.Context) []service.OpResult {
	return a.Manager.StartServices(ctx)
}

func (a *App) Stop(ctx context.Context) []service.OpResult {
	return a.Manager.StopServices(ctx)
}

// Join blocks until the process should exit: a stop signal arrived, the
// context was canceled, or the aggregate status stream reported a change
// that left an essential service down. Polling is never used; one channel
// subscription covers every supervised service.
func (a *App) Join(ctx context.Context) ExitReason {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	statusEvent := a.Manager.OnStatusChange().Out()
	sub, statusCh := statusEvent.SubscribeChannel("app_join", joinBuffer, true)
	defer statusEvent.Unsubscribe(sub)

	for {
		select {
		case <-ctx.Done():
			return ExitSignal
		case sig := <-sigCh:
			log.Info().
				Str("signal", sig.String()).
				Msgf("%s received a stop signal, shutting down gracefully", a.Name)
			return ExitSignal
		case <-statusCh:
			if a.Manager.OverallStatus() == service.Unhealthy {
				return ExitEssentialServiceFailed
			}
		}
	}
}

// Run is the whole process lifecycle: start all services, bail out when an
// essential one failed to come up, then wait for an exit condition and stop
// everything. The returned error is nil only for a healthy run ended by a
// signal.
func (a *App) Run(ctx context.Context) error {
	started := time.Now()
	for _, result := range a.Start(ctx) {
		errors.Log(result.Err, "failed to start service %q", result.ID)
	}
	log.Info().
		Dur("took", time.Since(started)).
		Msgf("%s finished starting services", a.Name)

	if a.Manager.OverallStatus() != service.Healthy {
		log.Error().
			Msgf("%s is not healthy, some essential services did not start:\n%s", a.Name, a.Manager.StatusOverview())
		return ErrUnhealthy
	}

	log.Info().Msgf("%s is alive", a.Name)

	reason := a.Join(ctx)
	if reason == ExitEssentialServiceFailed {
		log.Error().
			Msgf("an essential service failed, shutting down gracefully:\n%s", a.Manager.StatusOverview())
	}

	for _, result := range a.Stop(context.WithoutCancel(ctx)) {
		if errors.Is(result.Err, service.ErrNotStarted) {
			continue
		}
		errors.Log(result.Err, "failed to stop service %q", result.ID)
	}

	if reason == ExitEssentialServiceFailed {
		return ErrUnhealthy
	}
	return nil
}
