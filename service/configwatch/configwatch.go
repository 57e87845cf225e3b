// Package configwatch watches the config file and republishes every reload
// through an event, so interested services can pick up changes without
// restarting the process.
package configwatch

import (
	"context"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/Kitt3120/lum/config"
	"github.com/Kitt3120/lum/errors"
	"github.com/Kitt3120/lum/event"
	"github.com/Kitt3120/lum/log"
	"github.com/Kitt3120/lum/service"
	"github.com/Kitt3120/lum/watcher"
)

const debounce = 250 * time.Millisecond

type Service struct {
	info *service.Info
	path string

	watcher *watcher.Watcher
	watch   watcher.Watch

	// OnReload fires with the freshly loaded config after a file change.
	OnReload *event.Event[*config.Config]
}

func New(path string, priority service.Priority) *Service {
	return &Service{
		info:     service.NewInfo("configwatch", "Config Watcher", priority),
		path:     path,
		OnReload: event.New[*config.Config]("configwatch_reload"),
	}
}

func (s *Service) Info() *service.Info { return s.info }

func (s *Service) Start(ctx context.Context, _ *service.Manager) error {
	w, err := watcher.New()
	if err != nil {
		return err
	}

	// debounce bursts of writes from editors and atomic-save tools
	callback := watcher.WithDebounce(debounce)(s.reload)

	wt, err := w.Watch(s.path, callback, watcher.WithModifyFilter())
	if err != nil {
		errors.LogCallErr(w.Close, "failed to close file watcher")
		return errors.Wrapf(err, "failed to watch config file %q", s.path)
	}

	s.watcher = w
	s.watch = wt
	return nil
}

func (s *Service) Stop(context.Context) error {
	if s.watcher == nil {
		return nil
	}

	errors.Log(s.watcher.Unwatch(s.watch), "failed to unwatch config file %q", s.path)

	err := s.watcher.Close()
	s.watcher = nil
	return err
}

func (s *Service) Task() service.Task {
	return func(ctx context.Context) error {
		return s.watcher.Run(ctx)
	}
}

func (s *Service) reload(ev *fsnotify.Event) {
	cfg, err := config.Load(s.path)
	if err != nil {
		errors.Log(err, "failed to reload config from %q", s.path)
		return
	}

	log.Info().Str("config", s.path).Msg("config file changed, reloaded")
	s.OnReload.Dispatch(context.Background(), cfg)
}
