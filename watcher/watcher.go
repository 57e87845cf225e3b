// Package watcher wraps fsnotify with per-file callbacks, filters and
// debouncing.
package watcher

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"

	"github.com/Kitt3120/lum/errors"
)

type (
	Callback        func(ev *fsnotify.Event)
	CallbackWrapper func(next Callback) Callback
	Filter          func(ev *fsnotify.Event) bool

	// Watch is the handle of one registered callback, used to unwatch it.
	Watch struct {
		ID   uuid.UUID
		name string
	}

	watch struct {
		id       uuid.UUID
		name     string
		callback Callback
		filters  []Filter
	}

	Watcher struct {
		mu      sync.Mutex
		notify  *fsnotify.Watcher
		watches map[string][]*watch // keyed by watched directory
	}
)

func WithModifyFilter() Filter {
	return func(ev *fsnotify.Event) bool {
		return ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create)
	}
}

// WithDebounce delays the callback and drops superseded events for the same
// file arriving within the window.
func WithDebounce(dur time.Duration) CallbackWrapper {
	return func(next Callback) Callback {
		var (
			mu      sync.Mutex
			cancels = map[string]context.CancelFunc{}
		)
		return func(ev *fsnotify.Event) {
			mu.Lock()
			if cancel, ok := cancels[ev.Name]; ok {
				cancel()
			}
			ctx, cancel := context.WithCancel(context.Background())
			cancels[ev.Name] = cancel
			mu.Unlock()

			go func() {
				select {
				case <-ctx.Done():
				case <-time.After(dur):
					next(ev)
				}
			}()
		}
	}
}

func New() (*Watcher, error) {
	notify, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "failed to create fsnotify watcher")
	}
	return &Watcher{
		notify:  notify,
		watches: map[string][]*watch{},
	}, nil
}

// Watch registers a callback for changes of one file. The file's directory
// is watched so the file may not exist yet.
func (w *Watcher) Watch(name string, cb Callback, filters ...Filter) (Watch, error) {
	absName, err := filepath.Abs(name)
	if err != nil {
		return Watch{}, err
	}
	absDir := filepath.Dir(absName)

	w.mu.Lock()
	defer w.mu.Unlock()

	if _, ok := w.watches[absDir]; !ok {
		if err := w.notify.Add(absDir); err != nil {
			return Watch{}, errors.Wrapf(err, "failed to watch %q", absDir)
		}
	}

	entry := &watch{
		id:       uuid.New(),
		name:     absName,
		callback: cb,
		filters:  filters,
	}
	w.watches[absDir] = append(w.watches[absDir], entry)

	return Watch{ID: entry.id, name: absName}, nil
}

// Unwatch removes the callback behind the handle and drops the directory
// watch once its last callback is gone.
func (w *Watcher) Unwatch(wt Watch) error {
	absDir := filepath.Dir(wt.name)

	w.mu.Lock()
	defer w.mu.Unlock()

	bucket, ok := w.watches[absDir]
	if !ok {
		return errors.Errorf("no watch registered for %q", wt.name)
	}

	found := false
	for n, entry := range bucket {
		if entry.id == wt.ID {
			bucket = append(bucket[:n], bucket[n+1:]...)
			found = true
			break
		}
	}
	if !found {
		return errors.Errorf("no watch registered for %q", wt.name)
	}

	if len(bucket) == 0 {
		delete(w.watches, absDir)
		if err := w.notify.Remove(absDir); err != nil {
			return errors.Wrapf(err, "failed to unwatch %q", absDir)
		}
	} else {
		w.watches[absDir] = bucket
	}
	return nil
}

func (w *Watcher) emit(ev *fsnotify.Event) {
	w.mu.Lock()
	defer w.mu.Unlock()

	bucket := w.watches[filepath.Dir(ev.Name)]
loop:
	for _, entry := range bucket {
		if entry.name != ev.Name {
			continue
		}
		for _, filter := range entry.filters {
			if !filter(ev) {
				continue loop
			}
		}
		entry.callback(ev)
	}
}

// Run pumps fsnotify events to the registered callbacks until the context is
// canceled. It errors when the event source closes underneath it.
func (w *Watcher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.notify.Events:
			if !ok {
				return errors.New("fsnotify event source closed")
			}
			w.emit(&event)
		case err, ok := <-w.notify.Errors:
			if !ok {
				return errors.New("fsnotify event source closed")
			}
			errors.Log(err, "file watcher error")
		}
	}
}

func (w *Watcher) Close() error {
	return w.notify.Close()
}
