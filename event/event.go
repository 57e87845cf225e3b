// Package event provides the pub/sub primitives the service supervisor is
// built on: a generic broadcast Event, a change-gated Observable and a
// many-to-one Repeater.
package event

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/Kitt3120/lum/errors"
	"github.com/Kitt3120/lum/log"
)

var ErrQueueFull = errors.New("subscriber queue is full")

type (
	void = struct{}

	// Callback receives a dispatched value synchronously.
	Callback[T any] func(v T) error

	// AsyncCallback receives a dispatched value and may block on the context.
	AsyncCallback[T any] func(ctx context.Context, v T) error

	// Subscription identifies a registered subscriber and is the handle used
	// to unsubscribe it later.
	Subscription struct {
		ID   uuid.UUID
		Name string
	}

	subscriber[T any] struct {
		id            uuid.UUID
		name          string
		removeOnError bool

		ch      chan T
		fn      Callback[T]
		asyncFn AsyncCallback[T]
	}

	DispatchError struct {
		Subscriber string
		Err        error
	}

	DispatchErrors []DispatchError

	// Event is a named fan-out primitive. Subscribers are served in
	// registration order; a failing subscriber never stops delivery to the
	// rest.
	Event[T any] struct {
		Name string

		id          uuid.UUID
		mu          sync.Mutex
		subscribers []*subscriber[T]
	}
)

func (e DispatchError) Error() string {
	return fmt.Sprintf("failed to dispatch to subscriber %q: %s", e.Subscriber, e.Err)
}

func (e DispatchError) Unwrap() error { return e.Err }

func (e DispatchErrors) Error() string {
	msgs := make([]string, len(e))
	for n, err := range e {
		msgs[n] = err.Error()
	}
	return strings.Join(msgs, "; ")
}

func New[T any](name string) *Event[T] {
	return &Event[T]{
		Name: name,
		id:   uuid.New(),
	}
}

// ID is the stable identity of this event, used by Repeater to track
// attachments.
func (e *Event[T]) ID() uuid.UUID { return e.id }

func (e *Event[T]) SubscriberCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.subscribers)
}

// SubscribeChannel registers a bounded queue subscriber and returns its
// handle together with the receiving side of the queue. A dispatch that finds
// the queue full fails for this subscriber with ErrQueueFull.
func (e *Event[T]) SubscribeChannel(name string, buffer int, removeOnError bool) (Subscription, <-chan T) {
	s := &subscriber[T]{
		id:            uuid.New(),
		name:          name,
		removeOnError: removeOnError,
		ch:            make(chan T, buffer),
	}
	e.add(s)
	return s.subscription(), s.ch
}

func (e *Event[T]) Subscribe(name string, fn Callback[T], removeOnError bool) Subscription {
	s := &subscriber[T]{
		id:            uuid.New(),
		name:          name,
		removeOnError: removeOnError,
		fn:            fn,
	}
	e.add(s)
	return s.subscription()
}

func (e *Event[T]) SubscribeAsync(name string, fn AsyncCallback[T], removeOnError bool) Subscription {
	s := &subscriber[T]{
		id:            uuid.New(),
		name:          name,
		removeOnError: removeOnError,
		asyncFn:       fn,
	}
	e.add(s)
	return s.subscription()
}

// Unsubscribe removes the subscriber behind the handle. It reports whether
// the subscriber was still registered.
func (e *Event[T]) Unsubscribe(sub Subscription) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.remove(map[uuid.UUID]void{sub.ID: {}}) > 0
}

// Dispatch shares one value with every current subscriber, in registration
// order. Per-subscriber failures are collected and returned; subscribers
// registered with removeOnError are dropped after a failed delivery. The
// subscriber list stays locked for the whole pass, serializing it against
// concurrent subscribe, unsubscribe and dispatch calls.
func (e *Event[T]) Dispatch(ctx context.Context, v T) DispatchErrors {
	e.mu.Lock()
	defer e.mu.Unlock()

	var (
		errs   DispatchErrors
		failed map[uuid.UUID]void
	)
	for _, s := range e.subscribers {
		err := s.dispatch(ctx, v)
		if err == nil {
			continue
		}

		log.Warn().
			Str("event", e.Name).
			Str("subscriber", s.name).
			Err(err).
			Msg("failed to dispatch to subscriber")

		errs = append(errs, DispatchError{Subscriber: s.name, Err: err})
		if s.removeOnError {
			if failed == nil {
				failed = map[uuid.UUID]void{}
			}
			failed[s.id] = void{}
		}
	}

	if len(failed) > 0 {
		e.remove(failed)
	}
	return errs
}

func (e *Event[T]) add(s *subscriber[T]) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.subscribers = append(e.subscribers, s)
}

// remove must be called with the subscriber lock held.
func (e *Event[T]) remove(ids map[uuid.UUID]void) int {
	removed := 0
	kept := e.subscribers[:0]
	for _, s := range e.subscribers {
		if _, ok := ids[s.id]; ok {
			removed++
			continue
		}
		kept = append(kept, s)
	}
	for n := len(kept); n < len(e.subscribers); n++ {
		e.subscribers[n] = nil
	}
	e.subscribers = kept
	return removed
}

func (s *subscriber[T]) subscription() Subscription {
	return Subscription{ID: s.id, Name: s.name}
}

func (s *subscriber[T]) dispatch(ctx context.Context, v T) error {
	switch {
	case s.ch != nil:
		select {
		case s.ch <- v:
			return nil
		default:
			return ErrQueueFull
		}
	case s.fn != nil:
		return s.fn(v)
	default:
		return s.asyncFn(ctx, v)
	}
}
