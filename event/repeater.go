package event

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/Kitt3120/lum/errors"
)

var (
	ErrAlreadyAttached = errors.New("event is already attached to this repeater")
	ErrNotAttached     = errors.New("event is not attached to this repeater")
	ErrStillAttached   = errors.New("repeater still has attached events")
)

type (
	forwarder struct {
		sub    Subscription
		cancel context.CancelFunc
		done   chan void
	}

	// Repeater aggregates many source events into one outward event. Each
	// attached source gets a channel subscription drained by a forwarding
	// goroutine that re-dispatches every received value into the repeater's
	// own event.
	Repeater[T any] struct {
		out *Event[T]

		mu      sync.Mutex
		sources map[uuid.UUID]*forwarder
	}
)

func NewRepeater[T any](name string) *Repeater[T] {
	return &Repeater[T]{
		out:     New[T](name),
		sources: map[uuid.UUID]*forwarder{},
	}
}

// Out is the outward-facing event carrying every value forwarded from the
// attached sources.
func (r *Repeater[T]) Out() *Event[T] { return r.out }

func (r *Repeater[T]) SourceCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sources)
}

// Attach subscribes the repeater to the source event and starts forwarding
// its values. A source can be attached at most once.
func (r *Repeater[T]) Attach(source *Event[T], buffer int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sources[source.ID()]; ok {
		return errors.Wrapf(ErrAlreadyAttached, "event %q, repeater %q", source.Name, r.out.Name)
	}

	sub, ch := source.SubscribeChannel(r.out.Name, buffer, true)

	ctx, cancel := context.WithCancel(context.Background())
	f := &forwarder{
		sub:    sub,
		cancel: cancel,
		done:   make(chan void),
	}
	r.sources[source.ID()] = f

	go func() {
		defer close(f.done)
		for {
			select {
			case <-ctx.Done():
				return
			case v := <-ch:
				r.out.Dispatch(ctx, v)
			}
		}
	}()

	return nil
}

// Detach stops and removes the source's forwarding goroutine and drops the
// channel subscription on the source. Values the source dispatches afterwards
// are no longer forwarded.
func (r *Repeater[T]) Detach(source *Event[T]) error {
	r.mu.Lock()
	f, ok := r.sources[source.ID()]
	if ok {
		delete(r.sources, source.ID())
	}
	r.mu.Unlock()

	if !ok {
		return errors.Wrapf(ErrNotAttached, "event %q, repeater %q", source.Name, r.out.Name)
	}

	f.cancel()
	<-f.done
	source.Unsubscribe(f.sub)
	return nil
}

// Close rejects while sources are still attached; detach them first.
func (r *Repeater[T]) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.sources) > 0 {
		return errors.Wrapf(ErrStillAttached, "repeater %q", r.out.Name)
	}
	return nil
}
