package event

import (
	"context"
	"sync"
)

type (
	// Result reports whether a Set actually changed the value, and carries
	// the dispatch errors of the change notification when it did.
	Result[T any] struct {
		Changed bool
		Errs    DispatchErrors
	}

	// Observable pairs a current value with a private change event. Setting
	// an equal value is a no-op; setting a different one stores it and then
	// dispatches it to the change event's subscribers. This is the only
	// mechanism turning a status mutation into an externally observable
	// stream, so callers never have to poll.
	Observable[T comparable] struct {
		mu       sync.Mutex
		value    T
		onChange *Event[T]
	}
)

func NewObservable[T comparable](value T, eventName string) *Observable[T] {
	return &Observable[T]{
		value:    value,
		onChange: New[T](eventName),
	}
}

func (o *Observable[T]) Get() T {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.value
}

// OnChange exposes the change event for subscription and for attachment to a
// Repeater. Dispatching into it directly bypasses the change gate; use Set.
func (o *Observable[T]) OnChange() *Event[T] {
	return o.onChange
}

// Set stores the value and notifies subscribers when it differs from the
// current one. The value lock is held across the dispatch so concurrent sets
// reach subscribers in a consistent order.
func (o *Observable[T]) Set(ctx context.Context, value T) Result[T] {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.value == value {
		return Result[T]{Changed: false}
	}

	o.value = value
	return Result[T]{
		Changed: true,
		Errs:    o.onChange.Dispatch(ctx, value),
	}
}
