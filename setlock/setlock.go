// Package setlock provides a single-assignment container. It is used to hand
// an object a handle to its own shared wrapper that can only exist after the
// object has been constructed.
package setlock

import (
	"sync"

	"github.com/Kitt3120/lum/errors"
)

var ErrAlreadySet = errors.New("setlock is already set")

type SetLock[T any] struct {
	mu    sync.Mutex
	set   bool
	value T
}

// Set stores the value. It succeeds exactly once; any later call returns
// ErrAlreadySet and leaves the held value untouched.
func (l *SetLock[T]) Set(value T) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.set {
		return ErrAlreadySet
	}

	l.value = value
	l.set = true
	return nil
}

func (l *SetLock[T]) IsSet() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.set
}

func (l *SetLock[T]) Get() (T, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.value, l.set
}

// MustGet returns the held value and panics when it was never set. An unset
// lock at read time means a construction invariant was broken, which is not
// recoverable at runtime.
func (l *SetLock[T]) MustGet() T {
	value, ok := l.Get()
	if !ok {
		panic("setlock: value is not set")
	}
	return value
}
