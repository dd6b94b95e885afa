// SPDX-License-Identifier: ice License 1.0

package future

import (
	"context"

	"github.com/cockroachdb/errors"
)

func New[T any]() *Future[T] {
	return &Future[T]{done: make(chan struct{})}
}

// Failed returns an already completed future, used to report errors detected before any I/O.
func Failed[T any](err error) *Future[T] {
	f := New[T]()
	f.Fail(err)

	return f
}

// Resolve reports whether this call completed the future.
func (f *Future[T]) Resolve(value T) bool {
	return f.complete(value, nil)
}

// Fail reports whether this call completed the future.
func (f *Future[T]) Fail(err error) bool {
	if err == nil {
		err = errors.AssertionFailedf("future failed with nil error")
	}
	var zero T

	return f.complete(zero, err)
}

func (f *Future[T]) complete(value T, err error) bool {
	f.mx.Lock()
	if f.completed {
		f.mx.Unlock()

		return false
	}
	f.completed = true
	f.value, f.err = value, err
	callbacks := f.callbacks
	f.callbacks = nil
	close(f.done)
	f.mx.Unlock()
	for _, fn := range callbacks {
		fn(value, err)
	}

	return true
}

func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Get waits for completion. A cancelled ctx only stops the wait, the future itself keeps going.
func (f *Future[T]) Get(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		var zero T

		return zero, errors.Wrap(ctx.Err(), "stopped waiting for future")
	}
}

// Result never blocks, it fails with ErrPending until the future completes.
func (f *Future[T]) Result() (T, error) {
	select {
	case <-f.done:
		return f.value, f.err
	default:
		var zero T

		return zero, ErrPending
	}
}

// OnComplete registers fn to be called once with the outcome.
// It runs on the completing goroutine, or right away on the caller's one when the future is already done.
func (f *Future[T]) OnComplete(fn func(value T, err error)) {
	f.mx.Lock()
	if !f.completed {
		f.callbacks = append(f.callbacks, fn)
		f.mx.Unlock()

		return
	}
	value, err := f.value, f.err
	f.mx.Unlock()
	fn(value, err)
}
