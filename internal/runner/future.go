package runner

import "sync"

// Future is a one-shot value. The first Resolve wins; later calls are
// no-ops and report false.
type Future[T any] struct {
	once sync.Once
	done chan struct{}
	val  T
}

// NewFuture returns an unresolved future.
func NewFuture[T any]() *Future[T] {
	return &Future[T]{done: make(chan struct{})}
}

// Resolve sets the value if the future is unresolved.
func (f *Future[T]) Resolve(v T) bool {
	won := false
	f.once.Do(func() {
		f.val = v
		close(f.done)
		won = true
	})
	return won
}

// Done is closed once the future is resolved.
func (f *Future[T]) Done() <-chan struct{} { return f.done }

// Value returns the value and whether the future is resolved.
func (f *Future[T]) Value() (T, bool) {
	select {
	case <-f.done:
		return f.val, true
	default:
		var zero T
		return zero, false
	}
}

// Resolved reports whether the future has a value.
func (f *Future[T]) Resolved() bool {
	_, ok := f.Value()
	return ok
}
