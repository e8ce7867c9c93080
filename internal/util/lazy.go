package util

import (
	"sync"
	"sync/atomic"

	"github.com/rotisserie/eris"
)

// Lazy evaluates a fallible function on first use and keeps its outcome.
type Lazy[T any] struct {
	once  sync.Once
	done  atomic.Bool
	value T
	err   error
	eval  func() (T, error)
}

func LazyValue[T any](f func() (T, error)) *Lazy[T] {
	return &Lazy[T]{eval: f}
}

// Get runs the function on the first call. Every caller, concurrent or later,
// gets the result of that single run.
func (l *Lazy[T]) Get() (T, error) {
	l.once.Do(func() {
		l.value, l.err = l.eval()
		if l.err != nil {
			l.err = eris.Wrap(l.err, "lazy evaluation")
		}
		l.done.Store(true)
	})
	return l.value, l.err
}

// Evaluated reports whether Get already ran the function.
func (l *Lazy[T]) Evaluated() bool {
	return l.done.Load()
}
