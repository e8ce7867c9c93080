package iter

import (
	"context"
	"sync/atomic"
)

// FromChannel returns a Source reading from ch until it is closed.
// Return only stops the Source from reading; ch is owned by its sender.
func FromChannel[T any](ch <-chan T) *ChanSource[T] {
	return &ChanSource[T]{ch: ch}
}

type ChanSource[T any] struct {
	ch      <-chan T
	stopped atomic.Bool
}

func (c *ChanSource[T]) Next(ctx context.Context) (Result[T], error) {
	if c.stopped.Load() {
		return Done[T](), nil
	}

	select {
	case <-ctx.Done():
		return Result[T]{}, ctx.Err()
	case v, ok := <-c.ch:
		if !ok {
			c.stopped.Store(true)
			return Done[T](), nil
		}
		return Value(v), nil
	}
}

func (c *ChanSource[T]) Return(ctx context.Context) (Result[T], error) {
	c.stopped.Store(true)
	return Done[T](), nil
}
