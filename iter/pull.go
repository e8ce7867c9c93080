package iter

import (
	"context"
	"errors"
	"io"
	"sync"
)

// Iter is a synchronous pull iterator. Next returns io.EOF once the sequence is exhausted.
// The caller should call Close to free all resources properly after using the iterator.
type Iter[T any] interface {
	Next() (T, error)
	Close() error
}

// FromIter adapts a pull iterator into a Source whose close capability calls it.Close once.
func FromIter[T any](it Iter[T]) *PullSource[T] {
	return &PullSource[T]{it: it}
}

type PullSource[T any] struct {
	it        Iter[T]
	closeOnce sync.Once
	closeErr  error
	done      bool
}

func (p *PullSource[T]) Next(ctx context.Context) (Result[T], error) {
	if p.done {
		return Done[T](), nil
	}
	if err := ctx.Err(); err != nil {
		return Result[T]{}, err
	}

	v, err := p.it.Next()
	if errors.Is(err, io.EOF) {
		p.done = true
		return Done[T](), p.close()
	}
	if err != nil {
		return Result[T]{}, err
	}
	return Value(v), nil
}

func (p *PullSource[T]) Return(ctx context.Context) (Result[T], error) {
	p.done = true
	return Done[T](), p.close()
}

func (p *PullSource[T]) close() error {
	p.closeOnce.Do(func() {
		p.closeErr = p.it.Close()
	})
	return p.closeErr
}
