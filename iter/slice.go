package iter

import (
	"context"

	"github.com/rotisserie/eris"
)

var _ Source[string] = &SliceIter[string]{}
var _ Returner[string] = &SliceIter[string]{}

type SliceIter[T any] struct {
	items []T
	i     int
}

func FromSlice[T any](s []T) *SliceIter[T] {
	return &SliceIter[T]{
		items: s,
		i:     0,
	}
}

func (a *SliceIter[T]) Next(ctx context.Context) (Result[T], error) {
	if err := ctx.Err(); err != nil {
		return Result[T]{}, err
	}
	if a.i < len(a.items) {
		item := a.items[a.i]
		a.i++
		return Value(item), nil
	}
	return Done[T](), nil
}

// Return skips the remaining items.
func (a *SliceIter[T]) Return(ctx context.Context) (Result[T], error) {
	a.i = len(a.items)
	return Done[T](), nil
}

// ToSlice drains src. When ctx is done before the sequence ends, src is
// returned (if it can be) and the context error is reported.
func ToSlice[T any](ctx context.Context, src Source[T]) ([]T, error) {
	if src == nil {
		return nil, eris.New("nil iterator")
	}

	var s []T
	err := ForEach(ctx, src, func(v T) error {
		s = append(s, v)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}

// ForEach calls fn with every value of src. When fn fails, src is returned
// (if it can be) and fn's error is reported; the return outcome is ignored.
func ForEach[T any](ctx context.Context, src Source[T], fn func(T) error) error {
	stop := func() {
		if r, ok := src.(Returner[T]); ok {
			_, _ = r.Return(context.WithoutCancel(ctx))
		}
	}

	for {
		if err := ctx.Err(); err != nil {
			stop()
			return err
		}

		res, err := src.Next(ctx)
		if err != nil {
			return err
		}
		if res.Done {
			return nil
		}

		if err := fn(res.Value); err != nil {
			stop()
			return err
		}
	}
}
