package iter

import (
	"context"

	"github.com/samber/mo"
)

type NextFunc[T any] func(ctx context.Context) (Result[T], error)

type ReturnFunc[T any] func(ctx context.Context) (Result[T], error)

type ThrowFunc[T any] func(ctx context.Context, err error) (Result[T], error)

// Capabilities describes what a source can do.
// The optional handles are resolved once, when the descriptor is built.
type Capabilities[T any] struct {
	Next   NextFunc[T]
	Return mo.Option[ReturnFunc[T]]
	Throw  mo.Option[ThrowFunc[T]]
}

// CapabilitiesOf builds the descriptor of src by checking which of the
// optional Returner and Thrower interfaces it implements.
func CapabilitiesOf[T any](src Source[T]) Capabilities[T] {
	caps := Capabilities[T]{
		Next:   src.Next,
		Return: mo.None[ReturnFunc[T]](),
		Throw:  mo.None[ThrowFunc[T]](),
	}
	if r, ok := src.(Returner[T]); ok {
		caps.Return = mo.Some[ReturnFunc[T]](r.Return)
	}
	if t, ok := src.(Thrower[T]); ok {
		caps.Throw = mo.Some[ThrowFunc[T]](t.Throw)
	}
	return caps
}

// Funcs builds a descriptor from plain functions. A nil ret or throw means the
// capability is absent.
func Funcs[T any](next NextFunc[T], ret ReturnFunc[T], throw ThrowFunc[T]) Capabilities[T] {
	caps := Capabilities[T]{
		Next:   next,
		Return: mo.None[ReturnFunc[T]](),
		Throw:  mo.None[ThrowFunc[T]](),
	}
	if ret != nil {
		caps.Return = mo.Some(ret)
	}
	if throw != nil {
		caps.Throw = mo.Some(throw)
	}
	return caps
}
