package iter

import (
	"context"
	"reflect"
)

// Result is the settled value of a single iterator step.
// When Done is true, Value carries no meaning.
type Result[T any] struct {
	Value T
	Done  bool
}

func Value[T any](v T) Result[T] {
	return Result[T]{Value: v}
}

func Done[T any]() Result[T] {
	return Result[T]{Done: true}
}

// Source is an asynchronous sequence producer.
// Next blocks until the next value, the end of the sequence, or a failure is available.
// A Source is driven by one consumer at a time; implementations do not need to
// defend against overlapping calls.
type Source[T any] interface {
	Next(ctx context.Context) (Result[T], error)
}

// Returner is the optional close capability of a Source.
// Return asks the producer to terminate early and release its resources.
type Returner[T any] interface {
	Return(ctx context.Context) (Result[T], error)
}

// Thrower is the optional error injection capability of a Source.
type Thrower[T any] interface {
	Throw(ctx context.Context, err error) (Result[T], error)
}

// Iterable is implemented by values that can hand out an asynchronous iterator.
type Iterable[T any] interface {
	AsyncIterator() Source[T]
}

// Iterator is the full asynchronous iteration surface offered to consumers.
type Iterator[T any] interface {
	Source[T]
	Returner[T]
	Thrower[T]
	Iterable[T]
}

// IsAsyncIterable reports whether v is non-nil and exposes the AsyncIterator capability.
func IsAsyncIterable[T any](v any) bool {
	if isNil(v) {
		return false
	}
	_, ok := v.(Iterable[T])
	return ok
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Chan, reflect.Func, reflect.Interface, reflect.Slice:
		return rv.IsNil()
	}
	return false
}
