package testutil

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/csimplestring/asynciter/iter"
)

// Source is an instrumented iter.Source with only the pull capability.
type Source[T any] struct {
	mu     sync.Mutex
	values []T
	pos    int
	errs   map[int]error
	calls  int

	// Block, when set, makes every Next wait until it is closed.
	// Entered receives a signal each time a Next call starts waiting.
	Block   chan struct{}
	Entered chan struct{}
}

func NewSource[T any](values ...T) *Source[T] {
	return &Source[T]{
		values: values,
		errs:   map[int]error{},
	}
}

// FailAt makes the i-th Next call (zero based) fail with err.
func (s *Source[T]) FailAt(i int, err error) *Source[T] {
	s.errs[i] = err
	return s
}

func (s *Source[T]) Next(ctx context.Context) (iter.Result[T], error) {
	if s.Block != nil {
		if s.Entered != nil {
			s.Entered <- struct{}{}
		}
		select {
		case <-s.Block:
		case <-ctx.Done():
			return iter.Result[T]{}, ctx.Err()
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.calls
	s.calls++
	if err, ok := s.errs[i]; ok {
		return iter.Result[T]{}, err
	}
	if s.pos < len(s.values) {
		v := s.values[s.pos]
		s.pos++
		return iter.Value(v), nil
	}
	return iter.Done[T](), nil
}

func (s *Source[T]) NextCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// Closable adds a counted close capability to Source.
type Closable[T any] struct {
	*Source[T]
	ReturnResult iter.Result[T]
	ReturnErr    error
	returnCalls  atomic.Int32
}

func NewClosable[T any](values ...T) *Closable[T] {
	return &Closable[T]{
		Source:       NewSource(values...),
		ReturnResult: iter.Done[T](),
	}
}

func (c *Closable[T]) Return(ctx context.Context) (iter.Result[T], error) {
	c.returnCalls.Add(1)
	return c.ReturnResult, c.ReturnErr
}

func (c *Closable[T]) ReturnCalls() int {
	return int(c.returnCalls.Load())
}

// Throwable adds an error injection capability to Source, without close.
type Throwable[T any] struct {
	*Source[T]
	ThrowResult iter.Result[T]
	ThrowErr    error
	mu          sync.Mutex
	thrown      []error
}

func NewThrowable[T any](values ...T) *Throwable[T] {
	return &Throwable[T]{
		Source:      NewSource(values...),
		ThrowResult: iter.Done[T](),
	}
}

func (t *Throwable[T]) Throw(ctx context.Context, err error) (iter.Result[T], error) {
	t.mu.Lock()
	t.thrown = append(t.thrown, err)
	t.mu.Unlock()
	return t.ThrowResult, t.ThrowErr
}

func (t *Throwable[T]) Thrown() []error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]error(nil), t.thrown...)
}

// Full has every capability: pull, close and error injection.
type Full[T any] struct {
	*Closable[T]
	ThrowResult iter.Result[T]
	ThrowErr    error
	mu          sync.Mutex
	thrown      []error
}

func NewFull[T any](values ...T) *Full[T] {
	return &Full[T]{
		Closable:    NewClosable(values...),
		ThrowResult: iter.Done[T](),
	}
}

func (f *Full[T]) Throw(ctx context.Context, err error) (iter.Result[T], error) {
	f.mu.Lock()
	f.thrown = append(f.thrown, err)
	f.mu.Unlock()
	return f.ThrowResult, f.ThrowErr
}

func (f *Full[T]) Thrown() []error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]error(nil), f.thrown...)
}
