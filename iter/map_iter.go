package iter

import (
	"context"
	"sync/atomic"

	"github.com/csimplestring/asynciter/errno"
	"github.com/samber/mo"
	"go.uber.org/zap"
)

// MappingIterator decorates a Source, applying a transform to every value it
// produces while forwarding completion, cancellation and failures.
//
// Operations must not overlap. A call issued while another one is in flight
// fails with errno.ErrProtocolViolation and leaves the source untouched.
//
// Once a done result or a failure has been returned the iterator is terminated:
// Next and Return settle done without calling the source, Throw fails with the
// injected error.
type MappingIterator[T, R any] struct {
	caps           Capabilities[T]
	transform      TransformFunc[T, R]
	errorTransform mo.Option[ErrorTransformFunc[R]]
	log            *zap.Logger
	metrics        *Metrics

	inFlight   atomic.Bool
	terminated bool
}

var _ Iterator[int] = &MappingIterator[string, int]{}

// Map wraps src so that every value it yields is passed through transform.
// Whether src can be closed or can receive errors is decided here, once.
// Map panics when src or transform is nil.
func Map[T, R any](src Source[T], transform TransformFunc[T, R], opts ...MapOption[R]) *MappingIterator[T, R] {
	if src == nil {
		panic("iter.Map: nil source")
	}
	return MapCapabilities(CapabilitiesOf(src), transform, opts...)
}

// MapIterable obtains the iterator of it and maps it.
// It panics when it, its iterator or transform is nil.
func MapIterable[T, R any](it Iterable[T], transform TransformFunc[T, R], opts ...MapOption[R]) *MappingIterator[T, R] {
	if it == nil {
		panic("iter.MapIterable: nil iterable")
	}
	return Map(it.AsyncIterator(), transform, opts...)
}

// MapCapabilities maps a source described by an explicit capability descriptor.
// It panics when caps.Next or transform is nil.
func MapCapabilities[T, R any](caps Capabilities[T], transform TransformFunc[T, R], opts ...MapOption[R]) *MappingIterator[T, R] {
	if caps.Next == nil {
		panic("iter.MapCapabilities: nil next")
	}
	if transform == nil {
		panic("iter.MapCapabilities: nil transform")
	}

	c := &mapConfig[R]{
		errorTransform: mo.None[ErrorTransformFunc[R]](),
		log:            zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}

	return &MappingIterator[T, R]{
		caps:           caps,
		transform:      transform,
		errorTransform: c.errorTransform,
		log:            c.log,
		metrics:        c.metrics,
	}
}

// Next pulls the next value from the source and transforms it.
func (m *MappingIterator[T, R]) Next(ctx context.Context) (Result[R], error) {
	if err := m.acquire("Next"); err != nil {
		return Result[R]{}, err
	}
	defer m.release()

	if m.terminated {
		return Done[R](), nil
	}

	res, err := m.caps.Next(ctx)
	return m.settle(ctx, res, err, false)
}

// Return terminates the sequence early. When the source can be closed, its
// close result goes through the same pipeline as a pulled result.
func (m *MappingIterator[T, R]) Return(ctx context.Context) (Result[R], error) {
	if err := m.acquire("Return"); err != nil {
		return Result[R]{}, err
	}
	defer m.release()

	if m.terminated {
		return Done[R](), nil
	}

	ret, ok := m.caps.Return.Get()
	if !ok {
		m.terminated = true
		return Done[R](), nil
	}

	res, err := ret(ctx)
	return m.settle(ctx, res, err, true)
}

// Throw injects err into the source. Sources without that capability are
// closed and err is returned. A nil err is replaced by an errno.ErrNullPointer
// error so that Throw never settles a value from a closed source.
func (m *MappingIterator[T, R]) Throw(ctx context.Context, err error) (Result[R], error) {
	if aerr := m.acquire("Throw"); aerr != nil {
		return Result[R]{}, aerr
	}
	defer m.release()

	if err == nil {
		err = errno.NullPointer("thrown error")
	}

	if m.terminated {
		return Result[R]{}, err
	}

	throw, ok := m.caps.Throw.Get()
	if !ok {
		return m.abruptClose(ctx, err, KindUpstream, false)
	}

	res, terr := throw(ctx, err)
	return m.settle(ctx, res, terr, false)
}

// AsyncIterator returns m itself.
func (m *MappingIterator[T, R]) AsyncIterator() Source[R] {
	return m
}

// settle processes a source outcome. closed reports whether the current
// operation already invoked the source's close capability.
func (m *MappingIterator[T, R]) settle(ctx context.Context, res Result[T], err error, closed bool) (Result[R], error) {
	if err != nil {
		return m.mapReject(ctx, err, closed)
	}
	return m.mapResult(ctx, res, closed)
}

func (m *MappingIterator[T, R]) mapResult(ctx context.Context, res Result[T], closed bool) (Result[R], error) {
	if res.Done {
		m.terminated = true
		return Done[R](), nil
	}

	v, err := m.transform(ctx, res.Value)
	if err != nil {
		return m.abruptClose(ctx, err, KindTransform, closed)
	}

	m.metrics.mapped()
	return Value(v), nil
}

func (m *MappingIterator[T, R]) mapReject(ctx context.Context, cause error, closed bool) (Result[R], error) {
	fn, ok := m.errorTransform.Get()
	if !ok {
		m.terminated = true
		m.metrics.failed(KindUpstream)
		return Result[R]{}, cause
	}

	v, err := fn(ctx, cause)
	if err != nil {
		return m.abruptClose(ctx, err, KindTransform, closed)
	}

	m.metrics.mapped()
	return Value(v), nil
}

// abruptClose closes the source at most once and returns cause.
// The close outcome is discarded; cause is always what surfaces.
func (m *MappingIterator[T, R]) abruptClose(ctx context.Context, cause error, kind string, closed bool) (Result[R], error) {
	m.terminated = true
	m.metrics.failed(kind)

	ret, ok := m.caps.Return.Get()
	if !ok || closed {
		return Result[R]{}, cause
	}

	// cleanup runs even when the caller's context is already done
	if _, err := ret(context.WithoutCancel(ctx)); err != nil {
		m.metrics.closeSuppressed()
		m.log.Debug("source close failed during abrupt close",
			zap.Error(errno.CloseFailure(err)),
			zap.NamedError("cause", cause))
	}
	return Result[R]{}, cause
}

func (m *MappingIterator[T, R]) acquire(op string) error {
	if !m.inFlight.CompareAndSwap(false, true) {
		m.metrics.failed(KindProtocol)
		return errno.ProtocolViolation(op)
	}
	return nil
}

func (m *MappingIterator[T, R]) release() {
	m.inFlight.Store(false)
}
