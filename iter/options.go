package iter

import (
	"context"

	"github.com/samber/mo"
	"go.uber.org/zap"
)

// TransformFunc maps a single source value. It may block.
type TransformFunc[T, R any] func(ctx context.Context, v T) (R, error)

// ErrorTransformFunc turns a source failure into a value.
type ErrorTransformFunc[R any] func(ctx context.Context, err error) (R, error)

type mapConfig[R any] struct {
	errorTransform mo.Option[ErrorTransformFunc[R]]
	log            *zap.Logger
	metrics        *Metrics
}

type MapOption[R any] func(c *mapConfig[R])

// WithErrorTransform recovers source failures by mapping them to a value.
func WithErrorTransform[R any](fn ErrorTransformFunc[R]) MapOption[R] {
	return func(c *mapConfig[R]) {
		if fn != nil {
			c.errorTransform = mo.Some(fn)
		}
	}
}

func WithLogger[R any](log *zap.Logger) MapOption[R] {
	return func(c *mapConfig[R]) {
		if log != nil {
			c.log = log
		}
	}
}

func WithMetrics[R any](m *Metrics) MapOption[R] {
	return func(c *mapConfig[R]) {
		c.metrics = m
	}
}
