// Package subscription turns an event stream into a stream of responses.
//
// Subscribe checks that the stream a caller resolved is async iterable and
// then resolves every event it produces through a mapping iterator. The
// returned iterator owns the stream: closing it, or any failure while
// resolving an event, returns the stream.
package subscription

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/csimplestring/asynciter/errno"
	"github.com/csimplestring/asynciter/iter"
	"github.com/google/uuid"
	"github.com/repeale/fp-go"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Response is what a subscriber receives for one event.
type Response struct {
	ID     uuid.UUID     `json:"id"`
	Data   any           `json:"data,omitempty"`
	Errors []ErrorDetail `json:"errors,omitempty"`
}

type ErrorDetail struct {
	Message string `json:"message"`
}

// ResolveFunc computes the data of the response to event.
type ResolveFunc[E any] func(ctx context.Context, event E) (any, error)

type config struct {
	recoverUpstream bool
	log             *zap.Logger
	metrics         *iter.Metrics
}

type Option func(c *config)

// WithRecoverUpstreamErrors reports failures of the event stream as error
// responses instead of failing the subscription. The stream is pulled again
// on the following Next.
func WithRecoverUpstreamErrors(enabled bool) Option {
	return func(c *config) {
		c.recoverUpstream = enabled
	}
}

func WithLogger(log *zap.Logger) Option {
	return func(c *config) {
		c.log = log
	}
}

func WithMetrics(m *iter.Metrics) Option {
	return func(c *config) {
		c.metrics = m
	}
}

// Subscribe maps the events of stream to responses using resolve.
//
// stream must implement iter.Iterable[E], otherwise an error wrapping
// errno.ErrNotAsyncIterable is returned and nothing is consumed.
//
// An error returned by resolve becomes the Errors of that event's response,
// except when ctx is done: the subscription then fails with the context error
// and the stream is returned.
func Subscribe[E any](stream any, resolve ResolveFunc[E], opts ...Option) (*iter.MappingIterator[E, *Response], error) {
	if !iter.IsAsyncIterable[E](stream) {
		return nil, errno.NotAsyncIterable(stream)
	}
	if resolve == nil {
		return nil, errno.NullPointer("resolve")
	}

	c := &config{log: zap.NewNop()}
	for _, opt := range opts {
		opt(c)
	}

	mapOpts := []iter.MapOption[*Response]{
		iter.WithLogger[*Response](c.log),
		iter.WithMetrics[*Response](c.metrics),
	}
	if c.recoverUpstream {
		mapOpts = append(mapOpts, iter.WithErrorTransform(func(ctx context.Context, err error) (*Response, error) {
			c.log.Debug("event stream failed", zap.Error(err))
			return errorResponse(err), nil
		}))
	}

	transform := func(ctx context.Context, event E) (*Response, error) {
		data, err := resolve(ctx, event)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			return errorResponse(err), nil
		}
		return &Response{ID: uuid.New(), Data: data}, nil
	}

	return iter.MapIterable[E, *Response](stream.(iter.Iterable[E]), transform, mapOpts...), nil
}

func errorResponse(err error) *Response {
	return &Response{
		ID: uuid.New(),
		Errors: fp.Map(func(e error) ErrorDetail {
			return ErrorDetail{Message: e.Error()}
		})(splitErrors(err)),
	}
}

// splitErrors unpacks errors joined with errors.Join into one entry each.
func splitErrors(err error) []error {
	var joined interface{ Unwrap() []error }
	if errors.As(err, &joined) {
		return joined.Unwrap()
	}
	return []error{err}
}

// Encode renders resp as a single JSON line.
func Encode(resp *Response) ([]byte, error) {
	b, err := json.Marshal(resp)
	if err != nil {
		return nil, eris.Wrap(err, "encode response")
	}
	return b, nil
}
