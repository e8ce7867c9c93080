package pubsub

import (
	"context"
	"errors"
	"sync"

	"github.com/csimplestring/asynciter/iter"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"
)

// RedisSubscription streams the messages of redis channels.
type RedisSubscription struct {
	ps *redis.PubSub

	mu        sync.Mutex
	done      bool
	closeOnce sync.Once
	closeErr  error
}

var _ iter.Source[Message] = &RedisSubscription{}
var _ iter.Returner[Message] = &RedisSubscription{}
var _ iter.Iterable[Message] = &RedisSubscription{}

// SubscribeRedis subscribes to channels and waits for redis to confirm the subscription.
func SubscribeRedis(ctx context.Context, rdb *redis.Client, channels ...string) (*RedisSubscription, error) {
	ps := rdb.Subscribe(ctx, channels...)
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, eris.Wrapf(err, "subscribe to %v", channels)
	}
	return &RedisSubscription{ps: ps}, nil
}

// PublishRedis publishes payload on channel.
func PublishRedis(ctx context.Context, rdb *redis.Client, channel string, payload []byte) error {
	if err := rdb.Publish(ctx, channel, payload).Err(); err != nil {
		return eris.Wrapf(err, "publish to %s", channel)
	}
	return nil
}

func (r *RedisSubscription) Next(ctx context.Context) (iter.Result[Message], error) {
	if r.isDone() {
		return iter.Done[Message](), nil
	}

	m, err := r.ps.ReceiveMessage(ctx)
	if err != nil {
		if errors.Is(err, redis.ErrClosed) {
			r.markDone()
			return iter.Done[Message](), nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return iter.Result[Message]{}, ctxErr
		}
		return iter.Result[Message]{}, eris.Wrap(err, "receive redis message")
	}

	return iter.Value(Message{
		ID:      uuid.New(),
		Topic:   m.Channel,
		Payload: []byte(m.Payload),
	}), nil
}

// Return closes the underlying redis subscription once.
func (r *RedisSubscription) Return(ctx context.Context) (iter.Result[Message], error) {
	r.markDone()
	r.closeOnce.Do(func() {
		if err := r.ps.Close(); err != nil {
			r.closeErr = eris.Wrap(err, "close redis subscription")
		}
	})
	return iter.Done[Message](), r.closeErr
}

func (r *RedisSubscription) AsyncIterator() iter.Source[Message] {
	return r
}

func (r *RedisSubscription) isDone() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.done
}

func (r *RedisSubscription) markDone() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.done = true
}
