// Package pubsub provides event streams usable as iter sources: an in-memory
// topic broker and a redis channel subscription.
package pubsub

import (
	"context"
	"sync"

	"github.com/csimplestring/asynciter/errno"
	"github.com/csimplestring/asynciter/iter"
	mapset "github.com/deckarep/golang-set/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Message struct {
	ID      uuid.UUID
	Topic   string
	Payload []byte
}

type Option func(b *Broker)

// WithBuffer sets how many messages a subscription holds before Publish blocks.
func WithBuffer(n int) Option {
	return func(b *Broker) {
		b.buffer = n
	}
}

func WithLogger(log *zap.Logger) Option {
	return func(b *Broker) {
		b.log = log
	}
}

// Broker fans published messages out to every live subscription of a topic.
type Broker struct {
	mu     sync.RWMutex
	topics map[string]mapset.Set[*Subscription]
	closed bool

	buffer int
	log    *zap.Logger
}

func NewBroker(opts ...Option) *Broker {
	b := &Broker{
		topics: map[string]mapset.Set[*Subscription]{},
		buffer: 16,
		log:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Subscribe starts a subscription to topic. Messages published before this call are not seen.
func (b *Broker) Subscribe(topic string) (*Subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, errno.IllegalStateError("broker is closed")
	}

	s := &Subscription{
		topic:  topic,
		ch:     make(chan Message, b.buffer),
		done:   make(chan struct{}),
		broker: b,
	}

	subs, ok := b.topics[topic]
	if !ok {
		subs = mapset.NewSet[*Subscription]()
		b.topics[topic] = subs
	}
	subs.Add(s)

	b.log.Debug("subscribed", zap.String("topic", topic), zap.Int("subscribers", subs.Cardinality()))
	return s, nil
}

// Publish delivers payload to every subscription of topic, blocking while a
// subscription's buffer is full. It returns the id given to the message.
func (b *Broker) Publish(ctx context.Context, topic string, payload []byte) (uuid.UUID, error) {
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return uuid.Nil, errno.IllegalStateError("broker is closed")
	}
	var subs []*Subscription
	if set, ok := b.topics[topic]; ok {
		subs = set.ToSlice()
	}
	b.mu.RUnlock()

	msg := Message{ID: uuid.New(), Topic: topic, Payload: payload}
	for _, s := range subs {
		if err := s.deliver(ctx, msg); err != nil {
			return msg.ID, err
		}
	}
	return msg.ID, nil
}

// Subscribers returns the number of live subscriptions of topic.
func (b *Broker) Subscribers(topic string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if subs, ok := b.topics[topic]; ok {
		return subs.Cardinality()
	}
	return 0
}

// Close ends every subscription. Their Next settles done from now on.
func (b *Broker) Close() error {
	b.mu.Lock()
	b.closed = true
	topics := b.topics
	b.topics = map[string]mapset.Set[*Subscription]{}
	b.mu.Unlock()

	for _, subs := range topics {
		for _, s := range subs.ToSlice() {
			s.stop()
		}
	}
	return nil
}

func (b *Broker) remove(s *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs, ok := b.topics[s.topic]
	if !ok {
		return
	}
	subs.Remove(s)
	if subs.Cardinality() == 0 {
		delete(b.topics, s.topic)
	}
	b.log.Debug("unsubscribed", zap.String("topic", s.topic), zap.Int("subscribers", subs.Cardinality()))
}

// Subscription is the message stream of one Subscribe call.
type Subscription struct {
	topic    string
	ch       chan Message
	done     chan struct{}
	stopOnce sync.Once
	broker   *Broker
}

var _ iter.Source[Message] = &Subscription{}
var _ iter.Returner[Message] = &Subscription{}
var _ iter.Iterable[Message] = &Subscription{}

func (s *Subscription) Topic() string {
	return s.topic
}

// Next waits for the next message. It settles done once the subscription was returned
// or the broker closed, even when messages are still buffered.
func (s *Subscription) Next(ctx context.Context) (iter.Result[Message], error) {
	select {
	case <-s.done:
		return iter.Done[Message](), nil
	default:
	}

	select {
	case <-s.done:
		return iter.Done[Message](), nil
	case <-ctx.Done():
		return iter.Result[Message]{}, ctx.Err()
	case m := <-s.ch:
		return iter.Value(m), nil
	}
}

// Return unsubscribes. It is safe to call more than once.
func (s *Subscription) Return(ctx context.Context) (iter.Result[Message], error) {
	s.stop()
	s.broker.remove(s)
	return iter.Done[Message](), nil
}

func (s *Subscription) AsyncIterator() iter.Source[Message] {
	return s
}

func (s *Subscription) stop() {
	s.stopOnce.Do(func() {
		close(s.done)
	})
}

func (s *Subscription) deliver(ctx context.Context, m Message) error {
	select {
	case <-s.done:
		// unsubscribed in the meantime
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case s.ch <- m:
		return nil
	}
}
