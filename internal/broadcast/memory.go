package broadcast

import (
	"context"
	"errors"
	"sync"
)

// DefaultSubscriberBuffer bounds the per-subscriber queue in the in-memory
// broker. A subscriber that falls this far behind starts losing messages.
const DefaultSubscriberBuffer = 256

// ErrBrokerClosed is returned by Publish and Subscribe after Close.
var ErrBrokerClosed = errors.New("broadcast: broker closed")

// MemoryBroker is an in-process Broker. Each subscriber owns a buffered
// channel drained by its own goroutine, so publish order is preserved per
// subscriber while a slow subscriber only loses its own messages.
type MemoryBroker struct {
	mu     sync.RWMutex
	subs   map[string]map[*memorySubscription]struct{}
	closed bool
	buffer int
}

// NewMemoryBroker creates an in-memory broker with the default buffer size.
func NewMemoryBroker() *MemoryBroker {
	return NewMemoryBrokerWithBuffer(DefaultSubscriberBuffer)
}

// NewMemoryBrokerWithBuffer creates an in-memory broker with a custom
// per-subscriber buffer size. Used by tests to force overflow quickly.
func NewMemoryBrokerWithBuffer(buffer int) *MemoryBroker {
	if buffer <= 0 {
		buffer = 1
	}
	return &MemoryBroker{
		subs:   make(map[string]map[*memorySubscription]struct{}),
		buffer: buffer,
	}
}

type message struct {
	topic   string
	payload []byte
}

type memorySubscription struct {
	broker  *MemoryBroker
	topic   string
	handler Handler
	queue   chan message
	done    chan struct{}
	once    sync.Once
}

// Publish delivers payload to every current subscriber of topic. Never
// blocks: a subscriber with a full queue drops this message.
func (b *MemoryBroker) Publish(_ context.Context, topic string, payload []byte) error {
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return ErrBrokerClosed
	}
	subs := make([]*memorySubscription, 0, len(b.subs[topic]))
	for sub := range b.subs[topic] {
		subs = append(subs, sub)
	}
	b.mu.RUnlock()

	msg := message{topic: topic, payload: payload}
	for _, sub := range subs {
		select {
		case sub.queue <- msg:
		default:
			recordDropped(topic)
		}
	}

	recordPublished(topic)
	return nil
}

// Subscribe registers handler for topic and starts its delivery goroutine.
func (b *MemoryBroker) Subscribe(topic string, handler Handler) (Subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, ErrBrokerClosed
	}

	sub := &memorySubscription{
		broker:  b,
		topic:   topic,
		handler: handler,
		queue:   make(chan message, b.buffer),
		done:    make(chan struct{}),
	}

	if b.subs[topic] == nil {
		b.subs[topic] = make(map[*memorySubscription]struct{})
	}
	b.subs[topic][sub] = struct{}{}

	go sub.run()
	return sub, nil
}

// Ping always succeeds: the in-process transport cannot be unreachable.
func (b *MemoryBroker) Ping(_ context.Context) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrBrokerClosed
	}
	return nil
}

// Close releases every subscription. Subsequent publishes fail.
func (b *MemoryBroker) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	var all []*memorySubscription
	for _, subs := range b.subs {
		for sub := range subs {
			all = append(all, sub)
		}
	}
	b.subs = make(map[string]map[*memorySubscription]struct{})
	b.mu.Unlock()

	for _, sub := range all {
		sub.stop()
	}
	return nil
}

func (s *memorySubscription) run() {
	for {
		select {
		case msg := <-s.queue:
			s.handler(msg.topic, msg.payload)
		case <-s.done:
			return
		}
	}
}

// Close removes the subscription. Idempotent; safe concurrently with an
// in-flight Publish, which at worst enqueues to a queue nobody drains.
func (s *memorySubscription) Close() error {
	s.broker.mu.Lock()
	if subs, ok := s.broker.subs[s.topic]; ok {
		delete(subs, s)
		if len(subs) == 0 {
			delete(s.broker.subs, s.topic)
		}
	}
	s.broker.mu.Unlock()

	s.stop()
	return nil
}

func (s *memorySubscription) stop() {
	s.once.Do(func() { close(s.done) })
}
