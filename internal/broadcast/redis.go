package broadcast

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/redis/go-redis/v9"
)

// RedisBroker implements Broker over Redis pub/sub. Redis channels already
// give the semantics the fan-out path needs: no persistence, no replay,
// at-most-once per connected subscriber.
type RedisBroker struct {
	client *redis.Client
}

// NewRedisBroker connects to Redis and verifies reachability. A failure
// here is fatal to startup, matching the durable-store policy.
func NewRedisBroker(ctx context.Context, addr, password string, db int) (*RedisBroker, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	slog.Info("connected to redis", "addr", addr)
	return &RedisBroker{client: client}, nil
}

// Publish sends payload on the topic channel. Redis fans out to
// subscribers without blocking the publisher.
func (b *RedisBroker) Publish(ctx context.Context, topic string, payload []byte) error {
	if err := b.client.Publish(ctx, topic, payload).Err(); err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}
	recordPublished(topic)
	return nil
}

// Subscribe opens a dedicated pub/sub connection for topic. Each
// subscription reads independently, so one slow consumer never stalls
// another.
func (b *RedisBroker) Subscribe(topic string, handler Handler) (Subscription, error) {
	pubsub := b.client.Subscribe(context.Background(), topic)

	// Force the subscription onto the wire before returning so callers
	// can publish immediately after.
	if _, err := pubsub.Receive(context.Background()); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("subscribe to %s: %w", topic, err)
	}

	sub := &redisSubscription{pubsub: pubsub}
	go func() {
		for msg := range pubsub.Channel() {
			handler(msg.Channel, []byte(msg.Payload))
		}
	}()

	return sub, nil
}

// Ping reports Redis reachability for health checks.
func (b *RedisBroker) Ping(ctx context.Context) error {
	return b.client.Ping(ctx).Err()
}

// Close shuts down the underlying client. Open subscriptions terminate
// as their connections drop.
func (b *RedisBroker) Close() error {
	return b.client.Close()
}

type redisSubscription struct {
	pubsub *redis.PubSub
	once   sync.Once
	err    error
}

// Close terminates the subscription. Idempotent.
func (s *redisSubscription) Close() error {
	s.once.Do(func() {
		s.err = s.pubsub.Close()
	})
	return s.err
}
