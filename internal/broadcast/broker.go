// Package broadcast provides the pub/sub fan-out channel that decouples
// incident producers from live dashboard consumers. Delivery is best-effort
// and at-most-once per subscriber: a subscriber not listening at publish
// time never sees that message. Replay is the durable store's job.
package broadcast

import "context"

// Topic names carried by the channel.
const (
	TopicIncidentEvents = "incident-events"
	TopicMetricsEvents  = "metrics-events"
)

// Handler consumes a single published payload. Handlers for one
// subscription are invoked sequentially in publish order.
type Handler func(topic string, payload []byte)

// Broker is the fan-out channel. Publish must never block on slow
// subscribers; a saturated subscriber drops messages instead.
type Broker interface {
	// Publish sends payload to every current subscriber of topic.
	Publish(ctx context.Context, topic string, payload []byte) error

	// Subscribe registers a handler for topic. The returned subscription
	// must be closed to release resources; Close is idempotent and safe
	// to call concurrently with an in-flight dispatch.
	Subscribe(topic string, handler Handler) (Subscription, error)

	// Ping reports whether the transport is reachable.
	Ping(ctx context.Context) error

	// Close shuts the broker down and releases all subscriptions.
	Close() error
}

// Subscription is a handle to an active topic subscription.
type Subscription interface {
	Close() error
}
