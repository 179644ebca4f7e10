package warroom

import (
	"fmt"
	"log/slog"

	"github.com/agrilog/warroom/internal/broadcast"
)

// Dispatcher subscribes to the fan-out topics and pushes every received
// envelope to the sessions joined to the target room. Delivery per
// session is best-effort and isolated: a failed or slow session costs
// nobody else anything.
type Dispatcher struct {
	broker   broadcast.Broker
	registry *Registry
	room     string
	subs     []broadcast.Subscription
}

// NewDispatcher creates a dispatcher targeting the given room. All
// traffic routes to one room today; per-message routing would extend
// handleMessage, not the registry.
func NewDispatcher(broker broadcast.Broker, registry *Registry, room string) *Dispatcher {
	return &Dispatcher{
		broker:   broker,
		registry: registry,
		room:     room,
	}
}

// Start subscribes to the incident and metrics topics.
func (d *Dispatcher) Start() error {
	for _, topic := range []string{broadcast.TopicIncidentEvents, broadcast.TopicMetricsEvents} {
		sub, err := d.broker.Subscribe(topic, d.handleMessage)
		if err != nil {
			d.Stop()
			return fmt.Errorf("subscribe to %s: %w", topic, err)
		}
		d.subs = append(d.subs, sub)
	}
	return nil
}

// Stop closes all subscriptions. Idempotent.
func (d *Dispatcher) Stop() {
	for _, sub := range d.subs {
		if err := sub.Close(); err != nil {
			slog.Warn("close dispatcher subscription", "error", err)
		}
	}
	d.subs = nil
}

func (d *Dispatcher) handleMessage(topic string, payload []byte) {
	env, err := broadcast.ParseEnvelope(payload)
	if err != nil {
		slog.Warn("discard malformed envelope", "topic", topic, "error", err)
		return
	}

	sessions := d.registry.Snapshot(d.room)
	delivered := 0
	for _, s := range sessions {
		if s.TrySend(payload) {
			delivered++
		}
	}

	recordDispatch(env.Event, delivered)

	if delivered < len(sessions) {
		slog.Debug("best-effort delivery incomplete",
			"event", env.Event,
			"room", d.room,
			"sessions", len(sessions),
			"delivered", delivered,
		)
	}
}
