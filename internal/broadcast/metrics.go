package broadcast

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "warroom"

var (
	messagesPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "broadcast",
			Name:      "published_total",
			Help:      "Total messages published per topic",
		},
		[]string{"topic"},
	)

	messagesDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "broadcast",
			Name:      "dropped_total",
			Help:      "Messages dropped because a subscriber queue was full",
		},
		[]string{"topic"},
	)
)

func recordPublished(topic string) {
	messagesPublished.WithLabelValues(topic).Inc()
}

func recordDropped(topic string) {
	messagesDropped.WithLabelValues(topic).Inc()
}
