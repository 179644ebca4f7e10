package incident

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "warroom"

var (
	incidentsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "incidents",
			Name:      "created_total",
			Help:      "Total incidents accepted by the ingestion gateway",
		},
		[]string{"type"},
	)

	incidentsResolved = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "incidents",
			Name:      "resolved_total",
			Help:      "Total incidents transitioned to resolved",
		},
	)
)

func recordIncidentCreated(incidentType string) {
	incidentsCreated.WithLabelValues(incidentType).Inc()
}

func recordIncidentResolved() {
	incidentsResolved.Inc()
}
