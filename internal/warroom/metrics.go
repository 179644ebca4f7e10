package warroom

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "warroom"

var (
	sessionsConnected = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "live",
			Name:      "sessions_connected",
			Help:      "Number of live WebSocket sessions",
		},
	)

	sessionFramesDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "live",
			Name:      "session_frames_dropped_total",
			Help:      "Frames discarded because a session queue was full",
		},
	)

	framesDispatched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "live",
			Name:      "frames_dispatched_total",
			Help:      "Delivery attempts that reached a session queue, per event",
		},
		[]string{"event"},
	)
)

func recordSessionDrop() {
	sessionFramesDropped.Inc()
}

func recordDispatch(event string, delivered int) {
	framesDispatched.WithLabelValues(event).Add(float64(delivered))
}

func recordSessionConnected() {
	sessionsConnected.Inc()
}

func recordSessionDisconnected() {
	sessionsConnected.Dec()
}
