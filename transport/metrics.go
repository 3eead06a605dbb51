package transport

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// serverMetrics holds the server's Prometheus collectors. Each server owns
// its own registry so tests can run several servers in one process without
// duplicate-registration panics.
type serverMetrics struct {
	registry *prometheus.Registry

	received  *prometheus.CounterVec
	rejected  *prometheus.CounterVec
	durations prometheus.Histogram
}

func newServerMetrics() *serverMetrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &serverMetrics{
		registry: reg,
		received: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "pulse_server_messages_total",
			Help: "Messages received, labelled by action and outcome.",
		}, []string{"action", "outcome"}),
		rejected: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "pulse_server_rejections_total",
			Help: "Messages rejected before dispatch, labelled by reason.",
		}, []string{"reason"}),
		durations: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "pulse_server_request_duration_seconds",
			Help:    "End-to-end message handling latency.",
			Buckets: prometheus.DefBuckets,
		}),
	}
}
