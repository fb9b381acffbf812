// Package statistics exposes endpoint counters over Prometheus.
package statistics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	FramesSent = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "framerpc_frames_sent_total", Help: "link frames written to the phy"},
	)

	FramesReceived = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "framerpc_frames_received_total", Help: "complete link frames parsed"},
	)

	FrameErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "framerpc_frame_errors_total", Help: "link parse violations by reason"},
		[]string{"reason"},
	)

	MessagesDropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "framerpc_messages_dropped_total", Help: "inbound messages dropped by reason"},
		[]string{"reason"},
	)

	ActiveWaiters = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "framerpc_active_waiters", Help: "in-use request waiter slots"},
	)

	HandlerDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "framerpc_handler_duration_seconds",
			Help:    "registered handler execution time",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.15, 0.5, 1},
		},
	)
)

func init() {
	prometheus.MustRegister(
		FramesSent,
		FramesReceived,
		FrameErrors,
		MessagesDropped,
		ActiveWaiters,
		HandlerDuration,
	)
}

func Handler() http.Handler {
	return promhttp.Handler()
}

// Serve blocks on an HTTP listener exposing /metrics. Callers run it
// in its own goroutine.
func Serve(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())
	return http.ListenAndServe(addr, mux)
}
