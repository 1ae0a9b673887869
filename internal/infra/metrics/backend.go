package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(backendCallLatencyMs, backendUp)
}

var (
	backendCallLatencyMs = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "backend_call_latency_ms",
			Help:      "Backend round trip latency distribution in milliseconds.",
			Buckets:   []float64{10, 25, 50, 100, 200, 400, 800, 1600, 3000, 5000, 10000},
		},
		[]string{"operation", "success"},
	)

	backendUp = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "backend_up",
			Help:      "1 when the last liveness probe of the backend succeeded.",
		},
	)
)

func ObserveBackendCall(operation string, latencyMs int64, success bool) {
	backendCallLatencyMs.WithLabelValues(norm(operation), strconv.FormatBool(success)).
		Observe(float64(latencyMs))
}

func SetBackendUp(up bool) {
	if up {
		backendUp.Set(1)
		return
	}
	backendUp.Set(0)
}
