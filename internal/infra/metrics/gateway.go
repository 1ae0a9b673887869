package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(gatewayRequestsTotal, rateLimitTriggeredTotal, notificationsTotal)
}

var (
	gatewayRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gateway_requests_total",
			Help:      "Gateway API requests, labeled by route pattern and status code.",
		},
		[]string{"route", "code"},
	)

	rateLimitTriggeredTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limit_triggered_total",
			Help:      "Total number of times callers have been rate-limited.",
		},
	)

	notificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Job notifications delivered, labeled by status.",
		},
		[]string{"status"},
	)
)

func IncGatewayRequest(route string, code int) {
	gatewayRequestsTotal.WithLabelValues(route, strconv.Itoa(code)).Inc()
}

func IncRateLimitTriggered() { rateLimitTriggeredTotal.Inc() }

func IncNotification(status string) {
	notificationsTotal.WithLabelValues(norm(status)).Inc()
}
