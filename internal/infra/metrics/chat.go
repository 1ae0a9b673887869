package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(chatTurnsTotal, chatSessionsStarted) }

var (
	chatTurnsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chat_turns_total",
			Help:      "Chat turns sent to the backend, labeled by outcome.",
		},
		[]string{"outcome"}, // 'answered', 'failed', 'not_ready', 'invalid'
	)

	chatSessionsStarted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chat_sessions_started_total",
			Help:      "Total number of chat sessions opened on completed jobs.",
		},
	)
)

func IncChatTurn(outcome string) {
	chatTurnsTotal.WithLabelValues(norm(outcome)).Inc()
}

func IncChatSession() { chatSessionsStarted.Inc() }
