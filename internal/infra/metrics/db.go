package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(dbPoolStats, historyRowsPurged) }

var (
	dbPoolStats = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "db_pool_stats",
			Help:      "Current state of the history database connection pool.",
		},
		[]string{"state"}, // 'total', 'idle', 'in_use'
	)

	historyRowsPurged = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "history_turns_purged_total",
			Help:      "Chat turns removed by the retention worker.",
		},
	)
)

func SetDBPoolStats(total, idle, inUse int32) {
	dbPoolStats.WithLabelValues("total").Set(float64(total))
	dbPoolStats.WithLabelValues("idle").Set(float64(idle))
	dbPoolStats.WithLabelValues("in_use").Set(float64(inUse))
}

func AddTurnsPurged(n int64) { historyRowsPurged.Add(float64(n)) }
