package worker

import "github.com/prometheus/client_golang/prometheus"

var (
	commandsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "inferd",
			Subsystem: "worker",
			Name:      "commands_total",
			Help:      "Commands processed by the model worker",
		},
		[]string{"kind", "outcome"},
	)

	activeSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "inferd",
			Subsystem: "worker",
			Name:      "active_sessions",
			Help:      "Generation sessions currently mid-stream",
		},
	)

	tokensEmitted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "inferd",
			Subsystem: "worker",
			Name:      "tokens_emitted_total",
			Help:      "Content tokens emitted across all sessions",
		},
	)

	reloadDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "inferd",
			Subsystem: "worker",
			Name:      "reload_duration_seconds",
			Help:      "Wall time of model reloads, including drain",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
		},
	)
)

func init() {
	prometheus.MustRegister(commandsTotal, activeSessions, tokensEmitted, reloadDuration)
}
