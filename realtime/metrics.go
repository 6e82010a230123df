package realtime

import "github.com/prometheus/client_golang/prometheus"

var (
	// ActiveSessions is the number of admitted connections on this instance
	ActiveSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "courseauth_realtime_active_sessions",
			Help: "Authenticated realtime connections",
		},
	)

	// MessagesEmittedTotal counts frames delivered by server pushes
	MessagesEmittedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "courseauth_realtime_messages_emitted_total",
			Help: "Pushed frames delivered to sessions",
		},
		[]string{"type"},
	)
)

func init() {
	prometheus.MustRegister(ActiveSessions, MessagesEmittedTotal)
}
