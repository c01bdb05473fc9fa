package services

import "github.com/prometheus/client_golang/prometheus"

var (
	votesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "peerq_votes_total",
		Help: "Vote toggles by target and resulting state.",
	}, []string{"target", "result"})

	notificationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "peerq_notifications_dispatched_total",
		Help: "Notifications persisted, by type and audience.",
	}, []string{"type", "audience"})

	livePushFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "peerq_live_push_failures_total",
		Help: "Live notification pushes that failed after the row was stored.",
	})

	assistantReplies = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "peerq_assistant_replies_total",
		Help: "Assistant replies by source (generator or fallback).",
	}, []string{"source"})
)

func init() {
	prometheus.MustRegister(votesTotal, notificationsTotal, livePushFailures, assistantReplies)
}
