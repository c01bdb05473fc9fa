package realtime

import "github.com/prometheus/client_golang/prometheus"

var (
	wsConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "realtime_connections",
		Help: "Current number of live websocket subscriptions.",
	})

	published = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "realtime_events_published_total",
		Help: "Events handed to the local hub, by scope (user or broadcast).",
	}, []string{"scope"})

	dropped = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "realtime_frames_dropped_total",
		Help: "Frames dropped because a connection's send queue was full.",
	})
)

func init() {
	prometheus.MustRegister(wsConnections, published, dropped)
}
