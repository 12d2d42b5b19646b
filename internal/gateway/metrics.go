package gateway

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the gateway's prometheus collectors. A single instance is
// constructed at startup and handed to the tool router, which records
// ToolCallLatency for native tool calls; nothing updates the other
// collectors.
type Metrics struct {
	FramesTotal     *prometheus.CounterVec
	ToolCallLatency *prometheus.HistogramVec
	QueueDepth      *prometheus.GaugeVec
	AlarmFires      prometheus.Counter
	ConnectedPeers  *prometheus.GaugeVec
}

// NewMetrics registers the gateway's collectors on reg and returns them.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		FramesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gateway_frames_total",
			Help: "Frames processed by the dispatcher, by method and outcome.",
		}, []string{"method", "ok"}),
		ToolCallLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "gateway_tool_call_duration_seconds",
			Help:    "Latency of tool.invoke round trips, by tool.",
			Buckets: prometheus.DefBuckets,
		}, []string{"tool"}),
		QueueDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "gateway_queue_depth",
			Help: "Pending items per internal queue (session actors, async-exec deliveries).",
		}, []string{"queue"}),
		AlarmFires: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gateway_scheduler_alarm_fires_total",
			Help: "Number of times the unified scheduler alarm has fired.",
		}),
		ConnectedPeers: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "gateway_connected_peers",
			Help: "Currently connected peers, by mode.",
		}, []string{"mode"}),
	}
	reg.MustRegister(m.FramesTotal, m.ToolCallLatency, m.QueueDepth, m.AlarmFires, m.ConnectedPeers)
	return m
}
