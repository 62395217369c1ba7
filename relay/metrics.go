package relay

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics are registered on their own registry so several hubs can live in
// one process, tests included.
type Metrics struct {
	Registry    *prometheus.Registry
	Connections prometheus.Gauge
	Frames      *prometheus.CounterVec
	Failures    *prometheus.CounterVec
	RateLimited prometheus.Counter
	Removals    prometheus.Counter
	Swept       prometheus.Counter
	ProcessRSS  prometheus.Gauge
	ProcessCPU  prometheus.Gauge
}

func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Metrics{
		Registry: reg,
		Connections: factory.NewGauge(prometheus.GaugeOpts{
			Name: "relay_connections",
			Help: "Open websocket connections",
		}),
		Frames: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "relay_frames_total",
			Help: "Frames received by op",
		}, []string{"op"}),
		Failures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "relay_failures_total",
			Help: "Failed requests by op and code",
		}, []string{"op", "code"}),
		RateLimited: factory.NewCounter(prometheus.CounterOpts{
			Name: "relay_rate_limited_total",
			Help: "Writes refused by the per address limiter",
		}),
		Removals: factory.NewCounter(prometheus.CounterOpts{
			Name: "relay_disconnect_removals_total",
			Help: "Records removed because their connection dropped",
		}),
		Swept: factory.NewCounter(prometheus.CounterOpts{
			Name: "relay_swept_messages_total",
			Help: "Expired messages removed by the relay sweeper",
		}),
		ProcessRSS: factory.NewGauge(prometheus.GaugeOpts{
			Name: "relay_process_rss_bytes",
			Help: "Resident memory of the relay",
		}),
		ProcessCPU: factory.NewGauge(prometheus.GaugeOpts{
			Name: "relay_process_cpu_percent",
			Help: "CPU usage of the relay",
		}),
	}
}
