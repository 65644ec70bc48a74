package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collectors holds the console's Prometheus instruments. Poll cycles and
// saves are the interesting signals: they run unattended, so a quiet log is
// not evidence that they are healthy.
type Collectors struct {
	PollCycles       *prometheus.CounterVec
	PollDeviceErrors prometheus.Counter
	AlertCycles      *prometheus.CounterVec
	TopologySaves    *prometheus.CounterVec
	UpstreamRequests *prometheus.HistogramVec
	ActiveSessions   prometheus.Gauge
}

// New registers the console collectors on the given registry.
func New(reg prometheus.Registerer) *Collectors {
	factory := promauto.With(reg)

	return &Collectors{
		PollCycles: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "nocturne_console",
			Subsystem: "editor",
			Name:      "device_poll_cycles_total",
			Help:      "Device-status poll cycles, by outcome.",
		}, []string{"outcome"}),
		PollDeviceErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "nocturne_console",
			Subsystem: "editor",
			Name:      "device_poll_errors_total",
			Help:      "Individual device stat fetches that failed inside a poll cycle.",
		}),
		AlertCycles: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "nocturne_console",
			Subsystem: "editor",
			Name:      "alert_poll_cycles_total",
			Help:      "Alert poll cycles, by outcome.",
		}, []string{"outcome"}),
		TopologySaves: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "nocturne_console",
			Subsystem: "editor",
			Name:      "topology_saves_total",
			Help:      "Topology save attempts, by mode (manual/auto) and outcome.",
		}, []string{"mode", "outcome"}),
		UpstreamRequests: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "nocturne_console",
			Subsystem: "upstream",
			Name:      "request_duration_seconds",
			Help:      "Latency of calls to the upstream NocturneScope API.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation", "outcome"}),
		ActiveSessions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "nocturne_console",
			Subsystem: "editor",
			Name:      "active_sessions",
			Help:      "Editor sessions currently open.",
		}),
	}
}

// NewDefault registers on the default Prometheus registry.
func NewDefault() *Collectors {
	return New(prometheus.DefaultRegisterer)
}
