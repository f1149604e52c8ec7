package dispatcher

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics is a supplemented ambient concern not named by the distilled
// spec but natural for a cluster client under non-trivial load: counters
// and a histogram tracking redirections, CLUSTERDOWN occurrences, and
// command latency. Grounded in the pack's canonical-redis_exporter
// Exporter struct field layout (named prometheus.Counter/prometheus.Summary
// fields) and cc-backend's prometheus/client_golang dependency. A
// Dispatcher with no Metrics installed (the default) never touches this
// package at all.
type Metrics struct {
	Redirections   prometheus.Counter
	ClusterDowns   prometheus.Counter
	CommandLatency prometheus.Histogram
}

// NewMetrics builds a Metrics instance and registers it with reg. Passing a
// nil registry is valid: the instruments are still usable, just unexported.
func NewMetrics(reg prometheus.Registerer, namespace string) *Metrics {
	m := &Metrics{
		Redirections: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "redirections_total",
			Help:      "Total MOVED/ASK/TRYAGAIN redirections followed.",
		}),
		ClusterDowns: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "clusterdown_total",
			Help:      "Total CLUSTERDOWN replies observed.",
		}),
		CommandLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "command_latency_seconds",
			Help:      "Latency from Submit to reply delivery.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	if reg != nil {
		reg.MustRegister(m.Redirections, m.ClusterDowns, m.CommandLatency)
	}
	return m
}

func (m *Metrics) observeLatency(d time.Duration) {
	if m == nil || m.CommandLatency == nil {
		return
	}
	m.CommandLatency.Observe(d.Seconds())
}

func (m *Metrics) countRedirection() {
	if m == nil || m.Redirections == nil {
		return
	}
	m.Redirections.Inc()
}

func (m *Metrics) countClusterDown() {
	if m == nil || m.ClusterDowns == nil {
		return
	}
	m.ClusterDowns.Inc()
}
