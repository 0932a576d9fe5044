// Package metrics exposes Prometheus counters for the decoy pipeline.
//
// Every method is safe to call on a nil *Metrics, so components can be built
// without metrics in tests.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "decoy"

// Metrics holds the registered collectors.
type Metrics struct {
	registry      *prometheus.Registry
	turns         *prometheus.CounterVec
	replies       *prometheus.CounterVec
	deliveries    *prometheus.CounterVec
	storeErrors   *prometheus.CounterVec
	riskScore     prometheus.Histogram
	storeDegraded prometheus.Gauge
	activeTurns   prometheus.Gauge
}

// New registers collectors on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		turns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turns_total",
			Help:      "Processed inbound messages by outcome.",
		}, []string{"outcome"}),
		replies: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "replies_total",
			Help:      "Generated replies by provider.",
		}, []string{"provider"}),
		deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deliveries_total",
			Help:      "Final report deliveries by result.",
		}, []string{"result"}),
		storeErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_errors_total",
			Help:      "Session store failures by operation.",
		}, []string{"op"}),
		riskScore: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "risk_score",
			Help:      "Distribution of per-turn risk scores.",
			Buckets:   prometheus.LinearBuckets(0, 0.1, 11),
		}),
		storeDegraded: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "store_degraded",
			Help:      "1 when the session store fell back to memory.",
		}),
		activeTurns: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "turns_in_flight",
			Help:      "Messages currently being processed.",
		}),
	}
	m.registry.MustRegister(
		m.turns, m.replies, m.deliveries, m.storeErrors,
		m.riskScore, m.storeDegraded, m.activeTurns,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Turn counts one processed message.
func (m *Metrics) Turn(outcome string) {
	if m == nil {
		return
	}
	m.turns.WithLabelValues(outcome).Inc()
}

// Reply counts a reply produced by provider.
func (m *Metrics) Reply(provider string) {
	if m == nil {
		return
	}
	m.replies.WithLabelValues(provider).Inc()
}

// Delivery counts a report delivery outcome.
func (m *Metrics) Delivery(result string) {
	if m == nil {
		return
	}
	m.deliveries.WithLabelValues(result).Inc()
}

// StoreError counts a failed store operation.
func (m *Metrics) StoreError(op string) {
	if m == nil {
		return
	}
	m.storeErrors.WithLabelValues(op).Inc()
}

// RiskScore observes one turn's score.
func (m *Metrics) RiskScore(score float64) {
	if m == nil {
		return
	}
	m.riskScore.Observe(score)
}

// StoreDegraded records whether the store runs on the memory fallback.
func (m *Metrics) StoreDegraded(degraded bool) {
	if m == nil {
		return
	}
	if degraded {
		m.storeDegraded.Set(1)
		return
	}
	m.storeDegraded.Set(0)
}

// TurnStarted increments the in-flight gauge and returns its decrement.
func (m *Metrics) TurnStarted() func() {
	if m == nil {
		return func() {}
	}
	m.activeTurns.Inc()
	return m.activeTurns.Dec
}
