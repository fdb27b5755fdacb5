package provider

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus instruments the registry updates per call.
type Metrics struct {
	CallsTotal   *prometheus.CounterVec
	CallDuration *prometheus.HistogramVec
	Healthy      *prometheus.GaugeVec
	Fallbacks    prometheus.Counter
}

// NewMetrics registers the provider package's metrics against reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		CallsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "prdforge",
			Subsystem: "provider",
			Name:      "calls_total",
			Help:      "Provider calls by provider name and outcome.",
		}, []string{"provider", "outcome"}),
		CallDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "prdforge",
			Subsystem: "provider",
			Name:      "call_duration_seconds",
			Help:      "Provider call latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"provider"}),
		Healthy: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "prdforge",
			Subsystem: "provider",
			Name:      "healthy",
			Help:      "1 if the provider is healthy, 0 if in cooldown.",
		}, []string{"provider"}),
		Fallbacks: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "prdforge",
			Subsystem: "provider",
			Name:      "fallbacks_total",
			Help:      "Times execution advanced to the next candidate provider.",
		}),
	}
}
