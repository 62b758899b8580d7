package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Auth-layer Prometheus metrics. Standalone package to avoid import cycles
// between the auth pipeline and HTTP packages.

var (
	AuthDecisions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "agentgate_auth_decisions_total",
		Help: "Decisiones de autenticación por resultado y razón",
	}, []string{"decision", "reason"})

	AuthDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "agentgate_auth_duration_ms",
		Help:    "Latencia del pipeline de autenticación en milisegundos",
		Buckets: prometheus.ExponentialBuckets(0.25, 2, 12),
	})

	RateLimitRejections = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "agentgate_ratelimit_rejections_total",
		Help: "Rechazos del rate limiter por dimensión",
	}, []string{"dimension", "frozen"})

	LimiterDegraded = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "agentgate_limiter_degraded_total",
		Help: "Requests admitidos en modo degradado (limiter inalcanzable, fail-open)",
	})

	AutoFreezes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "agentgate_auto_freezes_total",
		Help: "Freezes automáticos disparados por acumulación de fallos",
	}, []string{"dimension"})
)

// RegisterAuth registers the auth metrics on the given registry (or default if nil).
func RegisterAuth(reg prometheus.Registerer) error {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	collectors := []prometheus.Collector{
		AuthDecisions, AuthDuration, RateLimitRejections, LimiterDegraded, AutoFreezes,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				return err
			}
		}
	}
	return nil
}
