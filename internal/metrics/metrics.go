// Package metrics exposes Prometheus instrumentation for the optimistic
// engine and the view cache.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Set bundles the collectors on a private registry so tests can create
// independent instances without duplicate-registration panics.
type Set struct {
	registry *prometheus.Registry

	MutationsTotal *prometheus.CounterVec
	RollbacksTotal *prometheus.CounterVec
	PendingOps     prometheus.Gauge
	CacheHits      prometheus.Counter
	CacheMisses    prometheus.Counter
}

// New creates a metric set on its own registry.
func New() *Set {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Set{
		registry: reg,
		MutationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "wunjo_mutations_total",
			Help: "Optimistic mutations by entity kind, operation, and outcome.",
		}, []string{"kind", "op", "outcome"}),
		RollbacksTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "wunjo_rollbacks_total",
			Help: "Rollbacks performed after backend rejection, by entity kind.",
		}, []string{"kind"}),
		PendingOps: factory.NewGauge(prometheus.GaugeOpts{
			Name: "wunjo_pending_operations",
			Help: "Mutations currently awaiting backend confirmation.",
		}),
		CacheHits: factory.NewCounter(prometheus.CounterOpts{
			Name: "wunjo_cache_hits_total",
			Help: "View cache hits.",
		}),
		CacheMisses: factory.NewCounter(prometheus.CounterOpts{
			Name: "wunjo_cache_misses_total",
			Help: "View cache misses.",
		}),
	}
}

// Handler serves the set's registry in Prometheus exposition format.
func (s *Set) Handler() http.Handler {
	return promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})
}
