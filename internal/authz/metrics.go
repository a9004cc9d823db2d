package authz

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	metricsOnce sync.Once

	decisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "authz_decisions_total",
			Help: "Permission decisions by outcome.",
		},
		[]string{"outcome"},
	)

	cacheHitsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "authz_cache_hits_total",
		Help: "Decisions served from the cache.",
	})

	cacheMissesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "authz_cache_misses_total",
		Help: "Decisions computed fresh.",
	})
)

// RegisterMetrics registers resolver metrics in the default registry. Safe to
// call more than once.
func RegisterMetrics() {
	metricsOnce.Do(func() {
		prometheus.MustRegister(decisionsTotal, cacheHitsTotal, cacheMissesTotal)
	})
}

func observeDecision(allowed bool) {
	if allowed {
		decisionsTotal.WithLabelValues("allow").Inc()
		return
	}
	decisionsTotal.WithLabelValues("deny").Inc()
}

func observeCacheHit()  { cacheHitsTotal.Inc() }
func observeCacheMiss() { cacheMissesTotal.Inc() }
