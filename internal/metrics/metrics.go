// Package metrics implements the Prometheus instrumentation on the
// orchestrator and pool registry that SPEC_FULL.md's domain stack promises.
// Grounded on CrlsMrls-dummybox's metrics/metrics.go: a custom
// prometheus.Registry built once with sync.Once, CounterVec/HistogramVec
// for the domain-specific counters, the Go/process collectors for runtime
// metrics, and a promhttp.HandlerFor serving that registry rather than the
// global default one.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// ChatRequestsTotal counts every Orchestrator.Chat call by resolved
	// intent, tier, and outcome ("ok", or "internal_error" when Chat returns
	// an error; taxonomy failures mapped into a response count as "ok").
	ChatRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gatewaycore_chat_requests_total",
			Help: "Total number of chat() calls handled by the orchestrator.",
		},
		[]string{"intent", "tier", "outcome"},
	)

	// ChatRequestDurationSeconds observes end-to-end Orchestrator.Chat
	// latency, labeled the same way so slow intents/tiers are visible
	// without a per-component breakdown.
	ChatRequestDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gatewaycore_chat_request_duration_seconds",
			Help:    "Duration of orchestrator.Chat calls.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"intent", "tier"},
	)

	// PoolConnectionsOpenedTotal counts each lazily-created live connection
	// pool, labeled by source kind (postgres/mysql). It is a counter, not a
	// gauge, because pools are never closed per-request (spec.md §3
	// invariant 7) — the interesting signal is how many distinct pools
	// this process has ever opened.
	PoolConnectionsOpenedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gatewaycore_pool_connections_opened_total",
			Help: "Total number of live connection pools opened by the registry.",
		},
		[]string{"kind"},
	)

	// PoolQueryDurationSeconds observes how long a live-pool query took,
	// labeled by source kind.
	PoolQueryDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gatewaycore_pool_query_duration_seconds",
			Help:    "Duration of queries executed against a live connection pool.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"kind"},
	)

	initOnce sync.Once
	registry *prometheus.Registry
)

// Init builds and registers the process-wide metrics registry exactly once.
// Safe to call from multiple goroutines; only the first call does work.
func Init() *prometheus.Registry {
	initOnce.Do(func() {
		registry = prometheus.NewRegistry()

		registry.MustRegister(ChatRequestsTotal)
		registry.MustRegister(ChatRequestDurationSeconds)
		registry.MustRegister(PoolConnectionsOpenedTotal)
		registry.MustRegister(PoolQueryDurationSeconds)

		registry.MustRegister(collectors.NewGoCollector())
		registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	})
	return registry
}

// Handler returns an http.Handler serving reg, for mounting at /metrics.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

// ObserveChatRequest records one orchestrator.Chat call.
func ObserveChatRequest(intent, tier, outcome string, duration time.Duration) {
	ChatRequestsTotal.WithLabelValues(intent, tier, outcome).Inc()
	ChatRequestDurationSeconds.WithLabelValues(intent, tier).Observe(duration.Seconds())
}

// ObservePoolOpened records a newly created live connection pool.
func ObservePoolOpened(kind string) {
	PoolConnectionsOpenedTotal.WithLabelValues(kind).Inc()
}

// ObservePoolQuery records one query executed against a live pool.
func ObservePoolQuery(kind string, duration time.Duration) {
	PoolQueryDurationSeconds.WithLabelValues(kind).Observe(duration.Seconds())
}
