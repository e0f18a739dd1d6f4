package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ProviderRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ipinfo_provider_requests_total",
		Help: "Total upstream provider lookups",
	}, []string{"provider", "kind"})
	ProviderFailuresTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ipinfo_provider_failures_total",
		Help: "Total failed upstream provider lookups by reason",
	}, []string{"provider", "kind", "reason"})
	ProviderDurationMs = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ipinfo_provider_duration_ms",
		Help:    "Upstream provider lookup duration in milliseconds",
		Buckets: []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
	}, []string{"provider", "kind"})
	CacheHitsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ipinfo_cache_hits_total",
		Help: "Total cache hits by namespace",
	}, []string{"namespace"})
	CacheMissesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ipinfo_cache_misses_total",
		Help: "Total cache misses by namespace",
	}, []string{"namespace"})
	NoResultTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ipinfo_no_result_total",
		Help: "Total resolutions where every provider failed",
	}, []string{"kind"})
)

func init() {
	prometheus.MustRegister(ProviderRequestsTotal)
	prometheus.MustRegister(ProviderFailuresTotal)
	prometheus.MustRegister(ProviderDurationMs)
	prometheus.MustRegister(CacheHitsTotal)
	prometheus.MustRegister(CacheMissesTotal)
	prometheus.MustRegister(NoResultTotal)
}

// Handler exposes the default registry for scraping.
func Handler() http.Handler { return promhttp.Handler() }
