package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "enforcement_requests_total",
		Help: "Total analytics requests by endpoint and status",
	}, []string{"endpoint", "status"})
	RequestDurationMs = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "enforcement_request_duration_ms",
		Help:    "Request duration in milliseconds",
		Buckets: []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
	}, []string{"endpoint"})
	SubQueriesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "enforcement_subqueries_total",
		Help: "Aggregate sub-queries executed per analyzer",
	}, []string{"analyzer"})
	AreaGuardTripsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "enforcement_area_guard_trips_total",
		Help: "Area requests that exceeded the row-count ceiling",
	})
	CacheHitsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "enforcement_report_cache_hits_total",
		Help: "Redis report cache hits",
	})
	CacheMissesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "enforcement_report_cache_misses_total",
		Help: "Redis report cache misses",
	})
)

func init() {
	prometheus.MustRegister(RequestsTotal)
	prometheus.MustRegister(RequestDurationMs)
	prometheus.MustRegister(SubQueriesTotal)
	prometheus.MustRegister(AreaGuardTripsTotal)
	prometheus.MustRegister(CacheHitsTotal)
	prometheus.MustRegister(CacheMissesTotal)
}

// Handler serves the prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
