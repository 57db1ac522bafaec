package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registry = prometheus.NewRegistry()
	factory  = promauto.With(registry)

	// HTTP request rate. Watch for: sudden drops (service down) or spikes (traffic surge).
	HTTPRequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "httpRequestsTotal",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "statusCode"},
	)

	HTTPRequestDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "httpRequestDurationSeconds",
			Help:    "HTTP request latency in seconds (per request)",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	HTTPRequestsInFlight = factory.NewGauge(
		prometheus.GaugeOpts{
			Name: "httpRequestsInFlight",
			Help: "Number of HTTP requests currently being served",
		},
	)

	// Upstream call rate per API (geocoding, forecast). Watch for: error vs success ratio.
	UpstreamCallsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "upstreamCallsTotal",
			Help: "Total number of Open-Meteo API calls",
		},
		[]string{"api", "status"},
	)

	// Watch for: p95 > 2s (upstream degradation).
	UpstreamDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "upstreamDurationSeconds",
			Help:    "Open-Meteo API latency in seconds (per request)",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"api", "status"},
	)

	UpstreamRetriesTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "upstreamRetriesTotal",
			Help: "Total number of retry attempts for Open-Meteo API calls",
		},
		[]string{"api"},
	)

	UpstreamErrorsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "upstreamErrorsTotal",
			Help: "Failed Open-Meteo API calls by error category",
		},
		[]string{"api", "category"},
	)

	// 0 closed, 1 half-open, 2 open.
	CircuitBreakerState = factory.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuitBreakerState",
			Help: "Circuit breaker state per upstream API (0 closed, 1 half-open, 2 open)",
		},
		[]string{"api"},
	)

	CacheHitsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cacheHitsTotal",
			Help: "Total number of cache hits",
		},
		[]string{"cacheType"},
	)

	CacheErrorsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cacheErrorsTotal",
			Help: "Cache operation failures",
		},
		[]string{"op"},
	)

	// Searches by outcome: results, empty, too_short, error, superseded.
	SearchesTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "searchesTotal",
			Help: "City searches submitted, by outcome",
		},
		[]string{"outcome"},
	)

	ForecastsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "forecastsTotal",
			Help: "Forecast loads on the details screen, by outcome",
		},
		[]string{"outcome"},
	)

	// Favorites store operations. result is ok or error; errors never reach callers.
	FavoritesOperationsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "favoritesOperationsTotal",
			Help: "Favorites store operations by result",
		},
		[]string{"op", "result"},
	)

	FavoritesCount = factory.NewGauge(
		prometheus.GaugeOpts{
			Name: "favoritesCount",
			Help: "Number of favorites after the last successful read or write",
		},
	)

	// Rate limit denials. Watch for: overload, capacity exceeded.
	RateLimitDeniedTotal = factory.NewCounter(
		prometheus.CounterOpts{
			Name: "rateLimitDeniedTotal",
			Help: "Total number of requests denied by rate limiter (429)",
		},
	)
)

func init() {
	registry.MustRegister(
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)
}

// MetricsHandler returns an http.Handler that serves application and runtime metrics.
func MetricsHandler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
