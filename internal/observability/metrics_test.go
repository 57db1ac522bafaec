package observability

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// TestMetrics_Usable verifies that all Prometheus metrics can be used without
// panic, ensuring label dimensions match usage across client, http, service, and favorites packages.
func TestMetrics_Usable(t *testing.T) {
	HTTPRequestsTotal.WithLabelValues("GET", "/details", "2xx").Inc()
	HTTPRequestDuration.WithLabelValues("GET", "/details").Observe(0.01)
	UpstreamCallsTotal.WithLabelValues("forecast", "success").Inc()
	UpstreamDuration.WithLabelValues("geocoding", "success").Observe(0.1)
	UpstreamRetriesTotal.WithLabelValues("forecast").Inc()
	UpstreamErrorsTotal.WithLabelValues("geocoding", "timeout").Inc()
	CircuitBreakerState.WithLabelValues("forecast").Set(0)
	CacheHitsTotal.WithLabelValues("geocoding").Inc()
	CacheErrorsTotal.WithLabelValues("get").Inc()
	SearchesTotal.WithLabelValues("results").Inc()
	ForecastsTotal.WithLabelValues("success").Inc()
	FavoritesOperationsTotal.WithLabelValues("add", "ok").Inc()
	FavoritesCount.Set(2)
	RateLimitDeniedTotal.Inc()
}

// TestMetricsHandler_ServesPrometheusFormat verifies that MetricsHandler serves
// Prometheus text exposition format with correct HTTP status and metric output.
func TestMetricsHandler_ServesPrometheusFormat(t *testing.T) {
	HTTPRequestsTotal.WithLabelValues("GET", "/", "2xx").Inc()

	handler := MetricsHandler()
	req := httptest.NewRequest("GET", "/metrics", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("MetricsHandler status = %d, want 200", w.Code)
	}
	body := w.Body.String()
	if !strings.Contains(body, "httpRequestsTotal") {
		t.Error("MetricsHandler response should contain metric output")
	}
}
