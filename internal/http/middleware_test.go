package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kjstillabower/weather-lookup/internal/cache"
	"github.com/kjstillabower/weather-lookup/internal/favorites"
	"github.com/kjstillabower/weather-lookup/internal/kv"
	"github.com/kjstillabower/weather-lookup/internal/models"
	"github.com/kjstillabower/weather-lookup/internal/observability"
	"github.com/kjstillabower/weather-lookup/internal/service"
)

type blockingForecaster struct{}

func (blockingForecaster) Forecast(ctx context.Context, _ models.Coordinates, _ models.DateWindow) (models.Forecast, error) {
	<-ctx.Done()
	return models.Forecast{}, ctx.Err()
}

func TestMiddleware_CorrelationID(t *testing.T) {
	var seen string
	router := mux.NewRouter()
	router.Use(CorrelationIDMiddleware(zap.NewNop()))
	router.HandleFunc("/x", func(w http.ResponseWriter, r *http.Request) {
		seen = observability.CorrelationID(r.Context())
	})

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	generated := w.Header().Get("X-Correlation-ID")
	if generated == "" || seen != generated {
		t.Errorf("generated id = %q, context id = %q", generated, seen)
	}

	req = httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("X-Correlation-ID", "client-provided-id")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if got := w.Header().Get("X-Correlation-ID"); got != "client-provided-id" || seen != "client-provided-id" {
		t.Errorf("propagated id = %q (context %q), want client-provided-id", got, seen)
	}
}

func TestMiddleware_ErrorBodyCarriesRequestID(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	req := httptest.NewRequest(http.MethodGet, "/api/search?q=p", nil)
	req.Header.Set("X-Correlation-ID", "req-42")
	w := httptest.NewRecorder()
	NewRouter(env.handler, nil, time.Second).ServeHTTP(w, req)
	if !strings.Contains(w.Body.String(), `"requestId":"req-42"`) {
		t.Errorf("body = %s, want requestId req-42", w.Body.String())
	}
}

func TestMiddleware_MetricsUsesRouteTemplate(t *testing.T) {
	var route string
	router := mux.NewRouter()
	router.Use(MetricsMiddleware)
	router.HandleFunc("/api/things/{id}", func(w http.ResponseWriter, r *http.Request) {
		route = getRoute(r)
		w.WriteHeader(http.StatusTeapot)
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/things/7?x=1", nil))
	if w.Code != http.StatusTeapot {
		t.Errorf("status = %d, want 418", w.Code)
	}
	if route != "/api/things/{id}" {
		t.Errorf("route = %q, want /api/things/{id}", route)
	}
	if got := statusCodeString(w.Code); got != "4xx" {
		t.Errorf("statusCodeString = %q, want 4xx", got)
	}
}

func TestMiddleware_MetricsTracksInFlight(t *testing.T) {
	var during int64
	router := mux.NewRouter()
	router.Use(MetricsMiddleware)
	router.HandleFunc("/x", func(w http.ResponseWriter, r *http.Request) {
		during = OpenRequests()
	})
	before := OpenRequests()
	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/x", nil))
	if during != before+1 {
		t.Errorf("in-flight during request = %d, want %d", during, before+1)
	}
	if OpenRequests() != before {
		t.Errorf("in-flight after request = %d, want %d", OpenRequests(), before)
	}
}

func TestMiddleware_MetricsEndpoint(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	env.do(t, http.MethodGet, "/api/search?q=paris", "")
	w := env.do(t, http.MethodGet, "/metrics", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	body := w.Body.String()
	for _, name := range []string{"httpRequestsTotal", "searchesTotal"} {
		if !strings.Contains(body, name) {
			t.Errorf("metrics missing %s", name)
		}
	}
}

func TestTimeoutMiddleware_CancelsUpstreamCall(t *testing.T) {
	lookup := service.NewLookupService(&fakeGeocoder{}, blockingForecaster{}, cache.NewInMemoryCache(), time.Minute, 0, nil, nil)
	favs := favorites.New(kv.NewMemoryStore(), favorites.DefaultKey, nil)
	h := NewHandler(lookup, favs, Options{Clock: fixedClock}, nil)

	start := time.Now()
	w := httptest.NewRecorder()
	NewRouter(h, nil, 50*time.Millisecond).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/forecast?latitude=1&longitude=2", nil))

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", w.Code)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("request took %v, want about 50ms", elapsed)
	}
}

func TestTimeoutMiddleware_DetailsPageRendersLoadFailure(t *testing.T) {
	lookup := service.NewLookupService(&fakeGeocoder{}, blockingForecaster{}, cache.NewInMemoryCache(), time.Minute, 0, nil, nil)
	favs := favorites.New(kv.NewMemoryStore(), favorites.DefaultKey, nil)
	h := NewHandler(lookup, favs, Options{Clock: fixedClock}, nil)

	w := httptest.NewRecorder()
	NewRouter(h, nil, 50*time.Millisecond).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/details?name=X&latitude=1&longitude=2", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if !strings.Contains(w.Body.String(), "Impossible de charger la météo") {
		t.Error("deadline did not surface as load failure")
	}
}

func TestRateLimitMiddleware_Returns429WhenExceeded(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	router := NewRouter(env.handler, rate.NewLimiter(rate.Every(time.Hour), 2), time.Second)

	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/favorites", nil))
		if i < 2 && w.Code != http.StatusOK {
			t.Errorf("request %d: status = %d, want 200", i, w.Code)
		}
		if i == 2 {
			if w.Code != http.StatusTooManyRequests {
				t.Fatalf("request %d: status = %d, want 429", i, w.Code)
			}
			if code := errorCode(t, w); code != "RATE_LIMITED" {
				t.Errorf("error.code = %q, want RATE_LIMITED", code)
			}
		}
	}
	if got := env.handler.Tracker().DenialCount(time.Minute); got != 1 {
		t.Errorf("DenialCount = %d, want 1", got)
	}

	// Pages and health are not rate limited.
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Code != http.StatusOK {
		t.Errorf("/health status = %d, want 200", w.Code)
	}
}

func TestRateLimitMiddleware_NilLimiterPassesThrough(t *testing.T) {
	router := mux.NewRouter()
	router.Use(RateLimitMiddleware(nil, nil))
	router.HandleFunc("/x", func(w http.ResponseWriter, r *http.Request) {})

	for i := 0; i < 20; i++ {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
		if w.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d, want 200", i, w.Code)
		}
	}
}
