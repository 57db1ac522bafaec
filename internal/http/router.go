package http

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"golang.org/x/time/rate"

	"github.com/kjstillabower/weather-lookup/internal/observability"
)

// NewRouter wires pages, the JSON API, /health and /metrics. limiter (may be nil) only
// guards /api; every request gets requestTimeout.
func NewRouter(h *Handler, limiter *rate.Limiter, requestTimeout time.Duration) *mux.Router {
	router := mux.NewRouter()
	router.Use(CorrelationIDMiddleware(h.logger))
	router.Use(MetricsMiddleware)
	router.Use(TimeoutMiddleware(requestTimeout))

	router.HandleFunc("/health", h.GetHealth).Methods(http.MethodGet)
	router.Handle("/metrics", observability.MetricsHandler()).Methods(http.MethodGet)

	router.HandleFunc("/", h.GetHome).Methods(http.MethodGet)
	router.HandleFunc("/details", h.GetDetails).Methods(http.MethodGet)
	router.HandleFunc("/details/favorite", h.PostFavorite).Methods(http.MethodPost)

	api := router.PathPrefix("/api").Subrouter()
	api.Use(RateLimitMiddleware(limiter, h.Tracker()))
	api.HandleFunc("/search", h.GetAPISearch).Methods(http.MethodGet)
	api.HandleFunc("/forecast", h.GetAPIForecast).Methods(http.MethodGet)
	api.HandleFunc("/favorites", h.GetAPIFavorites).Methods(http.MethodGet)
	api.HandleFunc("/favorites", h.PostAPIFavorite).Methods(http.MethodPost)
	api.HandleFunc("/favorites", h.DeleteAPIFavorite).Methods(http.MethodDelete)
	api.HandleFunc("/favorites/contains", h.GetAPIFavoriteContains).Methods(http.MethodGet)
	return router
}
