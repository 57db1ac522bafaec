//go:build integration
// +build integration

// Package testhelpers wires the real Open-Meteo clients for opt-in live tests.
package testhelpers

import (
	"os"
	"testing"
	"time"

	"github.com/kjstillabower/weather-lookup/internal/cache"
	"github.com/kjstillabower/weather-lookup/internal/client"
	"github.com/kjstillabower/weather-lookup/internal/service"
)

// IntegrationTestConfig holds configuration for live integration tests.
type IntegrationTestConfig struct {
	GeocodingURL  string
	ForecastURL   string
	CacheBackend  string // "in_memory" or "memcached"
	MemcachedAddr string
}

// GetIntegrationConfig reads live test settings from the environment.
// Skips the test unless OPEN_METEO_LIVE is set.
func GetIntegrationConfig(t *testing.T) IntegrationTestConfig {
	t.Helper()
	if os.Getenv("OPEN_METEO_LIVE") == "" {
		t.Skip("OPEN_METEO_LIVE not set, skipping live integration test")
	}
	cfg := IntegrationTestConfig{
		GeocodingURL:  os.Getenv("GEOCODING_API_URL"),
		ForecastURL:   os.Getenv("FORECAST_API_URL"),
		CacheBackend:  os.Getenv("INTEGRATION_CACHE_BACKEND"),
		MemcachedAddr: os.Getenv("MEMCACHED_ADDRS"),
	}
	if cfg.GeocodingURL == "" {
		cfg.GeocodingURL = client.DefaultGeocodingURL
	}
	if cfg.ForecastURL == "" {
		cfg.ForecastURL = client.DefaultForecastURL
	}
	if cfg.MemcachedAddr == "" {
		cfg.MemcachedAddr = "localhost:11211"
	}
	return cfg
}

// SetupIntegrationService builds a LookupService over the live APIs.
// The returned cleanup closes the memcached client when one is used.
func SetupIntegrationService(t *testing.T, cfg IntegrationTestConfig) (*service.LookupService, func()) {
	t.Helper()
	opts := client.Options{Timeout: 10 * time.Second, RetryAttempts: 2}
	geocoder, err := client.NewGeocodingClient(cfg.GeocodingURL, 10, "fr", opts)
	if err != nil {
		t.Fatalf("NewGeocodingClient() error = %v", err)
	}
	forecaster, err := client.NewForecastClient(cfg.ForecastURL, opts)
	if err != nil {
		t.Fatalf("NewForecastClient() error = %v", err)
	}

	var c cache.Cache = cache.NewInMemoryCache()
	cleanup := func() {}
	if cfg.CacheBackend == "memcached" {
		mc, err := cache.NewMemcachedCache(cfg.MemcachedAddr, time.Second, 2)
		if err != nil {
			t.Fatalf("NewMemcachedCache() error = %v", err)
		}
		if err := mc.Ping(); err != nil {
			t.Skipf("memcached unreachable: %v", err)
		}
		c = mc
		cleanup = func() { _ = mc.Close() }
	}
	return service.NewLookupService(geocoder, forecaster, c, time.Minute, 10*time.Second, nil, nil), cleanup
}
