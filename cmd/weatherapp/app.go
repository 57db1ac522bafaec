package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kjstillabower/weather-lookup/internal/cache"
	"github.com/kjstillabower/weather-lookup/internal/client"
	"github.com/kjstillabower/weather-lookup/internal/config"
	"github.com/kjstillabower/weather-lookup/internal/favorites"
	"github.com/kjstillabower/weather-lookup/internal/kv"
	"github.com/kjstillabower/weather-lookup/internal/nav"
	"github.com/kjstillabower/weather-lookup/internal/screen"
	"github.com/kjstillabower/weather-lookup/internal/service"
	"github.com/kjstillabower/weather-lookup/internal/traffic"
)

// App holds the wired components shared by every command.
type App struct {
	cfg       *config.Config
	logger    *zap.Logger
	out       io.Writer
	lookup    *service.LookupService
	favorites *favorites.Store
	sqlite    *kv.SQLiteStore
	memcached *cache.MemcachedCache
}

func newApp(cfg *config.Config, logger *zap.Logger, out io.Writer) (*App, error) {
	app := &App{cfg: cfg, logger: logger, out: out}

	var store kv.Store
	switch cfg.StorageBackend {
	case "sqlite":
		openCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s, err := kv.OpenSQLite(openCtx, cfg.StoragePath)
		if err != nil {
			return nil, fmt.Errorf("open favorites storage: %w", err)
		}
		app.sqlite = s
		store = s
		logger.Debug("storage backend: sqlite", zap.String("path", cfg.StoragePath))
	default:
		store = kv.NewMemoryStore()
		logger.Debug("storage backend: memory")
	}
	app.favorites = favorites.New(store, cfg.FavoritesKey, logger)

	var resultCache cache.Cache
	switch cfg.CacheBackend {
	case "memcached":
		mc, err := cache.NewMemcachedCache(cfg.MemcachedAddrs, cfg.MemcachedTimeout, cfg.MemcachedMaxIdleConns)
		if err != nil {
			app.Close()
			return nil, fmt.Errorf("memcached cache: %w", err)
		}
		app.memcached = mc
		resultCache = mc
		logger.Debug("cache backend: memcached", zap.String("addrs", cfg.MemcachedAddrs))
	default:
		resultCache = cache.NewInMemoryCache()
	}

	var upstreamLimiter *rate.Limiter
	if cfg.UpstreamRPS > 0 {
		upstreamLimiter = rate.NewLimiter(rate.Limit(cfg.UpstreamRPS), cfg.UpstreamBurst)
	}
	options := func(api string, timeout time.Duration) client.Options {
		opts := client.Options{
			Timeout:        timeout,
			RetryAttempts:  cfg.RetryAttempts,
			RetryBaseDelay: cfg.RetryBaseDelay,
			RetryMaxDelay:  cfg.RetryMaxDelay,
			Limiter:        upstreamLimiter,
		}
		if cfg.BreakerEnabled {
			opts.Breaker = client.NewBreaker(api, client.BreakerConfig{
				MaxRequests:      cfg.BreakerMaxRequests,
				Interval:         cfg.BreakerInterval,
				Timeout:          cfg.BreakerTimeout,
				FailureThreshold: cfg.BreakerFailureThreshold,
			}, logger)
		}
		return opts
	}

	geocoder, err := client.NewGeocodingClient(cfg.GeocodingAPIURL, cfg.GeocodingResultCount, cfg.GeocodingLanguage, options("geocoding", cfg.GeocodingAPITimeout))
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("geocoding client: %w", err)
	}
	forecaster, err := client.NewForecastClient(cfg.ForecastAPIURL, options("forecast", cfg.ForecastAPITimeout))
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("forecast client: %w", err)
	}

	app.lookup = service.NewLookupService(geocoder, forecaster, resultCache, cfg.CacheTTL, cfg.RequestTimeout, traffic.NewTracker(), logger)
	return app, nil
}

// screenDeps returns the screen collaborators bound to navigator.
func (a *App) screenDeps(navigator *nav.Navigator) screen.Deps {
	return screen.Deps{
		Geocoder:   a.lookup,
		Forecaster: a.lookup,
		Favorites:  a.favorites,
		Navigator:  navigator,
		Logger:     a.logger,
		MinChars:   a.cfg.SearchMinLength,
		MaxChars:   a.cfg.SearchMaxLength,
	}
}

// Close releases storage and cache connections.
func (a *App) Close() {
	if a.sqlite != nil {
		if err := a.sqlite.Close(); err != nil {
			a.logger.Error("sqlite close", zap.Error(err))
		}
		a.sqlite = nil
	}
	if a.memcached != nil {
		if err := a.memcached.Close(); err != nil {
			a.logger.Error("memcached close", zap.Error(err))
		}
		a.memcached = nil
	}
}
