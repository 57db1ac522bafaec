// Package service fronts the upstream clients with caching, request coalescing and
// outcome tracking.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/weather-lookup/internal/cache"
	"github.com/kjstillabower/weather-lookup/internal/client"
	"github.com/kjstillabower/weather-lookup/internal/models"
	"github.com/kjstillabower/weather-lookup/internal/observability"
	"github.com/kjstillabower/weather-lookup/internal/traffic"
)

// LookupService serves geocoding searches cache-aside and forecasts straight from upstream.
// It satisfies both client.Geocoder and client.Forecaster.
type LookupService struct {
	geocoder   client.Geocoder
	forecaster client.Forecaster
	cache      cache.Cache
	ttl        time.Duration
	coalescer  *requestCoalescer[[]models.GeoResult]
	tracker    *traffic.Tracker
	logger     *zap.Logger
}

// NewLookupService creates a LookupService. ttl is the geocoding cache lifetime; a zero
// coalesceTimeout disables request coalescing. tracker and logger may be nil.
func NewLookupService(geocoder client.Geocoder, forecaster client.Forecaster, c cache.Cache, ttl, coalesceTimeout time.Duration, tracker *traffic.Tracker, logger *zap.Logger) *LookupService {
	var coalescer *requestCoalescer[[]models.GeoResult]
	if coalesceTimeout > 0 {
		coalescer = newRequestCoalescer[[]models.GeoResult](coalesceTimeout)
	}
	if tracker == nil {
		tracker = traffic.NewTracker()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LookupService{
		geocoder:   geocoder,
		forecaster: forecaster,
		cache:      c,
		ttl:        ttl,
		coalescer:  coalescer,
		tracker:    tracker,
		logger:     logger,
	}
}

// Tracker returns the outcome tracker fed by upstream calls.
func (s *LookupService) Tracker() *traffic.Tracker {
	return s.tracker
}

// Search returns geocoding matches for query, checking the cache first and populating it
// after a successful upstream call. Zero-result searches are cached too.
func (s *LookupService) Search(ctx context.Context, query string) ([]models.GeoResult, error) {
	key := normalizeQuery(query)
	logger := observability.LoggerFromContext(ctx, s.logger)
	start := time.Now()

	if s.cache != nil {
		cached, ok, err := s.cache.Get(ctx, key)
		if err != nil {
			observability.CacheErrorsTotal.WithLabelValues("get").Inc()
			logger.Warn("cache get failed", zap.String("query", key), zap.Error(err))
		} else if ok {
			observability.CacheHitsTotal.WithLabelValues("geocoding").Inc()
			observability.SearchesTotal.WithLabelValues("cached").Inc()
			logger.Debug("search served", zap.String("query", key), zap.Bool("cached", true), zap.Int("results", len(cached)))
			return cached, nil
		}
	}

	fetch := func(ctx context.Context) ([]models.GeoResult, error) {
		return s.geocoder.Search(ctx, strings.TrimSpace(query))
	}
	var results []models.GeoResult
	var err error
	if s.coalescer != nil {
		var shared bool
		results, shared, err = s.coalescer.GetOrDo(ctx, key, fetch)
		if shared {
			logger.Debug("search coalesced", zap.String("query", key))
		}
	} else {
		results, err = fetch(ctx)
	}
	if err != nil {
		s.recordUpstream(err)
		observability.SearchesTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("search %q: %w", key, err)
	}
	s.recordUpstream(nil)
	observability.SearchesTotal.WithLabelValues("fetched").Inc()

	if s.cache != nil {
		if setErr := s.cache.Set(ctx, key, results, s.ttl); setErr != nil {
			observability.CacheErrorsTotal.WithLabelValues("set").Inc()
			logger.Warn("cache set failed", zap.String("query", key), zap.Error(setErr))
		}
	}
	logger.Debug("search served",
		zap.String("query", key),
		zap.Bool("cached", false),
		zap.Int("results", len(results)),
		zap.Duration("duration", time.Since(start)),
	)
	return results, nil
}

// Forecast fetches the forecast for coords over window. Forecasts are never cached.
func (s *LookupService) Forecast(ctx context.Context, coords models.Coordinates, window models.DateWindow) (models.Forecast, error) {
	f, err := s.forecaster.Forecast(ctx, coords, window)
	s.recordUpstream(err)
	if err != nil {
		observability.ForecastsTotal.WithLabelValues("error").Inc()
		return models.Forecast{}, err
	}
	observability.ForecastsTotal.WithLabelValues("success").Inc()
	return f, nil
}

// recordUpstream feeds the health tracker. Cancellations are not recorded.
func (s *LookupService) recordUpstream(err error) {
	switch {
	case err == nil:
		s.tracker.RecordSuccess()
	case errors.Is(err, context.Canceled):
	default:
		s.tracker.RecordError()
	}
}

// normalizeQuery builds the cache key: trimmed, lower-cased, inner whitespace collapsed.
func normalizeQuery(query string) string {
	return strings.ToLower(strings.Join(strings.Fields(query), " "))
}
