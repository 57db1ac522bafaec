package screen

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/kjstillabower/weather-lookup/internal/favorites"
	"github.com/kjstillabower/weather-lookup/internal/kv"
	"github.com/kjstillabower/weather-lookup/internal/models"
)

type fakeGeocoder struct {
	calls   int32
	results map[string][]models.GeoResult
	err     error
	// gate, when set, blocks a query until a value is sent for it.
	gate map[string]chan struct{}
}

func (f *fakeGeocoder) Search(ctx context.Context, query string) ([]models.GeoResult, error) {
	atomic.AddInt32(&f.calls, 1)
	if ch, ok := f.gate[query]; ok {
		select {
		case <-ch:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.results[query], nil
}

type fakeForecaster struct {
	mu       sync.Mutex
	forecast models.Forecast
	err      error
	coords   []models.Coordinates
	windows  []models.DateWindow
	// block, when set, holds every call until ctx is done or the channel is closed.
	block  chan struct{}
	ctxErr chan error
}

func (f *fakeForecaster) Forecast(ctx context.Context, coords models.Coordinates, window models.DateWindow) (models.Forecast, error) {
	f.mu.Lock()
	f.coords = append(f.coords, coords)
	f.windows = append(f.windows, window)
	block := f.block
	f.mu.Unlock()
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			if f.ctxErr != nil {
				f.ctxErr <- ctx.Err()
			}
			return models.Forecast{}, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.forecast, f.err
}

func (f *fakeForecaster) calls() []models.Coordinates {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.Coordinates(nil), f.coords...)
}

func newFavorites() *favorites.Store {
	return favorites.New(kv.NewMemoryStore(), favorites.DefaultKey, nil)
}

func sevenDays() []models.DailyForecastRow {
	dates := []string{"2026-10-16", "2026-10-17", "2026-10-18", "2026-10-19", "2026-10-20", "2026-10-21", "2026-10-22"}
	rows := make([]models.DailyForecastRow, len(dates))
	for i, d := range dates {
		rows[i] = models.DailyForecastRow{Date: d, TempMax: 16 + float64(i), TempMin: 8, WeatherCode: 0}
	}
	return rows
}
