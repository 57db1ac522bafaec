package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kjstillabower/weather-lookup/internal/client"
	"github.com/kjstillabower/weather-lookup/internal/models"
	"github.com/kjstillabower/weather-lookup/internal/traffic"
)

type mockGeocoder struct {
	results []models.GeoResult
	err     error
	delay   time.Duration
	calls   int32
	queries chan string
}

func (m *mockGeocoder) Search(ctx context.Context, query string) ([]models.GeoResult, error) {
	atomic.AddInt32(&m.calls, 1)
	if m.queries != nil {
		m.queries <- query
	}
	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return m.results, m.err
}

type mockForecaster struct {
	forecast models.Forecast
	err      error
	coords   models.Coordinates
	window   models.DateWindow
}

func (m *mockForecaster) Forecast(ctx context.Context, coords models.Coordinates, window models.DateWindow) (models.Forecast, error) {
	m.coords = coords
	m.window = window
	return m.forecast, m.err
}

type mockCache struct {
	mu     sync.Mutex
	data   map[string][]models.GeoResult
	getErr error
	setErr error
	sets   int
}

func (m *mockCache) Get(ctx context.Context, key string) ([]models.GeoResult, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, false, m.getErr
	}
	val, ok := m.data[key]
	return val, ok, nil
}

func (m *mockCache) Set(ctx context.Context, key string, value []models.GeoResult, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sets++
	if m.setErr != nil {
		return m.setErr
	}
	if m.data == nil {
		m.data = make(map[string][]models.GeoResult)
	}
	m.data[key] = value
	return nil
}

var parisResults = []models.GeoResult{
	{ID: "48.8566_2.3522_0", Name: "Paris", Country: "France", Latitude: 48.8566, Longitude: 2.3522},
}

// TestNormalizeQuery verifies that normalizeQuery trims whitespace, lower-cases and
// collapses inner runs of whitespace.
func TestNormalizeQuery(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"Paris", "paris"},
		{"  PARIS  ", "paris"},
		{"New   York", "new york"},
		{"\tSaint-Étienne\n", "saint-étienne"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := normalizeQuery(tt.input); got != tt.want {
			t.Errorf("normalizeQuery(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestLookupService_Search_CacheHit(t *testing.T) {
	geo := &mockGeocoder{}
	c := &mockCache{data: map[string][]models.GeoResult{"paris": parisResults}}
	svc := NewLookupService(geo, &mockForecaster{}, c, time.Minute, 0, nil, nil)

	got, err := svc.Search(context.Background(), " Paris ")
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(got) != 1 || got[0].Name != "Paris" {
		t.Errorf("Search() = %+v", got)
	}
	if geo.calls != 0 {
		t.Errorf("geocoder called %d times on cache hit, want 0", geo.calls)
	}
}

func TestLookupService_Search_CacheMiss_UpstreamSuccess(t *testing.T) {
	geo := &mockGeocoder{results: parisResults, queries: make(chan string, 1)}
	c := &mockCache{}
	svc := NewLookupService(geo, &mockForecaster{}, c, time.Minute, 0, nil, nil)

	got, err := svc.Search(context.Background(), "  Paris ")
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("Search() returned %d results, want 1", len(got))
	}
	if q := <-geo.queries; q != "Paris" {
		t.Errorf("upstream query = %q, want trimmed %q", q, "Paris")
	}
	if _, ok := c.data["paris"]; !ok {
		t.Error("result not cached under normalized key")
	}

	if _, err := svc.Search(context.Background(), "PARIS"); err != nil {
		t.Fatalf("second Search() error = %v", err)
	}
	if geo.calls != 1 {
		t.Errorf("geocoder calls = %d, want 1", geo.calls)
	}
}

func TestLookupService_Search_ZeroResultsCached(t *testing.T) {
	geo := &mockGeocoder{results: []models.GeoResult{}}
	c := &mockCache{}
	svc := NewLookupService(geo, &mockForecaster{}, c, time.Minute, 0, nil, nil)

	got, err := svc.Search(context.Background(), "zzzz")
	if err != nil || len(got) != 0 {
		t.Fatalf("Search() = %v, %v", got, err)
	}
	if c.sets != 1 {
		t.Errorf("cache sets = %d, want 1", c.sets)
	}
}

func TestLookupService_Search_UpstreamFailure(t *testing.T) {
	geo := &mockGeocoder{err: client.ErrUpstreamFailure}
	c := &mockCache{}
	tracker := traffic.NewTracker()
	svc := NewLookupService(geo, &mockForecaster{}, c, time.Minute, 0, tracker, nil)

	_, err := svc.Search(context.Background(), "Paris")
	if !errors.Is(err, client.ErrUpstreamFailure) {
		t.Fatalf("Search() error = %v, want ErrUpstreamFailure", err)
	}
	if c.sets != 0 {
		t.Error("failed search must not be cached")
	}
	if errs, total := tracker.ErrorRate(time.Minute); errs != 1 || total != 1 {
		t.Errorf("tracker ErrorRate = %d/%d, want 1/1", errs, total)
	}
}

func TestLookupService_Search_CacheErrorsAreNotFatal(t *testing.T) {
	geo := &mockGeocoder{results: parisResults}
	c := &mockCache{getErr: errors.New("cache get failed"), setErr: errors.New("cache set failed")}
	svc := NewLookupService(geo, &mockForecaster{}, c, time.Minute, 0, nil, nil)

	got, err := svc.Search(context.Background(), "Paris")
	if err != nil {
		t.Fatalf("Search() error = %v, want cache errors swallowed", err)
	}
	if len(got) != 1 {
		t.Errorf("Search() returned %d results, want 1", len(got))
	}
}

func TestLookupService_Search_NilCache(t *testing.T) {
	geo := &mockGeocoder{results: parisResults}
	svc := NewLookupService(geo, &mockForecaster{}, nil, time.Minute, 0, nil, nil)
	if _, err := svc.Search(context.Background(), "Paris"); err != nil {
		t.Fatalf("Search() error = %v", err)
	}
}

func TestLookupService_Search_Coalesced(t *testing.T) {
	geo := &mockGeocoder{results: parisResults, delay: 50 * time.Millisecond}
	svc := NewLookupService(geo, &mockForecaster{}, &mockCache{}, time.Minute, time.Second, nil, nil)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.Search(context.Background(), "Paris"); err != nil {
				t.Errorf("Search() error = %v", err)
			}
		}()
	}
	wg.Wait()
	if n := atomic.LoadInt32(&geo.calls); n != 1 {
		t.Errorf("geocoder calls = %d, want 1", n)
	}
}

func TestLookupService_Search_CanceledNotRecorded(t *testing.T) {
	geo := &mockGeocoder{err: context.Canceled}
	tracker := traffic.NewTracker()
	svc := NewLookupService(geo, &mockForecaster{}, nil, time.Minute, 0, tracker, nil)

	if _, err := svc.Search(context.Background(), "Paris"); !errors.Is(err, context.Canceled) {
		t.Fatalf("Search() error = %v, want context.Canceled", err)
	}
	if n := tracker.RequestCount(time.Minute); n != 0 {
		t.Errorf("tracker RequestCount = %d, want 0", n)
	}
}

func TestLookupService_Forecast(t *testing.T) {
	temp := 14.2
	fc := &mockForecaster{forecast: models.Forecast{CurrentTemp: &temp}}
	tracker := traffic.NewTracker()
	svc := NewLookupService(&mockGeocoder{}, fc, nil, time.Minute, 0, tracker, nil)

	coords := models.Coordinates{Latitude: 48.8566, Longitude: 2.3522}
	window := models.DateWindow{Start: "2026-10-16", End: "2026-10-22"}
	got, err := svc.Forecast(context.Background(), coords, window)
	if err != nil {
		t.Fatalf("Forecast() error = %v", err)
	}
	if got.CurrentTemp == nil || *got.CurrentTemp != 14.2 {
		t.Errorf("CurrentTemp = %v", got.CurrentTemp)
	}
	if fc.coords != coords || fc.window != window {
		t.Errorf("forecaster got %+v %+v", fc.coords, fc.window)
	}

	fc.err = client.ErrMalformedResponse
	if _, err := svc.Forecast(context.Background(), coords, window); !errors.Is(err, client.ErrMalformedResponse) {
		t.Errorf("Forecast() error = %v, want ErrMalformedResponse", err)
	}
	if errs, total := tracker.ErrorRate(time.Minute); errs != 1 || total != 2 {
		t.Errorf("tracker ErrorRate = %d/%d, want 1/2", errs, total)
	}
}
