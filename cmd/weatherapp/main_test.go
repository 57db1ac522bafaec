package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/weather-lookup/internal/config"
)

const parisGeocoding = `{"results":[{"name":"Paris","country":"France","latitude":48.8566,"longitude":2.3522}]}`

const parisForecast = `{
	"current_weather":{"temperature":14.2},
	"daily":{
		"time":["2026-10-16","2026-10-17","2026-10-18","2026-10-19","2026-10-20","2026-10-21","2026-10-22"],
		"temperature_2m_max":[16,17,18,17,16,15,14],
		"temperature_2m_min":[8,9,10,9,8,7,6],
		"weathercode":[0,1,2,3,61,80,95]
	}
}`

// newTestApp wires an App against stub Open-Meteo servers with in-memory storage.
func newTestApp(t *testing.T) (*App, *bytes.Buffer) {
	t.Helper()
	geo := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(parisGeocoding))
	}))
	t.Cleanup(geo.Close)
	fc := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(parisForecast))
	}))
	t.Cleanup(fc.Close)

	t.Setenv("ENV_NAME", "")
	t.Setenv("PORT", "")
	t.Setenv("MEMCACHED_ADDRS", "")
	t.Setenv("STORAGE_PATH", "")
	t.Setenv("CACHE_BACKEND", "in_memory")
	t.Setenv("STORAGE_BACKEND", "memory")
	t.Setenv("GEOCODING_API_URL", geo.URL)
	t.Setenv("FORECAST_API_URL", fc.URL)
	cfg, err := config.LoadFrom(t.TempDir())
	if err != nil {
		t.Fatalf("LoadFrom() error = %v", err)
	}

	var out bytes.Buffer
	app, err := newApp(cfg, zap.NewNop(), &out)
	if err != nil {
		t.Fatalf("newApp() error = %v", err)
	}
	t.Cleanup(app.Close)
	return app, &out
}

func TestSearchCmd_PrintsResults(t *testing.T) {
	app, out := newTestApp(t)
	if err := (&SearchCmd{Query: []string{"Paris"}}).Run(app); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	got := out.String()
	for _, want := range []string{"1.", "Paris • France", "48.85660 , 2.35220"} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}
}

func TestSearchCmd_TooShort(t *testing.T) {
	app, _ := newTestApp(t)
	err := (&SearchCmd{Query: []string{"P"}}).Run(app)
	if err == nil || !strings.Contains(err.Error(), "Tape au moins 2 caractères") {
		t.Fatalf("Run() error = %v, want too-short message", err)
	}
}

func TestSearchCmd_PickRendersDetails(t *testing.T) {
	app, out := newTestApp(t)
	if err := (&SearchCmd{Query: []string{"Paris"}, Pick: 1}).Run(app); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	got := out.String()
	for _, want := range []string{"Paris\n", "14°C", "☆ Ajouter aux favoris", "16 oct. ven.", "16° / 8°"} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}
	if strings.Contains(got, "Données partielles") {
		t.Errorf("partial footer printed for a full week:\n%s", got)
	}
}

func TestSearchCmd_PickOutOfRange(t *testing.T) {
	app, _ := newTestApp(t)
	if err := (&SearchCmd{Query: []string{"Paris"}, Pick: 3}).Run(app); err == nil {
		t.Fatal("Run() error = nil, want out-of-range error")
	}
}

func TestDetailsCmd_MissingCoordinates(t *testing.T) {
	app, out := newTestApp(t)
	if err := (&DetailsCmd{Name: "Nowhere", Latitude: "abc", Longitude: "2"}).Run(app); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if got := out.String(); !strings.Contains(got, "Coordonnées manquantes") {
		t.Errorf("output = %q, want missing coordinates message", got)
	}
}

func TestFavoritesCmds(t *testing.T) {
	app, out := newTestApp(t)

	if err := (&FavoritesListCmd{}).Run(app); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "Aucun favori") {
		t.Errorf("empty list output = %q", out.String())
	}

	bordeaux := FavoriteFlags{Name: "Bordeaux", Latitude: 44.8378, Longitude: -0.5792}
	for i := 0; i < 2; i++ {
		if err := (&FavoritesAddCmd{FavoriteFlags: bordeaux}).Run(app); err != nil {
			t.Fatal(err)
		}
	}
	out.Reset()
	if err := (&FavoritesListCmd{}).Run(app); err != nil {
		t.Fatal(err)
	}
	if got := out.String(); strings.Count(got, "Bordeaux") != 1 || !strings.Contains(got, "-0.5792") {
		t.Errorf("list output = %q, want one Bordeaux row", got)
	}

	if err := (&FavoritesRemoveCmd{FavoriteFlags: bordeaux}).Run(app); err != nil {
		t.Fatal(err)
	}
	if n := len(app.favorites.List(context.Background())); n != 0 {
		t.Errorf("favorites after remove = %d, want 0", n)
	}
}

func TestServeCmd_StopsOnCancel(t *testing.T) {
	app, _ := newTestApp(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- (&ServeCmd{InFlightTimeout: time.Second}).serve(ctx, app, "127.0.0.1:0") }()

	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("serve() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not return after cancel")
	}
}
