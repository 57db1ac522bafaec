//go:build integration
// +build integration

package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/kjstillabower/weather-lookup/internal/favorites"
	"github.com/kjstillabower/weather-lookup/internal/kv"
	testhelpers "github.com/kjstillabower/weather-lookup/internal/testhelpers"
)

func setupLiveRouter(t *testing.T) http.Handler {
	t.Helper()
	cfg := testhelpers.GetIntegrationConfig(t)
	lookup, cleanup := testhelpers.SetupIntegrationService(t, cfg)
	t.Cleanup(cleanup)
	favs := favorites.New(kv.NewMemoryStore(), favorites.DefaultKey, nil)
	h := NewHandler(lookup, favs, Options{}, nil)
	return NewRouter(h, nil, 20*time.Second)
}

// TestIntegration_SearchThenForecast searches Paris against Open-Meteo and loads the
// forecast of the first result.
func TestIntegration_SearchThenForecast(t *testing.T) {
	router := setupLiveRouter(t)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/search?q=Paris", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("search status = %d, body %s", w.Code, w.Body.String())
	}
	var search searchResponse
	if err := json.NewDecoder(w.Body).Decode(&search); err != nil {
		t.Fatal(err)
	}
	if len(search.Results) == 0 {
		t.Fatal("no results for Paris")
	}
	first := search.Results[0]

	w = httptest.NewRecorder()
	target := "/details?name=Paris&latitude=" + jsonNumber(first.Latitude) + "&longitude=" + jsonNumber(first.Longitude)
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, target, nil))
	if w.Code != http.StatusOK {
		t.Fatalf("details status = %d", w.Code)
	}
	if n := strings.Count(w.Body.String(), "<tr>"); n != 7 {
		t.Errorf("forecast rows = %d, want 7", n)
	}
}

func jsonNumber(v float64) string {
	b, _ := json.Marshal(v)
	return string(b)
}
