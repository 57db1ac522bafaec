package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/kjstillabower/weather-lookup/internal/models"
	"github.com/kjstillabower/weather-lookup/internal/nav"
	"github.com/kjstillabower/weather-lookup/internal/observability"
	"github.com/kjstillabower/weather-lookup/internal/screen"
	"github.com/kjstillabower/weather-lookup/internal/service"
	"github.com/kjstillabower/weather-lookup/internal/traffic"
	"github.com/kjstillabower/weather-lookup/internal/validation"
	"github.com/kjstillabower/weather-lookup/internal/weathercode"
)

const maxRequestBody = 64 << 10

var validate = validator.New()

// HealthConfig holds thresholds and probes for the health handler.
type HealthConfig struct {
	DegradedWindow   time.Duration
	DegradedErrorPct int
	// CachePing, when set, reports cache reachability. Used when backend is memcached.
	CachePing func() error
	// StoragePing, when set, reports favorites storage reachability. A failure degrades health.
	StoragePing func(ctx context.Context) error
}

// Options configures a Handler.
type Options struct {
	// MinChars and MaxChars bound search queries; MaxChars <= 0 means no maximum.
	MinChars int
	MaxChars int
	// Clock defaults to time.Now and fixes the forecast date window.
	Clock  func() time.Time
	Health *HealthConfig
}

// FavoritesStore is the favorites list as the handlers use it. Toggle flips a city's status
// in one store operation.
type FavoritesStore interface {
	screen.Favorites
	Toggle(ctx context.Context, fav models.Favorite) bool
}

// Handler serves the web pages and JSON API.
type Handler struct {
	lookup       *service.LookupService
	favorites    FavoritesStore
	minChars     int
	maxChars     int
	clock        func() time.Time
	healthConfig *HealthConfig
	logger       *zap.Logger

	shuttingDown     atomic.Bool
	healthStatusMu   sync.Mutex
	healthStatusPrev string
}

// NewHandler returns a new Handler.
func NewHandler(lookup *service.LookupService, favorites FavoritesStore, opts Options, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.MinChars <= 0 {
		opts.MinChars = screen.DefaultMinChars
	}
	return &Handler{
		lookup:       lookup,
		favorites:    favorites,
		minChars:     opts.MinChars,
		maxChars:     opts.MaxChars,
		clock:        opts.Clock,
		healthConfig: opts.Health,
		logger:       logger,
	}
}

// SetShuttingDown flips the flag reported by /health.
func (h *Handler) SetShuttingDown(v bool) {
	h.shuttingDown.Store(v)
}

// Tracker returns the upstream outcome tracker behind /health.
func (h *Handler) Tracker() *traffic.Tracker {
	return h.lookup.Tracker()
}

func (h *Handler) screenDeps(ctx context.Context, navigator *nav.Navigator) screen.Deps {
	return screen.Deps{
		Geocoder:   h.lookup,
		Forecaster: h.lookup,
		Favorites:  h.favorites,
		Navigator:  navigator,
		Logger:     observability.LoggerFromContext(ctx, h.logger),
		Clock:      h.clock,
		MinChars:   h.minChars,
		MaxChars:   h.maxChars,
	}
}

// GetHome handles GET /. With ?q= the search bar runs; with &pick=<id> the picked result
// is opened by redirecting to its details page.
func (h *Handler) GetHome(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	query := r.URL.Query()
	navigator := nav.NewNavigator(nav.HomeRoute())
	home := screen.NewHome(h.screenDeps(ctx, navigator))
	defer home.Close()

	home.Focus(ctx)
	if query.Has("q") {
		search := home.Search()
		search.SetQuery(query.Get("q"))
		search.Submit(ctx)
		if pick := query.Get("pick"); pick != "" && search.Select(pick) {
			http.Redirect(w, r, navigator.Current().Path(), http.StatusSeeOther)
			return
		}
	}

	view := home.View()
	h.render(w, r, "home", homePage{
		View:   view,
		Search: newSearchBlock("/", nil, view.Search),
	})
}

// GetDetails handles GET /details?name&latitude&longitude. The page is rendered once both
// workflows have settled or the request deadline passes.
func (h *Handler) GetDetails(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	query := r.URL.Query()
	params := nav.ParseDetailsParams(query)
	routeParams := routeOnly(query)
	navigator := nav.NewNavigator(nav.Route{Screen: nav.ScreenDetails, Params: routeParams})

	details := screen.NewDetails(h.screenDeps(ctx, navigator), params)
	defer details.Close()
	details.Open(ctx)

	if query.Has("q") {
		search := details.Search()
		search.SetQuery(query.Get("q"))
		search.Submit(ctx)
		if pick := query.Get("pick"); pick != "" && search.Select(pick) {
			http.Redirect(w, r, navigator.Current().Path(), http.StatusSeeOther)
			return
		}
	}
	details.Wait()

	view := details.View()
	page := detailsPage{
		View:   view,
		Search: newSearchBlock("/details", routeParams, view.Search),
	}
	if fav, ok := params.Favorite(); ok {
		page.Favorite = &fav
		page.Latitude = models.FormatCoordinate(fav.Latitude)
		page.Longitude = models.FormatCoordinate(fav.Longitude)
	}
	h.render(w, r, "details", page)
}

// PostFavorite handles POST /details/favorite: toggles the posted city and redirects back.
func (h *Handler) PostFavorite(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	if err := r.ParseForm(); err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_FORM", "invalid form body")
		return
	}
	fav, ok := nav.ParseDetailsParams(r.PostForm).Favorite()
	if !ok {
		writeError(w, r, http.StatusBadRequest, "MISSING_COORDINATES", "latitude and longitude are required")
		return
	}
	h.favorites.Toggle(r.Context(), fav)
	http.Redirect(w, r, nav.DetailsRoute(fav.Name, fav.Latitude, fav.Longitude).Path(), http.StatusSeeOther)
}

type searchResponse struct {
	Query   string             `json:"query"`
	Results []models.GeoResult `json:"results"`
}

// GetAPISearch handles GET /api/search?q=.
func (h *Handler) GetAPISearch(w http.ResponseWriter, r *http.Request) {
	query, err := validation.ValidateQuery(r.URL.Query().Get("q"), h.minChars, h.maxChars)
	if err != nil {
		h.writeQueryError(w, r, err)
		return
	}
	results, err := h.lookup.Search(r.Context(), query)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if results == nil {
		results = []models.GeoResult{}
	}
	writeJSON(w, http.StatusOK, searchResponse{Query: query, Results: results})
}

func (h *Handler) writeQueryError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, validation.ErrQueryTooLong):
		writeError(w, r, http.StatusBadRequest, "QUERY_TOO_LONG", fmt.Sprintf("query must be at most %d characters", h.maxChars))
	case errors.Is(err, validation.ErrQueryInvalidChars):
		writeError(w, r, http.StatusBadRequest, "INVALID_QUERY", "query contains invalid characters")
	default:
		writeError(w, r, http.StatusBadRequest, "QUERY_TOO_SHORT", fmt.Sprintf("query must be at least %d characters", h.minChars))
	}
}

// dailyResponse is DailyForecastRow with missing values as JSON null.
type dailyResponse struct {
	Date        string   `json:"date"`
	TempMax     *float64 `json:"tempMax"`
	TempMin     *float64 `json:"tempMin"`
	WeatherCode *int     `json:"weathercode"`
	Glyph       string   `json:"glyph"`
	Label       string   `json:"label"`
}

type forecastResponse struct {
	CurrentTemperature *float64          `json:"currentTemperature"`
	Window             models.DateWindow `json:"window"`
	Daily              []dailyResponse   `json:"daily"`
}

func newForecastResponse(fc models.Forecast, window models.DateWindow) forecastResponse {
	resp := forecastResponse{
		Window: window,
		Daily:  make([]dailyResponse, 0, len(fc.Daily)),
	}
	if fc.CurrentTemp != nil {
		resp.CurrentTemperature = finite(*fc.CurrentTemp)
	}
	for _, row := range fc.Daily {
		d := dailyResponse{
			Date:    row.Date,
			TempMax: finite(row.TempMax),
			TempMin: finite(row.TempMin),
			Glyph:   weathercode.Glyph(row.WeatherCode),
			Label:   weathercode.Label(row.WeatherCode),
		}
		if row.WeatherCode >= 0 {
			code := row.WeatherCode
			d.WeatherCode = &code
		}
		resp.Daily = append(resp.Daily, d)
	}
	return resp
}

func finite(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// GetAPIForecast handles GET /api/forecast?latitude&longitude for the 7-day window starting today.
func (h *Handler) GetAPIForecast(w http.ResponseWriter, r *http.Request) {
	params := nav.ParseDetailsParams(r.URL.Query())
	if params.Coords == nil {
		writeError(w, r, http.StatusBadRequest, "MISSING_COORDINATES", "latitude and longitude are required")
		return
	}
	window := models.NewDateWindow(h.clock())
	fc, err := h.lookup.Forecast(r.Context(), *params.Coords, window)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newForecastResponse(fc, window))
}

type favoriteRequest struct {
	Name      string   `json:"name" validate:"required"`
	Latitude  *float64 `json:"latitude" validate:"required,latitude"`
	Longitude *float64 `json:"longitude" validate:"required,longitude"`
}

type favoritesResponse struct {
	Favorites []models.Favorite `json:"favorites"`
}

func decodeFavorite(w http.ResponseWriter, r *http.Request) (models.Favorite, error) {
	var req favoriteRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody)).Decode(&req); err != nil {
		return models.Favorite{}, fmt.Errorf("decode body: %w", err)
	}
	if err := validate.Struct(req); err != nil {
		return models.Favorite{}, err
	}
	return models.Favorite{Name: req.Name, Latitude: *req.Latitude, Longitude: *req.Longitude}, nil
}

// GetAPIFavorites handles GET /api/favorites, newest first.
func (h *Handler) GetAPIFavorites(w http.ResponseWriter, r *http.Request) {
	h.writeFavorites(w, r)
}

// PostAPIFavorite handles POST /api/favorites. Adding an existing favorite is a no-op.
func (h *Handler) PostAPIFavorite(w http.ResponseWriter, r *http.Request) {
	fav, err := decodeFavorite(w, r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_FAVORITE", err.Error())
		return
	}
	h.favorites.Add(r.Context(), fav)
	h.writeFavorites(w, r)
}

// DeleteAPIFavorite handles DELETE /api/favorites. Removing an absent favorite is a no-op.
func (h *Handler) DeleteAPIFavorite(w http.ResponseWriter, r *http.Request) {
	fav, err := decodeFavorite(w, r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_FAVORITE", err.Error())
		return
	}
	h.favorites.Remove(r.Context(), fav)
	h.writeFavorites(w, r)
}

func (h *Handler) writeFavorites(w http.ResponseWriter, r *http.Request) {
	list := h.favorites.List(r.Context())
	if list == nil {
		list = []models.Favorite{}
	}
	writeJSON(w, http.StatusOK, favoritesResponse{Favorites: list})
}

// GetAPIFavoriteContains handles GET /api/favorites/contains?name&latitude&longitude.
func (h *Handler) GetAPIFavoriteContains(w http.ResponseWriter, r *http.Request) {
	fav, ok := nav.ParseDetailsParams(r.URL.Query()).Favorite()
	if !ok {
		writeError(w, r, http.StatusBadRequest, "MISSING_COORDINATES", "latitude and longitude are required")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"favorite": fav,
		"contains": h.favorites.Contains(r.Context(), fav),
	})
}

// healthResult holds the computed health status and metadata for logging.
type healthResult struct {
	status     string
	statusCode int
	reason     string
}

// GetHealth handles GET /health.
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	result, checks := h.computeHealthStatus(r.Context())

	h.healthStatusMu.Lock()
	prev := h.healthStatusPrev
	if prev != "" && prev != result.status {
		h.logger.Info("health status transition",
			zap.String("previous_status", prev),
			zap.String("current_status", result.status),
			zap.String("reason", result.reason))
	}
	h.healthStatusPrev = result.status
	h.healthStatusMu.Unlock()

	writeJSON(w, result.statusCode, map[string]interface{}{
		"status":    result.status,
		"service":   "weather-lookup",
		"version":   "dev",
		"checks":    checks,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// computeHealthStatus evaluates, in order: shutting-down, storage reachability, upstream
// error rate. The checks map reports each probe independently.
func (h *Handler) computeHealthStatus(ctx context.Context) (healthResult, map[string]string) {
	checks := map[string]string{"openMeteo": "healthy"}
	cfg := h.healthConfig
	if cfg == nil {
		cfg = &HealthConfig{}
	}

	upstream := traffic.StatusHealthy
	if cfg.DegradedWindow > 0 && cfg.DegradedErrorPct > 0 {
		upstream = h.lookup.Tracker().Status(cfg.DegradedWindow, cfg.DegradedErrorPct)
	}
	if upstream == traffic.StatusDegraded {
		checks["openMeteo"] = "unhealthy"
	}
	if cfg.CachePing != nil {
		checks["cache"] = probe(cfg.CachePing() == nil)
	}
	storageOK := true
	if cfg.StoragePing != nil {
		storageOK = cfg.StoragePing(ctx) == nil
		checks["storage"] = probe(storageOK)
	}

	switch {
	case h.shuttingDown.Load():
		return healthResult{"shutting-down", http.StatusServiceUnavailable, "signal"}, checks
	case !storageOK:
		return healthResult{"degraded", http.StatusServiceUnavailable, "storage_unreachable"}, checks
	case upstream == traffic.StatusDegraded:
		return healthResult{"degraded", http.StatusServiceUnavailable, "error_rate_breach"}, checks
	default:
		return healthResult{"healthy", http.StatusOK, ""}, checks
	}
}

func probe(ok bool) string {
	if ok {
		return "healthy"
	}
	return "unhealthy"
}

// writeJSON writes v as JSON with the given status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes an error response in the standard error format with code, message,
// and requestId (correlation ID) if available in request context.
func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	writeJSON(w, status, map[string]interface{}{
		"error": map[string]string{
			"code":      code,
			"message":   message,
			"requestId": observability.CorrelationID(r.Context()),
		},
	})
}

// writeServiceError writes a 503 for upstream failures and logs the cause at DEBUG.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	writeError(w, r, http.StatusServiceUnavailable, "UPSTREAM_UNAVAILABLE", "Unable to fetch weather data")
	observability.LoggerFromContext(r.Context(), nil).Debug("upstream error", zap.Error(err))
}
