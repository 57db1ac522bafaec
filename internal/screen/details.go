package screen

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/kjstillabower/weather-lookup/internal/models"
	"github.com/kjstillabower/weather-lookup/internal/nav"
	"github.com/kjstillabower/weather-lookup/internal/observability"
	"github.com/kjstillabower/weather-lookup/internal/weathercode"
)

const (
	MsgMissingCoords = "Coordonnées manquantes"
	MsgLoadFailed    = "Impossible de charger la météo"
	labelAddFav      = "Ajouter aux favoris"
	labelRemoveFav   = "Retirer des favoris"
	starOn           = "★"
	starOff          = "☆"
)

// Details is the forecast screen of one city. It runs the favorite-status and forecast
// workflows concurrently inside a scope that Close or Navigate cancels. Each scope has
// a generation number and updates from an older generation are dropped.
type Details struct {
	deps   Deps
	search *Search

	mu          sync.Mutex
	params      nav.DetailsParams
	parent      context.Context
	gen         uint64
	cancel      context.CancelFunc
	closed      bool
	workflows   sync.WaitGroup
	loading     bool
	errMsg      string
	currentTemp *float64
	daily       []models.DailyForecastRow
	isFavorite  bool
}

// NewDetails creates the screen for params. Nothing runs until Open.
// Selecting a search result replaces the current route and re-keys the screen.
func NewDetails(deps Deps, params nav.DetailsParams) *Details {
	d := &Details{deps: deps.withDefaults(), params: params, parent: context.Background()}
	d.search = NewSearch(d.deps.Geocoder, d.deps.searchOptions(d.onSearchSelect)...)
	return d
}

func (d *Details) onSearchSelect(sel Selection) {
	route := nav.DetailsRoute(sel.Name, sel.Latitude, sel.Longitude)
	d.deps.Navigator.Replace(route)

	d.mu.Lock()
	parent := d.parent
	d.mu.Unlock()
	d.Navigate(parent, route.DetailsParams())
}

// Search returns the screen's search bar.
func (d *Details) Search() *Search {
	return d.search
}

// Params returns the current route parameters.
func (d *Details) Params() nav.DetailsParams {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.params
}

// Open starts both workflows. Cancelling ctx has the same effect as Close on in-flight work.
func (d *Details) Open(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.parent = ctx
	d.closed = false
	d.startLocked()
}

// Navigate re-keys the screen to params and restarts both workflows.
func (d *Details) Navigate(ctx context.Context, params nav.DetailsParams) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	d.parent = ctx
	d.params = params
	d.startLocked()
}

// Close cancels in-flight work; no later update reaches the display state.
func (d *Details) Close() {
	d.mu.Lock()
	d.closed = true
	d.gen++
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.mu.Unlock()
	d.search.Close()
}

// Wait blocks until the workflows started so far have returned.
func (d *Details) Wait() {
	d.workflows.Wait()
}

func (d *Details) startLocked() {
	if d.cancel != nil {
		d.cancel()
	}
	scope, cancel := context.WithCancel(d.parent)
	d.gen++
	d.cancel = cancel
	gen := d.gen
	params := d.params

	fav, ok := params.Favorite()
	if ok {
		d.workflows.Add(1)
		go d.loadFavorite(scope, gen, fav)
	} else {
		d.isFavorite = false
	}

	if params.Coords == nil {
		d.errMsg = MsgMissingCoords
		d.loading = false
		d.currentTemp = nil
		d.daily = nil
		return
	}
	d.loading = true
	d.errMsg = ""
	d.workflows.Add(1)
	go d.loadForecast(scope, gen, *params.Coords)
}

// apply runs update under the lock if gen is still the current generation.
func (d *Details) apply(gen uint64, update func()) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if gen != d.gen || d.closed {
		return false
	}
	update()
	return true
}

func (d *Details) loadFavorite(ctx context.Context, gen uint64, fav models.Favorite) {
	defer d.workflows.Done()
	isFav := d.deps.Favorites.Contains(ctx, fav)
	d.apply(gen, func() { d.isFavorite = isFav })
}

func (d *Details) loadForecast(ctx context.Context, gen uint64, coords models.Coordinates) {
	defer d.workflows.Done()
	window := models.NewDateWindow(d.deps.Clock())
	forecast, err := d.deps.Forecaster.Forecast(ctx, coords, window)

	applied := d.apply(gen, func() {
		d.loading = false
		if err != nil {
			d.errMsg = MsgLoadFailed
			d.currentTemp = nil
			d.daily = nil
			return
		}
		d.currentTemp = forecast.CurrentTemp
		d.daily = forecast.Daily
	})
	if err != nil && applied {
		observability.LoggerFromContext(ctx, d.deps.Logger).Warn("forecast fetch failed",
			zap.Float64("latitude", coords.Latitude),
			zap.Float64("longitude", coords.Longitude),
			zap.String("start", window.Start),
			zap.Error(err),
		)
	}
}

// ToggleFavorite adds or removes the current city depending on the shown status and
// flips the status once the store call returns. It does nothing without coordinates.
func (d *Details) ToggleFavorite(ctx context.Context) {
	d.mu.Lock()
	fav, ok := d.params.Favorite()
	current := d.isFavorite
	gen := d.gen
	d.mu.Unlock()
	if !ok {
		return
	}

	if current {
		d.deps.Favorites.Remove(ctx, fav)
	} else {
		d.deps.Favorites.Add(ctx, fav)
	}
	d.apply(gen, func() { d.isFavorite = !current })
}

// IsFavorite reports the shown favorite status.
func (d *Details) IsFavorite() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.isFavorite
}

// RowView is one rendered forecast day.
type RowView struct {
	Date      string
	DateLabel string
	Temp      string
	Glyph     string
	Label     string
}

// DetailsView is the renderable state of the details screen.
type DetailsView struct {
	Title   string
	Search  SearchView
	Loading bool
	Error   string
	// ShowBody is true when neither loading nor in error; the temperature, favorite
	// button and table are only drawn then.
	ShowBody      bool
	CurrentTemp   string
	IsFavorite    bool
	FavoriteIcon  string
	FavoriteLabel string
	Rows          []RowView
	Footer        string
	Route         string
}

// View snapshots the display state.
func (d *Details) View() DetailsView {
	d.mu.Lock()
	v := DetailsView{
		Title:       d.params.Name,
		Loading:     d.loading,
		Error:       d.errMsg,
		ShowBody:    !d.loading && d.errMsg == "",
		CurrentTemp: FormatCurrentTemp(d.currentTemp),
		IsFavorite:  d.isFavorite,
		Footer:      PartialFooter(len(d.daily)),
	}
	if fav, ok := d.params.Favorite(); ok {
		v.Route = nav.DetailsRoute(fav.Name, fav.Latitude, fav.Longitude).Path()
	}
	for _, row := range d.daily {
		v.Rows = append(v.Rows, RowView{
			Date:      row.Date,
			DateLabel: FormatDateLabel(row.Date),
			Temp:      FormatRowTemp(row.TempMax, row.TempMin),
			Glyph:     weathercode.Glyph(row.WeatherCode),
			Label:     weathercode.Label(row.WeatherCode),
		})
	}
	d.mu.Unlock()

	if v.IsFavorite {
		v.FavoriteIcon, v.FavoriteLabel = starOn, labelRemoveFav
	} else {
		v.FavoriteIcon, v.FavoriteLabel = starOff, labelAddFav
	}
	v.Search = d.search.View()
	return v
}
