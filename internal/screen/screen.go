// Package screen holds the display state and asynchronous workflows of the home and
// details screens. Front ends drive a screen and render its View.
package screen

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/weather-lookup/internal/models"
	"github.com/kjstillabower/weather-lookup/internal/nav"
)

// Geocoder resolves search text to candidate locations.
type Geocoder interface {
	Search(ctx context.Context, query string) ([]models.GeoResult, error)
}

// Forecaster fetches the forecast for coordinates over a date window.
type Forecaster interface {
	Forecast(ctx context.Context, coords models.Coordinates, window models.DateWindow) (models.Forecast, error)
}

// Favorites is the bookmark store. Its methods never fail from the caller's view.
type Favorites interface {
	List(ctx context.Context) []models.Favorite
	Add(ctx context.Context, fav models.Favorite)
	Remove(ctx context.Context, fav models.Favorite)
	Contains(ctx context.Context, fav models.Favorite) bool
}

// Deps are the collaborators shared by the screens.
type Deps struct {
	Geocoder   Geocoder
	Forecaster Forecaster
	Favorites  Favorites
	// Navigator receives route changes; a private one is used when nil.
	Navigator *nav.Navigator
	Logger    *zap.Logger
	// Clock defaults to time.Now; the forecast window is computed in its location.
	Clock func() time.Time
	// MinChars and MaxChars bound search queries; zero means DefaultMinChars and no maximum.
	MinChars int
	MaxChars int
}

func (d Deps) withDefaults() Deps {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Clock == nil {
		d.Clock = time.Now
	}
	if d.Navigator == nil {
		d.Navigator = nav.NewNavigator(nav.HomeRoute())
	}
	if d.MinChars <= 0 {
		d.MinChars = DefaultMinChars
	}
	return d
}

func (d Deps) searchOptions(onSelect func(Selection)) []SearchOption {
	return []SearchOption{
		WithMinChars(d.MinChars),
		WithMaxChars(d.MaxChars),
		WithLogger(d.Logger),
		WithOnSelect(onSelect),
	}
}
