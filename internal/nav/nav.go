// Package nav models the two app screens as routes and keeps the navigation stack.
package nav

import (
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/kjstillabower/weather-lookup/internal/models"
)

// Screen identifies a page of the app.
type Screen string

const (
	ScreenHome    Screen = "home"
	ScreenDetails Screen = "details"
)

// NoName is shown when the details route carries no city name.
const NoName = "—"

var validate = validator.New()

// Route is a screen plus its string parameters.
type Route struct {
	Screen Screen
	Params url.Values
}

// HomeRoute returns the route of the home screen.
func HomeRoute() Route {
	return Route{Screen: ScreenHome}
}

// DetailsRoute returns the details route for a city.
func DetailsRoute(name string, lat, lon float64) Route {
	params := url.Values{}
	params.Set("name", name)
	params.Set("latitude", models.FormatCoordinate(lat))
	params.Set("longitude", models.FormatCoordinate(lon))
	return Route{Screen: ScreenDetails, Params: params}
}

// Path renders the route as a URL path with query.
func (r Route) Path() string {
	switch r.Screen {
	case ScreenDetails:
		if len(r.Params) == 0 {
			return "/details"
		}
		return "/details?" + r.Params.Encode()
	default:
		return "/"
	}
}

// ParsePath maps a URL path back to a route. Unknown paths resolve to home.
func ParsePath(path string) Route {
	u, err := url.Parse(path)
	if err != nil {
		return HomeRoute()
	}
	if strings.TrimSuffix(u.Path, "/") == "/details" {
		return Route{Screen: ScreenDetails, Params: u.Query()}
	}
	return HomeRoute()
}

// DetailsParams are the decoded details route parameters. Coords is nil when either
// coordinate is absent or invalid.
type DetailsParams struct {
	Name   string
	Coords *models.Coordinates
}

type detailsQuery struct {
	Latitude  string `validate:"required,latitude"`
	Longitude string `validate:"required,longitude"`
}

// ParseDetailsParams decodes name, latitude and longitude. The name defaults to NoName.
func ParseDetailsParams(v url.Values) DetailsParams {
	p := DetailsParams{Name: v.Get("name")}
	if p.Name == "" {
		p.Name = NoName
	}

	q := detailsQuery{
		Latitude:  strings.TrimSpace(v.Get("latitude")),
		Longitude: strings.TrimSpace(v.Get("longitude")),
	}
	if err := validate.Struct(q); err != nil {
		return p
	}
	lat, err := strconv.ParseFloat(q.Latitude, 64)
	if err != nil {
		return p
	}
	lon, err := strconv.ParseFloat(q.Longitude, 64)
	if err != nil {
		return p
	}
	p.Coords = &models.Coordinates{Latitude: lat, Longitude: lon}
	return p
}

// DetailsParams decodes the details parameters carried by r.
func (r Route) DetailsParams() DetailsParams {
	return ParseDetailsParams(r.Params)
}

// Favorite returns the favorite identity for the params, false without coordinates.
func (p DetailsParams) Favorite() (models.Favorite, bool) {
	if p.Coords == nil {
		return models.Favorite{}, false
	}
	return models.Favorite{Name: p.Name, Latitude: p.Coords.Latitude, Longitude: p.Coords.Longitude}, true
}

// Navigator is a stack of routes rooted at home. Safe for concurrent use.
type Navigator struct {
	mu    sync.Mutex
	stack []Route
}

// NewNavigator returns a navigator showing start, or home when start is the zero Route.
func NewNavigator(start Route) *Navigator {
	if start.Screen == "" {
		start = HomeRoute()
	}
	stack := []Route{start}
	if start.Screen != ScreenHome {
		stack = []Route{HomeRoute(), start}
	}
	return &Navigator{stack: stack}
}

// Push shows r on top of the current route.
func (n *Navigator) Push(r Route) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.stack = append(n.stack, r)
}

// Replace swaps the current route for r.
func (n *Navigator) Replace(r Route) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.stack[len(n.stack)-1] = r
}

// Back pops the current route. It reports false at the root.
func (n *Navigator) Back() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.stack) == 1 {
		return false
	}
	n.stack = n.stack[:len(n.stack)-1]
	return true
}

// Current returns the route on top of the stack.
func (n *Navigator) Current() Route {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.stack[len(n.stack)-1]
}

// Depth returns the number of routes on the stack.
func (n *Navigator) Depth() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.stack)
}
