package screen

import (
	"context"
	"sync"

	"github.com/kjstillabower/weather-lookup/internal/models"
	"github.com/kjstillabower/weather-lookup/internal/nav"
)

const (
	homeTitle   = "Météo"
	homeSection = "Villes favorites"
	homeEmpty   = "Aucun favori pour l'instant"
)

// Home lists the favorites and hosts the search bar. Picking a favorite or a search
// result pushes the details route.
type Home struct {
	deps   Deps
	search *Search

	mu        sync.Mutex
	favorites []models.Favorite
}

// NewHome creates the home screen. Call Focus to load favorites.
func NewHome(deps Deps) *Home {
	h := &Home{deps: deps.withDefaults()}
	h.search = NewSearch(h.deps.Geocoder, h.deps.searchOptions(func(sel Selection) {
		h.deps.Navigator.Push(nav.DetailsRoute(sel.Name, sel.Latitude, sel.Longitude))
	})...)
	return h
}

// Search returns the screen's search bar.
func (h *Home) Search() *Search {
	return h.search
}

// Navigator returns the navigator that receives route changes.
func (h *Home) Navigator() *nav.Navigator {
	return h.deps.Navigator
}

// Focus re-reads the favorites list. Call whenever the screen becomes visible.
func (h *Home) Focus(ctx context.Context) {
	favs := h.deps.Favorites.List(ctx)
	h.mu.Lock()
	h.favorites = favs
	h.mu.Unlock()
}

// OpenFavorite pushes the details route of the i-th favorite (0-based).
func (h *Home) OpenFavorite(i int) bool {
	h.mu.Lock()
	if i < 0 || i >= len(h.favorites) {
		h.mu.Unlock()
		return false
	}
	fav := h.favorites[i]
	h.mu.Unlock()
	h.deps.Navigator.Push(nav.DetailsRoute(fav.Name, fav.Latitude, fav.Longitude))
	return true
}

// Close cancels any in-flight search.
func (h *Home) Close() {
	h.search.Close()
}

// FavoriteView is one favorite card.
type FavoriteView struct {
	Name string
	Temp string
	Path string
}

// HomeView is the renderable state of the home screen.
type HomeView struct {
	Title     string
	Section   string
	Empty     string
	Search    SearchView
	Favorites []FavoriteView
}

// View snapshots the display state.
func (h *Home) View() HomeView {
	h.mu.Lock()
	v := HomeView{Title: homeTitle, Section: homeSection}
	for _, f := range h.favorites {
		v.Favorites = append(v.Favorites, FavoriteView{
			Name: f.Name,
			Temp: Placeholder,
			Path: nav.DetailsRoute(f.Name, f.Latitude, f.Longitude).Path(),
		})
	}
	h.mu.Unlock()
	if len(v.Favorites) == 0 {
		v.Empty = homeEmpty
	}
	v.Search = h.search.View()
	return v
}
