package http

import (
	"bytes"
	"embed"
	"html/template"
	"net/http"
	"net/url"

	"go.uber.org/zap"

	"github.com/kjstillabower/weather-lookup/internal/models"
	"github.com/kjstillabower/weather-lookup/internal/observability"
	"github.com/kjstillabower/weather-lookup/internal/screen"
)

//go:embed templates/*.html
var templateFS embed.FS

var pages = template.Must(template.ParseFS(templateFS, "templates/*.html"))

type resultLink struct {
	Title    string
	Subtitle string
	Href     string
}

// searchBlock renders a search bar whose form submits to Action carrying Hidden, and
// whose results link back to Action with &pick=<id>.
type searchBlock struct {
	Action  string
	Hidden  map[string]string
	View    screen.SearchView
	Results []resultLink
}

func newSearchBlock(action string, hidden url.Values, view screen.SearchView) searchBlock {
	b := searchBlock{Action: action, Hidden: map[string]string{}, View: view}
	for k := range hidden {
		b.Hidden[k] = hidden.Get(k)
	}
	for _, r := range view.Results {
		q := url.Values{}
		for k, v := range b.Hidden {
			q.Set(k, v)
		}
		q.Set("q", view.Query)
		q.Set("pick", r.ID)
		b.Results = append(b.Results, resultLink{Title: r.Title, Subtitle: r.Subtitle, Href: action + "?" + q.Encode()})
	}
	return b
}

type homePage struct {
	View   screen.HomeView
	Search searchBlock
}

type detailsPage struct {
	View      screen.DetailsView
	Search    searchBlock
	Favorite  *models.Favorite
	Latitude  string
	Longitude string
}

// routeOnly keeps the details route parameters of a request query.
func routeOnly(query url.Values) url.Values {
	out := url.Values{}
	for _, k := range []string{"name", "latitude", "longitude"} {
		if query.Has(k) {
			out.Set(k, query.Get(k))
		}
	}
	return out
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, name string, data interface{}) {
	var buf bytes.Buffer
	if err := pages.ExecuteTemplate(&buf, name, data); err != nil {
		observability.LoggerFromContext(r.Context(), h.logger).Error("render page", zap.String("page", name), zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}
