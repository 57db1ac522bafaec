package models

import (
	"strconv"
	"time"
)

// Favorite is a bookmarked location. Identity is the (Name, Latitude, Longitude) triple.
type Favorite struct {
	Name      string  `json:"name"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Same reports whether f and other share the same identity triple.
func (f Favorite) Same(other Favorite) bool {
	return f.Name == other.Name && f.Latitude == other.Latitude && f.Longitude == other.Longitude
}

// Coordinates is a latitude/longitude pair in decimal degrees.
type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// GeoResult is one geocoding candidate. ID is only a rendering key and is not stable
// across searches.
type GeoResult struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	Country   string  `json:"country,omitempty"`
	Admin1    string  `json:"admin1,omitempty"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// GeoResultID builds the rendering key of the index-th result.
func GeoResultID(lat, lon float64, index int) string {
	return FormatCoordinate(lat) + "_" + FormatCoordinate(lon) + "_" + strconv.Itoa(index)
}

// FormatCoordinate renders a coordinate with the shortest exact representation (48.8566, -0.5).
func FormatCoordinate(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// DailyForecastRow is one day of the forecast table. TempMax/TempMin are NaN and
// WeatherCode is -1 when upstream omitted them.
type DailyForecastRow struct {
	Date        string  `json:"date"`
	TempMax     float64 `json:"tempMax"`
	TempMin     float64 `json:"tempMin"`
	WeatherCode int     `json:"weathercode"`
}

// Forecast is the result of one forecast fetch.
type Forecast struct {
	CurrentTemp *float64           `json:"currentTemperature"`
	Daily       []DailyForecastRow `json:"daily"`
}

// ForecastDays is the length of the forecast window, today included.
const ForecastDays = 7

const dateLayout = "2006-01-02"

// DateWindow is an inclusive calendar date range formatted YYYY-MM-DD.
type DateWindow struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// NewDateWindow returns [today, today+6] in the calendar of now's location.
func NewDateWindow(now time.Time) DateWindow {
	y, m, d := now.Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, now.Location())
	end := start.AddDate(0, 0, ForecastDays-1)
	return DateWindow{Start: start.Format(dateLayout), End: end.Format(dateLayout)}
}

// ParseDate parses a YYYY-MM-DD date at midnight in loc.
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	return time.ParseInLocation(dateLayout, s, loc)
}
