package screen

import (
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/kjstillabower/weather-lookup/internal/models"
)

// Placeholder is the dash shown for unknown values.
const Placeholder = "—"

var (
	frMonths   = [...]string{"janv.", "févr.", "mars", "avr.", "mai", "juin", "juil.", "août", "sept.", "oct.", "nov.", "déc."}
	frWeekdays = [...]string{"dim.", "lun.", "mar.", "mer.", "jeu.", "ven.", "sam."}
)

// round rounds half up, so -2.5 becomes -2 and 2.5 becomes 3.
func round(x float64) int {
	return int(math.Floor(x + 0.5))
}

func finite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}

// FormatCurrentTemp renders the current temperature as "14°C", or the placeholder.
func FormatCurrentTemp(t *float64) string {
	if t == nil || !finite(*t) {
		return Placeholder
	}
	return strconv.Itoa(round(*t)) + "°C"
}

// FormatRowTemp renders "max° / min°" when both are known, "max°" with only the maximum,
// and the placeholder otherwise.
func FormatRowTemp(tmax, tmin float64) string {
	switch {
	case finite(tmax) && finite(tmin):
		return fmt.Sprintf("%d° / %d°", round(tmax), round(tmin))
	case finite(tmax):
		return strconv.Itoa(round(tmax)) + "°"
	default:
		return Placeholder
	}
}

// FormatDateLabel renders a YYYY-MM-DD date as "16 oct. ven.". Unparseable dates are
// returned unchanged.
func FormatDateLabel(date string) string {
	d, err := models.ParseDate(date, time.Local)
	if err != nil {
		return date
	}
	return fmt.Sprintf("%d %s %s", d.Day(), frMonths[d.Month()-1], frWeekdays[d.Weekday()])
}

// PartialFooter returns the footer for a forecast of n days, empty for none or a full week.
func PartialFooter(n int) string {
	if n == 0 || n >= models.ForecastDays {
		return ""
	}
	return fmt.Sprintf("Données partielles (%d jours)", n)
}

// FormatCoordinates renders a result subtitle with five decimals: "48.85660 , 2.35220".
func FormatCoordinates(lat, lon float64) string {
	return fmt.Sprintf("%.5f , %.5f", lat, lon)
}

// ResultTitle renders "Paris, Île-de-France • France", omitting absent parts.
func ResultTitle(r models.GeoResult) string {
	title := r.Name
	if r.Admin1 != "" {
		title += ", " + r.Admin1
	}
	if r.Country != "" {
		title += " • " + r.Country
	}
	return title
}
