// Package weathercode maps WMO weather codes returned by the forecast API to display glyphs.
package weathercode

// Unknown is the glyph for codes outside the table.
const Unknown = "❓"

// UnknownLabel is shown next to Unknown.
const UnknownLabel = "Inconnu"

var glyphs = map[int]string{
	0:  "☀️",
	1:  "🌤️",
	2:  "🌤️",
	3:  "🌤️",
	45: "🌫️",
	48: "🌫️",
	51: "🌦️",
	53: "🌦️",
	55: "🌦️",
	61: "🌧️",
	63: "🌧️",
	65: "🌧️",
	66: "🌧️❄️",
	67: "🌧️❄️",
	71: "❄️",
	73: "❄️",
	75: "❄️",
	77: "❄️",
	80: "🌦️",
	81: "🌦️",
	82: "🌦️",
	95: "⛈️",
	96: "⛈️",
	99: "⛈️",
}

// Glyph returns the emoji for code, or Unknown.
func Glyph(code int) string {
	if g, ok := glyphs[code]; ok {
		return g
	}
	return Unknown
}

// Label returns a text label for codes without a glyph, and "" otherwise.
func Label(code int) string {
	if _, ok := glyphs[code]; ok {
		return ""
	}
	return UnknownLabel
}
