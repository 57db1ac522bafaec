package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/url"

	"github.com/kjstillabower/weather-lookup/internal/models"
)

const (
	DefaultForecastURL = "https://api.open-meteo.com/v1/forecast"
	dailyFields        = "temperature_2m_max,temperature_2m_min,weathercode"
)

// ForecastClient queries the Open-Meteo forecast endpoint.
type ForecastClient struct {
	up *upstream
}

// NewForecastClient creates a client for apiURL.
func NewForecastClient(apiURL string, opts Options) (*ForecastClient, error) {
	up, err := newUpstream("forecast", apiURL, opts)
	if err != nil {
		return nil, err
	}
	return &ForecastClient{up: up}, nil
}

// forecastResponse keeps every field optional; array elements stay raw so that nulls or
// values of the wrong type degrade to missing instead of failing the decode.
type forecastResponse struct {
	CurrentWeather *struct {
		Temperature json.RawMessage `json:"temperature"`
	} `json:"current_weather"`
	Daily *struct {
		Time           []string          `json:"time"`
		TemperatureMax []json.RawMessage `json:"temperature_2m_max"`
		TemperatureMin []json.RawMessage `json:"temperature_2m_min"`
		WeatherCode    []json.RawMessage `json:"weathercode"`
	} `json:"daily"`
}

// Forecast fetches current conditions and the daily series for window.
func (c *ForecastClient) Forecast(ctx context.Context, coords models.Coordinates, window models.DateWindow) (models.Forecast, error) {
	params := url.Values{}
	params.Set("latitude", models.FormatCoordinate(coords.Latitude))
	params.Set("longitude", models.FormatCoordinate(coords.Longitude))
	params.Set("current_weather", "true")
	params.Set("daily", dailyFields)
	params.Set("timezone", "auto")
	params.Set("start_date", window.Start)
	params.Set("end_date", window.End)

	body, err := c.up.get(ctx, params)
	if err != nil {
		return models.Forecast{}, fmt.Errorf("forecast: %w", err)
	}
	return parseForecast(body)
}

func parseForecast(body []byte) (models.Forecast, error) {
	var resp forecastResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return models.Forecast{}, fmt.Errorf("%w: decode forecast response: %v", ErrMalformedResponse, err)
	}
	if resp.Daily == nil || resp.Daily.Time == nil || resp.Daily.TemperatureMax == nil {
		return models.Forecast{}, fmt.Errorf("%w: missing daily series", ErrMalformedResponse)
	}

	var out models.Forecast
	if resp.CurrentWeather != nil {
		if t, ok := number(resp.CurrentWeather.Temperature); ok {
			out.CurrentTemp = &t
		}
	}

	d := resp.Daily
	out.Daily = make([]models.DailyForecastRow, len(d.Time))
	for i, date := range d.Time {
		row := models.DailyForecastRow{Date: date, TempMax: math.NaN(), TempMin: math.NaN(), WeatherCode: -1}
		if v, ok := numberAt(d.TemperatureMax, i); ok {
			row.TempMax = v
		}
		if v, ok := numberAt(d.TemperatureMin, i); ok {
			row.TempMin = v
		}
		if v, ok := numberAt(d.WeatherCode, i); ok && v == math.Trunc(v) {
			row.WeatherCode = int(v)
		}
		out.Daily[i] = row
	}
	return out, nil
}

func numberAt(values []json.RawMessage, i int) (float64, bool) {
	if i >= len(values) {
		return 0, false
	}
	return number(values[i])
}

func number(raw json.RawMessage) (float64, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return 0, false
	}
	var v float64
	if err := json.Unmarshal(raw, &v); err != nil {
		return 0, false
	}
	return v, true
}
