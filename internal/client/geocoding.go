package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"github.com/kjstillabower/weather-lookup/internal/models"
)

const (
	DefaultGeocodingURL = "https://geocoding-api.open-meteo.com/v1/search"
	defaultResultCount  = 10
	defaultLanguage     = "en"
)

// GeocodingClient queries the Open-Meteo geocoding search endpoint.
type GeocodingClient struct {
	up       *upstream
	count    int
	language string
}

// NewGeocodingClient creates a client for apiURL. count and language fall back to 10 and "en".
func NewGeocodingClient(apiURL string, count int, language string, opts Options) (*GeocodingClient, error) {
	up, err := newUpstream("geocoding", apiURL, opts)
	if err != nil {
		return nil, err
	}
	if count <= 0 {
		count = defaultResultCount
	}
	if language == "" {
		language = defaultLanguage
	}
	return &GeocodingClient{up: up, count: count, language: language}, nil
}

type geocodingItem struct {
	Name      *string  `json:"name"`
	Country   *string  `json:"country"`
	Admin1    *string  `json:"admin1"`
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

// Search returns the candidate locations for query. A response without a usable
// results array yields zero results; items lacking coordinates are skipped.
func (c *GeocodingClient) Search(ctx context.Context, query string) ([]models.GeoResult, error) {
	params := url.Values{}
	params.Set("name", query)
	params.Set("count", strconv.Itoa(c.count))
	params.Set("language", c.language)
	params.Set("format", "json")

	body, err := c.up.get(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("geocoding search: %w", err)
	}
	return parseGeocoding(body, query)
}

func parseGeocoding(body []byte, query string) ([]models.GeoResult, error) {
	var envelope any
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("%w: decode geocoding response: %v", ErrMalformedResponse, err)
	}
	obj, ok := envelope.(map[string]any)
	if !ok {
		return []models.GeoResult{}, nil
	}
	rawResults, ok := obj["results"].([]any)
	if !ok {
		return []models.GeoResult{}, nil
	}

	results := make([]models.GeoResult, 0, len(rawResults))
	for i, raw := range rawResults {
		item, ok := decodeGeocodingItem(raw)
		if !ok || item.Latitude == nil || item.Longitude == nil {
			continue
		}
		name := query
		if item.Name != nil && *item.Name != "" {
			name = *item.Name
		}
		results = append(results, models.GeoResult{
			ID:        models.GeoResultID(*item.Latitude, *item.Longitude, i),
			Name:      name,
			Country:   deref(item.Country),
			Admin1:    deref(item.Admin1),
			Latitude:  *item.Latitude,
			Longitude: *item.Longitude,
		})
	}
	return results, nil
}

// decodeGeocodingItem re-decodes one generic element into the typed item; elements with
// fields of the wrong type are rejected.
func decodeGeocodingItem(raw any) (geocodingItem, bool) {
	var item geocodingItem
	if _, ok := raw.(map[string]any); !ok {
		return item, false
	}
	b, err := json.Marshal(raw)
	if err != nil {
		return item, false
	}
	if err := json.Unmarshal(b, &item); err != nil {
		return item, false
	}
	return item, true
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
