package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// PlaceInfo is the administrative context a provider resolved for a
// coordinate. Found is false when the provider had no feature there (open
// ocean, unnamed terrain); that is not an error.
type PlaceInfo struct {
	Name        string
	City        string
	State       string
	Country     string
	CountryCode string
	Found       bool
}

// Provider resolves coordinates to administrative context.
type Provider interface {
	ReverseGeocode(ctx context.Context, lat, lon float64) (PlaceInfo, error)
}

// Client implements Provider against the Mapbox Geocoding API.
type Client struct {
	token      string
	httpClient *http.Client
	baseURL    string
	logger     *slog.Logger
}

// NewClient creates a Mapbox geocoding client.
func NewClient(token string, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		token: token,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: "https://api.mapbox.com/geocoding/v5/mapbox.places",
		logger:  logger,
	}
}

// ReverseGeocode resolves a coordinate to place details. Non-2xx responses
// map to typed errors: RATE_LIMITED for 429, API_ERROR otherwise, both
// carrying the HTTP status.
func (c *Client) ReverseGeocode(ctx context.Context, lat, lon float64) (PlaceInfo, error) {
	// Mapbox uses lon,lat order.
	coord := fmt.Sprintf("%.6f,%.6f", lon, lat)
	u := fmt.Sprintf("%s/%s.json", c.baseURL, coord)
	params := url.Values{
		"access_token": {c.token},
		"limit":        {"1"},
		"types":        {"place,region,country"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u+"?"+params.Encode(), nil)
	if err != nil {
		return PlaceInfo{}, &Error{Code: CodeNetworkError, Message: err.Error()}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return PlaceInfo{}, &Error{Code: CodeNetworkError, Message: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		code := CodeAPIError
		if resp.StatusCode == http.StatusTooManyRequests {
			code = CodeRateLimited
		}
		return PlaceInfo{}, &Error{Code: code, Status: resp.StatusCode, Message: strings.TrimSpace(string(body))}
	}

	var decoded response
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return PlaceInfo{}, &Error{Code: CodeAPIError, Status: resp.StatusCode, Message: "decode response: " + err.Error()}
	}

	if len(decoded.Features) == 0 {
		return PlaceInfo{}, nil
	}
	return placeFromFeature(decoded.Features[0]), nil
}

// placeFromFeature flattens a Mapbox feature and its context hierarchy into
// administrative components.
func placeFromFeature(f feature) PlaceInfo {
	info := PlaceInfo{Name: f.Text, Found: true}

	assign := func(id, text, shortCode string) {
		switch {
		case strings.HasPrefix(id, "place.") || strings.HasPrefix(id, "locality."):
			if info.City == "" {
				info.City = text
			}
		case strings.HasPrefix(id, "region."):
			info.State = text
		case strings.HasPrefix(id, "country."):
			info.Country = text
			info.CountryCode = strings.ToUpper(shortCode)
		}
	}

	assign(f.ID, f.Text, f.ShortCode())
	for _, ctx := range f.Context {
		assign(ctx.ID, ctx.Text, ctx.ShortCode)
	}
	return info
}

// Mapbox API response types.

type response struct {
	Features []feature `json:"features"`
}

type feature struct {
	ID         string         `json:"id"`
	Text       string         `json:"text"`
	PlaceName  string         `json:"place_name"`
	Properties map[string]any `json:"properties"`
	Context    []contextEntry `json:"context"`
}

func (f feature) ShortCode() string {
	if sc, ok := f.Properties["short_code"].(string); ok {
		return sc
	}
	return ""
}

type contextEntry struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	ShortCode string `json:"short_code"`
}
