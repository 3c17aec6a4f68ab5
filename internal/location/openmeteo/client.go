// Package openmeteo looks up places through the Open-Meteo geocoding API.
package openmeteo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/skycast/skycast/internal/httpx"
	"github.com/skycast/skycast/internal/location"
)

const (
	// ProviderName identifies this geocoding provider.
	ProviderName = "openmeteo-geocoding"

	// DefaultBaseURL is the Open-Meteo geocoding API base URL.
	DefaultBaseURL = "https://geocoding-api.open-meteo.com/v1"

	// searchLimit caps the number of search matches requested.
	searchLimit = 10
)

// ClientConfig holds configuration for the geocoding client.
type ClientConfig struct {
	// BaseURL is the API base URL (optional, defaults to Open-Meteo).
	BaseURL string

	// HTTPClient is the HTTP client to use (optional).
	// If nil, uses a resilient client with defaults.
	HTTPClient *httpx.Client

	// Logger for client operations.
	Logger zerolog.Logger
}

// Client is an Open-Meteo geocoding API client.
type Client struct {
	baseURL    string
	httpClient *httpx.Client
	logger     zerolog.Logger
}

// NewClient creates a new geocoding client.
func NewClient(cfg ClientConfig) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = httpx.New(httpx.DefaultConfig(ProviderName))
	}

	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
		logger:     cfg.Logger,
	}
}

// Name returns the provider name.
func (c *Client) Name() string {
	return ProviderName
}

// Search looks up places matching the query, ordered by upstream relevance.
// No matches is an empty slice, not an error.
func (c *Client) Search(ctx context.Context, query string) ([]location.Place, error) {
	values := url.Values{}
	values.Set("name", query)
	values.Set("count", strconv.Itoa(searchLimit))
	values.Set("language", "en")

	results, err := c.lookup(ctx, c.baseURL+"/search?"+values.Encode())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", location.ErrSearchFailed, err)
	}
	return results, nil
}

// Reverse names a coordinate pair. An empty-named Place is returned when the
// upstream has no match for the coordinates.
func (c *Client) Reverse(ctx context.Context, lat, lon float64) (location.Place, error) {
	values := url.Values{}
	values.Set("latitude", strconv.FormatFloat(lat, 'f', -1, 64))
	values.Set("longitude", strconv.FormatFloat(lon, 'f', -1, 64))
	values.Set("language", "en")

	results, err := c.lookup(ctx, c.baseURL+"/reverse?"+values.Encode())
	if err != nil {
		return location.Place{}, err
	}
	if len(results) == 0 {
		return location.Place{Latitude: lat, Longitude: lon}, nil
	}
	return results[0], nil
}

func (c *Client) lookup(ctx context.Context, url string) ([]location.Place, error) {
	resp, err := c.httpClient.Get(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	var payload geocodingResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	places := make([]location.Place, 0, len(payload.Results))
	for _, r := range payload.Results {
		places = append(places, location.Place{
			Name:      r.Name,
			Region:    r.Admin1,
			Country:   r.Country,
			Latitude:  r.Latitude,
			Longitude: r.Longitude,
		})
	}
	return places, nil
}

// Open-Meteo geocoding API response structure.

type geocodingResponse struct {
	Results []struct {
		Name      string  `json:"name"`
		Admin1    string  `json:"admin1"`
		Country   string  `json:"country"`
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
	} `json:"results"`
}
