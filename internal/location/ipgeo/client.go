// Package ipgeo resolves the device position from its public IP address and
// doubles as the platform-provided fallback naming source when the primary
// geocoder cannot name a coordinate pair.
package ipgeo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/skycast/skycast/internal/httpx"
	"github.com/skycast/skycast/internal/location"
)

const (
	// ProviderName identifies this position provider.
	ProviderName = "ipgeo"

	// DefaultBaseURL is the ip-api.com endpoint for the caller's own address.
	DefaultBaseURL = "http://ip-api.com/json"

	// DefaultTimeout bounds the position wait. Position resolution is the
	// one call the app is willing to give up on quickly.
	DefaultTimeout = 5 * time.Second
)

// ClientConfig holds configuration for the IP geolocation client.
type ClientConfig struct {
	// BaseURL is the API base URL (optional, defaults to ip-api.com).
	BaseURL string

	// Timeout bounds each position request (optional, defaults to 5s).
	Timeout time.Duration

	// Logger for client operations.
	Logger zerolog.Logger
}

// Client resolves the device's coordinates and locality from its IP address.
type Client struct {
	baseURL    string
	httpClient *httpx.Client
	logger     zerolog.Logger
}

// NewClient creates a new IP geolocation client.
func NewClient(cfg ClientConfig) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	httpCfg := httpx.DefaultConfig(ProviderName)
	httpCfg.Timeout = timeout

	return &Client{
		baseURL:    baseURL,
		httpClient: httpx.New(httpCfg),
		logger:     cfg.Logger,
	}
}

// Name returns the provider name.
func (c *Client) Name() string {
	return ProviderName
}

// Position resolves the device coordinates. A denied or blocked lookup maps
// to ErrPermissionDenied; anything else that keeps the position unknown maps
// to ErrPositionUnavailable.
func (c *Client) Position(ctx context.Context) (location.Position, error) {
	answer, err := c.lookup(ctx)
	if err != nil {
		return location.Position{}, err
	}
	return location.Position{Latitude: answer.Lat, Longitude: answer.Lon}, nil
}

// Reverse names the device's own locality. The coordinates are ignored: this
// source only knows where the device is, which is exactly the one place the
// fallback path is asked about.
func (c *Client) Reverse(ctx context.Context, _, _ float64) (location.Place, error) {
	answer, err := c.lookup(ctx)
	if err != nil {
		return location.Place{}, err
	}
	return location.Place{
		Name:      answer.City,
		Region:    answer.Region,
		Country:   answer.Country,
		Latitude:  answer.Lat,
		Longitude: answer.Lon,
	}, nil
}

func (c *Client) lookup(ctx context.Context) (*geoAnswer, error) {
	url := c.baseURL + "?fields=status,message,city,regionName,country,lat,lon"

	resp, err := c.httpClient.Get(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", location.ErrPositionUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusForbidden {
		return nil, location.ErrPermissionDenied
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: unexpected status code %d", location.ErrPositionUnavailable, resp.StatusCode)
	}

	var answer geoAnswer
	if err := json.NewDecoder(resp.Body).Decode(&answer); err != nil {
		return nil, fmt.Errorf("%w: decoding response: %v", location.ErrPositionUnavailable, err)
	}

	if answer.Status != "success" {
		c.logger.Warn().
			Str("status", answer.Status).
			Str("message", answer.Message).
			Msg("ip geolocation lookup refused")
		return nil, fmt.Errorf("%w: %s", location.ErrPositionUnavailable, answer.Message)
	}

	return &answer, nil
}

// ip-api.com response structure.

type geoAnswer struct {
	Status  string  `json:"status"`
	Message string  `json:"message"`
	City    string  `json:"city"`
	Region  string  `json:"regionName"`
	Country string  `json:"country"`
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
}
