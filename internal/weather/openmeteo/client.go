// Package openmeteo fetches weather bundles from the Open-Meteo forecast and
// air quality APIs.
package openmeteo

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"
	"golang.org/x/sync/errgroup"

	"github.com/skycast/skycast/internal/httpx"
	"github.com/skycast/skycast/internal/location"
	"github.com/skycast/skycast/internal/weather"
)

const (
	// ProviderName identifies this weather provider.
	ProviderName = "openmeteo"

	// DefaultForecastURL is the Open-Meteo forecast API endpoint.
	DefaultForecastURL = "https://api.open-meteo.com/v1/forecast"

	// DefaultAirQualityURL is the Open-Meteo air quality API endpoint.
	DefaultAirQualityURL = "https://air-quality-api.open-meteo.com/v1/air-quality"
)

// pollenFields are the species averaged into the pollen count.
var pollenFields = []string{
	"alder_pollen", "birch_pollen", "grass_pollen",
	"mugwort_pollen", "olive_pollen", "ragweed_pollen",
}

// ClientConfig holds configuration for the Open-Meteo client.
type ClientConfig struct {
	// ForecastURL overrides the forecast API endpoint (optional).
	ForecastURL string

	// AirQualityURL overrides the air quality API endpoint (optional).
	AirQualityURL string

	// HTTPClient is the HTTP client to use (optional).
	// If nil, uses a resilient client with defaults.
	HTTPClient *httpx.Client

	// Logger for client operations.
	Logger zerolog.Logger
}

// Client is an Open-Meteo API client.
type Client struct {
	forecastURL   string
	airQualityURL string
	httpClient    *httpx.Client
	logger        zerolog.Logger
}

// NewClient creates a new Open-Meteo client.
func NewClient(cfg ClientConfig) *Client {
	forecastURL := cfg.ForecastURL
	if forecastURL == "" {
		forecastURL = DefaultForecastURL
	}

	airQualityURL := cfg.AirQualityURL
	if airQualityURL == "" {
		airQualityURL = DefaultAirQualityURL
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = httpx.New(httpx.DefaultConfig(ProviderName))
	}

	return &Client{
		forecastURL:   forecastURL,
		airQualityURL: airQualityURL,
		httpClient:    httpClient,
		logger:        cfg.Logger,
	}
}

// Name returns the provider name.
func (c *Client) Name() string {
	return ProviderName
}

// FetchBundle fetches the full weather bundle for a location. The current
// conditions (with air quality), hourly forecast and daily forecast are
// requested concurrently; all three must succeed or the whole call fails
// with ErrFetchFailed.
func (c *Client) FetchBundle(ctx context.Context, loc location.Location) (*weather.Bundle, error) {
	var (
		current weather.Current
		hourly  []weather.Hourly
		daily   []weather.Daily
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		current, err = c.fetchCurrent(gctx, loc)
		return err
	})
	g.Go(func() error {
		var err error
		hourly, err = c.fetchHourly(gctx, loc)
		return err
	})
	g.Go(func() error {
		var err error
		daily, err = c.fetchDaily(gctx, loc)
		return err
	})

	if err := g.Wait(); err != nil {
		c.logger.Error().Err(err).
			Str("location", loc.Key()).
			Msg("weather bundle fetch failed")
		return nil, fmt.Errorf("%w: %v", weather.ErrFetchFailed, err)
	}

	return &weather.Bundle{
		Current:  current,
		Hourly:   hourly,
		Daily:    daily,
		Location: loc,
	}, nil
}

// fetchCurrent combines the forecast API's current block with the air
// quality API. Both requests must succeed; individual fields that are
// missing or malformed default rather than fail.
func (c *Client) fetchCurrent(ctx context.Context, loc location.Location) (weather.Current, error) {
	body, err := c.get(ctx, c.forecastURL, loc, url.Values{
		"current": {"temperature_2m,relative_humidity_2m,rain,uv_index,is_day,cloud_cover,wind_speed_10m"},
	})
	if err != nil {
		return weather.Current{}, fmt.Errorf("current conditions: %w", err)
	}

	cur := weather.Current{
		TemperatureC: gjson.GetBytes(body, "current.temperature_2m").Float(),
		RainfallMM:   gjson.GetBytes(body, "current.rain").Float(),
		UVIndex:      gjson.GetBytes(body, "current.uv_index").Float(),
		IsDay:        gjson.GetBytes(body, "current.is_day").Bool(),
		WindSpeedMPH: gjson.GetBytes(body, "current.wind_speed_10m").Float(),
		CloudCover:   int(gjson.GetBytes(body, "current.cloud_cover").Int()),
	}

	// An unparsable observation time is not fatal for current conditions.
	ts, err := parseTimestamp(gjson.GetBytes(body, "current.time").String())
	if err != nil {
		c.logger.Debug().Err(err).Msg("unparsable current weather time, using now")
		ts = time.Now()
	}
	cur.Time = ts

	aqBody, err := c.get(ctx, c.airQualityURL, loc, url.Values{
		"current": {"european_aqi,pm10,pm2_5," + strings.Join(pollenFields, ",")},
	})
	if err != nil {
		return weather.Current{}, fmt.Errorf("air quality: %w", err)
	}

	cur.AQI = int(gjson.GetBytes(aqBody, "current.european_aqi").Int())
	cur.PollenCount = averagePollen(aqBody)

	return cur, nil
}

// fetchHourly fetches the hourly forecast, ordered by time ascending.
func (c *Client) fetchHourly(ctx context.Context, loc location.Location) ([]weather.Hourly, error) {
	body, err := c.get(ctx, c.forecastURL, loc, url.Values{
		"hourly":         {"temperature_2m,cloud_cover,precipitation_probability,wind_speed_10m,is_day"},
		"forecast_hours": {"24"},
	})
	if err != nil {
		return nil, fmt.Errorf("hourly forecast: %w", err)
	}

	times := gjson.GetBytes(body, "hourly.time").Array()
	temps := gjson.GetBytes(body, "hourly.temperature_2m").Array()
	clouds := gjson.GetBytes(body, "hourly.cloud_cover").Array()
	rain := gjson.GetBytes(body, "hourly.precipitation_probability").Array()
	wind := gjson.GetBytes(body, "hourly.wind_speed_10m").Array()
	day := gjson.GetBytes(body, "hourly.is_day").Array()

	hours := make([]weather.Hourly, 0, len(times))
	for i, t := range times {
		ts, err := parseTimestamp(t.String())
		if err != nil {
			return nil, fmt.Errorf("hourly forecast entry %d: %w", i, err)
		}
		hours = append(hours, weather.Hourly{
			TemperatureC:    at(temps, i).Float(),
			CloudCover:      int(at(clouds, i).Int()),
			RainProbability: int(at(rain, i).Int()),
			WindSpeedMPH:    at(wind, i).Float(),
			IsDay:           at(day, i).Bool(),
			Time:            ts,
		})
	}
	return hours, nil
}

// fetchDaily fetches the daily forecast, ordered by date ascending.
func (c *Client) fetchDaily(ctx context.Context, loc location.Location) ([]weather.Daily, error) {
	body, err := c.get(ctx, c.forecastURL, loc, url.Values{
		"daily":    {"temperature_2m_max,temperature_2m_min,precipitation_probability_max,wind_speed_10m_max,cloud_cover_max,uv_index_max"},
		"timezone": {"auto"},
	})
	if err != nil {
		return nil, fmt.Errorf("daily forecast: %w", err)
	}

	dates := gjson.GetBytes(body, "daily.time").Array()
	maxTemps := gjson.GetBytes(body, "daily.temperature_2m_max").Array()
	minTemps := gjson.GetBytes(body, "daily.temperature_2m_min").Array()
	rain := gjson.GetBytes(body, "daily.precipitation_probability_max").Array()
	wind := gjson.GetBytes(body, "daily.wind_speed_10m_max").Array()
	clouds := gjson.GetBytes(body, "daily.cloud_cover_max").Array()
	uv := gjson.GetBytes(body, "daily.uv_index_max").Array()

	days := make([]weather.Daily, 0, len(dates))
	for i, d := range dates {
		ts, err := parseTimestamp(d.String())
		if err != nil {
			return nil, fmt.Errorf("daily forecast entry %d: %w", i, err)
		}
		days = append(days, weather.Daily{
			MaxTemperatureC: at(maxTemps, i).Float(),
			MinTemperatureC: at(minTemps, i).Float(),
			RainProbability: int(at(rain, i).Int()),
			WindSpeedMPH:    at(wind, i).Float(),
			CloudCover:      int(at(clouds, i).Int()),
			UVIndex:         at(uv, i).Float(),
			Date:            ts,
		})
	}
	return days, nil
}

// get issues one API request for a location and returns the response body.
// Every request carries the mph wind unit and a cache-busting token so
// intermediary caches never serve yesterday's weather.
func (c *Client) get(ctx context.Context, base string, loc location.Location, params url.Values) ([]byte, error) {
	values := url.Values{}
	values.Set("latitude", strconv.FormatFloat(loc.Latitude, 'f', -1, 64))
	values.Set("longitude", strconv.FormatFloat(loc.Longitude, 'f', -1, 64))
	values.Set("wind_speed_unit", "mph")
	values.Set("nocache", uuid.NewString())
	for k, vs := range params {
		for _, v := range vs {
			values.Add(k, v)
		}
	}

	resp, err := c.httpClient.Get(ctx, base+"?"+values.Encode())
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	return body, nil
}

// averagePollen computes the arithmetic mean of the pollen species present
// in the air quality response. Species missing from the payload (or present
// as null) are left out; no species at all means 0.0.
func averagePollen(body []byte) float64 {
	sum := 0.0
	count := 0
	for _, field := range pollenFields {
		v := gjson.GetBytes(body, "current."+field)
		if !v.Exists() || v.Type != gjson.Number {
			continue
		}
		sum += v.Float()
		count++
	}
	if count == 0 {
		return 0.0
	}
	return sum / float64(count)
}

// timestampLayouts are the accepted upstream time formats: RFC 3339 with or
// without offset and fractional seconds, plus Open-Meteo's minute-precision
// local format and plain dates.
var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

func parseTimestamp(s string) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparsable timestamp %q", s)
}

// at returns the i-th element of a gjson array, or a zero result past the
// end so ragged upstream arrays default instead of panicking.
func at(arr []gjson.Result, i int) gjson.Result {
	if i >= len(arr) {
		return gjson.Result{}
	}
	return arr[i]
}
