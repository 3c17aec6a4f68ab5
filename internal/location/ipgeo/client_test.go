package ipgeo_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skycast/skycast/internal/location"
	"github.com/skycast/skycast/internal/location/ipgeo"
)

const successBody = `{"status":"success","city":"Amsterdam","regionName":"North Holland","country":"Netherlands","lat":52.3676,"lon":4.9041}`

func TestClient_Position(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Query().Get("fields"), "lat")
		_, _ = w.Write([]byte(successBody))
	}))
	defer server.Close()

	client := ipgeo.NewClient(ipgeo.ClientConfig{BaseURL: server.URL, Logger: zerolog.Nop()})

	pos, err := client.Position(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 52.3676, pos.Latitude)
	assert.Equal(t, 4.9041, pos.Longitude)
}

func TestClient_Position_LookupRefused(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"status":"fail","message":"reserved range"}`))
	}))
	defer server.Close()

	client := ipgeo.NewClient(ipgeo.ClientConfig{BaseURL: server.URL, Logger: zerolog.Nop()})

	_, err := client.Position(context.Background())
	assert.ErrorIs(t, err, location.ErrPositionUnavailable)
}

func TestClient_Position_Blocked(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	client := ipgeo.NewClient(ipgeo.ClientConfig{BaseURL: server.URL, Logger: zerolog.Nop()})

	_, err := client.Position(context.Background())
	assert.ErrorIs(t, err, location.ErrPermissionDenied)
}

func TestClient_Reverse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(successBody))
	}))
	defer server.Close()

	client := ipgeo.NewClient(ipgeo.ClientConfig{BaseURL: server.URL, Logger: zerolog.Nop()})

	// Coordinates are ignored: this source names the device's own locality.
	place, err := client.Reverse(context.Background(), 0, 0)
	require.NoError(t, err)
	assert.Equal(t, "Amsterdam, North Holland, Netherlands", place.DisplayName())
}
