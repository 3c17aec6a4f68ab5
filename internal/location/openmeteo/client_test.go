package openmeteo_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skycast/skycast/internal/location"
	"github.com/skycast/skycast/internal/location/openmeteo"
)

func TestClient_Search(t *testing.T) {
	var gotQuery string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search", r.URL.Path)
		assert.Equal(t, "10", r.URL.Query().Get("count"))
		assert.Equal(t, "en", r.URL.Query().Get("language"))
		gotQuery = r.URL.Query().Get("name")

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"results":[
			{"name":"London","admin1":"England","country":"United Kingdom","latitude":51.5074,"longitude":-0.1278},
			{"name":"London","admin1":"Ontario","country":"Canada","latitude":42.9834,"longitude":-81.2497}
		]}`))
	}))
	defer server.Close()

	client := openmeteo.NewClient(openmeteo.ClientConfig{BaseURL: server.URL, Logger: zerolog.Nop()})

	places, err := client.Search(context.Background(), "London")
	require.NoError(t, err)
	require.Len(t, places, 2)

	assert.Equal(t, "London", gotQuery)
	assert.Equal(t, "London", places[0].Name)
	assert.Equal(t, "England", places[0].Region)
	assert.Equal(t, "United Kingdom", places[0].Country)
	assert.Equal(t, 51.5074, places[0].Latitude)
	assert.Equal(t, -0.1278, places[0].Longitude)
}

func TestClient_Search_NoMatches(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	client := openmeteo.NewClient(openmeteo.ClientConfig{BaseURL: server.URL, Logger: zerolog.Nop()})

	places, err := client.Search(context.Background(), "nowhere-at-all")
	require.NoError(t, err)
	assert.Empty(t, places)
}

func TestClient_Search_UpstreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	client := openmeteo.NewClient(openmeteo.ClientConfig{BaseURL: server.URL, Logger: zerolog.Nop()})

	_, err := client.Search(context.Background(), "London")
	assert.ErrorIs(t, err, location.ErrSearchFailed)
}

func TestClient_Reverse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/reverse", r.URL.Path)
		assert.Equal(t, "51.5074", r.URL.Query().Get("latitude"))
		assert.Equal(t, "-0.1278", r.URL.Query().Get("longitude"))

		_, _ = w.Write([]byte(`{"results":[{"name":"London","admin1":"England","country":"United Kingdom","latitude":51.5074,"longitude":-0.1278}]}`))
	}))
	defer server.Close()

	client := openmeteo.NewClient(openmeteo.ClientConfig{BaseURL: server.URL, Logger: zerolog.Nop()})

	place, err := client.Reverse(context.Background(), 51.5074, -0.1278)
	require.NoError(t, err)
	assert.Equal(t, "London, England, United Kingdom", place.DisplayName())
}

func TestClient_Reverse_NoMatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	client := openmeteo.NewClient(openmeteo.ClientConfig{BaseURL: server.URL, Logger: zerolog.Nop()})

	place, err := client.Reverse(context.Background(), 0, 0)
	require.NoError(t, err)
	assert.Empty(t, place.DisplayName())
}
