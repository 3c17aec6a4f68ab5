package location_test

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skycast/skycast/internal/location"
)

type mockPositions struct {
	pos location.Position
	err error
}

func (m *mockPositions) Position(context.Context) (location.Position, error) {
	return m.pos, m.err
}

func (m *mockPositions) Name() string { return "mock-positions" }

type mockGeocoder struct {
	reversePlace location.Place
	reverseErr   error
	searchPlaces []location.Place
	searchErr    error
	searchCalls  int
}

func (m *mockGeocoder) Search(_ context.Context, _ string) ([]location.Place, error) {
	m.searchCalls++
	return m.searchPlaces, m.searchErr
}

func (m *mockGeocoder) Reverse(context.Context, float64, float64) (location.Place, error) {
	return m.reversePlace, m.reverseErr
}

func (m *mockGeocoder) Name() string { return "mock-geocoder" }

func newService(positions *mockPositions, geocoder *mockGeocoder, fallback location.ReverseGeocoder) *location.Service {
	return location.NewService(location.ServiceConfig{
		Positions: positions,
		Geocoder:  geocoder,
		Fallback:  fallback,
		Logger:    zerolog.Nop(),
	})
}

func TestService_Current(t *testing.T) {
	positions := &mockPositions{pos: location.Position{Latitude: 52.37, Longitude: 4.89}}
	geocoder := &mockGeocoder{reversePlace: location.Place{Name: "Amsterdam", Country: "Netherlands"}}

	loc, err := newService(positions, geocoder, nil).Current(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "Amsterdam, Netherlands", loc.Name)
	assert.Equal(t, 52.37, loc.Latitude)
	assert.Equal(t, 4.89, loc.Longitude)
	assert.True(t, loc.IsCurrent)
}

func TestService_Current_FallbackNaming(t *testing.T) {
	positions := &mockPositions{pos: location.Position{Latitude: 1, Longitude: 2}}
	primary := &mockGeocoder{reverseErr: errors.New("boom")}
	fallback := &mockGeocoder{reversePlace: location.Place{Name: "Fallbacktown", Country: "NL"}}

	loc, err := newService(positions, primary, fallback).Current(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Fallbacktown, NL", loc.Name)
}

func TestService_Current_EmptyPrimaryNameUsesFallback(t *testing.T) {
	positions := &mockPositions{pos: location.Position{Latitude: 1, Longitude: 2}}
	primary := &mockGeocoder{reversePlace: location.Place{}} // no usable name
	fallback := &mockGeocoder{reversePlace: location.Place{Name: "Elsewhere"}}

	loc, err := newService(positions, primary, fallback).Current(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Elsewhere", loc.Name)
}

func TestService_Current_PlaceholderWhenAllNamingFails(t *testing.T) {
	positions := &mockPositions{pos: location.Position{Latitude: 1, Longitude: 2}}
	primary := &mockGeocoder{reverseErr: errors.New("boom")}
	fallback := &mockGeocoder{reverseErr: errors.New("also boom")}

	loc, err := newService(positions, primary, fallback).Current(context.Background())
	require.NoError(t, err)
	assert.Equal(t, location.PlaceholderName, loc.Name)
	assert.True(t, loc.IsCurrent)
}

func TestService_Current_PositionErrorPropagates(t *testing.T) {
	positions := &mockPositions{err: location.ErrPermissionDenied}
	geocoder := &mockGeocoder{}

	_, err := newService(positions, geocoder, nil).Current(context.Background())
	assert.ErrorIs(t, err, location.ErrPermissionDenied)
}

func TestService_Search(t *testing.T) {
	geocoder := &mockGeocoder{searchPlaces: []location.Place{
		{Name: "London", Region: "England", Country: "United Kingdom", Latitude: 51.5, Longitude: -0.12},
		{Name: "London", Region: "Ontario", Country: "Canada", Latitude: 42.98, Longitude: -81.24},
	}}

	locs, err := newService(&mockPositions{}, geocoder, nil).Search(context.Background(), "London")
	require.NoError(t, err)
	require.Len(t, locs, 2)

	assert.Equal(t, "London, England, United Kingdom", locs[0].Name)
	assert.Equal(t, "London, Ontario, Canada", locs[1].Name)
	assert.False(t, locs[0].IsCurrent)
}

func TestService_Search_Error(t *testing.T) {
	geocoder := &mockGeocoder{searchErr: location.ErrSearchFailed}

	_, err := newService(&mockPositions{}, geocoder, nil).Search(context.Background(), "x")
	assert.ErrorIs(t, err, location.ErrSearchFailed)
}
