package location

import (
	"context"
	"strings"

	"github.com/rs/zerolog"
)

// Position is a raw coordinate pair from a position provider.
type Position struct {
	Latitude  float64
	Longitude float64
}

// PositionProvider resolves the device's current coordinates.
type PositionProvider interface {
	// Position returns the device coordinates. Implementations bound the
	// wait with their own short timeout.
	Position(ctx context.Context) (Position, error)

	// Name returns the provider name for logging.
	Name() string
}

// Place is a geocoding result before it becomes a Location.
type Place struct {
	Name      string
	Region    string
	Country   string
	Latitude  float64
	Longitude float64
}

// DisplayName joins the place components with a fixed separator, skipping
// empty parts.
func (p Place) DisplayName() string {
	parts := make([]string, 0, 3)
	for _, s := range []string{p.Name, p.Region, p.Country} {
		if s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, ", ")
}

// Geocoder looks up places by name and names coordinate pairs.
type Geocoder interface {
	Search(ctx context.Context, query string) ([]Place, error)
	Reverse(ctx context.Context, lat, lon float64) (Place, error)
	Name() string
}

// ReverseGeocoder is the reduced contract the fallback naming source needs.
type ReverseGeocoder interface {
	Reverse(ctx context.Context, lat, lon float64) (Place, error)
	Name() string
}

// ServiceConfig holds configuration for the location service.
type ServiceConfig struct {
	// Positions resolves device coordinates (required).
	Positions PositionProvider

	// Geocoder is the primary naming and search source (required).
	Geocoder Geocoder

	// Fallback is a secondary naming source tried when the primary yields
	// no usable name (optional).
	Fallback ReverseGeocoder

	// Logger for service operations.
	Logger zerolog.Logger
}

// Service resolves the device location and searches for places. It is the
// sole geolocation collaborator the controller consumes.
type Service struct {
	positions PositionProvider
	geocoder  Geocoder
	fallback  ReverseGeocoder
	logger    zerolog.Logger
}

// NewService creates a new location service.
func NewService(cfg ServiceConfig) *Service {
	return &Service{
		positions: cfg.Positions,
		geocoder:  cfg.Geocoder,
		fallback:  cfg.Fallback,
		logger:    cfg.Logger,
	}
}

// Current resolves the device coordinates and names them. Position failures
// propagate (permission and availability errors are fatal to device-location
// resolution); naming failures degrade to the placeholder name instead.
func (s *Service) Current(ctx context.Context) (Location, error) {
	pos, err := s.positions.Position(ctx)
	if err != nil {
		return Location{}, err
	}

	return Location{
		Name:      s.resolveName(ctx, pos.Latitude, pos.Longitude),
		Latitude:  pos.Latitude,
		Longitude: pos.Longitude,
		IsCurrent: true,
	}, nil
}

// Search looks up locations by free-text query. An empty result slice means
// no matches; transport failures surface as ErrSearchFailed from the geocoder.
func (s *Service) Search(ctx context.Context, query string) ([]Location, error) {
	places, err := s.geocoder.Search(ctx, query)
	if err != nil {
		return nil, err
	}

	locs := make([]Location, 0, len(places))
	for _, p := range places {
		locs = append(locs, Location{
			Name:      p.DisplayName(),
			Latitude:  p.Latitude,
			Longitude: p.Longitude,
		})
	}
	return locs, nil
}

// resolveName tries the primary geocoder, then the fallback, then gives up
// and returns the placeholder.
func (s *Service) resolveName(ctx context.Context, lat, lon float64) string {
	place, err := s.geocoder.Reverse(ctx, lat, lon)
	if err == nil && place.DisplayName() != "" {
		return place.DisplayName()
	}
	if err != nil {
		s.logger.Warn().Err(err).
			Str("geocoder", s.geocoder.Name()).
			Msg("primary reverse geocoding failed")
	}

	if s.fallback != nil {
		place, err = s.fallback.Reverse(ctx, lat, lon)
		if err == nil && place.DisplayName() != "" {
			return place.DisplayName()
		}
		if err != nil {
			s.logger.Warn().Err(err).
				Str("geocoder", s.fallback.Name()).
				Msg("fallback reverse geocoding failed")
		}
	}

	return PlaceholderName
}
