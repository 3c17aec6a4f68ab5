package location

import (
	"encoding/json"
	"errors"
	"strconv"
)

// Location errors.
var (
	// ErrPermissionDenied indicates location access was denied for this request.
	ErrPermissionDenied = errors.New("location permission denied")

	// ErrPermissionDeniedForever indicates location access is permanently blocked.
	ErrPermissionDeniedForever = errors.New("location permission permanently denied")

	// ErrPositionUnavailable indicates the device position could not be resolved.
	ErrPositionUnavailable = errors.New("device position unavailable")

	// ErrSearchFailed indicates the geocoding search request failed.
	ErrSearchFailed = errors.New("location search failed")
)

// PlaceholderName is the human-readable fallback used when no geocoding
// source can name a coordinate pair.
const PlaceholderName = "Unknown location"

// Location is a named coordinate pair. Identity for caching and lookups is
// the raw coordinate pair, never the name: names may repeat or change when a
// point is re-geocoded.
type Location struct {
	Name      string  `json:"name"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	IsCurrent bool    `json:"isCurrent"`
}

// Key returns the cache identity of the location: the raw latitude and
// longitude joined as "lat,lon". No rounding or normalisation is applied, so
// two locations are the same entity iff their coordinates are bit-identical.
func (l Location) Key() string {
	return strconv.FormatFloat(l.Latitude, 'g', -1, 64) + "," +
		strconv.FormatFloat(l.Longitude, 'g', -1, 64)
}

// SameCoordinates reports whether two locations share the exact coordinate pair.
func (l Location) SameCoordinates(other Location) bool {
	return l.Latitude == other.Latitude && l.Longitude == other.Longitude
}

// MarshalList serialises a location list wholesale for persisted storage.
func MarshalList(locs []Location) ([]byte, error) {
	if locs == nil {
		locs = []Location{}
	}
	return json.Marshal(locs)
}

// UnmarshalList deserialises a persisted location list.
func UnmarshalList(data []byte) ([]Location, error) {
	var locs []Location
	if err := json.Unmarshal(data, &locs); err != nil {
		return nil, err
	}
	return locs, nil
}
