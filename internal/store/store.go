// Package store persists the user's saved location list.
package store

import (
	"context"
	"errors"

	"github.com/skycast/skycast/internal/location"
)

// Store errors.
var (
	// ErrNotFound indicates the location is not in the saved list.
	ErrNotFound = errors.New("location not found")
)

// Store is the saved-location persistence contract. The list is small and is
// always read and written wholesale; identity is the coordinate pair.
type Store interface {
	// Add appends a location to the saved list. Adding a location whose
	// coordinate pair is already present is a no-op.
	Add(ctx context.Context, loc location.Location) error

	// Remove deletes the location with the same coordinate pair.
	// Removing an absent location returns ErrNotFound.
	Remove(ctx context.Context, loc location.Location) error

	// List returns the saved locations in insertion order.
	List(ctx context.Context) ([]location.Location, error)
}

// appendUnique adds loc unless its coordinate pair is already present.
// Shared by implementations so de-duplication behaves identically.
func appendUnique(locs []location.Location, loc location.Location) []location.Location {
	for _, existing := range locs {
		if existing.SameCoordinates(loc) {
			return locs
		}
	}
	return append(locs, loc)
}

// removeByKey deletes the entry with loc's coordinate pair, reporting
// whether anything was removed.
func removeByKey(locs []location.Location, loc location.Location) ([]location.Location, bool) {
	for i, existing := range locs {
		if existing.SameCoordinates(loc) {
			return append(locs[:i], locs[i+1:]...), true
		}
	}
	return locs, false
}
