package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/skycast/skycast/internal/location"
)

// savedLocationsKey is the single settings entry the location list lives in.
const savedLocationsKey = "saved_locations"

// SQLiteStore persists the saved location list in a local SQLite database.
// The whole list is stored as one JSON value and rewritten on every change.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (creating if necessary) the database at path and runs the
// schema migration.
func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the underlying database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS settings (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("migrating schema: %w", err)
	}
	return nil
}

// Add appends a location, de-duplicated by coordinate pair.
func (s *SQLiteStore) Add(ctx context.Context, loc location.Location) error {
	locs, err := s.List(ctx)
	if err != nil {
		return err
	}
	return s.write(ctx, appendUnique(locs, loc))
}

// Remove deletes the location with the same coordinate pair.
func (s *SQLiteStore) Remove(ctx context.Context, loc location.Location) error {
	locs, err := s.List(ctx)
	if err != nil {
		return err
	}

	locs, removed := removeByKey(locs, loc)
	if !removed {
		return ErrNotFound
	}
	return s.write(ctx, locs)
}

// List returns the saved locations in insertion order.
func (s *SQLiteStore) List(ctx context.Context) ([]location.Location, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM settings WHERE key = ?`, savedLocationsKey).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return []location.Location{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading saved locations: %w", err)
	}

	locs, err := location.UnmarshalList([]byte(value))
	if err != nil {
		return nil, fmt.Errorf("decoding saved locations: %w", err)
	}
	if locs == nil {
		locs = []location.Location{}
	}
	return locs, nil
}

func (s *SQLiteStore) write(ctx context.Context, locs []location.Location) error {
	data, err := location.MarshalList(locs)
	if err != nil {
		return fmt.Errorf("encoding saved locations: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO settings (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, savedLocationsKey, string(data))
	if err != nil {
		return fmt.Errorf("writing saved locations: %w", err)
	}
	return nil
}

// Ensure SQLiteStore implements Store.
var _ Store = (*SQLiteStore)(nil)
