// Package app holds the weather state controller: the single authoritative
// place for which location is active, what data is cached for it, whether
// that data is fresh, and whether a fetch is allowed to start right now.
package app

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/skycast/skycast/internal/location"
	"github.com/skycast/skycast/internal/store"
	"github.com/skycast/skycast/internal/weather"
)

// DefaultCacheTTL is the freshness window for cached weather bundles.
const DefaultCacheTTL = 15 * time.Minute

// ForecastView selects which forecast the presentation layer shows.
type ForecastView string

const (
	ForecastHourly ForecastView = "HOURLY"
	ForecastDaily  ForecastView = "DAILY"
)

// LocationGateway resolves the device location and searches for places.
type LocationGateway interface {
	Current(ctx context.Context) (location.Location, error)
	Search(ctx context.Context, query string) ([]location.Location, error)
}

// WeatherGateway fetches the combined weather bundle for one location.
type WeatherGateway interface {
	FetchBundle(ctx context.Context, loc location.Location) (*weather.Bundle, error)
}

// Snapshot is the published copy of controller state the presentation layer
// renders from. It shares no mutable data with the controller.
type Snapshot struct {
	CurrentLocation  *location.Location
	SavedLocations   []location.Location
	SelectedLocation *location.Location
	Weather          map[string]weather.Bundle
	ForecastView     ForecastView
	Busy             bool
	LastError        string
	SearchResults    []location.Location
}

// commandKind tags a queued top-level operation.
type commandKind int

const (
	cmdInitialize commandKind = iota
	cmdRefreshAll
	cmdRefreshSelected
	cmdSearch
)

func (k commandKind) String() string {
	switch k {
	case cmdInitialize:
		return "initialize"
	case cmdRefreshAll:
		return "refresh_all"
	case cmdRefreshSelected:
		return "refresh_selected"
	case cmdSearch:
		return "search"
	default:
		return "unknown"
	}
}

// command is one deferred top-level operation. Search carries its query; the
// other kinds need no arguments.
type command struct {
	kind  commandKind
	query string
}

// ControllerConfig holds configuration for the controller.
type ControllerConfig struct {
	// Locations resolves the device location and searches (required).
	Locations LocationGateway

	// Weather fetches weather bundles (required).
	Weather WeatherGateway

	// Store persists the saved location list (required).
	Store store.Store

	// Logger for controller operations.
	Logger zerolog.Logger

	// CacheTTL is the bundle freshness window (default: 15 minutes).
	CacheTTL time.Duration

	// Clock overrides the time source (tests only).
	Clock func() time.Time
}

// Controller owns all weather application state. The exported top-level
// operations (Initialize, RefreshAll, RefreshSelected, Search) are
// single-flight: at most one runs at a time, and one invoked while another
// is in flight is queued FIFO and run after the current one finishes, so no
// two operations ever interleave their gateway calls.
type Controller struct {
	locations LocationGateway
	weather   WeatherGateway
	store     store.Store
	logger    zerolog.Logger
	ttl       time.Duration
	now       func() time.Time

	mu        sync.Mutex
	busy      bool
	pending   []command
	current   *location.Location
	saved     []location.Location
	selected  *location.Location
	bundles   map[string]*weather.Bundle
	fetchedAt map[string]time.Time
	view      ForecastView
	lastErr   string
	results   []location.Location
	subs      map[int]func(Snapshot)
	nextSubID int
}

// NewController creates a controller. Nothing is fetched until Initialize.
func NewController(cfg ControllerConfig) *Controller {
	ttl := cfg.CacheTTL
	if ttl == 0 {
		ttl = DefaultCacheTTL
	}

	now := cfg.Clock
	if now == nil {
		now = time.Now
	}

	return &Controller{
		locations: cfg.Locations,
		weather:   cfg.Weather,
		store:     cfg.Store,
		logger:    cfg.Logger,
		ttl:       ttl,
		now:       now,
		bundles:   make(map[string]*weather.Bundle),
		fetchedAt: make(map[string]time.Time),
		view:      ForecastHourly,
		subs:      make(map[int]func(Snapshot)),
	}
}

// Subscribe registers a listener called with a state snapshot after every
// mutation. The returned function removes the listener.
func (c *Controller) Subscribe(fn func(Snapshot)) (cancel func()) {
	c.mu.Lock()
	id := c.nextSubID
	c.nextSubID++
	c.subs[id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.subs, id)
		c.mu.Unlock()
	}
}

// Snapshot returns a copy of the current state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Controller) snapshotLocked() Snapshot {
	snap := Snapshot{
		ForecastView: c.view,
		Busy:         c.busy,
		LastError:    c.lastErr,
		Weather:      make(map[string]weather.Bundle, len(c.bundles)),
	}
	if c.current != nil {
		cur := *c.current
		snap.CurrentLocation = &cur
	}
	if c.selected != nil {
		sel := *c.selected
		snap.SelectedLocation = &sel
	}
	snap.SavedLocations = append([]location.Location(nil), c.saved...)
	snap.SearchResults = append([]location.Location(nil), c.results...)
	for key, bundle := range c.bundles {
		snap.Weather[key] = *bundle
	}
	return snap
}

// Initialize resolves the device location and the saved list, fetches
// weather for the selected (device) location before returning, and fans out
// fetches for the remaining locations in the background.
func (c *Controller) Initialize(ctx context.Context) error {
	return c.dispatch(ctx, command{kind: cmdInitialize})
}

// RefreshAll re-resolves the device location and force-refreshes every known
// location: the selected one first (awaited), the rest in the background.
func (c *Controller) RefreshAll(ctx context.Context) error {
	return c.dispatch(ctx, command{kind: cmdRefreshAll})
}

// RefreshSelected force-refreshes the selected location, tracking a device
// move if the selection is the device location.
func (c *Controller) RefreshSelected(ctx context.Context) error {
	return c.dispatch(ctx, command{kind: cmdRefreshSelected})
}

// Search looks up locations matching the query and publishes the results.
// A blank query clears the results without touching the gateway.
func (c *Controller) Search(ctx context.Context, query string) error {
	return c.dispatch(ctx, command{kind: cmdSearch, query: query})
}

// dispatch runs cmd now, or queues it when another top-level operation is in
// flight. Queued duplicates of an already-pending command are dropped. A
// queued command reports nil to its caller; its eventual error is logged.
func (c *Controller) dispatch(ctx context.Context, cmd command) error {
	c.mu.Lock()
	if c.busy {
		if !c.isQueuedLocked(cmd) {
			c.pending = append(c.pending, cmd)
		}
		c.mu.Unlock()
		return nil
	}
	c.busy = true
	c.mu.Unlock()

	err := c.execute(ctx, cmd)
	c.finish(ctx)
	return err
}

func (c *Controller) isQueuedLocked(cmd command) bool {
	for _, p := range c.pending {
		if p == cmd {
			return true
		}
	}
	return false
}

// finish is every operation's finally phase: clear the busy flag (or keep it
// for the next queued command), publish, and drain one queued command. The
// drained command finishes through here too, so the queue empties
// recursively while callers of the original operation only waited for it.
func (c *Controller) finish(ctx context.Context) {
	c.mu.Lock()
	var next *command
	if len(c.pending) > 0 {
		cmd := c.pending[0]
		c.pending = c.pending[1:]
		next = &cmd
	} else {
		c.busy = false
	}
	c.mu.Unlock()

	c.publish()

	if next != nil {
		if err := c.execute(ctx, *next); err != nil {
			c.logger.Warn().Err(err).
				Stringer("command", next.kind).
				Msg("queued operation failed")
		}
		c.finish(ctx)
	}
}

func (c *Controller) execute(ctx context.Context, cmd command) error {
	c.mu.Lock()
	c.lastErr = ""
	c.mu.Unlock()

	c.logger.Debug().Stringer("command", cmd.kind).Msg("running operation")

	switch cmd.kind {
	case cmdInitialize:
		return c.doInitialize(ctx)
	case cmdRefreshAll:
		return c.doRefreshAll(ctx)
	case cmdRefreshSelected:
		return c.doRefreshSelected(ctx)
	case cmdSearch:
		return c.doSearch(ctx, cmd.query)
	default:
		return nil
	}
}

func (c *Controller) doInitialize(ctx context.Context) error {
	var (
		device location.Location
		saved  []location.Location
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		device, err = c.locations.Current(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		saved, err = c.store.List(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		c.setError(err)
		return err
	}

	c.mu.Lock()
	dev := device
	c.current = &dev
	c.saved = saved
	sel := device
	c.selected = &sel
	c.mu.Unlock()

	// The selected location is awaited so the first published snapshot has
	// content; everything else fills in behind it.
	if err := c.fetchWeather(ctx, device); err != nil {
		c.setError(err)
		return err
	}

	c.backgroundFetch(othersByKey(append([]location.Location{device}, saved...), device.Key()))
	return nil
}

func (c *Controller) doRefreshAll(ctx context.Context) error {
	var (
		device location.Location
		saved  []location.Location
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		device, err = c.locations.Current(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		saved, err = c.store.List(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		c.setError(err)
		return err
	}

	c.mu.Lock()
	c.trackDeviceMoveLocked(device)
	c.saved = saved
	if c.selected == nil {
		sel := device
		c.selected = &sel
	}
	sel := *c.selected

	// Drop the fetch timestamps for every key about to be refreshed so each
	// one goes to the network instead of hitting the cache.
	targets := dedupeByKey(append([]location.Location{device}, saved...))
	for _, t := range targets {
		delete(c.fetchedAt, t.Key())
	}
	c.mu.Unlock()

	if err := c.fetchWeather(ctx, sel); err != nil {
		c.setError(err)
		return err
	}

	c.backgroundFetch(othersByKey(targets, sel.Key()))
	return nil
}

func (c *Controller) doRefreshSelected(ctx context.Context) error {
	c.mu.Lock()
	if c.selected == nil {
		c.mu.Unlock()
		return nil
	}
	sel := *c.selected
	c.mu.Unlock()

	device, err := c.locations.Current(ctx)
	if err != nil {
		// Device position is unknown; fall back to refreshing just the
		// current selection.
		c.logger.Warn().Err(err).Msg("device location unavailable, refreshing selection only")
		return c.forceFetchSelected(ctx, sel)
	}

	c.mu.Lock()
	selectedIsDevice := c.current != nil && c.selected != nil && c.selected.Key() == c.current.Key()
	c.trackDeviceMoveLocked(device)
	if selectedIsDevice {
		// The selection follows the device: repoint it at the fresh
		// coordinates before fetching.
		sel = device
		selCopy := device
		c.selected = &selCopy
	}
	var background *location.Location
	if !selectedIsDevice {
		dev := device
		delete(c.fetchedAt, dev.Key())
		background = &dev
	}
	c.mu.Unlock()

	if background != nil {
		c.backgroundFetch([]location.Location{*background})
	}
	return c.forceFetchSelected(ctx, sel)
}

func (c *Controller) forceFetchSelected(ctx context.Context, sel location.Location) error {
	c.mu.Lock()
	delete(c.fetchedAt, sel.Key())
	c.mu.Unlock()

	if err := c.fetchWeather(ctx, sel); err != nil {
		c.setError(err)
		return err
	}
	return nil
}

// trackDeviceMoveLocked installs the freshly resolved device location. When
// the coordinates changed, the previous device cache entry is invalidated
// and a selection pointing at it is repointed to the new coordinates.
func (c *Controller) trackDeviceMoveLocked(device location.Location) {
	if c.current != nil && !c.current.SameCoordinates(device) {
		oldKey := c.current.Key()
		delete(c.bundles, oldKey)
		delete(c.fetchedAt, oldKey)
		if c.selected != nil && c.selected.Key() == oldKey {
			sel := device
			c.selected = &sel
		}
		c.logger.Info().
			Str("from", oldKey).
			Str("to", device.Key()).
			Msg("device location changed")
	}
	dev := device
	c.current = &dev
}

func (c *Controller) doSearch(ctx context.Context, query string) error {
	if strings.TrimSpace(query) == "" {
		c.mu.Lock()
		c.results = []location.Location{}
		c.mu.Unlock()
		return nil
	}

	results, err := c.locations.Search(ctx, query)
	if err != nil {
		c.mu.Lock()
		c.results = nil
		c.mu.Unlock()
		c.setError(err)
		return err
	}

	c.mu.Lock()
	c.results = results
	c.mu.Unlock()
	return nil
}

// SelectLocation makes loc the active location and publishes immediately,
// with stale or absent data rather than blocking; a stale cache entry
// triggers a background fetch.
func (c *Controller) SelectLocation(loc location.Location) {
	c.mu.Lock()
	sel := loc
	c.selected = &sel
	stale := !c.isFreshLocked(loc.Key())
	c.mu.Unlock()

	if stale {
		c.backgroundFetch([]location.Location{loc})
	}
	c.publish()
}

// AddLocation saves loc. Adding a location already saved by coordinate pair
// is a no-op. The saved list is re-read from the store afterwards; the store,
// not the in-memory mirror, is the source of truth.
func (c *Controller) AddLocation(ctx context.Context, loc location.Location) error {
	c.mu.Lock()
	for _, s := range c.saved {
		if s.SameCoordinates(loc) {
			c.mu.Unlock()
			return nil
		}
	}
	c.mu.Unlock()

	err := c.store.Add(ctx, loc)
	if err != nil {
		c.setError(err)
	} else if err = c.reloadSaved(ctx); err == nil {
		c.backgroundFetch([]location.Location{loc})
	}

	c.publish()
	return err
}

// RemoveLocation deletes loc from the store, purges its cache entries, and
// reselects the device location if loc was selected.
func (c *Controller) RemoveLocation(ctx context.Context, loc location.Location) error {
	err := c.store.Remove(ctx, loc)
	if err != nil {
		c.setError(err)
	} else if err = c.reloadSaved(ctx); err == nil {
		key := loc.Key()
		c.mu.Lock()
		delete(c.bundles, key)
		delete(c.fetchedAt, key)
		if c.selected != nil && c.selected.Key() == key {
			if c.current != nil {
				sel := *c.current
				c.selected = &sel
			} else {
				c.selected = nil
			}
		}
		c.mu.Unlock()
	}

	c.publish()
	return err
}

func (c *Controller) reloadSaved(ctx context.Context) error {
	saved, err := c.store.List(ctx)
	if err != nil {
		c.setError(err)
		return err
	}
	c.mu.Lock()
	c.saved = saved
	c.mu.Unlock()
	return nil
}

// ToggleForecastView flips between the hourly and daily forecast.
func (c *Controller) ToggleForecastView() {
	c.mu.Lock()
	if c.view == ForecastHourly {
		c.view = ForecastDaily
	} else {
		c.view = ForecastHourly
	}
	c.mu.Unlock()
	c.publish()
}

// fetchWeather is the internal fetch primitive: a no-op when the cache is
// fresh, otherwise one gateway call whose result replaces the cache entry.
// A fetch failure leaves the stale-or-absent entry as-is and is returned for
// the caller to decide on; batch callers swallow it. A state update is
// published only when the fetched location is the selected one, so
// background fetches do not churn the presentation layer.
func (c *Controller) fetchWeather(ctx context.Context, loc location.Location) error {
	key := loc.Key()

	c.mu.Lock()
	if c.isFreshLocked(key) {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	bundle, err := c.weather.FetchBundle(ctx, loc)
	if err != nil {
		c.logger.Warn().Err(err).
			Str("location", key).
			Msg("weather fetch failed, keeping cached data")
		return err
	}

	c.mu.Lock()
	c.bundles[key] = bundle
	c.fetchedAt[key] = c.now()
	isSelected := c.selected != nil && c.selected.Key() == key
	c.mu.Unlock()

	if isSelected {
		c.publish()
	}
	return nil
}

// backgroundFetch fires unawaited fetches for locs and publishes one state
// update when the whole batch has finished. Per-location failures are
// swallowed so one bad location cannot abort the batch. The fetches outlive
// the operation that started them, hence the fresh context: once started, a
// batch always runs to completion.
func (c *Controller) backgroundFetch(locs []location.Location) {
	if len(locs) == 0 {
		return
	}

	go func() {
		var wg sync.WaitGroup
		for _, loc := range locs {
			wg.Add(1)
			go func(loc location.Location) {
				defer wg.Done()
				// Failures already logged by fetchWeather; one bad
				// location must not abort the batch.
				_ = c.fetchWeather(context.Background(), loc)
			}(loc)
		}
		wg.Wait()
		c.publish()
	}()
}

// isFreshLocked reports whether the cache entry for key is inside the
// freshness window. No timestamp means stale.
func (c *Controller) isFreshLocked(key string) bool {
	t, ok := c.fetchedAt[key]
	return ok && c.now().Sub(t) <= c.ttl
}

func (c *Controller) setError(err error) {
	c.mu.Lock()
	c.lastErr = err.Error()
	c.mu.Unlock()
	c.logger.Error().Err(err).Msg("controller operation failed")
}

func (c *Controller) publish() {
	c.mu.Lock()
	snap := c.snapshotLocked()
	subs := make([]func(Snapshot), 0, len(c.subs))
	for _, fn := range c.subs {
		subs = append(subs, fn)
	}
	c.mu.Unlock()

	for _, fn := range subs {
		fn(snap)
	}
}

// dedupeByKey keeps the first location seen for each coordinate key.
func dedupeByKey(locs []location.Location) []location.Location {
	seen := make(map[string]struct{}, len(locs))
	out := make([]location.Location, 0, len(locs))
	for _, loc := range locs {
		key := loc.Key()
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, loc)
	}
	return out
}

// othersByKey returns locs minus the entry with the given key, de-duplicated.
func othersByKey(locs []location.Location, key string) []location.Location {
	out := make([]location.Location, 0, len(locs))
	for _, loc := range dedupeByKey(locs) {
		if loc.Key() != key {
			out = append(out, loc)
		}
	}
	return out
}
