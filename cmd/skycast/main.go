// Package main provides the skycast command line weather app.
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/skycast/skycast/internal/app"
	"github.com/skycast/skycast/internal/config"
	"github.com/skycast/skycast/internal/location"
	"github.com/skycast/skycast/internal/location/ipgeo"
	geocoding "github.com/skycast/skycast/internal/location/openmeteo"
	"github.com/skycast/skycast/internal/store"
	"github.com/skycast/skycast/internal/weather/openmeteo"
)

// Version is set at compile time via ldflags.
var Version = "dev"

func main() {
	log := zerolog.New(os.Stderr).
		With().
		Timestamp().
		Str("service", "skycast").
		Str("version", Version).
		Logger()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	if level, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		log = log.Level(level)
	}

	var locations store.Store
	if cfg.DBPath != "" {
		sqlite, err := store.OpenSQLite(cfg.DBPath)
		if err != nil {
			log.Fatal().Err(err).Str("path", cfg.DBPath).Msg("failed to open location store")
		}
		defer sqlite.Close()
		locations = sqlite
		log.Info().Str("path", cfg.DBPath).Msg("location store opened")
	} else {
		locations = store.NewMemoryStore()
		log.Warn().Msg("SKYCAST_DB not set, saved locations will not persist")
	}

	positions := ipgeo.NewClient(ipgeo.ClientConfig{
		Timeout: cfg.PositionTimeout,
		Logger:  log,
	})
	locationService := location.NewService(location.ServiceConfig{
		Positions: positions,
		Geocoder:  geocoding.NewClient(geocoding.ClientConfig{Logger: log}),
		Fallback:  positions,
		Logger:    log,
	})

	controller := app.NewController(app.ControllerConfig{
		Locations: locationService,
		Weather:   openmeteo.NewClient(openmeteo.ClientConfig{Logger: log}),
		Store:     locations,
		Logger:    log,
		CacheTTL:  cfg.CacheTTL,
	})

	unsubscribe := controller.Subscribe(render)
	defer unsubscribe()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := controller.Initialize(ctx); err != nil {
		// The error is already in the published snapshot; keep the loop
		// alive so the user can retry.
		log.Error().Err(err).Msg("initialization failed")
	}

	runLoop(ctx, controller, log)
	log.Info().Msg("skycast stopped")
}

// runLoop reads commands from stdin until EOF, quit, or a signal.
func runLoop(ctx context.Context, controller *app.Controller, log zerolog.Logger) {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	fmt.Println(`commands: refresh | refresh-all | search <query> | add <result#> | remove <saved#> | select <#> | view | quit`)

	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			if !handle(ctx, controller, log, line) {
				return
			}
		}
	}
}

func handle(ctx context.Context, controller *app.Controller, log zerolog.Logger, line string) bool {
	cmd, arg, _ := strings.Cut(strings.TrimSpace(line), " ")

	switch cmd {
	case "":
	case "quit", "exit":
		return false
	case "refresh":
		if err := controller.RefreshSelected(ctx); err != nil {
			log.Error().Err(err).Msg("refresh failed")
		}
	case "refresh-all":
		if err := controller.RefreshAll(ctx); err != nil {
			log.Error().Err(err).Msg("refresh failed")
		}
	case "search":
		if err := controller.Search(ctx, arg); err != nil {
			log.Error().Err(err).Msg("search failed")
		}
	case "add":
		if loc, ok := pick(controller.Snapshot().SearchResults, arg); ok {
			if err := controller.AddLocation(ctx, loc); err != nil {
				log.Error().Err(err).Msg("add failed")
			}
		} else {
			fmt.Println("add: no such search result")
		}
	case "remove":
		if loc, ok := pick(controller.Snapshot().SavedLocations, arg); ok {
			if err := controller.RemoveLocation(ctx, loc); err != nil {
				log.Error().Err(err).Msg("remove failed")
			}
		} else {
			fmt.Println("remove: no such saved location")
		}
	case "select":
		snap := controller.Snapshot()
		choices := snap.SavedLocations
		if snap.CurrentLocation != nil {
			choices = append([]location.Location{*snap.CurrentLocation}, choices...)
		}
		if loc, ok := pick(choices, arg); ok {
			controller.SelectLocation(loc)
		} else {
			fmt.Println("select: no such location")
		}
	case "view":
		controller.ToggleForecastView()
	default:
		fmt.Printf("unknown command %q\n", cmd)
	}
	return true
}

// pick resolves a 1-based index argument against a location list.
func pick(locs []location.Location, arg string) (location.Location, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(arg))
	if err != nil || n < 1 || n > len(locs) {
		return location.Location{}, false
	}
	return locs[n-1], true
}

// render prints a text rendition of a published snapshot.
func render(snap app.Snapshot) {
	if snap.Busy {
		return
	}
	if snap.LastError != "" {
		fmt.Printf("! %s\n", snap.LastError)
	}

	if snap.SelectedLocation == nil {
		return
	}
	sel := *snap.SelectedLocation

	bundle, ok := snap.Weather[sel.Key()]
	if !ok {
		fmt.Printf("%s: no data yet\n", sel.Name)
		return
	}

	cur := bundle.Current
	fmt.Printf("%s: %.1f°C %s  wind %.0f mph  AQI %d  UV %.1f  pollen %.1f\n",
		sel.Name, cur.TemperatureC, cur.Condition(), cur.WindSpeedMPH, cur.AQI, cur.UVIndex, cur.PollenCount)

	switch snap.ForecastView {
	case app.ForecastHourly:
		for _, h := range bundle.Hourly {
			fmt.Printf("  %s  %5.1f°C  %s  rain %d%%\n",
				h.Time.Format("15:04"), h.TemperatureC, h.Condition(), h.RainProbability)
		}
	case app.ForecastDaily:
		for _, d := range bundle.Daily {
			fmt.Printf("  %s  %5.1f°C/%5.1f°C  %s  rain %d%%\n",
				d.Date.Format("Mon 02 Jan"), d.MinTemperatureC, d.MaxTemperatureC, d.Condition(), d.RainProbability)
		}
	}

	if len(snap.SearchResults) > 0 {
		fmt.Println("search results:")
		for i, r := range snap.SearchResults {
			fmt.Printf("  %d. %s\n", i+1, r.Name)
		}
	}
}
