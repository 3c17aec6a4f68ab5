package weather

import (
	"errors"
	"time"

	"github.com/skycast/skycast/internal/location"
)

// Weather errors.
var (
	// ErrFetchFailed indicates one of the bundle's upstream requests failed.
	ErrFetchFailed = errors.New("weather fetch failed")
)

// Current is a point-in-time weather snapshot for one location. Fields the
// upstream omits or mangles carry their zero value rather than failing the
// whole bundle.
type Current struct {
	TemperatureC float64
	RainfallMM   float64
	UVIndex      float64

	// PollenCount is the arithmetic mean of the pollen species indices the
	// air quality API reported, 0.0 when none were present.
	PollenCount float64

	// AQI is the European air quality index.
	AQI int

	IsDay        bool
	WindSpeedMPH float64

	// CloudCover in percent (0-100).
	CloudCover int

	Time time.Time
}

// Hourly is one forecast hour. Entries are ordered by time ascending; the
// upstream usually sends 24 but the length is never assumed.
type Hourly struct {
	TemperatureC float64
	WindSpeedMPH float64
	CloudCover   int

	// RainProbability in percent (0-100).
	RainProbability int

	IsDay bool
	Time  time.Time
}

// Daily is one forecast day. Entries are ordered by date ascending; the
// upstream usually sends 7 but the length is never assumed.
type Daily struct {
	MinTemperatureC float64
	MaxTemperatureC float64
	WindSpeedMPH    float64
	RainProbability int
	UVIndex         float64
	CloudCover      int
	Date            time.Time
}

// Bundle is the combined current/hourly/daily payload for one location: the
// unit of caching, keyed by the location's coordinate pair.
type Bundle struct {
	Current  Current
	Hourly   []Hourly
	Daily    []Daily
	Location location.Location
}

// Condition is the derived sky state used for display.
type Condition string

const (
	ConditionClear        Condition = "CLEAR"
	ConditionPartlyCloudy Condition = "PARTLY_CLOUDY"
	ConditionCloudy       Condition = "CLOUDY"
	ConditionRainy        Condition = "RAINY"
)

// Classify derives a condition from cloud cover percent and rain probability
// percent. Rain dominates; cloud cover above 70 is cloudy, above 30 partly
// cloudy.
func Classify(cloudCover, rainProbability int) Condition {
	switch {
	case rainProbability > 50:
		return ConditionRainy
	case cloudCover > 70:
		return ConditionCloudy
	case cloudCover > 30:
		return ConditionPartlyCloudy
	default:
		return ConditionClear
	}
}

// Condition derives the display condition for the snapshot. Current weather
// carries measured rainfall in millimetres rather than a probability, so any
// meaningful measured rain counts as rain.
func (c Current) Condition() Condition {
	rain := 0
	if c.RainfallMM > 0.5 {
		rain = 100
	}
	return Classify(c.CloudCover, rain)
}

// Condition derives the display condition for the forecast hour.
func (h Hourly) Condition() Condition {
	return Classify(h.CloudCover, h.RainProbability)
}

// Condition derives the display condition for the forecast day.
func (d Daily) Condition() Condition {
	return Classify(d.CloudCover, d.RainProbability)
}
