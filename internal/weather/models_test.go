package weather_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/skycast/skycast/internal/weather"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name       string
		cloudCover int
		rainProb   int
		want       weather.Condition
	}{
		{"clear sky", 0, 0, weather.ConditionClear},
		{"clear at threshold", 30, 50, weather.ConditionClear},
		{"partly cloudy", 31, 0, weather.ConditionPartlyCloudy},
		{"partly cloudy at threshold", 70, 0, weather.ConditionPartlyCloudy},
		{"cloudy", 71, 0, weather.ConditionCloudy},
		{"overcast", 100, 50, weather.ConditionCloudy},
		{"rain beats clouds", 100, 51, weather.ConditionRainy},
		{"rain with clear sky", 0, 51, weather.ConditionRainy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, weather.Classify(tt.cloudCover, tt.rainProb))
		})
	}
}

func TestCurrent_Condition(t *testing.T) {
	// 22.5°C, cloud cover 25, no rain: a clear day.
	cur := weather.Current{TemperatureC: 22.5, CloudCover: 25, RainfallMM: 0.0}
	assert.Equal(t, weather.ConditionClear, cur.Condition())

	// Measured rain dominates regardless of cloud cover.
	wet := weather.Current{CloudCover: 10, RainfallMM: 2.4}
	assert.Equal(t, weather.ConditionRainy, wet.Condition())
}

func TestHourly_Condition(t *testing.T) {
	h := weather.Hourly{CloudCover: 80, RainProbability: 20}
	assert.Equal(t, weather.ConditionCloudy, h.Condition())
}

func TestDaily_Condition(t *testing.T) {
	d := weather.Daily{CloudCover: 40, RainProbability: 90}
	assert.Equal(t, weather.ConditionRainy, d.Condition())
}
