// Package weather fetches current conditions, forecasts and daylight times.
package weather

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrMissingAPIKey   = errors.New("missing OpenWeatherMap API key")
	ErrMissingDaylight = errors.New("sunrise/sunset data is missing from the API response")
	ErrMissingForecast = errors.New("weather forecast data is missing")
)

// Coordinates is a latitude/longitude pair in decimal degrees.
type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

func (c Coordinates) Validate() error {
	if c.Latitude < -90 || c.Latitude > 90 || c.Longitude < -180 || c.Longitude > 180 {
		return fmt.Errorf("coordinates out of range: %v,%v", c.Latitude, c.Longitude)
	}
	return nil
}

// Current is today's conditions at a location.
type Current struct {
	Place       string    `json:"place,omitempty"`
	Main        string    `json:"main"`
	Description string    `json:"description"`
	TempC       float64   `json:"temp_c"`
	Sunrise     time.Time `json:"sunrise"`
	Sunset      time.Time `json:"sunset"`
	ObservedAt  time.Time `json:"observed_at"`
	FromCache   bool      `json:"from_cache"`
}

// ForecastDay is the first forecast sample of one calendar day.
type ForecastDay struct {
	Date        string `json:"date"` // YYYY-MM-DD
	Main        string `json:"main"`
	Description string `json:"description"`
	// Temp is whole degrees Celsius, or "N/A".
	Temp string `json:"temp"`
}

// RateCondition scores a condition for light exposure; unknown conditions score 0.
func RateCondition(main string) int {
	switch main {
	case "Clear":
		return 10
	case "Clouds":
		return 8
	case "Snow":
		return 6
	case "Rain":
		return 5
	case "Thunderstorm":
		return 3
	default:
		return 0
	}
}

// Icon maps a condition to a FontAwesome icon name.
func Icon(main string) string {
	switch main {
	case "Clear":
		return "sun"
	case "Clouds":
		return "cloud"
	case "Rain":
		return "cloud-rain"
	case "Snow":
		return "snowflake"
	case "Thunderstorm":
		return "bolt"
	default:
		return "cloud-sun"
	}
}

func kelvinToCelsius(k float64) float64 {
	return k - 273.15
}
