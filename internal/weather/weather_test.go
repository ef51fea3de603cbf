package weather

import (
	"errors"
	"testing"
	"time"
)

func TestRateCondition(t *testing.T) {
	tests := map[string]int{
		"Clear":        10,
		"Clouds":       8,
		"Rain":         5,
		"Snow":         6,
		"Thunderstorm": 3,
		"Mist":         0,
		"":             0,
	}
	for main, want := range tests {
		if got := RateCondition(main); got != want {
			t.Errorf("RateCondition(%q) = %d, want %d", main, got, want)
		}
	}
}

func TestIcon(t *testing.T) {
	tests := map[string]string{
		"Clear":        "sun",
		"Clouds":       "cloud",
		"Rain":         "cloud-rain",
		"Snow":         "snowflake",
		"Thunderstorm": "bolt",
		"Haze":         "cloud-sun",
	}
	for main, want := range tests {
		if got := Icon(main); got != want {
			t.Errorf("Icon(%q) = %q, want %q", main, got, want)
		}
	}
}

func TestCoordinatesValidate(t *testing.T) {
	if err := (Coordinates{Latitude: 49.28, Longitude: -123.12}).Validate(); err != nil {
		t.Fatalf("valid coords: %v", err)
	}
	if err := (Coordinates{Latitude: 91}).Validate(); err == nil {
		t.Fatal("latitude 91 accepted")
	}
	if err := (Coordinates{Longitude: -181}).Validate(); err == nil {
		t.Fatal("longitude -181 accepted")
	}
}

func TestSunTimes(t *testing.T) {
	loc, err := time.LoadLocation("America/Vancouver")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	date := time.Date(2026, 6, 21, 12, 0, 0, 0, loc)
	rise, set, err := SunTimes(Coordinates{Latitude: 49.2827, Longitude: -123.1207}, date, loc)
	if err != nil {
		t.Fatalf("SunTimes: %v", err)
	}
	// Midsummer in Vancouver: sunrise a little after 05:00, sunset after 21:00.
	if rise.Hour() != 5 || set.Hour() != 21 {
		t.Fatalf("rise=%s set=%s", rise.Format("15:04"), set.Format("15:04"))
	}
}

func TestSunTimes_PolarNight(t *testing.T) {
	date := time.Date(2026, 12, 21, 12, 0, 0, 0, time.UTC)
	_, _, err := SunTimes(Coordinates{Latitude: 85, Longitude: 0}, date, time.UTC)
	if !errors.Is(err, ErrMissingDaylight) {
		t.Fatalf("err = %v, want ErrMissingDaylight", err)
	}
}
