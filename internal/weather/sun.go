package weather

import (
	"time"

	"github.com/nathan-osman/go-sunrise"
)

// SunTimes computes sunrise and sunset for date at the coordinates, in loc.
// Polar day or night yields ErrMissingDaylight.
func SunTimes(at Coordinates, date time.Time, loc *time.Location) (rise, set time.Time, err error) {
	if loc == nil {
		loc = time.Local
	}
	d := date.In(loc)
	rise, set = sunrise.SunriseSunset(at.Latitude, at.Longitude, d.Year(), d.Month(), d.Day())
	if rise.IsZero() || set.IsZero() {
		return time.Time{}, time.Time{}, ErrMissingDaylight
	}
	return rise.In(loc), set.In(loc), nil
}

