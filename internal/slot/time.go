package slot

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// MinutesPerDay bounds a TimeOfDay.
const MinutesPerDay = 24 * 60

// ErrInvalidTime is returned when text matches neither accepted time format.
var ErrInvalidTime = errors.New("invalid time format")

var (
	re24Hour = regexp.MustCompile(`^(\d{1,2}):(\d{2})$`)
	re12Hour = regexp.MustCompile(`(?i)^(\d{1,2}):(\d{2}) ?(AM|PM)$`)

	// Locale-aware formatters put these between the minutes and the AM/PM marker.
	spaceReplacer = strings.NewReplacer("\u00a0", " ", "\u202f", " ")
)

// TimeOfDay is a naive wall-clock instant expressed as minutes since midnight.
// Valid values are in [0, MinutesPerDay).
type TimeOfDay int

// NewTimeOfDay builds a TimeOfDay from an hour (0-23) and minute (0-59).
func NewTimeOfDay(hour, minute int) (TimeOfDay, error) {
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, fmt.Errorf("%w: %02d:%02d out of range", ErrInvalidTime, hour, minute)
	}
	return TimeOfDay(hour*60 + minute), nil
}

// FromTime takes the wall-clock hour and minute of t, ignoring its date and zone.
func FromTime(t time.Time) TimeOfDay {
	return TimeOfDay(t.Hour()*60 + t.Minute())
}

// ParseTime parses "H:MM"/"HH:MM" (24-hour) or "h:mm AM"/"hh:mm PM" (12-hour).
//
// The AM/PM suffix is case-insensitive and may be separated by a single space.
// No timezone conversion is applied.
func ParseTime(text string) (TimeOfDay, error) {
	s := strings.TrimSpace(spaceReplacer.Replace(text))

	if m := re24Hour.FindStringSubmatch(s); m != nil {
		hour, _ := strconv.Atoi(m[1])
		minute, _ := strconv.Atoi(m[2])
		t, err := NewTimeOfDay(hour, minute)
		if err != nil {
			return 0, fmt.Errorf("%w: %q", ErrInvalidTime, text)
		}
		return t, nil
	}

	if m := re12Hour.FindStringSubmatch(s); m != nil {
		hour, _ := strconv.Atoi(m[1])
		minute, _ := strconv.Atoi(m[2])
		if hour > 12 || minute > 59 {
			return 0, fmt.Errorf("%w: %q", ErrInvalidTime, text)
		}
		switch pm := strings.EqualFold(m[3], "PM"); {
		case pm && hour < 12:
			hour += 12
		case !pm && hour == 12:
			hour = 0
		}
		return TimeOfDay(hour*60 + minute), nil
	}

	return 0, fmt.Errorf("%w: %q", ErrInvalidTime, text)
}

func (t TimeOfDay) Hour() int   { return int(t) / 60 }
func (t TimeOfDay) Minute() int { return int(t) % 60 }

// Clock renders the 24-hour form, e.g. "13:05".
func (t TimeOfDay) Clock() string {
	return fmt.Sprintf("%02d:%02d", t.Hour(), t.Minute())
}

// String renders the display form, e.g. "07:00 AM" or "01:05 PM".
func (t TimeOfDay) String() string {
	h := t.Hour()
	suffix := "AM"
	if h >= 12 {
		suffix = "PM"
	}
	h %= 12
	if h == 0 {
		h = 12
	}
	return fmt.Sprintf("%02d:%02d %s", h, t.Minute(), suffix)
}
