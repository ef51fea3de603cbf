package slot

import (
	"errors"
	"fmt"

	appLog "sadlamp/internal/log"
)

// Fixed display strings returned by SuggestSadLampSlot.
const (
	NoSlotMessage = "No available slot for SAD lamp usage today."
	ErrorMessage  = "Error suggesting SAD lamp slot."
)

// ErrInvalidWindow is returned when sunrise or sunset cannot be parsed.
var ErrInvalidWindow = errors.New("invalid sunrise or sunset")

// Daylight is the caller's textual sunrise/sunset pair.
type Daylight struct {
	Sunrise string `json:"sunrise"`
	Sunset  string `json:"sunset"`
}

// ScheduleItem is one caller-supplied commitment in textual form.
type ScheduleItem struct {
	StartTime   string `json:"startTime"`
	EndTime     string `json:"endTime"`
	Description string `json:"description"`
}

// Options tunes Suggest. The zero value matches SuggestSadLampSlot.
type Options struct {
	// SkipUnparseable drops schedule items whose start or end cannot be
	// parsed instead of treating the bad value as midnight.
	SkipUnparseable bool
}

// Suggestion is the structured result of Suggest.
type Suggestion struct {
	Date    string    `json:"date"`
	Found   bool      `json:"found"`
	Start   TimeOfDay `json:"-"`
	Message string    `json:"message"`
}

// SuggestSadLampSlot returns a display string for the first free 30 minute
// slot between sunrise and sunset on date: a formatted time, NoSlotMessage,
// or ErrorMessage. It never panics.
func SuggestSadLampSlot(date string, daylight Daylight, schedule []ScheduleItem) string {
	s, err := Suggest(date, daylight, schedule, Options{})
	if err != nil {
		return ErrorMessage
	}
	return s.Message
}

// Suggest is the structured form of SuggestSadLampSlot.
//
// A sunrise or sunset that does not parse fails the call with
// ErrInvalidWindow. Schedule times that do not parse are treated as
// midnight unless opts.SkipUnparseable is set.
func Suggest(date string, daylight Daylight, schedule []ScheduleItem, opts Options) (s Suggestion, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("suggest slot: %v", r)
			appLog.Error("slot suggestion panicked", err, "date", date)
			s = Suggestion{Date: date, Message: ErrorMessage}
		}
	}()

	window, err := parseWindow(daylight)
	if err != nil {
		appLog.Error("slot suggestion: bad daylight window", err,
			"date", date, "sunrise", daylight.Sunrise, "sunset", daylight.Sunset)
		return Suggestion{Date: date, Message: ErrorMessage}, err
	}

	busy := make([]BusyInterval, 0, len(schedule))
	for i, item := range schedule {
		start, startErr := ParseTime(item.StartTime)
		end, endErr := ParseTime(item.EndTime)
		if startErr != nil || endErr != nil {
			if opts.SkipUnparseable {
				appLog.Warn("slot suggestion: skipping unparseable schedule item",
					"date", date, "index", i, "start", item.StartTime, "end", item.EndTime)
				continue
			}
			appLog.Warn("slot suggestion: unparseable schedule time treated as midnight",
				"date", date, "index", i, "start", item.StartTime, "end", item.EndTime)
		}
		busy = append(busy, BusyInterval{Start: start, End: end, Label: item.Description})
	}

	start, ok := FindFreeSlot(window, busy, MinSlotDuration)
	if !ok {
		appLog.Debug("slot suggestion: no free slot", "date", date, "busy_count", len(busy))
		return Suggestion{Date: date, Message: NoSlotMessage}, nil
	}

	appLog.Debug("slot suggestion: found slot", "date", date, "start", start.Clock())
	return Suggestion{Date: date, Found: true, Start: start, Message: start.String()}, nil
}

func parseWindow(d Daylight) (DaylightWindow, error) {
	sunrise, err := ParseTime(d.Sunrise)
	if err != nil {
		return DaylightWindow{}, fmt.Errorf("%w: sunrise: %v", ErrInvalidWindow, err)
	}
	sunset, err := ParseTime(d.Sunset)
	if err != nil {
		return DaylightWindow{}, fmt.Errorf("%w: sunset: %v", ErrInvalidWindow, err)
	}
	return DaylightWindow{Sunrise: sunrise, Sunset: sunset}, nil
}
