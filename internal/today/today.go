// Package today assembles the day report: weather, daylight, the stored
// schedule and the suggested lamp slot.
package today

import (
	"context"
	"errors"
	"fmt"
	"time"

	"sadlamp/internal/kvstore"
	"sadlamp/internal/location"
	appLog "sadlamp/internal/log"
	"sadlamp/internal/schedule"
	"sadlamp/internal/slot"
	"sadlamp/internal/weather"
)

// NoTimeMessage replaces an empty suggestion.
const NoTimeMessage = "No available time today"

// BusySource supplies extra busy time, e.g. calendar feeds. The result holds
// one entry per requested day, in order.
type BusySource interface {
	BusyDays(ctx context.Context, days []time.Time) ([][]slot.ScheduleItem, error)
}

// Report is one day's view.
type Report struct {
	Date     string              `json:"date"`
	Location weather.Coordinates `json:"location"`
	Weather  *weather.Current    `json:"weather,omitempty"`
	Icon     string              `json:"icon"`
	Rating   int                 `json:"rating"`

	// WeatherError is set when current conditions could not be fetched and
	// daylight was computed locally.
	WeatherError string `json:"weatherError,omitempty"`

	Daylight    slot.Daylight       `json:"daylight"`
	Schedule    []schedule.Entry    `json:"schedule"`
	Busy        []slot.ScheduleItem `json:"busy,omitempty"`
	SadLampTime string              `json:"sadLampTime"`
	Daytime     bool                `json:"daytime"`
	Response    Response            `json:"response,omitempty"`
}

// DayForecast is one row of the five-day view.
type DayForecast struct {
	weather.ForecastDay
	Icon        string           `json:"icon"`
	Rating      int              `json:"rating"`
	Daylight    slot.Daylight    `json:"daylight"`
	Schedule    []schedule.Entry `json:"schedule"`
	SadLampTime string           `json:"sadLampTime"`
}

// Deps wires a Service. Calendar may be nil.
type Deps struct {
	Weather   weather.Provider
	Location  location.Provider
	Schedules schedule.Repository
	Calendar  BusySource
	Store     kvstore.Store
	Zone      *time.Location
	Options   slot.Options
}

type Service struct {
	weather   weather.Provider
	location  location.Provider
	schedules schedule.Repository
	calendar  BusySource
	store     kvstore.Store
	zone      *time.Location
	opts      slot.Options
	now       func() time.Time
}

func New(d Deps) *Service {
	zone := d.Zone
	if zone == nil {
		zone = time.Local
	}
	return &Service{
		weather:   d.Weather,
		location:  d.Location,
		schedules: d.Schedules,
		calendar:  d.Calendar,
		store:     d.Store,
		zone:      zone,
		opts:      d.Options,
		now:       time.Now,
	}
}

// Zone is the timezone that decides what "today" is.
func (s *Service) Zone() *time.Location { return s.zone }

// TodayDate is the current date in the service timezone.
func (s *Service) TodayDate() string {
	return s.now().In(s.zone).Format(schedule.DateLayout)
}

// Today builds the report for date (YYYY-MM-DD, empty means today). Current
// conditions are only available for today; other dates get computed
// daylight and no weather.
func (s *Service) Today(ctx context.Context, date string) (*Report, error) {
	if date == "" {
		date = s.TodayDate()
	}
	day, err := s.dayOf(date)
	if err != nil {
		return nil, err
	}
	coords, err := s.location.Current(ctx)
	if err != nil {
		return nil, fmt.Errorf("location: %w", err)
	}

	rep := &Report{Date: date, Location: coords, Icon: weather.Icon(""), Daytime: true}

	var rise, set time.Time
	haveSun := false
	if date == s.TodayDate() {
		cur, err := s.weather.Current(ctx, coords)
		switch {
		case err == nil:
			rep.Weather = cur
			rep.Icon = weather.Icon(cur.Main)
			rep.Rating = weather.RateCondition(cur.Main)
			rise, set, haveSun = cur.Sunrise, cur.Sunset, true
		case errors.Is(err, weather.ErrMissingDaylight):
			return nil, err
		default:
			appLog.Warn("current weather unavailable, computing daylight", "date", date, "err", err.Error())
			rep.WeatherError = err.Error()
		}
	}
	if !haveSun {
		if rise, set, err = weather.SunTimes(coords, day, s.zone); err != nil {
			return nil, err
		}
	}
	rep.Daylight = s.daylight(rise, set)

	now := slot.FromTime(s.now().In(s.zone))
	rep.Daytime = now >= slot.FromTime(rise.In(s.zone)) && now < slot.FromTime(set.In(s.zone))

	if rep.Schedule, err = s.schedules.ForDate(ctx, date); err != nil {
		return nil, fmt.Errorf("load schedule: %w", err)
	}
	if rep.Schedule == nil {
		rep.Schedule = []schedule.Entry{}
	}
	rep.Busy = s.busy(ctx, []time.Time{day})[0]
	rep.SadLampTime = s.suggest(date, rep.Daylight, rep.Schedule, rep.Busy)

	if rep.Response, err = s.response(ctx, date); err != nil {
		appLog.Warn("stored response unreadable", "date", date, "err", err.Error())
	}

	if date == s.TodayDate() {
		if err := kvstore.SaveJSON(ctx, s.store, kvstore.KeyCurrentDay, rep); err != nil {
			appLog.Error("save current day failed", err, "date", date)
		}
	}
	appLog.Info("day report built", "date", date, "sad_lamp_time", rep.SadLampTime, "busy", len(rep.Busy))
	return rep, nil
}

// FiveDay returns the forecast with daylight and a suggestion per day.
func (s *Service) FiveDay(ctx context.Context) ([]DayForecast, error) {
	coords, err := s.location.Current(ctx)
	if err != nil {
		return nil, fmt.Errorf("location: %w", err)
	}
	days, err := s.weather.Forecast(ctx, coords)
	if err != nil {
		return nil, err
	}

	valid := make([]weather.ForecastDay, 0, len(days))
	dates := make([]time.Time, 0, len(days))
	for _, fd := range days {
		day, err := s.dayOf(fd.Date)
		if err != nil {
			appLog.Warn("forecast day skipped", "date", fd.Date, "err", err.Error())
			continue
		}
		valid = append(valid, fd)
		dates = append(dates, day)
	}
	busy := s.busy(ctx, dates)

	out := make([]DayForecast, 0, len(valid))
	for i, fd := range valid {
		day := dates[i]
		row := DayForecast{
			ForecastDay: fd,
			Icon:        weather.Icon(fd.Main),
			Rating:      weather.RateCondition(fd.Main),
			Daylight:    slot.Daylight{Sunrise: "N/A", Sunset: "N/A"},
			SadLampTime: slot.ErrorMessage,
		}
		if row.Schedule, err = s.schedules.ForDate(ctx, fd.Date); err != nil {
			return nil, fmt.Errorf("load schedule: %w", err)
		}
		if row.Schedule == nil {
			row.Schedule = []schedule.Entry{}
		}
		if rise, set, err := weather.SunTimes(coords, day, s.zone); err == nil {
			row.Daylight = s.daylight(rise, set)
			row.SadLampTime = s.suggest(fd.Date, row.Daylight, row.Schedule, busy[i])
		}
		out = append(out, row)
	}
	return out, nil
}

func (s *Service) dayOf(date string) (time.Time, error) {
	d, err := schedule.ParseDate(date)
	if err != nil {
		return time.Time{}, err
	}
	// Noon keeps DST transitions from shifting the calendar day.
	return time.Date(d.Year(), d.Month(), d.Day(), 12, 0, 0, 0, s.zone), nil
}

func (s *Service) daylight(rise, set time.Time) slot.Daylight {
	return slot.Daylight{
		Sunrise: slot.FromTime(rise.In(s.zone)).String(),
		Sunset:  slot.FromTime(set.In(s.zone)).String(),
	}
}

// busy always returns one slice per day, empty when the calendar has nothing.
func (s *Service) busy(ctx context.Context, days []time.Time) [][]slot.ScheduleItem {
	out := make([][]slot.ScheduleItem, len(days))
	if s.calendar == nil || len(days) == 0 {
		return out
	}
	items, err := s.calendar.BusyDays(ctx, days)
	if err != nil {
		// Partial results are still used.
		appLog.Warn("calendar busy time incomplete", "days", len(days), "err", err.Error())
	}
	copy(out, items)
	return out
}

func (s *Service) suggest(date string, d slot.Daylight, entries []schedule.Entry, busy []slot.ScheduleItem) string {
	items := append(schedule.ToItems(entries), busy...)
	sug, err := slot.Suggest(date, d, items, s.opts)
	if err != nil {
		return slot.ErrorMessage
	}
	if sug.Message == "" {
		return NoTimeMessage
	}
	return sug.Message
}
