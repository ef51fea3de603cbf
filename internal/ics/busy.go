package ics

import (
	"context"
	"errors"
	"time"

	appLog "sadlamp/internal/log"
	"sadlamp/internal/slot"
)

// endOfDay stands in for an occurrence that runs past midnight.
const endOfDay = "23:59"

// BusyForDate clips timed occurrences to the calendar day of date in loc and
// renders them as schedule items. All-day events are ignored.
func BusyForDate(occs []Occurrence, date time.Time, loc *time.Location) []slot.ScheduleItem {
	if loc == nil {
		loc = time.Local
	}
	d := date.In(loc)
	dayStart := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, loc)
	dayEnd := dayStart.AddDate(0, 0, 1)

	var items []slot.ScheduleItem
	for _, o := range occs {
		if o.AllDay || !overlaps(o.Start, o.End, dayStart, dayEnd) {
			continue
		}
		start, end := o.Start.In(loc), o.End.In(loc)
		if start.Before(dayStart) {
			start = dayStart
		}
		endText := endOfDay
		if end.Before(dayEnd) {
			endText = slot.FromTime(end).Clock()
		}
		desc := o.Summary
		if desc == "" {
			desc = "Busy"
		}
		items = append(items, slot.ScheduleItem{
			StartTime:   slot.FromTime(start).Clock(),
			EndTime:     endText,
			Description: desc,
		})
	}
	return items
}

// Calendar turns configured feeds into busy items for a day.
type Calendar struct {
	feeds   []Feed
	fetcher *Fetcher
	loc     *time.Location
}

func NewCalendar(feeds []Feed, fetcher *Fetcher, loc *time.Location) *Calendar {
	return &Calendar{feeds: feeds, fetcher: fetcher, loc: loc}
}

// BusyDays returns the busy items for each of days, in order, across all
// feeds. Feeds are fetched and parsed once per call. Feeds that fail to load
// or parse are skipped; the joined error reports them.
func (c *Calendar) BusyDays(ctx context.Context, days []time.Time) ([][]slot.ScheduleItem, error) {
	if c == nil || len(c.feeds) == 0 || len(days) == 0 {
		return nil, nil
	}
	results, errs := c.fetcher.FetchAll(ctx, c.feeds)

	var events []Event
	for _, res := range results {
		evs, err := Parse(res.Feed, res.Body)
		if err != nil {
			appLog.Error("ics parse failed", err, "id", res.Feed.ID)
			errs = append(errs, err)
			continue
		}
		events = append(events, evs...)
	}

	from, to := c.span(days)
	occs := Expand(events, from, to, c.loc)
	out := make([][]slot.ScheduleItem, len(days))
	for i, day := range days {
		out[i] = BusyForDate(occs, day, c.loc)
	}
	appLog.Debug("ics busy computed",
		"from", from.Format("2006-01-02"), "days", len(days), "occurrences", len(occs), "feeds", len(results))
	return out, errors.Join(errs...)
}

// span covers the local calendar days of every entry in days.
func (c *Calendar) span(days []time.Time) (from, to time.Time) {
	for i, day := range days {
		d := day.In(c.loc)
		start := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, c.loc)
		end := start.AddDate(0, 0, 1)
		if i == 0 || start.Before(from) {
			from = start
		}
		if i == 0 || end.After(to) {
			to = end
		}
	}
	return from, to
}
